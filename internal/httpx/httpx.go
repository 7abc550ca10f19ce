// Package httpx is the local OAuth callback server. FatSecret redirects the
// user's browser to /oauth/callback with oauth_token and oauth_verifier; the
// handler completes the 3-legged handshake and renders a result page.
package httpx

import (
	"context"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/haukened/mealplanner/internal/domain"
)

// CallbackPath is where the authorization server redirects the browser.
const CallbackPath = "/oauth/callback"

// Completer exchanges an authorized request token for an access token.
// It is satisfied by *app.OAuthService.
type Completer interface {
	Complete(ctx context.Context, user domain.UserID, oauthToken, verifier string) error
}

// PageRenderer executes the callback page. *html/template.Template
// satisfies it.
type PageRenderer interface {
	Execute(w io.Writer, data any) error
}

// Handler wires the callback endpoints. Zero-value is not valid; construct via New.
type Handler struct {
	Completer Completer
	User      domain.UserID
	Readiness func(context.Context) error // optional probe for /readyz
	Page      PageRenderer                // optional; plain text without it
	Assets    fs.FS                       // optional static assets under /static/
	Metrics   http.Handler                // optional /metrics endpoint
	Logger    *slog.Logger

	// Done, when set, receives the outcome of the first callback that
	// reached the Completer. Later callbacks are still answered.
	Done func(error)
	once sync.Once
}

// New returns a Handler that completes handshakes for user.
func New(c Completer, user domain.UserID, readiness func(context.Context) error) *Handler {
	return &Handler{Completer: c, User: user, Readiness: readiness}
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// Router mounts all routes and wraps them in the middleware chain:
// recovery, correlation ID, query stripping, request logging, then security
// headers.
func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+CallbackPath, h.handleCallback)
	mux.HandleFunc("GET /healthz", h.handleHealth)
	mux.HandleFunc("GET /readyz", h.handleReady)
	if h.Assets != nil {
		mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(h.Assets)))
	}
	if h.Metrics != nil {
		mux.Handle("GET /metrics", h.Metrics)
	}
	return applyMiddlewares(mux,
		Recovery,
		CorrelationIDMiddleware,
		StripQuery,
		Logging(h.logger().With("domain", "httpx")),
		h.secureHeaders,
	)
}

// contentSecurityPolicy allows only the embedded stylesheet.
const contentSecurityPolicy = "default-src 'none'; style-src 'self'; img-src 'self' data:; frame-ancestors 'none'; base-uri 'none'; form-action 'none'"

// secureHeaders adds security headers to every response. Nothing but the
// static assets may be cached: callback URLs carry one-time credentials.
func (h *Handler) secureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hdr := w.Header()
		hdr.Set("X-Content-Type-Options", "nosniff")
		hdr.Set("X-Frame-Options", "DENY")
		hdr.Set("Referrer-Policy", "no-referrer")
		hdr.Set("Content-Security-Policy", contentSecurityPolicy)
		if strings.HasPrefix(r.URL.Path, "/static/") {
			hdr.Set("Cache-Control", "public, max-age=3600")
		} else {
			hdr.Set("Cache-Control", "no-store")
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) finish(err error) {
	if h.Done == nil {
		return
	}
	h.once.Do(func() { h.Done(err) })
}
