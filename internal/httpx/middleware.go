package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/httplog/v3"
	"github.com/google/uuid"
)

type cidCtxKey struct{}

var cidKey = cidCtxKey{}

// CorrelationIDHeader carries the request's correlation ID in both directions.
const CorrelationIDHeader = "X-Correlation-ID"

const maxCorrelationIDLen = 64

// CorrelationIDMiddleware tags each request with a correlation ID shown on
// the result page and in the logs. A caller-supplied ID is kept only if it
// is short and made of [A-Za-z0-9._-]; anything else is replaced by a UUID.
func CorrelationIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cid := r.Header.Get(CorrelationIDHeader)
		if !validCorrelationID(cid) {
			cid = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), cidKey, cid)
		w.Header().Set(CorrelationIDHeader, cid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetCorrelationID extracts the correlation ID from the context.
func GetCorrelationID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(cidKey).(string)
	return id, ok
}

func validCorrelationID(s string) bool {
	if s == "" || len(s) > maxCorrelationIDLen {
		return false
	}
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '.', c == '_', c == '-':
		default:
			return false
		}
	}
	return true
}

type queryCtxKey struct{}

// StripQuery moves the query string into the request context so that
// nothing downstream (the request logger in particular) sees the verifier
// in the URL. Handlers read it back with Query.
func StripQuery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.RawQuery == "" {
			next.ServeHTTP(w, r)
			return
		}
		q := r.URL.Query()
		r2 := r.Clone(context.WithValue(r.Context(), queryCtxKey{}, q))
		r2.URL.RawQuery = ""
		r2.RequestURI = r2.URL.RequestURI()
		next.ServeHTTP(w, r2)
	})
}

// Query returns the parameters captured by StripQuery, or the URL's own.
func Query(r *http.Request) url.Values {
	if q, ok := r.Context().Value(queryCtxKey{}).(url.Values); ok {
		return q
	}
	return r.URL.Query()
}

// Recovery turns handler panics into a 500.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("panic in handler", "domain", "httpx", "path", r.URL.Path, "panic", rec)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Logging logs one line per request. It must run after StripQuery.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return httplog.RequestLogger(logger, &httplog.Options{
		Schema:             httplog.SchemaECS.Concise(true),
		LogRequestHeaders:  []string{"Content-Type"},
		LogResponseHeaders: []string{},
		RecoverPanics:      false,
		LogExtraAttrs: func(req *http.Request, _ string, _ int) []slog.Attr {
			cid, _ := GetCorrelationID(req.Context())
			return []slog.Attr{slog.String("cid", cid)}
		},
	})
}

// applyMiddlewares applies middlewares in order; the first is outermost.
func applyMiddlewares(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
