package httpx

import (
	"errors"
	"net/http"

	"github.com/haukened/mealplanner/internal/app"
)

// CallbackView is the data passed to the callback page template.
type CallbackView struct {
	Success       bool
	Title         string
	Message       string
	CorrelationID string
}

// ErrDenied is reported through Done when the user refused access.
var ErrDenied = errors.New("authorization denied by user")

// handleCallback completes the handshake from the redirect parameters.
func (h *Handler) handleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := Query(r)
	cid, _ := GetCorrelationID(ctx)
	log := h.logger().With("domain", "httpx", "action", "callback", "cid", cid)

	if q.Get("denied") != "" {
		log.Info("authorization denied")
		h.finish(ErrDenied)
		h.renderPage(w, r, http.StatusForbidden, CallbackView{
			Title:   "Authorization denied",
			Message: "Access to your FatSecret account was not granted.",
		})
		return
	}

	token, verifier := q.Get("oauth_token"), q.Get("oauth_verifier")
	if verifier == "" {
		log.Warn("callback without verifier")
		h.renderPage(w, r, http.StatusBadRequest, CallbackView{
			Title:   "Missing verifier",
			Message: "The authorization response did not include an oauth_verifier.",
		})
		return
	}

	err := h.Completer.Complete(ctx, h.User, token, verifier)
	h.finish(err)
	if err != nil {
		status, view := callbackFailure(err)
		log.Warn("handshake failed", "code", status, "err", err)
		h.renderPage(w, r, status, view)
		return
	}
	log.Info("handshake complete")
	h.renderPage(w, r, http.StatusOK, CallbackView{
		Success: true,
		Title:   "Connected",
		Message: "Your FatSecret account is now linked.",
	})
}

// callbackFailure maps a Complete error to a status and a page that does not
// echo the error text.
func callbackFailure(err error) (int, CallbackView) {
	switch {
	case errors.Is(err, app.ErrNotFound):
		return http.StatusGone, CallbackView{
			Title:   "Authorization expired",
			Message: "This authorization request has expired or was already used. Start the connection again.",
		}
	case errors.Is(err, app.ErrVerifierRequired):
		return http.StatusBadRequest, CallbackView{
			Title:   "Missing verifier",
			Message: "The authorization response did not include an oauth_verifier.",
		}
	case errors.Is(err, app.ErrConnectionFailed), errors.Is(err, app.ErrDecryptionFailed):
		return http.StatusServiceUnavailable, CallbackView{
			Title:   "Storage unavailable",
			Message: "The token could not be saved. Check the server logs.",
		}
	}
	return http.StatusBadGateway, CallbackView{
		Title:   "Connection failed",
		Message: "FatSecret did not accept the authorization. Start the connection again.",
	}
}
