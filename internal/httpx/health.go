package httpx

import (
	"context"
	"net/http"
	"time"
)

// readinessTimeout bounds the readiness probe so a locked database cannot
// hang the endpoint.
const readinessTimeout = 2 * time.Second

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, probeStatus{Status: "ok", User: h.User.String()})
}

// handleReady reports whether the token store is reachable. Probe errors
// are logged but never returned to the browser.
func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	if h.Readiness == nil {
		writeJSON(w, http.StatusOK, probeStatus{Status: "ready"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()
	if err := h.Readiness(ctx); err != nil {
		cid, _ := GetCorrelationID(r.Context())
		h.logger().Warn("token store not ready", "cid", cid, "err", err)
		writeJSON(w, http.StatusServiceUnavailable, probeStatus{Status: "unavailable", Error: "token store unreachable"})
		return
	}
	writeJSON(w, http.StatusOK, probeStatus{Status: "ready"})
}
