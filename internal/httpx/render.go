package httpx

import (
	"bytes"
	"net/http"
	"strconv"
)

// renderPage writes view with status. The page is executed into a buffer
// first; a template failure becomes a 500 and nothing half-rendered is sent.
// Without a Page the title and message are written as plain text.
func (h *Handler) renderPage(w http.ResponseWriter, r *http.Request, status int, view CallbackView) {
	view.CorrelationID, _ = GetCorrelationID(r.Context())

	var buf bytes.Buffer
	contentType := "text/html; charset=utf-8"
	if h.Page == nil {
		contentType = "text/plain; charset=utf-8"
		buf.WriteString(view.Title + "\n" + view.Message + "\n")
	} else if err := h.Page.Execute(&buf, view); err != nil {
		h.logger().Error("render callback page", "cid", view.CorrelationID, "err", err)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("template error"))
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
