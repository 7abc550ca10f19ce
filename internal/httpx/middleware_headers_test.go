package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSecureHeaders(t *testing.T) {
	tests := []struct {
		path  string
		cache string
	}{
		{"/oauth/callback", "no-store"},
		{"/healthz", "no-store"},
		{"/static/callback.css", "public, max-age=3600"},
	}
	h := &Handler{}
	final := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.secureHeaders(final).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
			assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
			assert.Equal(t, "no-referrer", rr.Header().Get("Referrer-Policy"))
			assert.Equal(t, contentSecurityPolicy, rr.Header().Get("Content-Security-Policy"))
			assert.Equal(t, tt.cache, rr.Header().Get("Cache-Control"))
		})
	}
}

func TestRouterAppliesSecureHeaders(t *testing.T) {
	h := New(nil, "alice", nil)
	rr := httptest.NewRecorder()
	h.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/oauth/callback", nil))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
	assert.NotEmpty(t, rr.Header().Get(CorrelationIDHeader))
}
