package httpx

import (
	"encoding/json"
	"net/http"
)

// probeStatus is the JSON body of /healthz and /readyz.
type probeStatus struct {
	Status string `json:"status"`
	User   string `json:"user,omitempty"`
	Error  string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
