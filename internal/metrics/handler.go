package metrics

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

// SnapshotProvider abstracts Manager for testing.
type SnapshotProvider interface {
	Snapshot(ctx context.Context) (map[string]int64, map[string]Summary, error)
}

// Report is the JSON form of a snapshot.
type Report struct {
	Counters  map[string]int64   `json:"counters"`
	Summaries map[string]Summary `json:"summaries"`
}

// NewReport keeps the metrics whose names start with prefix. An empty
// prefix keeps everything.
func NewReport(counters map[string]int64, summaries map[string]Summary, prefix string) Report {
	r := Report{Counters: make(map[string]int64), Summaries: make(map[string]Summary)}
	for n, v := range counters {
		if strings.HasPrefix(n, prefix) {
			r.Counters[n] = v
		}
	}
	for n, s := range summaries {
		if strings.HasPrefix(n, prefix) {
			r.Summaries[n] = s
		}
	}
	return r
}

// Handler serves the snapshot as JSON, optionally narrowed with
// ?prefix=. If token is non-empty, requests must carry
// Authorization: Bearer <token>.
func Handler(provider SnapshotProvider, token string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if token != "" && !bearerMatches(r.Header.Get("Authorization"), token) {
			w.Header().Set("WWW-Authenticate", `Bearer realm="metrics"`)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		counters, summaries, err := provider.Snapshot(r.Context())
		if err != nil {
			http.Error(w, "snapshot unavailable", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(NewReport(counters, summaries, r.URL.Query().Get("prefix")))
	}
}

func bearerMatches(header, token string) bool {
	got, ok := strings.CutPrefix(header, "Bearer ")
	return ok && subtle.ConstantTimeCompare([]byte(got), []byte(token)) == 1
}
