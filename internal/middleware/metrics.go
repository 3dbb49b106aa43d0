package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/onnwee/secret-relay/internal/metrics"
)

// statusRecorder captures the response status code for metrics labels.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Metrics records per-request counters and latency histograms labeled by
// route template, method, and status. Labeling by template keeps
// /api/secrets/{id} as a single series regardless of how many identifiers
// pass through it.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// WebSocket upgrades hold the connection open for its whole
		// lifetime; their durations would swamp the histogram, and the
		// wrapped writer cannot be hijacked.
		if r.Header.Get("Upgrade") != "" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tmpl
			}
		}

		status := strconv.Itoa(rec.status)
		metrics.APIRequestsTotal.WithLabelValues(endpoint, r.Method, status).Inc()
		metrics.APIRequestDuration.WithLabelValues(endpoint, r.Method, status).Observe(time.Since(start).Seconds())
	})
}
