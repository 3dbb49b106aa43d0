package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/onnwee/secret-relay/internal/health"
	"github.com/onnwee/secret-relay/internal/logger"
)

// Health returns a simple JSON payload to indicate the process is alive.
// It reads nothing: a relay that cannot reach its upstream is still alive.
func Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// HealthHandler serves the aggregated health endpoint.
type HealthHandler struct {
	checker *health.Checker
}

// NewHealthHandler creates a handler over the given checker.
func NewHealthHandler(c *health.Checker) *HealthHandler {
	return &HealthHandler{checker: c}
}

// GetHealth handles GET /api/health.
//
// The default answer is the shallow session-readiness check. With
// ?deep=true it runs the full report plus a live upstream probe; the probe
// is observational and never touches the breaker. Degraded still answers
// 200 because stale service is service.
func (h *HealthHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.URL.Query().Get("deep") == "true" {
		report := h.checker.CheckDeep(r.Context())
		w.WriteHeader(report.Status.HTTPStatus())
		if err := json.NewEncoder(w).Encode(report); err != nil {
			logger.ErrorContext(r.Context(), "Failed to encode health report", "error", err)
		}
		return
	}

	status := h.checker.Shallow()
	w.WriteHeader(status.HTTPStatus())
	_ = json.NewEncoder(w).Encode(map[string]string{"status": string(status)})
}
