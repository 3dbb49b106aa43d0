package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/onnwee/secret-relay/internal/circuitbreaker"
	"github.com/onnwee/secret-relay/internal/logger"
)

// BreakerAdminHandler handles circuit breaker administration endpoints.
type BreakerAdminHandler struct {
	breaker *circuitbreaker.CircuitBreaker
}

// NewBreakerAdminHandler creates a new breaker admin handler.
func NewBreakerAdminHandler(cb *circuitbreaker.CircuitBreaker) *BreakerAdminHandler {
	return &BreakerAdminHandler{breaker: cb}
}

// GetBreaker returns a point-in-time snapshot of the breaker.
// GET /api/admin/breaker
func (h *BreakerAdminHandler) GetBreaker(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(h.breaker.Snapshot())
}

// ResetBreaker forces the breaker closed and clears its failure count.
// The next upstream failure starts counting from zero, so resetting during
// an ongoing outage will re-trip it after a full threshold of failures.
// POST /api/admin/breaker/reset
func (h *BreakerAdminHandler) ResetBreaker(w http.ResponseWriter, r *http.Request) {
	before := h.breaker.Snapshot()
	h.breaker.Reset()
	logger.InfoContext(r.Context(), "circuit breaker reset by admin", "previous_state", before.State)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(h.breaker.Snapshot())
}
