package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/onnwee/secret-relay/internal/logger"
)

// Reauther triggers a background re-authentication against the upstream.
type Reauther interface {
	TriggerReauth(reason string)
}

// SessionAdminHandler handles session administration endpoints.
type SessionAdminHandler struct {
	session Reauther
}

// NewSessionAdminHandler creates a new session admin handler.
func NewSessionAdminHandler(s Reauther) *SessionAdminHandler {
	return &SessionAdminHandler{session: s}
}

// Reauth kicks off a background re-authentication. The work is
// asynchronous and single-flight, so the answer is a 202: accepted, not
// completed. Poll /api/health for the outcome.
// POST /api/admin/session/reauth
func (h *SessionAdminHandler) Reauth(w http.ResponseWriter, r *http.Request) {
	h.session.TriggerReauth("admin request")
	logger.InfoContext(r.Context(), "session re-authentication requested by admin")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "accepted"})
}
