package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/onnwee/secret-relay/internal/apierr"
	"github.com/onnwee/secret-relay/internal/circuitbreaker"
	"github.com/onnwee/secret-relay/internal/logger"
	"github.com/onnwee/secret-relay/internal/retrieval"
	"github.com/onnwee/secret-relay/internal/upstream"
)

// Retriever abstracts the retrieval pipeline for testability.
type Retriever interface {
	Get(ctx context.Context, id string) (*retrieval.Result, error)
	GetBatch(ctx context.Context, ids []string) (*retrieval.BatchResult, error)
}

// SecretsHandler serves the secret retrieval endpoints.
type SecretsHandler struct {
	retriever Retriever
}

// NewSecretsHandler creates a handler over the given retrieval pipeline.
func NewSecretsHandler(ret Retriever) *SecretsHandler {
	return &SecretsHandler{retriever: ret}
}

// SecretResponse is one served secret. Data is the raw secret bytes, which
// encoding/json emits base64-encoded.
type SecretResponse struct {
	ID     string `json:"id"`
	Data   []byte `json:"data"`
	Source string `json:"source"`
}

// BatchRequest is the body of a batch retrieval.
type BatchRequest struct {
	IDs []string `json:"ids"`
}

// BatchItemError is one failed item in a batch response.
type BatchItemError struct {
	ID      string `json:"id"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// BatchResponse is the body of a batch retrieval. Both slices serialize as
// arrays even when empty.
type BatchResponse struct {
	Secrets []SecretResponse `json:"secrets"`
	Errors  []BatchItemError `json:"errors"`
}

// GetSecret handles GET /api/secrets/{id}.
//
// The X-Cache header reports where the answer came from: HIT for a fresh
// cache entry, MISS for an upstream fetch, STALE for an expired entry served
// while the upstream is suspended.
func (h *SecretsHandler) GetSecret(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	res, err := h.retriever.Get(r.Context(), id)
	if err != nil {
		apierr.WriteErrorWithContext(w, r, mapRetrievalError(id, err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Cache", cacheHeader(res.Source))
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(SecretResponse{
		ID:     res.ID,
		Data:   res.Data,
		Source: string(res.Source),
	}); err != nil {
		logger.ErrorContext(r.Context(), "Failed to encode secret response", "error", err)
	}
}

// BatchSecrets handles POST /api/secrets/batch.
//
// Validation failures reject the whole batch; past validation the response
// is a 200 carrying per-item outcomes, even when every item failed.
func (h *SecretsHandler) BatchSecrets(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.WriteErrorWithContext(w, r, apierr.ValidationInvalidJSON())
		return
	}

	batch, err := h.retriever.GetBatch(r.Context(), req.IDs)
	if err != nil {
		apierr.WriteErrorWithContext(w, r, mapRetrievalError("", err))
		return
	}

	resp := BatchResponse{
		Secrets: make([]SecretResponse, 0, len(batch.Secrets)),
		Errors:  make([]BatchItemError, 0, len(batch.Errors)),
	}
	for _, res := range batch.Secrets {
		resp.Secrets = append(resp.Secrets, SecretResponse{
			ID:     res.ID,
			Data:   res.Data,
			Source: string(res.Source),
		})
	}
	for _, item := range batch.Errors {
		mapped := mapRetrievalError(item.ID, item.Err)
		resp.Errors = append(resp.Errors, BatchItemError{
			ID:      item.ID,
			Code:    string(mapped.Code),
			Message: mapped.Message,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.ErrorContext(r.Context(), "Failed to encode batch response", "error", err)
	}
}

func cacheHeader(source retrieval.Source) string {
	switch source {
	case retrieval.SourceCache:
		return "HIT"
	case retrieval.SourceStale:
		return "STALE"
	default:
		return "MISS"
	}
}

// mapRetrievalError translates pipeline errors into the client-facing
// taxonomy. Upstream failures map to the relay's own codes and generic
// messages; raw upstream text stays in the logs.
func mapRetrievalError(id string, err error) *apierr.Error {
	var sizeErr *retrieval.BatchSizeError
	var idErr *retrieval.BatchIdentifierError

	switch {
	case errors.Is(err, retrieval.ErrInvalidIdentifier):
		return apierr.SecretInvalidIdentifier("")
	case errors.Is(err, retrieval.ErrBatchEmpty):
		return apierr.ValidationMissingField("ids")
	case errors.Is(err, retrieval.ErrSessionNotReady):
		return apierr.SessionNotReady("")
	case errors.Is(err, circuitbreaker.ErrCircuitOpen):
		return apierr.UpstreamSuspended("")
	case errors.As(err, &sizeErr):
		return apierr.ValidationInvalidValue("ids", sizeErr.Error()).WithDetails(map[string]interface{}{
			"limit": sizeErr.Limit,
			"got":   sizeErr.Got,
		})
	case errors.As(err, &idErr):
		return apierr.SecretInvalidIdentifier(idErr.Error()).WithDetails(map[string]interface{}{
			"malformed": idErr.Malformed,
		})
	}

	var ue *upstream.Error
	if errors.As(err, &ue) {
		switch ue.Class {
		case upstream.ClassNotFound:
			return apierr.SecretNotFound(id)
		case upstream.ClassAuth:
			return apierr.UpstreamAuthFailed("")
		case upstream.ClassTimeout:
			return apierr.UpstreamTimeout("")
		case upstream.ClassUnreachable:
			return apierr.UpstreamUnreachable("")
		case upstream.ClassRateLimited:
			return apierr.UpstreamRateLimited("")
		}
	}
	return apierr.SystemInternal("")
}
