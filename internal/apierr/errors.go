package apierr

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/onnwee/secret-relay/internal/logger"
)

// ErrorCode represents a structured error code
type ErrorCode string

// Error code constants organized by category
const (
	// SECRET_ - Secret retrieval errors
	ErrSecretNotFound          ErrorCode = "SECRET_NOT_FOUND"
	ErrSecretInvalidIdentifier ErrorCode = "SECRET_INVALID_IDENTIFIER"

	// UPSTREAM_ - Upstream dependency errors. These never carry upstream
	// response text; raw detail stays in the logs.
	ErrUpstreamAuthFailed  ErrorCode = "UPSTREAM_AUTH_FAILED"
	ErrUpstreamTimeout     ErrorCode = "UPSTREAM_TIMEOUT"
	ErrUpstreamUnreachable ErrorCode = "UPSTREAM_UNREACHABLE"
	ErrUpstreamRateLimited ErrorCode = "UPSTREAM_RATE_LIMITED"
	ErrUpstreamSuspended   ErrorCode = "UPSTREAM_SUSPENDED"
	ErrSessionNotReady     ErrorCode = "SESSION_NOT_READY"

	// SYSTEM_ - System and server errors
	ErrSystemInternal ErrorCode = "SYSTEM_INTERNAL"

	// VALIDATION_ - Request validation errors
	ErrValidationInvalidJSON  ErrorCode = "VALIDATION_INVALID_JSON"
	ErrValidationMissingField ErrorCode = "VALIDATION_MISSING_FIELD"
	ErrValidationInvalidValue ErrorCode = "VALIDATION_INVALID_VALUE"

	// RESOURCE_ - Resource errors
	ErrResourceNotFound ErrorCode = "RESOURCE_NOT_FOUND"

	// RATE_LIMIT_ - Rate limiting errors
	ErrRateLimitGlobal ErrorCode = "RATE_LIMIT_GLOBAL"
	ErrRateLimitIP     ErrorCode = "RATE_LIMIT_IP"
)

// Error represents a structured API error
type Error struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
	status    int                    // HTTP status code (not serialized)
}

// ErrorResponse is the top-level error response wrapper
type ErrorResponse struct {
	Error *Error `json:"error"`
}

// New creates a new API error
func New(code ErrorCode, message string, status int) *Error {
	return &Error{
		Code:    code,
		Message: message,
		status:  status,
	}
}

// WithDetails adds details to the error
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	e.Details = details
	return e
}

// WithRequestID adds a request ID to the error
func (e *Error) WithRequestID(requestID string) *Error {
	e.RequestID = requestID
	return e
}

// Error implements the error interface
func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

// Status returns the HTTP status code
func (e *Error) Status() int {
	return e.status
}

// WriteError writes a structured error response to the HTTP response writer
func WriteError(w http.ResponseWriter, err *Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Status())
	json.NewEncoder(w).Encode(ErrorResponse{Error: err})
}

// Helper functions for common errors

// SecretNotFound creates a secret not found error
func SecretNotFound(id string) *Error {
	return New(ErrSecretNotFound, "Secret not found", http.StatusNotFound).
		WithDetails(map[string]interface{}{"id": id})
}

// SecretInvalidIdentifier creates an invalid secret identifier error
func SecretInvalidIdentifier(message string) *Error {
	if message == "" {
		message = "Invalid secret identifier"
	}
	return New(ErrSecretInvalidIdentifier, message, http.StatusBadRequest)
}

// UpstreamAuthFailed creates an upstream authentication error
func UpstreamAuthFailed(message string) *Error {
	if message == "" {
		message = "Upstream authentication failed"
	}
	return New(ErrUpstreamAuthFailed, message, http.StatusBadGateway)
}

// UpstreamTimeout creates an upstream timeout error
func UpstreamTimeout(message string) *Error {
	if message == "" {
		message = "Upstream request timed out"
	}
	return New(ErrUpstreamTimeout, message, http.StatusBadGateway)
}

// UpstreamUnreachable creates an upstream unreachable error
func UpstreamUnreachable(message string) *Error {
	if message == "" {
		message = "Upstream service unreachable"
	}
	return New(ErrUpstreamUnreachable, message, http.StatusBadGateway)
}

// UpstreamRateLimited creates an upstream rate limited error
func UpstreamRateLimited(message string) *Error {
	if message == "" {
		message = "Upstream rate limit exceeded"
	}
	return New(ErrUpstreamRateLimited, message, http.StatusBadGateway)
}

// UpstreamSuspended creates an error for calls suspended by the circuit
// breaker with no stale copy to fall back on
func UpstreamSuspended(message string) *Error {
	if message == "" {
		message = "Upstream calls temporarily suspended"
	}
	return New(ErrUpstreamSuspended, message, http.StatusServiceUnavailable)
}

// SessionNotReady creates an error for retrievals attempted before the
// upstream session is established
func SessionNotReady(message string) *Error {
	if message == "" {
		message = "Upstream session not ready"
	}
	return New(ErrSessionNotReady, message, http.StatusServiceUnavailable)
}

// SystemInternal creates an internal server error
func SystemInternal(message string) *Error {
	if message == "" {
		message = "Internal server error"
	}
	return New(ErrSystemInternal, message, http.StatusInternalServerError)
}

// ValidationInvalidJSON creates an invalid JSON error
func ValidationInvalidJSON() *Error {
	return New(ErrValidationInvalidJSON, "Invalid JSON request body", http.StatusBadRequest)
}

// ValidationMissingField creates a missing field error
func ValidationMissingField(field string) *Error {
	return New(ErrValidationMissingField, "Missing required field: "+field, http.StatusBadRequest).
		WithDetails(map[string]interface{}{"field": field})
}

// ValidationInvalidValue creates an invalid value error
func ValidationInvalidValue(field string, message string) *Error {
	if message == "" {
		message = "Invalid value for field: " + field
	}
	return New(ErrValidationInvalidValue, message, http.StatusBadRequest).
		WithDetails(map[string]interface{}{"field": field})
}

// ResourceNotFound creates a resource not found error
func ResourceNotFound(resourceType string) *Error {
	return New(ErrResourceNotFound, resourceType+" not found", http.StatusNotFound).
		WithDetails(map[string]interface{}{"resource_type": resourceType})
}

// RateLimitGlobal creates a global rate limit error
func RateLimitGlobal() *Error {
	return New(ErrRateLimitGlobal, "Rate limit exceeded - too many requests globally", http.StatusTooManyRequests)
}

// RateLimitIP creates an IP rate limit error
func RateLimitIP() *Error {
	return New(ErrRateLimitIP, "Rate limit exceeded - too many requests from your IP", http.StatusTooManyRequests)
}

// GetRequestID extracts the request ID from the context
func GetRequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(logger.RequestIDKey).(string); ok {
		return reqID
	}
	return ""
}

// WriteErrorWithContext writes a structured error response with request ID from context
func WriteErrorWithContext(w http.ResponseWriter, r *http.Request, err *Error) {
	if reqID := GetRequestID(r.Context()); reqID != "" {
		err = err.WithRequestID(reqID)
	}
	WriteError(w, err)
}
