package apierr

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrUpstreamTimeout, "timeout occurred", http.StatusBadGateway)
	if err.Code != ErrUpstreamTimeout {
		t.Errorf("expected code %s, got %s", ErrUpstreamTimeout, err.Code)
	}
	if err.Message != "timeout occurred" {
		t.Errorf("expected message 'timeout occurred', got '%s'", err.Message)
	}
	if err.Status() != http.StatusBadGateway {
		t.Errorf("expected status %d, got %d", http.StatusBadGateway, err.Status())
	}
}

func TestWithDetails(t *testing.T) {
	err := New(ErrValidationInvalidValue, "invalid field", http.StatusBadRequest).
		WithDetails(map[string]interface{}{"field": "ids"})

	if err.Details == nil {
		t.Fatal("expected details to be set")
	}
	if field, ok := err.Details["field"]; !ok || field != "ids" {
		t.Errorf("expected field 'ids', got %v", field)
	}
}

func TestWithRequestID(t *testing.T) {
	requestID := "test-request-123"
	err := New(ErrSystemInternal, "internal error", http.StatusInternalServerError).
		WithRequestID(requestID)

	if err.RequestID != requestID {
		t.Errorf("expected request ID %s, got %s", requestID, err.RequestID)
	}
}

func TestErrorInterface(t *testing.T) {
	err := New(ErrUpstreamAuthFailed, "credentials rejected", http.StatusBadGateway)
	expected := "UPSTREAM_AUTH_FAILED: credentials rejected"
	if err.Error() != expected {
		t.Errorf("expected error string %s, got %s", expected, err.Error())
	}
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	err := New(ErrUpstreamSuspended, "suspended", http.StatusServiceUnavailable).
		WithRequestID("req-123")

	WriteError(w, err)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status %d, got %d", http.StatusServiceUnavailable, w.Code)
	}

	contentType := w.Header().Get("Content-Type")
	if contentType != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", contentType)
	}

	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.Error == nil {
		t.Fatal("expected error in response")
	}
	if resp.Error.Code != ErrUpstreamSuspended {
		t.Errorf("expected code %s, got %s", ErrUpstreamSuspended, resp.Error.Code)
	}
	if resp.Error.Message != "suspended" {
		t.Errorf("expected message 'suspended', got '%s'", resp.Error.Message)
	}
	if resp.Error.RequestID != "req-123" {
		t.Errorf("expected request ID 'req-123', got '%s'", resp.Error.RequestID)
	}
}

func TestHelperFunctions(t *testing.T) {
	tests := []struct {
		name       string
		createErr  func() *Error
		wantCode   ErrorCode
		wantStatus int
	}{
		{"SecretNotFound", func() *Error { return SecretNotFound("abc") }, ErrSecretNotFound, http.StatusNotFound},
		{"SecretInvalidIdentifier", func() *Error { return SecretInvalidIdentifier("") }, ErrSecretInvalidIdentifier, http.StatusBadRequest},
		{"UpstreamAuthFailed", func() *Error { return UpstreamAuthFailed("") }, ErrUpstreamAuthFailed, http.StatusBadGateway},
		{"UpstreamTimeout", func() *Error { return UpstreamTimeout("") }, ErrUpstreamTimeout, http.StatusBadGateway},
		{"UpstreamUnreachable", func() *Error { return UpstreamUnreachable("") }, ErrUpstreamUnreachable, http.StatusBadGateway},
		{"UpstreamRateLimited", func() *Error { return UpstreamRateLimited("") }, ErrUpstreamRateLimited, http.StatusBadGateway},
		{"UpstreamSuspended", func() *Error { return UpstreamSuspended("") }, ErrUpstreamSuspended, http.StatusServiceUnavailable},
		{"SessionNotReady", func() *Error { return SessionNotReady("") }, ErrSessionNotReady, http.StatusServiceUnavailable},
		{"SystemInternal", func() *Error { return SystemInternal("") }, ErrSystemInternal, http.StatusInternalServerError},
		{"ValidationInvalidJSON", func() *Error { return ValidationInvalidJSON() }, ErrValidationInvalidJSON, http.StatusBadRequest},
		{"ValidationMissingField", func() *Error { return ValidationMissingField("ids") }, ErrValidationMissingField, http.StatusBadRequest},
		{"ValidationInvalidValue", func() *Error { return ValidationInvalidValue("ids", "") }, ErrValidationInvalidValue, http.StatusBadRequest},
		{"ResourceNotFound", func() *Error { return ResourceNotFound("endpoint") }, ErrResourceNotFound, http.StatusNotFound},
		{"RateLimitGlobal", func() *Error { return RateLimitGlobal() }, ErrRateLimitGlobal, http.StatusTooManyRequests},
		{"RateLimitIP", func() *Error { return RateLimitIP() }, ErrRateLimitIP, http.StatusTooManyRequests},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.createErr()
			if err.Code != tt.wantCode {
				t.Errorf("expected code %s, got %s", tt.wantCode, err.Code)
			}
			if err.Status() != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, err.Status())
			}
			if err.Message == "" {
				t.Error("expected non-empty message")
			}
		})
	}
}

func TestSecretNotFoundDetails(t *testing.T) {
	err := SecretNotFound("9b2e3f0a-0000-0000-0000-000000000000")
	if err.Details == nil {
		t.Fatal("expected details to be set")
	}
	if id, ok := err.Details["id"]; !ok || id != "9b2e3f0a-0000-0000-0000-000000000000" {
		t.Errorf("expected id detail, got %v", id)
	}
}

func TestValidationMissingFieldDetails(t *testing.T) {
	err := ValidationMissingField("ids")
	if err.Details == nil {
		t.Fatal("expected details to be set")
	}
	if field, ok := err.Details["field"]; !ok || field != "ids" {
		t.Errorf("expected field 'ids', got %v", field)
	}
}

func TestResourceNotFoundDetails(t *testing.T) {
	err := ResourceNotFound("endpoint")
	if err.Details == nil {
		t.Fatal("expected details to be set")
	}
	if rt, ok := err.Details["resource_type"]; !ok || rt != "endpoint" {
		t.Errorf("expected resource_type 'endpoint', got %v", rt)
	}
}
