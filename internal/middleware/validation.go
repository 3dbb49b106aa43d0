package middleware

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// MaxRequestBodySize caps request bodies at 1MB. The largest legitimate
// request is a batch of identifiers, which is a few kilobytes.
const MaxRequestBodySize = 1 * 1024 * 1024

// ValidateRequestBody returns a middleware that limits request body size.
func ValidateRequestBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Only methods that carry a body
		if r.Method == "POST" || r.Method == "PUT" || r.Method == "PATCH" {
			r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
		}
		next.ServeHTTP(w, r)
	})
}

// ValidateJSON validates that the request body is valid JSON.
func ValidateJSON(r *http.Request) error {
	contentType := r.Header.Get("Content-Type")
	if !strings.Contains(contentType, "application/json") {
		return fmt.Errorf("Content-Type must be application/json")
	}

	// Read the body to check it parses, then restore it for the handler.
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return fmt.Errorf("failed to read request body: %w", err)
	}
	defer r.Body.Close()

	var js json.RawMessage
	if err := json.Unmarshal(body, &js); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	r.Body = io.NopCloser(strings.NewReader(string(body)))

	return nil
}
