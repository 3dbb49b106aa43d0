package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
)

// Class identifies what kind of failure the upstream produced.
type Class int

const (
	ClassUnknown Class = iota
	ClassNotFound
	ClassAuth
	ClassTimeout
	ClassUnreachable
	ClassRateLimited
)

// String returns the reporting form of the class.
func (c Class) String() string {
	switch c {
	case ClassNotFound:
		return "not_found"
	case ClassAuth:
		return "auth"
	case ClassTimeout:
		return "timeout"
	case ClassUnreachable:
		return "unreachable"
	case ClassRateLimited:
		return "rate_limited"
	default:
		return "unknown"
	}
}

// Error is a classified upstream failure. Message is internal-only: it may
// carry raw upstream detail for the logs and must never be written into a
// client response.
type Error struct {
	Class      Class
	StatusCode int // origin HTTP status, 0 for transport errors
	Message    string
}

func (e *Error) Error() string {
	return e.Message
}

// IsClass reports whether err carries a classified upstream failure of the
// given class.
func IsClass(err error, c Class) bool {
	var ue *Error
	return errors.As(err, &ue) && ue.Class == c
}

// ClassifyError folds a transport-level failure from the HTTP client into
// the closed taxonomy.
func ClassifyError(err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Class:   classify(0, err, err.Error()),
		Message: err.Error(),
	}
}

// ClassifyResponse folds a non-2xx upstream response into the taxonomy,
// consuming up to 4KB of the body for classification text. The caller still
// owns the body and must close it.
func ClassifyResponse(resp *http.Response) *Error {
	if resp == nil {
		return &Error{Class: ClassUnknown, Message: "nil response"}
	}

	var bodyText string
	if resp.Body != nil {
		if body, err := io.ReadAll(io.LimitReader(resp.Body, 4096)); err == nil {
			bodyText = string(body)
		}
	}

	message := fmt.Sprintf("upstream returned %d", resp.StatusCode)
	if bodyText != "" {
		message += ": " + bodyText
	}

	return &Error{
		Class:      classify(resp.StatusCode, nil, bodyText),
		StatusCode: resp.StatusCode,
		Message:    message,
	}
}

// classify runs the ordered rules; the first match wins. Rules mix status
// codes, typed errors, and case-insensitive substring checks so the relay
// stays resilient to upstream message drift.
func classify(status int, err error, text string) Class {
	lower := strings.ToLower(text)

	if status == http.StatusNotFound || containsAny(lower, "not found", "unknown secret") {
		return ClassNotFound
	}

	if status == http.StatusUnauthorized || status == http.StatusForbidden ||
		containsAny(lower, "unauthorized", "forbidden", "invalid token", "token expired", "authentication") {
		return ClassAuth
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ClassTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) || containsAny(lower, "timeout", "timed out") {
		return ClassTimeout
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) ||
		containsAny(lower, "connection refused", "no such host", "connection reset") {
		return ClassUnreachable
	}

	if status == http.StatusTooManyRequests || containsAny(lower, "rate limit", "too many requests") {
		return ClassRateLimited
	}

	return ClassUnknown
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
