// Package errorreporting ships panics and failures to Sentry, scrubbing
// anything that looks like secret material before it leaves the process.
package errorreporting

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
)

// Patterns scrubbed from outgoing events. This service moves secret
// material, so the set errs toward over-redaction: bearer session tokens,
// Basic credential blobs from the session exchange, key/token assignments,
// long base64 runs (what a leaked secret value would look like), emails,
// and IP addresses.
var scrubPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9._-]{16,}`),
	regexp.MustCompile(`(?i)basic\s+[a-zA-Z0-9+/=]{12,}`),
	regexp.MustCompile(`(?i)(api[_-]?key|token|secret)["\s:=]+[a-zA-Z0-9+/=_-]{8,}`),
	regexp.MustCompile(`\b[A-Za-z0-9+/]{32,}={0,2}\b`),
	regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`),
	regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`),
}

// Init initializes Sentry error reporting. Without SENTRY_DSN it is a
// no-op and every capture helper silently does nothing.
func Init(environment string) error {
	dsn := os.Getenv("SENTRY_DSN")
	if dsn == "" {
		return nil
	}
	if err := ValidateDSN(dsn); err != nil {
		return err
	}

	sampleRate := 1.0
	if os.Getenv("ENV") == "production" {
		sampleRate = 0.1 // Sample 10% in production
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		Release:          getRelease(),
		TracesSampleRate: sampleRate,
		BeforeSend:       beforeSend,
		AttachStacktrace: true,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize Sentry: %w", err)
	}

	return nil
}

// getRelease returns the release version from environment or default
func getRelease() string {
	if release := os.Getenv("SENTRY_RELEASE"); release != "" {
		return release
	}
	if version := os.Getenv("SERVICE_VERSION"); version != "" {
		return version
	}
	return "dev"
}

// beforeSend scrubs every string field an event can carry and strips the
// request data that could hold credentials.
func beforeSend(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
	if event.Exception != nil {
		for i := range event.Exception {
			event.Exception[i].Value = scrub(event.Exception[i].Value)
		}
	}

	if event.Message != "" {
		event.Message = scrub(event.Message)
	}

	if event.Extra != nil {
		for key, value := range event.Extra {
			if str, ok := value.(string); ok {
				event.Extra[key] = scrub(str)
			}
		}
	}

	if event.Request != nil {
		if event.Request.Headers != nil {
			delete(event.Request.Headers, "Authorization")
			delete(event.Request.Headers, "Cookie")
			delete(event.Request.Headers, "X-Api-Key")
		}
		// Query strings may carry tokens; drop them wholesale.
		event.Request.QueryString = ""
	}

	return event
}

func scrub(text string) string {
	result := text
	for _, pattern := range scrubPatterns {
		result = pattern.ReplaceAllString(result, "[REDACTED]")
	}
	return result
}

// CaptureError captures an error and sends it to Sentry
func CaptureError(err error) {
	if err == nil {
		return
	}
	sentry.CaptureException(err)
}

// CaptureErrorWithContext captures an error with additional context
func CaptureErrorWithContext(err error, tags map[string]string, extras map[string]interface{}) {
	if err == nil {
		return
	}

	sentry.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		// Extras are scrubbed by beforeSend on the way out.
		for k, v := range extras {
			scope.SetExtra(k, v)
		}

		sentry.CaptureException(err)
	})
}

// CaptureMessage captures a message without an error
func CaptureMessage(message string, level sentry.Level) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(level)
		sentry.CaptureMessage(message)
	})
}

// Flush waits for all events to be sent to Sentry
func Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}

// SetTag sets a tag for all subsequent events
func SetTag(key, value string) {
	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag(key, value)
	})
}

// AddBreadcrumb adds a breadcrumb for debugging context
func AddBreadcrumb(category, message string, level sentry.Level) {
	sentry.AddBreadcrumb(&sentry.Breadcrumb{
		Category:  category,
		Message:   scrub(message),
		Level:     level,
		Timestamp: time.Now(),
	})
}

// ScrubPII exposes the scrubbing step so other layers can sanitize text
// they are about to log or persist.
func ScrubPII(text string) string {
	return scrub(text)
}

// IsSentryEnabled returns true if Sentry is configured
func IsSentryEnabled() bool {
	return os.Getenv("SENTRY_DSN") != ""
}

// ValidateDSN checks if the provided DSN is valid
func ValidateDSN(dsn string) error {
	if !strings.HasPrefix(dsn, "https://") && !strings.HasPrefix(dsn, "http://") {
		return fmt.Errorf("invalid Sentry DSN format")
	}
	return nil
}
