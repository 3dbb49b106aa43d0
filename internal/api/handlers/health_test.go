package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/onnwee/secret-relay/internal/cache"
	"github.com/onnwee/secret-relay/internal/circuitbreaker"
	"github.com/onnwee/secret-relay/internal/health"
	"github.com/onnwee/secret-relay/internal/upstream"
)

func TestHealth(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)

	Health(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var out map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if out["status"] != "ok" {
		t.Fatalf("expected status ok, got %s", out["status"])
	}
}

type healthSession struct {
	ready bool
}

func (s *healthSession) Ready() bool            { return s.ready }
func (s *healthSession) ReauthInProgress() bool { return false }

type healthPinger struct {
	err error
}

func (p *healthPinger) Ping(ctx context.Context) error { return p.err }

func newHealthChecker(ready bool, pingErr error) *health.Checker {
	breaker := circuitbreaker.New(circuitbreaker.Config{Name: "upstream"})
	return health.NewChecker(health.Deps{
		Session:     &healthSession{ready: ready},
		Breaker:     breaker,
		Cache:       cache.NewMemory(),
		Pinger:      &healthPinger{err: pingErr},
		LastSuccess: func() time.Time { return time.Time{} },
	})
}

func TestGetHealth_ShallowReady(t *testing.T) {
	h := NewHealthHandler(newHealthChecker(true, nil))

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rr := httptest.NewRecorder()
	h.GetHealth(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var out map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["status"] != "ok" {
		t.Errorf("expected status ok, got %s", out["status"])
	}
}

func TestGetHealth_ShallowNotReady(t *testing.T) {
	h := NewHealthHandler(newHealthChecker(false, nil))

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rr := httptest.NewRecorder()
	h.GetHealth(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	var out map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["status"] != "unavailable" {
		t.Errorf("expected status unavailable, got %s", out["status"])
	}
}

func TestGetHealth_DeepProbeFailure(t *testing.T) {
	pingErr := &upstream.Error{Class: upstream.ClassTimeout, Message: "probe to 10.0.0.9 timed out"}
	h := NewHealthHandler(newHealthChecker(true, pingErr))

	req := httptest.NewRequest(http.MethodGet, "/api/health?deep=true", nil)
	rr := httptest.NewRecorder()
	h.GetHealth(rr, req)

	// Degraded still serves, so the probe failure stays a 200.
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var report health.Report
	if err := json.Unmarshal(rr.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.Status != health.StatusDegraded {
		t.Errorf("expected degraded after failed probe, got %s", report.Status)
	}
	if report.Upstream == nil {
		t.Fatal("expected upstream section in deep report")
	}
	if report.Upstream.Reachable {
		t.Error("expected upstream to be reported unreachable")
	}
	if report.Upstream.Failure != "timeout" {
		t.Errorf("expected failure class timeout, got %q", report.Upstream.Failure)
	}
	if strings.Contains(rr.Body.String(), "10.0.0.9") {
		t.Error("raw probe error text leaked into the report")
	}
}

func TestGetHealth_DeepProbeSuccess(t *testing.T) {
	h := NewHealthHandler(newHealthChecker(true, nil))

	req := httptest.NewRequest(http.MethodGet, "/api/health?deep=true", nil)
	rr := httptest.NewRecorder()
	h.GetHealth(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var report health.Report
	if err := json.Unmarshal(rr.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.Status != health.StatusOK {
		t.Errorf("expected ok, got %s", report.Status)
	}
	if report.Upstream == nil || !report.Upstream.Reachable {
		t.Errorf("expected reachable upstream section, got %+v", report.Upstream)
	}
}

func TestGetHealth_DeepPlainErrorMapsToUnknown(t *testing.T) {
	h := NewHealthHandler(newHealthChecker(true, errors.New("socket weirdness")))

	req := httptest.NewRequest(http.MethodGet, "/api/health?deep=true", nil)
	rr := httptest.NewRecorder()
	h.GetHealth(rr, req)

	var report health.Report
	if err := json.Unmarshal(rr.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.Upstream == nil || report.Upstream.Failure != "unknown" {
		t.Errorf("expected failure class unknown, got %+v", report.Upstream)
	}
}

