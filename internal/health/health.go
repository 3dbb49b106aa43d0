package health

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/onnwee/secret-relay/internal/cache"
	"github.com/onnwee/secret-relay/internal/circuitbreaker"
	"github.com/onnwee/secret-relay/internal/upstream"
)

// Status is the aggregate serving state of the relay.
type Status string

const (
	StatusOK          Status = "ok"
	StatusDegraded    Status = "degraded"
	StatusUnavailable Status = "unavailable"
)

// HTTPStatus maps a status to the code the health endpoints answer with.
// Degraded still serves (on stale or limited data), so it stays a 200.
func (s Status) HTTPStatus() int {
	if s == StatusUnavailable {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

// GaugeValue maps a status onto the health metric scale (0 ok, 1 degraded,
// 2 unavailable).
func (s Status) GaugeValue() float64 {
	switch s {
	case StatusOK:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}

// SessionStatus is the slice of the session the checker reads.
type SessionStatus interface {
	Ready() bool
	ReauthInProgress() bool
}

// BreakerStatus is the slice of the circuit breaker the checker reads.
type BreakerStatus interface {
	State() circuitbreaker.State
	Snapshot() circuitbreaker.Snapshot
}

// CacheStatus is the slice of the cache the checker reads.
type CacheStatus interface {
	Size() int
	Stats() cache.Stats
}

// Pinger probes the upstream for deep checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the live inputs the checker aggregates. LastSuccess reports the
// most recent successful upstream fetch (zero when none yet).
type Deps struct {
	Session     SessionStatus
	Breaker     BreakerStatus
	Cache       CacheStatus
	Pinger      Pinger
	LastSuccess func() time.Time
}

// Checker computes the relay's aggregated health.
type Checker struct {
	deps         Deps
	probeTimeout time.Duration
}

const defaultProbeTimeout = 3 * time.Second

// NewChecker builds a checker over the given inputs.
func NewChecker(deps Deps) *Checker {
	return &Checker{
		deps:         deps,
		probeTimeout: defaultProbeTimeout,
	}
}

// SessionReport is the session slice of a health report.
type SessionReport struct {
	Ready            bool `json:"ready"`
	ReauthInProgress bool `json:"reauth_in_progress"`
}

// CacheReport is the cache slice of a health report.
type CacheReport struct {
	Entries int    `json:"entries"`
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
}

// UpstreamReport is the outcome of a deep probe. Failure carries the
// classifier class only, never raw upstream text.
type UpstreamReport struct {
	Reachable bool   `json:"reachable"`
	LatencyMS int64  `json:"latency_ms"`
	Failure   string `json:"failure,omitempty"`
}

// Report is a point-in-time view of the relay's ability to serve.
type Report struct {
	Status              Status                  `json:"status"`
	Time                time.Time               `json:"time"`
	Session             SessionReport           `json:"session"`
	Breaker             circuitbreaker.Snapshot `json:"breaker"`
	Cache               CacheReport             `json:"cache"`
	LastUpstreamSuccess *time.Time              `json:"last_upstream_success,omitempty"`
	Upstream            *UpstreamReport         `json:"upstream,omitempty"`
}

// Shallow answers the fast liveness question from session readiness alone.
func (c *Checker) Shallow() Status {
	if c.deps.Session.Ready() {
		return StatusOK
	}
	return StatusUnavailable
}

// Check computes the full report without touching the upstream.
//
// The order is fixed: a ready session with a breaker that is not Open means
// normal service; otherwise a non-empty cache means stale service is still
// possible; otherwise nothing can be served.
func (c *Checker) Check() Report {
	ready := c.deps.Session.Ready()
	state := c.deps.Breaker.State()
	stats := c.deps.Cache.Stats()

	status := StatusUnavailable
	switch {
	case ready && state != circuitbreaker.StateOpen:
		status = StatusOK
	case stats.Items >= 1:
		status = StatusDegraded
	}

	report := Report{
		Status: status,
		Time:   time.Now().UTC(),
		Session: SessionReport{
			Ready:            ready,
			ReauthInProgress: c.deps.Session.ReauthInProgress(),
		},
		Breaker: c.deps.Breaker.Snapshot(),
		Cache: CacheReport{
			Entries: c.deps.Cache.Size(),
			Hits:    stats.Hits,
			Misses:  stats.Misses,
		},
	}
	if c.deps.LastSuccess != nil {
		if last := c.deps.LastSuccess(); !last.IsZero() {
			utc := last.UTC()
			report.LastUpstreamSuccess = &utc
		}
	}
	return report
}

// CheckDeep runs Check plus a live upstream probe. The probe is
// observational: it never touches breaker counters, and it can only
// downgrade an ok report to degraded, never upgrade one.
func (c *Checker) CheckDeep(ctx context.Context) Report {
	report := c.Check()

	probeCtx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	start := time.Now()
	err := c.deps.Pinger.Ping(probeCtx)
	latency := time.Since(start)

	probe := &UpstreamReport{
		Reachable: err == nil,
		LatencyMS: latency.Milliseconds(),
	}
	if err != nil {
		probe.Failure = failureClass(err)
		if report.Status == StatusOK {
			report.Status = StatusDegraded
		}
	}
	report.Upstream = probe
	return report
}

func failureClass(err error) string {
	var ue *upstream.Error
	if errors.As(err, &ue) {
		return ue.Class.String()
	}
	return upstream.ClassUnknown.String()
}
