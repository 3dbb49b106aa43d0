package circuitbreaker

import (
	"errors"
	"sync"
	"time"

	"github.com/onnwee/secret-relay/internal/logger"
	"github.com/onnwee/secret-relay/internal/metrics"
)

var (
	// ErrCircuitOpen is returned when the circuit breaker refuses a request
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// State represents the circuit breaker state
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

// String returns the reporting form of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreaker guards calls to a single upstream. Failures are counted
// consecutively; enough of them open the breaker, which fast-fails callers
// until the cooldown elapses and a half-open probe is allowed through.
//
// There is no timer goroutine: the Open -> HalfOpen transition is evaluated
// lazily inside State(), and every other method resolves the state through
// that same path so nothing ever acts on a stale read.
type CircuitBreaker struct {
	mu                  sync.Mutex
	state               State
	consecutiveFailures int
	openedAt            time.Time // zero unless the breaker has opened
	name                string

	failureThreshold int
	cooldown         time.Duration

	// now is swappable in tests
	now func() time.Time
}

// Config holds circuit breaker configuration
type Config struct {
	Name             string
	FailureThreshold int           // Consecutive failures before opening
	Cooldown         time.Duration // Time spent Open before allowing a probe
}

// New creates a new circuit breaker
func New(cfg Config) *CircuitBreaker {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Cooldown == 0 {
		cfg.Cooldown = 30 * time.Second
	}

	cb := &CircuitBreaker{
		state:            StateClosed,
		name:             cfg.Name,
		failureThreshold: cfg.FailureThreshold,
		cooldown:         cfg.Cooldown,
		now:              time.Now,
	}

	metrics.CircuitBreakerState.WithLabelValues(cfg.Name).Set(float64(StateClosed))

	return cb
}

// State returns the current state. It is the single transition authority
// for Open -> HalfOpen: once the cooldown has elapsed the transition happens
// here, before the state is returned.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.resolveLocked()
}

// AllowRequest reports whether a request may proceed (Closed or HalfOpen).
func (cb *CircuitBreaker) AllowRequest() bool {
	return cb.State() != StateOpen
}

// RecordFailure counts a failed upstream call against the breaker.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.resolveLocked() {
	case StateClosed:
		cb.consecutiveFailures++
		if cb.consecutiveFailures >= cb.failureThreshold {
			cb.openedAt = cb.now()
			cb.setStateLocked(StateOpen)
		}
	case StateHalfOpen:
		// Probe failed; the cooldown restarts from now.
		cb.consecutiveFailures++
		cb.openedAt = cb.now()
		cb.setStateLocked(StateOpen)
	case StateOpen:
		// Straggler from a call dispatched before the trip. Count it, but
		// never extend the cooldown.
		cb.consecutiveFailures++
	}
}

// RecordSuccess counts a successful upstream call. In Closed it forgives the
// failure streak; in HalfOpen a single success closes the breaker.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.resolveLocked() {
	case StateClosed:
		cb.consecutiveFailures = 0
	case StateHalfOpen:
		cb.consecutiveFailures = 0
		cb.openedAt = time.Time{}
		cb.setStateLocked(StateClosed)
	case StateOpen:
		// Stale in-flight result; the cooldown gate stands.
	}
}

// Reset unconditionally returns the breaker to Closed with a clean slate.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFailures = 0
	cb.openedAt = time.Time{}
	cb.setStateLocked(StateClosed)
}

// Snapshot is a point-in-time view of the breaker for reporting.
type Snapshot struct {
	Name                string     `json:"name"`
	State               string     `json:"state"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	OpenedAt            *time.Time `json:"opened_at,omitempty"`
	FailureThreshold    int        `json:"failure_threshold"`
	Cooldown            string     `json:"cooldown"`
}

// Snapshot returns a consistent view of the breaker, applying the same lazy
// transition as State.
func (cb *CircuitBreaker) Snapshot() Snapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	snap := Snapshot{
		Name:                cb.name,
		State:               cb.resolveLocked().String(),
		ConsecutiveFailures: cb.consecutiveFailures,
		FailureThreshold:    cb.failureThreshold,
		Cooldown:            cb.cooldown.String(),
	}
	if !cb.openedAt.IsZero() {
		openedAt := cb.openedAt
		snap.OpenedAt = &openedAt
	}
	return snap
}

// resolveLocked applies the lazy Open -> HalfOpen transition and returns the
// resulting state. Callers hold mu.
func (cb *CircuitBreaker) resolveLocked() State {
	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.cooldown {
		// openedAt is kept so reporting shows when the outage began.
		cb.setStateLocked(StateHalfOpen)
	}
	return cb.state
}

// setStateLocked moves to next, updating the state gauge and trip counter.
// Callers hold mu.
func (cb *CircuitBreaker) setStateLocked(next State) {
	if cb.state == next {
		return
	}
	prev := cb.state
	cb.state = next

	metrics.CircuitBreakerState.WithLabelValues(cb.name).Set(float64(next))
	if next == StateOpen {
		metrics.CircuitBreakerTrips.WithLabelValues(cb.name).Inc()
	}
	logger.Info("circuit breaker state change",
		"breaker", cb.name,
		"from", prev.String(),
		"to", next.String())
}
