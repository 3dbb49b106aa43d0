package retrieval

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/onnwee/secret-relay/internal/cache"
	"github.com/onnwee/secret-relay/internal/circuitbreaker"
	"github.com/onnwee/secret-relay/internal/config"
	"github.com/onnwee/secret-relay/internal/logger"
	"github.com/onnwee/secret-relay/internal/metrics"
	"github.com/onnwee/secret-relay/internal/tracing"
	"github.com/onnwee/secret-relay/internal/upstream"
	"go.opentelemetry.io/otel/attribute"
)

// Source says where a served secret came from.
type Source string

const (
	SourceCache    Source = "cache"    // fresh cache hit
	SourceUpstream Source = "upstream" // fetched from the upstream on this request
	SourceStale    Source = "stale"    // expired cache entry served while the upstream is suspended
)

// Result is one served secret.
type Result struct {
	ID     string `json:"id"`
	Data   []byte `json:"data"`
	Source Source `json:"source"`
}

// ItemError is a per-item failure inside an otherwise-accepted batch.
type ItemError struct {
	ID  string
	Err error
}

// BatchResult holds the per-item outcomes of a batch retrieval. The slices
// are never nil so they serialize as arrays.
type BatchResult struct {
	Secrets []Result
	Errors  []ItemError
}

// SecretFetcher fetches one secret from the upstream.
type SecretFetcher interface {
	FetchSecret(ctx context.Context, id string) (*upstream.Secret, error)
}

// SessionControl is the slice of the session the pipeline needs: readiness
// before calling out, and a re-auth kick when the upstream rejects a token.
type SessionControl interface {
	Ready() bool
	TriggerReauth(reason string)
}

// Service answers secret retrievals through the cache, breaker, session,
// and upstream client, in that order.
type Service struct {
	store    cache.Cache
	breaker  *circuitbreaker.CircuitBreaker
	session  SessionControl
	fetcher  SecretFetcher
	ttl      time.Duration
	maxBatch int
	log      *slog.Logger

	mu          sync.Mutex
	lastSuccess time.Time
}

// NewService wires a retrieval pipeline over the given collaborators.
func NewService(cfg *config.Config, store cache.Cache, breaker *circuitbreaker.CircuitBreaker, session SessionControl, fetcher SecretFetcher) *Service {
	return &Service{
		store:    store,
		breaker:  breaker,
		session:  session,
		fetcher:  fetcher,
		ttl:      cfg.CacheTTL,
		maxBatch: cfg.MaxBatchSize,
		log:      logger.WithComponent("retrieval"),
	}
}

// ValidIdentifier reports whether id is a canonical 36-character UUID.
// The parser alone also accepts braced, URN, and bare-hex forms; the length
// check pins the canonical one.
func ValidIdentifier(id string) bool {
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// LastUpstreamSuccess returns when the last upstream fetch succeeded, or the
// zero time if none has yet.
func (s *Service) LastUpstreamSuccess() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSuccess
}

// Get runs the retrieval pipeline for one identifier.
//
// The order is contractual: identifier validation, breaker gate (the stale
// fallback lives here and only here), fresh cache, session readiness, then
// the upstream call. A cached entry answers even when the session is down
// or the breaker is open.
func (s *Service) Get(ctx context.Context, id string) (*Result, error) {
	ctx, span := tracing.StartSpan(ctx, "retrieval.get")
	defer span.End()

	start := time.Now()
	res, err := s.get(ctx, id)
	if err != nil {
		tracing.RecordError(span, err)
		metrics.RetrievalErrors.WithLabelValues(failureReason(err)).Inc()
		return nil, err
	}
	span.SetAttributes(attribute.String("retrieval.source", string(res.Source)))
	metrics.RetrievalsTotal.WithLabelValues(string(res.Source)).Inc()
	metrics.RetrievalDuration.WithLabelValues(string(res.Source)).Observe(time.Since(start).Seconds())
	return res, nil
}

func (s *Service) get(ctx context.Context, id string) (*Result, error) {
	if !ValidIdentifier(id) {
		return nil, ErrInvalidIdentifier
	}

	key := cacheKey(id)

	// While the upstream is suspended the one allowed read is the
	// side-effect-free stale one: a counting Get would lazily drop an
	// expired entry, destroying the copy this path exists to serve.
	if !s.breaker.AllowRequest() {
		if data, stale, ok := s.store.GetStale(key); ok {
			if !stale {
				return &Result{ID: id, Data: data, Source: SourceCache}, nil
			}
			s.log.Warn("serving stale secret while upstream is suspended", "id", id)
			return &Result{ID: id, Data: data, Source: SourceStale}, nil
		}
		return nil, circuitbreaker.ErrCircuitOpen
	}

	if data, ok := s.store.Get(key); ok {
		return &Result{ID: id, Data: data, Source: SourceCache}, nil
	}

	if !s.session.Ready() {
		return nil, ErrSessionNotReady
	}

	secret, err := s.fetcher.FetchSecret(ctx, id)
	if err != nil {
		return nil, s.fetchFailed(id, err)
	}

	s.breaker.RecordSuccess()
	s.store.Set(key, secret.Value, s.ttl)
	s.mu.Lock()
	s.lastSuccess = time.Now()
	s.mu.Unlock()

	return &Result{ID: id, Data: secret.Value, Source: SourceUpstream}, nil
}

// fetchFailed settles an upstream failure: a missing secret is an answer,
// not an outage, so it never counts against the breaker; an auth rejection
// counts and kicks off a background re-auth; everything else just counts.
func (s *Service) fetchFailed(id string, err error) error {
	var ue *upstream.Error
	if !errors.As(err, &ue) {
		ue = upstream.ClassifyError(err)
	}
	s.log.Warn("upstream fetch failed", "id", id, "class", ue.Class.String(), "error", ue.Message)

	switch ue.Class {
	case upstream.ClassNotFound:
	case upstream.ClassAuth:
		s.breaker.RecordFailure()
		s.session.TriggerReauth("upstream rejected session token")
	default:
		s.breaker.RecordFailure()
	}
	return ue
}

// GetBatch validates the whole batch, then runs each identifier through the
// single pipeline sequentially. Validation is all-or-nothing: one malformed
// identifier rejects the batch before any item is processed. Past
// validation, per-item failures land in Errors and never abort the rest;
// duplicates are processed as given.
func (s *Service) GetBatch(ctx context.Context, ids []string) (*BatchResult, error) {
	ctx, span := tracing.StartSpan(ctx, "retrieval.get_batch")
	defer span.End()
	span.SetAttributes(attribute.Int("retrieval.batch_size", len(ids)))

	if len(ids) == 0 {
		return nil, ErrBatchEmpty
	}
	if len(ids) > s.maxBatch {
		return nil, &BatchSizeError{Limit: s.maxBatch, Got: len(ids)}
	}

	var malformed []string
	for _, id := range ids {
		if !ValidIdentifier(id) {
			malformed = append(malformed, id)
		}
	}
	if len(malformed) > 0 {
		return nil, &BatchIdentifierError{Malformed: malformed}
	}

	batch := &BatchResult{Secrets: []Result{}, Errors: []ItemError{}}
	for _, id := range ids {
		res, err := s.Get(ctx, id)
		if err != nil {
			batch.Errors = append(batch.Errors, ItemError{ID: id, Err: err})
			continue
		}
		batch.Secrets = append(batch.Secrets, *res)
	}
	return batch, nil
}

func cacheKey(id string) string {
	return "secret:" + id
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrInvalidIdentifier):
		return "invalid_identifier"
	case errors.Is(err, circuitbreaker.ErrCircuitOpen):
		return "suspended"
	case errors.Is(err, ErrSessionNotReady):
		return "session_not_ready"
	}
	var ue *upstream.Error
	if errors.As(err, &ue) {
		return ue.Class.String()
	}
	return "unknown"
}
