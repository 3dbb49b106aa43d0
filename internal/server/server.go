package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/onnwee/secret-relay/internal/api"
	"github.com/onnwee/secret-relay/internal/api/handlers"
	"github.com/onnwee/secret-relay/internal/cache"
	"github.com/onnwee/secret-relay/internal/circuitbreaker"
	"github.com/onnwee/secret-relay/internal/config"
	"github.com/onnwee/secret-relay/internal/health"
	"github.com/onnwee/secret-relay/internal/logger"
	"github.com/onnwee/secret-relay/internal/metrics"
	"github.com/onnwee/secret-relay/internal/middleware"
	"github.com/onnwee/secret-relay/internal/retrieval"
	"github.com/onnwee/secret-relay/internal/upstream"
)

const collectInterval = 15 * time.Second

// Server composes the relay's components and owns their lifecycles: the
// cache engine, upstream session and client, circuit breaker, retrieval
// pipeline, health checker, status feed hub, metrics collector, and the
// HTTP server itself.
type Server struct {
	cfg       *config.Config
	store     cache.Cache
	sweeper   *cache.Sweeper
	session   *upstream.Session
	collector *metrics.Collector
	hub       *handlers.Hub
	limiter   *middleware.RateLimiter
	httpSrv   *http.Server
}

// New wires the relay from config. No I/O happens here; Start establishes
// the upstream session and begins serving.
func New(cfg *config.Config) (*Server, error) {
	store, err := newStore(cfg)
	if err != nil {
		return nil, err
	}

	session := upstream.NewSession(cfg)
	client := upstream.NewClient(cfg, session)
	breaker := circuitbreaker.New(circuitbreaker.Config{
		Name:             "upstream",
		FailureThreshold: cfg.BreakerFailureThreshold,
		Cooldown:         cfg.BreakerCooldown,
	})
	svc := retrieval.NewService(cfg, store, breaker, session, client)
	checker := health.NewChecker(health.Deps{
		Session:     session,
		Breaker:     breaker,
		Cache:       store,
		Pinger:      client,
		LastSuccess: svc.LastUpstreamSuccess,
	})
	hub := handlers.NewHub(checker)
	collector := metrics.NewCollector(metrics.CollectorProbes{
		CacheItems:   store.Size,
		SessionReady: session.Ready,
		HealthGauge:  func() float64 { return checker.Check().Status.GaugeValue() },
	}, collectInterval)

	var limiter *middleware.RateLimiter
	if cfg.EnableRateLimit {
		limiter = middleware.NewRateLimiter(
			cfg.RateLimitGlobal, cfg.RateLimitGlobalBurst,
			cfg.RateLimitPerIP, cfg.RateLimitPerIPBurst)
	}

	var sweeper *cache.Sweeper
	if cfg.SweepSchedule != "" {
		sweeper = cache.NewSweeper(store, cfg.SweepSchedule)
	}

	router := api.NewRouter(api.Deps{
		Config:      cfg,
		Retriever:   svc,
		Checker:     checker,
		Cache:       store,
		Breaker:     breaker,
		Session:     session,
		Hub:         hub,
		RateLimiter: limiter,
	})

	return &Server{
		cfg:       cfg,
		store:     store,
		sweeper:   sweeper,
		session:   session,
		collector: collector,
		hub:       hub,
		limiter:   limiter,
		httpSrv: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

func newStore(cfg *config.Config) (cache.Cache, error) {
	switch cfg.CacheEngine {
	case "lru":
		return cache.NewLRU(cfg.CacheMaxSize, cfg.CacheMaxItems)
	case "", "memory":
		return cache.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown cache engine %q", cfg.CacheEngine)
	}
}

// Start establishes the upstream session, launches the background loops,
// and serves HTTP until ctx is cancelled or the listener fails. A failed
// initial authentication leaves the relay serving degraded: cached reads
// still work, and a later re-auth restores the rest.
func (s *Server) Start(ctx context.Context) error {
	authCtx, cancelAuth := context.WithTimeout(ctx, s.cfg.UpstreamTimeout)
	if err := s.session.Authenticate(authCtx); err != nil {
		logger.Warn("initial upstream authentication failed, serving degraded", "error", err)
	}
	cancelAuth()

	if s.sweeper != nil {
		if err := s.sweeper.Start(ctx); err != nil {
			return fmt.Errorf("start cache sweeper: %w", err)
		}
	}
	go s.hub.Run(ctx)
	go s.collector.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", s.httpSrv.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.release()
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", s.cfg.ShutdownTimeout.String())
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancelDrain()
	err := s.httpSrv.Shutdown(drainCtx)
	s.release()
	if err != nil {
		return fmt.Errorf("drain connections: %w", err)
	}
	return nil
}

// release stops the background loops and clears the cache so secret
// material does not outlive the process.
func (s *Server) release() {
	if s.sweeper != nil {
		s.sweeper.Stop()
	}
	s.collector.Stop()
	s.hub.Stop()
	if s.limiter != nil {
		s.limiter.Stop()
	}
	s.store.Clear()
	if closer, ok := s.store.(interface{ Close() }); ok {
		closer.Close()
	}
}
