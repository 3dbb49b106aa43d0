package upstream

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/onnwee/secret-relay/internal/config"
	"github.com/onnwee/secret-relay/internal/metrics"
)

var (
	limiter     *rate.Limiter
	limiterOnce sync.Once
)

// initLimiter creates the rate limiter based on config
func initLimiter() {
	cfg := config.Load()
	// UPSTREAM_RPS <= 0 disables client-side pacing
	limit := rate.Inf
	if cfg.UpstreamRPS > 0 {
		limit = rate.Limit(cfg.UpstreamRPS)
	}
	limiter = rate.NewLimiter(limit, cfg.UpstreamBurstSize)
}

// getLimiter returns the singleton rate limiter instance
func getLimiter() *rate.Limiter {
	limiterOnce.Do(initLimiter)
	return limiter
}

// waitForRateLimit blocks until a token is available or ctx is done.
func waitForRateLimit(ctx context.Context) error {
	if err := getLimiter().Wait(ctx); err != nil {
		return err
	}
	metrics.UpstreamRateLimitWaits.Inc()
	return nil
}

// ResetLimiterForTest resets the rate limiter singleton for testing
func ResetLimiterForTest() {
	limiterOnce = sync.Once{}
	limiter = nil
}
