package cache

import (
	"context"
	"time"

	"github.com/onnwee/secret-relay/internal/logger"
	"github.com/onnwee/secret-relay/internal/metrics"
	"github.com/onnwee/secret-relay/internal/scheduler"
)

// Sweeper periodically drops expired entries so long-idle keys don't pin
// memory. Lazy expiry on read remains the cache contract; the sweeper is a
// janitor behind it.
type Sweeper struct {
	cache    Cache
	schedule string
	stop     chan struct{}
}

// NewSweeper creates a sweeper for the given cache. The schedule uses the
// scheduler package's expression format ("@every 5m", "@hourly", ...).
func NewSweeper(c Cache, schedule string) *Sweeper {
	return &Sweeper{
		cache:    c,
		schedule: schedule,
		stop:     make(chan struct{}),
	}
}

// Start validates the schedule and launches the sweep loop. It returns an
// error for an unparsable schedule and does nothing when the engine cannot
// enumerate entries.
func (s *Sweeper) Start(ctx context.Context) error {
	if err := scheduler.ValidateCronExpression(s.schedule); err != nil {
		return err
	}
	sweepable, ok := s.cache.(ExpirySweeper)
	if !ok {
		logger.Warn("cache engine does not support sweeps, sweeper disabled")
		return nil
	}

	log := logger.WithComponent("cache_sweeper")
	log.Info("starting cache sweeper", "schedule", s.schedule)

	go func() {
		for {
			next, err := scheduler.ParseCronExpression(s.schedule, time.Now())
			if err != nil {
				// Validated at start; a failure here means the schedule
				// changed out from under us, so stop rather than spin.
				log.Error("failed to compute next sweep", "error", err)
				return
			}
			timer := time.NewTimer(time.Until(next))

			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-s.stop:
				timer.Stop()
				return
			case <-timer.C:
				removed := sweepable.SweepExpired()
				metrics.CacheSweepsTotal.Inc()
				metrics.CacheSweptEntries.Add(float64(removed))
				if removed > 0 {
					log.Debug("swept expired entries", "removed", removed)
				}
			}
		}
	}()
	return nil
}

// Stop halts the sweep loop.
func (s *Sweeper) Stop() {
	close(s.stop)
}
