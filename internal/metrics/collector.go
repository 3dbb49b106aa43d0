package metrics

import (
	"context"
	"time"

	"github.com/onnwee/secret-relay/internal/logger"
)

// CollectorProbes are the live inputs the collector samples. They are plain
// funcs so this package does not import the components it observes.
type CollectorProbes struct {
	// CacheItems returns the current number of cached entries.
	CacheItems func() int
	// SessionReady reports whether a valid upstream session is held.
	SessionReady func() bool
	// HealthGauge returns the aggregated health on the 0/1/2 gauge scale.
	HealthGauge func() float64
}

// Collector periodically samples the gauges that have no natural update
// site of their own: cache entry count, session readiness, aggregated
// health. Counters and the breaker state gauge update at their events and
// need no sampling.
type Collector struct {
	probes   CollectorProbes
	interval time.Duration
	stop     chan struct{}
}

// NewCollector creates a new metrics collector.
func NewCollector(probes CollectorProbes, interval time.Duration) *Collector {
	return &Collector{
		probes:   probes,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Start begins the collection loop. It samples once immediately so the
// gauges are live before the first tick.
func (c *Collector) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.collect()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop stops the metrics collector.
func (c *Collector) Stop() {
	close(c.stop)
}

func (c *Collector) collect() {
	c.sample("cache", func() {
		if c.probes.CacheItems != nil {
			CacheItems.Set(float64(c.probes.CacheItems()))
		}
	})
	c.sample("session", func() {
		if c.probes.SessionReady != nil {
			if c.probes.SessionReady() {
				SessionReady.Set(1)
			} else {
				SessionReady.Set(0)
			}
		}
	})
	c.sample("health", func() {
		if c.probes.HealthGauge != nil {
			HealthStatus.Set(c.probes.HealthGauge())
		}
	})
}

// sample runs one probe; a panicking collaborator is counted and must not
// kill the collection loop.
func (c *Collector) sample(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("metrics probe panicked", "collector", name, "panic", r)
			MetricsCollectionErrors.WithLabelValues(name).Inc()
		}
	}()
	fn()
}
