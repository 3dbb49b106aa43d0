package server

import (
	"context"
	"testing"
	"time"

	"github.com/onnwee/secret-relay/internal/cache"
	"github.com/onnwee/secret-relay/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		CacheEngine:             "memory",
		CacheTTL:                time.Minute,
		CacheMaxSize:            8,
		CacheMaxItems:           128,
		BreakerFailureThreshold: 5,
		BreakerCooldown:         30 * time.Second,
		MaxBatchSize:            100,
		Port:                    "0",
		ShutdownTimeout:         time.Second,
		UpstreamTimeout:         time.Second,
	}
}

func TestNewStoreEngines(t *testing.T) {
	tests := []struct {
		engine  string
		wantErr bool
		wantLRU bool
	}{
		{engine: "", wantErr: false, wantLRU: false},
		{engine: "memory", wantErr: false, wantLRU: false},
		{engine: "lru", wantErr: false, wantLRU: true},
		{engine: "redis", wantErr: true},
	}

	for _, tt := range tests {
		t.Run("engine_"+tt.engine, func(t *testing.T) {
			cfg := testConfig()
			cfg.CacheEngine = tt.engine

			store, err := newStore(cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("newStore(%q) succeeded, want error", tt.engine)
				}
				return
			}
			if err != nil {
				t.Fatalf("newStore(%q) failed: %v", tt.engine, err)
			}

			_, isLRU := store.(*cache.LRUCache)
			if isLRU != tt.wantLRU {
				t.Errorf("newStore(%q) engine type = %T", tt.engine, store)
			}
			if closer, ok := store.(interface{ Close() }); ok {
				closer.Close()
			}
		})
	}
}

func TestNewComposesOptionalComponents(t *testing.T) {
	cfg := testConfig()
	cfg.EnableRateLimit = true
	cfg.RateLimitGlobal = 100
	cfg.RateLimitGlobalBurst = 200
	cfg.RateLimitPerIP = 10
	cfg.RateLimitPerIPBurst = 20
	cfg.SweepSchedule = "@every 5m"
	cfg.Port = "9099"

	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if s.limiter == nil {
		t.Fatal("rate limiting enabled but limiter is nil")
	}
	defer s.limiter.Stop()

	if s.sweeper == nil {
		t.Error("sweep schedule set but sweeper is nil")
	}
	if s.httpSrv.Addr != ":9099" {
		t.Errorf("Addr = %q, want :9099", s.httpSrv.Addr)
	}
}

func TestNewSkipsOptionalComponents(t *testing.T) {
	s, err := New(testConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if s.limiter != nil {
		t.Error("rate limiting disabled but limiter is set")
	}
	if s.sweeper != nil {
		t.Error("no sweep schedule but sweeper is set")
	}
}

func TestNewRejectsUnknownEngine(t *testing.T) {
	cfg := testConfig()
	cfg.CacheEngine = "memcached"
	if _, err := New(cfg); err == nil {
		t.Fatal("New accepted an unknown cache engine")
	}
}

func TestStartStopsOnContextCancel(t *testing.T) {
	s, err := New(testConfig())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	// Give the listener a moment to come up before pulling the plug.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start returned %v after cancellation, want nil", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Start did not return after context cancellation")
	}
}

func TestStartRejectsBadSweepSchedule(t *testing.T) {
	cfg := testConfig()
	cfg.SweepSchedule = "every once in a while"

	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err == nil {
		t.Fatal("Start accepted an unparsable sweep schedule")
	}
}

func TestStartSurfacesListenError(t *testing.T) {
	cfg := testConfig()
	cfg.Port = "not-a-port"

	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	select {
	case err := <-done:
		if err == nil {
			t.Error("Start returned nil for an unusable listen address")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Start did not surface the listen error")
	}
}
