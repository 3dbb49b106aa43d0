package config

import (
	"os"
	"strings"
	"time"

	"github.com/onnwee/secret-relay/internal/utils"
)

// Config holds application configuration derived from environment variables.
type Config struct {
	UserAgent      string
	HTTPMaxRetries int
	HTTPRetryBase  time.Duration
	LogHTTPRetries bool
	// Upstream secret service connection
	UpstreamBaseURL      string
	UpstreamClientID     string
	UpstreamClientSecret string
	UpstreamTimeout      time.Duration
	UpstreamRPS          float64 // requests per second to the upstream (0 = unlimited)
	UpstreamBurstSize    int     // burst size for the upstream rate gate
	// Cache settings
	CacheTTL      time.Duration
	CacheEngine   string // "memory" (unbounded map) or "lru" (ristretto-backed)
	CacheMaxSize  int64  // max cache size in MB (lru engine)
	CacheMaxItems int64  // max tracked entries (lru engine)
	SweepSchedule string // cron expression for background expiry sweeps ("" disables)
	// Circuit breaker settings
	BreakerFailureThreshold int
	BreakerCooldown         time.Duration
	// Retrieval settings
	MaxBatchSize int
	// HTTP server settings
	Port            string
	ShutdownTimeout time.Duration
	// Admin API token for gating admin endpoints (Bearer token)
	AdminAPIToken string
	// Security settings
	RateLimitGlobal      float64  // requests per second globally
	RateLimitGlobalBurst int      // burst size for global rate limit
	RateLimitPerIP       float64  // requests per second per IP
	RateLimitPerIPBurst  int      // burst size for per-IP rate limit
	CORSAllowedOrigins   []string // allowed CORS origins
	EnableRateLimit      bool     // enable rate limiting middleware
	// Observability settings
	LogLevel          string  // log level: debug, info, warn, error
	OTELEnabled       bool    // enable OpenTelemetry tracing
	OTELEndpoint      string  // OpenTelemetry collector endpoint
	OTELSampleRate    float64 // trace sampling rate (0.0 to 1.0)
	SentryDSN         string  // Sentry DSN for error reporting
	SentryEnvironment string  // Sentry environment (dev, staging, production)
	SentryRelease     string  // Sentry release version
	SentrySampleRate  float64 // Sentry error sampling rate (0.0 to 1.0)
}

var cached *Config

// Load reads env vars once and caches them.
func Load() *Config {
	if cached != nil {
		return cached
	}
	ua := os.Getenv("USER_AGENT")
	if strings.TrimSpace(ua) == "" {
		ua = "secret-relay/0.1"
	}
	cached = &Config{
		UserAgent:            ua,
		HTTPMaxRetries:       utils.GetEnvAsInt("HTTP_MAX_RETRIES", 3),
		HTTPRetryBase:        time.Duration(utils.GetEnvAsInt("HTTP_RETRY_BASE_MS", 300)) * time.Millisecond,
		LogHTTPRetries:       utils.GetEnvAsBool("LOG_HTTP_RETRIES", false),
		UpstreamBaseURL:      strings.TrimRight(strings.TrimSpace(os.Getenv("UPSTREAM_BASE_URL")), "/"),
		UpstreamClientID:     strings.TrimSpace(os.Getenv("UPSTREAM_CLIENT_ID")),
		UpstreamClientSecret: strings.TrimSpace(os.Getenv("UPSTREAM_CLIENT_SECRET")),
		UpstreamTimeout:      time.Duration(utils.GetEnvAsInt("UPSTREAM_TIMEOUT_MS", 15000)) * time.Millisecond,
		UpstreamRPS:          utils.GetEnvAsFloat("UPSTREAM_RPS", 0),
		UpstreamBurstSize:    utils.GetEnvAsInt("UPSTREAM_BURST_SIZE", 1),
		// Cache: five-minute freshness by default; entries linger for stale
		// service until swept or overwritten.
		CacheTTL:      time.Duration(utils.GetEnvAsInt("CACHE_TTL_MS", 300000)) * time.Millisecond,
		CacheEngine:   strings.ToLower(strings.TrimSpace(os.Getenv("CACHE_ENGINE"))),
		CacheMaxSize:  int64(utils.GetEnvAsInt("CACHE_MAX_SIZE_MB", 64)),
		CacheMaxItems: int64(utils.GetEnvAsInt("CACHE_MAX_ENTRIES", 10000)),
		SweepSchedule: strings.TrimSpace(os.Getenv("CACHE_SWEEP_SCHEDULE")),
		// Breaker: five consecutive failures trip it, thirty seconds of
		// cooldown before a half-open probe.
		BreakerFailureThreshold: utils.GetEnvAsInt("BREAKER_FAILURE_THRESHOLD", 5),
		BreakerCooldown:         time.Duration(utils.GetEnvAsInt("BREAKER_COOLDOWN_MS", 30000)) * time.Millisecond,
		MaxBatchSize:            utils.GetEnvAsInt("MAX_BATCH_SIZE", 100),
		Port:                    strings.TrimSpace(os.Getenv("PORT")),
		ShutdownTimeout:         time.Duration(utils.GetEnvAsInt("SHUTDOWN_TIMEOUT_MS", 10000)) * time.Millisecond,
		AdminAPIToken:           strings.TrimSpace(os.Getenv("ADMIN_API_TOKEN")),
		// Security settings with sensible defaults
		RateLimitGlobal:      utils.GetEnvAsFloat("RATE_LIMIT_GLOBAL", 100.0),
		RateLimitGlobalBurst: utils.GetEnvAsInt("RATE_LIMIT_GLOBAL_BURST", 200),
		RateLimitPerIP:       utils.GetEnvAsFloat("RATE_LIMIT_PER_IP", 10.0),
		RateLimitPerIPBurst:  utils.GetEnvAsInt("RATE_LIMIT_PER_IP_BURST", 20),
		EnableRateLimit:      utils.GetEnvAsBool("ENABLE_RATE_LIMIT", true),
		// Observability settings
		LogLevel:          strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL"))),
		OTELEnabled:       utils.GetEnvAsBool("OTEL_ENABLED", false),
		OTELEndpoint:      strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
		OTELSampleRate:    utils.GetEnvAsFloat("OTEL_TRACE_SAMPLE_RATE", 0.1),
		SentryDSN:         strings.TrimSpace(os.Getenv("SENTRY_DSN")),
		SentryEnvironment: strings.TrimSpace(os.Getenv("SENTRY_ENVIRONMENT")),
		SentryRelease:     strings.TrimSpace(os.Getenv("SENTRY_RELEASE")),
		SentrySampleRate:  utils.GetEnvAsFloat("SENTRY_SAMPLE_RATE", 1.0),
	}
	if cached.CacheEngine == "" {
		cached.CacheEngine = "memory"
	}
	if cached.Port == "" {
		cached.Port = "8000"
	}
	if cached.LogLevel == "" {
		cached.LogLevel = "info"
	}
	if cached.SentryEnvironment == "" {
		if env := os.Getenv("ENV"); env != "" {
			cached.SentryEnvironment = env
		} else {
			cached.SentryEnvironment = "development"
		}
	}

	// Parse CORS allowed origins
	corsOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if corsOrigins == "" {
		// Default to common development origins
		cached.CORSAllowedOrigins = []string{"http://localhost:5173", "http://localhost:3000"}
	} else {
		cached.CORSAllowedOrigins = strings.Split(corsOrigins, ",")
		for i := range cached.CORSAllowedOrigins {
			cached.CORSAllowedOrigins[i] = strings.TrimSpace(cached.CORSAllowedOrigins[i])
		}
	}

	return cached
}

// ResetForTest clears cached config; for use in tests only.
func ResetForTest() { cached = nil }

// GetEnvBool reads a boolean environment variable with a default.
// Use this when you need to check a flag not present in the cached config.
func (c *Config) GetEnvBool(key string, def bool) bool {
	return utils.GetEnvAsBool(key, def)
}
