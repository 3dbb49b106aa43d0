package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Retrieval metrics
	RetrievalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retrievals_total",
			Help: "Total number of secret retrievals served",
		},
		[]string{"source"}, // source: cache, upstream, stale
	)

	RetrievalErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retrieval_errors_total",
			Help: "Total number of failed secret retrievals",
		},
		[]string{"reason"}, // reason: invalid_identifier, not_found, auth, timeout, unreachable, rate_limited, suspended, session_not_ready, unknown
	)

	RetrievalDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "retrieval_duration_seconds",
			Help:    "Duration of secret retrievals in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	// Upstream HTTP client metrics
	UpstreamHTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_http_requests_total",
			Help: "Total number of HTTP requests made to the upstream secret service",
		},
		[]string{"status"}, // status: success, retry, failure
	)

	UpstreamHTTPRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "upstream_http_retries_total",
			Help: "Total number of upstream HTTP request retries",
		},
	)

	UpstreamRateLimitWaits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "upstream_rate_limit_waits_total",
			Help: "Total number of times the client waited for the upstream rate gate",
		},
	)

	UpstreamRetryAfterWaits = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "upstream_retry_after_wait_seconds",
			Help:    "Duration of Retry-After waits in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	// Session metrics
	SessionReauthsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_reauths_total",
			Help: "Total number of upstream re-authentication attempts",
		},
		[]string{"status"}, // status: success, failure
	)

	SessionReady = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "session_ready",
			Help: "Whether a valid upstream session is held (1=ready, 0=not ready)",
		},
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"component"},
	)

	CircuitBreakerTrips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_trips_total",
			Help: "Total number of circuit breaker trips",
		},
		[]string{"component"},
	)

	// Cache metrics
	CacheItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "secret_cache_items",
			Help: "Current number of entries in the secret cache",
		},
	)

	CacheSweepsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "secret_cache_sweeps_total",
			Help: "Total number of background expiry sweeps",
		},
	)

	CacheSweptEntries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "secret_cache_swept_entries_total",
			Help: "Total number of entries removed by background sweeps",
		},
	)

	// Health metrics
	HealthStatus = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "health_status",
			Help: "Aggregated health status (0=ok, 1=degraded, 2=unavailable)",
		},
	)

	// API request metrics
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"endpoint", "method", "status"},
	)

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"endpoint", "method", "status"},
	)

	// Metrics collection error tracking
	MetricsCollectionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metrics_collection_errors_total",
			Help: "Total number of errors during metrics collection",
		},
		[]string{"collector"}, // collector: cache, session, health
	)

	// WebSocket metrics
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections_active",
			Help: "Number of active WebSocket connections",
		},
	)

	WebSocketMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent to clients",
		},
	)
)
