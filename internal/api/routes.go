package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/onnwee/secret-relay/internal/api/handlers"
	"github.com/onnwee/secret-relay/internal/apierr"
	"github.com/onnwee/secret-relay/internal/cache"
	"github.com/onnwee/secret-relay/internal/circuitbreaker"
	"github.com/onnwee/secret-relay/internal/config"
	"github.com/onnwee/secret-relay/internal/health"
	"github.com/onnwee/secret-relay/internal/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the wired collaborators the router serves. RateLimiter is
// optional; nil disables rate limiting. The caller owns every lifecycle
// here (hub, limiter), the router only routes.
type Deps struct {
	Config      *config.Config
	Retriever   handlers.Retriever
	Checker     *health.Checker
	Cache       cache.Cache
	Breaker     *circuitbreaker.CircuitBreaker
	Session     handlers.Reauther
	Hub         *handlers.Hub
	RateLimiter *middleware.RateLimiter
}

// NewRouter builds the relay's full HTTP surface.
func NewRouter(deps Deps) http.Handler {
	r := mux.NewRouter()

	// These two need the matched route, so they ride the mux middleware
	// chain instead of the outer one.
	r.Use(middleware.Metrics)
	r.Use(middleware.Compress)

	// Bare liveness and Prometheus exposition live outside /api
	r.HandleFunc("/health", handlers.Health).Methods("GET")

	// Compress negotiates the encoding for every route, so the exposition
	// handler must not gzip on its own underneath it.
	r.Handle("/metrics", promhttp.InstrumentMetricHandler(
		prometheus.DefaultRegisterer,
		promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
			DisableCompression: true,
		}),
	)).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	secrets := handlers.NewSecretsHandler(deps.Retriever)
	api.HandleFunc("/secrets/batch", secrets.BatchSecrets).Methods("POST")
	api.HandleFunc("/secrets/{id}", secrets.GetSecret).Methods("GET")

	healthH := handlers.NewHealthHandler(deps.Checker)
	api.HandleFunc("/health", healthH.GetHealth).Methods("GET")

	events := handlers.NewEventsHandler(deps.Hub)
	api.HandleFunc("/events/ws", events.HandleEvents).Methods("GET")

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(adminOnly(deps.Config))

	cacheAdmin := handlers.NewCacheAdminHandler(deps.Cache)
	admin.HandleFunc("/cache/invalidate", cacheAdmin.InvalidateCache).Methods("POST")
	admin.HandleFunc("/cache/stats", cacheAdmin.GetCacheStats).Methods("GET")

	breakerAdmin := handlers.NewBreakerAdminHandler(deps.Breaker)
	admin.HandleFunc("/breaker", breakerAdmin.GetBreaker).Methods("GET")
	admin.HandleFunc("/breaker/reset", breakerAdmin.ResetBreaker).Methods("POST")

	sessionAdmin := handlers.NewSessionAdminHandler(deps.Session)
	admin.HandleFunc("/session/reauth", sessionAdmin.Reauth).Methods("POST")

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		apierr.WriteErrorWithContext(w, req, apierr.ResourceNotFound("endpoint"))
	})

	// Outer chain, outermost first. These run for every request, matched
	// route or not.
	var handler http.Handler = r
	handler = middleware.ValidateRequestBody(handler)
	if deps.RateLimiter != nil {
		handler = deps.RateLimiter.Limit(handler)
	}
	handler = middleware.CORS(corsConfig(deps.Config))(handler)
	handler = middleware.SecurityHeaders(handler)
	handler = middleware.RecoverWithSentry(handler)
	handler = middleware.RequestID(handler)
	return handler
}

// adminOnly gates the admin subrouter behind the configured Bearer token.
// The gate answers in plain text on purpose: it sits in front of the JSON
// surface, and a misconfigured token should be obvious in a terminal.
func adminOnly(cfg *config.Config) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.AdminAPIToken == "" {
				http.Error(w, "admin token not configured", http.StatusServiceUnavailable)
				return
			}
			auth := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if len(auth) <= len(prefix) || auth[:len(prefix)] != prefix || auth[len(prefix):] != cfg.AdminAPIToken {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func corsConfig(cfg *config.Config) *middleware.CORSConfig {
	corsCfg := middleware.DefaultCORSConfig()
	if len(cfg.CORSAllowedOrigins) > 0 {
		corsCfg.AllowedOrigins = cfg.CORSAllowedOrigins
	}
	return corsCfg
}
