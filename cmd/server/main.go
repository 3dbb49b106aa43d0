package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/onnwee/secret-relay/internal/config"
	"github.com/onnwee/secret-relay/internal/errorreporting"
	"github.com/onnwee/secret-relay/internal/logger"
	"github.com/onnwee/secret-relay/internal/secrets"
	"github.com/onnwee/secret-relay/internal/server"
	"github.com/onnwee/secret-relay/internal/tracing"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (falling back to system env)")
	}

	cfg := config.Load()

	// Initialize structured logging
	logger.Init(cfg.LogLevel)
	logger.Info("Initializing secret relay",
		"log_level", cfg.LogLevel,
		"cache_engine", cfg.CacheEngine,
		"port", cfg.Port)

	if err := secrets.ValidateRequired(map[string]string{
		"UPSTREAM_BASE_URL":      cfg.UpstreamBaseURL,
		"UPSTREAM_CLIENT_ID":     cfg.UpstreamClientID,
		"UPSTREAM_CLIENT_SECRET": cfg.UpstreamClientSecret,
	}); err != nil {
		logger.Error("Configuration invalid", "error", err)
		log.Fatalf("Configuration invalid: %v", err)
	}

	// Initialize error reporting
	if err := errorreporting.Init(cfg.SentryEnvironment); err != nil {
		logger.Warn("Failed to initialize error reporting", "error", err)
	} else if errorreporting.IsSentryEnabled() {
		logger.Info("Error reporting initialized", "environment", cfg.SentryEnvironment)
		defer func() {
			logger.Info("Flushing error reports...")
			errorreporting.Flush(2 * time.Second)
		}()
	}

	// Initialize tracing
	shutdownTracing, err := tracing.Init("secret-relay")
	if err != nil {
		logger.Warn("Failed to initialize tracing", "error", err)
	} else if cfg.OTELEnabled {
		logger.Info("Tracing initialized", "endpoint", cfg.OTELEndpoint, "sample_rate", cfg.OTELSampleRate)
		defer func() {
			logger.Info("Shutting down tracer...")
			if err := shutdownTracing(context.Background()); err != nil {
				logger.Error("Failed to shutdown tracer", "error", err)
			}
		}()
	}

	srv, err := server.New(cfg)
	if err != nil {
		logger.Error("Failed to compose server", "error", err)
		log.Fatalf("Failed to compose server: %v", err)
	}

	// Create context that can be cancelled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Received shutdown signal")
		cancel()
	}()

	if err := srv.Start(ctx); err != nil {
		logger.Error("Server exited with error", "error", err)
		log.Fatalf("Server exited with error: %v", err)
	}
	logger.Info("Server stopped")
}
