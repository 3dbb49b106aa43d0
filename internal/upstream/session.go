package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/onnwee/secret-relay/internal/config"
	"github.com/onnwee/secret-relay/internal/httpx"
	"github.com/onnwee/secret-relay/internal/logger"
	"github.com/onnwee/secret-relay/internal/metrics"
	"github.com/onnwee/secret-relay/internal/secrets"
)

// Session holds the upstream bearer token and re-authenticates on demand.
//
// Two refresh paths exist: Token refreshes synchronously (double-checked
// under the write lock) when the cached token is missing or expired, and
// TriggerReauth runs a single background attempt after an auth-classified
// failure. At most one background attempt is ever in flight.
type Session struct {
	mu     sync.RWMutex
	token  string
	expiry time.Time

	baseURL      string
	clientID     string
	clientSecret string
	userAgent    string
	timeout      time.Duration

	client        *http.Client
	reauthRunning atomic.Bool
	log           *slog.Logger

	// now is swappable in tests
	now func() time.Time
}

// NewSession builds a session from config. No I/O happens here; call
// Authenticate to establish the first token.
func NewSession(cfg *config.Config) *Session {
	return &Session{
		baseURL:      cfg.UpstreamBaseURL,
		clientID:     cfg.UpstreamClientID,
		clientSecret: cfg.UpstreamClientSecret,
		userAgent:    cfg.UserAgent,
		timeout:      cfg.UpstreamTimeout,
		client:       &http.Client{Timeout: cfg.UpstreamTimeout},
		log:          logger.WithComponent("session"),
		now:          time.Now,
	}
}

// Authenticate performs a synchronous credential exchange with the upstream.
func (s *Session) Authenticate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticateLocked(ctx)
}

// Token returns a valid bearer token, refreshing synchronously when the
// cached one is missing or expired.
func (s *Session) Token(ctx context.Context) (string, error) {
	s.mu.RLock()
	if s.token != "" && s.now().Before(s.expiry) {
		token := s.token
		s.mu.RUnlock()
		return token, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check after acquiring the write lock (another goroutine may
	// have refreshed).
	if s.token != "" && s.now().Before(s.expiry) {
		return s.token, nil
	}
	if err := s.authenticateLocked(ctx); err != nil {
		return "", err
	}
	return s.token, nil
}

// Ready reports whether a non-expired token is held.
func (s *Session) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != "" && s.now().Before(s.expiry)
}

// TriggerReauth spawns one background re-authentication. Concurrent triggers
// while an attempt is in flight are no-ops, and the caller never waits.
func (s *Session) TriggerReauth(reason string) {
	if !s.reauthRunning.CompareAndSwap(false, true) {
		return
	}

	s.log.Info("triggering background re-authentication", "reason", reason)
	go func() {
		defer s.reauthRunning.Store(false)

		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		if err := s.Authenticate(ctx); err != nil {
			metrics.SessionReauthsTotal.WithLabelValues("failure").Inc()
			s.log.Error("background re-authentication failed", "error", err)
			return
		}
		metrics.SessionReauthsTotal.WithLabelValues("success").Inc()
		s.log.Info("background re-authentication succeeded")
	}()
}

// ReauthInProgress reports whether a background re-authentication is
// currently running.
func (s *Session) ReauthInProgress() bool {
	return s.reauthRunning.Load()
}

// authenticateLocked exchanges credentials for a token. Callers hold mu.
func (s *Session) authenticateLocked(ctx context.Context) error {
	if s.clientID == "" || s.clientSecret == "" {
		return fmt.Errorf("upstream credentials not configured")
	}

	data := url.Values{}
	data.Set("grant_type", "client_credentials")

	endpoint := s.baseURL + "/v1/session"
	build := func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
		if err != nil {
			return nil, err
		}
		req.SetBasicAuth(s.clientID, s.clientSecret)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("User-Agent", s.userAgent)
		return req, nil
	}
	// Session requests respect the same pacing as secret fetches so retry
	// bursts never exceed the upstream budget.
	pre := func(ctx context.Context, attempt int) error {
		return waitForRateLimit(ctx)
	}

	resp, err := httpx.DoWithRetryFactory(s.client, build, pre)
	if err != nil {
		metrics.SessionReady.Set(0)
		s.log.Error("session request failed", "error", err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.SessionReady.Set(0)
		s.log.Error("session request rejected", "status", resp.Status)
		return fmt.Errorf("session request failed: %s", resp.Status)
	}

	var sessionResp struct {
		Token     string `json:"token"`
		ExpiresIn int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&sessionResp); err != nil {
		metrics.SessionReady.Set(0)
		return fmt.Errorf("decode session response: %w", err)
	}
	if sessionResp.Token == "" {
		metrics.SessionReady.Set(0)
		return fmt.Errorf("received empty session token")
	}

	// Renew ahead of the upstream's deadline: 60s early for normal
	// lifetimes, at half-life for very short ones.
	lifetime := time.Duration(sessionResp.ExpiresIn) * time.Second
	if lifetime > 120*time.Second {
		lifetime -= 60 * time.Second
	} else {
		lifetime = lifetime / 2
	}

	s.token = sessionResp.Token
	s.expiry = s.now().Add(lifetime)

	metrics.SessionReady.Set(1)
	s.log.Info("session established",
		"client_id", secrets.Mask(s.clientID),
		"expires_in", lifetime.String())
	return nil
}
