package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/onnwee/secret-relay/internal/config"
	"github.com/onnwee/secret-relay/internal/httpx"
)

// Secret is the upstream's representation of one secret. Value travels
// base64-encoded in JSON.
type Secret struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Value []byte `json:"value"`
}

// Client talks to the upstream secret service. All failures surface as
// *Error, already classified.
type Client struct {
	baseURL   string
	userAgent string
	session   *Session
	client    *http.Client
}

// NewClient builds a client that authenticates through session.
func NewClient(cfg *config.Config, session *Session) *Client {
	return &Client{
		baseURL:   cfg.UpstreamBaseURL,
		userAgent: cfg.UserAgent,
		session:   session,
		client:    &http.Client{Timeout: cfg.UpstreamTimeout},
	}
}

// FetchSecret retrieves one secret by identifier. Requests go through the
// shared retrying helper with the client-side rate gate applied before each
// attempt.
func (c *Client) FetchSecret(ctx context.Context, id string) (*Secret, error) {
	token, err := c.session.Token(ctx)
	if err != nil {
		return nil, ClassifyError(err)
	}

	endpoint := fmt.Sprintf("%s/v1/secrets/%s", c.baseURL, id)
	build := func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")
		return req, nil
	}
	pre := func(ctx context.Context, attempt int) error {
		return waitForRateLimit(ctx)
	}

	resp, err := httpx.DoWithRetryFactory(c.client, build, pre)
	if err != nil {
		return nil, ClassifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ClassifyResponse(resp)
	}

	var secret Secret
	if err := json.NewDecoder(resp.Body).Decode(&secret); err != nil {
		return nil, &Error{Class: ClassUnknown, Message: "malformed upstream payload: " + err.Error()}
	}
	if secret.ID == "" {
		secret.ID = id
	}
	return &secret, nil
}

// Ping checks upstream reachability. It bypasses the retry helper — probes
// answer with whatever one attempt sees.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/ping", nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return ClassifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ClassifyResponse(resp)
	}
	return nil
}
