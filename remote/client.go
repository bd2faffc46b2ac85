// CLAUDE:SUMMARY Thin authenticated bridge to the GitHub REST and GraphQL APIs over resty; no retry, no cache.
// Package remote issues authenticated calls to the GitHub API. It is a thin,
// synchronous-per-call bridge: no retries, no rate limiting, no caching.
// The token is read from a TokenSource on every call.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/hazyhaar/prquick/guard"
)

// DefaultBaseURL is the public GitHub API.
const DefaultBaseURL = "https://api.github.com"

// APIVersion is sent as X-GitHub-Api-Version.
const APIVersion = "2022-11-28"

// NoContent is returned by Call for 204 responses.
var NoContent = json.RawMessage(`{"success":true}`)

// TokenSource yields the stored credential.
type TokenSource interface {
	Get(ctx context.Context) (token string, ok bool, err error)
}

// Config configures a Client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  *slog.Logger
	// HTTPClient overrides the transport (tests).
	HTTPClient *http.Client
}

func (c *Config) defaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Client talks to one GitHub API host.
type Client struct {
	cfg    Config
	tokens TokenSource
	http   *resty.Client
}

// New creates a Client reading its token from tokens.
func New(cfg Config, tokens TokenSource) *Client {
	cfg.defaults()
	var rc *resty.Client
	if cfg.HTTPClient != nil {
		rc = resty.NewWithClient(cfg.HTTPClient)
	} else {
		rc = resty.New()
	}
	rc.SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/vnd.github.v3+json").
		SetHeader("Content-Type", "application/json").
		SetHeader("X-GitHub-Api-Version", APIVersion).
		SetHeader("User-Agent", "prquick")
	return &Client{cfg: cfg, tokens: tokens, http: rc}
}

// Call issues a REST request. endpoint is either a path relative to the base
// URL ("/repos/o/r/pulls/1") or an absolute https URL. body, when non-nil, is
// sent as JSON. A 204 answer returns NoContent without reading the body.
func (c *Client) Call(ctx context.Context, method, endpoint string, body any) (json.RawMessage, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, token, method, endpoint, body)
}

// Query posts a GraphQL document. A response carrying errors[] fails with
// the first error's message.
func (c *Client) Query(ctx context.Context, document string, variables map[string]any) (json.RawMessage, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}
	if variables == nil {
		variables = map[string]any{}
	}
	raw, err := c.do(ctx, token, http.MethodPost, "/graphql", map[string]any{
		"query":     document,
		"variables": variables,
	})
	if err != nil {
		return nil, err
	}

	var env struct {
		Data   json.RawMessage `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("remote: decode graphql response: %w", err)
	}
	if len(env.Errors) > 0 {
		msg := env.Errors[0].Message
		if msg == "" {
			msg = "GraphQL error"
		}
		return nil, &APIError{Status: http.StatusOK, Message: msg}
	}
	return env.Data, nil
}

// Viewer checks a candidate token (not the stored one) against GET /user and
// returns the login it belongs to.
func (c *Client) Viewer(ctx context.Context, token string) (string, error) {
	raw, err := c.do(ctx, token, http.MethodGet, "/user", nil)
	if err != nil {
		return "", err
	}
	var u struct {
		Login string `json:"login"`
	}
	if err := json.Unmarshal(raw, &u); err != nil {
		return "", fmt.Errorf("remote: decode user: %w", err)
	}
	return u.Login, nil
}

func (c *Client) token(ctx context.Context) (string, error) {
	token, ok, err := c.tokens.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("remote: read credential: %w", err)
	}
	if !ok || token == "" {
		return "", ErrNoCredential
	}
	return token, nil
}

func (c *Client) do(ctx context.Context, token, method, endpoint string, body any) (json.RawMessage, error) {
	req := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetDoNotParseResponse(true)
	if body != nil {
		req.SetBody(body)
	}

	start := time.Now()
	resp, err := req.Execute(method, endpoint)
	if err != nil {
		return nil, fmt.Errorf("remote: %s %s: %w", method, endpoint, err)
	}
	raw := resp.RawBody()
	if raw == nil {
		return nil, fmt.Errorf("remote: %s %s: empty response", method, endpoint)
	}
	defer raw.Close()

	status := resp.StatusCode()
	c.cfg.Logger.DebugContext(ctx, "remote: call",
		"method", method, "endpoint", endpoint,
		"status", status, "duration_ms", time.Since(start).Milliseconds())

	if status == http.StatusNoContent {
		return NoContent, nil
	}

	data, err := guard.LimitedReadAll(raw, guard.MaxResponseBody)
	if err != nil {
		return nil, fmt.Errorf("remote: read body: %w", err)
	}

	if status < 200 || status >= 300 {
		var e struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(data, &e)
		return nil, newAPIError(status, e.Message)
	}
	if len(data) == 0 {
		return NoContent, nil
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("remote: %s %s: response is not JSON (status %d)", method, endpoint, status)
	}
	return json.RawMessage(data), nil
}
