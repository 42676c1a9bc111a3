package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"p2p-desk/config"
	"p2p-desk/internal/core/domain"
	"p2p-desk/internal/core/ports"

	"github.com/rs/zerolog"
)

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 4 << 20

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client implements ports.Gateway against the trading REST API.
type Client struct {
	baseURL *url.URL
	http    HTTPClient
	log     zerolog.Logger
}

// NewClient creates a trading API client. A nil httpClient gets a default
// client with the configured timeout.
func NewClient(cfg config.RemoteConfig, httpClient HTTPClient, log zerolog.Logger) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing remote base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("remote base url %q must be absolute", cfg.BaseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{baseURL: base, http: httpClient, log: log}, nil
}

// Do sends req with the bearer token of req.Role and normalises the answer.
//
// A 401 on an authenticated call clears that role's token and nothing else.
// Network failures, 5xx and unreadable bodies come back as transient
// envelopes. The only errors returned are context cancellation, credential
// storage failures and malformed requests.
func (c *Client) Do(ctx context.Context, creds ports.Credentials, req ports.RemoteRequest) (*ports.Envelope, error) {
	if req.Role == "" {
		req.Role = domain.RoleUser
	}

	var token string
	if !req.Public {
		if creds == nil {
			return unauthenticated(req.Role), nil
		}
		t, err := creds.Token(ctx, req.Role)
		if err != nil {
			return nil, err
		}
		if t == "" {
			return unauthenticated(req.Role), nil
		}
		token = t
	}

	httpReq, err := c.newRequest(ctx, req, token)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.log.Warn().Err(err).
			Str("method", httpReq.Method).
			Str("path", req.Path).
			Str("role", string(req.Role)).
			Msg("remote call failed")
		env := transient(&ports.Envelope{}, msgNetwork)
		env.Role = req.Role
		return env, nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		env := transient(&ports.Envelope{Status: resp.StatusCode}, msgNetwork)
		env.Role = req.Role
		return env, nil
	}

	c.log.Debug().
		Str("method", httpReq.Method).
		Str("path", req.Path).
		Str("role", string(req.Role)).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("remote call")

	if resp.StatusCode == http.StatusUnauthorized && !req.Public {
		if err := creds.Clear(ctx, req.Role); err != nil {
			c.log.Error().Err(err).Str("role", string(req.Role)).Msg("failed to clear rejected token")
		}
		env := unauthenticated(req.Role)
		env.Status = resp.StatusCode
		return env, nil
	}

	env := normalize(resp.StatusCode, body)
	env.Role = req.Role
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	return env, nil
}

func (c *Client) newRequest(ctx context.Context, req ports.RemoteRequest, token string) (*http.Request, error) {
	rel, err := url.Parse(req.Path)
	if err != nil {
		return nil, fmt.Errorf("parsing remote path %q: %w", req.Path, err)
	}
	if rel.IsAbs() || rel.Host != "" {
		return nil, fmt.Errorf("remote path %q must be relative", req.Path)
	}
	u := c.baseURL.ResolveReference(rel)
	if len(req.Query) > 0 {
		u.RawQuery = req.Query.Encode()
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encoding %s body: %w", req.Path, err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("building %s request: %w", req.Path, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	return httpReq, nil
}

func unauthenticated(role domain.Role) *ports.Envelope {
	return &ports.Envelope{
		Failure: ports.FailureUnauthenticated,
		Message: "Session expired, please sign in again.",
		Role:    role,
	}
}

// HealthCheck implements ports.HealthChecker for the trading API. Any HTTP
// answer counts as reachable.
type HealthCheck struct {
	client *Client
}

// NewHealthCheck creates a trading API health checker.
func NewHealthCheck(client *Client) *HealthCheck {
	return &HealthCheck{client: client}
}

// Ping issues a GET against the base URL.
func (h *HealthCheck) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.client.baseURL.String(), nil)
	if err != nil {
		return err
	}
	resp, err := h.client.http.Do(req)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<10))
	return resp.Body.Close()
}

// Name returns the dependency name.
func (h *HealthCheck) Name() string {
	return "trading-api"
}
