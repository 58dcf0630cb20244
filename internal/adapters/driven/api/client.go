// Package api calls the connection endpoints of a sercha-connect server on
// behalf of a client view.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
)

// Ensure Client implements the interface.
var _ driven.ConnectionAPI = (*Client)(nil)

// Endpoint paths served by the connection server.
const (
	PathToken      = "/connect/token"
	PathStatus     = "/connect/status"
	PathDisconnect = "/connect/disconnect"
	PathAuthorize  = "/connect/authorize"
	PathMe         = "/auth/me"
)

// maxBodyBytes bounds response bodies read from the server.
const maxBodyBytes = 1 << 20

// unreachableText is shown when the server cannot be reached.
const unreachableText = "Unable to reach the connection server"

// Options configures a Client.
type Options struct {
	// RetryMax is the number of retries for idempotent calls. The token
	// exchange is never retried.
	RetryMax int
	// Timeout bounds each attempt.
	Timeout time.Duration
	// HTTPClient overrides the underlying client.
	HTTPClient *http.Client
}

// Client is an HTTP client for the connection endpoints.
type Client struct {
	baseURL  *url.URL
	retrying *retryablehttp.Client
	once     *retryablehttp.Client
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string, opts Options) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("server url %q: %w", baseURL, domain.ErrInvalidInput)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RetryMax < 0 {
		opts.RetryMax = 0
	}

	return &Client{
		baseURL:  u,
		retrying: newRetryClient(opts, opts.RetryMax),
		once:     newRetryClient(opts, 0),
	}, nil
}

func newRetryClient(opts Options, retryMax int) *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = retryMax
	c.RetryWaitMin = 200 * time.Millisecond
	c.RetryWaitMax = 2 * time.Second
	c.Logger = leveledLogger{}
	if opts.HTTPClient != nil {
		clone := *opts.HTTPClient
		c.HTTPClient = &clone
	}
	c.HTTPClient.Timeout = opts.Timeout
	// Keep the last response so the server's error body can be read.
	c.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return c
}

// BaseURL returns the server URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// AuthorizeURL returns the server endpoint that redirects to the provider.
func (c *Client) AuthorizeURL() string {
	return c.baseURL.JoinPath(PathAuthorize).String()
}

type exchangeRequest struct {
	Code string `json:"code"`
}

type disconnectRequest struct {
	Email string `json:"email,omitempty"`
}

// errorEnvelope is the body of every non-2xx response.
type errorEnvelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"error_description"`
}

// ExchangeCode posts an authorization code for exchange.
func (c *Client) ExchangeCode(ctx context.Context, cred domain.SessionCredential, code string) (*domain.ExchangeResult, error) {
	var res domain.ExchangeResult
	if err := c.do(ctx, c.once, "exchange", http.MethodPost, PathToken, cred, exchangeRequest{Code: code}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Status reads the connection status of the session's identity.
func (c *Client) Status(ctx context.Context, cred domain.SessionCredential) (*domain.StatusResult, error) {
	var res domain.StatusResult
	if err := c.do(ctx, c.retrying, "status", http.MethodGet, PathStatus, cred, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Disconnect removes the connection of the session's identity.
func (c *Client) Disconnect(ctx context.Context, cred domain.SessionCredential, email string) (*domain.DisconnectResult, error) {
	var res domain.DisconnectResult
	body := disconnectRequest{Email: email}
	if err := c.do(ctx, c.retrying, "disconnect", http.MethodPost, PathDisconnect, cred, body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

type authorizeResponse struct {
	URL string `json:"url"`
}

// AuthorizeLink asks the server for the provider authorization URL.
func (c *Client) AuthorizeLink(ctx context.Context, cred domain.SessionCredential, state string) (string, error) {
	path := PathAuthorize
	if state != "" {
		path += "?" + url.Values{"state": {state}}.Encode()
	}
	var res authorizeResponse
	if err := c.do(ctx, c.retrying, "authorize", http.MethodGet, path, cred, nil, &res); err != nil {
		return "", err
	}
	if res.URL == "" {
		return "", &domain.TransportError{Op: "authorize", Message: "Unexpected response from the connection server"}
	}
	return res.URL, nil
}

// Identity fetches the identity the server associates with the session.
func (c *Client) Identity(ctx context.Context, cred domain.SessionCredential) (*domain.UserInfo, error) {
	var info domain.UserInfo
	if err := c.do(ctx, c.retrying, "identity", http.MethodGet, PathMe, cred, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) do(
	ctx context.Context,
	client *retryablehttp.Client,
	op, method, path string,
	cred domain.SessionCredential,
	in, out any,
) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encoding request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	rel, query, _ := strings.Cut(path, "?")
	target := c.baseURL.JoinPath(rel)
	target.RawQuery = query

	req, err := retryablehttp.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return fmt.Errorf("%s: creating request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if !cred.IsZero() {
		req.Header.Set("Authorization", "Bearer "+cred.String())
	}

	resp, err := client.Do(req)
	if err != nil {
		msg := unreachableText
		if errors.Is(err, context.DeadlineExceeded) {
			msg = "The connection server did not respond in time"
		}
		return &domain.TransportError{Op: op, Message: msg, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &domain.TransportError{Op: op, Message: unreachableText, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var env errorEnvelope
		_ = json.Unmarshal(data, &env)
		perr := &domain.ProviderError{
			Code:        env.Error,
			Description: env.Message,
			StatusCode:  resp.StatusCode,
		}
		if perr.Code == "" && perr.Description == "" {
			perr.Description = http.StatusText(resp.StatusCode)
		}
		return perr
	}

	if err := json.Unmarshal(data, out); err != nil {
		return &domain.TransportError{Op: op, Message: "Unexpected response from the connection server", Err: err}
	}
	return nil
}
