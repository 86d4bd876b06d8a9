// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jeranaias/aichat/internal/config"
	"github.com/jeranaias/aichat/internal/model"
	"github.com/jeranaias/aichat/internal/stream"
)

const (
	// DefaultUserAgent is sent with every request.
	DefaultUserAgent = "aichat/0.1.0"

	// MaxResponseSize limits non-streaming response bodies.
	MaxResponseSize = 10 * 1024 * 1024

	// maxErrorBodySize limits the body kept in an HTTPError.
	maxErrorBodySize = 64 * 1024
)

// sharedTransport is used for every request without a proxy. Streaming
// requests have no client timeout; the caller's context controls them.
var sharedTransport = &http.Transport{
	MaxIdleConns:        10,
	MaxIdleConnsPerHost: 2,
	IdleConnTimeout:     90 * time.Second,
	TLSHandshakeTimeout: 10 * time.Second,
	TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
}

// Error variables for request failures.
var (
	// ErrUnresolvedInclude is returned when a payload still holds an include
	// message.
	ErrUnresolvedInclude = errors.New("unresolved include message")

	// ErrAuthFailed matches HTTP 401 and 403 responses.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrRateLimited matches HTTP 429 responses.
	ErrRateLimited = errors.New("rate limited")
)

// =============================================================================
// REQUEST / RESPONSE TYPES
// =============================================================================

// ChatRequest is the request payload.
type ChatRequest struct {
	Model       string          `json:"model"`
	Messages    []model.Message `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature"`
	Stream      bool            `json:"stream"`
}

// NewChatRequest builds the payload for msgs from the effective options.
func NewChatRequest(e config.Engine, msgs []model.Message) ChatRequest {
	return ChatRequest{
		Model:       e.Model,
		Messages:    msgs,
		MaxTokens:   e.MaxTokens,
		Temperature: e.Temperature,
		Stream:      e.Stream,
	}
}

// HTTPError is a non-2xx response.
type HTTPError struct {
	Status     int
	StatusText string
	// Message is the API's error message when the body carried one.
	Message string
	Body    string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("HTTPError %d: %s: %s", e.Status, e.StatusText, e.Message)
	}
	return fmt.Sprintf("HTTPError %d: %s", e.Status, e.StatusText)
}

// Is maps well-known statuses to the package's sentinel errors.
func (e *HTTPError) Is(target error) bool {
	switch target {
	case ErrAuthFailed:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	case ErrRateLimited:
		return e.Status == http.StatusTooManyRequests
	}
	return false
}

// apiErrorResponse is the error body of OpenAI-compatible APIs.
type apiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// =============================================================================
// CLIENT
// =============================================================================

// Client sends chat-completion requests. It is safe for concurrent use.
type Client struct {
	logger    *slog.Logger
	transport http.RoundTripper
	userAgent string
}

// NewClient creates a client. A nil logger uses slog.Default().
func NewClient(logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		logger:    logger.With("component", "cloud"),
		transport: sharedTransport,
		userAgent: DefaultUserAgent,
	}
}

// WithTransport sets the transport used for requests without a proxy.
func (c *Client) WithTransport(rt http.RoundTripper) *Client {
	c.transport = rt
	return c
}

// WithUserAgent sets the User-Agent header.
func (c *Client) WithUserAgent(ua string) *Client {
	c.userAgent = ua
	return c
}

// Stream sends req to e.EndpointURL and returns a decoder over the response.
// The caller must close the decoder. Canceling ctx aborts the request and
// ends the decoder.
//
// Errors: config.ErrMissingAPIKey when authentication is required and no
// token is available, ErrUnresolvedInclude, *HTTPError for non-2xx
// responses, and transport errors.
func (c *Client) Stream(ctx context.Context, e config.Engine, req ChatRequest) (*stream.Decoder, error) {
	for _, msg := range req.Messages {
		if !msg.Role.Sendable() {
			return nil, fmt.Errorf("%w: role %q", ErrUnresolvedInclude, msg.Role)
		}
	}

	var token config.Token
	if e.RequiresAuth {
		t, err := config.ReadToken(e.TokenPath)
		if err != nil {
			return nil, err
		}
		token = t
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.EndpointURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq, token)

	client, err := c.httpClient(e.Proxy)
	if err != nil {
		return nil, err
	}

	c.logRequest(httpReq)
	start := time.Now()
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	c.logResponse(resp, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, newHTTPError(resp)
	}

	if !req.Stream {
		defer resp.Body.Close()
		return completeBody(ctx, resp)
	}
	return stream.NewDecoder(ctx, resp.Body), nil
}

// setHeaders sets the request headers. The token is only sent when present.
func (c *Client) setHeaders(req *http.Request, token config.Token) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("User-Agent", c.userAgent)
	if token.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+token.APIKey)
	}
	if token.OrgID != "" {
		req.Header.Set("OpenAI-Organization", token.OrgID)
	}
}

// httpClient returns a client for one request. A proxy gets its own
// transport that is not shared with other requests.
func (c *Client) httpClient(proxy string) (*http.Client, error) {
	if proxy == "" {
		return &http.Client{Transport: c.transport}, nil
	}
	proxyURL, err := url.Parse(proxy)
	if err != nil || proxyURL.Host == "" {
		return nil, fmt.Errorf("invalid proxy URL %q", proxy)
	}
	return &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyURL(proxyURL),
			DisableKeepAlives:   true,
			TLSHandshakeTimeout: 10 * time.Second,
			TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
		},
	}, nil
}

// logRequest logs the method and path only. Headers carry the API key and
// bodies carry the conversation.
func (c *Client) logRequest(req *http.Request) {
	c.logger.Debug("api request", "method", req.Method, "host", req.URL.Host, "path", req.URL.Path)
}

// logResponse logs the status and duration only.
func (c *Client) logResponse(resp *http.Response, duration time.Duration) {
	c.logger.Debug("api response", "status", resp.StatusCode, "duration", duration)
}

func newHTTPError(resp *http.Response) *HTTPError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	herr := &HTTPError{
		Status:     resp.StatusCode,
		StatusText: http.StatusText(resp.StatusCode),
		Body:       string(body),
	}
	var apiErr apiErrorResponse
	if json.Unmarshal(body, &apiErr) == nil {
		herr.Message = apiErr.Error.Message
	}
	return herr
}

// completeBody reads a non-streaming response and returns a decoder over it
// as a single line.
func completeBody(ctx context.Context, resp *http.Response) (*stream.Decoder, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(body) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, body); err != nil {
		// Let the decoder report it.
		return stream.NewDecoder(ctx, strings.NewReader(string(body))), nil
	}
	compact.WriteByte('\n')
	return stream.NewDecoder(ctx, &compact), nil
}
