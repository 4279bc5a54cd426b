// Package transport performs the single JSON POST a run makes to its provider.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/morganross/FilePromptForge/internal/domain"
	"github.com/morganross/FilePromptForge/internal/rawjson"
)

const (
	defaultTimeout = 10 * time.Minute
	userAgent      = "fpf/1.0"

	// errorBodyLimit bounds how much of a failed response body ends up in messages.
	errorBodyLimit = 2048
)

// ClientOption configures the client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout bounds each request. Zero disables the bound.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// Client posts JSON payloads and returns the raw JSON response.
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
}

// NewClient creates a client whose default transport is traced with otelhttp.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		timeout:    defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Response is a successfully parsed provider response.
type Response struct {
	StatusCode int
	Body       []byte
	JSON       rawjson.Node
}

// PostJSON sends body as JSON to url. Network errors, non-2xx statuses and
// non-JSON bodies fail with TransportFailure. The returned Response is non-nil
// whenever a response arrived, so callers can log what the provider sent.
// No retry is attempted.
func (c *Client) PostJSON(ctx context.Context, url string, body any, header http.Header) (*Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, domain.ErrTransport("failed to marshal request", err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, domain.ErrTransport("failed to create request", err)
	}
	for key, values := range header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", userAgent)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, domain.ErrTransport("request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	out := &Response{StatusCode: resp.StatusCode, Body: respBody}
	if err != nil {
		return out, domain.ErrTransport("failed to read response", err).WithStatusCode(resp.StatusCode)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return out, domain.ErrTransport(
			fmt.Sprintf("provider returned HTTP %d: %s", resp.StatusCode, excerpt(respBody)), nil,
		).WithStatusCode(resp.StatusCode)
	}

	if !rawjson.Valid(respBody) {
		return out, domain.ErrTransport(
			fmt.Sprintf("provider returned a non-JSON body: %s", excerpt(respBody)), nil,
		).WithStatusCode(resp.StatusCode)
	}
	out.JSON = rawjson.Parse(respBody)

	return out, nil
}

func excerpt(b []byte) string {
	if len(b) > errorBodyLimit {
		return string(b[:errorBodyLimit]) + "..."
	}
	return string(b)
}
