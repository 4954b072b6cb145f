package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	MethodGet  = http.MethodGet
	MethodPost = http.MethodPost

	maxResponseBytes = 8 << 20
	userAgent        = "alphadesk/1.0"
)

// ClientOption configures Client.
type ClientOption func(*Client)

// RequestOptions holds HTTP request parameters. Body values other than
// []byte, string and io.Reader are sent as JSON.
type RequestOptions struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    interface{}
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Client is an outbound HTTP client with a whole-request timeout.
type Client struct {
	timeout   time.Duration
	transport http.RoundTripper
	client    *http.Client
}

func NewClient(opts ...ClientOption) *Client {
	c := &Client{timeout: 30 * time.Second}
	for _, opt := range opts {
		opt(c)
	}
	c.client = &http.Client{Timeout: c.timeout, Transport: c.transport}
	return c
}

// WithTimeout bounds the whole request including reading the body.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithTransport replaces the default transport.
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(c *Client) {
		c.transport = rt
	}
}

// SendRaw sends a request and returns the status and body without judging the
// status. Bodies above 8 MiB are truncated.
func (c *Client) SendRaw(ctx context.Context, opts *RequestOptions) (*Response, error) {
	req, err := newRequest(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

func newRequest(ctx context.Context, opts *RequestOptions) (*http.Request, error) {
	body, isJSON, err := encodeBody(opts.Body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, opts.Method, opts.URL, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if isJSON {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

func encodeBody(body interface{}) (io.Reader, bool, error) {
	switch v := body.(type) {
	case nil:
		return nil, false, nil
	case []byte:
		return bytes.NewReader(v), false, nil
	case string:
		return bytes.NewReader([]byte(v)), false, nil
	case io.Reader:
		return v, false, nil
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, false, fmt.Errorf("marshal json: %w", err)
	}
	return bytes.NewReader(b), true, nil
}
