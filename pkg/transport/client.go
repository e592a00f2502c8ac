package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// maxResponseBody bounds how much of a response is read into memory.
const maxResponseBody = 16 << 20

// Client performs confirmed request/response exchanges.
// Zero value is not usable; use NewClient to create instances.
type Client struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
	onSend    SendHook
}

// NewClient creates a client with a pooled HTTP transport.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		timeout:   30 * time.Second,
		userAgent: "pavlovia-go/1.0",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send performs the request and waits for the response.
func (c *Client) Send(ctx context.Context, req Request) (*Response, error) {
	if err := validateURL(req.URL); err != nil {
		return nil, err
	}

	result, resp, err := c.do(ctx, req)
	if c.onSend != nil {
		c.onSend(result)
	}
	return resp, err
}

func (c *Client) do(ctx context.Context, req Request) (SendResult, *Response, error) {
	start := time.Now()
	result := SendResult{Method: req.Method, URL: req.URL}

	reqCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	body, contentType := req.payload()
	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(reqCtx, req.Method, req.URL, reader)
	if err != nil {
		result.Duration = time.Since(start)
		result.Error = err
		return result, nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)

	httpResp, err := c.client.Do(httpReq)
	result.Duration = time.Since(start)
	if err != nil {
		result.Error = err
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return result, nil, fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return result, nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	result.StatusCode = httpResp.StatusCode
	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody))
	if err != nil {
		result.Error = err
		return result, nil, fmt.Errorf("%w: reading response: %w", ErrRequestFailed, err)
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Body:       data,
		Duration:   result.Duration,
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 400 {
		statusErr := &StatusError{
			URL:    req.URL,
			Code:   httpResp.StatusCode,
			Status: http.StatusText(httpResp.StatusCode),
			Body:   sanitizeBody(data),
		}
		result.Error = statusErr
		return result, resp, statusErr
	}

	result.Success = true
	return result, resp, nil
}

func validateURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("%w: URL is required", ErrInvalidURL)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: only http and https schemes are supported", ErrInvalidURL)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidURL)
	}
	return nil
}
