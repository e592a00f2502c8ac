package transport

import (
	"net/http"
	"time"
)

// SendResult describes one completed send, for logging or metrics.
type SendResult struct {
	Method     string
	URL        string
	Success    bool
	StatusCode int
	Duration   time.Duration
	Error      error
}

// SendHook is called after every request a Client or Beacon completes.
type SendHook func(result SendResult)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.client = client
		}
	}
}

// WithTimeout bounds each request. Zero disables the client-side timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout >= 0 {
			c.timeout = timeout
		}
	}
}

// WithUserAgent replaces the default User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithOnSend registers a hook invoked after each request.
func WithOnSend(hook SendHook) ClientOption {
	return func(c *Client) {
		c.onSend = hook
	}
}

// BeaconOption configures a Beacon.
type BeaconOption func(*Beacon)

// WithBeaconTimeout bounds a detached send. Defaults to 5 seconds.
func WithBeaconTimeout(timeout time.Duration) BeaconOption {
	return func(b *Beacon) {
		if timeout > 0 {
			b.timeout = timeout
		}
	}
}

// WithBeaconHook registers a hook invoked when a detached send completes.
func WithBeaconHook(hook SendHook) BeaconOption {
	return func(b *Beacon) {
		b.onDone = hook
	}
}
