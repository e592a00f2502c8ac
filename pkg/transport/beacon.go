package transport

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Beacon sends requests without waiting for the outcome.
// The send survives cancellation of the caller's context, which is what makes it
// usable while the host is tearing down.
type Beacon struct {
	next    Sender
	timeout time.Duration
	onDone  SendHook
	wg      sync.WaitGroup
}

// NewBeacon wraps next, typically a *Client, in a fire-and-forget sender.
func NewBeacon(next Sender, opts ...BeaconOption) *Beacon {
	b := &Beacon{
		next:    next,
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Send validates the request and hands it to a background goroutine.
// The returned Response is always nil.
func (b *Beacon) Send(ctx context.Context, req Request) (*Response, error) {
	if req.Method != http.MethodPost {
		return nil, fmt.Errorf("%w: got %s", ErrBeaconMethod, req.Method)
	}
	if err := validateURL(req.URL); err != nil {
		return nil, err
	}

	detached := context.WithoutCancel(ctx)
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		sendCtx, cancel := context.WithTimeout(detached, b.timeout)
		defer cancel()

		start := time.Now()
		resp, err := b.next.Send(sendCtx, req)
		if b.onDone == nil {
			return
		}
		result := SendResult{
			Method:   req.Method,
			URL:      req.URL,
			Success:  err == nil,
			Duration: time.Since(start),
			Error:    err,
		}
		if resp != nil {
			result.StatusCode = resp.StatusCode
		}
		b.onDone(result)
	}()

	return nil, nil
}

// Flush blocks until every in-flight send has finished or ctx is done.
func (b *Beacon) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
