package transport

import (
	"context"
	"net/url"
	"strings"
	"time"
)

const (
	ContentTypeForm = "application/x-www-form-urlencoded"
	ContentTypeJSON = "application/json; charset=UTF-8"
)

// Request describes a single outbound call.
// When Form is non-nil it is encoded as the body with ContentTypeForm.
type Request struct {
	Method      string
	URL         string
	Form        url.Values
	Body        []byte
	ContentType string
}

// Response is the outcome of a confirmed request.
type Response struct {
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// Sender issues one request. Implementations that do not wait for the server
// return a nil Response and a nil error once the request has been handed off.
type Sender interface {
	Send(ctx context.Context, req Request) (*Response, error)
}

// Select returns beacon when sync is requested and a beacon is available,
// confirmed otherwise.
func Select(confirmed, beacon Sender, sync bool) Sender {
	if sync && beacon != nil {
		return beacon
	}
	return confirmed
}

// payload returns the encoded body and its content type.
func (r Request) payload() ([]byte, string) {
	if r.Form != nil {
		return []byte(r.Form.Encode()), ContentTypeForm
	}
	ct := r.ContentType
	if ct == "" && len(r.Body) > 0 {
		ct = ContentTypeJSON
	}
	return r.Body, ct
}

// sanitizeBody flattens a response body for inclusion in error messages.
func sanitizeBody(body []byte) string {
	s := strings.ReplaceAll(string(body), "\n", " ")
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
