package transport

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidURL       = errors.New("invalid request URL")
	ErrRequestFailed    = errors.New("request failed")
	ErrUnexpectedStatus = errors.New("unexpected response status")
	ErrTimeout          = errors.New("request timeout")
	ErrBeaconMethod     = errors.New("beacon only supports POST requests")
)

// StatusError reports a response outside the accepted 200-399 range.
type StatusError struct {
	URL    string
	Code   int
	Status string
	Body   string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("failed sending to %q: %s (%d)", e.URL, e.Status, e.Code)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

func (e *StatusError) Unwrap() error {
	return ErrUnexpectedStatus
}

// IsStatusError reports whether err carries a non-success response.
func IsStatusError(err error) bool {
	var e *StatusError
	return errors.As(err, &e)
}
