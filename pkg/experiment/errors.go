package experiment

import (
	"errors"
	"fmt"
)

var (
	ErrConfiguration = errors.New("configuration error")
	ErrNetwork       = errors.New("network error")
	ErrProtocol      = errors.New("protocol error")

	ErrNoSession          = errors.New("no open session")
	ErrSessionClosed      = errors.New("session already closed")
	ErrSessionAlreadyOpen = errors.New("session already open")
)

// Error is a stage failure: which stage failed, for which experiment, and why.
type Error struct {
	Kind    error
	Origin  string
	Context string
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Origin, e.Kind)
	if e.Context != "" {
		msg += " " + e.Context
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// ConfigurationError reports a configuration document that could not be fetched or is invalid.
func ConfigurationError(origin, context string, err error) *Error {
	return &Error{Kind: ErrConfiguration, Origin: origin, Context: context, Err: err}
}

// NetworkError reports a request that failed or was answered with an error status.
func NetworkError(origin, context string, err error) *Error {
	return &Error{Kind: ErrNetwork, Origin: origin, Context: context, Err: err}
}

// ProtocolFailure describes a server answer that is missing required fields.
// Response holds whatever could be decoded.
type ProtocolFailure struct {
	Reason   string
	Response map[string]any
}

func (f *ProtocolFailure) Error() string {
	return "unexpected answer from server: " + f.Reason
}

// ProtocolError reports a server answer missing required fields, keeping the partial response.
func ProtocolError(origin, context, reason string, response map[string]any) *Error {
	return &Error{
		Kind:    ErrProtocol,
		Origin:  origin,
		Context: context,
		Err:     &ProtocolFailure{Reason: reason, Response: response},
	}
}

// AsError extracts the stage failure from err.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// PartialResponse returns the decoded server answer attached to a protocol error.
func PartialResponse(err error) (map[string]any, bool) {
	var f *ProtocolFailure
	if errors.As(err, &f) {
		return f.Response, true
	}
	return nil, false
}
