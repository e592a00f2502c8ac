package session

import (
	"errors"
	"fmt"

	"github.com/minnojs/pavlovia/pkg/experiment"
)

// State is the lifecycle state of a Manager.
type State string

const (
	StateUninitialized State = "UNINITIALIZED"
	StateOpen          State = "OPEN"
	StateClosed        State = "CLOSED"
)

type event string

const (
	eventOpen  event = "open"
	eventClose event = "close"
)

// transitions is the complete table; nothing leads back to UNINITIALIZED or
// out of CLOSED.
var transitions = map[State]map[event]State{
	StateUninitialized: {eventOpen: StateOpen},
	StateOpen:          {eventClose: StateClosed},
}

// TransitionError reports an operation that is not allowed in the current state.
type TransitionError struct {
	From  State
	Event string
	Err   error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("no transition from state '%s' for event '%s': %v", e.From, e.Event, e.Err)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

// IsTransitionError reports whether err was caused by an out-of-order call.
func IsTransitionError(err error) bool {
	var e *TransitionError
	return errors.As(err, &e)
}

// next returns the target state for ev, or a *TransitionError naming why ev
// cannot fire from current.
func next(current State, ev event) (State, error) {
	if to, ok := transitions[current][ev]; ok {
		return to, nil
	}

	var cause error
	switch {
	case ev == eventOpen:
		cause = experiment.ErrSessionAlreadyOpen
	case current == StateClosed:
		cause = experiment.ErrSessionClosed
	default:
		cause = experiment.ErrNoSession
	}
	return current, &TransitionError{From: current, Event: string(ev), Err: cause}
}
