package session

import (
	"errors"
	"fmt"
)

var (
	// ErrNotStarted is returned by Step before Start.
	ErrNotStarted = errors.New("session: not started")
	// ErrStopped is returned once Stop has been called.
	ErrStopped = errors.New("session: stopped")
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("session: already started")
	// ErrNotSynchronized is returned by commands issued outside Synchronized.
	ErrNotSynchronized = errors.New("session: not synchronized")
	// ErrRetryBudgetExhausted is the fatal error after too many consecutive faults.
	ErrRetryBudgetExhausted = errors.New("session: retry budget exhausted")
	// ErrBoundFailFast is the fatal error when an already-bound port is
	// configured to end the session instead of backing off.
	ErrBoundFailFast = errors.New("session: port already bound, failing fast")
)

// IsFatal reports whether err ended the session for good.
func IsFatal(err error) bool {
	return errors.Is(err, ErrRetryBudgetExhausted) || errors.Is(err, ErrBoundFailFast)
}

// StepError wraps the failure of a single step.
type StepError struct {
	Step   uint64
	Status Status // status after the failure
	Err    error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Step, e.Status, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
