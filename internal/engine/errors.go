package engine

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// CycleAbortedError is returned by a cycle when an action fails. Actions
// before it stay applied; actions after it were not attempted.
type CycleAbortedError struct {
	// ActionID identifies the failing action.
	ActionID int64

	// ActionName is the failing action's name.
	ActionName string

	// Applied is the number of actions applied before the failure.
	Applied int

	// Cause is the underlying catalog or store error.
	Cause error
}

// Error implements the error interface.
func (e *CycleAbortedError) Error() string {
	return fmt.Sprintf("cycle aborted at action %d (%s) after %d applied: %v",
		e.ActionID, e.ActionName, e.Applied, e.Cause)
}

// Unwrap returns the cause so errors.Is/As reach catalog errors.
func (e *CycleAbortedError) Unwrap() error { return e.Cause }

// IsCycleAborted returns true if err is or wraps a *CycleAbortedError.
func IsCycleAborted(err error) bool {
	var ce *CycleAbortedError
	return errors.As(err, &ce)
}

// AsCycleAborted extracts the *CycleAbortedError from err, if any.
func AsCycleAborted(err error) (*CycleAbortedError, bool) {
	var ce *CycleAbortedError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
