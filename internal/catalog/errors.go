package catalog

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// ConnectionError reports that the catalog server could not be reached or
// refused the session.
type ConnectionError struct {
	Server string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect to %s: %v", e.Server, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// NotFoundError reports that a selector did not resolve to exactly one item.
type NotFoundError struct {
	Section  string
	Selector string
	Reason   string
}

func (e *NotFoundError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s/%s: %s", e.Section, e.Selector, e.Reason)
	}
	return fmt.Sprintf("%s/%s: not found", e.Section, e.Selector)
}

// RemoteOperationError reports that the server rejected or failed an operation.
type RemoteOperationError struct {
	Op  string
	Key string
	Err error
}

func (e *RemoteOperationError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RemoteOperationError) Unwrap() error { return e.Err }

// IsConnection returns true if err is or wraps a *ConnectionError.
func IsConnection(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}

// IsNotFound returns true if err is or wraps a *NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsRemoteOperation returns true if err is or wraps a *RemoteOperationError.
func IsRemoteOperation(err error) bool {
	var re *RemoteOperationError
	return errors.As(err, &re)
}
