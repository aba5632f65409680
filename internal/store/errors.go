package store

import (
	"errors"
	"fmt"
)

// ErrInvalidNamespace is returned when a namespace is empty or contains a reserved character.
var ErrInvalidNamespace = errors.New("invalid secret store namespace")

// ErrOwnershipMismatch is wrapped by AccessError when the process identity does not own its
// security context.
var ErrOwnershipMismatch = errors.New("process identity does not own its security context")

// AccessError reports a native secure store failure. Unlike a miss it is propagated to the
// caller: it points at a host problem that retrying will not fix.
type AccessError struct {
	Op      string // read, write, delete, enumerate, access
	Key     string
	Message string
	Err     error
}

func (e *AccessError) Error() string {
	msg := fmt.Sprintf("secure store %s failed", e.Op)
	if e.Key != "" {
		msg += fmt.Sprintf(" for %s", e.Key)
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	if e.Message != "" {
		msg += "\n  " + e.Message
	}
	return msg
}

func (e *AccessError) Unwrap() error {
	return e.Err
}

// IsAccessError reports whether err is (or wraps) an AccessError.
func IsAccessError(err error) bool {
	var ae *AccessError
	return errors.As(err, &ae)
}
