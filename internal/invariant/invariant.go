// Package invariant defines the error type used for internal-consistency
// failures: conditions that can only occur if the engine itself is wrong.
package invariant

import (
	"errors"
	"fmt"
)

// Error reports a broken internal invariant. It is fatal to the unit of work
// that observed it and is never retried.
type Error struct {
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invariant violated: %s. This is a bug in stagecheck.", e.Message)
}

// Errorf builds an *Error from a format string.
func Errorf(format string, args ...any) *Error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

// Is reports whether err, or anything it wraps, is an *Error.
func Is(err error) bool {
	var target *Error
	return errors.As(err, &target)
}
