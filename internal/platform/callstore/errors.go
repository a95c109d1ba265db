package callstore

import (
	"errors"
	"fmt"
)

// TransientError wraps a network or backend failure that a caller may retry.
// Rejections of well-formed requests (4xx) are returned as plain errors.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("call store %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Retryable reports that the operation may be retried without input changes.
func (e *TransientError) Retryable() bool { return true }

// IsTransient reports whether err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
