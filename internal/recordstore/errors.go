package recordstore

import "errors"

// RetryableError signals transient unavailability: the operation did not run
// and must be retried by the caller after a delay, typically by an upstream
// request-retry loop with its own backoff. It is never data loss.
//
// The one retryable condition in this package is a partition that is still
// loading its data from the backing store.
type RetryableError struct {
	Err error // Underlying description of the transient condition
}

// Error implements error.
func (e *RetryableError) Error() string { return e.Err.Error() }

// Unwrap exposes the underlying error to errors.Is and errors.As.
func (e *RetryableError) Unwrap() error { return e.Err }

// NewRetryable wraps err as retryable.
func NewRetryable(err error) error {
	return &RetryableError{Err: err}
}

// IsRetryable reports whether err signals a transient condition the caller
// should retry rather than treat as permanent failure.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}
