package task

import (
	"errors"
	"fmt"
)

// Dependency validation errors returned by constructors.
var (
	ErrNilTaskStore  = errors.New("task store cannot be nil")
	ErrNilPlaceStore = errors.New("place store cannot be nil")
	ErrNilSource     = errors.New("discovery source cannot be nil")
	ErrNilFetcher    = errors.New("hierarchy fetcher cannot be nil")
	ErrNilScheduler  = errors.New("scheduler cannot be nil")
	ErrNilRetry      = errors.New("retry policy cannot be nil")
	ErrNilPermits    = errors.New("permit pool cannot be nil")
	ErrNilLogger     = errors.New("logger cannot be nil")
)

// Operation errors.
var (
	// ErrTaskNotPending is returned when starting a task that is not in the
	// pending state (already started, or already finished).
	ErrTaskNotPending = errors.New("task is not pending")

	// ErrManagerClosed is returned when an operation is attempted after the
	// manager has been shut down.
	ErrManagerClosed = errors.New("task manager is shut down")
)

// RetryExhaustedError is returned by RetryPolicy.Execute when every allowed
// attempt has failed with a transient error. It carries the attempt count and
// unwraps to the last underlying error.
type RetryExhaustedError struct {
	Attempts int
	Err      error
}

// Error implements the error interface.
func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.Err)
}

// Unwrap returns the last underlying error to support errors.Is/errors.As.
func (e *RetryExhaustedError) Unwrap() error {
	return e.Err
}

// IsRetryExhausted reports whether err is a RetryExhaustedError.
func IsRetryExhausted(err error) bool {
	var exhausted *RetryExhaustedError
	return errors.As(err, &exhausted)
}
