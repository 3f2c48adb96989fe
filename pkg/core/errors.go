package core

import (
	"errors"
	"fmt"
	"time"
)

// UnknownError is the message recorded when a failure carries no message.
const UnknownError = "Unknown error"

var (
	ErrAlreadyRunning = errors.New("batch: processor is already running")
	ErrInvalidName    = errors.New("batch: invalid name (must be alphanumeric, start with letter)")
	ErrNameTooLong    = errors.New("batch: name too long")
	ErrNoStore        = errors.New("batch: no store configured")
)

// NoRetryError indicates an error that should not be retried.
type NoRetryError struct {
	Err error
}

func (e *NoRetryError) Error() string {
	return fmt.Sprintf("no retry: %v", e.Err)
}

func (e *NoRetryError) Unwrap() error {
	return e.Err
}

// NoRetry wraps an error to indicate it should not be retried.
func NoRetry(err error) error {
	return &NoRetryError{Err: err}
}

// RetryAfterError indicates an error that should be retried after a delay.
type RetryAfterError struct {
	Err   error
	Delay time.Duration
}

func (e *RetryAfterError) Error() string {
	return fmt.Sprintf("retry after %v: %v", e.Delay, e.Err)
}

func (e *RetryAfterError) Unwrap() error {
	return e.Err
}

// RetryAfter wraps an error to indicate it should be retried after a delay.
func RetryAfter(d time.Duration, err error) error {
	return &RetryAfterError{Err: err, Delay: d}
}

// InterruptedError is returned when the context ends while waiting to retry.
// Err is the last attempt's error and Cause is the context error.
type InterruptedError struct {
	Err   error
	Cause error
}

func (e *InterruptedError) Error() string {
	return fmt.Sprintf("%v (%v)", e.Err, e.Cause)
}

func (e *InterruptedError) Unwrap() []error {
	return []error{e.Err, e.Cause}
}

// ErrorMessage returns the message recorded on a failed job.
// Retry control wrappers are peeled off so the processor's own message is kept.
func ErrorMessage(err error) string {
	for unwrapping := true; unwrapping; {
		switch e := err.(type) {
		case *NoRetryError:
			err = e.Err
		case *RetryAfterError:
			err = e.Err
		case *InterruptedError:
			err = e.Err
		default:
			unwrapping = false
		}
	}
	if err == nil || err.Error() == "" {
		return UnknownError
	}
	return err.Error()
}
