// Package common holds the errors, retry policy and logger shared by bankrules packages.
package common

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEntry = errors.New("duplicate entry")

	// ErrFeedUnavailable wraps failures talking to a bank feed (Plaid or SimpleFIN).
	ErrFeedUnavailable = errors.New("bank feed unavailable")
	ErrSheetsAPI       = errors.New("google sheets request failed")

	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// UserError carries a message fit for the terminal alongside the cause.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err == nil {
		return e.UserMessage
	}
	return e.UserMessage + ": " + e.Err.Error()
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError wraps err with a message the CLI prints instead of the chain.
func NewUserError(userMessage string, err error) error {
	return &UserError{UserMessage: userMessage, Err: err}
}

// Permanent marks err so WithRetry gives up on it at once.
func Permanent(err error) error {
	return &RetryableError{Err: err}
}

// Transient marks err as worth another attempt.
func Transient(format string, args ...any) error {
	return &RetryableError{Err: fmt.Errorf(format, args...), Retryable: true}
}

// shouldRetry reports whether WithRetry may try again after err. Unmarked
// errors are retried; cancellation never is.
func shouldRetry(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}
	return true
}
