package recovery

import (
	"errors"
	"fmt"
)

// Common errors returned by the orchestrator.
var (
	// ErrRetrySuppressed is returned by Execute when the failure is not
	// eligible for a retry (non-retryable kind, attempt ceiling reached,
	// or an active rate-limit cooldown window).
	ErrRetrySuppressed = errors.New("retry suppressed")

	// ErrRetryExhausted wraps the final failure once the attempt ceiling
	// for a (resource, kind) pair has been reached.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled while
	// waiting out a backoff delay.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrNoTokenRefresher is returned when a token-expired failure is
	// retried but no token refresh operation was configured.
	ErrNoTokenRefresher = errors.New("no token refresher configured")
)

// EmbedError is a structured failure surfaced by the embedding SDK or the
// transport underneath it. Classify understands it natively; everything
// else is classified from the error text.
type EmbedError struct {
	StatusCode int
	ErrorCode  string
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *EmbedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("embed error %s (status %d): %s: %v",
			e.ErrorCode, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("embed error %s (status %d): %s",
		e.ErrorCode, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *EmbedError) Unwrap() error {
	return e.Err
}
