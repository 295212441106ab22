// Package kgerr classifies ingestion errors: retryable infrastructure
// failures versus fatal input-contract violations. Replays and per-item
// rejections are not errors; they are modeled as statuses in the reports.
package kgerr

import (
	"context"
	"errors"
	"net"

	"github.com/rotisserie/eris"
)

// FatalError marks an input-contract violation. The batch aborts before any
// durable write and the fingerprint stays NEW so a corrected re-run is not
// skipped.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return e.Err.Error() }
func (e *FatalError) Unwrap() error { return e.Err }

// Fatalf creates a FatalError from a format string.
func Fatalf(format string, args ...any) error {
	return &FatalError{Err: eris.Errorf(format, args...)}
}

// IsFatal reports whether err (or anything it wraps) is a FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// RetryableError marks an infrastructure failure that is safe to retry:
// store timeout, index unavailable, lock contention.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Retryable wraps err as retryable, annotated with msg.
func Retryable(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: eris.Wrap(err, msg)}
}

// IsRetryable reports whether err should be surfaced as a retryable failure.
// Beyond explicit RetryableError wrapping it recognizes network timeouts and
// context deadline expiry, which is how store and index outages usually
// present.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var re *RetryableError
	if errors.As(err, &re) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
