package providers

import (
	"context"
	"errors"
	"net"
)

// Sentinel classifications for completion failures. Every error a
// CompletionClient returns wraps exactly one of these; the pipeline retries
// transient failures and gives up immediately on permanent ones.
var (
	ErrTransient = errors.New("transient completion failure")
	ErrPermanent = errors.New("permanent completion failure")
)

// Transient wraps err as retryable (timeout, rate limit, server error).
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{class: ErrTransient, err: err}
}

// Permanent wraps err as non-retryable (auth failure, malformed request).
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{class: ErrPermanent, err: err}
}

// IsTransient reports whether err should be retried. Context timeouts count
// as transient even when a client forgot to classify them.
func IsTransient(err error) bool {
	if errors.Is(err, ErrTransient) {
		return true
	}
	if errors.Is(err, ErrPermanent) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

type classifiedError struct {
	class error
	err   error
}

func (e *classifiedError) Error() string { return e.class.Error() + ": " + e.err.Error() }

func (e *classifiedError) Unwrap() []error { return []error{e.class, e.err} }
