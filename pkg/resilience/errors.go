// Package resilience provides the shared primitives every external-I/O call
// in the pipeline passes through: classified retry, timeout, circuit breaker,
// a fair counting semaphore, and a TTL+LRU cache (SPEC_FULL.md §4.11).
package resilience

import "errors"

// TransientError wraps a failure that is safe to retry (network errors, 5xx,
// timeouts). It contributes to circuit-breaker failure counts.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError wraps a failure that must never be retried (4xx, schema
// validation, auth).
type PermanentError struct {
	Op  string
	Err error
}

func (e *PermanentError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// NewTransient classifies err as retryable.
func NewTransient(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Op: op, Err: err}
}

// NewPermanent classifies err as non-retryable.
func NewPermanent(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Op: op, Err: err}
}

// IsTransient reports whether err (or anything it wraps) is a TransientError.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

// IsPermanent reports whether err (or anything it wraps) is a PermanentError.
func IsPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p)
}
