package resilience

import (
	"context"
	"fmt"
	"time"
)

// WithTimeout runs fn under a per-call deadline, cancelling in-flight work on
// expiry (spec.md §4.11, §5). The returned error is classified Transient so
// callers naturally retry on timeout.
func WithTimeout(ctx context.Context, d time.Duration, op string, fn func(ctx context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(callCtx) }()

	select {
	case err := <-done:
		return err
	case <-callCtx.Done():
		<-done // wait for fn to observe cancellation and return, avoiding a leak
		if callCtx.Err() == context.DeadlineExceeded {
			return NewTransient(op, fmt.Errorf("timed out after %s", d))
		}
		return callCtx.Err()
	}
}
