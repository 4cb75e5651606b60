package resilience

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryConfig tunes Retry's exponential backoff with jitter.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff float64 // seconds
	MaxBackoff     float64 // seconds
	Multiplier     float64
}

// DefaultRetryConfig mirrors the outbox dispatcher defaults in spec.md §4.1:
// base 2 exponential backoff, jittered, capped at 3 retries.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 0.5,
		MaxBackoff:     30,
		Multiplier:     2,
	}
}

// Retry runs fn, retrying TransientError and unclassified failures with
// exponential backoff and jitter, up to cfg.MaxRetries retries after the
// first attempt. A PermanentError aborts immediately.
func Retry(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Duration(cfg.InitialBackoff * float64(time.Second))
	b.MaxInterval = time.Duration(cfg.MaxBackoff * float64(time.Second))
	b.Multiplier = cfg.Multiplier
	bounded := backoff.WithMaxRetries(b, uint64(cfg.MaxRetries))
	withCtx := backoff.WithContext(bounded, ctx)

	attempt := 0
	operation := func() error {
		attempt++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if IsPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	if err := backoff.Retry(operation, withCtx); err != nil {
		return fmt.Errorf("retry exhausted after %d attempt(s): %w", attempt, err)
	}
	return nil
}

