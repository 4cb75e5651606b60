package resilience

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerConfig tunes a per-provider circuit breaker (spec.md §4.11): opens
// after FailureThreshold consecutive failures within Window, half-open
// permits a single probe.
type BreakerConfig struct {
	Name             string
	FailureThreshold uint32
	Window           time.Duration
	OpenTimeout      time.Duration
}

// DefaultBreakerConfig matches the CIRCUIT_FAILURE_THRESHOLD / CIRCUIT_WINDOW_SEC
// environment defaults described in spec.md §6.5.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		FailureThreshold: 5,
		Window:           60 * time.Second,
		OpenTimeout:      30 * time.Second,
	}
}

// Breaker is a thin wrapper around gobreaker.CircuitBreaker that only trips
// on TransientError (permanent errors are caller mistakes, not provider
// health signals, and must not open the breaker).
type Breaker struct {
	cb *gobreaker.CircuitBreaker[any]
}

// NewBreaker builds a breaker in the closed/open/half_open state machine
// spec.md §4.11 requires.
func NewBreaker(cfg BreakerConfig) *Breaker {
	st := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,               // half-open permits a single probe
		Interval:    cfg.Window,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			// Only transient provider failures count toward tripping;
			// permanent (caller) errors don't indicate provider health.
			return err == nil || IsPermanent(err)
		},
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker[any](st)}
}

// Execute runs fn through the breaker. A PermanentError passes through
// without affecting breaker state; only unclassified/transient failures
// count toward tripping.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	return b.cb.Execute(func() (any, error) {
		return fn(ctx)
	})
}

// State returns the breaker's current state name for observability export.
func (b *Breaker) State() string {
	return b.cb.State().String()
}
