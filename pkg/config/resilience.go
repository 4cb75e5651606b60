package config

import "time"

// ResilienceConfig tunes the shared circuit-breaker and retry primitives
// every LLM/terminology provider client builds on top of (spec.md §6.5:
// CIRCUIT_FAILURE_THRESHOLD, CIRCUIT_WINDOW_SEC).
type ResilienceConfig struct {
	// CircuitFailureThreshold is consecutive transient failures before a
	// breaker trips open.
	CircuitFailureThreshold uint32 `yaml:"circuit_failure_threshold" validate:"min=1"`

	// CircuitWindow is the sliding window a breaker counts failures over.
	CircuitWindow time.Duration `yaml:"circuit_window"`

	// CircuitOpenTimeout is how long a breaker stays open before allowing a
	// half-open probe.
	CircuitOpenTimeout time.Duration `yaml:"circuit_open_timeout"`

	// MaxRetries, InitialBackoff, MaxBackoff and Multiplier tune
	// resilience.Retry's exponential backoff with jitter.
	MaxRetries     int     `yaml:"max_retries" validate:"min=0"`
	InitialBackoff float64 `yaml:"initial_backoff_seconds"`
	MaxBackoff     float64 `yaml:"max_backoff_seconds"`
	Multiplier     float64 `yaml:"multiplier"`
}

// DefaultResilienceConfig mirrors resilience.DefaultBreakerConfig and
// resilience.DefaultRetryConfig.
func DefaultResilienceConfig() *ResilienceConfig {
	return &ResilienceConfig{
		CircuitFailureThreshold: 5,
		CircuitWindow:           60 * time.Second,
		CircuitOpenTimeout:      30 * time.Second,
		MaxRetries:              3,
		InitialBackoff:          0.5,
		MaxBackoff:              30,
		Multiplier:              2,
	}
}
