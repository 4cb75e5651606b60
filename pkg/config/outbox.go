package config

import "time"

// OutboxConfig mirrors pkg/outbox.DispatcherConfig's tunables (spec.md §6.5:
// OUTBOX_POLL_INTERVAL_MS, OUTBOX_MAX_RETRIES). Kept as a separate struct
// rather than importing pkg/outbox directly, so pkg/config has no dependency
// on the storage/dispatch layer it configures — cmd/pipeline-worker is the
// only place that converts one into the other.
type OutboxConfig struct {
	// WorkerCount is the number of dispatcher goroutines polling concurrently.
	WorkerCount int `yaml:"worker_count" validate:"min=1"`

	// PollInterval is the base interval between claim attempts when idle.
	PollInterval time.Duration `yaml:"poll_interval"`

	// PollIntervalJitter is the random jitter added to PollInterval.
	PollIntervalJitter time.Duration `yaml:"poll_interval_jitter"`

	// MaxRetries is the retry budget before an event is dead-lettered.
	MaxRetries int `yaml:"max_retries" validate:"min=0"`

	// InitialBackoff and MaxBackoff bound the exponential backoff applied
	// between retry attempts.
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

// DefaultOutboxConfig returns spec.md §4.1's defaults: 4 workers, 2s base
// poll, exponential backoff base 2 capped at 30s, max 3 retries.
func DefaultOutboxConfig() *OutboxConfig {
	return &OutboxConfig{
		WorkerCount:        4,
		PollInterval:       2 * time.Second,
		PollIntervalJitter: 500 * time.Millisecond,
		MaxRetries:         3,
		InitialBackoff:     500 * time.Millisecond,
		MaxBackoff:         30 * time.Second,
	}
}
