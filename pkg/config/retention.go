package config

import "time"

// RetentionConfig controls dead-letter outbox event archival — mirrors
// pkg/cleanup.Config, kept as a separate struct for the same reason as
// OutboxConfig: pkg/config stays independent of pkg/cleanup.
type RetentionConfig struct {
	// DeadLetterTTL is how long a dead-lettered outbox event survives before
	// the sweeper (or a lazy read-model access) archives it (spec.md §4.1).
	DeadLetterTTL time.Duration `yaml:"dead_letter_ttl"`

	// SweepInterval is how often pkg/cleanup's ticker loop runs.
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// DefaultRetentionConfig returns spec.md's documented default: 7 days TTL,
// swept hourly.
func DefaultRetentionConfig() *RetentionConfig {
	return &RetentionConfig{
		DeadLetterTTL: 7 * 24 * time.Hour,
		SweepInterval: time.Hour,
	}
}
