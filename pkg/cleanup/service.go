// Package cleanup provides the active half of the outbox dead-letter
// archival policy (the lazy half lives in the read-model query layer,
// pkg/httpapi): a ticker loop that periodically deletes outbox_events rows
// that have sat in dead_letter past their TTL. Adapted from the teacher's
// pkg/cleanup/service.go retention loop (soft-deleted sessions, orphaned
// events) — same run/ticker/Stop shape, swept table changed.
package cleanup

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper is the repository slice this service needs — satisfied by
// pkg/storage/postgres.OutboxRepo without importing it directly.
type Sweeper interface {
	SweepExpiredDeadLetters(ctx context.Context, ttl time.Duration) (int, error)
}

// Config tunes the sweep cadence and dead-letter TTL (spec.md §4.1 default:
// 7 days, swept hourly).
type Config struct {
	DeadLetterTTL time.Duration
	SweepInterval time.Duration
}

func DefaultConfig() Config {
	return Config{DeadLetterTTL: 7 * 24 * time.Hour, SweepInterval: time.Hour}
}

// Service periodically enforces the dead-letter retention policy. Safe to
// run from multiple worker processes — the underlying DELETE is idempotent.
type Service struct {
	config  Config
	sweeper Sweeper

	cancel context.CancelFunc
	done   chan struct{}
}

func NewService(cfg Config, sweeper Sweeper) *Service {
	return &Service{config: cfg, sweeper: sweeper}
}

// Start launches the background sweep loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("cleanup service started", "dead_letter_ttl", s.config.DeadLetterTTL, "interval", s.config.SweepInterval)
}

// Stop signals the sweep loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.sweep(ctx)

	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Service) sweep(ctx context.Context) {
	count, err := s.sweeper.SweepExpiredDeadLetters(ctx, s.config.DeadLetterTTL)
	if err != nil {
		slog.Error("dead-letter sweep failed", "error", err)
		return
	}
	if count > 0 {
		slog.Info("swept expired dead-letter outbox events", "count", count)
	}
}
