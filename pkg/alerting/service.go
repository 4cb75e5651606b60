package alerting

import (
	"context"
	"log/slog"
	"time"
)

// Config holds the parameters needed to construct a Service.
type Config struct {
	Token        string
	Channel      string
	DashboardURL string
}

// DeadLetterInput describes one dead-lettered outbox event.
type DeadLetterInput struct {
	EventID     string
	EventType   string
	LastError   string
	Fingerprint string // used to thread repeat alerts for the same event
}

// BreakerTripInput describes one circuit breaker state transition.
type BreakerTripInput struct {
	BreakerName string
	State       string // open, half-open, closed
}

// Service delivers operator alerts to Slack. Nil-safe: every method is a
// no-op when the receiver is nil, so callers can construct it unconditionally
// from config and skip the "is alerting enabled" branch everywhere else.
type Service struct {
	client       *Client
	dashboardURL string
	logger       *slog.Logger
}

// NewService returns nil if Token or Channel is unset — alerting is then
// silently disabled rather than failing startup.
func NewService(cfg Config) *Service {
	if cfg.Token == "" || cfg.Channel == "" {
		return nil
	}
	return &Service{
		client:       NewClient(cfg.Token, cfg.Channel),
		dashboardURL: cfg.DashboardURL,
		logger:       slog.Default().With("component", "alerting"),
	}
}

// NewServiceWithClient builds a Service around a pre-built Client, for
// testing against a mock Slack API server.
func NewServiceWithClient(client *Client, dashboardURL string) *Service {
	return &Service{client: client, dashboardURL: dashboardURL, logger: slog.Default().With("component", "alerting")}
}

// NotifyDeadLetter posts a dead-letter alert. Fail-open: delivery errors are
// logged, never returned, so a Slack outage never blocks the dispatcher.
func (s *Service) NotifyDeadLetter(ctx context.Context, input DeadLetterInput) {
	if s == nil {
		return
	}

	var threadTS string
	if input.Fingerprint != "" {
		var err error
		threadTS, err = s.client.FindThreadByFingerprint(ctx, input.Fingerprint)
		if err != nil {
			s.logger.Warn("failed to find alert thread", "fingerprint", input.Fingerprint, "error", err)
		}
	}

	blocks := BuildDeadLetterMessage(input.EventID, input.EventType, input.LastError, s.dashboardURL)
	if err := s.client.PostMessage(ctx, blocks, threadTS, 5*time.Second); err != nil {
		s.logger.Error("failed to send dead-letter alert", "event_id", input.EventID, "error", err)
	}
}

// NotifyBreakerTrip posts a circuit-breaker state-change alert.
func (s *Service) NotifyBreakerTrip(ctx context.Context, input BreakerTripInput) {
	if s == nil {
		return
	}

	blocks := BuildBreakerTripMessage(input.BreakerName, input.State, s.dashboardURL)
	if err := s.client.PostMessage(ctx, blocks, "", 5*time.Second); err != nil {
		s.logger.Error("failed to send breaker-trip alert", "breaker", input.BreakerName, "error", err)
	}
}
