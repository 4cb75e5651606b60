package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/codeready-toolchain/eligibility/pkg/alerting"
)

// breakerObserver is satisfied by *llm.HTTPClient and *terminology.HTTPProvider
// without either package needing to know about cmd/pipeline-worker.
type breakerObserver interface {
	BreakerName()  string
	BreakerState() string
}

// breakerStateValue maps a resilience.Breaker.State() string to the gauge
// value GET /metrics documents (0=closed, 1=half-open, 2=open).
func breakerStateValue(state string) float64 {
	switch state {
	case "open":
		return 2
	case "half-open":
		return 1
	default:
		return 0
	}
}

// watchBreakers polls every registered LLM/terminology client's breaker on
// interval, updates the breaker_state gauge, and alerts on every closed/
// half-open -> open transition (spec.md §4.11). Runs until ctx is canceled.
func (a *app) watchBreakers(ctx context.Context, interval time.Duration) {
	if len(a.breakers) == 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := make(map[string]string, len(a.breakers))
	for _, b := range a.breakers {
		last[b.BreakerName()] = b.BreakerState()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, b := range a.breakers {
				name, state := b.BreakerName(), b.BreakerState()
				a.metrics.BreakerState.WithLabelValues(name).Set(breakerStateValue(state))
				if state == "open" && last[name] != "open" {
					slog.Warn("circuit breaker opened", "breaker", name)
					a.alertSvc.NotifyBreakerTrip(ctx, alerting.BreakerTripInput{BreakerName: name, State: state})
				}
				last[name] = state
			}
		}
	}
}
