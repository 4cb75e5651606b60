package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/codeready-toolchain/eligibility/pkg/domain"
	"github.com/codeready-toolchain/eligibility/pkg/pipeline"
	"github.com/codeready-toolchain/eligibility/pkg/resilience"
)

// domainEventProtocolUploaded is the only outbox event type the pipeline
// reacts to (spec.md §6.1) — re-exported locally so wiring.go doesn't need
// to import pkg/domain just for one constant.
const domainEventProtocolUploaded = domain.EventTypeProtocolUploaded

// handleProtocolUploaded builds the outbox.Handler that runs one protocol
// through the full seven-node graph. A fatal pipeline error returns nil, so
// the dispatcher marks the event published rather than retrying or
// dead-lettering it (spec.md §4.2: a crashed/failed run is surfaced via
// Protocol.status — retrying is an explicit operator action through the
// retry command). Only an error from runtime.Run itself is returned, as
// transient; an undecodable payload is returned as permanent.
func (a *app) handleProtocolUploaded(runtime *pipeline.Runtime) func(ctx context.Context, ev domain.OutboxEvent) error {
	return func(ctx context.Context, ev domain.OutboxEvent) error {
		var payload domain.ProtocolUploadedPayload
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			return resilience.NewPermanent("handler.protocol_uploaded", fmt.Errorf("decode payload: %w", err))
		}

		threadID := ev.IdempotencyKey
		initial := pipeline.State{
			ProtocolID: payload.ProtocolID,
			FileURI:    payload.FileURI,
			Title:      payload.Title,
		}

		final, err := runtime.Run(ctx, threadID, initial)
		if err != nil {
			return resilience.NewTransient("handler.protocol_uploaded", fmt.Errorf("run pipeline: %w", err))
		}
		if final.Failed() {
			slog.Error("pipeline run ended in fatal error", "protocol_id", final.ProtocolID, "error", final.Error)
			return nil
		}

		slog.Info("pipeline run completed", "protocol_id", final.ProtocolID, "non_fatal_errors", len(final.Errors))
		return nil
	}
}
