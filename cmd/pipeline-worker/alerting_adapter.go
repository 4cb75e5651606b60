package main

import (
	"context"

	"github.com/codeready-toolchain/eligibility/pkg/alerting"
	"github.com/codeready-toolchain/eligibility/pkg/outbox"
)

// outboxAlerter adapts *alerting.Service to outbox.Alerter. The two
// packages each declare their own narrow DeadLetterAlert/DeadLetterInput
// shape rather than sharing one (DESIGN.md's "capability interface declared
// where it's consumed" pattern), so cmd/pipeline-worker is where the two
// get translated into each other.
type outboxAlerter struct {
	svc *alerting.Service
}

func newOutboxAlerter(svc *alerting.Service) outbox.Alerter {
	return outboxAlerter{svc: svc}
}

func (a outboxAlerter) NotifyDeadLetter(ctx context.Context, input outbox.DeadLetterAlert) {
	a.svc.NotifyDeadLetter(ctx, alerting.DeadLetterInput{
		EventID:     input.EventID,
		EventType:   input.EventType,
		LastError:   input.LastError,
		Fingerprint: input.Fingerprint,
	})
}
