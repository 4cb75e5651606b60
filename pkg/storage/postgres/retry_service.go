package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/codeready-toolchain/eligibility/pkg/domain"
)

// RetryService re-queues a Protocol stuck in extraction_failed or
// grounding_failed (domain.ProtocolStatus.CanRetry, spec.md §4.2) by
// transitioning it back to extracting and emitting a fresh protocol_uploaded
// outbox event in the same transaction, mirroring TriggerService's
// atomic-write-plus-outbox-insert shape.
type RetryService struct {
	protocols *ProtocolRepo
	outbox    *OutboxRepo
}

func NewRetryService(protocols *ProtocolRepo, outbox *OutboxRepo) *RetryService {
	return &RetryService{protocols: protocols, outbox: outbox}
}

// Retry re-submits protocolID for processing. It fails if the protocol's
// current status is not retryable.
func (s *RetryService) Retry(ctx context.Context, protocolID string) (domain.Protocol, error) {
	p, err := s.protocols.Get(ctx, protocolID)
	if err != nil {
		return domain.Protocol{}, fmt.Errorf("load protocol %s: %w", protocolID, err)
	}
	if !p.Status.CanRetry() {
		return domain.Protocol{}, fmt.Errorf("protocol %s in status %q cannot be retried", protocolID, p.Status)
	}
	next, ok := p.Transition(domain.ProtocolStatusExtracting)
	if !ok {
		return domain.Protocol{}, fmt.Errorf("protocol %s: %q -> %q is not an allowed transition", protocolID, p.Status, domain.ProtocolStatusExtracting)
	}

	payload, err := json.Marshal(domain.ProtocolUploadedPayload{
		ProtocolID: protocolID,
		FileURI:    p.FileURI,
		Title:      p.Title,
	})
	if err != nil {
		return domain.Protocol{}, fmt.Errorf("marshal retry payload: %w", err)
	}

	// Each retry attempt gets a distinct idempotency key (version = current
	// unix timestamp) so a repeated retry request isn't silently swallowed
	// as a duplicate of the previous one.
	ev := domain.OutboxEvent{
		EventType:      domain.EventTypeProtocolUploaded,
		AggregateType:  "protocol",
		AggregateID:    protocolID,
		Payload:        payload,
		IdempotencyKey: domain.UploadIdempotencyKey(protocolID, int(time.Now().Unix())),
	}

	err = s.outbox.Persist(ctx, ev, func(ctx context.Context, tx pgx.Tx) error {
		return NewProtocolRepo(tx).TransitionStatus(ctx, protocolID, next, nil)
	})
	if err != nil {
		return domain.Protocol{}, fmt.Errorf("retry protocol %s: %w", protocolID, err)
	}

	p.Status = next
	return p, nil
}
