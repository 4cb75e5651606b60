package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/codeready-toolchain/eligibility/pkg/domain"
)

// TriggerService creates a Protocol row and its protocol_uploaded outbox
// event in one transaction, satisfying pkg/httpapi.TriggerService
// structurally. Grounded on OutboxRepo.Persist's WriteDomainFunc contract
// (SPEC_FULL.md §4.1: "the domain write and the outbox insert commit
// atomically").
type TriggerService struct {
	outbox *OutboxRepo
}

func NewTriggerService(outbox *OutboxRepo) *TriggerService {
	return &TriggerService{outbox: outbox}
}

// Trigger inserts a Protocol in status uploaded and a protocol_uploaded
// outbox event with idempotency key protocol_id:upload:1 (spec.md §6.1 —
// re-processing is a new event with a bumped version, not modeled by this
// first-upload path). The protocol ID is generated client-side so the
// outbox event's aggregate_id/idempotency_key/payload can be built up front,
// before OutboxRepo.Persist takes its own copy of the event.
func (t *TriggerService) Trigger(ctx context.Context, fileURI, title string) (domain.Protocol, error) {
	protocolID := uuid.NewString()

	payload, err := json.Marshal(domain.ProtocolUploadedPayload{
		ProtocolID: protocolID,
		FileURI:    fileURI,
		Title:      title,
	})
	if err != nil {
		return domain.Protocol{}, fmt.Errorf("marshal trigger payload: %w", err)
	}

	ev := domain.OutboxEvent{
		EventType:      domain.EventTypeProtocolUploaded,
		AggregateType:  "protocol",
		AggregateID:    protocolID,
		Payload:        payload,
		IdempotencyKey: domain.UploadIdempotencyKey(protocolID, 1),
	}

	var created domain.Protocol
	err = t.outbox.Persist(ctx, ev, func(ctx context.Context, tx pgx.Tx) error {
		p, err := NewProtocolRepo(tx).Create(ctx, domain.Protocol{
			ID:      protocolID,
			Title:   title,
			FileURI: fileURI,
			Status:  domain.ProtocolStatusUploaded,
		})
		if err != nil {
			return err
		}
		created = p
		return nil
	})
	if err != nil {
		return domain.Protocol{}, fmt.Errorf("trigger protocol: %w", err)
	}

	return created, nil
}
