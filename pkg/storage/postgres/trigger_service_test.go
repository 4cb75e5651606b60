package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/eligibility/pkg/domain"
)

func TestTriggerService_TriggerCreatesProtocolAndOutboxEvent(t *testing.T) {
	client := newTestClient(t)
	protocols := NewProtocolRepo(client.Pool)
	outbox := NewOutboxRepo(client.Pool)
	svc := NewTriggerService(outbox)
	ctx := context.Background()

	p, err := svc.Trigger(ctx, "gs://bucket/protocol.pdf", "NCT00000002")
	require.NoError(t, err)
	assert.Equal(t, domain.ProtocolStatusUploaded, p.Status)

	got, err := protocols.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "NCT00000002", got.Title)

	ev, err := outbox.ClaimNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, p.ID, ev.AggregateID)
	assert.Equal(t, domain.EventTypeProtocolUploaded, ev.EventType)
	assert.Equal(t, domain.UploadIdempotencyKey(p.ID, 1), ev.IdempotencyKey)
}
