package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/eligibility/pkg/domain"
)

func TestOutboxRepo_PersistCommitsDomainWriteAndEventTogether(t *testing.T) {
	client := newTestClient(t)
	protocols := NewProtocolRepo(client.Pool)
	repo := NewOutboxRepo(client.Pool)
	ctx := context.Background()

	protocolID := "11111111-1111-1111-1111-111111111111"
	ev := domain.OutboxEvent{
		EventType:      domain.EventTypeProtocolUploaded,
		AggregateType:  "protocol",
		AggregateID:    protocolID,
		Payload:        []byte(`{}`),
		IdempotencyKey: domain.UploadIdempotencyKey(protocolID, 1),
	}

	err := repo.Persist(ctx, ev, func(ctx context.Context, tx pgx.Tx) error {
		_, err := NewProtocolRepo(tx).Create(ctx, domain.Protocol{
			ID: protocolID, Title: "t", FileURI: "gs://b/o.pdf", Status: domain.ProtocolStatusUploaded,
		})
		return err
	})
	require.NoError(t, err)

	_, err = protocols.Get(ctx, protocolID)
	require.NoError(t, err)

	claimed, err := repo.ClaimNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, protocolID, claimed.AggregateID)
	assert.Equal(t, domain.OutboxStatusInFlight, claimed.Status)
}

func TestOutboxRepo_PersistDomainWriteFailureLeavesNoOutboxRow(t *testing.T) {
	client := newTestClient(t)
	repo := NewOutboxRepo(client.Pool)
	ctx := context.Background()

	ev := domain.OutboxEvent{
		EventType:      domain.EventTypeProtocolUploaded,
		AggregateType:  "protocol",
		AggregateID:    "whatever",
		Payload:        []byte(`{}`),
		IdempotencyKey: "dup-key-1",
	}

	err := repo.Persist(ctx, ev, func(ctx context.Context, tx pgx.Tx) error {
		return assert.AnError
	})
	require.Error(t, err)

	_, err = repo.ClaimNext(ctx)
	assert.ErrorIs(t, err, domain.ErrNoPendingOutboxEvents)
}

func TestOutboxRepo_ClaimNextReturnsNoPendingWhenEmpty(t *testing.T) {
	client := newTestClient(t)
	repo := NewOutboxRepo(client.Pool)

	_, err := repo.ClaimNext(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoPendingOutboxEvents)
}

func TestOutboxRepo_ClaimNextSkipsEventsNotYetDue(t *testing.T) {
	client := newTestClient(t)
	repo := NewOutboxRepo(client.Pool)
	ctx := context.Background()

	future := domain.OutboxEvent{
		EventType: domain.EventTypeProtocolUploaded, AggregateType: "protocol", AggregateID: "a",
		Payload: []byte(`{}`), IdempotencyKey: "future-1", NextAttemptAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, repo.Persist(ctx, future, func(context.Context, pgx.Tx) error { return nil }))

	_, err := repo.ClaimNext(ctx)
	assert.ErrorIs(t, err, domain.ErrNoPendingOutboxEvents)
}

func TestOutboxRepo_MarkPublishedFailedDeadLetter(t *testing.T) {
	client := newTestClient(t)
	repo := NewOutboxRepo(client.Pool)
	ctx := context.Background()

	ev := domain.OutboxEvent{
		EventType: domain.EventTypeProtocolUploaded, AggregateType: "protocol", AggregateID: "a",
		Payload: []byte(`{}`), IdempotencyKey: "k-1",
	}
	require.NoError(t, repo.Persist(ctx, ev, func(context.Context, pgx.Tx) error { return nil }))

	claimed, err := repo.ClaimNext(ctx)
	require.NoError(t, err)

	require.NoError(t, repo.MarkFailed(ctx, claimed.ID, time.Now()))
	reclaimed, err := repo.ClaimNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, claimed.ID, reclaimed.ID)

	require.NoError(t, repo.MarkDeadLetter(ctx, reclaimed.ID))
	_, err = repo.ClaimNext(ctx)
	assert.ErrorIs(t, err, domain.ErrNoPendingOutboxEvents)

	ev2 := domain.OutboxEvent{
		EventType: domain.EventTypeProtocolUploaded, AggregateType: "protocol", AggregateID: "b",
		Payload: []byte(`{}`), IdempotencyKey: "k-2",
	}
	require.NoError(t, repo.Persist(ctx, ev2, func(context.Context, pgx.Tx) error { return nil }))
	claimed2, err := repo.ClaimNext(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.MarkPublished(ctx, claimed2.ID))
}

func TestOutboxRepo_SweepExpiredDeadLettersRemovesOnlyOldRows(t *testing.T) {
	client := newTestClient(t)
	repo := NewOutboxRepo(client.Pool)
	ctx := context.Background()

	ev := domain.OutboxEvent{
		EventType: domain.EventTypeProtocolUploaded, AggregateType: "protocol", AggregateID: "a",
		Payload: []byte(`{}`), IdempotencyKey: "sweep-1",
	}
	require.NoError(t, repo.Persist(ctx, ev, func(context.Context, pgx.Tx) error { return nil }))
	claimed, err := repo.ClaimNext(ctx)
	require.NoError(t, err)
	require.NoError(t, repo.MarkDeadLetter(ctx, claimed.ID))

	n, err := repo.SweepExpiredDeadLetters(ctx, -time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = repo.SweepExpiredDeadLetters(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
