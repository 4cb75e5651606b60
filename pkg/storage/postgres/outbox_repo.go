package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codeready-toolchain/eligibility/pkg/domain"
)

// OutboxRepo persists domain.OutboxEvent and provides the dispatcher's claim
// query. Grounded on Worker.claimNextSession in the teacher's
// pkg/queue/worker.go: SELECT ... FOR UPDATE SKIP LOCKED inside a
// transaction, then an UPDATE to mark the claim, then commit.
type OutboxRepo struct {
	pool *pgxpool.Pool
}

func NewOutboxRepo(pool *pgxpool.Pool) *OutboxRepo { return &OutboxRepo{pool: pool} }

// WriteDomainFunc performs a domain write using the same transaction the
// outbox insert runs in. Persist calls it first so a failure leaves neither
// the domain row nor the outbox row behind (SPEC_FULL.md §4.1: "the domain
// write and the outbox insert commit atomically").
type WriteDomainFunc func(ctx context.Context, tx pgx.Tx) error

// Persist runs writeDomain and the outbox insert in one transaction. A
// duplicate idempotency_key is treated as success (the event was already
// queued by a prior attempt) rather than an error.
func (r *OutboxRepo) Persist(ctx context.Context, ev domain.OutboxEvent, writeDomain WriteDomainFunc) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Status == "" {
		ev.Status = domain.OutboxStatusPending
	}
	if ev.NextAttemptAt.IsZero() {
		ev.NextAttemptAt = time.Now()
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin persist-with-outbox tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := writeDomain(ctx, tx); err != nil {
		return fmt.Errorf("domain write: %w", err)
	}

	const q = `
		INSERT INTO outbox_events (id, event_type, aggregate_type, aggregate_id, payload,
			idempotency_key, status, retry_count, next_attempt_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8)
		ON CONFLICT (idempotency_key) DO NOTHING`
	if _, err := tx.Exec(ctx, q, ev.ID, ev.EventType, ev.AggregateType, ev.AggregateID, ev.Payload,
		ev.IdempotencyKey, ev.Status, ev.NextAttemptAt); err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit persist-with-outbox: %w", err)
	}
	return nil
}

// ClaimNext atomically claims the oldest due pending event, setting it
// in_flight, and returns it. Returns domain.ErrNoPendingOutboxEvents when
// nothing is due.
func (r *OutboxRepo) ClaimNext(ctx context.Context) (domain.OutboxEvent, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.OutboxEvent{}, fmt.Errorf("begin claim tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const selectQ = `
		SELECT id, event_type, aggregate_type, aggregate_id, payload, idempotency_key,
			status, retry_count, created_at, next_attempt_at, published_at
		FROM outbox_events
		WHERE status = 'pending' AND next_attempt_at <= now()
		ORDER BY next_attempt_at
		LIMIT 1
		FOR UPDATE SKIP LOCKED`

	var ev domain.OutboxEvent
	err = tx.QueryRow(ctx, selectQ).Scan(
		&ev.ID, &ev.EventType, &ev.AggregateType, &ev.AggregateID, &ev.Payload, &ev.IdempotencyKey,
		&ev.Status, &ev.RetryCount, &ev.CreatedAt, &ev.NextAttemptAt, &ev.PublishedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.OutboxEvent{}, domain.ErrNoPendingOutboxEvents
	}
	if err != nil {
		return domain.OutboxEvent{}, fmt.Errorf("select pending outbox event: %w", err)
	}

	const claimQ = `UPDATE outbox_events SET status = 'in_flight' WHERE id = $1`
	if _, err := tx.Exec(ctx, claimQ, ev.ID); err != nil {
		return domain.OutboxEvent{}, fmt.Errorf("claim outbox event %s: %w", ev.ID, err)
	}
	ev.Status = domain.OutboxStatusInFlight

	if err := tx.Commit(ctx); err != nil {
		return domain.OutboxEvent{}, fmt.Errorf("commit claim: %w", err)
	}
	return ev, nil
}

// MarkPublished transitions an event to published.
func (r *OutboxRepo) MarkPublished(ctx context.Context, id string) error {
	const q = `UPDATE outbox_events SET status = 'published', published_at = now() WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return fmt.Errorf("mark published %s: %w", id, err)
	}
	return nil
}

// MarkFailed records a transient failure, bumping retry_count and scheduling
// nextAttempt. The dispatcher supplies nextAttempt from its backoff policy
// (outbox.Dispatcher's backoffDelay exponential+jitter schedule).
func (r *OutboxRepo) MarkFailed(ctx context.Context, id string, nextAttempt time.Time) error {
	const q = `UPDATE outbox_events SET status = 'pending', retry_count = retry_count + 1, next_attempt_at = $2 WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id, nextAttempt)
	if err != nil {
		return fmt.Errorf("mark failed %s: %w", id, err)
	}
	return nil
}

// MarkDeadLetter transitions an event past its retry budget to dead_letter.
func (r *OutboxRepo) MarkDeadLetter(ctx context.Context, id string) error {
	const q = `UPDATE outbox_events SET status = 'dead_letter' WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return fmt.Errorf("mark dead letter %s: %w", id, err)
	}
	return nil
}

// SweepExpiredDeadLetters archives (deletes) dead_letter rows older than
// ttl — the active-sweeper half of the dual lazy+active archival policy
// (DESIGN.md Open Question resolution #3). Returns the count removed.
func (r *OutboxRepo) SweepExpiredDeadLetters(ctx context.Context, ttl time.Duration) (int, error) {
	const q = `DELETE FROM outbox_events WHERE status = 'dead_letter' AND created_at < $1`
	tag, err := r.pool.Exec(ctx, q, time.Now().Add(-ttl))
	if err != nil {
		return 0, fmt.Errorf("sweep expired dead letters: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
