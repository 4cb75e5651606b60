package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codeready-toolchain/eligibility/pkg/domain"
)

// ReviewRepo persists the append-only Review and AuditLog trails. Neither
// row is ever updated or deleted once written (SPEC_FULL.md §3).
type ReviewRepo struct {
	pool *pgxpool.Pool
}

func NewReviewRepo(pool *pgxpool.Pool) *ReviewRepo { return &ReviewRepo{pool: pool} }

// InsertReview appends one reviewer decision and, when the action approves
// or modifies the criterion, updates the Criteria row's review_status in the
// same transaction.
func (r *ReviewRepo) InsertReview(ctx context.Context, rev domain.Review, newReviewStatus *domain.ReviewStatus) (domain.Review, error) {
	if rev.ID == "" {
		rev.ID = uuid.NewString()
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.Review{}, fmt.Errorf("begin insert review tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const insertQ = `
		INSERT INTO reviews (id, criteria_id, action, before_json, after_json, reviewer_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`
	if err := tx.QueryRow(ctx, insertQ, rev.ID, rev.CriteriaID, rev.Action, rev.Before, rev.After, rev.ReviewerID).
		Scan(&rev.CreatedAt); err != nil {
		return domain.Review{}, fmt.Errorf("insert review: %w", err)
	}

	if newReviewStatus != nil {
		const updateQ = `UPDATE criteria SET review_status = $2, updated_at = now() WHERE id = $1`
		if _, err := tx.Exec(ctx, updateQ, rev.CriteriaID, *newReviewStatus); err != nil {
			return domain.Review{}, fmt.Errorf("update criteria review_status: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Review{}, fmt.Errorf("commit insert review: %w", err)
	}
	return rev, nil
}

// ListByCriteria returns every Review of one Criteria, oldest first.
func (r *ReviewRepo) ListByCriteria(ctx context.Context, criteriaID string) ([]domain.Review, error) {
	const q = `
		SELECT id, criteria_id, action, before_json, after_json, reviewer_id, created_at
		FROM reviews WHERE criteria_id = $1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, q, criteriaID)
	if err != nil {
		return nil, fmt.Errorf("list reviews for criteria %s: %w", criteriaID, err)
	}
	defer rows.Close()

	var out []domain.Review
	for rows.Next() {
		var rev domain.Review
		if err := rows.Scan(&rev.ID, &rev.CriteriaID, &rev.Action, &rev.Before, &rev.After, &rev.ReviewerID, &rev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		out = append(out, rev)
	}
	return out, rows.Err()
}

// InsertAuditLog appends one system-generated audit record (e.g. an
// ordinal-scale proposal or a protocol status transition).
func (r *ReviewRepo) InsertAuditLog(ctx context.Context, a domain.AuditLog) (domain.AuditLog, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	const q = `
		INSERT INTO audit_logs (id, protocol_id, event_type, before_json, after_json)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`
	err := r.pool.QueryRow(ctx, q, a.ID, a.ProtocolID, a.EventType, a.Before, a.After).Scan(&a.CreatedAt)
	if err != nil {
		return domain.AuditLog{}, fmt.Errorf("insert audit log: %w", err)
	}
	return a, nil
}

// ListAuditLogsByProtocol returns every AuditLog of one protocol, oldest first.
func (r *ReviewRepo) ListAuditLogsByProtocol(ctx context.Context, protocolID string) ([]domain.AuditLog, error) {
	const q = `
		SELECT id, protocol_id, event_type, before_json, after_json, created_at
		FROM audit_logs WHERE protocol_id = $1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, q, protocolID)
	if err != nil {
		return nil, fmt.Errorf("list audit logs for protocol %s: %w", protocolID, err)
	}
	defer rows.Close()

	var out []domain.AuditLog
	for rows.Next() {
		var a domain.AuditLog
		if err := rows.Scan(&a.ID, &a.ProtocolID, &a.EventType, &a.Before, &a.After, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
