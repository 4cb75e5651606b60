package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/codeready-toolchain/eligibility/pkg/domain"
)

// ErrNotFound is returned by every repository in this package when a lookup
// by ID finds no row. Alias of domain.ErrNotFound (not a local sentinel) so
// pkg/httpapi can match it via errors.Is without importing this package —
// the same cross-package sentinel fix applied to the outbox dispatcher.
var ErrNotFound = domain.ErrNotFound

// ProtocolRepo persists domain.Protocol. Grounded on the teacher's
// ent-generated AlertSession CRUD surface, translated to hand-written pgx/v5
// queries (entgo.io/ent needs `go generate` codegen, forbidden; DESIGN.md).
type ProtocolRepo struct {
	pool Querier
}

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx, letting repository
// methods run either standalone or inside a caller-managed transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func NewProtocolRepo(q Querier) *ProtocolRepo { return &ProtocolRepo{pool: q} }

// Create inserts a new Protocol in status uploaded.
func (r *ProtocolRepo) Create(ctx context.Context, p domain.Protocol) (domain.Protocol, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Metadata == nil {
		p.Metadata = json.RawMessage(`{}`)
	}
	const q = `
		INSERT INTO protocols (id, title, file_uri, status, page_count, quality_score, error_reason, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, p.ID, p.Title, p.FileURI, p.Status, p.PageCount, p.QualityScore, p.ErrorReason, p.Metadata).
		Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return domain.Protocol{}, fmt.Errorf("insert protocol: %w", err)
	}
	return p, nil
}

// Get fetches a Protocol by ID.
func (r *ProtocolRepo) Get(ctx context.Context, id string) (domain.Protocol, error) {
	const q = `
		SELECT id, title, file_uri, status, page_count, quality_score, error_reason, metadata, created_at, updated_at
		FROM protocols WHERE id = $1`
	var p domain.Protocol
	err := r.pool.QueryRow(ctx, q, id).Scan(
		&p.ID, &p.Title, &p.FileURI, &p.Status, &p.PageCount, &p.QualityScore, &p.ErrorReason, &p.Metadata, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Protocol{}, ErrNotFound
	}
	if err != nil {
		return domain.Protocol{}, fmt.Errorf("get protocol %s: %w", id, err)
	}
	return p, nil
}

// TransitionStatus applies a validated status transition, recording the
// error reason when moving into a failed state. Callers must pass a status
// already validated by domain.Protocol.Transition.
func (r *ProtocolRepo) TransitionStatus(ctx context.Context, id string, next domain.ProtocolStatus, errReason *string) error {
	const q = `UPDATE protocols SET status = $2, error_reason = $3, updated_at = now() WHERE id = $1`
	tag, err := r.pool.Exec(ctx, q, id, next, errReason)
	if err != nil {
		return fmt.Errorf("transition protocol %s to %s: %w", id, next, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetPageCountAndQuality records the ingest node's PDF metadata.
func (r *ProtocolRepo) SetPageCountAndQuality(ctx context.Context, id string, pageCount int, quality float64) error {
	const q = `UPDATE protocols SET page_count = $2, quality_score = $3, updated_at = now() WHERE id = $1`
	tag, err := r.pool.Exec(ctx, q, id, pageCount, quality)
	if err != nil {
		return fmt.Errorf("set protocol %s metadata: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
