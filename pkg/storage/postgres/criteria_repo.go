package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codeready-toolchain/eligibility/pkg/domain"
)

// CriteriaRepo persists CriteriaBatch, Criteria and Entity rows. Grounded on
// the teacher's claimNextSession transactional pattern in
// pkg/queue/worker.go, applied here to batch archival instead of session
// claiming.
type CriteriaRepo struct {
	pool *pgxpool.Pool
}

func NewCriteriaRepo(pool *pgxpool.Pool) *CriteriaRepo { return &CriteriaRepo{pool: pool} }

// CreateBatch inserts a new CriteriaBatch and archives every prior
// non-archived batch of the same protocol, in one transaction — the
// invariant behind idx_criteria_batches_one_active (SPEC_FULL.md §8).
func (r *CriteriaRepo) CreateBatch(ctx context.Context, b domain.CriteriaBatch) (domain.CriteriaBatch, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.CriteriaBatch{}, fmt.Errorf("begin create batch tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const archiveQ = `UPDATE criteria_batches SET is_archived = true, updated_at = now()
		WHERE protocol_id = $1 AND NOT is_archived`
	if _, err := tx.Exec(ctx, archiveQ, b.ProtocolID); err != nil {
		return domain.CriteriaBatch{}, fmt.Errorf("archive prior batches: %w", err)
	}

	const insertQ = `
		INSERT INTO criteria_batches (id, protocol_id, status, extraction_model, is_archived)
		VALUES ($1, $2, $3, $4, false)
		RETURNING created_at, updated_at`
	if err := tx.QueryRow(ctx, insertQ, b.ID, b.ProtocolID, b.Status, b.ExtractionModel).
		Scan(&b.CreatedAt, &b.UpdatedAt); err != nil {
		return domain.CriteriaBatch{}, fmt.Errorf("insert batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.CriteriaBatch{}, fmt.Errorf("commit create batch: %w", err)
	}
	return b, nil
}

// ActiveBatch returns the single non-archived batch for a protocol, if any.
func (r *CriteriaRepo) ActiveBatch(ctx context.Context, protocolID string) (domain.CriteriaBatch, error) {
	const q = `
		SELECT id, protocol_id, status, extraction_model, is_archived, created_at, updated_at
		FROM criteria_batches WHERE protocol_id = $1 AND NOT is_archived`
	var b domain.CriteriaBatch
	err := r.pool.QueryRow(ctx, q, protocolID).Scan(
		&b.ID, &b.ProtocolID, &b.Status, &b.ExtractionModel, &b.IsArchived, &b.CreatedAt, &b.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.CriteriaBatch{}, ErrNotFound
	}
	if err != nil {
		return domain.CriteriaBatch{}, fmt.Errorf("active batch for protocol %s: %w", protocolID, err)
	}
	return b, nil
}

// InsertCriteria writes one Criteria row belonging to batchID.
func (r *CriteriaRepo) InsertCriteria(ctx context.Context, c domain.Criteria) (domain.Criteria, error) {
	return r.insertCriteriaWith(ctx, r.pool, c)
}

func (r *CriteriaRepo) insertCriteriaWith(ctx context.Context, q Querier, c domain.Criteria) (domain.Criteria, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	const insertQ = `
		INSERT INTO criteria (id, batch_id, criteria_type, category, text, structured_criterion,
			conditions, confidence, assertion_status, source_section, page_number, review_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at`
	err := q.QueryRow(ctx, insertQ,
		c.ID, c.BatchID, c.CriteriaType, c.Category, c.Text, c.StructuredCriterion,
		c.Conditions, c.Confidence, c.AssertionStatus, c.SourceSection, c.PageNumber, c.ReviewStatus,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return domain.Criteria{}, fmt.Errorf("insert criteria: %w", err)
	}
	return c, nil
}

// UpdateStructuredCriterion persists the structure node's expression-tree
// pointer for one Criteria row (SPEC_FULL.md §4.9).
func (r *CriteriaRepo) UpdateStructuredCriterion(ctx context.Context, id string, structured []byte) error {
	const q = `UPDATE criteria SET structured_criterion = $2, updated_at = now() WHERE id = $1`
	tag, err := r.pool.Exec(ctx, q, id, structured)
	if err != nil {
		return fmt.Errorf("update structured criterion %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateConditions persists the ground node's field_mappings payload.
func (r *CriteriaRepo) UpdateConditions(ctx context.Context, id string, conditions []byte) error {
	const q = `UPDATE criteria SET conditions = $2, updated_at = now() WHERE id = $1`
	tag, err := r.pool.Exec(ctx, q, id, conditions)
	if err != nil {
		return fmt.Errorf("update conditions %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByBatch returns every Criteria row of a batch, ordered by insertion.
func (r *CriteriaRepo) ListByBatch(ctx context.Context, batchID string) ([]domain.Criteria, error) {
	const q = `
		SELECT id, batch_id, criteria_type, category, text, structured_criterion, conditions,
			confidence, assertion_status, source_section, page_number, review_status, created_at, updated_at
		FROM criteria WHERE batch_id = $1 ORDER BY created_at`
	rows, err := r.pool.Query(ctx, q, batchID)
	if err != nil {
		return nil, fmt.Errorf("list criteria for batch %s: %w", batchID, err)
	}
	defer rows.Close()

	var out []domain.Criteria
	for rows.Next() {
		var c domain.Criteria
		if err := rows.Scan(
			&c.ID, &c.BatchID, &c.CriteriaType, &c.Category, &c.Text, &c.StructuredCriterion, &c.Conditions,
			&c.Confidence, &c.AssertionStatus, &c.SourceSection, &c.PageNumber, &c.ReviewStatus, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan criteria: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// InsertEntity writes one Entity row.
func (r *CriteriaRepo) InsertEntity(ctx context.Context, e domain.Entity) (domain.Entity, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	const q = `
		INSERT INTO entities (id, criteria_id, entity_type, text, span_start, span_end,
			umls_cui, snomed_code, rxnorm_code, loinc_code, icd10_code, hpo_code,
			grounding_confidence, grounding_method, context_window, skip_grounding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING created_at`
	err := r.pool.QueryRow(ctx, q,
		e.ID, e.CriteriaID, e.EntityType, e.Text, e.SpanStart, e.SpanEnd,
		nullString(e.Codes.UMLSCUI), nullString(e.Codes.SNOMEDCode), nullString(e.Codes.RxNormCode),
		nullString(e.Codes.LOINCCode), nullString(e.Codes.ICD10Code), nullString(e.Codes.HPOCode),
		e.GroundingConfidence, nullString(string(e.GroundingMethod)), e.ContextWindow, e.SkipGrounding,
	).Scan(&e.CreatedAt)
	if err != nil {
		return domain.Entity{}, fmt.Errorf("insert entity: %w", err)
	}
	return e, nil
}

// ListEntitiesByCriteria returns every Entity row belonging to one Criteria.
func (r *CriteriaRepo) ListEntitiesByCriteria(ctx context.Context, criteriaID string) ([]domain.Entity, error) {
	const q = `
		SELECT id, criteria_id, entity_type, text, span_start, span_end,
			umls_cui, snomed_code, rxnorm_code, loinc_code, icd10_code, hpo_code,
			grounding_confidence, grounding_method, context_window, skip_grounding, created_at
		FROM entities WHERE criteria_id = $1`
	rows, err := r.pool.Query(ctx, q, criteriaID)
	if err != nil {
		return nil, fmt.Errorf("list entities for criteria %s: %w", criteriaID, err)
	}
	defer rows.Close()

	var out []domain.Entity
	for rows.Next() {
		var e domain.Entity
		var method *string
		var umlsCUI, snomedCode, rxnormCode, loincCode, icd10Code, hpoCode *string
		if err := rows.Scan(
			&e.ID, &e.CriteriaID, &e.EntityType, &e.Text, &e.SpanStart, &e.SpanEnd,
			&umlsCUI, &snomedCode, &rxnormCode, &loincCode, &icd10Code, &hpoCode,
			&e.GroundingConfidence, &method, &e.ContextWindow, &e.SkipGrounding, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		e.Codes = domain.CodeBindings{
			UMLSCUI:    deref(umlsCUI),
			SNOMEDCode: deref(snomedCode),
			RxNormCode: deref(rxnormCode),
			LOINCCode:  deref(loincCode),
			ICD10Code:  deref(icd10Code),
			HPOCode:    deref(hpoCode),
		}
		if method != nil {
			e.GroundingMethod = domain.GroundingMethod(*method)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
