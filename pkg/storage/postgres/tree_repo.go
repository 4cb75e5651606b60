package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codeready-toolchain/eligibility/pkg/domain"
)

// TreeRepo persists the expression tree (AtomicCriterion, CompositeCriterion,
// CriterionRelationship) the structure node builds for one Criteria at a
// time, inside a single transaction per criterion (SPEC_FULL.md §4.9: "a
// malformed criterion's tree is skipped, never aborting the whole batch").
type TreeRepo struct {
	pool *pgxpool.Pool
}

func NewTreeRepo(pool *pgxpool.Pool) *TreeRepo { return &TreeRepo{pool: pool} }

// ReplaceTree deletes any existing tree for criterionID and writes nodes in
// a single transaction, rooted at nodes[rootIndex]. Returns the root's newly
// assigned database ID.
func (r *TreeRepo) ReplaceTree(ctx context.Context, protocolID, criterionID string, nodes []domain.TreeNode, rootIndex int) (rootID string, err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin replace tree tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM criterion_relationships WHERE criterion_id = $1`, criterionID); err != nil {
		return "", fmt.Errorf("clear relationships: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM atomic_criteria WHERE criterion_id = $1`, criterionID); err != nil {
		return "", fmt.Errorf("clear atomic nodes: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM composite_criteria WHERE criterion_id = $1`, criterionID); err != nil {
		return "", fmt.Errorf("clear composite nodes: %w", err)
	}

	ids := make([]string, len(nodes))
	kinds := make([]domain.NodeKind, len(nodes))

	for i, n := range nodes {
		switch {
		case n.Atomic != nil:
			a := *n.Atomic
			a.ID = uuid.NewString()
			a.CriterionID = criterionID
			a.ProtocolID = protocolID
			const q = `
				INSERT INTO atomic_criteria (id, criterion_id, protocol_id, inclusion_exclusion, entity_domain,
					entity_concept_id, entity_concept_system, relation_operator, value_numeric, value_text,
					unit_text, unit_concept_id, negation)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
			if _, err := tx.Exec(ctx, q, a.ID, a.CriterionID, a.ProtocolID, a.InclusionExclusion, a.EntityDomain,
				a.EntityConceptID, a.EntityConceptSystem, a.RelationOperator, a.ValueNumeric, a.ValueText,
				a.UnitText, a.UnitConceptID, a.Negation); err != nil {
				return "", fmt.Errorf("insert atomic node %d: %w", i, err)
			}
			ids[i], kinds[i] = a.ID, domain.NodeKindAtomic

		case n.Composite != nil:
			c := *n.Composite
			c.ID = uuid.NewString()
			c.CriterionID = criterionID
			c.ProtocolID = protocolID
			if !c.ValidChildCount(len(n.Children)) {
				return "", fmt.Errorf("composite node %d: %d children invalid for operator %s", i, len(n.Children), c.LogicOperator)
			}
			const q = `INSERT INTO composite_criteria (id, criterion_id, protocol_id, logic_operator) VALUES ($1, $2, $3, $4)`
			if _, err := tx.Exec(ctx, q, c.ID, c.CriterionID, c.ProtocolID, c.LogicOperator); err != nil {
				return "", fmt.Errorf("insert composite node %d: %w", i, err)
			}
			ids[i], kinds[i] = c.ID, domain.NodeKindComposite

		default:
			return "", fmt.Errorf("node %d has neither Atomic nor Composite set", i)
		}
	}

	for i, n := range nodes {
		if n.Composite == nil {
			continue
		}
		for seq, childIdx := range n.Children {
			relID := uuid.NewString()
			const q = `
				INSERT INTO criterion_relationships (id, criterion_id, parent_id, child_id, child_kind, child_sequence)
				VALUES ($1, $2, $3, $4, $5, $6)`
			if _, err := tx.Exec(ctx, q, relID, criterionID, ids[i], ids[childIdx], kinds[childIdx], seq); err != nil {
				return "", fmt.Errorf("insert relationship parent=%d child=%d: %w", i, childIdx, err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit replace tree: %w", err)
	}
	return ids[rootIndex], nil
}

// ListAtomsMissingUnit returns every AtomicCriterion of a protocol whose
// unit_text is unset — the ordinal-resolve node's candidate set (spec.md
// §4.9: "Select atomic criteria whose unit is missing").
func (r *TreeRepo) ListAtomsMissingUnit(ctx context.Context, protocolID string) ([]domain.AtomicCriterion, error) {
	const q = `
		SELECT id, criterion_id, protocol_id, inclusion_exclusion, entity_domain, entity_concept_id,
			entity_concept_system, relation_operator, value_numeric, value_text, unit_text, unit_concept_id, negation
		FROM atomic_criteria WHERE protocol_id = $1 AND unit_text IS NULL`
	rows, err := r.pool.Query(ctx, q, protocolID)
	if err != nil {
		return nil, fmt.Errorf("list atoms missing unit for protocol %s: %w", protocolID, err)
	}
	defer rows.Close()

	var out []domain.AtomicCriterion
	for rows.Next() {
		var a domain.AtomicCriterion
		if err := rows.Scan(&a.ID, &a.CriterionID, &a.ProtocolID, &a.InclusionExclusion, &a.EntityDomain, &a.EntityConceptID,
			&a.EntityConceptSystem, &a.RelationOperator, &a.ValueNumeric, &a.ValueText, &a.UnitText, &a.UnitConceptID, &a.Negation); err != nil {
			return nil, fmt.Errorf("scan atomic criterion: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// SetOrdinalUnit stamps marker (the caller's canonical ordinal-scale value,
// e.g. "ordinal_scale") onto one atom's unit_concept_id (spec.md §4.9).
func (r *TreeRepo) SetOrdinalUnit(ctx context.Context, atomID, marker string) error {
	const q = `UPDATE atomic_criteria SET unit_concept_id = $2 WHERE id = $1`
	tag, err := r.pool.Exec(ctx, q, atomID, marker)
	if err != nil {
		return fmt.Errorf("set ordinal unit on atom %s: %w", atomID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
