package nodes

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/codeready-toolchain/eligibility/pkg/domain"
	"github.com/codeready-toolchain/eligibility/pkg/llm"
	"github.com/codeready-toolchain/eligibility/pkg/pipeline"
)

// ordinalCanonicalMarker is the canonical unit_concept_id value written onto
// an AtomicCriterion once its scale is recognized (spec.md §4.9).
const ordinalCanonicalMarker = "ordinal_scale"

const ordinalDetectSchema = `{
  "type": "object",
  "required": ["proposals"],
  "properties": {
    "proposals": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["atom_id", "is_ordinal"],
        "properties": {
          "atom_id": {"type": "string"},
          "is_ordinal": {"type": "boolean"},
          "scale_name": {"type": "string"}
        }
      }
    }
  }
}`

// AtomicUnitResolver lists atoms missing a unit and applies the ordinal
// marker to the ones a detection LLM recognizes as ordinal scales.
type AtomicUnitResolver interface {
	ListAtomsMissingUnit(ctx context.Context, protocolID string) ([]domain.AtomicCriterion, error)
	SetOrdinalUnit(ctx context.Context, atomID, marker string) error
}

type ordinalProposal struct {
	AtomID    string `json:"atom_id"`
	IsOrdinal bool   `json:"is_ordinal"`
	ScaleName string `json:"scale_name,omitempty"`
}

type ordinalDetectResult struct {
	Proposals []ordinalProposal `json:"proposals"`
}

// OrdinalResolveConfig names the detection model.
type OrdinalResolveConfig struct {
	Model string
}

func DefaultOrdinalResolveConfig() OrdinalResolveConfig {
	return OrdinalResolveConfig{Model: "ordinal_scale_detect"}
}

// NewOrdinalResolve builds the ordinal-resolve node (spec.md §4.9): finds
// atoms with no unit, asks a detection LLM in one batch call whether each is
// a recognized ordinal scale (NYHA, ECOG, WOMAC, ...), applies the canonical
// marker, and records every proposal to AuditLog for reviewer inspection.
func NewOrdinalResolve(atoms AtomicUnitResolver, audit AuditAppender, detector llm.StructuredLLM, cfg OrdinalResolveConfig) pipeline.Node {
	return pipeline.Node{
		Name: string(pipeline.StatusResolvingOrdinals),
		Run: func(ctx context.Context, s pipeline.State) (pipeline.State, error) {
			missing, err := atoms.ListAtomsMissingUnit(ctx, s.ProtocolID)
			if err != nil {
				return s, pipeline.NewFatal("ordinal_resolve", fmt.Errorf("list atoms missing unit: %w", err))
			}
			if len(missing) == 0 {
				return s, nil
			}

			type batchItem struct {
				AtomID string `json:"atom_id"`
				Entity string `json:"entity_domain,omitempty"`
				Value  string `json:"value_text,omitempty"`
			}
			items := make([]batchItem, len(missing))
			for i, a := range missing {
				entity := ""
				if a.EntityDomain != nil {
					entity = *a.EntityDomain
				}
				value := ""
				if a.ValueText != nil {
					value = *a.ValueText
				}
				items[i] = batchItem{AtomID: a.ID, Entity: entity, Value: value}
			}
			itemsJSON, _ := json.Marshal(items)
			prompt := fmt.Sprintf("For each atom, decide whether its entity/value describes a recognized ordinal clinical scale (e.g. NYHA, ECOG, WOMAC) missing only its unit annotation: %s", itemsJSON)

			resp, err := detector.Call(ctx, llm.Request{
				Model:    cfg.Model,
				Messages: []llm.Message{{Role: "user", Content: prompt}},
				Schema:   json.RawMessage(ordinalDetectSchema),
			})
			if err != nil {
				s.AddError(fmt.Errorf("ordinal detection LLM call: %w", err))
				return s, nil
			}

			var result ordinalDetectResult
			if err := llm.Decode(resp, &result); err != nil {
				s.AddError(fmt.Errorf("decode ordinal detection result: %w", err))
				return s, nil
			}

			for _, p := range result.Proposals {
				if p.IsOrdinal {
					if err := atoms.SetOrdinalUnit(ctx, p.AtomID, ordinalCanonicalMarker); err != nil {
						s.AddError(pipeline.NewPartial(p.AtomID, fmt.Errorf("set ordinal unit: %w", err)))
					}
				}

				after, _ := json.Marshal(p)
				if _, err := audit.InsertAuditLog(ctx, domain.AuditLog{
					ProtocolID: s.ProtocolID,
					EventType:  "ordinal_scale_proposal",
					After:      after,
				}); err != nil {
					s.AddError(fmt.Errorf("record ordinal proposal audit log: %w", err))
				}
			}

			proposalsJSON, err := json.Marshal(result.Proposals)
			if err != nil {
				return s, pipeline.NewFatal("ordinal_resolve", fmt.Errorf("marshal ordinal_proposals_json: %w", err))
			}
			s.OrdinalProposalsJSON = proposalsJSON
			return s, nil
		},
	}
}

// AuditAppender is the narrow repository slice for writing AuditLog rows.
type AuditAppender interface {
	InsertAuditLog(ctx context.Context, a domain.AuditLog) (domain.AuditLog, error)
}
