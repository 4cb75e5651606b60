package nodes

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/codeready-toolchain/eligibility/pkg/domain"
	"github.com/codeready-toolchain/eligibility/pkg/pipeline"
)

// EntityWriter is the narrow repository slice the persist node needs.
type EntityWriter interface {
	InsertEntity(ctx context.Context, e domain.Entity) (domain.Entity, error)
	UpdateConditions(ctx context.Context, id string, conditions []byte) error
}

// fieldMapping is one entry written back onto Criteria.conditions so the
// structure node can read grounded bindings (spec.md §4.7).
type fieldMapping struct {
	EntityType domain.EntityType `json:"entity_type"`
	Code       string            `json:"code,omitempty"`
	System     string            `json:"system,omitempty"`
	Confidence float64           `json:"confidence"`
}

// NewPersist builds the persist node (spec.md §4.7): inserts Entity rows,
// writes field_mappings onto Criteria.conditions, and decides the resulting
// Protocol status from the attempted/grounded counts.
func NewPersist(entities EntityWriter, protocols ProtocolStatusSetter) pipeline.Node {
	return pipeline.Node{
		Name: string(pipeline.StatusPersisting),
		Run: func(ctx context.Context, s pipeline.State) (pipeline.State, error) {
			var grounded []GroundedEntity
			if err := json.Unmarshal(s.GroundedEntitiesJSON, &grounded); err != nil {
				return s, pipeline.NewFatal("persist", fmt.Errorf("decode grounded_entities_json: %w", err))
			}

			byCriterion := make(map[string][]fieldMapping)
			attempted, groundedCount := 0, 0

			for _, g := range grounded {
				if g.SkipGrounding {
					continue
				}
				attempted++

				codes := domain.CodeBindings{}
				switch g.System {
				case "snomed":
					codes.SNOMEDCode = g.BestCode
				case "rxnorm":
					codes.RxNormCode = g.BestCode
				case "loinc":
					codes.LOINCCode = g.BestCode
				case "icd10":
					codes.ICD10Code = g.BestCode
				case "hpo":
					codes.HPOCode = g.BestCode
				case "umls":
					codes.UMLSCUI = g.BestCode
				}

				entity := domain.Entity{
					CriteriaID:          g.CriterionID,
					EntityType:          g.EntityType,
					Text:                g.Text,
					Codes:               codes,
					GroundingConfidence: g.Confidence,
					GroundingMethod:     g.Method,
				}
				if !entity.Valid() {
					s.AddError(fmt.Errorf("criterion %s: invalid entity (neither text nor codes set)", g.CriterionID))
					continue
				}

				if _, err := entities.InsertEntity(ctx, entity); err != nil {
					s.AddError(pipeline.NewPartial(g.CriterionID, fmt.Errorf("insert entity: %w", err)))
					continue
				}
				if g.BestCode != "" {
					groundedCount++
				}

				byCriterion[g.CriterionID] = append(byCriterion[g.CriterionID], fieldMapping{
					EntityType: g.EntityType, Code: g.BestCode, System: g.System, Confidence: g.Confidence,
				})
			}

			for criterionID, mappings := range byCriterion {
				conditions, err := json.Marshal(struct {
					FieldMappings []fieldMapping `json:"field_mappings"`
				}{FieldMappings: mappings})
				if err != nil {
					s.AddError(fmt.Errorf("marshal conditions for criterion %s: %w", criterionID, err))
					continue
				}
				if err := entities.UpdateConditions(ctx, criterionID, conditions); err != nil {
					s.AddError(fmt.Errorf("write conditions for criterion %s: %w", criterionID, err))
				}
			}

			next, errReason := nextProtocolStatus(attempted, groundedCount, s)
			if err := protocols.TransitionStatus(ctx, s.ProtocolID, next, errReason); err != nil {
				return s, pipeline.NewFatal("persist", fmt.Errorf("transition protocol status: %w", err))
			}
			if next == domain.ProtocolStatusExtractionFailed || next == domain.ProtocolStatusGroundingFailed {
				return s, pipeline.NewFatal("persist", fmt.Errorf("protocol moved to %s", next))
			}
			return s, nil
		},
	}
}

// nextProtocolStatus implements spec.md §4.7's decision table.
func nextProtocolStatus(attempted, grounded int, s pipeline.State) (domain.ProtocolStatus, *string) {
	if attempted == 0 {
		reason := "no criteria produced any entities"
		return domain.ProtocolStatusExtractionFailed, &reason
	}
	if grounded == 0 {
		reason := "no entities were successfully grounded"
		return domain.ProtocolStatusGroundingFailed, &reason
	}
	return domain.ProtocolStatusPendingReview, nil
}
