package nodes

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/codeready-toolchain/eligibility/pkg/domain"
	"github.com/codeready-toolchain/eligibility/pkg/pipeline"
)

// CriteriaWriter is the narrow repository slice the parse node needs.
type CriteriaWriter interface {
	CreateBatch(ctx context.Context, b domain.CriteriaBatch) (domain.CriteriaBatch, error)
	InsertCriteria(ctx context.Context, c domain.Criteria) (domain.Criteria, error)
}

// EntityLite is one entry of entities_json (spec.md §4.5): a lightweight
// per-criterion entity record produced before grounding, not yet an Entity
// row (the ground node creates those).
type EntityLite struct {
	CriterionID  string            `json:"criterion_id"`
	Text         string            `json:"text"`
	CriteriaType string            `json:"criteria_type"`
	Category     string            `json:"category,omitempty"`
	EntityType   domain.EntityType `json:"entity_type"`
}

// ParseConfig names the extraction model recorded on the new CriteriaBatch,
// and the PIPELINE_MAX_CRITERIA truncation guard (SPEC_FULL.md §9: "test/ops
// override, default 0 = unlimited" mirrors the ground node's equivalent
// entity guard).
type ParseConfig struct {
	ExtractionModel string
	MaxCriteria     int
}

// categoryEntityType is the rule-based category→entity_type mapping used
// when the extract node's category field is set but no LLM-supplied entity
// list exists (spec.md §4.5: "via a rule-based pass over the text").
var categoryEntityType = map[string]domain.EntityType{
	"medication":  domain.EntityTypeMedication,
	"drug":        domain.EntityTypeMedication,
	"condition":   domain.EntityTypeCondition,
	"diagnosis":   domain.EntityTypeCondition,
	"disease":     domain.EntityTypeCondition,
	"procedure":   domain.EntityTypeProcedure,
	"surgery":     domain.EntityTypeProcedure,
	"lab":         domain.EntityTypeLabValue,
	"laboratory":  domain.EntityTypeLabValue,
	"biomarker":   domain.EntityTypeBiomarker,
	"demographic": domain.EntityTypeDemographic,
	"age":         domain.EntityTypeDemographic,
	"sex":         domain.EntityTypeDemographic,
	"phenotype":   domain.EntityTypePhenotype,
}

func inferEntityType(category string) domain.EntityType {
	lower := strings.ToLower(category)
	for keyword, et := range categoryEntityType {
		if strings.Contains(lower, keyword) {
			return et
		}
	}
	return domain.EntityTypeCondition // most criteria describe a clinical condition
}

// NewParse builds the parse node (spec.md §4.5): it creates a new
// CriteriaBatch (CreateBatch already archives prior non-archived batches per
// protocol, pkg/storage/postgres.CriteriaRepo.CreateBatch), inserts its
// Criteria rows one call at a time, then derives entities_json. The batch and
// its rows are not written in one transaction: a failed row insert is
// recorded in State.Errors and the batch keeps the rows that succeeded.
func NewParse(repo CriteriaWriter, cfg ParseConfig) pipeline.Node {
	return pipeline.Node{
		Name: string(pipeline.StatusParsing),
		Run: func(ctx context.Context, s pipeline.State) (pipeline.State, error) {
			var extraction ExtractionResult
			if err := json.Unmarshal(s.ExtractionJSON, &extraction); err != nil {
				return s, pipeline.NewFatal("parse", fmt.Errorf("decode extraction_json: %w", err))
			}

			criteria := extraction.Criteria
			if cfg.MaxCriteria > 0 && len(criteria) > cfg.MaxCriteria {
				s.AddError(fmt.Errorf("truncated %d criteria to PIPELINE_MAX_CRITERIA=%d", len(criteria)-cfg.MaxCriteria, cfg.MaxCriteria))
				criteria = criteria[:cfg.MaxCriteria]
			}

			batch, err := repo.CreateBatch(ctx, domain.CriteriaBatch{
				ProtocolID:      s.ProtocolID,
				Status:          domain.CriteriaBatchStatusPendingReview,
				ExtractionModel: cfg.ExtractionModel,
			})
			if err != nil {
				return s, pipeline.NewFatal("parse", fmt.Errorf("create criteria batch: %w", err))
			}
			s.BatchID = batch.ID

			entities := make([]EntityLite, 0, len(criteria))
			for _, ec := range criteria {
				criteriaType := domain.CriteriaType(ec.CriteriaType)
				var category *string
				if ec.Category != "" {
					category = &ec.Category
				}
				var sourceSection *string
				if ec.SourceSection != "" {
					sourceSection = &ec.SourceSection
				}

				row, err := repo.InsertCriteria(ctx, domain.Criteria{
					BatchID:         batch.ID,
					CriteriaType:    criteriaType,
					Category:        category,
					Text:            ec.Text,
					Confidence:      ec.Confidence,
					AssertionStatus: domain.AssertionStatus(ec.AssertionStatus),
					SourceSection:   sourceSection,
				})
				if err != nil {
					s.AddError(fmt.Errorf("insert criteria %q: %w", ec.Text, err))
					continue
				}

				entityType := inferEntityType(ec.Category)
				entities = append(entities, EntityLite{
					CriterionID:  row.ID,
					Text:         ec.Text,
					CriteriaType: ec.CriteriaType,
					Category:     ec.Category,
					EntityType:   entityType,
				})
			}

			entitiesJSON, err := json.Marshal(entities)
			if err != nil {
				return s, pipeline.NewFatal("parse", fmt.Errorf("marshal entities_json: %w", err))
			}
			s.EntitiesJSON = entitiesJSON
			return s, nil
		},
	}
}
