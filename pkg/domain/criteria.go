package domain

import (
	"encoding/json"
	"time"
)

// CriteriaBatchStatus is the review status of one extraction run.
type CriteriaBatchStatus string

const (
	CriteriaBatchStatusPendingReview CriteriaBatchStatus = "pending_review"
	CriteriaBatchStatusApproved      CriteriaBatchStatus = "approved"
	CriteriaBatchStatusRejected      CriteriaBatchStatus = "rejected"
)

// CriteriaBatch is one extraction run for a protocol.
//
// Invariant: re-extraction inserts a new batch and archives prior non-archived
// batches of the same protocol (enforced by the repository layer in a single
// transaction, never by the struct itself).
type CriteriaBatch struct {
	ID              string
	ProtocolID      string
	Status          CriteriaBatchStatus
	ExtractionModel string
	IsArchived      bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CriteriaType distinguishes inclusion from exclusion statements.
type CriteriaType string

const (
	CriteriaTypeInclusion CriteriaType = "inclusion"
	CriteriaTypeExclusion CriteriaType = "exclusion"
)

// AssertionStatus captures how a criterion's clinical fact is asserted in the source text.
type AssertionStatus string

const (
	AssertionPresent      AssertionStatus = "PRESENT"
	AssertionAbsent       AssertionStatus = "ABSENT"
	AssertionHypothetical AssertionStatus = "HYPOTHETICAL"
	AssertionHistorical   AssertionStatus = "HISTORICAL"
	AssertionConditional  AssertionStatus = "CONDITIONAL"
)

// ReviewStatus is a reviewer's decision on a single Criteria row.
type ReviewStatus string

const (
	ReviewStatusApproved ReviewStatus = "approved"
	ReviewStatusModified ReviewStatus = "modified"
	ReviewStatusRejected ReviewStatus = "rejected"
)

// Criteria is one inclusion/exclusion statement belonging to a CriteriaBatch.
type Criteria struct {
	ID                  string
	BatchID             string
	CriteriaType        CriteriaType
	Category            *string
	Text                string
	StructuredCriterion json.RawMessage // set once the structure node runs
	Conditions          json.RawMessage // holds field_mappings once grounded
	Confidence          float64
	AssertionStatus     AssertionStatus
	SourceSection       *string
	PageNumber          *int
	ReviewStatus        *ReviewStatus
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// EntityType enumerates the medical-concept categories the ground node handles.
type EntityType string

const (
	EntityTypeCondition   EntityType = "Condition"
	EntityTypeMedication  EntityType = "Medication"
	EntityTypeProcedure   EntityType = "Procedure"
	EntityTypeLabValue    EntityType = "Lab_Value"
	EntityTypeDemographic EntityType = "Demographic"
	EntityTypeBiomarker   EntityType = "Biomarker"
	EntityTypePhenotype   EntityType = "Phenotype"
)

// GroundingMethod records how an Entity's code bindings were obtained.
type GroundingMethod string

const (
	GroundingMethodExact        GroundingMethod = "exact"
	GroundingMethodSynonym      GroundingMethod = "word/synonym"
	GroundingMethodAgentic      GroundingMethod = "agentic"
	GroundingMethodExpertReview GroundingMethod = "expert_review"
)

// CodeBindings holds the terminology codes an Entity may carry.
// Demographic entities must have every field empty (invariant, spec.md §3).
type CodeBindings struct {
	UMLSCUI    string `json:"umls_cui,omitempty"`
	SNOMEDCode string `json:"snomed_code,omitempty"`
	RxNormCode string `json:"rxnorm_code,omitempty"`
	LOINCCode  string `json:"loinc_code,omitempty"`
	ICD10Code  string `json:"icd10_code,omitempty"`
	HPOCode    string `json:"hpo_code,omitempty"`
}

// Empty reports whether no code field is set.
func (c CodeBindings) Empty() bool {
	return c == CodeBindings{}
}

// Entity is a medical concept extracted from a criterion.
type Entity struct {
	ID                  string
	CriteriaID          string
	EntityType          EntityType
	Text                string
	SpanStart           *int
	SpanEnd             *int
	Codes               CodeBindings
	GroundingConfidence float64
	GroundingMethod     GroundingMethod
	ContextWindow       *string
	SkipGrounding       bool
	CreatedAt           time.Time
}

// Valid enforces the Entity invariant from spec.md §3: at least one of
// {text, any code} must be present, and Demographic entities never carry codes.
func (e Entity) Valid() bool {
	if e.EntityType == EntityTypeDemographic {
		return e.Codes.Empty()
	}
	return e.Text != "" || !e.Codes.Empty()
}
