package httpapi

import (
	"time"

	"github.com/codeready-toolchain/eligibility/pkg/domain"
)

// TriggerResponse is returned by POST /protocols.
type TriggerResponse struct {
	ProtocolID string `json:"protocol_id"`
	Status     string `json:"status"`
}

// ProtocolResponse is the read-model view of a Protocol.
type ProtocolResponse struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	FileURI      string    `json:"file_uri"`
	Status       string    `json:"status"`
	PageCount    *int      `json:"page_count,omitempty"`
	QualityScore *float64  `json:"quality_score,omitempty"`
	ErrorReason  *string   `json:"error_reason,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func newProtocolResponse(p domain.Protocol) ProtocolResponse {
	return ProtocolResponse{
		ID:           p.ID,
		Title:        p.Title,
		FileURI:      p.FileURI,
		Status:       string(p.Status),
		PageCount:    p.PageCount,
		QualityScore: p.QualityScore,
		ErrorReason:  p.ErrorReason,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

// CriteriaResponse is the read-model view of one Criteria row.
type CriteriaResponse struct {
	ID                  string  `json:"id"`
	BatchID             string  `json:"batch_id"`
	CriteriaType        string  `json:"criteria_type"`
	Category            *string `json:"category,omitempty"`
	Text                string  `json:"text"`
	Confidence          float64 `json:"confidence"`
	AssertionStatus     string  `json:"assertion_status"`
	ReviewStatus        *string `json:"review_status,omitempty"`
	StructuredCriterion any     `json:"structured_criterion,omitempty"`
}

func newCriteriaResponse(c domain.Criteria) CriteriaResponse {
	resp := CriteriaResponse{
		ID:              c.ID,
		BatchID:         c.BatchID,
		CriteriaType:    string(c.CriteriaType),
		Category:        c.Category,
		Text:            c.Text,
		Confidence:      c.Confidence,
		AssertionStatus: string(c.AssertionStatus),
	}
	if c.ReviewStatus != nil {
		s := string(*c.ReviewStatus)
		resp.ReviewStatus = &s
	}
	if len(c.StructuredCriterion) > 0 {
		resp.StructuredCriterion = rawJSON(c.StructuredCriterion)
	}
	return resp
}

// EntityResponse is the read-model view of one grounded Entity.
type EntityResponse struct {
	ID              string  `json:"id"`
	CriteriaID      string  `json:"criteria_id"`
	Text            string  `json:"text"`
	EntityType      string  `json:"entity_type"`
	GroundingMethod string  `json:"grounding_method"`
	UMLSCUI         string  `json:"umls_cui,omitempty"`
	SNOMEDCode      string  `json:"snomed_code,omitempty"`
	RxNormCode      string  `json:"rxnorm_code,omitempty"`
	LOINCCode       string  `json:"loinc_code,omitempty"`
	ICD10Code       string  `json:"icd10_code,omitempty"`
	HPOCode         string  `json:"hpo_code,omitempty"`
	Confidence      float64 `json:"confidence"`
}

func newEntityResponse(e domain.Entity) EntityResponse {
	return EntityResponse{
		ID:              e.ID,
		CriteriaID:      e.CriteriaID,
		Text:            e.Text,
		EntityType:      string(e.EntityType),
		GroundingMethod: string(e.GroundingMethod),
		UMLSCUI:         e.Codes.UMLSCUI,
		SNOMEDCode:      e.Codes.SNOMEDCode,
		RxNormCode:      e.Codes.RxNormCode,
		LOINCCode:       e.Codes.LOINCCode,
		ICD10Code:       e.Codes.ICD10Code,
		HPOCode:         e.Codes.HPOCode,
		Confidence:      e.GroundingConfidence,
	}
}

// ReviewResponse is the read-model view of one reviewer decision.
type ReviewResponse struct {
	ID         string    `json:"id"`
	CriteriaID string    `json:"criteria_id"`
	Action     string    `json:"action"`
	ReviewerID string    `json:"reviewer_id"`
	Before     any       `json:"before,omitempty"`
	After      any       `json:"after,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func newReviewResponse(r domain.Review) ReviewResponse {
	resp := ReviewResponse{
		ID:         r.ID,
		CriteriaID: r.CriteriaID,
		Action:     string(r.Action),
		ReviewerID: r.ReviewerID,
		CreatedAt:  r.CreatedAt,
	}
	if len(r.Before) > 0 {
		resp.Before = rawJSON(r.Before)
	}
	if len(r.After) > 0 {
		resp.After = rawJSON(r.After)
	}
	return resp
}

// AuditLogResponse is the read-model view of one system-generated audit entry.
type AuditLogResponse struct {
	ID         string    `json:"id"`
	ProtocolID string    `json:"protocol_id"`
	EventType  string    `json:"event_type"`
	After      any       `json:"after,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func newAuditLogResponse(a domain.AuditLog) AuditLogResponse {
	resp := AuditLogResponse{
		ID:         a.ID,
		ProtocolID: a.ProtocolID,
		EventType:  a.EventType,
		CreatedAt:  a.CreatedAt,
	}
	if len(a.After) > 0 {
		resp.After = rawJSON(a.After)
	}
	return resp
}

// rawJSON lets a json.RawMessage field re-marshal as its own structure
// instead of being base64-encoded as a []byte would be.
type rawJSON []byte

func (r rawJSON) MarshalJSON() ([]byte, error) { return []byte(r), nil }
