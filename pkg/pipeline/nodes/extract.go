package nodes

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"

	"context"

	"github.com/codeready-toolchain/eligibility/pkg/llm"
	"github.com/codeready-toolchain/eligibility/pkg/pipeline"
)

// extractionSchema constrains the extract node's LLM call to
// ExtractionResult's shape (spec.md §4.4).
const extractionSchema = `{
  "type": "object",
  "required": ["protocol_summary", "criteria"],
  "properties": {
    "protocol_summary": {"type": "string"},
    "criteria": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["text", "criteria_type", "assertion_status", "confidence"],
        "properties": {
          "text": {"type": "string"},
          "criteria_type": {"type": "string", "enum": ["inclusion", "exclusion"]},
          "category": {"type": "string"},
          "temporal_constraint": {
            "type": "object",
            "properties": {
              "duration": {"type": "string"},
              "relation": {"type": "string"},
              "reference_point": {"type": "string"}
            }
          },
          "numeric_thresholds": {
            "type": "array",
            "items": {
              "type": "object",
              "properties": {
                "value": {"type": "number"},
                "unit": {"type": "string"},
                "comparator": {"type": "string"},
                "upper_value": {"type": "number"}
              }
            }
          },
          "conditions": {"type": "array", "items": {"type": "string"}},
          "assertion_status": {"type": "string"},
          "confidence": {"type": "number"},
          "source_section": {"type": "string"}
        }
      }
    }
  }
}`

// TemporalConstraint is ExtractionResult.criteria[].temporal_constraint
// (spec.md §4.4).
type TemporalConstraint struct {
	Duration       string `json:"duration,omitempty"`
	Relation       string `json:"relation,omitempty"`
	ReferencePoint string `json:"reference_point,omitempty"`
}

// NumericThreshold is one of ExtractionResult.criteria[].numeric_thresholds.
type NumericThreshold struct {
	Value      float64  `json:"value"`
	Unit       string   `json:"unit,omitempty"`
	Comparator string   `json:"comparator,omitempty"`
	UpperValue *float64 `json:"upper_value,omitempty"`
}

// ExtractedCriterion is one item of ExtractionResult.criteria (spec.md §4.4).
type ExtractedCriterion struct {
	Text               string              `json:"text"`
	CriteriaType       string              `json:"criteria_type"`
	Category           string              `json:"category,omitempty"`
	TemporalConstraint *TemporalConstraint `json:"temporal_constraint,omitempty"`
	NumericThresholds  []NumericThreshold  `json:"numeric_thresholds,omitempty"`
	Conditions         []string            `json:"conditions,omitempty"`
	AssertionStatus    string              `json:"assertion_status"`
	Confidence         float64             `json:"confidence"`
	SourceSection      string              `json:"source_section,omitempty"`
}

// ExtractionResult is the extract node's LLM output (spec.md §4.4).
type ExtractionResult struct {
	ProtocolSummary string               `json:"protocol_summary"`
	Criteria        []ExtractedCriterion `json:"criteria"`
}

// ExtractConfig tunes the size guardrail (spec.md §4.4: "90% of the LLM
// limit" warns, over the hard limit fails fatally with pdf_too_large).
type ExtractConfig struct {
	Model        string
	HardLimitB64 int    // base64-encoded byte ceiling
}

const extractPrompt = `You will be given a full clinical trial protocol PDF. Extract every eligibility
criterion (inclusion and exclusion) as an independent item. When a sentence joins
multiple conditions with AND/OR, emit each condition as its own separate criterion
item rather than one combined item — composite logic is rebuilt downstream. Return
only the structured result matching the provided schema.`

// NewExtract builds the extract node (spec.md §4.4).
func NewExtract(model llm.StructuredLLM, cfg ExtractConfig) pipeline.Node {
	return pipeline.Node{
		Name: string(pipeline.StatusExtracting),
		Run: func(ctx context.Context, s pipeline.State) (pipeline.State, error) {
			encoded := base64.StdEncoding.EncodeToString(s.PDFBytes)

			if cfg.HardLimitB64 > 0 {
				if len(encoded) > cfg.HardLimitB64 {
					return s, pipeline.NewFatal("extract", fmt.Errorf("pdf_too_large: %d encoded bytes exceeds limit %d", len(encoded), cfg.HardLimitB64))
				}
				if len(encoded) > (cfg.HardLimitB64*9)/10 {
					slog.Warn("pdf approaching size limit", "protocol_id", s.ProtocolID, "encoded_bytes", len(encoded), "limit", cfg.HardLimitB64)
				}
			}

			resp, err := model.Call(ctx, llm.Request{
				Model: cfg.Model,
				Messages: []llm.Message{
					{Role: "system", Content: extractPrompt},
					{Role: "user", Content: s.Title, PDFBase64: encoded},
				},
				Schema: json.RawMessage(extractionSchema),
			})
			if err != nil {
				return s, pipeline.NewFatal("extract", fmt.Errorf("extraction LLM call: %w", err))
			}

			var result ExtractionResult
			if err := llm.Decode(resp, &result); err != nil {
				return s, pipeline.NewFatal("extract", fmt.Errorf("decode extraction result: %w", err))
			}

			extractionJSON, err := json.Marshal(result)
			if err != nil {
				return s, pipeline.NewFatal("extract", fmt.Errorf("marshal extraction result: %w", err))
			}

			s.ExtractionJSON = extractionJSON
			s.PDFBytes = nil // spec.md §4.4: "clear pdf_bytes"
			return s, nil
		},
	}
}
