package nodes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/codeready-toolchain/eligibility/pkg/domain"
	"github.com/codeready-toolchain/eligibility/pkg/llm"
	"github.com/codeready-toolchain/eligibility/pkg/pipeline"
	"github.com/codeready-toolchain/eligibility/pkg/resilience"
	"github.com/codeready-toolchain/eligibility/pkg/terminology"
)

// retryQuestions is the fixed sequence of agentic-retry prompts (spec.md
// §4.6 step 6).
var retryQuestions = []string{
	"Is this entity valid for coding as a distinct medical concept? If not, explain why.",
	"Can you broaden this entity to a parent concept that is more likely to have a terminology code?",
	"Can you rephrase this entity's text for a better terminology match?",
}

const decideSchema = `{
  "type": "object",
  "required": ["confidence"],
  "properties": {
    "best_candidate": {
      "type": "object",
      "properties": {
        "code": {"type": "string"},
        "system": {"type": "string"},
        "display": {"type": "string"}
      }
    },
    "confidence": {"type": "number"},
    "rationale": {"type": "string"},
    "refined_text": {"type": "string"}
  }
}`

// decision is the reasoning LLM's structured output (spec.md §4.6 step 5).
type decision struct {
	BestCandidate struct {
		Code    string `json:"code"`
		System  string `json:"system"`
		Display string `json:"display"`
	}                   `json:"best_candidate"`
	Confidence  float64 `json:"confidence"`
	Rationale   string  `json:"rationale"`
	RefinedText string  `json:"refined_text,omitempty"`
}

// GroundedEntity is one entry of grounded_entities_json (spec.md §4.6
// "Output").
type GroundedEntity struct {
	EntityIDStub  string                  `json:"entity_id_stub"`           // = EntityLite.CriterionID
	CriterionID   string                  `json:"criterion_id"`
	Text          string                  `json:"text"`
	EntityType    domain.EntityType       `json:"entity_type"`
	BestCode      string                  `json:"best_code,omitempty"`
	System        string                  `json:"system,omitempty"`
	Confidence    float64                 `json:"confidence"`
	Method        domain.GroundingMethod  `json:"method"`
	Candidates    []terminology.Candidate `json:"candidates,omitempty"`
	SkipGrounding bool                    `json:"skip_grounding,omitempty"`
}

// GroundConfig tunes concurrency, truncation, and per-call/per-entity
// timeouts (spec.md §4.6 "Concurrency contract").
type GroundConfig struct {
	Concurrency     int
	MaxEntities     int           // PIPELINE_MAX_ENTITIES, 0 = unlimited
	ProviderTimeout time.Duration
	LLMTimeout      time.Duration
	EntityDeadline  time.Duration
	DecisionModel   string
}

func DefaultGroundConfig() GroundConfig {
	return GroundConfig{
		Concurrency:     4,
		ProviderTimeout: 30 * time.Second,
		LLMTimeout:      30 * time.Second,
		EntityDeadline:  120 * time.Second,
		DecisionModel:   "medgemma_decide",
	}
}

type entityTelemetry struct {
	elapsedMS int64
	attempts  int
	err       error
}

// NewGround builds the ground node (spec.md §4.6), the core of the pipeline.
func NewGround(router *terminology.Router, decider llm.StructuredLLM, cfg GroundConfig) pipeline.Node {
	return pipeline.Node{
		Name: string(pipeline.StatusGrounding),
		Run: func(ctx context.Context, s pipeline.State) (pipeline.State, error) {
			var lites []EntityLite
			if err := json.Unmarshal(s.EntitiesJSON, &lites); err != nil {
				return s, pipeline.NewFatal("ground", fmt.Errorf("decode entities_json: %w", err))
			}
			if len(lites) == 0 {
				return s, pipeline.NewFatal("ground", fmt.Errorf("zero entities to ground"))
			}

			if cfg.MaxEntities > 0 && len(lites) > cfg.MaxEntities {
				s.AddError(fmt.Errorf("truncated=%d entities to PIPELINE_MAX_ENTITIES=%d", len(lites)-cfg.MaxEntities, cfg.MaxEntities))
				lites = lites[:cfg.MaxEntities]
			}

			if err := decider.Warmup(ctx); err != nil {
				slog.Warn("ground node warmup failed, proceeding", "error", err)
			}

			sem := resilience.NewSemaphore(cfg.Concurrency)
			results := make([]GroundedEntity, len(lites))
			telemetry := make([]entityTelemetry, len(lites))

			var wg sync.WaitGroup
			for i, lite := range lites {
				if lite.EntityType == domain.EntityTypeDemographic {
					results[i] = GroundedEntity{
						EntityIDStub: lite.CriterionID, CriterionID: lite.CriterionID, Text: lite.Text,
						EntityType: lite.EntityType, SkipGrounding: true,
					}
					continue
				}

				wg.Add(1)
				go func(idx int, el EntityLite) {
					defer wg.Done()

					release, err := sem.Acquire(ctx)
					if err != nil {
						telemetry[idx] = entityTelemetry{err: err}
						return
					}
					defer release()

					entityCtx, cancel := context.WithTimeout(ctx, cfg.EntityDeadline)
					defer cancel()

					start := time.Now()
					g, attempts, err := groundOne(entityCtx, router, decider, cfg, el)
					telemetry[idx] = entityTelemetry{elapsedMS: time.Since(start).Milliseconds(), attempts: attempts, err: err}
					if err != nil {
						results[idx] = GroundedEntity{EntityIDStub: el.CriterionID, CriterionID: el.CriterionID, Text: el.Text, EntityType: el.EntityType}
						return
					}
					results[idx] = g
				}(i, lite)
			}
			wg.Wait()

			grounded, errored := 0, 0
			var totalMS, maxMS int64
			var retryCount int
			for i, t := range telemetry {
				if lites[i].EntityType == domain.EntityTypeDemographic {
					continue
				}
				if t.err != nil {
					errored++
					s.AddError(pipeline.NewPartial(lites[i].CriterionID, t.err))
					continue
				}
				grounded++
				totalMS += t.elapsedMS
				if t.elapsedMS > maxMS {
					maxMS = t.elapsedMS
				}
				retryCount += t.attempts - 1
			}
			avgMS := int64(0)
			if grounded > 0 {
				avgMS = totalMS / int64(grounded)
			}
			slog.Info("ground node complete", "protocol_id", s.ProtocolID,
				"grounded_count", grounded, "error_count", errored, "avg_entity_ms", avgMS, "max_entity_ms", maxMS, "retry_count", retryCount)

			groundedJSON, err := json.Marshal(results)
			if err != nil {
				return s, pipeline.NewFatal("ground", fmt.Errorf("marshal grounded_entities_json: %w", err))
			}
			s.GroundedEntitiesJSON = groundedJSON
			return s, nil
		},
	}
}

// groundOne runs the per-entity pipeline: route → tiered-match (each
// provider's HTTPProvider.Search classifies and scores its own candidates)
// → dual-grounding reconcile → decision structuring → up to 3 agentic
// retries (spec.md §4.6 steps 2-6).
func groundOne(ctx context.Context, router *terminology.Router, decider llm.StructuredLLM, cfg GroundConfig, el EntityLite) (GroundedEntity, int, error) {
	text := el.Text
	var best terminology.Candidate
	var candidates []terminology.Candidate
	var dec decision
	attempts := 0

	for attempts < 1+len(retryQuestions) {
		attempts++

		providerCtx, cancel := context.WithTimeout(ctx, cfg.ProviderTimeout)
		merged, errs := router.Search(providerCtx, text, el.EntityType)
		cancel()
		for _, e := range errs {
			slog.Warn("terminology provider search failed", "entity", el.Text, "error", e)
		}
		candidates = merged

		var found bool
		best, found = terminology.Reconcile(candidates, el.EntityType)
		if !found {
			best = terminology.Candidate{}
		}

		var question string
		if attempts > 1 {
			question = retryQuestions[attempts-2]
		}

		var err error
		dec, err = decide(ctx, decider, cfg, el, best, candidates, question)
		if err != nil {
			return GroundedEntity{}, attempts, fmt.Errorf("decision structuring: %w", err)
		}

		if dec.Confidence >= 0.5 || attempts > len(retryQuestions) {
			break
		}
		if dec.RefinedText != "" {
			text = dec.RefinedText
		}
	}

	method := domain.GroundingMethodExact
	if best.Method != "" {
		method = best.Method
	}
	if attempts > 1 {
		method = domain.GroundingMethodAgentic
	}
	if dec.Confidence < 0.5 {
		method = domain.GroundingMethodExpertReview
	}

	return GroundedEntity{
		EntityIDStub: el.CriterionID,
		CriterionID:  el.CriterionID,
		Text:         el.Text,
		EntityType:   el.EntityType,
		BestCode:     dec.BestCandidate.Code,
		System:       dec.BestCandidate.System,
		Confidence:   dec.Confidence,
		Method:       method,
		Candidates:   candidates,
	}, attempts, nil
}

func decide(ctx context.Context, decider llm.StructuredLLM, cfg GroundConfig, el EntityLite, best terminology.Candidate, candidates []terminology.Candidate, retryQuestion string) (decision, error) {
	llmCtx, cancel := context.WithTimeout(ctx, cfg.LLMTimeout)
	defer cancel()

	candidateJSON, _ := json.Marshal(candidates)
	prompt := fmt.Sprintf("Entity %q (%s). Candidate terminology bindings: %s. Preferred candidate: %+v. Return the best binding with a confidence score in [0,1] and a short rationale.",
		el.Text, el.EntityType, candidateJSON, best)
	if retryQuestion != "" {
		prompt += " Low confidence on the prior attempt — " + retryQuestion + " Set refined_text if you propose different wording to re-search."
	}

	resp, err := decider.Call(llmCtx, llm.Request{
		Model:    cfg.DecisionModel,
		Messages: []llm.Message{{Role: "user", Content: prompt}},
		Schema:   json.RawMessage(decideSchema),
	})
	if err != nil {
		return decision{}, err
	}

	var dec decision
	if err := llm.Decode(resp, &dec); err != nil {
		return decision{}, fmt.Errorf("decode decision: %w", err)
	}
	return dec, nil
}
