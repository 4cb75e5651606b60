package nodes

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/codeready-toolchain/eligibility/pkg/domain"
	"github.com/codeready-toolchain/eligibility/pkg/llm"
	"github.com/codeready-toolchain/eligibility/pkg/pipeline"
	"github.com/codeready-toolchain/eligibility/pkg/terminology"
)

type fakeProvider struct {
	name       string
	candidates []terminology.Candidate
	err        error
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Search(_ context.Context, _ string, _ domain.EntityType) ([]terminology.Candidate, error) {
	return f.candidates, f.err
}

// fakeDecider always returns the same decision, with its configured code and
// confidence; a high confidence lets groundOne converge on its first attempt.
type fakeDecider struct {
	confidence float64
	code       string
	callCount  int
}

func (f *fakeDecider) Call(_ context.Context, _ llm.Request) (*llm.Response, error) {
	f.callCount++
	raw, _ := json.Marshal(map[string]any{
		"best_candidate": map[string]string{"code": f.code, "system": "SNOMED", "display": "d"},
		"confidence": f.confidence,
		"rationale":  "matched",
	})
	return &llm.Response{Raw: raw}, nil
}

func (f *fakeDecider) Warmup(_ context.Context) error { return nil }

func entitiesJSON(t *testing.T, lites ...EntityLite) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(lites)
	if err != nil {
		t.Fatalf("marshal entities fixture: %v", err)
	}
	return b
}

func TestGround_SkipsDemographicEntities(t *testing.T) {
	router := terminology.NewRouter(terminology.RouteTable{}, nil)
	decider := &fakeDecider{confidence: 0.9, code: "123"}
	node := NewGround(router, decider, DefaultGroundConfig())

	input := pipeline.State{
		ProtocolID:   "p1",
		EntitiesJSON: entitiesJSON(t, EntityLite{CriterionID: "c1", Text: "age >= 18", EntityType: domain.EntityTypeDemographic}),
	}
	out, err := node.Run(context.Background(), input)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	var results []GroundedEntity
	if err := json.Unmarshal(out.GroundedEntitiesJSON, &results); err != nil {
		t.Fatalf("decode grounded_entities_json: %v", err)
	}
	if len(results) != 1 || !results[0].SkipGrounding {
		t.Fatalf("results = %+v, want one SkipGrounding entry", results)
	}
	if decider.callCount != 0 {
		t.Fatalf("decider called %d times, want 0 for a demographic entity", decider.callCount)
	}
}

func TestGround_GroundsConditionEntityOnFirstPass(t *testing.T) {
	table := terminology.RouteTable{domain.EntityTypeCondition: {"snomed"}}
	providers := map[string]terminology.Provider{
		"snomed": &fakeProvider{name: "snomed", candidates: []terminology.Candidate{
			{Code: "44054006", System: "SNOMED", Display: "Diabetes", Confidence: 0.95},
		}},
	}
	router := terminology.NewRouter(table, providers)
	decider := &fakeDecider{confidence: 0.9, code: "44054006"}
	node := NewGround(router, decider, DefaultGroundConfig())

	input := pipeline.State{
		ProtocolID:   "p1",
		EntitiesJSON: entitiesJSON(t, EntityLite{CriterionID: "c1", Text: "type 2 diabetes", EntityType: domain.EntityTypeCondition}),
	}
	out, err := node.Run(context.Background(), input)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	var results []GroundedEntity
	if err := json.Unmarshal(out.GroundedEntitiesJSON, &results); err != nil {
		t.Fatalf("decode grounded_entities_json: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	if results[0].BestCode != "44054006" {
		t.Fatalf("BestCode = %q, want 44054006", results[0].BestCode)
	}
	if results[0].Method != domain.GroundingMethodExact {
		t.Fatalf("Method = %s, want %s (single pass, no retries)", results[0].Method, domain.GroundingMethodExact)
	}
	if decider.callCount != 1 {
		t.Fatalf("decider called %d times, want 1", decider.callCount)
	}
}

func TestGround_LowConfidenceRetriesThenFallsBackToExpertReview(t *testing.T) {
	table := terminology.RouteTable{domain.EntityTypeCondition: {"snomed"}}
	providers := map[string]terminology.Provider{
		"snomed": &fakeProvider{name: "snomed"},
	}
	router := terminology.NewRouter(table, providers)
	decider := &fakeDecider{confidence: 0.1} // always low confidence
	node := NewGround(router, decider, DefaultGroundConfig())

	input := pipeline.State{
		ProtocolID:   "p1",
		EntitiesJSON: entitiesJSON(t, EntityLite{CriterionID: "c1", Text: "rare syndrome", EntityType: domain.EntityTypeCondition}),
	}
	out, err := node.Run(context.Background(), input)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	var results []GroundedEntity
	if err := json.Unmarshal(out.GroundedEntitiesJSON, &results); err != nil {
		t.Fatalf("decode grounded_entities_json: %v", err)
	}
	if results[0].Method != domain.GroundingMethodExpertReview {
		t.Fatalf("Method = %s, want %s after exhausting retries", results[0].Method, domain.GroundingMethodExpertReview)
	}
	if decider.callCount != 1+len(retryQuestions) {
		t.Fatalf("decider called %d times, want %d (1 + all retry questions)", decider.callCount, 1+len(retryQuestions))
	}
}

func TestGround_EmptyEntitiesIsFatal(t *testing.T) {
	router := terminology.NewRouter(terminology.RouteTable{}, nil)
	node := NewGround(router, &fakeDecider{}, DefaultGroundConfig())

	_, err := node.Run(context.Background(), pipeline.State{EntitiesJSON: entitiesJSON(t)})
	if err == nil {
		t.Fatal("expected a fatal error when there are zero entities to ground")
	}
	var fe *pipeline.FatalError
	if !errors.As(err, &fe) {
		t.Fatalf("error = %v, want *pipeline.FatalError", err)
	}
}

func TestGround_TruncatesAtMaxEntities(t *testing.T) {
	table := terminology.RouteTable{domain.EntityTypeCondition: {"snomed"}}
	providers := map[string]terminology.Provider{"snomed": &fakeProvider{name: "snomed"}}
	router := terminology.NewRouter(table, providers)
	decider := &fakeDecider{confidence: 0.9}
	cfg := DefaultGroundConfig()
	cfg.MaxEntities = 1
	node := NewGround(router, decider, cfg)

	input := pipeline.State{
		EntitiesJSON: entitiesJSON(t,
			EntityLite{CriterionID: "c1", Text: "first", EntityType: domain.EntityTypeCondition},
			EntityLite{CriterionID: "c2", Text: "second", EntityType: domain.EntityTypeCondition},
		),
	}
	out, err := node.Run(context.Background(), input)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(out.Errors) != 1 {
		t.Fatalf("expected one truncation error recorded, got %v", out.Errors)
	}

	var results []GroundedEntity
	if err := json.Unmarshal(out.GroundedEntitiesJSON, &results); err != nil {
		t.Fatalf("decode grounded_entities_json: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1 after truncation", len(results))
	}
}

func TestGround_PerEntityDecisionFailureIsPartialNotFatal(t *testing.T) {
	table := terminology.RouteTable{domain.EntityTypeCondition: {"snomed"}}
	providers := map[string]terminology.Provider{"snomed": &fakeProvider{name: "snomed"}}
	router := terminology.NewRouter(table, providers)
	node := NewGround(router, &failingDecider{}, DefaultGroundConfig())

	input := pipeline.State{
		EntitiesJSON: entitiesJSON(t, EntityLite{CriterionID: "c1", Text: "x", EntityType: domain.EntityTypeCondition}),
	}
	out, err := node.Run(context.Background(), input)
	if err != nil {
		t.Fatalf("Run returned a fatal error, want the run to continue: %v", err)
	}
	if len(out.Errors) != 1 {
		t.Fatalf("expected one accumulated partial-failure error, got %v", out.Errors)
	}
}

type failingDecider struct{}

func (f *failingDecider) Call(_ context.Context, _ llm.Request) (*llm.Response, error) {
	return nil, errors.New("decision model down")
}

func (f *failingDecider) Warmup(_ context.Context) error { return nil }
