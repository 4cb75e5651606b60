package nodes

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/codeready-toolchain/eligibility/pkg/domain"
	"github.com/codeready-toolchain/eligibility/pkg/pipeline"
)

type fakeCriteriaWriter struct {
	nextCriteriaID int
	batch          domain.CriteriaBatch
	inserted       []domain.Criteria
	insertErr      map[string]error     // keyed by criteria text
	createErr      error
}

func (f *fakeCriteriaWriter) CreateBatch(_ context.Context, b domain.CriteriaBatch) (domain.CriteriaBatch, error) {
	if f.createErr != nil {
		return domain.CriteriaBatch{}, f.createErr
	}
	b.ID = "batch-1"
	f.batch = b
	return b, nil
}

func (f *fakeCriteriaWriter) InsertCriteria(_ context.Context, c domain.Criteria) (domain.Criteria, error) {
	if err, ok := f.insertErr[c.Text]; ok {
		return domain.Criteria{}, err
	}
	f.nextCriteriaID++
	c.ID = string(rune('a' + f.nextCriteriaID))
	f.inserted = append(f.inserted, c)
	return c, nil
}

func extractionJSON(t *testing.T, criteria ...ExtractedCriterion) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(ExtractionResult{Criteria: criteria})
	if err != nil {
		t.Fatalf("marshal extraction fixture: %v", err)
	}
	return b
}

func TestParse_CreatesBatchAndCriteria(t *testing.T) {
	repo := &fakeCriteriaWriter{}
	node := NewParse(repo, ParseConfig{ExtractionModel: "gpt-4", MaxCriteria: 0})

	input := pipeline.State{
		ProtocolID:     "p1",
		ExtractionJSON: extractionJSON(t,
			ExtractedCriterion{Text: "type 2 diabetes diagnosis", CriteriaType: "inclusion", Category: "condition", Confidence: 0.9, AssertionStatus: "PRESENT"},
			ExtractedCriterion{Text: "age >= 18", CriteriaType: "inclusion", Category: "demographic", Confidence: 0.95, AssertionStatus: "PRESENT"},
		),
	}

	out, err := node.Run(context.Background(), input)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if out.BatchID != "batch-1" {
		t.Fatalf("BatchID = %q, want batch-1", out.BatchID)
	}
	if len(repo.inserted) != 2 {
		t.Fatalf("inserted %d criteria, want 2", len(repo.inserted))
	}

	var entities []EntityLite
	if err := json.Unmarshal(out.EntitiesJSON, &entities); err != nil {
		t.Fatalf("decode entities_json: %v", err)
	}
	if len(entities) != 2 {
		t.Fatalf("entities = %d, want 2", len(entities))
	}
	if entities[0].EntityType != domain.EntityTypeCondition {
		t.Errorf("entities[0].EntityType = %s, want %s", entities[0].EntityType, domain.EntityTypeCondition)
	}
	if entities[1].EntityType != domain.EntityTypeDemographic {
		t.Errorf("entities[1].EntityType = %s, want %s", entities[1].EntityType, domain.EntityTypeDemographic)
	}
}

func TestParse_TruncatesAtMaxCriteria(t *testing.T) {
	repo := &fakeCriteriaWriter{}
	node := NewParse(repo, ParseConfig{MaxCriteria: 1})

	input := pipeline.State{
		ProtocolID:     "p1",
		ExtractionJSON: extractionJSON(t,
			ExtractedCriterion{Text: "first", CriteriaType: "inclusion", Confidence: 0.9, AssertionStatus: "PRESENT"},
			ExtractedCriterion{Text: "second", CriteriaType: "inclusion", Confidence: 0.9, AssertionStatus: "PRESENT"},
		),
	}

	out, err := node.Run(context.Background(), input)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(repo.inserted) != 1 {
		t.Fatalf("inserted %d criteria, want 1 (truncated by MaxCriteria)", len(repo.inserted))
	}
	if len(out.Errors) != 1 {
		t.Fatalf("expected one non-fatal truncation error, got %v", out.Errors)
	}
}

func TestParse_MalformedExtractionJSONIsFatal(t *testing.T) {
	repo := &fakeCriteriaWriter{}
	node := NewParse(repo, ParseConfig{})

	_, err := node.Run(context.Background(), pipeline.State{ExtractionJSON: json.RawMessage(`not json`)})
	if err == nil {
		t.Fatal("expected a fatal error for malformed extraction_json")
	}
	var fe *pipeline.FatalError
	if !errors.As(err, &fe) {
		t.Fatalf("error = %v, want *pipeline.FatalError", err)
	}
}

func TestParse_CreateBatchFailureIsFatal(t *testing.T) {
	repo := &fakeCriteriaWriter{createErr: errors.New("db down")}
	node := NewParse(repo, ParseConfig{})

	_, err := node.Run(context.Background(), pipeline.State{ExtractionJSON: extractionJSON(t)})
	if err == nil {
		t.Fatal("expected a fatal error when CreateBatch fails")
	}
}

func TestParse_PerCriterionInsertFailureIsNonFatal(t *testing.T) {
	repo := &fakeCriteriaWriter{insertErr: map[string]error{"bad one": errors.New("constraint violation")}}
	node := NewParse(repo, ParseConfig{})

	input := pipeline.State{
		ExtractionJSON: extractionJSON(t,
			ExtractedCriterion{Text: "bad one", CriteriaType: "inclusion", Confidence: 0.5, AssertionStatus: "PRESENT"},
			ExtractedCriterion{Text: "good one", CriteriaType: "inclusion", Confidence: 0.8, AssertionStatus: "PRESENT"},
		),
	}

	out, err := node.Run(context.Background(), input)
	if err != nil {
		t.Fatalf("Run returned a fatal error, want the run to continue: %v", err)
	}
	if len(out.Errors) != 1 {
		t.Fatalf("expected one accumulated error, got %v", out.Errors)
	}
	if len(repo.inserted) != 1 {
		t.Fatalf("expected the sibling criterion to still be inserted, got %d", len(repo.inserted))
	}
}

func TestInferEntityType(t *testing.T) {
	cases := map[string]domain.EntityType{
		"Prior medication use":  domain.EntityTypeMedication,
		"diagnosis of cancer":   domain.EntityTypeCondition,
		"surgical procedure":    domain.EntityTypeProcedure,
		"laboratory result":     domain.EntityTypeLabValue,
		"biomarker status":      domain.EntityTypeBiomarker,
		"patient age":           domain.EntityTypeDemographic,
		"phenotype description": domain.EntityTypePhenotype,
		"":                      domain.EntityTypeCondition,
	}
	for category, want := range cases {
		if got := inferEntityType(category); got != want {
			t.Errorf("inferEntityType(%q) = %s, want %s", category, got, want)
		}
	}
}
