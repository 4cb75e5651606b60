package nodes

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/codeready-toolchain/eligibility/pkg/domain"
	"github.com/codeready-toolchain/eligibility/pkg/llm"
	"github.com/codeready-toolchain/eligibility/pkg/pipeline"
)

type fakeCriteriaReader struct {
	rows              []domain.Criteria
	listErr           error
	mu                sync.Mutex
	updatedStructured map[string][]byte
	updateStructErr   error
}

func (f *fakeCriteriaReader) ListByBatch(_ context.Context, _ string) ([]domain.Criteria, error) {
	return f.rows, f.listErr
}

func (f *fakeCriteriaReader) UpdateStructuredCriterion(_ context.Context, id string, structured []byte) error {
	if f.updateStructErr != nil {
		return f.updateStructErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updatedStructured == nil {
		f.updatedStructured = map[string][]byte{}
	}
	f.updatedStructured[id] = structured
	return nil
}

type fakeTreeWriter struct {
	mu       sync.Mutex
	replaced map[string][]domain.TreeNode
	err      error
}

func (f *fakeTreeWriter) ReplaceTree(_ context.Context, _, criterionID string, nodes []domain.TreeNode, _ int) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.replaced == nil {
		f.replaced = map[string][]domain.TreeNode{}
	}
	f.replaced[criterionID] = nodes
	return "tree-1", nil
}

func withFieldMappings(t *testing.T, mappings ...fieldMapping) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(struct {
		FieldMappings []fieldMapping `json:"field_mappings"`
	}{FieldMappings: mappings})
	if err != nil {
		t.Fatalf("marshal conditions fixture: %v", err)
	}
	return b
}

func structureResponse(t *testing.T, tree structureTree) *llm.Response {
	t.Helper()
	raw, err := json.Marshal(tree)
	if err != nil {
		t.Fatalf("marshal tree fixture: %v", err)
	}
	return &llm.Response{Raw: raw}
}

func TestStructure_BuildsTreeForCriterionWithFieldMappings(t *testing.T) {
	criteriaRepo := &fakeCriteriaReader{rows: []domain.Criteria{
		{ID: "c1", CriteriaType: domain.CriteriaTypeInclusion, Text: "age >= 18", Conditions: withFieldMappings(t, fieldMapping{EntityType: domain.EntityTypeDemographic, Confidence: 0.9})},
	}}
	treeRepo := &fakeTreeWriter{}
	structurer := &fakeStructuredLLM{resp: structureResponse(t, structureTree{
		Root: 0,
		Nodes: []wireNode{
			{Kind: "atomic", RelationOperator: ">=", ValueNumeric: floatPtr(18)},
		},
	})}
	node := NewStructure(criteriaRepo, treeRepo, structurer, DefaultStructureConfig())

	out, err := node.Run(context.Background(), pipeline.State{ProtocolID: "p1", BatchID: "b1"})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(out.Errors) != 0 {
		t.Fatalf("expected no errors, got %v", out.Errors)
	}
	if _, ok := treeRepo.replaced["c1"]; !ok {
		t.Fatal("expected ReplaceTree to be called for c1")
	}
	if _, ok := criteriaRepo.updatedStructured["c1"]; !ok {
		t.Fatal("expected UpdateStructuredCriterion to be called for c1")
	}
}

func TestStructure_SkipsCriteriaWithEmptyFieldMappings(t *testing.T) {
	criteriaRepo := &fakeCriteriaReader{rows: []domain.Criteria{{ID: "c1", Text: "no mappings"}}}
	treeRepo := &fakeTreeWriter{}
	structurer := &fakeStructuredLLM{}
	node := NewStructure(criteriaRepo, treeRepo, structurer, DefaultStructureConfig())

	_, err := node.Run(context.Background(), pipeline.State{BatchID: "b1"})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(treeRepo.replaced) != 0 {
		t.Fatal("expected no tree to be built for a criterion with empty field_mappings")
	}
}

func TestStructure_ListFailureIsFatal(t *testing.T) {
	criteriaRepo := &fakeCriteriaReader{listErr: errors.New("db down")}
	node := NewStructure(criteriaRepo, &fakeTreeWriter{}, &fakeStructuredLLM{}, DefaultStructureConfig())

	_, err := node.Run(context.Background(), pipeline.State{BatchID: "b1"})
	if err == nil {
		t.Fatal("expected a fatal error when ListByBatch fails")
	}
	var fe *pipeline.FatalError
	if !errors.As(err, &fe) {
		t.Fatalf("error = %v, want *pipeline.FatalError", err)
	}
}

func TestStructure_MalformedTreeIsPartialNotFatal(t *testing.T) {
	criteriaRepo := &fakeCriteriaReader{rows: []domain.Criteria{
		{ID: "c1", Conditions: withFieldMappings(t, fieldMapping{EntityType: domain.EntityTypeCondition})},
	}}
	structurer := &fakeStructuredLLM{resp: structureResponse(t, structureTree{Root: 0, Nodes: nil})}
	node := NewStructure(criteriaRepo, &fakeTreeWriter{}, structurer, DefaultStructureConfig())

	out, err := node.Run(context.Background(), pipeline.State{BatchID: "b1"})
	if err != nil {
		t.Fatalf("Run returned a fatal error, want the run to continue: %v", err)
	}
	if len(out.Errors) != 1 {
		t.Fatalf("expected one accumulated error for the malformed tree, got %v", out.Errors)
	}
}

func floatPtr(f float64) *float64 { return &f }
