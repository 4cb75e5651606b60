package nodes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/codeready-toolchain/eligibility/pkg/domain"
	"github.com/codeready-toolchain/eligibility/pkg/llm"
	"github.com/codeready-toolchain/eligibility/pkg/pipeline"
	"github.com/codeready-toolchain/eligibility/pkg/resilience"
)

// CriteriaReader lists a batch's Criteria rows and records the resulting
// expression-tree snapshot.
type CriteriaReader interface {
	ListByBatch(ctx context.Context, batchID string) ([]domain.Criteria, error)
	UpdateStructuredCriterion(ctx context.Context, id string, structured []byte) error
}

// TreeWriter persists one criterion's expression tree transactionally.
type TreeWriter interface {
	ReplaceTree(ctx context.Context, protocolID, criterionID string, nodes []domain.TreeNode, rootIndex int) (string, error)
}

const structureSchema = `{
  "type": "object",
  "required": ["nodes", "root"],
  "properties": {
    "root": {"type": "integer"},
    "nodes": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "kind": {"type": "string", "enum": ["atomic", "composite"]},
          "logic_operator": {"type": "string", "enum": ["AND", "OR", "NOT"]},
          "relation_operator": {"type": "string"},
          "entity_domain": {"type": "string"},
          "entity_concept_id": {"type": "string"},
          "value_numeric": {"type": "number"},
          "value_text": {"type": "string"},
          "unit_text": {"type": "string"},
          "negation": {"type": "boolean"},
          "children": {"type": "array", "items": {"type": "integer"}}
        }
      }
    }
  }
}`

// wireNode is the logic-structuring LLM's per-node wire shape.
type wireNode struct {
	Kind             string   `json:"kind"`
	LogicOperator    string   `json:"logic_operator,omitempty"`
	RelationOperator string   `json:"relation_operator,omitempty"`
	EntityDomain     string   `json:"entity_domain,omitempty"`
	EntityConceptID  string   `json:"entity_concept_id,omitempty"`
	ValueNumeric     *float64 `json:"value_numeric,omitempty"`
	ValueText        string   `json:"value_text,omitempty"`
	UnitText         string   `json:"unit_text,omitempty"`
	Negation         bool     `json:"negation,omitempty"`
	Children         []int    `json:"children,omitempty"`
}

type structureTree struct {
	Root  int        `json:"root"`
	Nodes []wireNode `json:"nodes"`
}

// StructureConfig tunes concurrency and the structuring model name.
type StructureConfig struct {
	Concurrency int
	Model       string
}

func DefaultStructureConfig() StructureConfig {
	return StructureConfig{Concurrency: 4, Model: "logic_structure"}
}

// NewStructure builds the structure node (spec.md §4.8).
func NewStructure(criteriaRepo CriteriaReader, treeRepo TreeWriter, structurer llm.StructuredLLM, cfg StructureConfig) pipeline.Node {
	return pipeline.Node{
		Name: string(pipeline.StatusStructuring),
		Run: func(ctx context.Context, s pipeline.State) (pipeline.State, error) {
			rows, err := criteriaRepo.ListByBatch(ctx, s.BatchID)
			if err != nil {
				return s, pipeline.NewFatal("structure", fmt.Errorf("list criteria: %w", err))
			}

			sem := resilience.NewSemaphore(cfg.Concurrency)
			var wg sync.WaitGroup
			var mu sync.Mutex

			for _, row := range rows {
				var conditions struct {
					FieldMappings []fieldMapping `json:"field_mappings"`
				}
				if len(row.Conditions) > 0 {
					_ = json.Unmarshal(row.Conditions, &conditions)
				}
				if len(conditions.FieldMappings) == 0 {
					continue // spec.md §4.8: "Empty field_mappings -> skip"
				}

				wg.Add(1)
				go func(c domain.Criteria, mappings []fieldMapping) {
					defer wg.Done()
					release, err := sem.Acquire(ctx)
					if err != nil {
						return
					}
					defer release()

					if err := structureOne(ctx, criteriaRepo, treeRepo, structurer, cfg, s.ProtocolID, c, mappings); err != nil {
						mu.Lock()
						s.AddError(pipeline.NewPartial(c.ID, err))
						mu.Unlock()
						slog.Warn("structure node skipped malformed criterion", "criterion_id", c.ID, "error", err)
					}
				}(row, conditions.FieldMappings)
			}
			wg.Wait()
			return s, nil
		},
	}
}

func structureOne(ctx context.Context, criteriaRepo CriteriaReader, treeRepo TreeWriter, structurer llm.StructuredLLM, cfg StructureConfig, protocolID string, c domain.Criteria, mappings []fieldMapping) error {
	mappingsJSON, _ := json.Marshal(mappings)
	prompt := fmt.Sprintf("Criterion (%s): %q. Field bindings: %s. Decompose into an expression tree of atomic comparisons joined by AND/OR/NOT composites.",
		c.CriteriaType, c.Text, mappingsJSON)

	resp, err := structurer.Call(ctx, llm.Request{
		Model:    cfg.Model,
		Messages: []llm.Message{{Role: "user", Content: prompt}},
		Schema:   json.RawMessage(structureSchema),
	})
	if err != nil {
		return fmt.Errorf("logic-structuring LLM call: %w", err)
	}

	var tree structureTree
	if err := llm.Decode(resp, &tree); err != nil {
		return fmt.Errorf("decode structure tree: %w", err)
	}
	if len(tree.Nodes) == 0 || tree.Root < 0 || tree.Root >= len(tree.Nodes) {
		return fmt.Errorf("malformed tree: %d nodes, root %d", len(tree.Nodes), tree.Root)
	}

	nodes := make([]domain.TreeNode, len(tree.Nodes))
	for i, wn := range tree.Nodes {
		switch wn.Kind {
		case "atomic":
			var entityDomain, entityConceptID, valueText, unitText *string
			if wn.EntityDomain != "" {
				entityDomain = &wn.EntityDomain
			}
			if wn.EntityConceptID != "" {
				entityConceptID = &wn.EntityConceptID
			}
			if wn.ValueText != "" {
				valueText = &wn.ValueText
			}
			if wn.UnitText != "" {
				unitText = &wn.UnitText
			}
			nodes[i] = domain.TreeNode{Atomic: &domain.AtomicCriterion{
				InclusionExclusion: c.CriteriaType,
				EntityDomain:       entityDomain,
				EntityConceptID:    entityConceptID,
				RelationOperator:   domain.RelationOperator(wn.RelationOperator),
				ValueNumeric:       wn.ValueNumeric,
				ValueText:          valueText,
				UnitText:           unitText,
				Negation:           wn.Negation,
			}}
		case "composite":
			nodes[i] = domain.TreeNode{
				Composite: &domain.CompositeCriterion{LogicOperator: domain.LogicOperator(wn.LogicOperator)},
				Children:  wn.Children,
			}
		default:
			return fmt.Errorf("malformed tree: node %d has unknown kind %q", i, wn.Kind)
		}
	}

	if _, err := treeRepo.ReplaceTree(ctx, protocolID, c.ID, nodes, tree.Root); err != nil {
		return fmt.Errorf("replace tree: %w", err)
	}

	snapshot, err := json.Marshal(tree)
	if err != nil {
		return fmt.Errorf("marshal structured_criterion snapshot: %w", err)
	}
	return criteriaRepo.UpdateStructuredCriterion(ctx, c.ID, snapshot)
}
