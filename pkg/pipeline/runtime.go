package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// Node is one step of the seven-node graph. It mutates and returns the next
// State; a non-nil error is always a FatalError (spec.md §4.2) — non-fatal
// issues are recorded on the returned State via AddError instead of being
// returned as Go errors, since they must not stop the graph.
type Node struct {
	Name string
	Run  func(ctx context.Context, s State) (State, error)
}

// Checkpointer persists a State snapshot keyed by (protocol_id, thread_id)
// so a crashed run can resume from the last successful node (spec.md §4.2).
// An in-memory or Postgres-backed implementation can satisfy this without
// pipeline depending on pkg/storage/postgres directly.
type Checkpointer interface {
	Save(ctx context.Context, protocolID, threadID string, s State) error
	Load(ctx context.Context, protocolID, threadID string) (State, bool, error)
}

// Runtime runs the fixed linear graph: ingest → extract → parse → ground →
// persist → structure → ordinal_resolve → END, checkpointing after every
// node and short-circuiting to END the moment a node sets State.Error.
type Runtime struct {
	nodes        []Node
	checkpointer Checkpointer
}

// NewRuntime builds the fixed seven-node graph. Node order is not
// configurable (spec.md §4.2: "Node order is fixed").
func NewRuntime(checkpointer Checkpointer, ingest, extract, parse, ground, persist, structure, ordinalResolve Node) *Runtime {
	return &Runtime{
		checkpointer: checkpointer,
		nodes:        []Node{ingest, extract, parse, ground, persist, structure, ordinalResolve},
	}
}

// Run executes the graph for one protocol, resuming from the last
// checkpointed node when threadID has a prior checkpoint.
func (r *Runtime) Run(ctx context.Context, threadID string, initial State) (State, error) {
	state := initial
	startIdx := 0

	if r.checkpointer != nil {
		if checkpointed, ok, err := r.checkpointer.Load(ctx, initial.ProtocolID, threadID); err != nil {
			return state, fmt.Errorf("load checkpoint: %w", err)
		} else if ok {
			state = checkpointed
			for i, n := range r.nodes {
				if Status(n.Name) == state.Status {
					startIdx = i + 1
					break
				}
			}
		}
	}

	for i := startIdx; i < len(r.nodes); i++ {
		node := r.nodes[i]
		log := slog.With("protocol_id", state.ProtocolID, "node", node.Name)

		next, err := node.Run(ctx, state)
		if err != nil {
			next.Fail(err)
			log.Error("node returned fatal error", "error", err)
		}
		next.Status = Status(node.Name)
		state = next

		if r.checkpointer != nil {
			if cpErr := r.checkpointer.Save(ctx, state.ProtocolID, threadID, state.Checkpoint()); cpErr != nil {
				log.Error("checkpoint save failed", "error", cpErr)
			}
		}

		if state.Failed() {
			log.Warn("run short-circuited to END", "error", state.Error)
			break
		}
	}

	state.Status = StatusDone
	return state, nil
}

// MarshalErrors renders State.Errors as a JSON array, the shape
// Criteria.conditions/metadata.errors (spec.md §4.7) expects on disk.
func MarshalErrors(errs []string) json.RawMessage {
	if len(errs) == 0 {
		return nil
	}
	b, _ := json.Marshal(errs)
	return b
}
