package pipeline

import "fmt"

// FatalError aborts the remaining node graph for this run (spec.md §4.2:
// "non-empty [error] routes to END"). Nodes return it instead of calling
// State.Fail directly so the runtime — not the node — decides how the
// conditional edge behaves, mirroring the teacher's executor returning a
// typed stage error rather than mutating shared state itself.
type FatalError struct {
	Node string
	Err  error
}

func (e *FatalError) Error() string { return fmt.Sprintf("%s: %s", e.Node, e.Err) }
func (e *FatalError) Unwrap() error { return e.Err }

// NewFatal wraps err as a FatalError attributed to node.
func NewFatal(node string, err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Node: node, Err: err}
}

// PartialFailure is a non-fatal, per-item error a node accumulates into
// State.Errors without aborting the run (spec.md §4.2's "errors (list of
// non-fatal)").
type PartialFailure struct {
	Item string
	Err  error
}

func (e *PartialFailure) Error() string { return fmt.Sprintf("%s: %s", e.Item, e.Err) }
func (e *PartialFailure) Unwrap() error { return e.Err }

// NewPartial wraps err as a PartialFailure attributed to item (e.g. an
// entity ID or criterion ID).
func NewPartial(item string, err error) error {
	if err == nil {
		return nil
	}
	return &PartialFailure{Item: item, Err: err}
}
