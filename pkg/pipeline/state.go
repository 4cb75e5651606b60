// Package pipeline implements the seven-node extraction pipeline's shared
// state and node-graph runtime (spec.md §4.2). Grounded on the teacher's
// pkg/queue/executor.go sequential-stage-with-fail-fast shape: a linear
// sequence of named steps, each able to short-circuit the rest on fatal
// error, each progressively persisting its own writes rather than batching
// everything at the end.
package pipeline

import "encoding/json"

// Status is PipelineState's own run-status field, distinct from
// domain.ProtocolStatus (which only the persist node and the retry command
// write). It tracks which node last ran, for logging/observability.
type Status string

const (
	StatusIngesting         Status = "ingesting"
	StatusExtracting        Status = "extracting"
	StatusParsing           Status = "parsing"
	StatusGrounding         Status = "grounding"
	StatusPersisting        Status = "persisting"
	StatusStructuring       Status = "structuring"
	StatusResolvingOrdinals Status = "resolving_ordinals"
	StatusDone              Status = "done"
)

// State is the flat record threaded through every node (spec.md §4.2). JSON
// payloads are kept as json.RawMessage rather than typed structs so a
// checkpoint write never pays for decoding fields a given node doesn't
// touch, and so the checkpoint itself is a single flat row.
type State struct {
	ProtocolID string `json:"protocol_id"`
	FileURI    string `json:"file_uri"`
	Title      string `json:"title"`

	BatchID string `json:"batch_id,omitempty"`

	// PDFBytes holds the fetched PDF between ingest and extract. Cleared
	// (and never checkpointed) once extract runs — spec.md §4.2 and §4.4.
	PDFBytes []byte `json:"-"`

	ExtractionJSON           json.RawMessage `json:"extraction_json,omitempty"`
	EntitiesJSON             json.RawMessage `json:"entities_json,omitempty"`
	GroundedEntitiesJSON     json.RawMessage `json:"grounded_entities_json,omitempty"`
	ArchivedReviewedCriteria json.RawMessage `json:"archived_reviewed_criteria,omitempty"`
	OrdinalProposalsJSON     json.RawMessage `json:"ordinal_proposals_json,omitempty"`

	Status Status   `json:"status"`
	Error  string   `json:"error,omitempty"`  // fatal; non-empty routes to END
	Errors []string `json:"errors,omitempty"` // non-fatal, accumulated
}

// Fail records a fatal error. Once set, the runtime's conditional edge
// short-circuits the remaining nodes straight to END.
func (s *State) Fail(err error) {
	if err == nil {
		return
	}
	s.Error = err.Error()
}

// Failed reports whether a fatal error has been recorded.
func (s *State) Failed() bool { return s.Error != "" }

// AddError appends a non-fatal, per-item error. The node continues running.
func (s *State) AddError(err error) {
	if err == nil {
		return
	}
	s.Errors = append(s.Errors, err.Error())
}

// Checkpoint returns a copy of s with PDFBytes stripped, ready to persist
// (spec.md §4.2: "PDF bytes are stripped before checkpoint write").
func (s State) Checkpoint() State {
	s.PDFBytes = nil
	return s
}
