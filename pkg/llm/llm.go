// Package llm implements the StructuredLLM capability (SPEC_FULL.md §6.4):
// schema-enforced, cancellable calls to a reasoning/extraction model. The
// teacher's pkg/agent/llm_client.go defines the same capability shape against
// a gRPC sidecar (pkg/agent/llm_grpc.go); since protobuf-generated stubs
// cannot be reproduced here, this package talks HTTP+JSON to the same
// conceptual endpoint instead (DESIGN.md).
package llm

import (
	"context"
	"encoding/json"
)

// Message is one turn of a conversation sent to the model.
type Message struct {
	Role    string `json:"role"`    // "system" | "user" | "assistant"
	Content string `json:"content"`
	// PDFBase64 carries a multimodal attachment for the extract node's
	// initial call (spec.md §4.4). Empty for text-only turns.
	PDFBase64 string `json:"pdf_base64,omitempty"`
}

// Request is a schema-enforced structured call (spec.md §6.4:
// "StructuredLLM.call(schema, messages) → typed result").
type Request struct {
	Model    string
	Messages []Message
	// Schema is the JSON Schema the response must satisfy. HTTPClient sends
	// it to the gateway as response_schema and checks only that the returned
	// content is valid JSON; it does not validate the content against it.
	Schema json.RawMessage
}

// Response is the raw structured result plus bookkeeping the callers need
// for the size guardrail and retry/telemetry accounting.
type Response struct {
	Raw              json.RawMessage
	PromptTokens     int
	CompletionTokens int
}

// StructuredLLM is the capability interface every pipeline node that calls a
// model depends on. Implementations must support cancellation via ctx and
// must enforce req.Schema before returning (spec.md §6.4).
type StructuredLLM interface {
	Call(ctx context.Context, req Request) (*Response, error)
	// Warmup fires a no-op call to absorb cold-start latency (spec.md §4.6).
	// Failure is non-fatal; callers log and proceed.
	Warmup(ctx context.Context) error
}

// Decode unmarshals resp.Raw into v. Call sites use this instead of
// json.Unmarshal directly so a future switch to a stricter schema validator
// only touches this one call site.
func Decode(resp *Response, v any) error {
	return json.Unmarshal(resp.Raw, v)
}
