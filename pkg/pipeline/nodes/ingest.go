// Package nodes implements the seven concrete pipeline.Node bodies (spec.md
// §4.3-§4.9). Each constructor closes over the capability interfaces
// (BlobStore, StructuredLLM, TerminologyProvider, storage repositories) it
// needs, the same shape as the teacher's pkg/agent stage constructors taking
// an MCP/LLM client by interface.
package nodes

import (
	"context"
	"fmt"

	"github.com/codeready-toolchain/eligibility/pkg/blobstore"
	"github.com/codeready-toolchain/eligibility/pkg/domain"
	"github.com/codeready-toolchain/eligibility/pkg/pipeline"
)

// ProtocolStatusSetter is the narrow repository slice the ingest and persist
// nodes need, declared locally (rather than importing pkg/storage/postgres)
// so pkg/pipeline/nodes stays storage-agnostic.
type ProtocolStatusSetter interface {
	TransitionStatus(ctx context.Context, id string, next domain.ProtocolStatus, errReason *string) error
}

// NewIngest builds the ingest node (spec.md §4.3): fetch PDF bytes through
// store, then advance Protocol to extracting.
func NewIngest(store blobstore.BlobStore, protocols ProtocolStatusSetter) pipeline.Node {
	return pipeline.Node{
		Name: string(pipeline.StatusIngesting),
		Run: func(ctx context.Context, s pipeline.State) (pipeline.State, error) {
			bytes, err := store.Fetch(ctx, s.FileURI)
			if err != nil {
				return s, pipeline.NewFatal("ingest", fmt.Errorf("fetch %s: %w", s.FileURI, err))
			}
			s.PDFBytes = bytes

			if err := protocols.TransitionStatus(ctx, s.ProtocolID, domain.ProtocolStatusExtracting, nil); err != nil {
				return s, pipeline.NewFatal("ingest", fmt.Errorf("transition to extracting: %w", err))
			}
			return s, nil
		},
	}
}
