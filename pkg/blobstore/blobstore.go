// Package blobstore implements the BlobStore capability (SPEC_FULL.md §6.4):
// fetching PDF bytes by URI across the two schemes the ingest node recognizes
// (spec.md §4.3, §6.2). Adapted from the teacher's pkg/runbook resolver, which
// solved the same problem (scheme dispatch + allow-listed fetch) for markdown
// runbooks instead of protocol PDFs.
package blobstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// BlobStore fetches opaque bytes by URI. Implementations must be cancellable
// and must classify errors via pkg/resilience (TransientError/PermanentError).
type BlobStore interface {
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// Router dispatches Fetch to the adapter registered for the URI's scheme.
type Router struct {
	adapters map[string]BlobStore
}

// NewRouter builds a scheme router. gcsAdapter handles "gs://", localAdapter
// handles "local://".
func NewRouter(gcsAdapter, localAdapter BlobStore) *Router {
	return &Router{adapters: map[string]BlobStore{
		"gs":    gcsAdapter,
		"local": localAdapter,
	}}
}

// Fetch parses uri's scheme and delegates to the matching adapter.
func (r *Router) Fetch(ctx context.Context, uri string) ([]byte, error) {
	scheme, _, ok := strings.Cut(uri, "://")
	if !ok {
		return nil, fmt.Errorf("malformed blob URI %q: missing scheme", uri)
	}
	adapter, ok := r.adapters[scheme]
	if !ok || adapter == nil {
		return nil, fmt.Errorf("unsupported blob URI scheme %q", scheme)
	}
	return adapter.Fetch(ctx, uri)
}

// parseURI is a shared helper for adapters that need the parsed form.
func parseURI(uri string) (*url.URL, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("malformed URI %q: %w", uri, err)
	}
	return parsed, nil
}
