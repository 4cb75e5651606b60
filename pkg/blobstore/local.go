package blobstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/codeready-toolchain/eligibility/pkg/resilience"
)

// LocalAdapter resolves "local://<relative-path>" URIs against an
// allow-listed root directory, development-only per spec.md §6.2.
type LocalAdapter struct {
	root string
}

// NewLocalAdapter builds a local adapter rooted at root. root is resolved to
// an absolute path once at construction so every fetch is anchored to it.
func NewLocalAdapter(root string) (*LocalAdapter, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve local blob root %q: %w", root, err)
	}
	return &LocalAdapter{root: abs}, nil
}

// Fetch reads the file at uri's path, rejecting any path that escapes root
// (anti path-traversal, spec.md §4.3/§6.2).
func (a *LocalAdapter) Fetch(_ context.Context, uri string) ([]byte, error) {
	rel := strings.TrimPrefix(uri, "local://")
	if rel == uri {
		return nil, resilience.NewPermanent("blobstore.local", fmt.Errorf("not a local:// URI: %s", uri))
	}

	joined := filepath.Join(a.root, filepath.FromSlash(rel))
	cleanRoot := filepath.Clean(a.root) + string(filepath.Separator)
	if !strings.HasPrefix(joined, cleanRoot) && joined != filepath.Clean(a.root) {
		return nil, resilience.NewPermanent("blobstore.local", fmt.Errorf("path traversal rejected: %s", uri))
	}

	data, err := os.ReadFile(joined)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, resilience.NewPermanent("blobstore.local", fmt.Errorf("blob not found: %s", uri))
		}
		return nil, resilience.NewTransient("blobstore.local", fmt.Errorf("read %s: %w", joined, err))
	}
	return data, nil
}
