package config

import "time"

// BlobStoreConfig resolves which pkg/blobstore adapters the ingest node's
// Router can dispatch to (spec.md §6.2 file URI schemes: gs://, local://).
type BlobStoreConfig struct {
	// GCSTokenEnv names the environment variable holding the OAuth2 bearer
	// token used for authenticated gs:// downloads. Empty means
	// public-bucket-only access.
	GCSTokenEnv string `yaml:"gcs_token_env,omitempty"`

	// LocalBaseDir restricts local:// fetches to this directory (adapted
	// from the teacher's runbook allow-listed-domain pattern).
	LocalBaseDir string `yaml:"local_base_dir,omitempty"`

	// Timeout bounds a single blob fetch.
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// DefaultBlobStoreConfig returns sane local-dev defaults.
func DefaultBlobStoreConfig() *BlobStoreConfig {
	return &BlobStoreConfig{
		GCSTokenEnv: "GCS_TOKEN",
		Timeout:     30 * time.Second,
	}
}
