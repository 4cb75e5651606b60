package blobstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/codeready-toolchain/eligibility/pkg/resilience"
)

// GCSAdapter fetches "gs://<bucket>/<path>" blobs through a credentialed HTTP
// client against the GCS JSON download endpoint, wrapped in the shared retry
// and circuit-breaker primitives (spec.md §4.3: "object-store fetches go
// through a circuit-protected, retrying client").
//
// Grounded on the teacher's GitHubClient (pkg/runbook/github.go): a single
// long-lived *http.Client with a bearer token, reused across calls rather
// than rebuilt per request.
type GCSAdapter struct {
	httpClient *http.Client
	token      string
	breaker    *resilience.Breaker
	retry      resilience.RetryConfig
	timeout    time.Duration
}

// NewGCSAdapter builds a GCS-backed BlobStore. token is the OAuth2 bearer
// token used for authenticated downloads; empty means public-bucket only.
func NewGCSAdapter(token string, timeout time.Duration) *GCSAdapter {
	return &GCSAdapter{
		httpClient: &http.Client{Timeout: timeout},
		token:      token,
		breaker:    resilience.NewBreaker(resilience.DefaultBreakerConfig("blobstore.gcs")),
		retry:      resilience.DefaultRetryConfig(),
		timeout:    timeout,
	}
}

// Fetch downloads the object at uri ("gs://bucket/object...").
func (a *GCSAdapter) Fetch(ctx context.Context, uri string) ([]byte, error) {
	bucket, object, err := splitGCSURI(uri)
	if err != nil {
		return nil, resilience.NewPermanent("blobstore.gcs", err)
	}

	downloadURL := fmt.Sprintf("https://storage.googleapis.com/storage/v1/b/%s/o/%s?alt=media", bucket, object)

	var body []byte
	op := func(ctx context.Context) error {
		_, err := a.breaker.Execute(ctx, func(ctx context.Context) (any, error) {
			data, ferr := a.fetchOnce(ctx, downloadURL)
			if ferr != nil {
				return nil, ferr
			}
			body = data
			return data, nil
		})
		return err
	}

	if err := resilience.Retry(ctx, a.retry, op); err != nil {
		return nil, err
	}
	return body, nil
}

func (a *GCSAdapter) fetchOnce(ctx context.Context, downloadURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return nil, resilience.NewPermanent("blobstore.gcs", fmt.Errorf("create request: %w", err))
	}
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, resilience.NewTransient("blobstore.gcs", fmt.Errorf("fetch %s: %w", downloadURL, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, resilience.NewTransient("blobstore.gcs", fmt.Errorf("GCS returned HTTP %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, resilience.NewPermanent("blobstore.gcs", fmt.Errorf("GCS returned HTTP %d", resp.StatusCode))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resilience.NewTransient("blobstore.gcs", fmt.Errorf("read body: %w", err))
	}
	return data, nil
}

func splitGCSURI(uri string) (bucket, object string, err error) {
	rest := strings.TrimPrefix(uri, "gs://")
	if rest == uri {
		return "", "", fmt.Errorf("not a gs:// URI: %s", uri)
	}
	bucket, object, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || object == "" {
		return "", "", fmt.Errorf("malformed gs:// URI, expected gs://bucket/object: %s", uri)
	}
	return bucket, object, nil
}
