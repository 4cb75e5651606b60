package blobstore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/codeready-toolchain/eligibility/pkg/resilience"
)

func TestGCSAdapter_FetchesObject(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("%PDF-1.4"))
	}))
	defer server.Close()

	adapter := NewGCSAdapter("tok123", time.Second)
	adapter.httpClient = server.Client()

	data, err := adapter.fetchOnce(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("fetchOnce returned error: %v", err)
	}
	if string(data) != "%PDF-1.4" {
		t.Fatalf("data = %q, want %%PDF-1.4", data)
	}
	if gotAuth != "Bearer tok123" {
		t.Fatalf("Authorization header = %q, want Bearer tok123", gotAuth)
	}
}

func TestGCSAdapter_ServerErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	adapter := NewGCSAdapter("", time.Second)
	adapter.httpClient = server.Client()

	_, err := adapter.fetchOnce(context.Background(), server.URL)
	if err == nil {
		t.Fatal("expected an error for a 503 response")
	}
	if !resilience.IsTransient(err) {
		t.Fatalf("expected a Transient error, got %v", err)
	}
}

func TestGCSAdapter_NotFoundIsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	adapter := NewGCSAdapter("", time.Second)
	adapter.httpClient = server.Client()

	_, err := adapter.fetchOnce(context.Background(), server.URL)
	if err == nil {
		t.Fatal("expected an error for a 404 response")
	}
	if !resilience.IsPermanent(err) {
		t.Fatalf("expected a Permanent error, got %v", err)
	}
}

func TestSplitGCSURI(t *testing.T) {
	cases := []struct {
		uri     string
		bucket  string
		object  string
		wantErr bool
	}{
		{uri: "gs://my-bucket/protocols/doc.pdf", bucket: "my-bucket", object: "protocols/doc.pdf"},
		{uri: "local://doc.pdf", wantErr: true},
		{uri: "gs://missing-object/", wantErr: true},
		{uri: "gs://", wantErr: true},
	}
	for _, tc := range cases {
		bucket, object, err := splitGCSURI(tc.uri)
		if tc.wantErr {
			if err == nil {
				t.Errorf("splitGCSURI(%q): expected error", tc.uri)
			}
			continue
		}
		if err != nil {
			t.Errorf("splitGCSURI(%q) returned error: %v", tc.uri, err)
			continue
		}
		if bucket != tc.bucket || object != tc.object {
			t.Errorf("splitGCSURI(%q) = (%q, %q), want (%q, %q)", tc.uri, bucket, object, tc.bucket, tc.object)
		}
	}
}
