package terminology

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/codeready-toolchain/eligibility/pkg/domain"
)

func TestHTTPProvider_SearchReturnsCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]wireCandidate{
			{Code: "44054006", System: "SNOMED", Display: "Diabetes", Confidence: 0.95},
		})
	}))
	defer server.Close()

	p := NewHTTPProvider("snomed", server.URL, time.Second, time.Minute, 100)
	candidates, err := p.Search(context.Background(), "diabetes", domain.EntityTypeCondition)
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if len(candidates) != 1 || candidates[0].Code != "44054006" {
		t.Fatalf("candidates = %+v", candidates)
	}
}

func TestHTTPProvider_CachesResultsByNormalizedText(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode([]wireCandidate{{Code: "1", System: "SNOMED"}})
	}))
	defer server.Close()

	p := NewHTTPProvider("snomed", server.URL, time.Second, time.Minute, 100)
	if _, err := p.Search(context.Background(), "Type 2  Diabetes", domain.EntityTypeCondition); err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if _, err := p.Search(context.Background(), "type 2 diabetes", domain.EntityTypeCondition); err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("server called %d times, want 1 (second lookup should hit the cache)", calls)
	}
}

func TestHTTPProvider_NotFoundIsPermanentAndDoesNotTripBreaker(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	p := NewHTTPProvider("snomed", server.URL, time.Second, time.Minute, 100)
	_, err := p.Search(context.Background(), "nonexistent", domain.EntityTypeCondition)
	if err == nil {
		t.Fatal("expected an error for a 404 response")
	}
	if p.BreakerState() != "closed" {
		t.Fatalf("BreakerState() = %s, want closed", p.BreakerState())
	}
}

func TestHTTPProvider_NameAndBreakerName(t *testing.T) {
	p := NewHTTPProvider("rxnorm", "http://example.invalid", time.Second, time.Minute, 10)
	if p.Name() != "rxnorm" {
		t.Fatalf("Name() = %q, want rxnorm", p.Name())
	}
	if p.BreakerName() != "terminology.rxnorm" {
		t.Fatalf("BreakerName() = %q, want terminology.rxnorm", p.BreakerName())
	}
}

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"Type 2  Diabetes": "type 2 diabetes",
		"  leading":        " leading",
		"MixedCase\tTabs":  "mixedcase tabs",
		"":                 "",
	}
	for in, want := range cases {
		if got := normalize(in); got != want {
			t.Errorf("normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCacheKey_DiffersByProviderAndEntityType(t *testing.T) {
	a := cacheKey("snomed", domain.EntityTypeCondition, "diabetes")
	b := cacheKey("rxnorm", domain.EntityTypeCondition, "diabetes")
	c := cacheKey("snomed", domain.EntityTypeMedication, "diabetes")
	if a == b || a == c || b == c {
		t.Fatalf("expected distinct cache keys, got %q, %q, %q", a, b, c)
	}
}
