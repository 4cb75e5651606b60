package terminology

import (
	"testing"

	"github.com/codeready-toolchain/eligibility/pkg/domain"
)

func TestReconcile_EmptyCandidatesNotFound(t *testing.T) {
	_, found := Reconcile(nil, domain.EntityTypeCondition)
	if found {
		t.Fatal("expected found=false for an empty candidate list")
	}
}

func TestReconcile_PrefersExpectedDomainOverHigherConfidence(t *testing.T) {
	candidates := []Candidate{
		{Provider: "icd10", Code: "A", Confidence: 0.99},
		{Provider: "snomed", Code: "B", Confidence: 0.6},
	}
	best, found := Reconcile(candidates, domain.EntityTypeCondition)
	if !found {
		t.Fatal("expected a match")
	}
	if best.Code != "B" {
		t.Fatalf("Code = %q, want B (snomed is Condition's expected domain)", best.Code)
	}
}

func TestReconcile_FallsBackToHighestConfidenceWhenNoDomainMatch(t *testing.T) {
	candidates := []Candidate{
		{Provider: "icd10", Code: "A", Confidence: 0.5},
		{Provider: "umls", Code: "B", Confidence: 0.8},
	}
	best, found := Reconcile(candidates, domain.EntityTypeCondition)
	if !found {
		t.Fatal("expected a match")
	}
	if best.Code != "B" {
		t.Fatalf("Code = %q, want B (higher confidence, neither matches expected domain)", best.Code)
	}
}

func TestReconcile_TiebreaksOnConfidenceWithinDomainMatches(t *testing.T) {
	candidates := []Candidate{
		{Provider: "snomed", Code: "A", Confidence: 0.7},
		{Provider: "snomed", Code: "B", Confidence: 0.9},
	}
	best, found := Reconcile(candidates, domain.EntityTypeCondition)
	if !found {
		t.Fatal("expected a match")
	}
	if best.Code != "B" {
		t.Fatalf("Code = %q, want B (higher confidence among same-domain matches)", best.Code)
	}
}

func TestReconcile_UnknownEntityTypeHasNoExpectedDomain(t *testing.T) {
	candidates := []Candidate{
		{Provider: "x", Code: "A", Confidence: 0.3},
		{Provider: "y", Code: "B", Confidence: 0.7},
	}
	best, found := Reconcile(candidates, domain.EntityTypeDemographic)
	if !found {
		t.Fatal("expected a match")
	}
	if best.Code != "B" {
		t.Fatalf("Code = %q, want B (falls back to highest confidence)", best.Code)
	}
}

func TestTierConfidence(t *testing.T) {
	cases := map[MatchTier]float64{
		TierExact:            0.95,
		TierSynonym:          0.75,
		TierFuzzy:            0.50,
		MatchTier("unknown"): 0,
	}
	for tier, want := range cases {
		if got := TierConfidence(tier); got != want {
			t.Errorf("TierConfidence(%s) = %v, want %v", tier, got, want)
		}
	}
}
