package terminology

import (
	"context"
	"errors"
	"testing"

	"github.com/codeready-toolchain/eligibility/pkg/domain"
)

type stubProvider struct {
	name       string
	candidates []Candidate
	err        error
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Search(_ context.Context, _ string, _ domain.EntityType) ([]Candidate, error) {
	return s.candidates, s.err
}

func TestRouter_SearchMergesAcrossProvidersInOrder(t *testing.T) {
	table := RouteTable{domain.EntityTypeCondition: {"snomed", "icd10"}}
	providers := map[string]Provider{
		"snomed": &stubProvider{name: "snomed", candidates: []Candidate{{Code: "1"}}},
		"icd10":  &stubProvider{name: "icd10", candidates: []Candidate{{Code: "2"}}},
	}
	router := NewRouter(table, providers)

	merged, errs := router.Search(context.Background(), "diabetes", domain.EntityTypeCondition)
	if len(errs) != 0 {
		t.Fatalf("errs = %v, want none", errs)
	}
	if len(merged) != 2 {
		t.Fatalf("merged = %d, want 2", len(merged))
	}
	if merged[0].Provider != "snomed" || merged[1].Provider != "icd10" {
		t.Fatalf("merged providers = [%s, %s], want [snomed, icd10]", merged[0].Provider, merged[1].Provider)
	}
}

func TestRouter_ProviderErrorDoesNotAbortSiblings(t *testing.T) {
	table := RouteTable{domain.EntityTypeCondition: {"snomed", "icd10"}}
	providers := map[string]Provider{
		"snomed": &stubProvider{name: "snomed", err: errors.New("provider down")},
		"icd10":  &stubProvider{name: "icd10", candidates: []Candidate{{Code: "2"}}},
	}
	router := NewRouter(table, providers)

	merged, errs := router.Search(context.Background(), "diabetes", domain.EntityTypeCondition)
	if len(errs) != 1 {
		t.Fatalf("errs = %v, want one error", errs)
	}
	if len(merged) != 1 || merged[0].Code != "2" {
		t.Fatalf("merged = %+v, want the surviving icd10 candidate", merged)
	}
}

func TestRouter_UnknownProviderNameIsDroppedSilently(t *testing.T) {
	table := RouteTable{domain.EntityTypeCondition: {"snomed", "not-registered"}}
	providers := map[string]Provider{"snomed": &stubProvider{name: "snomed", candidates: []Candidate{{Code: "1"}}}}
	router := NewRouter(table, providers)

	list := router.ProvidersFor(domain.EntityTypeCondition)
	if len(list) != 1 {
		t.Fatalf("ProvidersFor = %d, want 1 (unregistered name dropped)", len(list))
	}
}

func TestRouter_DemographicHasNoProviders(t *testing.T) {
	router := NewRouter(DefaultRouteTable(), nil)
	if list := router.ProvidersFor(domain.EntityTypeDemographic); len(list) != 0 {
		t.Fatalf("ProvidersFor(Demographic) = %d, want 0", len(list))
	}
}

func TestRouter_ReloadReplacesTableAtomically(t *testing.T) {
	router := NewRouter(RouteTable{domain.EntityTypeCondition: {"snomed"}}, map[string]Provider{
		"snomed": &stubProvider{name: "snomed"},
		"icd10":  &stubProvider{name: "icd10"},
	})
	router.Reload(RouteTable{domain.EntityTypeCondition: {"icd10"}})

	list := router.ProvidersFor(domain.EntityTypeCondition)
	if len(list) != 1 || list[0].Name() != "icd10" {
		t.Fatalf("ProvidersFor after Reload = %+v, want [icd10]", list)
	}
}

func TestDefaultRouteTable_DemographicIsEmpty(t *testing.T) {
	table := DefaultRouteTable()
	if len(table[domain.EntityTypeDemographic]) != 0 {
		t.Fatal("DefaultRouteTable()[Demographic] must be empty per spec.md §4.10")
	}
	if len(table[domain.EntityTypeCondition]) == 0 {
		t.Fatal("DefaultRouteTable()[Condition] must be non-empty")
	}
}
