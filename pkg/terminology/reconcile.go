package terminology

import "github.com/codeready-toolchain/eligibility/pkg/domain"

// expectedDomain maps an entity type to the terminology "domain" tag a
// reconciled candidate should prefer (spec.md §4.6 step 4: "preferring codes
// from the provider whose domain matches the entity's expected domain").
var expectedDomain = map[domain.EntityType]string{
	domain.EntityTypeMedication: "rxnorm",
	domain.EntityTypeCondition:  "snomed",
	domain.EntityTypeLabValue:   "loinc",
	domain.EntityTypeBiomarker:  "loinc",
	domain.EntityTypeProcedure:  "snomed",
	domain.EntityTypePhenotype:  "hpo",
}

// Reconcile picks the single best candidate from a merged, multi-provider
// candidate list: prefer the provider matching the entity's expected domain;
// a tie (or no domain match) falls back to the highest-confidence candidate
// (spec.md §4.6 step 4).
func Reconcile(candidates []Candidate, entityType domain.EntityType) (Candidate, bool) {
	if len(candidates) == 0 {
		return Candidate{}, false
	}

	want := expectedDomain[entityType]
	var best Candidate
	found := false
	bestIsDomainMatch := false

	for _, c := range candidates {
		isDomainMatch := want != "" && c.Provider == want
		switch {
		case !found:
			best, found, bestIsDomainMatch = c, true, isDomainMatch
		case isDomainMatch && !bestIsDomainMatch:
			best, bestIsDomainMatch = c, true
		case isDomainMatch == bestIsDomainMatch && c.Confidence > best.Confidence:
			best = c
		}
	}
	return best, found
}
