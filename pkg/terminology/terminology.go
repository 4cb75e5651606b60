// Package terminology implements the TerminologyProvider capability and the
// YAML-configured entity-type router (spec.md §4.10, §6.4).
package terminology

import (
	"context"

	"github.com/codeready-toolchain/eligibility/pkg/domain"
)

// Candidate is one scored terminology binding returned by a provider.
type Candidate struct {
	Code         string
	System       string
	Display      string
	Confidence   float64
	SemanticType string
	Provider     string                 // set by the router, not the provider itself
	Tier         MatchTier              // which tiered-match strategy produced this candidate
	Method       domain.GroundingMethod
}

// MatchTier records which tiered-match strategy produced a Candidate
// (spec.md §4.6 step 3).
type MatchTier string

const (
	TierExact   MatchTier = "exact"
	TierSynonym MatchTier = "synonym"
	TierFuzzy   MatchTier = "fuzzy"
)

// TierConfidence returns the fixed confidence spec.md §4.6 assigns per tier.
func TierConfidence(t MatchTier) float64 {
	switch t {
	case TierExact:
		return 0.95
	case TierSynonym:
		return 0.75
	case TierFuzzy:
		return 0.50
	default:
		return 0
	}
}

// Provider is the TerminologyProvider capability (spec.md §6.4). Search must
// be cancellable and must return classified errors via pkg/resilience.
type Provider interface {
	Name() string
	Search(ctx context.Context, text string, entityType domain.EntityType) ([]Candidate, error)
}
