package terminology

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/codeready-toolchain/eligibility/pkg/domain"
	"gopkg.in/yaml.v3"
)

// RouteTable is the YAML shape of spec.md §4.10:
//
//	Medication: [rxnorm, umls]
//	Condition:  [snomed, icd10, umls]
//	...
//	Demographic: []   # intentionally empty → skipped
type RouteTable map[domain.EntityType][]string

// LoadRouteTable reads and parses a YAML routing table from path.
func LoadRouteTable(path string) (RouteTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read route table %s: %w", path, err)
	}
	var table RouteTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parse route table %s: %w", path, err)
	}
	return table, nil
}

// DefaultRouteTable is the fallback table matching spec.md §4.10 exactly,
// used when the configured route table is empty.
func DefaultRouteTable() RouteTable {
	return RouteTable{
		domain.EntityTypeMedication:  {"rxnorm", "umls"},
		domain.EntityTypeCondition:   {"snomed", "icd10", "umls"},
		domain.EntityTypeLabValue:    {"loinc", "umls"},
		domain.EntityTypeBiomarker:   {"loinc", "snomed", "umls"},
		domain.EntityTypeProcedure:   {"snomed", "cpt", "umls"},
		domain.EntityTypePhenotype:   {"hpo", "umls"},
		domain.EntityTypeDemographic: {},
	}
}

// Router maps entity types to ordered provider lists, invokes each provider
// in order, and returns a merged, provider-tagged candidate list. Each
// provider performs its own tiered matching (spec.md §4.6 step 3); the ground
// node then runs dual-grounding reconciliation across the merged list
// (step 4).
//
// Grounded on the teacher's pkg/config/mcp.go registry pattern: a
// thread-safe map guarded by RWMutex, with defensive copies on read so
// callers can't mutate shared state, and a Reload path for hot-reload.
type Router struct {
	mu        sync.RWMutex
	table     RouteTable
	providers map[string]Provider
}

// NewRouter builds a Router over table, resolving provider names against the
// given provider registry. Unknown provider names in the table are dropped
// with no error — operators may reference providers not yet deployed.
func NewRouter(table RouteTable, providers map[string]Provider) *Router {
	return &Router{table: table, providers: providers}
}

// Reload atomically replaces the route table (used by the fsnotify-backed
// config watcher, SPEC_FULL.md §11).
func (r *Router) Reload(table RouteTable) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.table = table
}

// ProvidersFor returns a defensive copy of the ordered provider list
// configured for entityType.
func (r *Router) ProvidersFor(entityType domain.EntityType) []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := r.table[entityType]
	out := make([]Provider, 0, len(names))
	for _, name := range names {
		if p, ok := r.providers[name]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Search invokes every provider configured for entityType, in order, and
// returns the merged candidate list with Candidate.Provider set. A provider
// error is recorded but does not abort the remaining providers — consistent
// with spec.md §4.6's never-abort-siblings policy at every fan-out level.
func (r *Router) Search(ctx context.Context, text string, entityType domain.EntityType) ([]Candidate, []error) {
	providers := r.ProvidersFor(entityType)
	var merged []Candidate
	var errs []error

	for _, p := range providers {
		candidates, err := p.Search(ctx, text, entityType)
		if err != nil {
			errs = append(errs, fmt.Errorf("provider %s: %w", p.Name(), err))
			continue
		}
		for i := range candidates {
			candidates[i].Provider = p.Name()
		}
		merged = append(merged, candidates...)
	}
	return merged, errs
}
