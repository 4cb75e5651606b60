package main

import (
	"log/slog"
	"strings"

	"github.com/codeready-toolchain/eligibility/pkg/domain"
	"github.com/codeready-toolchain/eligibility/pkg/terminology"
)

// entityTypeByLowerName resolves pkg/config's lowercase snake_case route
// table keys ("medication", "lab_value") to the capitalized domain.EntityType
// constants pkg/terminology.RouteTable is keyed by. pkg/config stays
// domain-agnostic on purpose (DESIGN.md) so this translation lives here,
// the one place that wires both packages together.
var entityTypeByLowerName = map[string]domain.EntityType{
	"condition":   domain.EntityTypeCondition,
	"medication":  domain.EntityTypeMedication,
	"procedure":   domain.EntityTypeProcedure,
	"lab_value":   domain.EntityTypeLabValue,
	"demographic": domain.EntityTypeDemographic,
	"biomarker":   domain.EntityTypeBiomarker,
	"phenotype":   domain.EntityTypePhenotype,
}

// toTerminologyRouteTable converts a pkg/config.Config.RouteTable (or a
// freshly reloaded fsnotify snapshot) into the shape terminology.Router
// consumes. Unknown keys are dropped with a log line rather than failing —
// pkg/config's own loader already validated provider references, so an
// unknown entity-type key here can only come from a typo in a hot-reloaded
// file, which shouldn't crash a running worker.
func toTerminologyRouteTable(table map[string][]string) terminology.RouteTable {
	out := make(terminology.RouteTable, len(table))
	for key, providers := range table {
		et, ok := entityTypeByLowerName[strings.ToLower(key)]
		if !ok {
			slog.Warn("route table references unknown entity type, skipping", "entity_type", key)
			continue
		}
		out[et] = providers
	}
	return out
}
