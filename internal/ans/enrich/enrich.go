// Package enrich left-joins consolidated expenses with the operator registry.
package enrich

import (
	"github.com/farxc/ans-expenses/internal/ans/types"
	"github.com/farxc/ans-expenses/internal/ans/utils"
)

// Stats reports the outcome of a join
type Stats struct {
	Matched int
	// Unmatched counts rows whose identifier is absent from the registry
	Unmatched int
	// DuplicateRegistryIDs counts registry rows dropped by deduplication
	DuplicateRegistryIDs int
}

// Index deduplicates operators by canonical registry id, keeping the
// lexicographically smallest tax id for each.
func Index(operators []types.Operator) (map[string]types.Operator, int) {
	index := make(map[string]types.Operator, len(operators))
	duplicates := 0
	for _, op := range operators {
		id := utils.CanonicalID(op.RegistryID)
		if id == "" {
			continue
		}
		op.RegistryID = id
		existing, ok := index[id]
		if ok {
			duplicates++
			if existing.TaxID <= op.TaxID {
				continue
			}
		}
		index[id] = op
	}
	return index, duplicates
}

// Join attaches registry data to every consolidated row. Rows without a
// registry entry are kept with empty operator fields and Matched=false.
func Join(rows []types.ConsolidatedExpense, operators []types.Operator) ([]types.EnrichedExpense, Stats) {
	index, duplicates := Index(operators)
	stats := Stats{DuplicateRegistryIDs: duplicates}

	out := make([]types.EnrichedExpense, 0, len(rows))
	for _, r := range rows {
		op, ok := index[utils.CanonicalID(r.EntityID)]
		if ok {
			stats.Matched++
		} else {
			stats.Unmatched++
			op = types.Operator{}
		}
		out = append(out, types.EnrichedExpense{ConsolidatedExpense: r, Operator: op, Matched: ok})
	}
	return out, stats
}
