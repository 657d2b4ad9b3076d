// Package consolidate sums canonical expenses per entity and quarter.
package consolidate

import (
	"fmt"
	"sort"

	"github.com/farxc/ans-expenses/internal/ans/types"
	"github.com/shopspring/decimal"
)

type key struct {
	entityID string
	year     int
	quarter  int
}

// Consolidate groups rows by (EntityID, Year, Quarter) and sums their amounts.
// EntityName is the first non-empty name seen for the entity, in input order.
// The output is sorted by year, quarter then entity id.
func Consolidate(rows []types.CanonicalExpense) []types.ConsolidatedExpense {
	names := make(map[string]string)
	sums := make(map[key]decimal.Decimal)

	for _, r := range rows {
		if _, ok := names[r.EntityID]; !ok || names[r.EntityID] == "" {
			names[r.EntityID] = r.EntityName
		}
		k := key{entityID: r.EntityID, year: r.Year, quarter: r.Quarter}
		sums[k] = sums[k].Add(r.Amount)
	}

	out := make([]types.ConsolidatedExpense, 0, len(sums))
	for k, amount := range sums {
		out = append(out, types.ConsolidatedExpense{
			EntityID:   k.entityID,
			EntityName: names[k.entityID],
			Year:       k.year,
			Quarter:    k.quarter,
			Amount:     amount,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		if a.Quarter != b.Quarter {
			return a.Quarter < b.Quarter
		}
		return a.EntityID < b.EntityID
	})
	return out
}

// Summary describes a consolidated dataset
type Summary struct {
	Rows           int
	UniqueEntities int
	Years          []int
	Quarters       []string
	Total          decimal.Decimal
	Mean           decimal.Decimal
}

// Summarize computes the coverage and totals of a consolidated dataset.
// Quarters are rendered as "2024-Q1" and both slices are sorted.
func Summarize(rows []types.ConsolidatedExpense) Summary {
	s := Summary{Rows: len(rows)}
	entities := make(map[string]struct{})
	years := make(map[int]struct{})
	quarters := make(map[string]struct{})

	for _, r := range rows {
		entities[r.EntityID] = struct{}{}
		years[r.Year] = struct{}{}
		quarters[quarterLabel(r.Year, r.Quarter)] = struct{}{}
		s.Total = s.Total.Add(r.Amount)
	}

	s.UniqueEntities = len(entities)
	for y := range years {
		s.Years = append(s.Years, y)
	}
	sort.Ints(s.Years)
	for q := range quarters {
		s.Quarters = append(s.Quarters, q)
	}
	sort.Strings(s.Quarters)
	if len(rows) > 0 {
		s.Mean = s.Total.Div(decimal.NewFromInt(int64(len(rows))))
	}
	return s
}

func quarterLabel(year, quarter int) string {
	return fmt.Sprintf("%d-Q%d", year, quarter)
}
