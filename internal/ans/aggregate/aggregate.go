// Package aggregate computes per-operator statistics over validated expenses.
package aggregate

import (
	"sort"

	"github.com/farxc/ans-expenses/internal/ans/types"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"
)

type group struct {
	name    string
	region  string
	total   decimal.Decimal
	amounts []float64
}

// Aggregate groups rows by (display name, region) and reports total, mean and
// sample standard deviation of their quarterly amounts. Rows flagged with an
// invalid amount are left out. Output is sorted by total descending, then by
// name and region.
func Aggregate(rows []types.ValidatedExpense) []types.AggregatedExpense {
	groups := make(map[[2]string]*group)
	for _, r := range rows {
		if !r.AmountValid {
			continue
		}
		k := [2]string{r.DisplayName(), r.Operator.Region}
		g, ok := groups[k]
		if !ok {
			g = &group{name: k[0], region: k[1]}
			groups[k] = g
		}
		g.total = g.total.Add(r.Amount)
		g.amounts = append(g.amounts, r.Amount.InexactFloat64())
	}

	out := make([]types.AggregatedExpense, 0, len(groups))
	for _, g := range groups {
		agg := types.AggregatedExpense{
			EntityName: g.name,
			Region:     g.region,
			Total:      g.total,
			Mean:       stat.Mean(g.amounts, nil),
			Count:      len(g.amounts),
		}
		if len(g.amounts) >= 2 {
			sd := stat.StdDev(g.amounts, nil)
			agg.StdDev = &sd
		}
		out = append(out, agg)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if c := a.Total.Cmp(b.Total); c != 0 {
			return c > 0
		}
		if a.EntityName != b.EntityName {
			return a.EntityName < b.EntityName
		}
		return a.Region < b.Region
	})
	return out
}
