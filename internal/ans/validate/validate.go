// Package validate checks the tax id of enriched rows and quarantines the failures.
package validate

import (
	"strings"

	"github.com/farxc/ans-expenses/internal/ans/cnpj"
	"github.com/farxc/ans-expenses/internal/ans/types"
)

// Validate splits rows into those with a valid CNPJ and those routed to
// quarantine. Missing legal name, modality or region become types.Invalid.
// Rows without a registry match have no CNPJ and are quarantined as unmatched.
func Validate(rows []types.EnrichedExpense) ([]types.ValidatedExpense, []types.QuarantinedExpense) {
	var valid []types.ValidatedExpense
	var quarantined []types.QuarantinedExpense

	for _, r := range rows {
		if !r.Matched {
			quarantined = append(quarantined, types.QuarantinedExpense{EnrichedExpense: r, Reason: types.RejectUnmatched})
			continue
		}
		formatted, ok := cnpj.Validate(r.Operator.TaxID)
		if !ok {
			quarantined = append(quarantined, types.QuarantinedExpense{EnrichedExpense: r, Reason: types.RejectInvalidTaxID})
			continue
		}

		v := types.ValidatedExpense{
			EnrichedExpense: r,
			FormattedTaxID:  formatted,
			AmountValid:     r.Amount.IsPositive(),
		}
		v.Operator.LegalName = orInvalid(v.Operator.LegalName)
		v.Operator.Modality = orInvalid(v.Operator.Modality)
		v.Operator.Region = orInvalid(v.Operator.Region)
		valid = append(valid, v)
	}
	return valid, quarantined
}

func orInvalid(s string) string {
	if strings.TrimSpace(s) == "" {
		return types.Invalid
	}
	return s
}
