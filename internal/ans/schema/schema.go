// Package schema discovers which column of an unknown tabular layout plays
// each semantic role, using keyword tables.
package schema

import (
	"strings"

	"github.com/farxc/ans-expenses/internal/ans/utils"
)

// Role is a semantic column role
type Role int

const (
	Description Role = iota
	Value
	Date
	Identifier
	Name
)

var roleNames = map[Role]string{
	Description: "description",
	Value:       "value",
	Date:        "date",
	Identifier:  "identifier",
	Name:        "name",
}

func (r Role) String() string {
	return roleNames[r]
}

// Keywords maps each role to the substrings that identify its column.
type Keywords map[Role][]string

// DefaultKeywords returns a fresh copy of the keyword tables used for ANS extracts
func DefaultKeywords() Keywords {
	return Keywords{
		Description: {"DESCRICAO", "DS_CONTA", "NOME_CONTA"},
		Value:       {"VALOR", "VL_", "SALDO"},
		Date:        {"DATA"},
		Identifier:  {"REG_ANS", "REGISTRO"},
		Name:        {"RAZAO_SOCIAL", "NOME_OPERADORA"},
	}
}

// Resolved holds the column chosen for each role. Empty means absent.
type Resolved struct {
	Description string
	Value       string
	Date        string
	Identifier  string
	Name        string
}

// HasRequired reports whether the description and value roles were found
func (r Resolved) HasRequired() bool {
	return r.Description != "" && r.Value != ""
}

// Missing lists the required roles that could not be resolved
func (r Resolved) Missing() []string {
	var missing []string
	if r.Description == "" {
		missing = append(missing, Description.String())
	}
	if r.Value == "" {
		missing = append(missing, Value.String())
	}
	return missing
}

// Resolve returns, for every role, the first column (in column order) whose
// name contains one of the role's keywords. Columns are expected to be
// normalized with NormalizeHeader already.
func Resolve(columns []string, kw Keywords) Resolved {
	return Resolved{
		Description: FindColumn(columns, kw[Description]),
		Value:       FindColumn(columns, kw[Value]),
		Date:        FindColumn(columns, kw[Date]),
		Identifier:  FindColumn(columns, kw[Identifier]),
		Name:        FindColumn(columns, kw[Name]),
	}
}

// FindColumn returns the first column containing any keyword, or "" when none does
func FindColumn(columns []string, keywords []string) string {
	for _, col := range columns {
		for _, k := range keywords {
			if k != "" && strings.Contains(col, k) {
				return col
			}
		}
	}
	return ""
}

// NormalizeHeader upper-cases a column name, strips diacritics and joins
// words with underscores: " Descrição  da conta" becomes "DESCRICAO_DA_CONTA".
func NormalizeHeader(name string) string {
	name = strings.TrimPrefix(name, "\ufeff")
	return strings.Join(strings.Fields(utils.Fold(name)), "_")
}

// NormalizeHeaders applies NormalizeHeader to every name
func NormalizeHeaders(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = NormalizeHeader(n)
	}
	return out
}
