package utils

import (
	"strings"
	"unicode"

	"github.com/go-gota/gota/dataframe"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

func containsString(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}

// ColumnValues returns the textual cells of col, or nil when the frame lacks it
func ColumnValues(col string, df *dataframe.DataFrame) []string {
	if df == nil || col == "" {
		return nil
	}
	if !containsString(df.Names(), col) {
		return nil
	}
	return df.Col(col).Records()
}

// StripAccents removes diacritics: "DESCRIÇÃO" becomes "DESCRICAO"
func StripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Fold upper-cases s and strips its diacritics
func Fold(s string) string {
	return strings.ToUpper(StripAccents(s))
}
