package utils

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var dayFirstLayouts = []string{
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"02/01/2006 15:04:05",
}

// ParseDate parses a day-first date. ISO dates are accepted as a fallback
// because some extracts ship yyyy-mm-dd.
func ParseDate(dateStr string) (time.Time, bool) {
	dateStr = strings.TrimSpace(dateStr)
	if dateStr == "" {
		return time.Time{}, false
	}
	for _, layout := range dayFirstLayouts {
		if t, err := time.Parse(layout, dateStr); err == nil {
			return t, true
		}
	}
	if t, err := time.Parse("2006-01-02", dateStr); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02 15:04:05", dateStr); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// ParseAmount cleans a pt-BR formatted number: thousands separator (.) is
// removed and the decimal separator (,) becomes (.). Unparsable text yields
// an invalid value, never zero.
func ParseAmount(valStr string) decimal.NullDecimal {
	cleanStr := strings.TrimSpace(valStr)
	if cleanStr == "" {
		return decimal.NullDecimal{}
	}
	cleanStr = strings.ReplaceAll(cleanStr, ".", "")
	cleanStr = strings.ReplaceAll(cleanStr, ",", ".")
	val, err := decimal.NewFromString(cleanStr)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: val, Valid: true}
}

// FormatAmount renders an amount with two decimal places and a dot separator
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// CanonicalID trims an identifier and drops leading zeros from all-digit values
// so that "000123" and "123" name the same operator.
func CanonicalID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || !IsDigits(id) {
		return id
	}
	trimmed := strings.TrimLeft(id, "0")
	if trimmed == "" {
		return "0"
	}
	return trimmed
}

// IsDigits reports whether s is a non-empty string of ASCII digits
func IsDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// OnlyDigits drops every non digit rune
func OnlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
