package utils

import (
	"testing"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in    string
		want  string
		valid bool
	}{
		{"1.234.567,89", "1234567.89", true},
		{"0,00", "0", true},
		{" 150,5 ", "150.5", true},
		{"-12,30", "-12.3", true},
		{"1000", "1000", true},
		{"", "", false},
		{"abc", "", false},
		{"12,3,4", "", false},
		{"R$ 10,00", "", false},
	}

	for _, tt := range tests {
		got := ParseAmount(tt.in)
		assert.Equal(t, tt.valid, got.Valid, "input %q", tt.in)
		if tt.valid {
			assert.Equal(t, tt.want, got.Decimal.String(), "input %q", tt.in)
		}
	}
}

func TestParseAmountZeroIsValidButNotPositive(t *testing.T) {
	got := ParseAmount("0,00")
	require.True(t, got.Valid)
	assert.False(t, got.Decimal.IsPositive())
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in    string
		want  time.Time
		valid bool
	}{
		{"31/03/2024", time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), true},
		{"1/4/2024", time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), true},
		{"05-06-2023", time.Date(2023, 6, 5, 0, 0, 0, 0, time.UTC), true},
		{"2024-07-01", time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), true},
		{"", time.Time{}, false},
		{"32/01/2024", time.Time{}, false},
		{"not a date", time.Time{}, false},
	}

	for _, tt := range tests {
		got, ok := ParseDate(tt.in)
		assert.Equal(t, tt.valid, ok, "input %q", tt.in)
		if tt.valid {
			assert.True(t, tt.want.Equal(got), "input %q got %v", tt.in, got)
		}
	}
}

func TestCanonicalID(t *testing.T) {
	assert.Equal(t, "123", CanonicalID(" 000123 "))
	assert.Equal(t, "123", CanonicalID("123"))
	assert.Equal(t, "0", CanonicalID("0000"))
	assert.Equal(t, "AB-01", CanonicalID(" AB-01"))
	assert.Equal(t, "", CanonicalID("   "))
}

func TestOnlyDigitsAndFormatAmount(t *testing.T) {
	assert.Equal(t, "11222333000181", OnlyDigits("11.222.333/0001-81"))
	assert.Equal(t, "150.00", FormatAmount(ParseAmount("150").Decimal))
}

func TestFoldStripsAccents(t *testing.T) {
	assert.Equal(t, "DESCRICAO", Fold("Descrição"))
	assert.Equal(t, "EVENTOS/SINISTROS", Fold("eventos/sinistros"))
}

func TestColumnValues(t *testing.T) {
	df := dataframe.New(
		series.New([]string{"a", "b"}, series.String, "DESCRICAO"),
	)
	assert.Equal(t, []string{"a", "b"}, ColumnValues("DESCRICAO", &df))
	assert.Nil(t, ColumnValues("VALOR", &df))
	assert.Nil(t, ColumnValues("", &df))
}
