package audit

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeIsDeterministic(t *testing.T) {
	build := func(files []File, years []int) *Report {
		r := New(Settings{Policy: "strict", AmountMode: "value", Encoding: "latin1", ChunkSize: 10})
		r.RowsRead = 16
		r.YearsCovered = years
		r.QuartersCovered = []string{"2024-Q2", "2024-Q1"}
		r.TotalAmount = Amount(decimal.RequireFromString("1500"))
		r.Files = files
		r.AddStage("normalize", 16, 14, map[string]int{"invalid_amount": 1, "not_expense": 1, "invalid_date": 0})
		return r
	}

	a := build([]File{{Path: "b.csv"}, {Path: "a.csv"}}, []int{2024, 2023})
	b := build([]File{{Path: "a.csv"}, {Path: "b.csv"}}, []int{2023, 2024})

	ja, err := a.Encode()
	require.NoError(t, err)
	jb, err := b.Encode()
	require.NoError(t, err)
	assert.Equal(t, string(ja), string(jb))

	text := string(ja)
	assert.True(t, strings.HasPrefix(text, "{\n  \"rows_read\": 16,\n  \"rows_discarded_invalid_date\": 0,"))
	assert.Contains(t, text, "\"total_amount\": \"1500.00\"")
	assert.Contains(t, text, "\"quarters_covered\": [\n    \"2024-Q1\",\n    \"2024-Q2\"\n  ]")
	assert.NotContains(t, text, "\"invalid_date\": 0")
	assert.Less(t, strings.Index(text, "\"a.csv\""), strings.Index(text, "\"b.csv\""))
}

func TestEmptyReportEncodesEmptyArrays(t *testing.T) {
	data, err := New(Settings{}).Encode()
	require.NoError(t, err)
	assert.Contains(t, string(data), "\"years_covered\": []")
	assert.Contains(t, string(data), "\"mean_amount\": \"0.00\"")
}

func TestWriteAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auditoria.json")
	r := New(Settings{Policy: "strict"})
	r.ZipCreated = true
	r.AddStage("consolidate", 14, 2, nil)
	require.NoError(t, r.Write(path))

	got, err := Read(path)
	require.NoError(t, err)
	assert.True(t, got.ZipCreated)
	require.Len(t, got.Stages, 1)
	assert.Equal(t, "consolidate", got.Stages[0].Name)
	assert.Nil(t, got.Stages[0].Discarded)
}
