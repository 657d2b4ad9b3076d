package normalize

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/farxc/ans-expenses/internal/ans/classifier"
	"github.com/farxc/ans-expenses/internal/ans/consolidate"
	"github.com/farxc/ans-expenses/internal/ans/files"
	"github.com/farxc/ans-expenses/internal/ans/period"
	"github.com/farxc/ans-expenses/internal/ans/schema"
	"github.com/farxc/ans-expenses/internal/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

const header = "DATA;REG_ANS;CD_CONTA_CONTABIL;DESCRICAO;VL_SALDO_FINAL\n"

func writeLatin1(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	encoded, err := charmap.ISO8859_1.NewEncoder().String(content)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte(encoded), 0o644))
}

func testOptions(t *testing.T) Options {
	t.Helper()
	c, err := classifier.New(classifier.PolicyStrict)
	require.NoError(t, err)
	enc, err := files.LookupEncoding("latin1")
	require.NoError(t, err)
	return Options{
		Encoding:   enc,
		ChunkSize:  100000,
		Classifier: c,
		Resolver:   period.NewResolver(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)),
	}
}

// quarterFixtures writes 1T2024 (10 expenses of 100,00 plus one non-expense)
// and 2T2024 (five expenses summing 500,00 plus one zero amount).
func quarterFixtures(t *testing.T, dir string) []string {
	t.Helper()
	var q1 strings.Builder
	q1.WriteString(header)
	for i := 0; i < 10; i++ {
		q1.WriteString("31/03/2024;000123;411;EVENTOS/ SINISTROS CONHECIDOS OU AVISADOS;100,00\n")
	}
	q1.WriteString("31/03/2024;000123;311;RECEITA DE CONTRAPRESTAÇÕES;999,00\n")

	q2 := header +
		"30/06/2024;123;411;EVENTOS/ SINISTROS;200,00\n" +
		"30/06/2024;123;411;EVENTOS/ SINISTROS;150,00\n" +
		"30/06/2024;123;411;EVENTOS/ SINISTROS;100,00\n" +
		"30/06/2024;123;411;EVENTOS/ SINISTROS;50,00\n" +
		"30/06/2024;123;411;EVENTOS/ SINISTROS;0,00\n"

	p1 := filepath.Join(dir, "1T2024.csv")
	p2 := filepath.Join(dir, "2T2024.csv")
	writeLatin1(t, p1, q1.String())
	writeLatin1(t, p2, q2)
	return []string{p1, p2}
}

func run(t *testing.T, opts Options, inputs []string) (Result, string, string) {
	t.Helper()
	out := t.TempDir()
	canonical := filepath.Join(out, files.CanonicalFile)
	rejects := filepath.Join(out, files.RejectsFile)
	res, err := New(opts, logger.Discard()).Run(context.Background(), inputs, canonical, rejects)
	require.NoError(t, err)
	return res, canonical, rejects
}

func TestRunQuarterScenario(t *testing.T) {
	inputs := quarterFixtures(t, t.TempDir())
	res, canonicalPath, rejectsPath := run(t, testOptions(t), inputs)

	assert.Equal(t, 16, res.Totals.RowsRead)
	assert.Equal(t, 14, res.Totals.Retained)
	assert.Equal(t, 1, res.Totals.NotExpense)
	assert.Equal(t, 1, res.Totals.InvalidAmount)
	assert.Equal(t, "1500.00", res.Totals.RetainedAmount.StringFixed(2))
	require.Len(t, res.Files, 2)
	assert.Equal(t, StatusProcessed, res.Files[0].Status)
	assert.Equal(t, "2024-Q1", res.Files[0].Period)
	assert.Equal(t, period.SourceFileName, res.Files[0].PeriodSource)
	assert.NotEmpty(t, res.Files[0].Checksum)

	rows, err := files.ReadCanonical(canonicalPath)
	require.NoError(t, err)
	require.Len(t, rows, 14)
	assert.Equal(t, "123", rows[0].EntityID)
	assert.Equal(t, 2024, rows[13].Year)
	assert.Equal(t, 2, rows[13].Quarter)
	assert.Equal(t, "2T2024.csv", rows[13].SourceFile)

	data, err := os.ReadFile(rejectsPath)
	require.NoError(t, err)
	assert.Equal(t, "source_file;line;reason;entity_identifier;raw_amount;raw_date\n2T2024.csv;6;invalid_amount;123;0,00;30/06/2024\n", string(data))
}

func TestRunIsIndependentOfWorkersAndChunkSize(t *testing.T) {
	inputs := quarterFixtures(t, t.TempDir())

	seq := testOptions(t)
	_, seqCanonical, seqRejects := run(t, seq, inputs)

	par := testOptions(t)
	par.Workers = 4
	par.ChunkSize = 3
	parRes, parCanonical, parRejects := run(t, par, inputs)
	assert.Equal(t, 14, parRes.Totals.Retained)

	for _, pair := range [][2]string{{seqCanonical, parCanonical}, {seqRejects, parRejects}} {
		a, err := os.ReadFile(pair[0])
		require.NoError(t, err)
		b, err := os.ReadFile(pair[1])
		require.NoError(t, err)
		assert.Equal(t, string(a), string(b))
	}
}

func TestRunTruncatesPreviousOutput(t *testing.T) {
	inputs := quarterFixtures(t, t.TempDir())
	out := t.TempDir()
	canonical := filepath.Join(out, files.CanonicalFile)
	rejects := filepath.Join(out, files.RejectsFile)
	n := New(testOptions(t), logger.Discard())

	_, err := n.Run(context.Background(), inputs, canonical, rejects)
	require.NoError(t, err)
	_, err = n.Run(context.Background(), inputs, canonical, rejects)
	require.NoError(t, err)

	rows, err := files.ReadCanonical(canonical)
	require.NoError(t, err)
	assert.Len(t, rows, 14)
}

func TestPeriodFromDateColumn(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "balancete.csv")
	writeLatin1(t, path, header+
		";10;411;EVENTOS/ SINISTROS;10,00\n"+
		"15/05/2023;10;411;EVENTOS/ SINISTROS;20,00\n"+
		"99/99/2023;10;411;EVENTOS/ SINISTROS;30,00\n")

	res, canonical, _ := run(t, testOptions(t), []string{path})

	assert.Equal(t, 3, res.Totals.RowsRead)
	assert.Equal(t, 2, res.Totals.Retained)
	assert.Equal(t, 1, res.Totals.InvalidDate)
	assert.Equal(t, period.SourceDate, res.Files[0].PeriodSource)

	rows, err := files.ReadCanonical(canonical)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 2023, rows[0].Year)
	assert.Equal(t, 2, rows[0].Quarter)
}

func TestUnresolvedPeriodIsCounted(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "balancete.csv")
	writeLatin1(t, path, "REG_ANS;DESCRICAO;VALOR\n10;EVENTOS/ SINISTROS;10,00\n10;EVENTOS/ SINISTROS;abc\n")

	res, _, rejects := run(t, testOptions(t), []string{path})

	assert.Equal(t, 1, res.Totals.UnresolvedPeriod)
	assert.Equal(t, 1, res.Totals.InvalidAmount)
	assert.Equal(t, 0, res.Totals.Retained)

	data, err := os.ReadFile(rejects)
	require.NoError(t, err)
	assert.Contains(t, string(data), "balancete.csv;2;unresolved_period;10;10,00;\n")
	assert.Contains(t, string(data), "balancete.csv;3;invalid_amount;10;abc;\n")
}

func TestPeriodFromPathSegments(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "2022", "Q3", "balancete.csv")
	writeLatin1(t, path, "REG_ANS;DESCRICAO;VALOR\n10;EVENTOS/ SINISTROS;10,00\n")

	res, canonical, _ := run(t, testOptions(t), []string{path})
	assert.Equal(t, period.SourcePath, res.Files[0].PeriodSource)

	rows, err := files.ReadCanonical(canonical)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 2022, rows[0].Year)
	assert.Equal(t, 3, rows[0].Quarter)
}

func TestBadFilesAreSkipped(t *testing.T) {
	dir := t.TempDir()
	inputs := quarterFixtures(t, dir)

	noSchema := filepath.Join(dir, "3T2024.csv")
	writeLatin1(t, noSchema, "A;B\n1;2\n")
	corrupt := filepath.Join(dir, "4T2024.xlsx")
	require.NoError(t, os.WriteFile(corrupt, []byte("not a workbook"), 0o644))

	res, _, _ := run(t, testOptions(t), append(inputs, noSchema, corrupt))

	require.Len(t, res.Files, 4)
	assert.Equal(t, StatusSkippedSchema, res.Files[2].Status)
	assert.Equal(t, StatusSkippedIO, res.Files[3].Status)
	assert.NotEmpty(t, res.Files[3].Error)
	assert.Equal(t, 2, res.Skipped())
	assert.Equal(t, 14, res.Totals.Retained)
}

func TestXLSXInput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "3T2024.xlsx")
	require.NoError(t, files.WriteXLSX(path, [][]string{
		{"REG_ANS", "DESCRICAO", "VL_SALDO_FINAL"},
		{"55", "EVENTOS/ SINISTROS", "1.234,56"},
		{"55", "DESPESAS ADMINISTRATIVAS", "10,00"},
	}))

	res, canonical, _ := run(t, testOptions(t), []string{path})
	assert.Equal(t, 2, res.Totals.RowsRead)
	assert.Equal(t, 1, res.Totals.NotExpense)

	rows, err := files.ReadCanonical(canonical)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "1234.56", rows[0].Amount.StringFixed(2))
}

func TestAmountModes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "1T2024.csv")
	writeLatin1(t, path, "REG_ANS;DESCRICAO;VL_SALDO_INICIAL;VL_SALDO_FINAL\n"+
		"1;EVENTOS/ SINISTROS;100,00;250,00\n"+
		"2;EVENTOS/ SINISTROS;300,00;200,00\n")

	opts := testOptions(t)
	res, _, _ := run(t, opts, []string{path})
	assert.Equal(t, "400.00", res.Totals.RetainedAmount.StringFixed(2))

	opts.AmountMode = AmountFinalBalance
	res, _, _ = run(t, opts, []string{path})
	assert.Equal(t, "450.00", res.Totals.RetainedAmount.StringFixed(2))

	opts.AmountMode = AmountBalanceDelta
	res, _, rejects := run(t, opts, []string{path})
	assert.Equal(t, "150.00", res.Totals.RetainedAmount.StringFixed(2))
	assert.Equal(t, 1, res.Totals.InvalidAmount)

	data, err := os.ReadFile(rejects)
	require.NoError(t, err)
	assert.Contains(t, string(data), "1T2024.csv;3;invalid_amount;2;300,00->200,00;\n")
}

func TestParseAmountMode(t *testing.T) {
	m, err := ParseAmountMode("")
	require.NoError(t, err)
	assert.Equal(t, AmountValue, m)

	m, err = ParseAmountMode("BALANCE_DELTA")
	require.NoError(t, err)
	assert.Equal(t, AmountBalanceDelta, m)

	_, err = ParseAmountMode("median")
	assert.ErrorIs(t, err, ErrUnknownAmountMode)
}

func TestRunHonoursCancellation(t *testing.T) {
	inputs := quarterFixtures(t, t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := t.TempDir()
	_, err := New(testOptions(t), logger.Discard()).Run(ctx, inputs, filepath.Join(out, "c.csv"), filepath.Join(out, "r.csv"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSubCentAmountsKeepFullPrecision(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "1T2024.csv")
	writeLatin1(t, path, header+
		"31/03/2024;123;411;EVENTOS/ SINISTROS;0,004\n"+
		"31/03/2024;456;411;EVENTOS/ SINISTROS;0,335\n"+
		"31/03/2024;456;411;EVENTOS/ SINISTROS;0,335\n"+
		"31/03/2024;456;411;EVENTOS/ SINISTROS;0,335\n")

	res, canonicalPath, _ := run(t, testOptions(t), []string{path})
	assert.Equal(t, 4, res.Totals.Retained)
	assert.Equal(t, "1.009", res.Totals.RetainedAmount.String())

	data, err := os.ReadFile(canonicalPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "123;;2024;1;0.004;1T2024.csv\n")

	rows, err := files.ReadCanonical(canonicalPath)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	sum := decimal.Zero
	for _, r := range rows {
		assert.True(t, r.Amount.IsPositive(), r.Amount.String())
		sum = sum.Add(r.Amount)
	}
	assert.True(t, sum.Equal(res.Totals.RetainedAmount))

	consolidated := consolidate.Consolidate(rows)
	require.Len(t, consolidated, 2)
	assert.Equal(t, "0.004", consolidated[0].Amount.String())
	assert.Equal(t, "1.005", consolidated[1].Amount.String())
}

func TestColumnsUseTheFileSchema(t *testing.T) {
	n := New(testOptions(t), logger.Discard())
	state := newFileState(n, "1T2024.csv")
	df := files.TextFrame([][]string{
		{"DESCRICAO", "VALOR", "OUTRO_VALOR"},
		{"EVENTOS/ SINISTROS", "1,00", "2,00"},
	})

	cols := state.columns(&df, schema.Resolved{Description: "DESCRICAO", Value: "OUTRO_VALOR"})
	assert.Equal(t, "2,00", cols.rawAmount(0))
	assert.Equal(t, "2", cols.amount(0).Decimal.String())
}

func TestPathPeriodIgnoresDirectoriesAboveInputRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "2021", "Q1", "extracted")
	flat := filepath.Join(root, "balancete.csv")
	nested := filepath.Join(root, "2022", "Q3", "balancete.csv")
	content := "REG_ANS;DESCRICAO;VALOR\n10;EVENTOS/ SINISTROS;10,00\n"
	writeLatin1(t, flat, content)
	writeLatin1(t, nested, content)

	opts := testOptions(t)
	opts.InputRoot = root
	res, canonical, _ := run(t, opts, []string{flat, nested})

	require.Len(t, res.Files, 2)
	assert.Equal(t, 1, res.Files[0].Counts.UnresolvedPeriod)
	assert.Equal(t, "2022-Q3", res.Files[1].Period)
	assert.Equal(t, period.SourcePath, res.Files[1].PeriodSource)

	rows, err := files.ReadCanonical(canonical)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 2022, rows[0].Year)
	assert.Equal(t, 3, rows[0].Quarter)
}
