package store

import (
	"context"
	"testing"
	"time"

	"github.com/farxc/ans-expenses/internal/ans/types"
	"github.com/farxc/ans-expenses/internal/db"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	conn, err := db.New("sqlite", ":memory:", 1, 1, "1h")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, Migrate(context.Background(), conn))
	return conn
}

func sampleOperators() []types.Operator {
	return []types.Operator{
		{RegistryID: "123", TaxID: "11222333000181", LegalName: "ALFA SAUDE S.A.", TradeName: "ALFA", Modality: "Medicina de Grupo", Region: "SP"},
		{RegistryID: "456", TaxID: "11444777000161", LegalName: "BETA COOP", Modality: "Cooperativa Medica", Region: "PE"},
		{RegistryID: "789", TaxID: "33000167000101", LegalName: "GAMA ODONTO", Region: "SP"},
		{RegistryID: "", TaxID: "1"},
	}
}

func TestOperatorUpsertAndList(t *testing.T) {
	ctx := context.Background()
	s := NewStorage(newTestDB(t))

	n, err := s.Operators.Upsert(ctx, sampleOperators())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	updated := sampleOperators()[:1]
	updated[0].LegalName = "ALFA SAUDE LTDA"
	_, err = s.Operators.Upsert(ctx, updated)
	require.NoError(t, err)

	all, total, err := s.Operators.List(ctx, OperatorFilter{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, all, 2)
	assert.Equal(t, "ALFA SAUDE LTDA", all[0].LegalName)
	assert.Equal(t, "BETA COOP", all[1].LegalName)

	page2, _, err := s.Operators.List(ctx, OperatorFilter{Page: 2, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page2, 1)
	assert.Equal(t, "GAMA ODONTO", page2[0].LegalName)

	byName, total, err := s.Operators.List(ctx, OperatorFilter{Search: "coop"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "456", byName[0].RegistryID)

	byTaxID, _, err := s.Operators.List(ctx, OperatorFilter{Search: "11.222.333"})
	require.NoError(t, err)
	require.Len(t, byTaxID, 1)
	assert.Equal(t, "123", byTaxID[0].RegistryID)

	sp, total, err := s.Operators.List(ctx, OperatorFilter{Region: "sp"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, sp, 2)

	regions, err := s.Operators.Regions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"PE", "SP"}, regions)
}

func TestGetByTaxID(t *testing.T) {
	ctx := context.Background()
	s := NewStorage(newTestDB(t))
	_, err := s.Operators.Upsert(ctx, sampleOperators())
	require.NoError(t, err)

	op, err := s.Operators.GetByTaxID(ctx, "11.444.777/0001-61")
	require.NoError(t, err)
	assert.Equal(t, "BETA COOP", op.LegalName)

	_, err = s.Operators.GetByTaxID(ctx, "00000000000000")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExpensesAndStatistics(t *testing.T) {
	ctx := context.Background()
	s := NewStorage(newTestDB(t))

	consolidated := []types.ConsolidatedExpense{
		{EntityID: "123", Year: 2024, Quarter: 2, Amount: decimal.RequireFromString("500")},
		{EntityID: "123", Year: 2024, Quarter: 1, Amount: decimal.RequireFromString("1000")},
		{EntityID: "456", Year: 2024, Quarter: 1, Amount: decimal.RequireFromString("300")},
	}
	n, err := s.Expenses.ReplaceConsolidated(ctx, consolidated)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// a second load replaces instead of accumulating
	_, err = s.Expenses.ReplaceConsolidated(ctx, consolidated)
	require.NoError(t, err)

	rows, err := s.Expenses.ByRegistryID(ctx, "123")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 1, rows[0].Quarter)
	assert.Equal(t, "1000.00", rows[0].Amount.StringFixed(2))

	sd := 353.55
	_, err = s.Expenses.ReplaceAggregated(ctx, []types.AggregatedExpense{
		{EntityName: "ALFA SAUDE S.A.", Region: "SP", Total: decimal.RequireFromString("1500"), Mean: 750, StdDev: &sd, Count: 2},
		{EntityName: "BETA COOP", Region: "PE", Total: decimal.RequireFromString("300"), Mean: 300, Count: 1},
		{EntityName: "GAMA ODONTO", Region: "SP", Total: decimal.RequireFromString("100"), Mean: 100, Count: 1},
	})
	require.NoError(t, err)

	stats, err := s.Expenses.Statistics(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "1800.00", stats.Total.StringFixed(2))
	assert.Equal(t, "600.00", stats.Mean.StringFixed(2))
	require.Len(t, stats.Top, 2)
	assert.Equal(t, "ALFA SAUDE S.A.", stats.Top[0].LegalName)
	assert.True(t, stats.Top[0].StdDev.Valid)
	assert.False(t, stats.Top[1].StdDev.Valid)
	require.Len(t, stats.ByRegion, 2)
	assert.Equal(t, "SP", stats.ByRegion[0].Region)
	assert.Equal(t, "1600.00", stats.ByRegion[0].Total.StringFixed(2))
	assert.Equal(t, 2, stats.ByRegion[0].Operators)
}

func TestStatisticsOnEmptyTables(t *testing.T) {
	s := NewStorage(newTestDB(t))
	stats, err := s.Expenses.Statistics(context.Background(), 5)
	require.NoError(t, err)
	assert.True(t, stats.Total.IsZero())
	assert.Empty(t, stats.Top)
}

func TestPipelineRuns(t *testing.T) {
	ctx := context.Background()
	s := NewStorage(newTestDB(t))

	older := &PipelineRun{ID: uuid.NewString(), Status: StatusInProgress, StartedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	newer := &PipelineRun{ID: uuid.NewString(), Status: StatusInProgress, StartedAt: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, s.PipelineRuns.Insert(ctx, older))
	require.NoError(t, s.PipelineRuns.Insert(ctx, newer))

	newer.Status = StatusSuccess
	newer.RowsRead = 16
	newer.RowsRetained = 14
	require.NoError(t, s.PipelineRuns.Finish(ctx, newer))
	assert.True(t, newer.FinishedAt.Valid)

	runs, err := s.PipelineRuns.GetLatest(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, newer.ID, runs[0].ID)
	assert.Equal(t, StatusSuccess, runs[0].Status)
	assert.Equal(t, 14, runs[0].RowsRetained)
	assert.Equal(t, StatusInProgress, runs[1].Status)

	missing := &PipelineRun{ID: uuid.NewString(), Status: StatusFailure}
	assert.ErrorIs(t, s.PipelineRuns.Finish(ctx, missing), ErrNotFound)
}
