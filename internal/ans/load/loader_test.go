package load

import (
	"context"
	"errors"
	"testing"

	"github.com/farxc/ans-expenses/internal/ans/audit"
	"github.com/farxc/ans-expenses/internal/ans/types"
	"github.com/farxc/ans-expenses/internal/db"
	"github.com/farxc/ans-expenses/internal/logger"
	"github.com/farxc/ans-expenses/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStorage(t *testing.T) *store.Storage {
	t.Helper()
	conn, err := db.New("sqlite", ":memory:", 1, 1, "1h")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, store.Migrate(context.Background(), conn))
	return store.NewStorage(conn)
}

func TestLoadPayload(t *testing.T) {
	ctx := context.Background()
	storage := newStorage(t)

	err := LoadPayload(ctx, Payload{
		Operators: []types.Operator{{RegistryID: "123", TaxID: "11222333000181", LegalName: "ALFA", Region: "SP"}},
		Consolidated: []types.ConsolidatedExpense{
			{EntityID: "123", Year: 2024, Quarter: 1, Amount: decimal.RequireFromString("1000")},
		},
		Aggregated: []types.AggregatedExpense{
			{EntityName: "ALFA", Region: "SP", Total: decimal.RequireFromString("1000"), Mean: 1000, Count: 1},
		},
	}, storage, logger.Discard())
	require.NoError(t, err)

	rows, err := storage.Expenses.ByRegistryID(ctx, "123")
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	stats, err := storage.Expenses.Statistics(ctx, 5)
	require.NoError(t, err)
	require.Len(t, stats.Top, 1)
	assert.Equal(t, "ALFA", stats.Top[0].LegalName)
}

func TestRunHistory(t *testing.T) {
	ctx := context.Background()
	storage := newStorage(t)

	ok, err := StartRun(ctx, storage, logger.Discard())
	require.NoError(t, err)
	report := audit.New(audit.Settings{})
	report.RowsRead = 16
	report.RowsRetained = 14
	require.NoError(t, FinishRun(ctx, storage, ok, report, nil, logger.Discard()))

	failed, err := StartRun(ctx, storage, logger.Discard())
	require.NoError(t, err)
	require.NoError(t, FinishRun(ctx, storage, failed, nil, errors.New("registry missing"), logger.Discard()))

	runs, err := storage.PipelineRuns.GetLatest(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	byID := map[string]store.PipelineRun{}
	for _, r := range runs {
		byID[r.ID] = r
	}
	assert.Equal(t, store.StatusSuccess, byID[ok.ID].Status)
	assert.Equal(t, 16, byID[ok.ID].RowsRead)
	assert.Equal(t, store.StatusFailure, byID[failed.ID].Status)
	assert.Equal(t, "registry missing", byID[failed.ID].ErrorMessage)
}
