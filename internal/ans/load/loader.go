// Package load publishes the datasets of a run to the SQL store and keeps the
// run history.
package load

import (
	"context"
	"fmt"
	"time"

	"github.com/farxc/ans-expenses/internal/ans/audit"
	"github.com/farxc/ans-expenses/internal/ans/types"
	"github.com/farxc/ans-expenses/internal/logger"
	"github.com/farxc/ans-expenses/internal/store"
	"github.com/google/uuid"
)

// Payload is what a run hands to the store
type Payload struct {
	Operators    []types.Operator
	Consolidated []types.ConsolidatedExpense
	Aggregated   []types.AggregatedExpense
}

// StartRun records a new in-progress run and returns it
func StartRun(ctx context.Context, storage *store.Storage, appLogger *logger.Logger) (*store.PipelineRun, error) {
	const component = "RunHistory"

	run := &store.PipelineRun{
		ID:        uuid.NewString(),
		Status:    store.StatusInProgress,
		StartedAt: time.Now().UTC(),
	}
	if err := storage.PipelineRuns.Insert(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to record run: %w", err)
	}
	appLogger.Info(component, "Run started: id=%s", run.ID)
	return run, nil
}

// FinishRun stores the outcome of run. report may be nil when the run failed early.
func FinishRun(ctx context.Context, storage *store.Storage, run *store.PipelineRun, report *audit.Report, runErr error, appLogger *logger.Logger) error {
	const component = "RunHistory"

	run.Status = store.StatusSuccess
	if runErr != nil {
		run.Status = store.StatusFailure
		run.ErrorMessage = runErr.Error()
	}
	if report != nil {
		run.RowsRead = report.RowsRead
		run.RowsRetained = report.RowsRetained
		run.RowsConsolidated = report.RowsConsolidated
		run.RowsQuarantined = report.RowsQuarantinedInvalidTaxID + report.RowsUnmatched
	}
	if err := storage.PipelineRuns.Finish(ctx, run); err != nil {
		return fmt.Errorf("failed to update run %s: %w", run.ID, err)
	}
	appLogger.Info(component, "Run finished: id=%s status=%s", run.ID, run.Status)
	return nil
}

// LoadPayload writes operators, consolidated and aggregated rows. Each table is
// written independently: a failure on one is logged and the others still load.
func LoadPayload(ctx context.Context, payload Payload, storage *store.Storage, appLogger *logger.Logger) error {
	const component = "Loader"
	appLogger.Info(component, "Starting data load: operators=%d consolidated=%d aggregated=%d",
		len(payload.Operators), len(payload.Consolidated), len(payload.Aggregated))

	var failed int
	if len(payload.Operators) > 0 {
		n, err := storage.Operators.Upsert(ctx, payload.Operators)
		if err != nil {
			appLogger.Error(component, "Failed to upsert operators: error=%v", err)
			failed++
		} else {
			appLogger.Info(component, "Operators loaded: rows=%d", n)
		}
	}

	n, err := storage.Expenses.ReplaceConsolidated(ctx, payload.Consolidated)
	if err != nil {
		appLogger.Error(component, "Failed to load consolidated expenses: error=%v", err)
		failed++
	} else {
		appLogger.Info(component, "Consolidated expenses loaded: rows=%d", n)
	}

	if payload.Aggregated != nil {
		n, err := storage.Expenses.ReplaceAggregated(ctx, payload.Aggregated)
		if err != nil {
			appLogger.Error(component, "Failed to load aggregated expenses: error=%v", err)
			failed++
		} else {
			appLogger.Info(component, "Aggregated expenses loaded: rows=%d", n)
		}
	}

	if failed > 0 {
		return fmt.Errorf("data load finished with %d failed table(s)", failed)
	}
	appLogger.Info(component, "Data load completed")
	return nil
}
