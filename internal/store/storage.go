package store

import (
	"context"
	"errors"

	"github.com/farxc/ans-expenses/internal/ans/types"
	"github.com/jmoiron/sqlx"
)

var ErrNotFound = errors.New("record not found")

type Storage struct {
	Operators interface {
		Upsert(ctx context.Context, operators []types.Operator) (int, error)
		List(ctx context.Context, filter OperatorFilter) ([]types.Operator, int, error)
		GetByTaxID(ctx context.Context, taxID string) (types.Operator, error)
		Regions(ctx context.Context) ([]string, error)
	}

	Expenses interface {
		ReplaceConsolidated(ctx context.Context, rows []types.ConsolidatedExpense) (int, error)
		ReplaceAggregated(ctx context.Context, rows []types.AggregatedExpense) (int, error)
		ByRegistryID(ctx context.Context, registryID string) ([]ConsolidatedExpense, error)
		Statistics(ctx context.Context, top int) (Statistics, error)
	}

	PipelineRuns interface {
		Insert(ctx context.Context, run *PipelineRun) error
		Finish(ctx context.Context, run *PipelineRun) error
		GetLatest(ctx context.Context, limit int) ([]PipelineRun, error)
	}
}

func NewStorage(db *sqlx.DB) *Storage {
	return &Storage{
		Operators:    &OperatorStore{db: db},
		Expenses:     &ExpenseStore{db: db},
		PipelineRuns: &PipelineRunStore{db: db},
	}
}
