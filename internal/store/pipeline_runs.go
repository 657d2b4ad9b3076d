package store

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

type PipelineRunStore struct {
	db *sqlx.DB
}

var (
	StatusInProgress = "in_progress"
	StatusSuccess    = "success"
	StatusFailure    = "failure"
)

func (ps *PipelineRunStore) Insert(ctx context.Context, run *PipelineRun) error {
	query := `INSERT INTO pipeline_runs (
		id,
		status,
		started_at
	) VALUES (
		:id,
		:status,
		:started_at
	)`

	_, err := ps.db.NamedExecContext(ctx, query, run)
	return err
}

// Finish records the final status and counters of a run
func (ps *PipelineRunStore) Finish(ctx context.Context, run *PipelineRun) error {
	if !run.FinishedAt.Valid {
		run.FinishedAt.Time = time.Now().UTC()
		run.FinishedAt.Valid = true
	}
	query := `UPDATE pipeline_runs SET
		status = :status,
		finished_at = :finished_at,
		rows_read = :rows_read,
		rows_retained = :rows_retained,
		rows_consolidated = :rows_consolidated,
		rows_quarantined = :rows_quarantined,
		error_message = :error_message
	WHERE id = :id`

	res, err := ps.db.NamedExecContext(ctx, query, run)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (ps *PipelineRunStore) GetLatest(ctx context.Context, limit int) ([]PipelineRun, error) {
	query := ps.db.Rebind(`SELECT id, status, started_at, finished_at, rows_read, rows_retained,
		rows_consolidated, rows_quarantined, error_message
		FROM pipeline_runs
		ORDER BY started_at DESC
		LIMIT ?`)

	var runs []PipelineRun
	if err := ps.db.SelectContext(ctx, &runs, query, limit); err != nil {
		return nil, err
	}
	return runs, nil
}
