package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/farxc/ans-expenses/internal/ans/types"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type ExpenseStore struct {
	db *sqlx.DB
}

// ReplaceConsolidated swaps the consolidated table for rows. The dataset is
// recomputed on every run, so stale quarters are removed rather than merged.
func (es *ExpenseStore) ReplaceConsolidated(ctx context.Context, rows []types.ConsolidatedExpense) (int, error) {
	query := `INSERT INTO consolidated_expenses (
		registry_id,
		entity_name,
		year,
		quarter,
		summed_amount
	) VALUES (
		:registry_id,
		:entity_name,
		:year,
		:quarter,
		:summed_amount
	) ON CONFLICT (registry_id, year, quarter) DO UPDATE SET
		entity_name = excluded.entity_name,
		summed_amount = excluded.summed_amount`

	tx, err := es.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM consolidated_expenses"); err != nil {
		return 0, err
	}
	stmt, err := tx.PrepareNamedContext(ctx, query)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, r := range rows {
		row := ConsolidatedExpense{
			RegistryID: r.EntityID,
			EntityName: r.EntityName,
			Year:       r.Year,
			Quarter:    r.Quarter,
			Amount:     r.Amount.Round(2),
		}
		if _, err := stmt.ExecContext(ctx, row); err != nil {
			return 0, fmt.Errorf("failed to insert consolidated row %s %d-Q%d: %w", r.EntityID, r.Year, r.Quarter, err)
		}
	}
	return len(rows), tx.Commit()
}

func (es *ExpenseStore) ReplaceAggregated(ctx context.Context, rows []types.AggregatedExpense) (int, error) {
	query := `INSERT INTO aggregated_expenses (
		legal_name,
		region,
		total,
		mean,
		std_dev,
		count
	) VALUES (
		:legal_name,
		:region,
		:total,
		:mean,
		:std_dev,
		:count
	)`

	tx, err := es.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM aggregated_expenses"); err != nil {
		return 0, err
	}
	stmt, err := tx.PrepareNamedContext(ctx, query)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, r := range rows {
		row := AggregatedExpense{
			LegalName: r.EntityName,
			Region:    r.Region,
			Total:     r.Total.Round(2),
			Mean:      r.Mean,
			Count:     r.Count,
		}
		if r.StdDev != nil {
			row.StdDev = sql.NullFloat64{Float64: *r.StdDev, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, row); err != nil {
			return 0, fmt.Errorf("failed to insert aggregated row %s/%s: %w", r.EntityName, r.Region, err)
		}
	}
	return len(rows), tx.Commit()
}

// ByRegistryID lists the quarterly expenses of one operator, oldest first
func (es *ExpenseStore) ByRegistryID(ctx context.Context, registryID string) ([]ConsolidatedExpense, error) {
	query := es.db.Rebind(`SELECT registry_id, entity_name, year, quarter, summed_amount
		FROM consolidated_expenses
		WHERE registry_id = ?
		ORDER BY year, quarter`)

	var rows []ConsolidatedExpense
	if err := es.db.SelectContext(ctx, &rows, query, registryID); err != nil {
		return nil, err
	}
	return rows, nil
}

// Statistics reports the overall total and mean of consolidated expenses, the
// top operators by aggregated total and the distribution per UF.
func (es *ExpenseStore) Statistics(ctx context.Context, top int) (Statistics, error) {
	var stats Statistics

	var totals struct {
		Total decimal.NullDecimal `db:"total"`
		Mean  decimal.NullDecimal `db:"mean"`
	}
	if err := es.db.GetContext(ctx, &totals, `SELECT SUM(summed_amount) AS total, AVG(summed_amount) AS mean FROM consolidated_expenses`); err != nil {
		return stats, err
	}
	stats.Total = totals.Total.Decimal.Round(2)
	stats.Mean = totals.Mean.Decimal.Round(2)

	query := es.db.Rebind(`SELECT legal_name, region, total, mean, std_dev, count
		FROM aggregated_expenses
		ORDER BY total DESC, legal_name, region
		LIMIT ?`)
	if err := es.db.SelectContext(ctx, &stats.Top, query, top); err != nil {
		return stats, err
	}

	if err := es.db.SelectContext(ctx, &stats.ByRegion, `SELECT region, SUM(total) AS total, COUNT(*) AS operators
		FROM aggregated_expenses
		GROUP BY region
		ORDER BY total DESC, region`); err != nil {
		return stats, err
	}
	return stats, nil
}
