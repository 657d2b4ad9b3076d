package store

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

// ConsolidatedExpense represents the 'consolidated_expenses' table.
type ConsolidatedExpense struct {
	RegistryID string          `db:"registry_id" json:"registro_ans"`
	EntityName string          `db:"entity_name" json:"nome"`
	Year       int             `db:"year" json:"ano"`
	Quarter    int             `db:"quarter" json:"trimestre"`
	Amount     decimal.Decimal `db:"summed_amount" json:"valor_despesas"`
}

// AggregatedExpense represents the 'aggregated_expenses' table.
type AggregatedExpense struct {
	LegalName string          `db:"legal_name" json:"razao_social"`
	Region    string          `db:"region" json:"uf"`
	Total     decimal.Decimal `db:"total" json:"total_despesas"`
	Mean      float64         `db:"mean" json:"media_trimestral"`
	StdDev    sql.NullFloat64 `db:"std_dev" json:"-"`
	Count     int             `db:"count" json:"qtd_trimestres"`
}

// RegionTotal is the expense distribution of one UF
type RegionTotal struct {
	Region    string          `db:"region" json:"uf"`
	Total     decimal.Decimal `db:"total" json:"total_despesas"`
	Operators int             `db:"operators" json:"operadoras"`
}

type Statistics struct {
	Total    decimal.Decimal     `json:"total_despesas"`
	Mean     decimal.Decimal     `json:"media_despesas"`
	Top      []AggregatedExpense `json:"top_operadoras"`
	ByRegion []RegionTotal       `json:"despesas_por_uf"`
}

// PipelineRun represents the 'pipeline_runs' table.
type PipelineRun struct {
	ID               string       `db:"id" json:"id"`
	Status           string       `db:"status" json:"status"`
	StartedAt        time.Time    `db:"started_at" json:"started_at"`
	FinishedAt       sql.NullTime `db:"finished_at" json:"-"`
	RowsRead         int          `db:"rows_read" json:"rows_read"`
	RowsRetained     int          `db:"rows_retained" json:"rows_retained"`
	RowsConsolidated int          `db:"rows_consolidated" json:"rows_consolidated"`
	RowsQuarantined  int          `db:"rows_quarantined" json:"rows_quarantined"`
	ErrorMessage     string       `db:"error_message" json:"error_message,omitempty"`
}

type OperatorFilter struct {
	Page   int
	Limit  int
	Search string
	Region string
}
