// Package audit holds the per-run report of what every stage kept and discarded.
// The report carries no timestamps or run ids so identical inputs produce
// byte-identical files.
package audit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/farxc/ans-expenses/internal/ans/utils"
	"github.com/shopspring/decimal"
)

// Settings echoes the options that shape the output
type Settings struct {
	Policy     string `json:"classification_policy"`
	AmountMode string `json:"amount_mode"`
	Encoding   string `json:"encoding"`
	ChunkSize  int    `json:"chunk_size"`
	Workers    int    `json:"workers"`
}

// Stage summarizes one filtering or grouping step
type Stage struct {
	Name      string         `json:"name"`
	RowsIn    int            `json:"rows_in"`
	RowsOut   int            `json:"rows_out"`
	Discarded map[string]int `json:"discarded,omitempty"`
}

// File summarizes one input file
type File struct {
	Path             string `json:"path"`
	Checksum         string `json:"checksum_xxh64,omitempty"`
	Status           string `json:"status"`
	Error            string `json:"error,omitempty"`
	Period           string `json:"period,omitempty"`
	PeriodSource     string `json:"period_source,omitempty"`
	RowsRead         int    `json:"rows_read"`
	RowsRetained     int    `json:"rows_retained"`
	NotExpense       int    `json:"rows_discarded_not_expense"`
	InvalidAmount    int    `json:"rows_discarded_invalid_amount"`
	InvalidDate      int    `json:"rows_discarded_invalid_date"`
	UnresolvedPeriod int    `json:"rows_discarded_unresolved_period"`
}

type Report struct {
	RowsRead                      int      `json:"rows_read"`
	RowsDiscardedInvalidDate      int      `json:"rows_discarded_invalid_date"`
	RowsDiscardedInvalidAmount    int      `json:"rows_discarded_invalid_amount"`
	RowsDiscardedNotExpense       int      `json:"rows_discarded_not_expense"`
	RowsDiscardedUnresolvedPeriod int      `json:"rows_discarded_unresolved_period"`
	RowsRetained                  int      `json:"rows_retained"`
	RowsConsolidated              int      `json:"rows_consolidated"`
	UniqueEntities                int      `json:"unique_entities"`
	YearsCovered                  []int    `json:"years_covered"`
	QuartersCovered               []string `json:"quarters_covered"`
	TotalAmount                   string   `json:"total_amount"`
	MeanAmount                    string   `json:"mean_amount"`
	ZipCreated                    bool     `json:"zip_created"`
	RowsUnmatched                 int      `json:"rows_unmatched"`
	RowsQuarantinedInvalidTaxID   int      `json:"rows_quarantined_invalid_tax_id"`
	RowsAggregated                int      `json:"rows_aggregated"`
	FilesSkipped                  int      `json:"files_skipped"`
	Settings                      Settings `json:"settings"`
	Stages                        []Stage  `json:"stages"`
	Files                         []File   `json:"files"`
}

// New returns an empty report with non-nil slices, so they encode as []
func New(settings Settings) *Report {
	return &Report{
		YearsCovered:    []int{},
		QuartersCovered: []string{},
		TotalAmount:     Amount(decimal.Zero),
		MeanAmount:      Amount(decimal.Zero),
		Settings:        settings,
		Stages:          []Stage{},
		Files:           []File{},
	}
}

// Amount renders a decimal with two places
func Amount(d decimal.Decimal) string {
	return utils.FormatAmount(d)
}

// AddStage appends a stage section, dropping zero discard counters
func (r *Report) AddStage(name string, in, out int, discarded map[string]int) {
	var kept map[string]int
	for reason, n := range discarded {
		if n == 0 {
			continue
		}
		if kept == nil {
			kept = make(map[string]int)
		}
		kept[reason] = n
	}
	r.Stages = append(r.Stages, Stage{Name: name, RowsIn: in, RowsOut: out, Discarded: kept})
}

// Encode renders the report as indented JSON with sorted slices
func (r *Report) Encode() ([]byte, error) {
	sort.Ints(r.YearsCovered)
	sort.Strings(r.QuartersCovered)
	sort.SliceStable(r.Files, func(i, j int) bool { return r.Files[i].Path < r.Files[j].Path })

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r); err != nil {
		return nil, fmt.Errorf("failed to encode audit report: %w", err)
	}
	return buf.Bytes(), nil
}

// Write encodes the report to path, replacing any previous file
func (r *Report) Write(path string) error {
	data, err := r.Encode()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Read loads a report written by Write
func Read(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode audit report %s: %w", path, err)
	}
	return &r, nil
}
