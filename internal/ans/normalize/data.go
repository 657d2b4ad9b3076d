package normalize

import (
	"errors"
	"fmt"
	"strings"

	"github.com/farxc/ans-expenses/internal/ans/classifier"
	"github.com/farxc/ans-expenses/internal/ans/period"
	"github.com/farxc/ans-expenses/internal/ans/schema"
	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding"
)

// AmountMode selects which cells produce a row's amount
type AmountMode string

const (
	// AmountValue reads the resolved value column
	AmountValue AmountMode = "value"
	// AmountFinalBalance prefers VL_SALDO_FINAL when the file carries it
	AmountFinalBalance AmountMode = "final_balance"
	// AmountBalanceDelta uses VL_SALDO_FINAL - VL_SALDO_INICIAL when both exist
	AmountBalanceDelta AmountMode = "balance_delta"
)

const (
	initialBalanceColumn = "VL_SALDO_INICIAL"
	finalBalanceColumn   = "VL_SALDO_FINAL"
)

var ErrUnknownAmountMode = errors.New("unknown amount mode")

func ParseAmountMode(s string) (AmountMode, error) {
	switch m := AmountMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return AmountValue, nil
	case AmountValue, AmountFinalBalance, AmountBalanceDelta:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAmountMode, s)
	}
}

// Options configures a Normalizer. A zero ChunkSize means 100000 rows and a
// Workers value below 2 processes files one at a time.
type Options struct {
	Encoding   encoding.Encoding
	ChunkSize  int
	Keywords   schema.Keywords
	Classifier classifier.Classifier
	Resolver   period.Resolver
	AmountMode AmountMode
	Workers    int
	// InputRoot limits period discovery from directory names to the part of
	// each path below it. Empty means the path is used as given.
	InputRoot string
}

// FileStatus is the outcome of normalizing one file
type FileStatus string

const (
	StatusProcessed FileStatus = "processed"
	// StatusSkippedSchema marks a file without description or value column
	StatusSkippedSchema FileStatus = "skipped_schema"
	// StatusSkippedIO marks an unreadable or corrupt file
	StatusSkippedIO FileStatus = "skipped_io"
)

// Counts tallies rows by outcome. RowsRead includes every data row seen.
type Counts struct {
	RowsRead         int
	NotExpense       int
	InvalidAmount    int
	InvalidDate      int
	UnresolvedPeriod int
	Retained         int
	RetainedAmount   decimal.Decimal
}

func (c *Counts) Add(o Counts) {
	c.RowsRead += o.RowsRead
	c.NotExpense += o.NotExpense
	c.InvalidAmount += o.InvalidAmount
	c.InvalidDate += o.InvalidDate
	c.UnresolvedPeriod += o.UnresolvedPeriod
	c.Retained += o.Retained
	c.RetainedAmount = c.RetainedAmount.Add(o.RetainedAmount)
}

// Discarded is the number of rows that did not reach the canonical dataset
func (c Counts) Discarded() int {
	return c.NotExpense + c.InvalidAmount + c.InvalidDate + c.UnresolvedPeriod
}

// FileReport describes what happened to one input file
type FileReport struct {
	Path         string
	Name         string
	Checksum     string
	Status       FileStatus
	Error        string
	Columns      schema.Resolved
	Period       string
	PeriodSource period.Source
	Counts       Counts
}

// Result aggregates the file reports of a run, in file order
type Result struct {
	Files  []FileReport
	Totals Counts
}

// Skipped counts the files that contributed no rows because they were unusable
func (r Result) Skipped() int {
	n := 0
	for _, f := range r.Files {
		if f.Status != StatusProcessed {
			n++
		}
	}
	return n
}
