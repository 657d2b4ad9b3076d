// Package ans runs the quarterly expense pipeline: normalization, consolidation,
// registry enrichment, tax id validation and aggregation, with an audit report.
package ans

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/farxc/ans-expenses/internal/ans/aggregate"
	"github.com/farxc/ans-expenses/internal/ans/audit"
	"github.com/farxc/ans-expenses/internal/ans/classifier"
	"github.com/farxc/ans-expenses/internal/ans/consolidate"
	"github.com/farxc/ans-expenses/internal/ans/enrich"
	"github.com/farxc/ans-expenses/internal/ans/files"
	"github.com/farxc/ans-expenses/internal/ans/normalize"
	"github.com/farxc/ans-expenses/internal/ans/period"
	"github.com/farxc/ans-expenses/internal/ans/registry"
	"github.com/farxc/ans-expenses/internal/ans/types"
	"github.com/farxc/ans-expenses/internal/ans/validate"
	"github.com/farxc/ans-expenses/internal/config"
	"github.com/farxc/ans-expenses/internal/logger"
)

// ErrMissingInput aborts a run when a mandatory stage has nothing to read
var ErrMissingInput = errors.New("missing required input")

// Result carries the datasets of a run for callers that persist them
type Result struct {
	Report       *audit.Report
	Consolidated []types.ConsolidatedExpense
	Operators    []types.Operator
	Validated    []types.ValidatedExpense
	Quarantined  []types.QuarantinedExpense
	Aggregated   []types.AggregatedExpense
}

type Pipeline struct {
	cfg        config.Config
	appLogger  *logger.Logger
	normalizer *normalize.Normalizer
	// settings are the effective options, echoed in the audit report
	settings audit.Settings
}

// NewPipeline validates cfg and prepares the stages
func NewPipeline(cfg config.Config, appLogger *logger.Logger) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c, err := classifier.New(classifier.Policy(cfg.Policy))
	if err != nil {
		return nil, err
	}
	mode, err := normalize.ParseAmountMode(cfg.AmountMode)
	if err != nil {
		return nil, err
	}
	enc, err := files.LookupEncoding(cfg.Encoding)
	if err != nil {
		return nil, err
	}

	resolver := period.NewResolver(time.Now())
	if cfg.MaxYear > 0 {
		resolver.MaxYear = cfg.MaxYear
	}

	n := normalize.New(normalize.Options{
		Encoding:   enc,
		ChunkSize:  cfg.ChunkSize,
		Keywords:   cfg.Keywords,
		Classifier: c,
		Resolver:   resolver,
		AmountMode: mode,
		Workers:    cfg.Workers,
		InputRoot:  cfg.InputDir,
	}, appLogger)

	settings := audit.Settings{
		Policy:     string(c.Policy()),
		AmountMode: string(mode),
		Encoding:   files.EncodingName(cfg.Encoding),
		ChunkSize:  n.ChunkSize(),
		Workers:    cfg.Workers,
	}
	return &Pipeline{cfg: cfg, appLogger: appLogger, normalizer: n, settings: settings}, nil
}

func (p *Pipeline) out(name string) string {
	return filepath.Join(p.cfg.OutputDir, name)
}

// Run executes every stage and writes the audit report last. Outputs of a
// previous run are truncated as each stage starts.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	const component = "Pipeline"

	if err := os.MkdirAll(p.cfg.OutputDir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	p.clearOutputs()

	report := audit.New(p.settings)
	result := &Result{Report: report}

	p.appLogger.Info(component, "Starting run: input=%s output=%s policy=%s", p.cfg.InputDir, p.cfg.OutputDir, p.settings.Policy)

	if err := p.normalize(ctx, report); err != nil {
		return nil, err
	}

	consolidated, err := p.consolidate(report)
	if err != nil {
		return nil, err
	}
	result.Consolidated = consolidated

	if p.cfg.Enrich {
		if err := p.enrichAndValidate(result); err != nil {
			return nil, err
		}
	}

	if err := report.Write(p.out(files.AuditFile)); err != nil {
		return nil, fmt.Errorf("failed to write audit report: %w", err)
	}

	p.appLogger.Info(component, "Run finished: rowsRead=%d retained=%d consolidated=%d quarantined=%d audit=%s",
		report.RowsRead, report.RowsRetained, report.RowsConsolidated, report.RowsQuarantinedInvalidTaxID, p.out(files.AuditFile))
	return result, nil
}

// clearOutputs removes every artifact of a previous run so that a disabled
// stage cannot leave stale files next to fresh ones
func (p *Pipeline) clearOutputs() {
	const component = "Pipeline"
	for _, name := range []string{
		files.CanonicalFile, files.RejectsFile, files.ConsolidatedFile, files.ConsolidatedZip,
		files.EnrichedFile, files.ValidatedFile, files.QuarantineFile, files.AggregatedFile, files.AuditFile,
	} {
		if err := os.Remove(p.out(name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			p.appLogger.Warn(component, "Failed to remove previous output: file=%s error=%v", name, err)
		}
	}
}

func (p *Pipeline) normalize(ctx context.Context, report *audit.Report) error {
	inputs, err := files.ListInputs(p.cfg.InputDir)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: input directory %s: %v", ErrMissingInput, p.cfg.InputDir, err)
	}
	if err != nil {
		return fmt.Errorf("failed to list inputs: %w", err)
	}

	res, err := p.normalizer.Run(ctx, inputs, p.out(files.CanonicalFile), p.out(files.RejectsFile))
	if err != nil {
		return fmt.Errorf("normalization failed: %w", err)
	}

	t := res.Totals
	report.RowsRead = t.RowsRead
	report.RowsDiscardedNotExpense = t.NotExpense
	report.RowsDiscardedInvalidAmount = t.InvalidAmount
	report.RowsDiscardedInvalidDate = t.InvalidDate
	report.RowsDiscardedUnresolvedPeriod = t.UnresolvedPeriod
	report.RowsRetained = t.Retained
	report.FilesSkipped = res.Skipped()
	report.AddStage("normalize", t.RowsRead, t.Retained, map[string]int{
		string(types.RejectNotExpense):       t.NotExpense,
		string(types.RejectInvalidAmount):    t.InvalidAmount,
		string(types.RejectInvalidDate):      t.InvalidDate,
		string(types.RejectUnresolvedPeriod): t.UnresolvedPeriod,
	})

	for _, f := range res.Files {
		report.Files = append(report.Files, audit.File{
			Path:             p.relative(f.Path),
			Checksum:         f.Checksum,
			Status:           string(f.Status),
			Error:            f.Error,
			Period:           periodLabel(f),
			PeriodSource:     string(f.PeriodSource),
			RowsRead:         f.Counts.RowsRead,
			RowsRetained:     f.Counts.Retained,
			NotExpense:       f.Counts.NotExpense,
			InvalidAmount:    f.Counts.InvalidAmount,
			InvalidDate:      f.Counts.InvalidDate,
			UnresolvedPeriod: f.Counts.UnresolvedPeriod,
		})
	}
	return nil
}

func periodLabel(f normalize.FileReport) string {
	if f.Status != normalize.StatusProcessed {
		return ""
	}
	return f.Period
}

// relative keeps absolute temp paths out of the report
func (p *Pipeline) relative(path string) string {
	rel, err := filepath.Rel(p.cfg.InputDir, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func (p *Pipeline) consolidate(report *audit.Report) ([]types.ConsolidatedExpense, error) {
	const component = "Consolidator"

	canonical, err := files.ReadCanonical(p.out(files.CanonicalFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: canonical dataset %s", ErrMissingInput, p.out(files.CanonicalFile))
	}
	if err != nil {
		return nil, err
	}

	rows := consolidate.Consolidate(canonical)
	if err := files.WriteAll(p.out(files.ConsolidatedFile), files.ConsolidatedHeader, rows, files.ConsolidatedRecord); err != nil {
		return nil, err
	}

	zipPath := p.out(files.ConsolidatedZip)
	if err := files.ZipFile(p.out(files.ConsolidatedFile), zipPath); err != nil {
		p.appLogger.Error(component, "Failed to zip consolidated dataset: path=%s error=%v", zipPath, err)
		os.Remove(zipPath)
	} else {
		report.ZipCreated = true
	}

	summary := Summarize(rows, p.appLogger)
	report.RowsConsolidated = summary.Rows
	report.UniqueEntities = summary.UniqueEntities
	report.YearsCovered = append(report.YearsCovered, summary.Years...)
	report.QuartersCovered = append(report.QuartersCovered, summary.Quarters...)
	report.TotalAmount = audit.Amount(summary.Total)
	report.MeanAmount = audit.Amount(summary.Mean)
	report.AddStage("consolidate", len(canonical), len(rows), nil)
	return rows, nil
}

func (p *Pipeline) enrichAndValidate(result *Result) error {
	const component = "Enrichment"
	report := result.Report

	enc, err := files.LookupEncoding(p.cfg.RegistryEncoding)
	if err != nil {
		return err
	}
	operators, err := registry.Load(p.cfg.RegistryPath, enc, p.appLogger)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: registry %s", ErrMissingInput, p.cfg.RegistryPath)
	}
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	result.Operators = operators

	enriched, stats := enrich.Join(result.Consolidated, operators)
	if err := files.WriteAll(p.out(files.EnrichedFile), files.EnrichedHeader, enriched, files.EnrichedRecord); err != nil {
		return err
	}
	report.RowsUnmatched = stats.Unmatched
	report.AddStage("enrich", len(result.Consolidated), len(enriched), nil)
	p.appLogger.Info(component, "Registry join finished: matched=%d unmatched=%d duplicateRegistryIds=%d",
		stats.Matched, stats.Unmatched, stats.DuplicateRegistryIDs)

	valid, quarantined := validate.Validate(enriched)
	if err := files.WriteAll(p.out(files.ValidatedFile), files.ValidatedHeader, valid, files.ValidatedRecord); err != nil {
		return err
	}
	if err := files.WriteAll(p.out(files.QuarantineFile), files.QuarantineHeader, quarantined, files.QuarantineRecord); err != nil {
		return err
	}
	result.Validated = valid
	result.Quarantined = quarantined
	byReason := map[string]int{}
	for _, q := range quarantined {
		byReason[string(q.Reason)]++
	}
	report.RowsQuarantinedInvalidTaxID = byReason[string(types.RejectInvalidTaxID)]
	report.AddStage("validate", len(enriched), len(valid), byReason)
	if len(quarantined) > 0 {
		p.appLogger.Warn(component, "Rows quarantined: invalidTaxId=%d unmatched=%d file=%s",
			byReason[string(types.RejectInvalidTaxID)], byReason[string(types.RejectUnmatched)], p.out(files.QuarantineFile))
	}

	aggregated := aggregate.Aggregate(valid)
	if err := files.WriteAll(p.out(files.AggregatedFile), files.AggregatedHeader, aggregated, files.AggregatedRecord); err != nil {
		return err
	}
	result.Aggregated = aggregated
	invalidAmounts := 0
	for _, v := range valid {
		if !v.AmountValid {
			invalidAmounts++
		}
	}
	report.RowsAggregated = len(valid) - invalidAmounts
	report.AddStage("aggregate", len(valid), len(aggregated), map[string]int{
		string(types.RejectInvalidAmount): invalidAmounts,
	})
	return nil
}

// Summarize logs and returns the coverage of a consolidated dataset
func Summarize(rows []types.ConsolidatedExpense, appLogger *logger.Logger) consolidate.Summary {
	const component = "Summary"

	s := consolidate.Summarize(rows)
	appLogger.Info(component, "Consolidated dataset: records=%d uniqueEntities=%d years=%v quarters=%v total=%s mean=%s",
		s.Rows, s.UniqueEntities, s.Years, s.Quarters, audit.Amount(s.Total), audit.Amount(s.Mean))
	return s
}
