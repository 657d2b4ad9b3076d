// Package normalize turns raw quarterly extracts into the canonical expense dataset.
package normalize

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/farxc/ans-expenses/internal/ans/files"
	"github.com/farxc/ans-expenses/internal/ans/period"
	"github.com/farxc/ans-expenses/internal/ans/schema"
	"github.com/farxc/ans-expenses/internal/ans/types"
	"github.com/farxc/ans-expenses/internal/ans/utils"
	"github.com/farxc/ans-expenses/internal/logger"
	"github.com/go-gota/gota/dataframe"
	"github.com/shopspring/decimal"
)

type Normalizer struct {
	opts      Options
	appLogger *logger.Logger
}

func New(opts Options, appLogger *logger.Logger) *Normalizer {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 100000
	}
	if opts.Keywords == nil {
		opts.Keywords = schema.DefaultKeywords()
	}
	if opts.AmountMode == "" {
		opts.AmountMode = AmountValue
	}
	if opts.Resolver.MaxYear == 0 {
		opts.Resolver = period.NewResolver(time.Now())
	}
	return &Normalizer{opts: opts, appLogger: appLogger}
}

// ChunkSize is the effective number of rows per chunk
func (n *Normalizer) ChunkSize() int {
	return n.opts.ChunkSize
}

type fileJob struct {
	index int
	path  string
}

type fileOutput struct {
	report    FileReport
	canonical string
	rejects   string
}

// Run normalizes inputs into canonicalPath and rejectsPath. Both outputs are
// truncated first. Each file is written to its own part files which are
// appended to the outputs in input order once every file is done, so the
// result does not depend on Workers.
func (n *Normalizer) Run(ctx context.Context, inputs []string, canonicalPath, rejectsPath string) (Result, error) {
	const component = "Normalizer"

	canonical, err := files.CreateCSV(canonicalPath, files.CanonicalHeader)
	if err != nil {
		return Result{}, err
	}
	if err := canonical.Close(); err != nil {
		return Result{}, err
	}
	rejects, err := files.CreateCSV(rejectsPath, files.RejectsHeader)
	if err != nil {
		return Result{}, err
	}
	if err := rejects.Close(); err != nil {
		return Result{}, err
	}

	partsDir, err := os.MkdirTemp(filepath.Dir(canonicalPath), ".parts-")
	if err != nil {
		return Result{}, fmt.Errorf("failed to create parts directory: %w", err)
	}
	defer os.RemoveAll(partsDir)

	workers := n.opts.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(inputs) {
		workers = len(inputs)
	}
	n.appLogger.Info(component, "Starting normalization: files=%d workers=%d chunkSize=%d policy=%s amountMode=%s",
		len(inputs), workers, n.opts.ChunkSize, n.opts.Classifier.Policy(), n.opts.AmountMode)

	outputs := make([]fileOutput, len(inputs))
	jobs := make(chan fileJob)
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				outputs[job.index] = n.processFile(ctx, job, partsDir)
			}
		}()
	}

	for i, path := range inputs {
		if ctx.Err() != nil {
			break
		}
		jobs <- fileJob{index: i, path: path}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	var result Result
	for _, out := range outputs {
		if out.report.Status == StatusProcessed {
			if err := files.AppendFile(canonicalPath, out.canonical); err != nil {
				return Result{}, fmt.Errorf("failed to append %s: %w", out.report.Name, err)
			}
			if err := files.AppendFile(rejectsPath, out.rejects); err != nil {
				return Result{}, fmt.Errorf("failed to append rejects of %s: %w", out.report.Name, err)
			}
		}
		result.Files = append(result.Files, out.report)
		result.Totals.Add(out.report.Counts)
	}

	n.appLogger.Info(component, "Normalization finished: files=%d skipped=%d rowsRead=%d retained=%d discarded=%d",
		len(result.Files), result.Skipped(), result.Totals.RowsRead, result.Totals.Retained, result.Totals.Discarded())
	return result, nil
}

func (n *Normalizer) processFile(ctx context.Context, job fileJob, partsDir string) fileOutput {
	const component = "Normalizer"

	out := fileOutput{
		report: FileReport{
			Path: job.path,
			Name: filepath.Base(job.path),
		},
		canonical: filepath.Join(partsDir, fmt.Sprintf("%06d.canonical", job.index)),
		rejects:   filepath.Join(partsDir, fmt.Sprintf("%06d.rejects", job.index)),
	}
	report := &out.report

	fail := func(status FileStatus, err error) fileOutput {
		report.Status = status
		report.Error = err.Error()
		report.Counts = Counts{}
		return out
	}

	sum, err := files.Checksum(job.path)
	if err != nil {
		n.appLogger.Error(component, "Failed to read file: file=%s error=%v", job.path, err)
		return fail(StatusSkippedIO, err)
	}
	report.Checksum = sum

	canonical, err := files.CreateCSV(out.canonical, nil)
	if err != nil {
		return fail(StatusSkippedIO, err)
	}
	rejects, err := files.CreateCSV(out.rejects, nil)
	if err != nil {
		canonical.Close()
		return fail(StatusSkippedIO, err)
	}

	state := newFileState(n, job.path)
	err = n.eachChunk(ctx, job.path, report, func(chunk files.Chunk) error {
		return state.process(chunk, report.Columns, canonical, rejects)
	})
	cerr := canonical.Close()
	rerr := rejects.Close()
	if err == nil {
		err = errors.Join(cerr, rerr)
	}

	if errors.Is(err, errMissingColumns) {
		n.appLogger.Warn(component, "Skipping file without required columns: file=%s missing=%s", report.Name, strings.Join(report.Columns.Missing(), ","))
		return fail(StatusSkippedSchema, err)
	}
	if err != nil {
		n.appLogger.Error(component, "Skipping unreadable file: file=%s error=%v", report.Name, err)
		return fail(StatusSkippedIO, err)
	}

	report.Status = StatusProcessed
	report.Counts = state.counts
	report.Period = state.lastPeriod.String()
	report.PeriodSource = state.lastPeriod.Source

	n.appLogger.Info(component, "File processed: file=%s period=%s source=%s rowsRead=%d retained=%d notExpense=%d invalidAmount=%d invalidDate=%d unresolvedPeriod=%d",
		report.Name, report.Period, report.PeriodSource, state.counts.RowsRead, state.counts.Retained,
		state.counts.NotExpense, state.counts.InvalidAmount, state.counts.InvalidDate, state.counts.UnresolvedPeriod)
	return out
}

var errMissingColumns = errors.New("required columns absent")

// eachChunk resolves the schema from the header once and hands every chunk to fn
func (n *Normalizer) eachChunk(ctx context.Context, path string, report *FileReport, fn func(files.Chunk) error) error {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		chunk, err := files.ReadXLSX(path)
		if err != nil {
			return err
		}
		report.Columns = schema.Resolve(chunk.Frame.Names(), n.opts.Keywords)
		if !report.Columns.HasRequired() {
			return errMissingColumns
		}
		if chunk.Frame.Nrow() == 0 {
			return nil
		}
		return fn(chunk)
	}

	rc, err := files.OpenDecoded(path, n.opts.Encoding)
	if err != nil {
		return err
	}
	defer rc.Close()

	reader, err := files.NewChunkReader(rc, files.Delimiter, n.opts.ChunkSize)
	if err != nil {
		return err
	}
	report.Columns = schema.Resolve(reader.Header(), n.opts.Keywords)
	if !report.Columns.HasRequired() {
		return errMissingColumns
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		chunk, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(chunk); err != nil {
			return err
		}
	}
}

// fileState carries what one file's chunks share: resolved periods and counters
type fileState struct {
	n          *Normalizer
	path       string
	name       string
	byName     period.Period
	byPath     period.Period
	byDate     period.Period
	lastPeriod period.Period
	counts     Counts
}

func newFileState(n *Normalizer, path string) *fileState {
	return &fileState{
		n:      n,
		path:   path,
		name:   filepath.Base(path),
		byName: n.opts.Resolver.FromFileName(path),
		byPath: n.opts.Resolver.FromPath(n.relative(path)),
	}
}

// relative strips InputRoot from path so that directories above the input
// tree never contribute a year or quarter
func (n *Normalizer) relative(path string) string {
	if n.opts.InputRoot == "" {
		return path
	}
	rel, err := filepath.Rel(n.opts.InputRoot, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.Base(path)
	}
	return rel
}

type rowWriter interface {
	Write(record []string) error
}

// process filters one chunk. resolved is the schema computed from the file header.
func (s *fileState) process(chunk files.Chunk, resolved schema.Resolved, canonical, rejects rowWriter) error {
	cols := s.columns(&chunk.Frame, resolved)
	rows := chunk.Frame.Nrow()

	dates := make([]time.Time, rows)
	dateBad := make([]bool, rows)
	for i := 0; i < rows; i++ {
		raw := cell(cols.date, i)
		if raw == "" {
			continue
		}
		if d, ok := utils.ParseDate(raw); ok {
			dates[i] = d
		} else {
			dateBad[i] = true
		}
	}

	// the first valid date of the file decides the period for the rest of it
	if !s.byName.Resolved() && !s.byDate.Resolved() && cols.date != nil {
		s.byDate = s.n.opts.Resolver.FromDates(dates)
	}
	p := s.byName
	if !p.Resolved() {
		p = s.byDate
	}
	if !p.Resolved() {
		p = s.byPath
	}
	if p.Resolved() {
		s.lastPeriod = p
	}

	for i := 0; i < rows; i++ {
		s.counts.RowsRead++
		line := chunk.FirstLine + i
		entityID := utils.CanonicalID(cell(cols.identifier, i))

		if !s.n.opts.Classifier.IsExpense(cell(cols.description, i)) {
			s.counts.NotExpense++
			continue
		}

		reject := func(reason types.RejectReason) error {
			return rejects.Write(files.RejectedRecord(types.RejectedRow{
				SourceFile: s.name,
				Line:       line,
				Reason:     reason,
				EntityID:   entityID,
				RawAmount:  cols.rawAmount(i),
				RawDate:    cell(cols.date, i),
			}))
		}

		amount := cols.amount(i)
		if !amount.Valid || !amount.Decimal.IsPositive() {
			s.counts.InvalidAmount++
			if err := reject(types.RejectInvalidAmount); err != nil {
				return err
			}
			continue
		}

		if p.Source == period.SourceDate && dateBad[i] {
			s.counts.InvalidDate++
			if err := reject(types.RejectInvalidDate); err != nil {
				return err
			}
			continue
		}

		if !p.Resolved() {
			s.counts.UnresolvedPeriod++
			if err := reject(types.RejectUnresolvedPeriod); err != nil {
				return err
			}
			continue
		}

		record := types.CanonicalExpense{
			EntityID:   entityID,
			EntityName: strings.TrimSpace(cell(cols.name, i)),
			Year:       p.Year,
			Quarter:    p.Quarter,
			Amount:     amount.Decimal,
			SourceFile: s.name,
		}
		if err := canonical.Write(files.CanonicalRecord(record)); err != nil {
			return err
		}
		s.counts.Retained++
		s.counts.RetainedAmount = s.counts.RetainedAmount.Add(amount.Decimal)
	}
	return nil
}

// chunkColumns holds the cells of the resolved columns of one chunk. A nil
// slice means the column is absent.
type chunkColumns struct {
	description []string
	value       []string
	initial     []string
	date        []string
	identifier  []string
	name        []string
}

func (s *fileState) columns(df *dataframe.DataFrame, resolved schema.Resolved) chunkColumns {
	cols := chunkColumns{
		description: utils.ColumnValues(resolved.Description, df),
		value:       utils.ColumnValues(resolved.Value, df),
		date:        utils.ColumnValues(resolved.Date, df),
		identifier:  utils.ColumnValues(resolved.Identifier, df),
		name:        utils.ColumnValues(resolved.Name, df),
	}

	final := utils.ColumnValues(finalBalanceColumn, df)
	switch s.n.opts.AmountMode {
	case AmountFinalBalance:
		if final != nil {
			cols.value = final
		}
	case AmountBalanceDelta:
		initial := utils.ColumnValues(initialBalanceColumn, df)
		if final != nil && initial != nil {
			cols.value = final
			cols.initial = initial
		}
	}
	return cols
}

func (c chunkColumns) amount(i int) decimal.NullDecimal {
	value := utils.ParseAmount(cell(c.value, i))
	if c.initial == nil || !value.Valid {
		return value
	}
	initial := utils.ParseAmount(cell(c.initial, i))
	if !initial.Valid {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: value.Decimal.Sub(initial.Decimal), Valid: true}
}

func (c chunkColumns) rawAmount(i int) string {
	if c.initial != nil {
		return cell(c.initial, i) + "->" + cell(c.value, i)
	}
	return cell(c.value, i)
}

func cell(values []string, i int) string {
	if values == nil || i >= len(values) {
		return ""
	}
	return strings.TrimSpace(values[i])
}
