package files

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/farxc/ans-expenses/internal/ans/types"
	"github.com/farxc/ans-expenses/internal/ans/utils"
	"github.com/shopspring/decimal"
)

// Output file names, relative to the output directory
const (
	CanonicalFile    = "despesas_normalizadas.csv"
	RejectsFile      = "despesas_rejeitadas.csv"
	ConsolidatedFile = "consolidado_despesas.csv"
	ConsolidatedZip  = "consolidado_despesas.zip"
	EnrichedFile     = "consolidado_enriquecido.csv"
	ValidatedFile    = "consolidado_validado.csv"
	QuarantineFile   = "quarentena.csv"
	AggregatedFile   = "despesas_agregadas.csv"
	AuditFile        = "auditoria.json"
)

// Delimiter is used by every dataset this module writes
const Delimiter = ';'

var (
	CanonicalHeader    = []string{"entity_identifier", "entity_name", "year", "quarter", "amount", "source_file"}
	RejectsHeader      = []string{"source_file", "line", "reason", "entity_identifier", "raw_amount", "raw_date"}
	ConsolidatedHeader = []string{"entity_identifier", "entity_name", "year", "quarter", "summed_amount"}
	EnrichedHeader     = []string{"entity_identifier", "entity_name", "year", "quarter", "summed_amount", "matched", "tax_id", "legal_name", "trade_name", "modality", "city", "region"}
	ValidatedHeader    = []string{"entity_identifier", "tax_id", "legal_name", "modality", "region", "year", "quarter", "summed_amount", "amount_valid"}
	QuarantineHeader   = []string{"entity_identifier", "entity_name", "tax_id", "year", "quarter", "summed_amount", "matched", "reason"}
	AggregatedHeader   = []string{"legal_name", "region", "total", "mean", "std_dev", "count"}
)

// CSVWriter writes ';'-delimited UTF-8 records
type CSVWriter struct {
	file *os.File
	w    *csv.Writer
	rows int
}

// CreateCSV truncates path and writes header. A nil header writes nothing,
// which is how part files are produced.
func CreateCSV(path string, header []string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	w := csv.NewWriter(file)
	w.Comma = Delimiter
	if header != nil {
		if err := w.Write(header); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to write header to %s: %w", path, err)
		}
	}
	return &CSVWriter{file: file, w: w}, nil
}

// OpenAppend opens an existing dataset for appending
func OpenAppend(path string) (*CSVWriter, error) {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s for append: %w", path, err)
	}
	w := csv.NewWriter(file)
	w.Comma = Delimiter
	return &CSVWriter{file: file, w: w}, nil
}

func (c *CSVWriter) Write(record []string) error {
	c.rows++
	return c.w.Write(record)
}

// Rows is the number of records written, header excluded
func (c *CSVWriter) Rows() int {
	return c.rows
}

func (c *CSVWriter) Close() error {
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		c.file.Close()
		return err
	}
	return c.file.Close()
}

// AppendFile copies the raw bytes of src to the end of dst
func AppendFile(dst, src string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func CanonicalRecord(e types.CanonicalExpense) []string {
	return []string{e.EntityID, e.EntityName, strconv.Itoa(e.Year), strconv.Itoa(e.Quarter), e.Amount.String(), e.SourceFile}
}

func RejectedRecord(r types.RejectedRow) []string {
	return []string{r.SourceFile, strconv.Itoa(r.Line), string(r.Reason), r.EntityID, r.RawAmount, r.RawDate}
}

func ConsolidatedRecord(c types.ConsolidatedExpense) []string {
	return []string{c.EntityID, c.EntityName, strconv.Itoa(c.Year), strconv.Itoa(c.Quarter), utils.FormatAmount(c.Amount)}
}

func EnrichedRecord(e types.EnrichedExpense) []string {
	return []string{
		e.EntityID, e.EntityName, strconv.Itoa(e.Year), strconv.Itoa(e.Quarter), utils.FormatAmount(e.Amount),
		strconv.FormatBool(e.Matched), e.Operator.TaxID, e.Operator.LegalName, e.Operator.TradeName, e.Operator.Modality, e.Operator.City, e.Operator.Region,
	}
}

func ValidatedRecord(v types.ValidatedExpense) []string {
	return []string{
		v.EntityID, v.FormattedTaxID, v.Operator.LegalName, v.Operator.Modality, v.Operator.Region,
		strconv.Itoa(v.Year), strconv.Itoa(v.Quarter), utils.FormatAmount(v.Amount), strconv.FormatBool(v.AmountValid),
	}
}

func QuarantineRecord(q types.QuarantinedExpense) []string {
	return []string{
		q.EntityID, q.EntityName, q.Operator.TaxID, strconv.Itoa(q.Year), strconv.Itoa(q.Quarter),
		utils.FormatAmount(q.Amount), strconv.FormatBool(q.Matched), string(q.Reason),
	}
}

func AggregatedRecord(a types.AggregatedExpense) []string {
	std := ""
	if a.StdDev != nil {
		std = strconv.FormatFloat(*a.StdDev, 'f', 2, 64)
	}
	return []string{a.EntityName, a.Region, utils.FormatAmount(a.Total), strconv.FormatFloat(a.Mean, 'f', 2, 64), std, strconv.Itoa(a.Count)}
}

// WriteAll truncates path and writes header followed by every record
func WriteAll[T any](path string, header []string, rows []T, toRecord func(T) []string) error {
	w, err := CreateCSV(path, header)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if err := w.Write(toRecord(row)); err != nil {
			w.Close()
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	return w.Close()
}

// ReadCanonical loads a canonical dataset written by this module
func ReadCanonical(path string) ([]types.CanonicalExpense, error) {
	records, err := readDataset(path, CanonicalHeader)
	if err != nil {
		return nil, err
	}

	out := make([]types.CanonicalExpense, 0, len(records))
	for i, rec := range records {
		year, err1 := strconv.Atoi(rec[2])
		quarter, err2 := strconv.Atoi(rec[3])
		amount, err3 := decimal.NewFromString(rec[4])
		if err1 != nil || err2 != nil || err3 != nil {
			return nil, fmt.Errorf("%s line %d: malformed canonical row", path, i+2)
		}
		out = append(out, types.CanonicalExpense{
			EntityID:   rec[0],
			EntityName: rec[1],
			Year:       year,
			Quarter:    quarter,
			Amount:     amount,
			SourceFile: rec[5],
		})
	}
	return out, nil
}

// ReadConsolidated loads a consolidated dataset written by this module
func ReadConsolidated(path string) ([]types.ConsolidatedExpense, error) {
	records, err := readDataset(path, ConsolidatedHeader)
	if err != nil {
		return nil, err
	}

	out := make([]types.ConsolidatedExpense, 0, len(records))
	for i, rec := range records {
		year, err1 := strconv.Atoi(rec[2])
		quarter, err2 := strconv.Atoi(rec[3])
		amount, err3 := decimal.NewFromString(rec[4])
		if err1 != nil || err2 != nil || err3 != nil {
			return nil, fmt.Errorf("%s line %d: malformed consolidated row", path, i+2)
		}
		out = append(out, types.ConsolidatedExpense{
			EntityID:   rec[0],
			EntityName: rec[1],
			Year:       year,
			Quarter:    quarter,
			Amount:     amount,
		})
	}
	return out, nil
}

func readDataset(path string, header []string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.Comma = Delimiter
	r.FieldsPerRecord = len(header)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyFile)
	}
	return records[1:], nil
}
