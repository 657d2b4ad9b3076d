package files

import (
	"fmt"
	"strings"
	"time"

	"github.com/farxc/ans-expenses/internal/ans/schema"
	"github.com/go-gota/gota/dataframe"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// ReadXLSX loads the first sheet of a workbook whole, as a single chunk
func ReadXLSX(path string) (Chunk, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return Chunk{}, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Chunk{}, fmt.Errorf("workbook %s: %w", path, ErrEmptyFile)
	}

	sheet := sheets[0]
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return Chunk{}, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	if len(rows) == 0 {
		return Chunk{}, fmt.Errorf("workbook %s: %w", path, ErrEmptyFile)
	}

	header := schema.NormalizeHeaders(rows[0])
	records := make([][]string, 0, len(rows))
	records = append(records, header)
	for i, row := range rows[1:] {
		for j, raw := range row {
			row[j] = cellText(f, sheet, j+1, i+2, raw)
		}
		records = append(records, fitRow(row, len(header)))
	}
	if len(records) == 1 {
		return Chunk{Frame: dataframe.DataFrame{}, FirstLine: 2}, nil
	}

	df := TextFrame(records)
	if df.Err != nil {
		return Chunk{}, fmt.Errorf("failed to build frame for %s: %w", path, df.Err)
	}
	return Chunk{Frame: df, FirstLine: 2}, nil
}

// cellText renders a raw cell value the way a pt-BR CSV extract would carry it.
// Numeric cells become "1234,56" and date-formatted numeric cells become
// "2006-01-02". Text cells are returned unchanged.
func cellText(f *excelize.File, sheet string, col, row int, raw string) string {
	n, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return raw
	}
	axis, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return raw
	}
	typ, err := f.GetCellType(sheet, axis)
	if err != nil || (typ != excelize.CellTypeNumber && typ != excelize.CellTypeUnset) {
		return raw
	}

	if isDateStyle(f, sheet, axis) {
		if t, err := excelize.ExcelDateToTime(n.InexactFloat64(), false); err == nil {
			return t.Format(time.DateOnly)
		}
	}
	return strings.Replace(n.String(), ".", ",", 1)
}

// builtin date and time number formats of the OOXML spreadsheet standard
var dateNumFmts = map[int]bool{14: true, 15: true, 16: true, 17: true, 18: true, 19: true, 20: true, 21: true, 22: true, 45: true, 46: true, 47: true}

func isDateStyle(f *excelize.File, sheet, axis string) bool {
	id, err := f.GetCellStyle(sheet, axis)
	if err != nil || id == 0 {
		return false
	}
	style, err := f.GetStyle(id)
	if err != nil || style == nil {
		return false
	}
	if dateNumFmts[style.NumFmt] {
		return true
	}
	if style.CustomNumFmt != nil {
		format := strings.ToLower(*style.CustomNumFmt)
		return strings.Contains(format, "yy") || strings.Contains(format, "dd")
	}
	return false
}

// WriteXLSX writes records to the first sheet of a new workbook
func WriteXLSX(path string, records [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, rec := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		row := make([]interface{}, len(rec))
		for j, v := range rec {
			row[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}
	return f.SaveAs(path)
}
