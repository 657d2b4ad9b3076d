package files

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/farxc/ans-expenses/internal/ans/schema"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

var ErrEmptyFile = errors.New("file has no header")

// Chunk is a slice of consecutive data rows. FirstLine is the 1-based line
// number of its first row, counting the header as line 1.
type Chunk struct {
	Frame     dataframe.DataFrame
	FirstLine int
}

// ChunkReader streams a delimited file as fixed-size gota frames. Every cell
// is kept as text; header names are normalized with schema.NormalizeHeader.
type ChunkReader struct {
	reader    *csv.Reader
	header    []string
	chunkSize int
	line      int
}

func NewChunkReader(r io.Reader, delimiter rune, chunkSize int) (*ChunkReader, error) {
	if chunkSize <= 0 {
		chunkSize = 100000
	}
	reader := csv.NewReader(r)
	reader.Comma = delimiter
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	return &ChunkReader{
		reader:    reader,
		header:    schema.NormalizeHeaders(header),
		chunkSize: chunkSize,
		line:      1,
	}, nil
}

// Header returns the normalized column names
func (c *ChunkReader) Header() []string {
	return c.header
}

// Next returns the next chunk, or io.EOF once the input is exhausted
func (c *ChunkReader) Next() (Chunk, error) {
	records := [][]string{c.header}
	first := c.line + 1

	for len(records) <= c.chunkSize {
		row, err := c.reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Chunk{}, fmt.Errorf("failed to read line %d: %w", c.line+1, err)
		}
		c.line++
		records = append(records, fitRow(row, len(c.header)))
	}

	if len(records) == 1 {
		return Chunk{}, io.EOF
	}

	df := TextFrame(records)
	if df.Err != nil {
		return Chunk{}, fmt.Errorf("failed to build frame at line %d: %w", first, df.Err)
	}
	return Chunk{Frame: df, FirstLine: first}, nil
}

// TextFrame loads records (header first) into a frame of string columns
func TextFrame(records [][]string) dataframe.DataFrame {
	return dataframe.LoadRecords(records,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues(nil),
	)
}

// fitRow pads or truncates a ragged row to the header width
func fitRow(row []string, width int) []string {
	if len(row) == width {
		return row
	}
	out := make([]string, width)
	copy(out, row)
	return out
}
