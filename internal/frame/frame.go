// Package frame holds the storage-agnostic row/column shape that raw
// dataset files are decoded into, and the readers that produce it.
package frame

import (
	"fmt"
	"strings"
	"time"
)

// DefaultIndexName is the index column written by the downloader.
const DefaultIndexName = "timestamp"

// Index is the time index of a frame. Times are instants; Zone is the zone
// annotation carried by the source ("" when the source index is naive).
type Index struct {
	Name  string
	Zone  string
	Times []time.Time
}

// Column is one named column of untyped values.
type Column struct {
	Name   string
	Values []any
}

// Frame is a decoded raw table.
type Frame struct {
	Index   Index
	Columns []Column
}

// Len returns the number of rows.
func (f *Frame) Len() int { return len(f.Index.Times) }

// ColumnNames returns the column names in file order.
func (f *Frame) ColumnNames() []string {
	names := make([]string, len(f.Columns))
	for i, c := range f.Columns {
		names[i] = c.Name
	}
	return names
}

// Column looks a column up by exact name.
func (f *Frame) Column(name string) (Column, bool) {
	for _, c := range f.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Check verifies every column has one value per index entry.
func (f *Frame) Check() error {
	n := len(f.Index.Times)
	for _, c := range f.Columns {
		if len(c.Values) != n {
			return fmt.Errorf("column %q has %d values, index has %d", c.Name, len(c.Values), n)
		}
	}
	return nil
}

// Format names a supported on-disk encoding.
type Format string

const (
	FormatParquet Format = "parquet"
	FormatCSV     Format = "csv"
)

// ParseFormat accepts a format name in any case.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatParquet, "":
		return FormatParquet, nil
	case FormatCSV:
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unsupported format %q (use: parquet, csv)", s)
	}
}

// Extension is the file suffix for the format.
func (f Format) Extension() string { return string(f) }

// Reader decodes one stored file into a Frame.
type Reader interface {
	Read(data []byte) (*Frame, error)
	Format() Format
}

// NewReader returns the reader for the format. indexName selects the index
// column; an empty name means DefaultIndexName.
func NewReader(format Format, indexName string) (Reader, error) {
	if indexName == "" {
		indexName = DefaultIndexName
	}
	switch format {
	case FormatParquet:
		return &ParquetReader{IndexName: indexName}, nil
	case FormatCSV:
		return &CSVReader{IndexName: indexName}, nil
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}
