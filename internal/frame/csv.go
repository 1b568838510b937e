package frame

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"time"
)

var csvTimeLayouts = []struct {
	layout string
	zoned  bool
}{
	{time.RFC3339Nano, true},
	{"2006-01-02 15:04:05Z07:00", true},
	{"2006-01-02 15:04:05.999999999Z07:00", true},
	{"2006-01-02T15:04:05.999999999", false},
	{"2006-01-02 15:04:05.999999999", false},
	{"2006-01-02 15:04", false},
	{"2006-01-02", false},
}

// CSVReader decodes comma-separated files with a header row. Cell values are
// kept as strings (empty cells become nil); typing is left to the normalizer.
type CSVReader struct {
	IndexName string
}

func (r *CSVReader) Format() Format { return FormatCSV }

func (r *CSVReader) Read(data []byte) (*Frame, error) {
	cr := csv.NewReader(bytes.NewReader(data))
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("CSV file has no header row")
	}

	header := records[0]
	indexPos := -1
	for i, name := range header {
		name = strings.TrimSpace(name)
		header[i] = name
		if name == r.IndexName || (indexPos < 0 && name == pandasIndexFallback) {
			indexPos = i
		}
	}
	if indexPos < 0 {
		return nil, fmt.Errorf("%w: column %q not found", ErrMissingIndex, r.IndexName)
	}

	f := &Frame{Index: Index{Name: r.IndexName}}
	colPos := make([]int, 0, len(header)-1)
	for i, name := range header {
		if i == indexPos {
			continue
		}
		colPos = append(colPos, i)
		f.Columns = append(f.Columns, Column{Name: name})
	}

	zoneSet := false
	for rowNum, row := range records[1:] {
		ts, zone, err := parseCSVTime(row[indexPos])
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrMissingIndex, rowNum, err)
		}
		if !zoneSet {
			f.Index.Zone = zone
			zoneSet = true
		} else if zone != f.Index.Zone {
			return nil, fmt.Errorf("row %d: zone %q differs from %q", rowNum, zone, f.Index.Zone)
		}
		f.Index.Times = append(f.Index.Times, ts)
		for c, pos := range colPos {
			cell := strings.TrimSpace(row[pos])
			if cell == "" {
				f.Columns[c].Values = append(f.Columns[c].Values, nil)
				continue
			}
			f.Columns[c].Values = append(f.Columns[c].Values, cell)
		}
	}
	for i := range f.Columns {
		if f.Columns[i].Values == nil {
			f.Columns[i].Values = []any{}
		}
	}
	return f, f.Check()
}

// parseCSVTime returns the instant and a zone label: "UTC" for a zero
// offset, the offset itself ("+02:00") otherwise, "" when no offset was given.
func parseCSVTime(s string) (time.Time, string, error) {
	s = strings.TrimSpace(s)
	for _, l := range csvTimeLayouts {
		var (
			t   time.Time
			err error
		)
		if l.zoned {
			t, err = time.Parse(l.layout, s)
		} else {
			t, err = time.ParseInLocation(l.layout, s, time.UTC)
		}
		if err != nil {
			continue
		}
		if !l.zoned {
			return t, "", nil
		}
		_, offset := t.Zone()
		if offset == 0 {
			return t.UTC(), "UTC", nil
		}
		return t, t.Format("-07:00"), nil
	}
	return time.Time{}, "", fmt.Errorf("unparseable timestamp %q", s)
}
