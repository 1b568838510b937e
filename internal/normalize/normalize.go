// Package normalize turns a raw frame into the canonical OHLCV table.
package normalize

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"strategist/internal/frame"
)

var (
	ErrSchemaMismatch = errors.New("schema mismatch")
	ErrTypeCoercion   = errors.New("type coercion failed")
)

// Canonical column names in output order.
const (
	Open   = "Open"
	High   = "High"
	Low    = "Low"
	Close  = "Close"
	Volume = "Volume"
)

var canonical = []string{Open, High, Low, Close, Volume}

// SchemaMismatchError lists what the frame lacked and what it had in excess.
type SchemaMismatchError struct {
	Missing    []string
	Unexpected []string
}

func (e *SchemaMismatchError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ", "))
	}
	if len(e.Unexpected) > 0 {
		parts = append(parts, "unexpected "+strings.Join(e.Unexpected, ", "))
	}
	return "schema mismatch: " + strings.Join(parts, "; ")
}

func (e *SchemaMismatchError) Unwrap() error { return ErrSchemaMismatch }

// TypeCoercionError pins the first value that is not numeric.
type TypeCoercionError struct {
	Column string
	Row    int
	At     time.Time
	Value  any
}

func (e *TypeCoercionError) Error() string {
	return fmt.Sprintf("column %s row %d (%s): cannot convert %v (%T) to float64",
		e.Column, e.Row, e.At.Format(time.RFC3339), e.Value, e.Value)
}

func (e *TypeCoercionError) Unwrap() error { return ErrTypeCoercion }

// Table is the canonical OHLCV table. The index is carried over untouched;
// zone handling belongs to the validator.
type Table struct {
	IndexName string
	Zone      string
	Times     []time.Time
	Open      []float64
	High      []float64
	Low       []float64
	Close     []float64
	Volume    []float64
}

func (t *Table) Len() int { return len(t.Times) }

// Column returns the values of a canonical column.
func (t *Table) Column(name string) []float64 {
	switch name {
	case Open:
		return t.Open
	case High:
		return t.High
	case Low:
		return t.Low
	case Close:
		return t.Close
	case Volume:
		return t.Volume
	}
	return nil
}

// Frame converts the table back into a raw frame with canonical column
// names, so a normalized table can be normalized again.
func (t *Table) Frame() *frame.Frame {
	f := &frame.Frame{Index: frame.Index{
		Name:  t.IndexName,
		Zone:  t.Zone,
		Times: append([]time.Time(nil), t.Times...),
	}}
	for _, name := range canonical {
		src := t.Column(name)
		vals := make([]any, len(src))
		for i, v := range src {
			vals[i] = v
		}
		f.Columns = append(f.Columns, frame.Column{Name: name, Values: vals})
	}
	return f
}

// Normalize requires exactly the five OHLCV columns (matched without regard
// to case) and casts every value to float64.
func Normalize(f *frame.Frame) (*Table, error) {
	if f == nil {
		return nil, &SchemaMismatchError{Missing: []string{"open", "high", "low", "close", "volume"}}
	}
	if err := f.Check(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}

	byName := make(map[string]frame.Column, len(canonical))
	var unexpected []string
	for _, col := range f.Columns {
		name := canonicalName(col.Name)
		if name == "" {
			unexpected = append(unexpected, col.Name)
			continue
		}
		if _, dup := byName[name]; dup {
			unexpected = append(unexpected, col.Name)
			continue
		}
		byName[name] = col
	}
	var missing []string
	for _, name := range canonical {
		if _, ok := byName[name]; !ok {
			missing = append(missing, strings.ToLower(name))
		}
	}
	if len(missing) > 0 || len(unexpected) > 0 {
		sort.Strings(unexpected)
		return nil, &SchemaMismatchError{Missing: missing, Unexpected: unexpected}
	}

	t := &Table{
		IndexName: f.Index.Name,
		Zone:      f.Index.Zone,
		Times:     append([]time.Time(nil), f.Index.Times...),
	}
	dst := map[string]*[]float64{Open: &t.Open, High: &t.High, Low: &t.Low, Close: &t.Close, Volume: &t.Volume}
	for _, name := range canonical {
		col := byName[name]
		out := make([]float64, len(col.Values))
		for i, v := range col.Values {
			x, ok := toFloat64(v)
			if !ok {
				return nil, &TypeCoercionError{Column: col.Name, Row: i, At: f.Index.Times[i], Value: v}
			}
			out[i] = x
		}
		*dst[name] = out
	}
	return t, nil
}

func canonicalName(raw string) string {
	for _, name := range canonical {
		if strings.EqualFold(strings.TrimSpace(raw), name) {
			return name
		}
	}
	return ""
}

func toFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
