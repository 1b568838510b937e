package frame

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/types"
)

const pandasIndexFallback = "__index_level_0__"

// ErrMissingIndex is returned when the file has no usable time index column.
var ErrMissingIndex = errors.New("missing time index")

// ParquetReader decodes flat parquet files such as those written by pandas
// with pyarrow. The index column becomes Frame.Index; every other leaf column
// is kept with the values parquet-go produces for its physical type.
type ParquetReader struct {
	IndexName string
}

func (r *ParquetReader) Format() Format { return FormatParquet }

func (r *ParquetReader) Read(data []byte) (*Frame, error) {
	pr, err := reader.NewParquetReader(newMemReader(data), nil, 1)
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}
	defer pr.ReadStop()

	leaves, err := leafColumns(pr)
	if err != nil {
		return nil, err
	}

	indexPos := -1
	for i, lf := range leaves {
		if lf.name == r.IndexName {
			indexPos = i
			break
		}
	}
	if indexPos < 0 {
		for i, lf := range leaves {
			if lf.name == pandasIndexFallback {
				indexPos = i
				break
			}
		}
	}
	if indexPos < 0 {
		return nil, fmt.Errorf("%w: column %q not found", ErrMissingIndex, r.IndexName)
	}

	num := pr.GetNumRows()
	f := &Frame{}
	for i, lf := range leaves {
		values := []interface{}{}
		if num > 0 {
			values, _, _, err = pr.ReadColumnByIndex(int64(i), num)
			if err != nil {
				return nil, fmt.Errorf("read column %q: %w", lf.name, err)
			}
		}
		if int64(len(values)) != num {
			return nil, fmt.Errorf("column %q: read %d values, expected %d", lf.name, len(values), num)
		}
		if i == indexPos {
			times, err := decodeTimestamps(lf, values)
			if err != nil {
				return nil, err
			}
			f.Index = Index{
				Name:  r.IndexName,
				Zone:  indexZone(lf, pr.Footer.KeyValueMetadata),
				Times: times,
			}
			continue
		}
		f.Columns = append(f.Columns, Column{Name: lf.name, Values: values})
	}
	return f, f.Check()
}

// leaf is a flat column with the name stored in the file. The reader renames
// Footer.Schema to Go field names, so names come from the schema handler.
type leaf struct {
	name string
	el   *parquet.SchemaElement
}

func leafColumns(pr *reader.ParquetReader) ([]leaf, error) {
	schema := pr.Footer.Schema
	if len(schema) == 0 {
		return nil, fmt.Errorf("parquet file has no schema")
	}
	infos := pr.SchemaHandler.Infos
	leaves := make([]leaf, 0, len(schema)-1)
	for i, el := range schema[1:] {
		name := el.Name
		if i+1 < len(infos) && infos[i+1] != nil {
			name = infos[i+1].ExName
		}
		if el.NumChildren != nil && *el.NumChildren > 0 {
			return nil, fmt.Errorf("nested column %q is not supported", name)
		}
		leaves = append(leaves, leaf{name: name, el: el})
	}
	return leaves, nil
}

type timeUnit int

const (
	unitNone timeUnit = iota
	unitMillis
	unitMicros
	unitNanos
)

func timestampUnit(el *parquet.SchemaElement) timeUnit {
	if lt := el.LogicalType; lt != nil && lt.TIMESTAMP != nil && lt.TIMESTAMP.Unit != nil {
		switch u := lt.TIMESTAMP.Unit; {
		case u.MILLIS != nil:
			return unitMillis
		case u.MICROS != nil:
			return unitMicros
		case u.NANOS != nil:
			return unitNanos
		}
	}
	if el.ConvertedType != nil {
		switch *el.ConvertedType {
		case parquet.ConvertedType_TIMESTAMP_MILLIS:
			return unitMillis
		case parquet.ConvertedType_TIMESTAMP_MICROS:
			return unitMicros
		}
	}
	return unitNone
}

func decodeTimestamps(lf leaf, values []interface{}) ([]time.Time, error) {
	el := lf.el
	if el.Type == nil {
		return nil, fmt.Errorf("%w: column %q has no physical type", ErrMissingIndex, lf.name)
	}
	out := make([]time.Time, len(values))
	switch *el.Type {
	case parquet.Type_INT96:
		for i, v := range values {
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("%w: null or invalid value at row %d", ErrMissingIndex, i)
			}
			out[i] = types.INT96ToTime(s).UTC()
		}
	case parquet.Type_INT64:
		unit := timestampUnit(el)
		if unit == unitNone {
			return nil, fmt.Errorf("%w: column %q is INT64 without a timestamp annotation", ErrMissingIndex, lf.name)
		}
		for i, v := range values {
			n, ok := v.(int64)
			if !ok {
				return nil, fmt.Errorf("%w: null or invalid value at row %d", ErrMissingIndex, i)
			}
			switch unit {
			case unitMillis:
				out[i] = time.UnixMilli(n).UTC()
			case unitMicros:
				out[i] = time.UnixMicro(n).UTC()
			default:
				out[i] = time.Unix(0, n).UTC()
			}
		}
	default:
		return nil, fmt.Errorf("%w: column %q has physical type %s", ErrMissingIndex, lf.name, el.Type.String())
	}
	return out, nil
}

// indexZone prefers the zone pandas records in its metadata and falls back
// to the parquet UTC-adjustment flag.
func indexZone(lf leaf, kv []*parquet.KeyValue) string {
	el := lf.el
	for _, entry := range kv {
		if entry == nil || entry.Key != "pandas" || entry.Value == nil {
			continue
		}
		if zone, ok := pandasZone(*entry.Value, lf.name); ok {
			return zone
		}
	}
	if lt := el.LogicalType; lt != nil && lt.TIMESTAMP != nil {
		if lt.TIMESTAMP.IsAdjustedToUTC {
			return "UTC"
		}
		return ""
	}
	if el.ConvertedType != nil {
		// legacy converted timestamps are defined as UTC-normalized
		return "UTC"
	}
	return ""
}

type pandasMetadata struct {
	Columns []struct {
		Name      *string `json:"name"`
		FieldName string  `json:"field_name"`
		Metadata  *struct {
			Timezone string `json:"timezone"`
		} `json:"metadata"`
	} `json:"columns"`
}

// pandasZone returns the timezone pandas recorded for the column. ok is false
// when the metadata does not describe the column at all.
func pandasZone(raw, column string) (string, bool) {
	var meta pandasMetadata
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return "", false
	}
	for _, c := range meta.Columns {
		name := c.FieldName
		if name == "" && c.Name != nil {
			name = *c.Name
		}
		if name != column {
			continue
		}
		if c.Metadata == nil {
			return "", true
		}
		return c.Metadata.Timezone, true
	}
	return "", false
}
