package normalize

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strategist/internal/frame"
)

func rawFrame(names ...string) *frame.Frame {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f := &frame.Frame{Index: frame.Index{
		Name:  "timestamp",
		Zone:  "UTC",
		Times: []time.Time{t0, t0.Add(time.Hour)},
	}}
	for i, n := range names {
		f.Columns = append(f.Columns, frame.Column{Name: n, Values: []any{float64(i + 1), int64(i + 2)}})
	}
	return f
}

func TestNormalizeRenamesAndCasts(t *testing.T) {
	f := rawFrame("open", "high", "low", "close", "volume")
	f.Columns[4].Values = []any{"12.5", uint32(7)}

	tbl, err := Normalize(f)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, tbl.Open)
	assert.Equal(t, []float64{2, 3}, tbl.High)
	assert.Equal(t, []float64{3, 4}, tbl.Low)
	assert.Equal(t, []float64{4, 5}, tbl.Close)
	assert.Equal(t, []float64{12.5, 7}, tbl.Volume)
	assert.Equal(t, "UTC", tbl.Zone)
	assert.Equal(t, 2, tbl.Len())

	out := tbl.Frame()
	assert.Equal(t, []string{"Open", "High", "Low", "Close", "Volume"}, out.ColumnNames())
}

func TestNormalizeIsIdempotent(t *testing.T) {
	once, err := Normalize(rawFrame("close", "volume", "open", "low", "high"))
	require.NoError(t, err)
	twice, err := Normalize(once.Frame())
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestNormalizeDoesNotMutateInput(t *testing.T) {
	f := rawFrame("open", "high", "low", "close", "volume")
	_, err := Normalize(f)
	require.NoError(t, err)
	assert.Equal(t, "open", f.Columns[0].Name)
	assert.Equal(t, float64(1), f.Columns[0].Values[0])
}

func TestNormalizeSchemaMismatch(t *testing.T) {
	tests := []struct {
		name       string
		columns    []string
		missing    []string
		unexpected []string
	}{
		{"missing volume", []string{"open", "high", "low", "close"}, []string{"volume"}, nil},
		{"extra column", []string{"open", "high", "low", "close", "volume", "spread"}, nil, []string{"spread"}},
		{"duplicate", []string{"open", "Open", "high", "low", "close", "volume"}, nil, []string{"Open"}},
		{"both", []string{"o", "high", "low", "close", "volume"}, []string{"open"}, []string{"o"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(rawFrame(tt.columns...))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrSchemaMismatch))
			var sm *SchemaMismatchError
			require.True(t, errors.As(err, &sm))
			assert.Equal(t, tt.missing, sm.Missing)
			assert.Equal(t, tt.unexpected, sm.Unexpected)
		})
	}
}

func TestNormalizeTypeCoercion(t *testing.T) {
	for _, bad := range []any{"abc", nil, true} {
		f := rawFrame("open", "high", "low", "close", "volume")
		f.Columns[2].Values[1] = bad

		_, err := Normalize(f)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrTypeCoercion)
		var tc *TypeCoercionError
		require.True(t, errors.As(err, &tc))
		assert.Equal(t, "low", tc.Column)
		assert.Equal(t, 1, tc.Row)
		assert.Equal(t, f.Index.Times[1], tc.At)
	}
}

func TestNormalizeKeepsNaN(t *testing.T) {
	f := rawFrame("open", "high", "low", "close", "volume")
	f.Columns[0].Values[0] = "NaN"
	tbl, err := Normalize(f)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(tbl.Open[0]))
}

func TestNormalizeRaggedFrame(t *testing.T) {
	f := rawFrame("open", "high", "low", "close", "volume")
	f.Columns[3].Values = f.Columns[3].Values[:1]
	_, err := Normalize(f)
	assert.ErrorIs(t, err, ErrSchemaMismatch)
}
