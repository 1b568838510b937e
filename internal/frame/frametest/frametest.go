// Package frametest builds raw dataset files for tests.
package frametest

import (
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"strategist/internal/frame"
)

// Row is one raw OHLCV row as the downloader stores it.
type Row struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

type record struct {
	Timestamp int64   `parquet:"name=timestamp, type=INT64, logicaltype=TIMESTAMP, logicaltype.isadjustedtoutc=true, logicaltype.unit=MILLIS"`
	Open      float64 `parquet:"name=open, type=DOUBLE"`
	High      float64 `parquet:"name=high, type=DOUBLE"`
	Low       float64 `parquet:"name=low, type=DOUBLE"`
	Close     float64 `parquet:"name=close, type=DOUBLE"`
	Volume    float64 `parquet:"name=volume, type=DOUBLE"`
}

type naiveRecord struct {
	Timestamp int64   `parquet:"name=timestamp, type=INT64, logicaltype=TIMESTAMP, logicaltype.isadjustedtoutc=false, logicaltype.unit=MILLIS"`
	Open      float64 `parquet:"name=open, type=DOUBLE"`
	High      float64 `parquet:"name=high, type=DOUBLE"`
	Low       float64 `parquet:"name=low, type=DOUBLE"`
	Close     float64 `parquet:"name=close, type=DOUBLE"`
	Volume    float64 `parquet:"name=volume, type=DOUBLE"`
}

// Parquet encodes rows the way pyarrow writes a tz-aware index: a millisecond
// timestamp adjusted to UTC plus the zone in pandas metadata. An empty zone
// means UTC.
func Parquet(t testing.TB, rows []Row, zone string) []byte {
	t.Helper()
	if zone == "" {
		zone = "UTC"
	}
	return encode(t, new(record), rows, zone, func(r Row) interface{} {
		return record{Timestamp: r.Time.UnixMilli(), Open: r.Open, High: r.High, Low: r.Low, Close: r.Close, Volume: r.Volume}
	})
}

// NaiveParquet encodes rows with a timestamp that is not adjusted to UTC and
// no pandas metadata, as pyarrow writes a tz-naive index.
func NaiveParquet(t testing.TB, rows []Row) []byte {
	t.Helper()
	return encode(t, new(naiveRecord), rows, "", func(r Row) interface{} {
		return naiveRecord{Timestamp: r.Time.UnixMilli(), Open: r.Open, High: r.High, Low: r.Low, Close: r.Close, Volume: r.Volume}
	})
}

func encode(t testing.TB, schema interface{}, rows []Row, zone string, toRecord func(Row) interface{}) []byte {
	t.Helper()
	mf := frame.NewMemWriter()
	pw, err := writer.NewParquetWriter(mf, schema, 1)
	if err != nil {
		t.Fatalf("new parquet writer: %v", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for _, r := range rows {
		if err := pw.Write(toRecord(r)); err != nil {
			t.Fatalf("write row: %v", err)
		}
	}
	if zone != "" {
		meta := fmt.Sprintf(`{"index_columns":["timestamp"],"columns":[{"name":"timestamp","field_name":"timestamp","pandas_type":"datetimetz","metadata":{"timezone":%q}}]}`, zone)
		pw.Footer.KeyValueMetadata = append(pw.Footer.KeyValueMetadata, &parquet.KeyValue{Key: "pandas", Value: &meta})
	}
	if err := pw.WriteStop(); err != nil {
		t.Fatalf("write stop: %v", err)
	}
	return append([]byte(nil), mf.Bytes()...)
}

// CSV encodes rows with RFC3339 UTC timestamps.
func CSV(rows []Row) []byte {
	var b strings.Builder
	b.WriteString("timestamp,open,high,low,close,volume\n")
	for _, r := range rows {
		b.WriteString(r.Time.UTC().Format(time.RFC3339))
		for _, v := range []float64{r.Open, r.High, r.Low, r.Close, r.Volume} {
			b.WriteByte(',')
			b.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
		}
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// Bars returns n well-formed bars spaced by step starting at start.
func Bars(start time.Time, step time.Duration, n int) []Row {
	rows := make([]Row, n)
	price := 1.1000
	for i := range rows {
		rows[i] = Row{
			Time:   start.Add(time.Duration(i) * step),
			Open:   price,
			High:   price + 0.0010,
			Low:    price - 0.0010,
			Close:  price + 0.0005,
			Volume: 100 + float64(i),
		}
		price += 0.0005
	}
	return rows
}

// At builds a well-formed bar at ts with every price at px.
func At(ts time.Time, px float64) Row {
	return Row{Time: ts, Open: px, High: px + 0.001, Low: px - 0.001, Close: px, Volume: 10}
}
