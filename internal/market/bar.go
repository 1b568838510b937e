package market

import "time"

// NaiveLayout is how naive timestamps are rendered.
const NaiveLayout = "2006-01-02T15:04:05"

// NaiveTime is a wall-clock timestamp without a zone. Internally the wall
// clock is held in a UTC time.Time so arithmetic stays exact.
type NaiveTime struct {
	wall time.Time
}

// Naive drops the zone of t and keeps its wall-clock fields unchanged.
func Naive(t time.Time) NaiveTime {
	return NaiveTime{wall: time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)}
}

// NaiveDate builds a naive timestamp from its fields.
func NaiveDate(year int, month time.Month, day, hour, min, sec int) NaiveTime {
	return NaiveTime{wall: time.Date(year, month, day, hour, min, sec, 0, time.UTC)}
}

// ParseNaive parses a timestamp in NaiveLayout.
func ParseNaive(s string) (NaiveTime, error) {
	t, err := time.ParseInLocation(NaiveLayout, s, time.UTC)
	if err != nil {
		return NaiveTime{}, err
	}
	return NaiveTime{wall: t}, nil
}

// Wall returns the wall-clock fields as a UTC time.Time.
func (n NaiveTime) Wall() time.Time { return n.wall }
func (n NaiveTime) IsZero() bool { return n.wall.IsZero() }
func (n NaiveTime) Before(o NaiveTime) bool { return n.wall.Before(o.wall) }
func (n NaiveTime) After(o NaiveTime) bool { return n.wall.After(o.wall) }
func (n NaiveTime) Equal(o NaiveTime) bool { return n.wall.Equal(o.wall) }
func (n NaiveTime) Sub(o NaiveTime) time.Duration { return n.wall.Sub(o.wall) }
func (n NaiveTime) Add(d time.Duration) NaiveTime { return NaiveTime{wall: n.wall.Add(d)} }
func (n NaiveTime) Weekday() time.Weekday { return n.wall.Weekday() }
func (n NaiveTime) String() string { return n.wall.Format(NaiveLayout) }

// MarshalText renders the timestamp without any offset.
func (n NaiveTime) MarshalText() ([]byte, error) {
	return []byte(n.String()), nil
}

// Bar is one normalized OHLCV row as consumed by the execution engine.
type Bar struct {
	Time   NaiveTime `json:"time"`
	Open   float64   `json:"Open"`
	High   float64   `json:"High"`
	Low    float64   `json:"Low"`
	Close  float64   `json:"Close"`
	Volume float64   `json:"Volume"`
}

// Series is a strictly increasing run of bars for one dataset.
type Series struct {
	Key  DatasetKey `json:"key"`
	Bars []Bar      `json:"bars"`
}

func (s *Series) Len() int { return len(s.Bars) }

// First and Last return the bounding timestamps; both are zero for an empty series.
func (s *Series) First() NaiveTime {
	if len(s.Bars) == 0 {
		return NaiveTime{}
	}
	return s.Bars[0].Time
}

func (s *Series) Last() NaiveTime {
	if len(s.Bars) == 0 {
		return NaiveTime{}
	}
	return s.Bars[len(s.Bars)-1].Time
}

// Span is the distance between the first and last bar.
func (s *Series) Span() time.Duration {
	return s.Last().Sub(s.First())
}

// Clone returns a deep copy so callers cannot mutate shared data.
func (s *Series) Clone() *Series {
	if s == nil {
		return nil
	}
	bars := make([]Bar, len(s.Bars))
	copy(bars, s.Bars)
	return &Series{Key: s.Key, Bars: bars}
}

// Closes extracts the close column.
func (s *Series) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Close
	}
	return out
}
