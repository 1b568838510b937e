package market

import (
	"fmt"
	"strings"
	"time"
)

// Timeframe is the sampling interval of a series.
type Timeframe string

const (
	TF1min  Timeframe = "1min"
	TF5min  Timeframe = "5min"
	TF15min Timeframe = "15min"
	TF30min Timeframe = "30min"
	TF1hr   Timeframe = "1hr"
	TF4hr   Timeframe = "4hr"
	TF1day  Timeframe = "1day"
)

const (
	sixMonths = 183 * 24 * time.Hour
	oneYear   = 365 * 24 * time.Hour
	fiveYears = 1826 * 24 * time.Hour
)

var timeframes = []Timeframe{TF1min, TF5min, TF15min, TF30min, TF1hr, TF4hr, TF1day}

// Timeframes returns every timeframe ordered from finest to coarsest.
func Timeframes() []Timeframe {
	out := make([]Timeframe, len(timeframes))
	copy(out, timeframes)
	return out
}

func (tf Timeframe) String() string { return string(tf) }

// Interval is the expected spacing between consecutive bars.
func (tf Timeframe) Interval() time.Duration {
	switch tf {
	case TF1min:
		return time.Minute
	case TF5min:
		return 5 * time.Minute
	case TF15min:
		return 15 * time.Minute
	case TF30min:
		return 30 * time.Minute
	case TF1hr:
		return time.Hour
	case TF4hr:
		return 4 * time.Hour
	case TF1day:
		return 24 * time.Hour
	default:
		return 0
	}
}

// Lookback is the documented history span expected for the timeframe.
func (tf Timeframe) Lookback() time.Duration {
	switch tf {
	case TF1min, TF5min:
		return sixMonths
	case TF15min, TF30min, TF1hr:
		return oneYear
	case TF4hr, TF1day:
		return fiveYears
	default:
		return 0
	}
}

func (tf Timeframe) order() int {
	for i, v := range timeframes {
		if v == tf {
			return i
		}
	}
	return -1
}

// ParseTimeframe accepts the canonical labels plus the short aliases
// ("1m", "m1", "1h", "h1", "1d", "d1", ...).
func ParseTimeframe(s string) (Timeframe, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1min", "1m", "m1":
		return TF1min, nil
	case "5min", "5m", "m5":
		return TF5min, nil
	case "15min", "15m", "m15":
		return TF15min, nil
	case "30min", "30m", "m30":
		return TF30min, nil
	case "1hr", "1h", "h1", "60min":
		return TF1hr, nil
	case "4hr", "4h", "h4":
		return TF4hr, nil
	case "1day", "1d", "d1", "day":
		return TF1day, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTimeframe, s)
	}
}
