// Package validate checks and converts the time index of a normalized table.
package validate

import (
	"fmt"
	"math"
	"strings"
	"time"
	_ "time/tzdata"

	"strategist/internal/market"
	"strategist/internal/normalize"
)

// utcZones are the zone labels accepted as UTC.
var utcZones = map[string]bool{
	"utc":     true,
	"etc/utc": true,
	"z":       true,
	"+00:00":  true,
	"gmt":     true,
}

// Gap is a run of missing bars between two kept bars.
type Gap struct {
	Start        market.NaiveTime `json:"start"`
	End          market.NaiveTime `json:"end"`
	Missing      int              `json:"missing"`
	MarketClosed bool             `json:"market_closed"`
}

// InvalidBar is a row that broke the OHLC price relations.
type InvalidBar struct {
	At     market.NaiveTime `json:"at"`
	Reason string           `json:"reason"`
	Kept   bool             `json:"kept"`
}

// Report collects what the validator found.
type Report struct {
	Rows              int           `json:"rows"`
	DuplicatesRemoved int           `json:"duplicates_removed"`
	InvalidBars       []InvalidBar  `json:"invalid_bars,omitempty"`
	Gaps              []Gap         `json:"gaps,omitempty"`
	LookbackMet       bool          `json:"lookback_met"`
	Span              time.Duration `json:"span"`
	Warnings          []string      `json:"warnings,omitempty"`
}

// OpenGaps counts gaps outside the weekend closure.
func (r *Report) OpenGaps() int {
	n := 0
	for _, g := range r.Gaps {
		if !g.MarketClosed {
			n++
		}
	}
	return n
}

func (r *Report) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Validate strips the UTC zone, enforces strictly increasing timestamps,
// checks bar integrity, detects gaps and checks the lookback span. The
// returned bars are strictly increasing and zone-free.
func Validate(t *normalize.Table, tf market.Timeframe, p Policy) ([]market.Bar, *Report, error) {
	if err := p.Check(); err != nil {
		return nil, nil, err
	}
	p = p.WithDefaults()
	interval := tf.Interval()
	if interval <= 0 {
		return nil, nil, fmt.Errorf("%w: %q", market.ErrUnknownTimeframe, tf)
	}

	if t != nil && t.Zone != "" && !utcZones[strings.ToLower(strings.TrimSpace(t.Zone))] {
		return nil, nil, &UnexpectedTimezoneError{Zone: t.Zone}
	}

	report := &Report{}
	if t == nil || t.Len() == 0 {
		report.warnf("series is empty; lookback of %s not met", tf.Lookback())
		return []market.Bar{}, report, nil
	}
	report.Rows = t.Len()

	bars, err := orderAndCheck(t, p, report)
	if err != nil {
		return nil, nil, err
	}

	if err := findGaps(bars, interval, p, report); err != nil {
		return nil, nil, err
	}

	if len(bars) > 0 {
		report.Span = bars[len(bars)-1].Time.Sub(bars[0].Time)
	}
	report.LookbackMet = report.Span >= tf.Lookback()
	if !report.LookbackMet {
		report.warnf("span %s shorter than %s lookback of %s", report.Span, tf, tf.Lookback())
	}
	return bars, report, nil
}

func orderAndCheck(t *normalize.Table, p Policy, report *Report) ([]market.Bar, error) {
	bars := make([]market.Bar, 0, t.Len())
	var prev market.NaiveTime
	for i, ts := range t.Times {
		at := market.Naive(ts.UTC())
		if i > 0 {
			switch {
			case at.Equal(prev):
				if p.OnDuplicate == DuplicateFail {
					return nil, &DuplicateTimestampError{At: at}
				}
				report.DuplicatesRemoved++
				continue
			case at.Before(prev):
				return nil, &UnorderedIndexError{Previous: prev, At: at}
			}
		}
		prev = at

		bar := market.Bar{
			Time:   at,
			Open:   t.Open[i],
			High:   t.High[i],
			Low:    t.Low[i],
			Close:  t.Close[i],
			Volume: t.Volume[i],
		}
		if reason := checkBar(bar); reason != "" {
			if p.OnInvalidBar == InvalidBarFail {
				return nil, &InvalidBarError{At: at, Reason: reason}
			}
			keep := p.OnInvalidBar == InvalidBarReport && reason != reasonNaN
			report.InvalidBars = append(report.InvalidBars, InvalidBar{At: at, Reason: reason, Kept: keep})
			if !keep {
				continue
			}
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

// reasonNaN marks bars that are dropped under every policy but fail.
const reasonNaN = "NaN value"

// checkBar returns why a bar is invalid, or "" when it is fine.
func checkBar(b market.Bar) string {
	for _, v := range []float64{b.Open, b.High, b.Low, b.Close, b.Volume} {
		if math.IsNaN(v) {
			return reasonNaN
		}
	}
	switch {
	case b.Open < 0 || b.High < 0 || b.Low < 0 || b.Close < 0:
		return "negative price"
	case b.Volume < 0:
		return "negative volume"
	case b.High < math.Max(b.Open, math.Max(b.Close, b.Low)):
		return fmt.Sprintf("high %g below open/close/low", b.High)
	case b.Low > math.Min(b.Open, math.Min(b.Close, b.High)):
		return fmt.Sprintf("low %g above open/close/high", b.Low)
	}
	return ""
}

func findGaps(bars []market.Bar, interval time.Duration, p Policy, report *Report) error {
	for i := 1; i < len(bars); i++ {
		start, end := bars[i-1].Time, bars[i].Time
		missing := int(end.Sub(start)/interval) - 1
		if missing < p.GapTolerance {
			continue
		}
		gap := Gap{
			Start:        start,
			End:          end,
			Missing:      missing,
			MarketClosed: withinClosure(start.Add(interval), start.Add(time.Duration(missing)*interval)),
		}
		if !gap.MarketClosed && p.OnGap == GapFail {
			return &ExcessiveGapError{Start: start, End: end, Missing: missing}
		}
		report.Gaps = append(report.Gaps, gap)
	}
	return nil
}

// sessionZone anchors the weekly FX close: trading stops Friday 17:00 New York
// time and resumes Sunday 17:00, which is 21:00 UTC in summer and 22:00 UTC in
// winter.
var sessionZone = func() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		panic(fmt.Sprintf("validate: load session zone: %v", err))
	}
	return loc
}()

const sessionCloseHour = 17

// withinClosure reports whether first..last lies inside one weekend closure.
func withinClosure(first, last market.NaiveTime) bool {
	_, end, ok := closure(first)
	return ok && last.Wall().Before(end)
}

// closure returns the weekend closure containing t as UTC instants.
func closure(t market.NaiveTime) (time.Time, time.Time, bool) {
	ny := t.Wall().In(sessionZone)
	var daysBack int
	switch ny.Weekday() {
	case time.Friday:
		if ny.Hour() < sessionCloseHour {
			return time.Time{}, time.Time{}, false
		}
	case time.Saturday:
		daysBack = 1
	case time.Sunday:
		if ny.Hour() >= sessionCloseHour {
			return time.Time{}, time.Time{}, false
		}
		daysBack = 2
	default:
		return time.Time{}, time.Time{}, false
	}
	open := time.Date(ny.Year(), ny.Month(), ny.Day()-daysBack, sessionCloseHour, 0, 0, 0, sessionZone)
	end := time.Date(ny.Year(), ny.Month(), ny.Day()-daysBack+2, sessionCloseHour, 0, 0, 0, sessionZone)
	return open.UTC(), end.UTC(), true
}

// Clone copies the report so cached reports cannot be mutated by callers.
func (r *Report) Clone() *Report {
	if r == nil {
		return nil
	}
	out := *r
	out.InvalidBars = append([]InvalidBar(nil), r.InvalidBars...)
	out.Gaps = append([]Gap(nil), r.Gaps...)
	out.Warnings = append([]string(nil), r.Warnings...)
	return &out
}
