package metrics

import (
	"time"

	"strategist/logger"
)

// Names of the series loader metrics.
const (
	SeriesLoaded   = "series_loaded"
	CacheHit       = "cache_hit"
	GapsFound      = "gaps_found"
	LoadDurationMs = "load_duration_ms"
)

const loaderComponent = "series_loader"

// LoadStats is what one successful load reports.
type LoadStats struct {
	Symbol    string
	Timeframe string
	RequestID string
	Rows      int
	Gaps      int
	CacheHit  bool
	Duration  time.Duration
}

// ReportLoad emits the loader metrics for one load.
func ReportLoad(log *logger.Log, stats LoadStats) {
	fields := logger.Fields{
		"symbol":     stats.Symbol,
		"timeframe":  stats.Timeframe,
		"request_id": stats.RequestID,
	}
	Emit(log, loaderComponent, SeriesLoaded, float64(stats.Rows), Counter, "count", fields)
	if stats.CacheHit {
		Emit(log, loaderComponent, CacheHit, 1, Counter, "count", fields)
	}
	Emit(log, loaderComponent, GapsFound, float64(stats.Gaps), Gauge, "count", fields)
	Emit(log, loaderComponent, LoadDurationMs, float64(stats.Duration.Microseconds())/1000, Timer, "milliseconds", fields)
}
