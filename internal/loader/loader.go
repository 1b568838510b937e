// Package loader produces validated series: catalog lookup, one file read,
// decode, normalization and index validation, with an optional cache.
package loader

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"strategist/internal/catalog"
	"strategist/internal/frame"
	"strategist/internal/market"
	"strategist/internal/metrics"
	"strategist/internal/normalize"
	"strategist/internal/validate"
	"strategist/logger"
)

const component = "series_loader"

type cacheKey struct {
	key    market.DatasetKey
	policy validate.Policy
}

func (k cacheKey) String() string {
	p := k.policy
	return fmt.Sprintf("%s|%s|%s|%s|%d", k.key, p.OnDuplicate, p.OnGap, p.OnInvalidBar, p.GapTolerance)
}

type entry struct {
	fingerprint string
	series      *market.Series
	report      *validate.Report
}

// Stats are cumulative cache counters.
type Stats struct {
	Entries int
	Hits    int64
	Misses  int64
	Loads   int64
}

// Loader loads series and optionally caches them by key, options and
// source fingerprint.
type Loader struct {
	catalog *catalog.Catalog
	reader  frame.Reader
	log     *logger.Log

	mu      sync.RWMutex
	entries map[cacheKey]*entry
	group   singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64
	loads  atomic.Int64
}

// New returns a loader reading through cat with reader.
func New(cat *catalog.Catalog, reader frame.Reader) *Loader {
	return &Loader{
		catalog: cat,
		reader:  reader,
		log:     logger.GetLogger(),
		entries: make(map[cacheKey]*entry),
	}
}

func (l *Loader) Catalog() *catalog.Catalog { return l.catalog }

// Load resolves symbol and timeframe and returns the validated series with
// its report. Returned values are copies the caller may modify.
func (l *Loader) Load(ctx context.Context, symbol, timeframe string, opts Options) (*market.Series, *validate.Report, error) {
	if err := opts.Validate(); err != nil {
		return nil, nil, err
	}
	key, err := market.ParseKey(symbol, timeframe)
	if err != nil {
		return nil, nil, err
	}
	return l.LoadKey(ctx, key, opts)
}

func (l *Loader) LoadKey(ctx context.Context, key market.DatasetKey, opts Options) (*market.Series, *validate.Report, error) {
	if err := opts.Validate(); err != nil {
		return nil, nil, err
	}
	start := time.Now()
	requestID := uuid.NewString()
	log := l.log.WithComponent(component).
		WithDataset(string(key.Symbol), string(key.Timeframe)).
		WithFields(logger.Fields{"request_id": requestID})

	loc, err := l.catalog.ResolveKey(ctx, key)
	if err != nil {
		log.WithError(err).Debug("resolve failed")
		return nil, nil, err
	}

	policy := opts.Policy()
	ck := cacheKey{key: loc.Key, policy: policy}
	var (
		res *entry
		hit bool
	)
	if opts.Cache {
		res, hit = l.lookup(ck, loc.Info.Fingerprint)
	}
	if hit {
		l.hits.Add(1)
	} else {
		if opts.Cache {
			l.misses.Add(1)
			res, err = l.loadShared(ctx, ck, loc, log)
		} else {
			res, err = l.compute(ctx, loc, policy, log)
		}
		if err != nil {
			log.WithError(err).Warn("load failed")
			return nil, nil, err
		}
	}

	elapsed := time.Since(start)
	log.WithFields(logger.Fields{
		"rows":        res.series.Len(),
		"gaps":        len(res.report.Gaps),
		"duplicates":  res.report.DuplicatesRemoved,
		"cache_hit":   hit,
		"lookback_ok": res.report.LookbackMet,
	}).Info("series loaded")
	metrics.ReportLoad(l.log, metrics.LoadStats{
		Symbol:    string(key.Symbol),
		Timeframe: string(key.Timeframe),
		RequestID: requestID,
		Rows:      res.series.Len(),
		Gaps:      len(res.report.Gaps),
		CacheHit:  hit,
		Duration:  elapsed,
	})
	return res.series.Clone(), res.report.Clone(), nil
}

func (l *Loader) lookup(ck cacheKey, fingerprint string) (*entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.entries[ck]
	if !ok || fingerprint == "" || e.fingerprint != fingerprint {
		return nil, false
	}
	return e, true
}

// loadShared computes one entry per key, options and fingerprint; concurrent
// callers wait for the same result. The shared computation is detached from
// the callers' cancellation, and each caller stops waiting when its own ctx
// is done.
func (l *Loader) loadShared(ctx context.Context, ck cacheKey, loc catalog.Location, log *logger.Entry) (*entry, error) {
	flight := ck.String() + "|" + loc.Info.Fingerprint
	ch := l.group.DoChan(flight, func() (any, error) {
		e, err := l.compute(context.WithoutCancel(ctx), loc, ck.policy, log)
		if err != nil {
			return nil, err
		}
		if loc.Info.Fingerprint != "" {
			l.mu.Lock()
			l.entries[ck] = e
			l.mu.Unlock()
		}
		return e, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			log.Debug("joined in-flight load")
		}
		return res.Val.(*entry), nil
	}
}

func (l *Loader) compute(ctx context.Context, loc catalog.Location, policy validate.Policy, log *logger.Entry) (*entry, error) {
	l.loads.Add(1)
	log = log.WithFields(logger.Fields{"path": loc.URI})

	t0 := time.Now()
	data, err := l.catalog.Store().ReadFile(ctx, loc.Path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", loc.URI, err)
	}
	f, err := l.reader.Read(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", loc.URI, err)
	}
	logger.LogPerformanceEntry(log, component, "read", time.Since(t0), logger.Fields{"bytes": len(data)})
	logger.LogDataFlowEntry(log, "reader", "normalizer", f.Len(), string(l.reader.Format()))

	t1 := time.Now()
	tbl, err := normalize.Normalize(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", loc.Key, err)
	}
	logger.LogPerformanceEntry(log, component, "normalize", time.Since(t1), nil)

	t2 := time.Now()
	bars, report, err := validate.Validate(tbl, loc.Key.Timeframe, policy)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", loc.Key, err)
	}
	logger.LogPerformanceEntry(log, component, "validate", time.Since(t2), nil)
	for _, w := range report.Warnings {
		log.WithFields(logger.Fields{"warning": w}).Warn("validation warning")
	}

	return &entry{
		fingerprint: loc.Info.Fingerprint,
		series:      &market.Series{Key: loc.Key, Bars: bars},
		report:      report,
	}, nil
}

// Invalidate drops every cached entry for key and returns how many there were.
func (l *Loader) Invalidate(key market.DatasetKey) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for ck := range l.entries {
		if ck.key == key {
			delete(l.entries, ck)
			n++
		}
	}
	return n
}

// Purge empties the cache.
func (l *Loader) Purge() {
	l.mu.Lock()
	l.entries = make(map[cacheKey]*entry)
	l.mu.Unlock()
}

func (l *Loader) Stats() Stats {
	l.mu.RLock()
	n := len(l.entries)
	l.mu.RUnlock()
	return Stats{
		Entries: n,
		Hits:    l.hits.Load(),
		Misses:  l.misses.Load(),
		Loads:   l.loads.Load(),
	}
}
