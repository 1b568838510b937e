package loader

import (
	"context"

	"golang.org/x/sync/errgroup"

	"strategist/internal/market"
	"strategist/internal/validate"
)

// Result is the outcome of one key in LoadMany.
type Result struct {
	Key    market.DatasetKey
	Series *market.Series
	Report *validate.Report
	Err    error
}

// LoadMany loads keys with at most workers loads in flight. Per-key failures
// are reported in the results; only cancellation aborts the batch. Results
// keep the order of keys.
func (l *Loader) LoadMany(ctx context.Context, keys []market.DatasetKey, opts Options, workers int) ([]Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if workers < 1 {
		workers = 1
	}
	results := make([]Result, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, key := range keys {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			series, report, err := l.LoadKey(gctx, key, opts)
			results[i] = Result{Key: key, Series: series, Report: report, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
