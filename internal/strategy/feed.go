package strategy

import (
	"context"
	"errors"
	"fmt"

	"strategist/internal/market"
	"strategist/logger"
)

// Snapshot is the strategy as seen right after one bar.
type Snapshot struct {
	Time     market.NaiveTime `json:"time"`
	State    State            `json:"state"`
	Position Position         `json:"position"`
	Equity   float64          `json:"equity"`
	Intents  []OrderIntent    `json:"intents,omitempty"`
}

// Run is the record of one feed.
type Run struct {
	Strategy  string            `json:"strategy"`
	Key       market.DatasetKey `json:"key"`
	Bars      int               `json:"bars"`
	Snapshots []Snapshot        `json:"snapshots"`
}

// Intents flattens every intent of the run in order.
func (r *Run) Intents() []OrderIntent {
	var out []OrderIntent
	for _, s := range r.Snapshots {
		out = append(out, s.Intents...)
	}
	return out
}

// FinalEquity is the equity after the last bar, or 0 for an empty run.
func (r *Run) FinalEquity() float64 {
	if len(r.Snapshots) == 0 {
		return 0
	}
	return r.Snapshots[len(r.Snapshots)-1].Equity
}

// Feed delivers every bar of series to s exactly once, in order, and closes
// s afterwards. s must already be initialized. Feed stops at the first
// strategy error, illegal state change, out-of-order bar or cancellation;
// the run so far is returned with the error.
func Feed(ctx context.Context, s Strategy, series *market.Series) (*Run, error) {
	if s.State() != Initialized {
		return nil, fmt.Errorf("%w: feed needs an initialized strategy, got %s", ErrIllegalTransition, s.State())
	}
	run := &Run{Strategy: s.Name(), Key: series.Key, Snapshots: make([]Snapshot, 0, series.Len())}
	log := logger.GetLogger().WithComponent("strategy_feed").WithFields(logger.Fields{
		"strategy": s.Name(),
		"dataset":  series.Key.String(),
	})

	err := feedBars(ctx, s, series, run)
	if closeErr := s.Close(); closeErr != nil {
		err = errors.Join(err, fmt.Errorf("close %s: %w", s.Name(), closeErr))
	} else if st := s.State(); st != Closed {
		err = errors.Join(err, fmt.Errorf("%w: %s reported %s after Close", ErrIllegalTransition, s.Name(), st))
	}
	if err != nil {
		log.WithError(err).WithFields(logger.Fields{"bars": run.Bars}).Warn("feed stopped")
		return run, err
	}

	log.WithFields(logger.Fields{
		"bars":         run.Bars,
		"intents":      len(run.Intents()),
		"final_equity": run.FinalEquity(),
	}).Info("feed complete")
	return run, nil
}

func feedBars(ctx context.Context, s Strategy, series *market.Series, run *Run) error {
	var prev market.NaiveTime
	for i, bar := range series.Bars {
		if err := ctx.Err(); err != nil {
			return err
		}
		if i > 0 && !bar.Time.After(prev) {
			return fmt.Errorf("%w: %s after %s", ErrNonIncreasing, bar.Time, prev)
		}
		prev = bar.Time

		before := s.State()
		intents, err := s.OnBar(bar)
		run.Bars++
		if err != nil {
			return fmt.Errorf("%s on %s: %w", s.Name(), bar.Time, err)
		}
		after := s.State()
		if after == Closed || !CanTransition(before, after) {
			return fmt.Errorf("%w: %s went %s -> %s on %s", ErrIllegalTransition, s.Name(), before, after, bar.Time)
		}
		for j := range intents {
			if intents[j].Time.IsZero() {
				intents[j].Time = bar.Time
			}
			if err := intents[j].validate(); err != nil {
				return fmt.Errorf("%s on %s: %w", s.Name(), bar.Time, err)
			}
		}
		run.Snapshots = append(run.Snapshots, Snapshot{
			Time:     bar.Time,
			State:    after,
			Position: s.Position(),
			Equity:   s.Equity(),
			Intents:  intents,
		})
	}
	return nil
}
