package strategy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strategist/internal/market"
)

var key = market.DatasetKey{Symbol: market.EURUSD, Timeframe: market.TF1hr}

func seriesOf(closes ...float64) *market.Series {
	s := &market.Series{Key: key}
	t0 := market.NaiveDate(2024, 1, 2, 0, 0, 0)
	for i, c := range closes {
		s.Bars = append(s.Bars, market.Bar{
			Time: t0.Add(time.Duration(i) * time.Hour), Open: c, High: c, Low: c, Close: c, Volume: 1,
		})
	}
	return s
}

func newSMA(t *testing.T, params Params) Strategy {
	t.Helper()
	s, err := New(SMACrossoverName)
	require.NoError(t, err)
	require.NoError(t, s.Init(key, params))
	return s
}

func TestSMACrossoverSignals(t *testing.T) {
	s := newSMA(t, Params{"fast": 2, "slow": 4})
	run, err := Feed(context.Background(), s, seriesOf(10, 10, 10, 10, 9, 12, 8, 7))
	require.NoError(t, err)
	require.Len(t, run.Snapshots, 8)
	assert.Equal(t, 8, run.Bars)

	states := make([]State, len(run.Snapshots))
	for i, snap := range run.Snapshots {
		states[i] = snap.State
	}
	assert.Equal(t, []State{WarmingUp, WarmingUp, WarmingUp, Active, Active, Active, Active, Active}, states)

	intents := run.Intents()
	require.Len(t, intents, 2)
	assert.Equal(t, Buy, intents[0].Side)
	assert.Equal(t, 1.0, intents[0].Size)
	assert.Equal(t, run.Snapshots[5].Time, intents[0].Time)
	assert.Equal(t, Sell, intents[1].Side)
	assert.Equal(t, 2.0, intents[1].Size)

	assert.Equal(t, 1.0, run.Snapshots[5].Position.Size)
	assert.InDelta(t, 10000, run.Snapshots[5].Equity, 1e-9)
	assert.InDelta(t, 9996, run.Snapshots[6].Equity, 1e-9)
	assert.Equal(t, -1.0, run.Snapshots[7].Position.Size)
	assert.InDelta(t, 9995, run.FinalEquity(), 1e-9)
	assert.Equal(t, Closed, s.State())
}

func TestSMACrossoverDefaults(t *testing.T) {
	s := newSMA(t, nil)
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 1.1
	}
	run, err := Feed(context.Background(), s, seriesOf(closes...))
	require.NoError(t, err)
	assert.Equal(t, WarmingUp, run.Snapshots[28].State)
	assert.Equal(t, Active, run.Snapshots[29].State)
	assert.Empty(t, run.Intents())
	assert.InDelta(t, 10000, run.FinalEquity(), 1e-9)
}

func TestSMACrossoverParams(t *testing.T) {
	for _, p := range []Params{{"fast": 30, "slow": 10}, {"fast": 0}, {"fast": 2.5}, {"size": -1}} {
		s, err := New(SMACrossoverName)
		require.NoError(t, err)
		assert.ErrorIs(t, s.Init(key, p), ErrInvalidParams)
	}
}

func TestFeedRejectsNonIncreasing(t *testing.T) {
	series := seriesOf(1, 2, 3)
	series.Bars[2].Time = series.Bars[1].Time

	s := newSMA(t, Params{"fast": 1, "slow": 2})
	run, err := Feed(context.Background(), s, series)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNonIncreasing)
	assert.Equal(t, 2, run.Bars)
	assert.Equal(t, Closed, s.State())
}

func TestFeedNeedsInitializedStrategy(t *testing.T) {
	s := newSMA(t, nil)
	require.NoError(t, s.Close())
	_, err := Feed(context.Background(), s, seriesOf(1))
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestFeedHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := newSMA(t, nil)
	run, err := Feed(ctx, s, seriesOf(1, 2, 3))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, run.Bars)
	assert.Equal(t, Closed, s.State())
}

// scripted returns fixed states and intents per bar.
type scripted struct {
	states  []State
	intents [][]OrderIntent
	seen    []market.NaiveTime
	state   State
}

func (s *scripted) Name() string { return "scripted" }
func (s *scripted) Init(market.DatasetKey, Params) error { s.state = Initialized; return nil }
func (s *scripted) State() State { return s.state }
func (s *scripted) Position() Position { return Position{} }
func (s *scripted) Equity() float64 { return 0 }
func (s *scripted) Close() error { s.state = Closed; return nil }
func (s *scripted) OnBar(b market.Bar) ([]OrderIntent, error) {
	i := len(s.seen)
	s.seen = append(s.seen, b.Time)
	s.state = s.states[i]
	if i < len(s.intents) {
		return s.intents[i], nil
	}
	return nil, nil
}

func TestFeedDeliversEachBarOnce(t *testing.T) {
	series := seriesOf(1, 2, 3, 4)
	s := &scripted{states: []State{Active, Active, Active, Active}}
	_, err := Feed(context.Background(), s, series)
	require.NoError(t, err)
	require.Len(t, s.seen, 4)
	for i, b := range series.Bars {
		assert.Equal(t, b.Time, s.seen[i])
	}
}

func TestFeedRejectsIllegalTransitions(t *testing.T) {
	tests := []struct {
		name   string
		states []State
	}{
		{"active back to warming", []State{Active, WarmingUp}},
		{"closed mid feed", []State{WarmingUp, Closed}},
		{"back to initialized", []State{WarmingUp, Initialized}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &scripted{states: tt.states}
			_, err := Feed(context.Background(), s, seriesOf(1, 2))
			assert.True(t, errors.Is(err, ErrIllegalTransition), "%v", err)
		})
	}
}

func TestFeedValidatesIntents(t *testing.T) {
	s := &scripted{
		states:  []State{Active},
		intents: [][]OrderIntent{{{Side: "hold", Size: 1}}},
	}
	_, err := Feed(context.Background(), s, seriesOf(1))
	assert.ErrorIs(t, err, ErrInvalidIntent)

	s = &scripted{
		states:  []State{Active},
		intents: [][]OrderIntent{{{Side: Flatten}}},
	}
	run, err := Feed(context.Background(), s, seriesOf(1))
	require.NoError(t, err)
	assert.Equal(t, run.Snapshots[0].Time, run.Intents()[0].Time)
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(Initialized, Active))
	assert.True(t, CanTransition(WarmingUp, WarmingUp))
	assert.False(t, CanTransition(Closed, Closed))
	assert.False(t, CanTransition(Active, Initialized))
	assert.Equal(t, "warming_up", WarmingUp.String())
}

func TestRegistry(t *testing.T) {
	assert.Contains(t, Names(), SMACrossoverName)
	_, err := New("martingale")
	assert.ErrorIs(t, err, ErrUnknownStrategy)
	assert.Error(t, Register(SMACrossoverName, func() Strategy { return &SMACrossover{} }))
	assert.Error(t, Register("", nil))

	require.NoError(t, Register("scripted", func() Strategy { return &scripted{} }))
	s, err := New("scripted")
	require.NoError(t, err)
	assert.Equal(t, "scripted", s.Name())
}
