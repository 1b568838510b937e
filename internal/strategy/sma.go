package strategy

import (
	"fmt"

	"strategist/internal/market"
)

// SMACrossoverName is the registry name of SMACrossover.
const SMACrossoverName = "sma_crossover"

func init() {
	mustRegister(SMACrossoverName, func() Strategy { return &SMACrossover{} })
}

// SMACrossover goes long one unit when the fast SMA crosses above the slow
// SMA and short one unit when it crosses below.
//
// Params: fast (10), slow (30), cash (10000), size (1).
type SMACrossover struct {
	fast, slow int
	size       float64

	closes   []float64
	prevDiff float64
	hasPrev  bool

	state    State
	cash     float64
	position Position
	last     float64
}

func (s *SMACrossover) Name() string { return SMACrossoverName }

func (s *SMACrossover) Init(_ market.DatasetKey, params Params) error {
	fast, slow := params.Get("fast", 10), params.Get("slow", 30)
	if fast < 1 || slow <= fast || fast != float64(int(fast)) || slow != float64(int(slow)) {
		return fmt.Errorf("%w: need whole periods 1 <= fast < slow, got fast=%g slow=%g", ErrInvalidParams, fast, slow)
	}
	size := params.Get("size", 1)
	if !(size > 0) {
		return fmt.Errorf("%w: size %g must be positive", ErrInvalidParams, size)
	}
	*s = SMACrossover{
		fast:   int(fast),
		slow:   int(slow),
		size:   size,
		closes: make([]float64, 0, int(slow)),
		state:  Initialized,
		cash:   params.Get("cash", 10000),
	}
	return nil
}

func (s *SMACrossover) OnBar(bar market.Bar) ([]OrderIntent, error) {
	if s.state == Closed {
		return nil, fmt.Errorf("%w: bar after close", ErrIllegalTransition)
	}
	if s.slow == 0 {
		return nil, fmt.Errorf("%s: OnBar before Init", SMACrossoverName)
	}
	s.last = bar.Close
	if len(s.closes) == s.slow {
		copy(s.closes, s.closes[1:])
		s.closes = s.closes[:s.slow-1]
	}
	s.closes = append(s.closes, bar.Close)
	if len(s.closes) < s.slow {
		s.state = WarmingUp
		return nil, nil
	}
	s.state = Active

	diff := mean(s.closes[s.slow-s.fast:]) - mean(s.closes)
	prev, hadPrev := s.prevDiff, s.hasPrev
	s.prevDiff, s.hasPrev = diff, true
	if !hadPrev {
		return nil, nil
	}

	switch {
	case prev < 0 && diff > 0:
		return s.target(bar, s.size, "fast SMA crossed above slow SMA"), nil
	case prev > 0 && diff < 0:
		return s.target(bar, -s.size, "fast SMA crossed below slow SMA"), nil
	}
	return nil, nil
}

// target trades to the wanted signed position at the bar close.
func (s *SMACrossover) target(bar market.Bar, want float64, reason string) []OrderIntent {
	delta := want - s.position.Size
	if delta == 0 {
		return nil
	}
	side := Buy
	if delta < 0 {
		side = Sell
	}
	s.cash -= delta * bar.Close
	s.position = Position{Size: want, EntryPrice: bar.Close}
	return []OrderIntent{{Time: bar.Time, Side: side, Size: abs(delta), Reason: reason}}
}

func (s *SMACrossover) State() State { return s.state }
func (s *SMACrossover) Position() Position { return s.position }

// Equity marks the position to the last close.
func (s *SMACrossover) Equity() float64 {
	return s.cash + s.position.Size*s.last
}

func (s *SMACrossover) Close() error {
	s.state = Closed
	return nil
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
