// Package strategy defines the contract pluggable strategies implement and
// the feed that drives them over a validated series.
package strategy

import (
	"errors"
	"fmt"

	"strategist/internal/market"
)

var (
	ErrIllegalTransition = errors.New("illegal state transition")
	ErrNonIncreasing     = errors.New("bars not strictly increasing")
	ErrInvalidIntent     = errors.New("invalid order intent")
	ErrInvalidParams     = errors.New("invalid strategy parameters")
	ErrUnknownStrategy   = errors.New("unknown strategy")
)

// State is the lifecycle state of a strategy.
type State int

const (
	Initialized State = iota
	WarmingUp
	Active
	Closed
)

func (s State) String() string {
	switch s {
	case Initialized:
		return "initialized"
	case WarmingUp:
		return "warming_up"
	case Active:
		return "active"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// CanTransition reports whether a strategy may move from one state to
// another. Staying in the same state is always allowed except once closed.
func CanTransition(from, to State) bool {
	if from == to {
		return from != Closed
	}
	switch from {
	case Initialized:
		return to == WarmingUp || to == Active || to == Closed
	case WarmingUp:
		return to == Active || to == Closed
	case Active:
		return to == Closed
	}
	return false
}

// Side of an order intent.
type Side string

const (
	Buy     Side = "buy"
	Sell    Side = "sell"
	Flatten Side = "close"
)

// OrderIntent is what a strategy wants done on a bar. Fills, fees and
// equity aggregation belong to the execution engine.
type OrderIntent struct {
	Time   market.NaiveTime `json:"time"`
	Side   Side             `json:"side"`
	Size   float64          `json:"size"`
	Reason string           `json:"reason,omitempty"`
}

func (o OrderIntent) validate() error {
	switch o.Side {
	case Buy, Sell:
		if !(o.Size > 0) {
			return fmt.Errorf("%w: %s size %g must be positive", ErrInvalidIntent, o.Side, o.Size)
		}
	case Flatten:
		if o.Size < 0 {
			return fmt.Errorf("%w: close size %g is negative", ErrInvalidIntent, o.Size)
		}
	default:
		return fmt.Errorf("%w: side %q", ErrInvalidIntent, o.Side)
	}
	return nil
}

// Position is a signed quantity; negative means short.
type Position struct {
	Size       float64 `json:"size"`
	EntryPrice float64 `json:"entry_price"`
}

// Params are numeric strategy parameters by name.
type Params map[string]float64

// Get returns the named parameter or def when it is absent.
func (p Params) Get(name string, def float64) float64 {
	if v, ok := p[name]; ok {
		return v
	}
	return def
}

// Strategy is a state machine fed one bar at a time in timestamp order.
// Init moves it to Initialized; OnBar may move it to WarmingUp or Active;
// Close moves it to Closed. Position and Equity are valid at every bar
// boundary.
type Strategy interface {
	Name() string
	Init(key market.DatasetKey, params Params) error
	OnBar(bar market.Bar) ([]OrderIntent, error)
	State() State
	Position() Position
	Equity() float64
	Close() error
}
