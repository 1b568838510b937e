package market

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownSymbol    = errors.New("unknown symbol")
	ErrUnknownTimeframe = errors.New("unknown timeframe")
)

// Symbol is one of the supported FX pairs or metals.
type Symbol string

const (
	EURUSD Symbol = "EURUSD"
	GBPUSD Symbol = "GBPUSD"
	USDJPY Symbol = "USDJPY"
	USDCHF Symbol = "USDCHF"
	AUDUSD Symbol = "AUDUSD"
	NZDUSD Symbol = "NZDUSD"
	USDCAD Symbol = "USDCAD"
	EURGBP Symbol = "EURGBP"
	EURJPY Symbol = "EURJPY"
	GBPJPY Symbol = "GBPJPY"
	XAUUSD Symbol = "XAUUSD"
	XAGUSD Symbol = "XAGUSD"
)

var symbols = []Symbol{
	EURUSD, GBPUSD, USDJPY, USDCHF, AUDUSD, NZDUSD,
	USDCAD, EURGBP, EURJPY, GBPJPY, XAUUSD, XAGUSD,
}

// Symbols returns the known symbols in catalog order.
func Symbols() []Symbol {
	out := make([]Symbol, len(symbols))
	copy(out, symbols)
	return out
}

func (s Symbol) String() string { return string(s) }

func (s Symbol) order() int {
	for i, v := range symbols {
		if v == s {
			return i
		}
	}
	return -1
}

// ParseSymbol accepts the symbol in any case, with or without a separator
// ("eurusd", "EUR/USD", "EUR-USD").
func ParseSymbol(s string) (Symbol, error) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	norm = strings.NewReplacer("/", "", "-", "", "_", "").Replace(norm)
	for _, v := range symbols {
		if string(v) == norm {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSymbol, s)
}
