package market

import (
	"fmt"
	"sort"
)

// DatasetKey identifies one stored series.
type DatasetKey struct {
	Symbol    Symbol
	Timeframe Timeframe
}

func (k DatasetKey) String() string {
	return fmt.Sprintf("%s_%s", k.Symbol, k.Timeframe)
}

// ParseKey validates both halves of a key. The symbol is checked first.
func ParseKey(symbol, timeframe string) (DatasetKey, error) {
	sym, err := ParseSymbol(symbol)
	if err != nil {
		return DatasetKey{}, err
	}
	tf, err := ParseTimeframe(timeframe)
	if err != nil {
		return DatasetKey{}, err
	}
	return DatasetKey{Symbol: sym, Timeframe: tf}, nil
}

// Valid reports whether both halves belong to the known enumerations.
func (k DatasetKey) Valid() bool {
	return k.Symbol.order() >= 0 && k.Timeframe.order() >= 0
}

// AllKeys returns every symbol/timeframe combination in catalog order.
func AllKeys() []DatasetKey {
	keys := make([]DatasetKey, 0, len(symbols)*len(timeframes))
	for _, s := range symbols {
		for _, tf := range timeframes {
			keys = append(keys, DatasetKey{Symbol: s, Timeframe: tf})
		}
	}
	return keys
}

// SortKeys orders keys by symbol order then timeframe order.
func SortKeys(keys []DatasetKey) {
	sort.Slice(keys, func(i, j int) bool {
		si, sj := keys[i].Symbol.order(), keys[j].Symbol.order()
		if si != sj {
			return si < sj
		}
		return keys[i].Timeframe.order() < keys[j].Timeframe.order()
	})
}
