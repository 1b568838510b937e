package validate

import (
	"errors"
	"fmt"

	"strategist/internal/market"
)

var (
	ErrUnexpectedTimezone = errors.New("unexpected timezone")
	ErrUnorderedIndex     = errors.New("unordered index")
	ErrDuplicateTimestamp = errors.New("duplicate timestamp")
	ErrExcessiveGap       = errors.New("excessive gap")
	ErrInvalidBar         = errors.New("invalid bar")
	ErrInvalidPolicy      = errors.New("invalid policy")
)

type UnexpectedTimezoneError struct {
	Zone string
}

func (e *UnexpectedTimezoneError) Error() string {
	return fmt.Sprintf("unexpected timezone %q: index must be UTC or naive", e.Zone)
}

func (e *UnexpectedTimezoneError) Unwrap() error { return ErrUnexpectedTimezone }

// UnorderedIndexError reports a timestamp earlier than the one before it.
type UnorderedIndexError struct {
	Previous market.NaiveTime
	At       market.NaiveTime
}

func (e *UnorderedIndexError) Error() string {
	return fmt.Sprintf("unordered index: %s follows %s", e.At, e.Previous)
}

func (e *UnorderedIndexError) Unwrap() error { return ErrUnorderedIndex }

// DuplicateTimestampError is the repeated-timestamp case of an unordered
// index; it matches both sentinels.
type DuplicateTimestampError struct {
	At market.NaiveTime
}

func (e *DuplicateTimestampError) Error() string {
	return fmt.Sprintf("duplicate timestamp %s", e.At)
}

func (e *DuplicateTimestampError) Unwrap() []error {
	return []error{ErrDuplicateTimestamp, ErrUnorderedIndex}
}

type ExcessiveGapError struct {
	Start   market.NaiveTime
	End     market.NaiveTime
	Missing int
}

func (e *ExcessiveGapError) Error() string {
	return fmt.Sprintf("excessive gap: %d bars missing between %s and %s", e.Missing, e.Start, e.End)
}

func (e *ExcessiveGapError) Unwrap() error { return ErrExcessiveGap }

type InvalidBarError struct {
	At     market.NaiveTime
	Reason string
}

func (e *InvalidBarError) Error() string {
	return fmt.Sprintf("invalid bar at %s: %s", e.At, e.Reason)
}

func (e *InvalidBarError) Unwrap() error { return ErrInvalidBar }
