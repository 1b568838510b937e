package validate

import (
	"fmt"
	"strings"
)

type DuplicatePolicy string

const (
	DuplicateFail      DuplicatePolicy = "fail"
	DuplicateDropFirst DuplicatePolicy = "drop_first"
)

type GapPolicy string

const (
	GapReport GapPolicy = "report"
	GapFail   GapPolicy = "fail"
)

type InvalidBarPolicy string

const (
	InvalidBarReport InvalidBarPolicy = "report"
	InvalidBarDrop   InvalidBarPolicy = "drop"
	InvalidBarFail   InvalidBarPolicy = "fail"
)

// DefaultGapTolerance is the number of missing bars that makes a gap.
const DefaultGapTolerance = 1

// Policy controls how index anomalies are handled. Zero fields take the
// defaults: fail on duplicates, report gaps, drop invalid bars.
type Policy struct {
	OnDuplicate  DuplicatePolicy
	OnGap        GapPolicy
	OnInvalidBar InvalidBarPolicy
	GapTolerance int
}

// WithDefaults fills zero fields.
func (p Policy) WithDefaults() Policy {
	if p.OnDuplicate == "" {
		p.OnDuplicate = DuplicateFail
	}
	if p.OnGap == "" {
		p.OnGap = GapReport
	}
	if p.OnInvalidBar == "" {
		p.OnInvalidBar = InvalidBarDrop
	}
	if p.GapTolerance == 0 {
		p.GapTolerance = DefaultGapTolerance
	}
	return p
}

// Check rejects values outside the enumerations.
func (p Policy) Check() error {
	p = p.WithDefaults()
	switch p.OnDuplicate {
	case DuplicateFail, DuplicateDropFirst:
	default:
		return fmt.Errorf("%w: on_duplicate %q (use: fail, drop_first)", ErrInvalidPolicy, p.OnDuplicate)
	}
	switch p.OnGap {
	case GapReport, GapFail:
	default:
		return fmt.Errorf("%w: on_gap %q (use: report, fail)", ErrInvalidPolicy, p.OnGap)
	}
	switch p.OnInvalidBar {
	case InvalidBarReport, InvalidBarDrop, InvalidBarFail:
	default:
		return fmt.Errorf("%w: on_invalid_bar %q (use: report, drop, fail)", ErrInvalidPolicy, p.OnInvalidBar)
	}
	if p.GapTolerance < 0 {
		return fmt.Errorf("%w: gap_tolerance %d must be positive", ErrInvalidPolicy, p.GapTolerance)
	}
	return nil
}

// ParsePolicy builds a policy from config strings.
func ParsePolicy(onDuplicate, onGap, onInvalidBar string, gapTolerance int) (Policy, error) {
	p := Policy{
		OnDuplicate:  DuplicatePolicy(strings.ToLower(strings.TrimSpace(onDuplicate))),
		OnGap:        GapPolicy(strings.ToLower(strings.TrimSpace(onGap))),
		OnInvalidBar: InvalidBarPolicy(strings.ToLower(strings.TrimSpace(onInvalidBar))),
		GapTolerance: gapTolerance,
	}
	if err := p.Check(); err != nil {
		return Policy{}, err
	}
	return p.WithDefaults(), nil
}
