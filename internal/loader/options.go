package loader

import (
	"errors"
	"fmt"

	"strategist/internal/validate"
)

// ErrInvalidOptions is returned before any file access when options hold
// values outside their enumerations.
var ErrInvalidOptions = errors.New("invalid load options")

// Options configure one load. The zero value means: fail on duplicates,
// report gaps, report invalid bars, gap tolerance of one bar, no cache.
type Options struct {
	OnDuplicate  validate.DuplicatePolicy
	OnGap        validate.GapPolicy
	OnInvalidBar validate.InvalidBarPolicy
	GapTolerance int
	Cache        bool
}

// Policy is the validator policy with defaults applied.
func (o Options) Policy() validate.Policy {
	return validate.Policy{
		OnDuplicate:  o.OnDuplicate,
		OnGap:        o.OnGap,
		OnInvalidBar: o.OnInvalidBar,
		GapTolerance: o.GapTolerance,
	}.WithDefaults()
}

func (o Options) Validate() error {
	p := validate.Policy{
		OnDuplicate:  o.OnDuplicate,
		OnGap:        o.OnGap,
		OnInvalidBar: o.OnInvalidBar,
		GapTolerance: o.GapTolerance,
	}
	if err := p.Check(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}
	return nil
}
