// Package boundary describes per-dimension boundary conditions for a
// simulation domain: open, periodic, or mirror (wall) boundaries, with
// the Morris 1997 wall placement used for mirror ghosts.
package boundary

import (
	"errors"
	"fmt"

	"github.com/san-kum/sphlab/internal/vec"
)

// Domain errors for boundary configuration.
var (
	ErrDegenerateRange = errors.New("boundary: degenerate domain range (max <= min)")
	ErrBadDimension    = errors.New("boundary: dimension must be 1, 2, or 3")
	ErrUnknownType     = errors.New("boundary: unknown boundary type")
	ErrUnknownMirror   = errors.New("boundary: unknown mirror mode")
	ErrNegativeSpacing = errors.New("boundary: particle spacing must be non-negative")
)

// Type selects the boundary treatment of one dimension.
type Type int

const (
	None Type = iota
	Periodic
	Mirror
)

func (t Type) String() string {
	switch t {
	case Periodic:
		return "periodic"
	case Mirror:
		return "mirror"
	default:
		return "none"
	}
}

// ParseType converts a config string into a Type.
func ParseType(s string) (Type, error) {
	switch s {
	case "none", "":
		return None, nil
	case "periodic":
		return Periodic, nil
	case "mirror":
		return Mirror, nil
	}
	return None, fmt.Errorf("%w: %q", ErrUnknownType, s)
}

// MirrorMode selects the velocity treatment at a mirror wall.
type MirrorMode int

const (
	// NoSlip negates every velocity component of the ghost image.
	NoSlip MirrorMode = iota
	// FreeSlip negates only the component normal to the wall.
	FreeSlip
)

func (m MirrorMode) String() string {
	if m == FreeSlip {
		return "free_slip"
	}
	return "no_slip"
}

// ParseMirrorMode converts a config string into a MirrorMode.
func ParseMirrorMode(s string) (MirrorMode, error) {
	switch s {
	case "no_slip", "":
		return NoSlip, nil
	case "free_slip":
		return FreeSlip, nil
	}
	return NoSlip, fmt.Errorf("%w: %q", ErrUnknownMirror, s)
}

// Config is the per-dimension boundary descriptor. Lower and upper
// particle spacings are independent: density can differ across the
// domain (a shock tube has a dense left and a rarefied right state),
// and wall placement must follow the local spacing.
type Config struct {
	Valid bool
	Dim   int

	Types       [vec.MaxDim]Type
	EnableLower [vec.MaxDim]bool
	EnableUpper [vec.MaxDim]bool
	MirrorModes [vec.MaxDim]MirrorMode

	RangeMin vec.Vec
	RangeMax vec.Vec

	SpacingLower vec.Vec
	SpacingUpper vec.Vec
}

// PeriodicBox returns a configuration with periodic wrapping on every
// dimension of the given domain.
func PeriodicBox(dim int, min, max vec.Vec) Config {
	c := Config{Valid: true, Dim: dim, RangeMin: min, RangeMax: max}
	for d := 0; d < dim; d++ {
		c.Types[d] = Periodic
		c.EnableLower[d] = true
		c.EnableUpper[d] = true
	}
	return c
}

// MirrorBox returns a configuration with mirror walls on both faces of
// every dimension, all using the same mode and spacing.
func MirrorBox(dim int, min, max vec.Vec, mode MirrorMode, spacing vec.Vec) Config {
	c := Config{Valid: true, Dim: dim, RangeMin: min, RangeMax: max}
	for d := 0; d < dim; d++ {
		c.Types[d] = Mirror
		c.EnableLower[d] = true
		c.EnableUpper[d] = true
		c.MirrorModes[d] = mode
		c.SpacingLower[d] = spacing[d]
		c.SpacingUpper[d] = spacing[d]
	}
	return c
}

// Validate rejects configurations no ghost generation could act on
// sensibly. Invalid (disabled) configurations pass: a disabled config
// is the documented way to turn the ghost system off.
func (c Config) Validate() error {
	if !c.Valid {
		return nil
	}
	if c.Dim < 1 || c.Dim > vec.MaxDim {
		return fmt.Errorf("%w: got %d", ErrBadDimension, c.Dim)
	}
	for d := 0; d < c.Dim; d++ {
		if c.Types[d] == None {
			continue
		}
		if c.RangeMax[d] <= c.RangeMin[d] {
			return fmt.Errorf("%w: dimension %d has [%g, %g]",
				ErrDegenerateRange, d, c.RangeMin[d], c.RangeMax[d])
		}
		if c.SpacingLower[d] < 0 || c.SpacingUpper[d] < 0 {
			return fmt.Errorf("%w: dimension %d", ErrNegativeSpacing, d)
		}
	}
	return nil
}

// HasPeriodic reports whether any dimension wraps.
func (c Config) HasPeriodic() bool {
	if !c.Valid {
		return false
	}
	for d := 0; d < c.Dim; d++ {
		if c.Types[d] == Periodic {
			return true
		}
	}
	return false
}

// HasMirror reports whether any dimension has a wall.
func (c Config) HasMirror() bool {
	if !c.Valid {
		return false
	}
	for d := 0; d < c.Dim; d++ {
		if c.Types[d] == Mirror {
			return true
		}
	}
	return false
}

// Range returns the domain extent along dimension d.
func (c Config) Range(d int) float64 {
	return c.RangeMax[d] - c.RangeMin[d]
}

// WallPosition places the mirror wall half the face-local particle
// spacing beyond the stated domain edge (Morris 1997). With zero
// spacing the wall sits exactly on the edge.
func (c Config) WallPosition(d int, upper bool) float64 {
	if upper {
		return c.RangeMax[d] + 0.5*c.SpacingUpper[d]
	}
	return c.RangeMin[d] - 0.5*c.SpacingLower[d]
}

// PeriodicDomain derives the minimum-image helper covering exactly the
// periodic dimensions. The tree uses it for its fixed bounding cube
// and for wrapped distance queries; non-periodic dimensions are left
// unwrapped.
func (c Config) PeriodicDomain() vec.Periodic {
	if !c.HasPeriodic() {
		return vec.Periodic{}
	}
	var wrapped [vec.MaxDim]bool
	for d := 0; d < c.Dim; d++ {
		wrapped[d] = c.Types[d] == Periodic
	}
	return vec.NewPeriodicDims(c.Dim, c.RangeMin, c.RangeMax, wrapped)
}
