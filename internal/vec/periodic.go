package vec

// Periodic captures a rectangular periodic domain and answers
// minimum-image queries against it. The zero value is a disabled
// domain: MinImage degrades to plain subtraction and Wrap is a no-op.
type Periodic struct {
	valid bool
	dim   int
	min   Vec
	max   Vec
	rng   Vec
}

// NewPeriodic builds an enabled periodic domain over [min, max] in the
// first dim components.
func NewPeriodic(dim int, min, max Vec) Periodic {
	var all [MaxDim]bool
	for d := 0; d < dim; d++ {
		all[d] = true
	}
	return NewPeriodicDims(dim, min, max, all)
}

// NewPeriodicDims builds a periodic domain that wraps only the marked
// dimensions. Unmarked dimensions keep a zero range and are never
// wrapped, which is how mixed periodic/wall domains are expressed.
func NewPeriodicDims(dim int, min, max Vec, wrapped [MaxDim]bool) Periodic {
	p := Periodic{valid: true, dim: dim, min: min, max: max}
	for d := 0; d < dim; d++ {
		if wrapped[d] {
			p.rng[d] = max[d] - min[d]
		}
	}
	return p
}

func (p Periodic) Valid() bool { return p.valid }
func (p Periodic) Dim() int    { return p.dim }
func (p Periodic) Min() Vec    { return p.min }
func (p Periodic) Max() Vec    { return p.max }
func (p Periodic) Range() Vec  { return p.rng }

// MinImage returns the least-magnitude displacement equivalent to r
// under the periodic domain. Disabled domains return r unchanged.
func (p Periodic) MinImage(r Vec) Vec {
	if !p.valid {
		return r
	}
	for d := 0; d < p.dim; d++ {
		if p.rng[d] <= 0 {
			continue
		}
		if r[d] > p.rng[d]*0.5 {
			r[d] -= p.rng[d]
		} else if r[d] < -p.rng[d]*0.5 {
			r[d] += p.rng[d]
		}
	}
	return r
}

// Wrap maps a position that drifted out of the domain back inside.
// Positions already in range are returned unchanged.
func (p Periodic) Wrap(pos Vec) Vec {
	if !p.valid {
		return pos
	}
	for d := 0; d < p.dim; d++ {
		if p.rng[d] <= 0 {
			continue
		}
		if pos[d] < p.min[d] {
			pos[d] += p.rng[d]
		} else if pos[d] > p.max[d] {
			pos[d] -= p.rng[d]
		}
	}
	return pos
}
