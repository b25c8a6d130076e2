// Package vec provides the fixed-size vector and periodic-domain math
// shared by the spatial tree and the boundary system.
//
// Simulations run in 1, 2, or 3 dimensions. Rather than a separate
// vector type per dimensionality, a single 3-wide value type is used
// everywhere and the active dimension is carried by the structures
// that need it; unused components stay zero.
package vec

import "math"

// MaxDim is the widest supported spatial dimension.
const MaxDim = 3

// Vec is a fixed-size coordinate tuple. Components beyond the active
// dimension of a simulation are zero and must stay zero.
type Vec [MaxDim]float64

func (v Vec) Add(o Vec) Vec {
	return Vec{v[0] + o[0], v[1] + o[1], v[2] + o[2]}
}

func (v Vec) Sub(o Vec) Vec {
	return Vec{v[0] - o[0], v[1] - o[1], v[2] - o[2]}
}

func (v Vec) Scale(s float64) Vec {
	return Vec{v[0] * s, v[1] * s, v[2] * s}
}

func (v Vec) Dot(o Vec) float64 {
	return v[0]*o[0] + v[1]*o[1] + v[2]*o[2]
}

// Abs2 returns the squared Euclidean norm.
func (v Vec) Abs2() float64 {
	return v.Dot(v)
}

func (v Vec) Abs() float64 {
	return math.Sqrt(v.Abs2())
}

// IsValid reports whether every component is finite.
func (v Vec) IsValid() bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
