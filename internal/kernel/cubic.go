// Package kernel provides the SPH interpolation kernel. Only the
// cubic B-spline is implemented; it is the kernel the rest of the
// code assumes when it converts smoothing lengths into support radii.
package kernel

import (
	"math"

	"github.com/san-kum/sphlab/internal/vec"
)

// SupportFactor is the cubic spline's compact support in units of the
// smoothing length: W(r,h) = 0 for r >= SupportFactor*h.
const SupportFactor = 2.0

// CubicSpline is the standard cubic B-spline kernel normalized for a
// given dimensionality.
type CubicSpline struct {
	dim int
}

// NewCubicSpline returns the kernel for dim in [1,3].
func NewCubicSpline(dim int) CubicSpline {
	if dim < 1 || dim > vec.MaxDim {
		panic("kernel: dimension out of range")
	}
	return CubicSpline{dim: dim}
}

// Dim returns the kernel's dimensionality.
func (k CubicSpline) Dim() int { return k.dim }

// sigma is the normalization constant per dimension.
func (k CubicSpline) sigma(h float64) float64 {
	switch k.dim {
	case 1:
		return 2.0 / (3.0 * h)
	case 2:
		return 10.0 / (7.0 * math.Pi * h * h)
	default:
		return 1.0 / (math.Pi * h * h * h)
	}
}

// W evaluates the kernel at separation r with smoothing length h.
func (k CubicSpline) W(r, h float64) float64 {
	q := r / h
	switch {
	case q < 1:
		return k.sigma(h) * (1 - 1.5*q*q + 0.75*q*q*q)
	case q < 2:
		d := 2 - q
		return k.sigma(h) * 0.25 * d * d * d
	default:
		return 0
	}
}

// GradW evaluates the kernel gradient with respect to the first
// particle's position for the separation vector dr = x_i - x_j.
func (k CubicSpline) GradW(dr vec.Vec, h float64) vec.Vec {
	r := dr.Abs()
	if r <= 0 {
		return vec.Vec{}
	}
	q := r / h

	var dwdq float64
	switch {
	case q < 1:
		dwdq = -3*q + 2.25*q*q
	case q < 2:
		d := 2 - q
		dwdq = -0.75 * d * d
	default:
		return vec.Vec{}
	}

	// dW/dr = sigma * dw/dq / h, directed along dr/r.
	return dr.Scale(k.sigma(h) * dwdq / (h * r))
}
