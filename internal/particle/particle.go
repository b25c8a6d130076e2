// Package particle defines the SPH particle data model shared by the
// spatial tree, the ghost system, and the fluid modules.
package particle

import "github.com/san-kum/sphlab/internal/vec"

// Type discriminates physical particles from boundary images.
type Type int

const (
	Real Type = iota
	Ghost
)

func (t Type) String() string {
	if t == Ghost {
		return "ghost"
	}
	return "real"
}

// NoLink marks a cleared build link.
const NoLink int32 = -1

// Particle is one SPH particle. The spatial machinery reads position,
// smoothing length, mass, and id; the thermodynamic fields are owned
// by the fluid modules and only copied around here.
//
// Invariant: within whichever array currently holds the particle
// (real-only or the combined search array), ID equals the particle's
// index. Every neighbor index the tree returns is resolved under that
// assumption.
type Particle struct {
	Pos vec.Vec
	Vel vec.Vec
	// VelHalf is the half-step predictor velocity used by the leapfrog
	// integrator.
	VelHalf vec.Vec
	Acc     vec.Vec

	Mass    float64
	Dens    float64
	Pres    float64
	Ene     float64
	EneHalf float64
	DEne    float64
	Sound   float64

	// Sml is the smoothing length: the radius of compact support of
	// the particle's interpolation kernel.
	Sml float64

	// Phi is the gravitational potential accumulated by the tree walk.
	Phi float64

	ID       int
	Neighbor int
	Type     Type

	// Next is a transient index link threading particles into tree
	// buckets during a single build pass. It is rebuilt every build
	// and never persisted; NoLink means unset.
	Next int32
}
