// Package scenario builds initial conditions for the standard test
// problems the CLI exposes. Every builder returns particles already
// numbered by index, plus the boundary, tree, and fluid settings the
// problem calls for.
package scenario

import (
	"errors"
	"fmt"

	"github.com/aquilax/go-perlin"

	"github.com/san-kum/sphlab/internal/boundary"
	"github.com/san-kum/sphlab/internal/fluid"
	"github.com/san-kum/sphlab/internal/particle"
	"github.com/san-kum/sphlab/internal/tree"
	"github.com/san-kum/sphlab/internal/vec"
)

var (
	// ErrBadResolution reports a particle count too small to resolve
	// the problem.
	ErrBadResolution = errors.New("scenario: resolution too low")
)

// Setup is a ready-to-run initial condition.
type Setup struct {
	Name      string
	Dim       int
	Particles []particle.Particle
	Boundary  boundary.Config
	Tree      tree.Params
	Fluid     fluid.Params
}

const gamma = 1.4

// smlFactor sets the initial smoothing length in units of the local
// particle spacing.
const smlFactor = 1.2

// ShockTube builds the Sod problem on [-0.5, 1.5]: unit density and
// pressure on the left half, an eighth of the density and a tenth of
// the pressure on the right, resolved with equal-mass particles so the
// spacing differs by 8x across the interface. nLeft is the particle
// count of the dense half; walls selects no-slip mirror walls instead
// of a periodic domain.
func ShockTube(nLeft int, walls bool) (Setup, error) {
	if nLeft < 16 || nLeft%8 != 0 {
		return Setup{}, fmt.Errorf("%w: nLeft %d (want >= 16, divisible by 8)", ErrBadResolution, nLeft)
	}

	const (
		densL, densR = 1.0, 0.125
		presL, presR = 1.0, 0.1
	)
	dxL := 1.0 / float64(nLeft)
	mass := densL * dxL
	dxR := mass / densR
	nRight := nLeft / 8

	parts := make([]particle.Particle, 0, nLeft+nRight)
	for i := 0; i < nLeft; i++ {
		parts = append(parts, particle.Particle{
			Pos:  vec.Vec{-0.5 + (float64(i)+0.5)*dxL},
			Mass: mass,
			Dens: densL,
			Ene:  presL / ((gamma - 1) * densL),
			Sml:  smlFactor * dxL,
		})
	}
	for i := 0; i < nRight; i++ {
		parts = append(parts, particle.Particle{
			Pos:  vec.Vec{0.5 + (float64(i)+0.5)*dxR},
			Mass: mass,
			Dens: densR,
			Ene:  presR / ((gamma - 1) * densR),
			Sml:  smlFactor * dxR,
		})
	}
	number(parts)

	var (
		cfg  boundary.Config
		name string
	)
	min, max := vec.Vec{-0.5}, vec.Vec{1.5}
	if walls {
		// The wall offset follows the local spacing: dense side at
		// the lower wall, rarefied side at the upper.
		cfg = boundary.MirrorBox(1, min, max, boundary.NoSlip, vec.Vec{dxL})
		cfg.SpacingUpper = vec.Vec{dxR}
		name = "shock_tube_walls"
	} else {
		cfg = boundary.PeriodicBox(1, min, max)
		name = "shock_tube"
	}

	// Ghost images complete the boundary neighborhoods, so the tree
	// runs without minimum-image distances; enabling both would count
	// seam neighbors twice.
	treeParams := tree.DefaultParams(1)

	return Setup{
		Name:      name,
		Dim:       1,
		Particles: parts,
		Boundary:  cfg,
		Tree:      treeParams,
		Fluid:     fluid.DefaultParams(1),
	}, nil
}

// PeriodicBox2D builds an n x n unit-density lattice on [0,1]^2 with a
// divergence-free-ish Perlin velocity perturbation, fully periodic.
func PeriodicBox2D(n int, amplitude float64, seed int64) (Setup, error) {
	if n < 4 {
		return Setup{}, fmt.Errorf("%w: n %d (want >= 4)", ErrBadResolution, n)
	}

	dx := 1.0 / float64(n)
	noise := perlin.NewPerlin(2, 2, 2, seed)

	parts := make([]particle.Particle, 0, n*n)
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			x := (float64(i) + 0.5) * dx
			y := (float64(j) + 0.5) * dx
			parts = append(parts, particle.Particle{
				Pos: vec.Vec{x, y},
				Vel: vec.Vec{
					amplitude * noise.Noise2D(3*x, 3*y),
					amplitude * noise.Noise2D(3*x+17, 3*y+17),
				},
				Mass: dx * dx,
				Dens: 1,
				Ene:  1 / ((gamma - 1) * 1.0),
				Sml:  smlFactor * dx,
			})
		}
	}
	number(parts)

	cfg := boundary.PeriodicBox(2, vec.Vec{0, 0}, vec.Vec{1, 1})
	treeParams := tree.DefaultParams(2)

	return Setup{
		Name:      "periodic_box_2d",
		Dim:       2,
		Particles: parts,
		Boundary:  cfg,
		Tree:      treeParams,
		Fluid:     fluid.DefaultParams(2),
	}, nil
}

// GravityCube builds an n^3 cold lattice on [0,1]^3 with self-gravity
// and no boundaries, exercising the tree-force path.
func GravityCube(n int) (Setup, error) {
	if n < 3 {
		return Setup{}, fmt.Errorf("%w: n %d (want >= 3)", ErrBadResolution, n)
	}

	dx := 1.0 / float64(n)
	parts := make([]particle.Particle, 0, n*n*n)
	for k := 0; k < n; k++ {
		for j := 0; j < n; j++ {
			for i := 0; i < n; i++ {
				parts = append(parts, particle.Particle{
					Pos: vec.Vec{
						(float64(i) + 0.5) * dx,
						(float64(j) + 0.5) * dx,
						(float64(k) + 0.5) * dx,
					},
					Mass: dx * dx * dx,
					Dens: 1,
					Ene:  0.05,
					Sml:  smlFactor * dx,
				})
			}
		}
	}
	number(parts)

	var cfg boundary.Config // no boundaries: the cloud may collapse freely

	treeParams := tree.DefaultParams(3)
	treeParams.G = 1

	return Setup{
		Name:      "gravity_cube",
		Dim:       3,
		Particles: parts,
		Boundary:  cfg,
		Tree:      treeParams,
		Fluid:     fluid.DefaultParams(3),
	}, nil
}

// number enforces the id == index convention and resets transient
// fields on freshly built particles.
func number(parts []particle.Particle) {
	for i := range parts {
		parts[i].ID = i
		parts[i].Type = particle.Real
		parts[i].Next = particle.NoLink
	}
}
