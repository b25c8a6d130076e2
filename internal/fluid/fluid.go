// Package fluid computes SPH densities and forces against a built
// spatial tree. The per-particle loops are data-parallel: the tree is
// read-only after build and every goroutine writes only its own
// particle.
package fluid

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync/atomic"

	"github.com/dgravesa/go-parallel/parallel"

	"github.com/san-kum/sphlab/internal/kernel"
	"github.com/san-kum/sphlab/internal/particle"
	"github.com/san-kum/sphlab/internal/tree"
	"github.com/san-kum/sphlab/internal/vec"
)

var (
	// ErrBadParams reports an unusable fluid configuration.
	ErrBadParams = errors.New("fluid: invalid parameters")
)

// Params configures the SPH evaluation.
type Params struct {
	Dim int

	// NeighborNumber is the target neighbor count; it sizes the
	// search capacity and drives the smoothing-length update.
	NeighborNumber int

	// Gamma is the ideal-gas adiabatic index.
	Gamma float64

	// AlphaAV and BetaAV are the Monaghan artificial-viscosity
	// coefficients.
	AlphaAV float64
	BetaAV  float64

	// AdaptSml rescales smoothing lengths toward the target neighbor
	// count after each density pass.
	AdaptSml bool

	// Goroutines bounds the parallel loops; 0 means NumCPU.
	Goroutines int
}

// DefaultParams returns the conventional test-problem settings.
func DefaultParams(dim int) Params {
	neighbors := map[int]int{1: 4, 2: 16, 3: 32}[dim]
	return Params{
		Dim:            dim,
		NeighborNumber: neighbors,
		Gamma:          1.4,
		AlphaAV:        1.0,
		BetaAV:         2.0,
	}
}

// Stats aggregates per-pass diagnostics. Truncated searches are
// non-fatal; the caller decides how loudly to report them.
type Stats struct {
	TruncatedSearches int
	MaxNeighborCount  int
}

// Computer evaluates density and forces for the real particles of a
// coordinator-built search array.
type Computer struct {
	params   Params
	kern     kernel.CubicSpline
	gather   tree.SearchConfig // query kernel only, for density
	scatter  tree.SearchConfig // symmetric max kernel, for forces
	nworkers int
}

// NewComputer validates params and prepares the search configurations.
func NewComputer(p Params) (*Computer, error) {
	if p.Dim < 1 || p.Dim > 3 {
		return nil, fmt.Errorf("%w: dim %d", ErrBadParams, p.Dim)
	}
	if p.Gamma <= 1 {
		return nil, fmt.Errorf("%w: gamma %g must exceed 1", ErrBadParams, p.Gamma)
	}
	// The tree compares distances against smoothing lengths; the cubic
	// spline extends to SupportFactor*h, so both searches scale every h
	// (query and candidate alike) by the support factor.
	gather, err := tree.NewSearchConfig(p.NeighborNumber, false)
	if err != nil {
		return nil, err
	}
	if gather, err = gather.WithKernelScale(kernel.SupportFactor); err != nil {
		return nil, err
	}
	scatter, err := tree.NewSearchConfig(p.NeighborNumber, true)
	if err != nil {
		return nil, err
	}
	if scatter, err = scatter.WithKernelScale(kernel.SupportFactor); err != nil {
		return nil, err
	}
	workers := p.Goroutines
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Computer{
		params:   p,
		kern:     kernel.NewCubicSpline(p.Dim),
		gather:   gather,
		scatter:  scatter,
		nworkers: workers,
	}, nil
}

// Params returns the active configuration.
func (c *Computer) Params() Params { return c.params }

// PreInteraction recomputes density, pressure, sound speed, neighbor
// count, and (optionally) smoothing length for the first realCount
// particles of parts, summing over real and ghost neighbors alike.
func (c *Computer) PreInteraction(t *tree.Tree, parts []particle.Particle, realCount int) (Stats, error) {
	if !t.Built() {
		return Stats{}, tree.ErrNotBuilt
	}
	per := t.Params().Periodic

	var truncated atomic.Int64
	var maxNeighbors atomic.Int64
	errs := make([]error, realCount)

	parallel.WithNumGoroutines(c.nworkers).For(realCount, func(i, _ int) {
		p := &parts[i]

		res, err := t.FindNeighbors(p, c.gather)
		if err != nil {
			errs[i] = err
			return
		}
		if res.Truncated {
			truncated.Add(1)
		}

		dens := 0.0
		for _, j := range res.Indices {
			q := &parts[j]
			r := per.MinImage(p.Pos.Sub(q.Pos)).Abs()
			dens += q.Mass * c.kern.W(r, p.Sml)
		}

		p.Dens = dens
		p.Neighbor = res.Len()
		for n := int64(res.Len()); ; {
			cur := maxNeighbors.Load()
			if n <= cur || maxNeighbors.CompareAndSwap(cur, n) {
				break
			}
		}

		if dens > 0 {
			p.Pres = (c.params.Gamma - 1) * dens * p.Ene
			if p.Pres > 0 {
				p.Sound = math.Sqrt(c.params.Gamma * p.Pres / dens)
			} else {
				p.Sound = 0
			}
		}

		if c.params.AdaptSml && res.Len() > 0 && dens > 0 {
			p.Sml = c.adaptSml(p.Sml, res.Len())
		}
	})

	for _, err := range errs {
		if err != nil {
			return Stats{}, err
		}
	}
	return Stats{
		TruncatedSearches: int(truncated.Load()),
		MaxNeighborCount:  int(maxNeighbors.Load()),
	}, nil
}

// adaptSml nudges a smoothing length toward the target neighbor
// count, damped and clamped so one pass never overshoots.
func (c *Computer) adaptSml(sml float64, neighbors int) float64 {
	ratio := float64(c.params.NeighborNumber) / float64(neighbors)
	factor := 0.5 * (1 + math.Pow(ratio, 1/float64(c.params.Dim)))
	if factor < 0.8 {
		factor = 0.8
	} else if factor > 1.2 {
		factor = 1.2
	}
	return sml * factor
}

// Force evaluates the SPH momentum and energy equations with Monaghan
// artificial viscosity for the first realCount particles. Acceleration
// and energy rate are reset before accumulation, so gravity must be
// applied after this pass.
func (c *Computer) Force(t *tree.Tree, parts []particle.Particle, realCount int) (Stats, error) {
	if !t.Built() {
		return Stats{}, tree.ErrNotBuilt
	}
	per := t.Params().Periodic

	var truncated atomic.Int64
	errs := make([]error, realCount)

	parallel.WithNumGoroutines(c.nworkers).For(realCount, func(i, _ int) {
		p := &parts[i]
		p.Acc = vec.Vec{}
		p.DEne = 0

		res, err := t.FindNeighbors(p, c.scatter)
		if err != nil {
			errs[i] = err
			return
		}
		if res.Truncated {
			truncated.Add(1)
		}
		if p.Dens <= 0 {
			return
		}
		pOverRho2 := p.Pres / (p.Dens * p.Dens)

		for _, j := range res.Indices {
			if j == p.ID {
				continue
			}
			q := &parts[j]
			if q.Dens <= 0 {
				continue
			}

			dr := per.MinImage(p.Pos.Sub(q.Pos))
			hbar := 0.5 * (p.Sml + q.Sml)
			grad := c.kern.GradW(dr, hbar)

			dv := p.Vel.Sub(q.Vel)
			pi := c.viscosity(dv.Dot(dr), dr.Abs2(), hbar,
				0.5*(p.Sound+q.Sound), 0.5*(p.Dens+q.Dens))

			term := pOverRho2 + q.Pres/(q.Dens*q.Dens) + pi
			p.Acc = p.Acc.Sub(grad.Scale(q.Mass * term))
			p.DEne += 0.5 * q.Mass * term * dv.Dot(grad)
		}
	})

	for _, err := range errs {
		if err != nil {
			return Stats{}, err
		}
	}
	return Stats{TruncatedSearches: int(truncated.Load())}, nil
}

// viscosity is the Monaghan artificial-viscosity term, active only
// for approaching pairs.
func (c *Computer) viscosity(vdotr, r2, hbar, cbar, rhobar float64) float64 {
	if vdotr >= 0 || rhobar <= 0 {
		return 0
	}
	mu := hbar * vdotr / (r2 + 0.01*hbar*hbar)
	return (-c.params.AlphaAV*cbar*mu + c.params.BetaAV*mu*mu) / rhobar
}
