// Package sim glues the ghost manager and the spatial tree together,
// enforcing the lifecycle invariants neither owns on its own: the
// kernel support radius is derived before ghosts are generated, the
// combined search array keeps id == index, and the tree only ever sees
// a fully synchronized array.
package sim

import (
	"fmt"

	"github.com/san-kum/sphlab/internal/ghost"
	"github.com/san-kum/sphlab/internal/kernel"
	"github.com/san-kum/sphlab/internal/particle"
)

// GhostCoordinator drives the ghost manager at the three points of a
// step that need it: once after smoothing lengths are first computed,
// again at the top of every step before neighbor search, and once more
// after density and pressure are recomputed.
type GhostCoordinator struct {
	ghosts *ghost.Manager
}

// NewGhostCoordinator wraps an initialized ghost manager.
func NewGhostCoordinator(m *ghost.Manager) *GhostCoordinator {
	return &GhostCoordinator{ghosts: m}
}

// Manager exposes the wrapped ghost manager.
func (c *GhostCoordinator) Manager() *ghost.Manager { return c.ghosts }

// Prepare derives the kernel support radius from the current maximum
// smoothing length and regenerates the ghost population. Call it after
// the initial smoothing-length computation and at the top of every
// subsequent step, before any neighbor search.
func (c *GhostCoordinator) Prepare(real []particle.Particle) error {
	support, err := supportRadius(real)
	if err != nil {
		return err
	}
	c.ghosts.SetKernelSupportRadius(support)
	c.ghosts.GenerateGhosts(real)
	return nil
}

// RefreshScalars pushes recomputed density, pressure, and energy from
// the real particles into their ghost images. Mirror boundaries
// regenerate fully because reflection depends on current velocity.
func (c *GhostCoordinator) RefreshScalars(real []particle.Particle) {
	c.ghosts.UpdateGhosts(real)
}

// supportRadius fails fast on any non-positive smoothing length: a
// zero or negative value upstream would silently shrink every ghost
// layer this step.
func supportRadius(real []particle.Particle) (float64, error) {
	maxSml := 0.0
	for i := range real {
		if real[i].Sml <= 0 {
			return 0, fmt.Errorf("%w: particle %d has sml %g",
				ErrBadSmoothingLength, i, real[i].Sml)
		}
		if real[i].Sml > maxSml {
			maxSml = real[i].Sml
		}
	}
	return kernel.SupportFactor * maxSml, nil
}
