// Package ghost generates and maintains boundary-image particles.
//
// Ghost particles are synthetic copies of real particles placed across
// a periodic seam or mirrored through a wall so that particles near a
// domain edge see a complete kernel neighborhood. Ghosts are fully
// regenerated whenever positions or the kernel support radius change;
// for pure-periodic boundaries only the thermodynamic scalars are
// refreshed in place between regenerations.
package ghost

import (
	"fmt"
	"math/bits"

	"github.com/san-kum/sphlab/internal/boundary"
	"github.com/san-kum/sphlab/internal/particle"
	"github.com/san-kum/sphlab/internal/vec"
)

// Manager owns the ghost particle array for one boundary
// configuration. It is not safe for concurrent mutation; generation
// and refresh run in the single-threaded phase between parallel query
// regions.
type Manager struct {
	cfg           boundary.Config
	ghosts        []particle.Particle
	ghostToReal   []int
	supportRadius float64
}

// New returns a manager with a disabled configuration. Initialize must
// be called before any generation.
func New() *Manager {
	return &Manager{}
}

// Initialize stores the boundary configuration and clears any prior
// ghost state. A disabled configuration is accepted and turns the
// ghost system off.
func (m *Manager) Initialize(cfg boundary.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.cfg = cfg
	m.Clear()
	return nil
}

// SetKernelSupportRadius sets the boundary-proximity threshold: only
// real particles within this distance of an active face produce
// ghosts. A non-positive radius disables generation entirely.
func (m *Manager) SetKernelSupportRadius(r float64) {
	m.supportRadius = r
}

// KernelSupportRadius returns the current proximity threshold.
func (m *Manager) KernelSupportRadius() float64 { return m.supportRadius }

// Config returns the active boundary configuration.
func (m *Manager) Config() boundary.Config { return m.cfg }

// Ghosts returns the current ghost list. The slice is owned by the
// manager and is invalidated by the next generation.
func (m *Manager) Ghosts() []particle.Particle { return m.ghosts }

// Count returns the number of ghosts.
func (m *Manager) Count() int { return len(m.ghosts) }

// HasGhosts reports whether any ghosts exist.
func (m *Manager) HasGhosts() bool { return len(m.ghosts) > 0 }

// SourceIndex returns the real-particle index ghost g was imaged from.
func (m *Manager) SourceIndex(g int) int { return m.ghostToReal[g] }

// Clear drops every ghost.
func (m *Manager) Clear() {
	m.ghosts = m.ghosts[:0]
	m.ghostToReal = m.ghostToReal[:0]
}

// GenerateGhosts rebuilds the ghost array from the real particles.
// Periodic faces produce wrapped images, mirror faces produce Morris
// reflections, and particles near two or more periodic faces gain the
// combined corner/edge images as well.
func (m *Manager) GenerateGhosts(real []particle.Particle) {
	m.Clear()
	if !m.cfg.Valid || m.supportRadius <= 0 || len(real) == 0 {
		return
	}

	for d := 0; d < m.cfg.Dim; d++ {
		switch m.cfg.Types[d] {
		case boundary.Periodic:
			m.generatePeriodic(real, d)
		case boundary.Mirror:
			if m.cfg.EnableLower[d] {
				m.generateMirror(real, d, false)
			}
			if m.cfg.EnableUpper[d] {
				m.generateMirror(real, d, true)
			}
		}
	}

	m.generateCorners(real)
}

// UpdateGhosts refreshes ghosts after real particles changed. Mirror
// reflections depend on the current velocity, so any mirror dimension
// forces a full regeneration; pure-periodic setups refresh scalars in
// place and keep ghost positions untouched.
func (m *Manager) UpdateGhosts(real []particle.Particle) {
	if !m.cfg.Valid {
		return
	}
	if m.cfg.HasMirror() {
		m.GenerateGhosts(real)
		return
	}
	m.RefreshScalars(real)
}

// RefreshScalars copies the non-position scalar state of every ghost
// from its source real particle. Positions and velocities are left
// alone; periodic images carry their source velocity from generation
// and mirror images are handled by regeneration instead.
func (m *Manager) RefreshScalars(real []particle.Particle) {
	for i := range m.ghosts {
		src := m.ghostToReal[i]
		if src < 0 || src >= len(real) {
			continue
		}
		g := &m.ghosts[i]
		s := &real[src]
		g.Mass = s.Mass
		g.Dens = s.Dens
		g.Pres = s.Pres
		g.Ene = s.Ene
		g.Sound = s.Sound
		g.Sml = s.Sml
	}
}

// ApplyPeriodicWrapping maps real particles that drifted out of a
// periodic dimension back into the domain. Independent of ghost
// generation; mirror and open dimensions are untouched.
func (m *Manager) ApplyPeriodicWrapping(particles []particle.Particle) {
	if !m.cfg.HasPeriodic() {
		return
	}
	for i := range particles {
		pos := &particles[i].Pos
		for d := 0; d < m.cfg.Dim; d++ {
			if m.cfg.Types[d] != boundary.Periodic {
				continue
			}
			rng := m.cfg.Range(d)
			if pos[d] < m.cfg.RangeMin[d] {
				pos[d] += rng
			} else if pos[d] > m.cfg.RangeMax[d] {
				pos[d] -= rng
			}
		}
	}
}

// nearFace reports whether pos is within the support radius of the
// given face. A particle exactly on the face (distance zero) counts.
func (m *Manager) nearFace(pos vec.Vec, d int, upper bool) bool {
	if upper {
		return m.cfg.RangeMax[d]-pos[d] <= m.supportRadius
	}
	return pos[d]-m.cfg.RangeMin[d] <= m.supportRadius
}

func (m *Manager) appendGhost(g particle.Particle, source int) {
	g.Type = particle.Ghost
	g.Next = particle.NoLink
	m.ghosts = append(m.ghosts, g)
	m.ghostToReal = append(m.ghostToReal, source)
}

// generatePeriodic emits the +range image for particles near the lower
// face and the -range image for particles near the upper face of
// dimension d. Periodic images never reflect velocity.
func (m *Manager) generatePeriodic(real []particle.Particle, d int) {
	rng := m.cfg.Range(d)
	for i := range real {
		p := real[i]
		if m.nearFace(p.Pos, d, false) {
			g := p
			g.Pos[d] += rng
			m.appendGhost(g, i)
		}
		if m.nearFace(p.Pos, d, true) {
			g := p
			g.Pos[d] -= rng
			m.appendGhost(g, i)
		}
	}
}

// generateMirror reflects particles near one wall face. The wall sits
// half the face-local particle spacing beyond the domain edge (Morris
// 1997), so distance(real, wall) == distance(ghost, wall) and the
// real-ghost separation equals the local spacing for an edge particle.
func (m *Manager) generateMirror(real []particle.Particle, d int, upper bool) {
	wall := m.cfg.WallPosition(d, upper)
	for i := range real {
		p := real[i]
		if !m.nearFace(p.Pos, d, upper) {
			continue
		}
		g := p
		g.Pos[d] = 2*wall - p.Pos[d]
		switch m.cfg.MirrorModes[d] {
		case boundary.NoSlip:
			g.Vel = g.Vel.Scale(-1)
		case boundary.FreeSlip:
			g.Vel[d] = -g.Vel[d]
		}
		m.appendGhost(g, i)
	}
}

// generateCorners emits combined images for particles within range of
// two or more periodic faces: the 2D corner, and in 3D the edges and
// the corner. Each image applies the per-axis shifts simultaneously.
func (m *Manager) generateCorners(real []particle.Particle) {
	type axisShift struct {
		d     int
		shift float64
	}

	for i := range real {
		p := real[i]

		// Collect every single-axis shift that applies to this
		// particle; a dimension can contribute both signs when the
		// support radius exceeds half the domain.
		var shifts []axisShift
		for d := 0; d < m.cfg.Dim; d++ {
			if m.cfg.Types[d] != boundary.Periodic {
				continue
			}
			rng := m.cfg.Range(d)
			if m.nearFace(p.Pos, d, false) {
				shifts = append(shifts, axisShift{d, +rng})
			}
			if m.nearFace(p.Pos, d, true) {
				shifts = append(shifts, axisShift{d, -rng})
			}
		}
		if len(shifts) < 2 {
			continue
		}

		// Every subset of >= 2 shifts on distinct axes is one image.
		n := len(shifts)
		for mask := 1; mask < 1<<n; mask++ {
			if bits.OnesCount(uint(mask)) < 2 {
				continue
			}
			var used [vec.MaxDim]bool
			ok := true
			g := p
			for b := 0; b < n; b++ {
				if mask&(1<<b) == 0 {
					continue
				}
				s := shifts[b]
				if used[s.d] {
					ok = false
					break
				}
				used[s.d] = true
				g.Pos[s.d] += s.shift
			}
			if ok {
				m.appendGhost(g, i)
			}
		}
	}
}


// Describe returns a short human-readable summary for diagnostics.
func (m *Manager) Describe() string {
	if !m.cfg.Valid {
		return "ghosts disabled"
	}
	return fmt.Sprintf("ghosts: %d (support radius %g)", len(m.ghosts), m.supportRadius)
}
