package tree

import (
	"math"

	"github.com/san-kum/sphlab/internal/particle"
)

// TreeForce accumulates the softened gravitational acceleration and
// potential on p from the whole build. Nodes passing the opening-angle
// test contribute as point masses softened by their own cached kernel
// size; leaf pairs are summed directly with the pair-averaged
// smoothing length. No-op when G is zero.
func (t *Tree) TreeForce(p *particle.Particle) error {
	if !t.Built() {
		return ErrNotBuilt
	}
	if t.params.G == 0 {
		return nil
	}
	t.forceNode(0, p)
	return nil
}

func (t *Tree) forceNode(ni int32, p *particle.Particle) {
	n := &t.nodes[ni]
	if n.mass == 0 {
		return
	}

	dr := t.params.Periodic.MinImage(n.mcenter.Sub(p.Pos))
	d2 := dr.Abs2()

	if !n.leaf {
		// Opening-angle test: edge^2 <= theta^2 * distance^2.
		if n.edge*n.edge <= t.theta2*d2 {
			r := math.Sqrt(d2)
			g := t.params.G * n.mass
			p.Acc = p.Acc.Add(dr.Scale(g * gravForceFactor(r, n.kernel)))
			p.Phi -= g * gravPotential(r, n.kernel)
			return
		}
		for _, ci := range n.children {
			if ci != noChild {
				t.forceNode(ci, p)
			}
		}
		return
	}

	for pi := n.first; pi != particle.NoLink; pi = t.particles[pi].Next {
		q := &t.particles[pi]
		if q.ID == p.ID {
			continue
		}
		drq := t.params.Periodic.MinImage(q.Pos.Sub(p.Pos))
		r := drq.Abs()
		h := 0.5 * (p.Sml + q.Sml)
		g := t.params.G * q.Mass
		p.Acc = p.Acc.Add(drq.Scale(g * gravForceFactor(r, h)))
		p.Phi -= g * gravPotential(r, h)
	}
}

// gravForceFactor is the Hernquist & Katz (1989) spline-softened force
// kernel: the acceleration on the particle is G*m*f(r,h)*dr. The
// softening has compact support 2h; beyond it the factor reduces to
// the Newtonian 1/r^3.
func gravForceFactor(r, h float64) float64 {
	if h <= 0 {
		if r == 0 {
			return 0
		}
		return 1 / (r * r * r)
	}
	u := r / h
	switch {
	case u < 1:
		return (4.0/3.0 + u*u*(-6.0/5.0+0.5*u)) / (h * h * h)
	case u < 2:
		r3 := r * r * r
		return (-1.0/15.0 + u*u*u*(8.0/3.0+u*(-3.0+u*(6.0/5.0-u/6.0)))) / r3
	default:
		return 1 / (r * r * r)
	}
}

// gravPotential is the matching potential kernel: phi = -G*m*g(r,h).
// Continuous with 1/r at u = 2.
func gravPotential(r, h float64) float64 {
	if h <= 0 {
		if r == 0 {
			return 0
		}
		return 1 / r
	}
	u := r / h
	switch {
	case u < 1:
		return -2/h*(u*u*(1.0/3.0+u*u*(-3.0/20.0+u/20.0))) + 7/(5*h)
	case u < 2:
		return -1/(15*r) - (u*u*(4.0/3.0+u*(-1.0+u*(3.0/10.0-u/30.0))))/h + 8/(5*h)
	default:
		return 1 / r
	}
}
