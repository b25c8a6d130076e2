package metrics

import (
	"math"

	"github.com/san-kum/sphlab/internal/particle"
)

// Stability counts the fraction of observations in which every
// particle carried finite position, velocity, and density. A value
// below 1 means the run blew up at some point.
type Stability struct {
	name       string
	violations int
	samples    int
}

func NewStability() *Stability {
	return &Stability{name: "stability"}
}

func (s *Stability) Name() string { return s.name }

func (s *Stability) Observe(parts []particle.Particle, t float64) {
	s.samples++
	for i := range parts {
		p := &parts[i]
		if !p.Pos.IsValid() || !p.Vel.IsValid() ||
			math.IsNaN(p.Dens) || math.IsInf(p.Dens, 0) {
			s.violations++
			return
		}
	}
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}
