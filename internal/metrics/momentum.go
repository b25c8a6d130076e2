package metrics

import (
	"math"

	"github.com/san-kum/sphlab/internal/particle"
	"github.com/san-kum/sphlab/internal/vec"
)

// MomentumDrift tracks the worst absolute deviation of total linear
// momentum from its value at the first observation.
type MomentumDrift struct {
	name     string
	initial  vec.Vec
	maxDrift float64
	samples  int
}

func NewMomentumDrift() *MomentumDrift {
	return &MomentumDrift{name: "momentum_drift"}
}

func (m *MomentumDrift) Name() string { return m.name }

func (m *MomentumDrift) Observe(parts []particle.Particle, t float64) {
	var total vec.Vec
	for i := range parts {
		total = total.Add(parts[i].Vel.Scale(parts[i].Mass))
	}

	if m.samples == 0 {
		m.initial = total
	}
	m.samples++

	m.maxDrift = math.Max(m.maxDrift, total.Sub(m.initial).Abs())
}

func (m *MomentumDrift) Value() float64 { return m.maxDrift }

func (m *MomentumDrift) Reset() {
	m.initial = vec.Vec{}
	m.maxDrift = 0
	m.samples = 0
}
