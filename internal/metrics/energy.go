package metrics

import (
	"math"

	"github.com/san-kum/sphlab/internal/particle"
)

// TotalEnergy tracks the current kinetic + internal + gravitational
// energy of the system.
type TotalEnergy struct {
	name    string
	current float64
	samples int
}

func NewTotalEnergy() *TotalEnergy {
	return &TotalEnergy{name: "total_energy"}
}

func (e *TotalEnergy) Name() string { return e.name }

func (e *TotalEnergy) Observe(parts []particle.Particle, t float64) {
	total := 0.0
	for i := range parts {
		p := &parts[i]
		// Phi sums pairwise potentials from both sides, so halve it.
		total += p.Mass * (0.5*p.Vel.Abs2() + p.Ene + 0.5*p.Phi)
	}
	e.current = total
	e.samples++
}

func (e *TotalEnergy) Value() float64 { return e.current }

func (e *TotalEnergy) Reset() {
	e.current = 0
	e.samples = 0
}

// EnergyDrift tracks the worst relative deviation of total energy
// from its value at the first observation.
type EnergyDrift struct {
	name     string
	initial  float64
	maxDrift float64
	samples  int
}

func NewEnergyDrift() *EnergyDrift {
	return &EnergyDrift{name: "energy_drift"}
}

func (e *EnergyDrift) Name() string { return e.name }

func (e *EnergyDrift) Observe(parts []particle.Particle, t float64) {
	total := 0.0
	for i := range parts {
		p := &parts[i]
		total += p.Mass * (0.5*p.Vel.Abs2() + p.Ene + 0.5*p.Phi)
	}

	if e.samples == 0 {
		e.initial = total
	}
	e.samples++

	if e.initial != 0 {
		drift := math.Abs(total-e.initial) / math.Abs(e.initial)
		e.maxDrift = math.Max(e.maxDrift, drift)
	}
}

func (e *EnergyDrift) Value() float64 { return e.maxDrift }

func (e *EnergyDrift) Reset() {
	e.initial = 0
	e.maxDrift = 0
	e.samples = 0
}
