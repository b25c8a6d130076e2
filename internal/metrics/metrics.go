// Package metrics provides step-wise diagnostics over the real
// particle population. Metrics are accumulated by the solver loop and
// read out once at the end of a run.
package metrics

import "github.com/san-kum/sphlab/internal/particle"

// Metric observes the particle state once per step.
type Metric interface {
	Name() string
	Observe(parts []particle.Particle, t float64)
	Value() float64
	Reset()
}
