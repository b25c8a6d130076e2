// Package solver drives the SPH time integration: a leapfrog
// kick-drift-kick loop that calls the ghost and tree coordinators at
// the points of the step where their invariants demand it.
package solver

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgravesa/go-parallel/parallel"

	"github.com/san-kum/sphlab/internal/fluid"
	"github.com/san-kum/sphlab/internal/ghost"
	"github.com/san-kum/sphlab/internal/metrics"
	"github.com/san-kum/sphlab/internal/particle"
	"github.com/san-kum/sphlab/internal/sim"
	"github.com/san-kum/sphlab/internal/tree"
)

var (
	// ErrBadConfig reports an unusable run configuration.
	ErrBadConfig = errors.New("solver: invalid configuration")
)

// Config parameterizes one run.
type Config struct {
	Dt       float64
	Duration float64

	// WarnEvery rate-limits truncation warnings to one per this many
	// steps; 0 means the default.
	WarnEvery int
}

const defaultWarnEvery = 100

// Observer sees the real particles after every completed step.
type Observer interface {
	OnStep(parts []particle.Particle, step int, t float64)
}

// Result summarizes a finished (or cancelled) run.
type Result struct {
	Steps             int
	Time              float64
	Metrics           map[string]float64
	TruncatedSearches int
}

// Solver owns the real particle array for the duration of a run.
type Solver struct {
	real   []particle.Particle
	ghosts *sim.GhostCoordinator
	trees  *sim.TreeCoordinator
	comp   *fluid.Computer

	metricSet []metrics.Metric
	observers []Observer
	warnf     func(format string, args ...any)

	initialized bool
	time        float64
	step        int
	truncated   int
	lastWarn    int
	warnEvery   int
}

// New assembles a solver around the real particles, a configured ghost
// manager, a tree sized for the worst-case real+ghost population, and
// a fluid computer. Real particles must already satisfy id == index.
func New(real []particle.Particle, gm *ghost.Manager, tr *tree.Tree, comp *fluid.Computer) *Solver {
	return &Solver{
		real:   real,
		ghosts: sim.NewGhostCoordinator(gm),
		trees:  sim.NewTreeCoordinator(tr, gm),
		comp:   comp,
	}
}

func (s *Solver) AddMetric(m metrics.Metric)  { s.metricSet = append(s.metricSet, m) }
func (s *Solver) AddObserver(o Observer)      { s.observers = append(s.observers, o) }
func (s *Solver) SetWarnf(f func(string, ...any)) { s.warnf = f }

// Particles returns the real particle array.
func (s *Solver) Particles() []particle.Particle { return s.real }

// Time returns the current simulation time.
func (s *Solver) Time() float64 { return s.time }

// StepCount returns the number of completed steps.
func (s *Solver) StepCount() int { return s.step }

// TruncatedSearches returns the cumulative truncated-search count.
func (s *Solver) TruncatedSearches() int { return s.truncated }

// Initialize runs the first force evaluation so the leapfrog loop
// starts with consistent accelerations. Safe to call once; Run calls
// it if the caller has not.
func (s *Solver) Initialize() error {
	if s.initialized {
		return nil
	}
	if err := s.forces(); err != nil {
		return err
	}
	s.initialized = true
	return nil
}

// forces evaluates densities and accelerations at the current particle
// positions. This is the sequence the coordinators exist for: ghost
// regeneration before any neighbor search, a rebuild before density,
// a ghost scalar refresh plus second rebuild before forces.
func (s *Solver) forces() error {
	if err := s.ghosts.Prepare(s.real); err != nil {
		return err
	}
	if err := s.trees.Rebuild(s.real); err != nil {
		return err
	}
	if err := s.trees.RefreshKernelAggregates(); err != nil {
		return err
	}

	search := s.trees.Search()
	rc := s.trees.RealCount()
	stats, err := s.comp.PreInteraction(s.trees.Tree(), search, rc)
	if err != nil {
		return err
	}
	s.noteTruncation(stats.TruncatedSearches)
	s.pullScalars(search, rc)

	// Ghost thermodynamics must reflect the densities just computed
	// before any force sees them.
	s.ghosts.RefreshScalars(s.real)
	if err := s.trees.Rebuild(s.real); err != nil {
		return err
	}
	if err := s.trees.RefreshKernelAggregates(); err != nil {
		return err
	}

	search = s.trees.Search()
	stats, err = s.comp.Force(s.trees.Tree(), search, rc)
	if err != nil {
		return err
	}
	s.noteTruncation(stats.TruncatedSearches)

	if s.trees.Tree().Params().G != 0 {
		tr := s.trees.Tree()
		errs := make([]error, rc)
		parallel.For(rc, func(i, _ int) {
			search[i].Phi = 0
			errs[i] = tr.TreeForce(&search[i])
		})
		for _, e := range errs {
			if e != nil {
				return e
			}
		}
	}
	s.pullForces(search, rc)
	return nil
}

// pullScalars copies the density pass outputs from the search copies
// back onto the owned real particles.
func (s *Solver) pullScalars(search []particle.Particle, rc int) {
	for i := 0; i < rc; i++ {
		s.real[i].Dens = search[i].Dens
		s.real[i].Pres = search[i].Pres
		s.real[i].Sound = search[i].Sound
		s.real[i].Sml = search[i].Sml
		s.real[i].Neighbor = search[i].Neighbor
	}
}

// pullForces copies the force pass outputs back.
func (s *Solver) pullForces(search []particle.Particle, rc int) {
	for i := 0; i < rc; i++ {
		s.real[i].Acc = search[i].Acc
		s.real[i].DEne = search[i].DEne
		s.real[i].Phi = search[i].Phi
	}
}

// Advance performs one kick-drift-kick step. Initialize must have run
// first; Advance calls it on a fresh solver.
func (s *Solver) Advance(dt float64) error {
	if !s.initialized {
		if err := s.Initialize(); err != nil {
			return err
		}
	}
	// Half kick + drift with the accelerations from the last force
	// evaluation; velocity and energy get full-step predictions so
	// the viscosity and EOS see current-order values.
	for i := range s.real {
		p := &s.real[i]
		p.VelHalf = p.Vel.Add(p.Acc.Scale(0.5 * dt))
		p.EneHalf = p.Ene + 0.5*dt*p.DEne
		p.Pos = p.Pos.Add(p.VelHalf.Scale(dt))
		p.Vel = p.VelHalf.Add(p.Acc.Scale(0.5 * dt))
		p.Ene = p.EneHalf + 0.5*dt*p.DEne
		if p.Ene < 0 {
			p.Ene = 0
		}
	}

	s.ghosts.Manager().ApplyPeriodicWrapping(s.real)

	if err := s.forces(); err != nil {
		return err
	}

	// Second half kick with the new accelerations.
	for i := range s.real {
		p := &s.real[i]
		p.Vel = p.VelHalf.Add(p.Acc.Scale(0.5 * dt))
		p.Ene = p.EneHalf + 0.5*dt*p.DEne
		if p.Ene < 0 {
			p.Ene = 0
		}
	}

	s.step++
	s.time += dt
	return nil
}

// noteTruncation surfaces truncated neighbor searches through the
// caller-provided warn hook, rate-limited so a persistently truncating
// run does not flood the log.
func (s *Solver) noteTruncation(n int) {
	if n == 0 {
		return
	}
	first := s.truncated == 0
	s.truncated += n

	if s.warnf == nil {
		return
	}
	warnEvery := s.warnEvery
	if warnEvery <= 0 {
		warnEvery = defaultWarnEvery
	}
	if first || s.step-s.lastWarn >= warnEvery {
		s.warnf("step %d: %d neighbor searches truncated (total %d); nearest neighbors kept", s.step, n, s.truncated)
		s.lastWarn = s.step
	}
}

// Run integrates for cfg.Duration and reports the accumulated metrics.
// Cancelling the context stops the run at the next step boundary and
// returns the partial result with the context's error.
func (s *Solver) Run(ctx context.Context, cfg Config) (*Result, error) {
	if cfg.Dt <= 0 || cfg.Duration <= 0 {
		return nil, fmt.Errorf("%w: dt %g duration %g", ErrBadConfig, cfg.Dt, cfg.Duration)
	}
	if cfg.WarnEvery > 0 {
		s.warnEvery = cfg.WarnEvery
	}

	if err := s.Initialize(); err != nil {
		return nil, err
	}

	for _, m := range s.metricSet {
		m.Reset()
		m.Observe(s.real, s.time)
	}

	steps := int(cfg.Duration / cfg.Dt)
	result := &Result{Metrics: make(map[string]float64)}

	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			s.finish(result)
			return result, ctx.Err()
		default:
		}

		if err := s.Advance(cfg.Dt); err != nil {
			s.finish(result)
			return result, fmt.Errorf("step %d: %w", s.step+1, err)
		}

		for _, m := range s.metricSet {
			m.Observe(s.real, s.time)
		}
		for _, o := range s.observers {
			o.OnStep(s.real, s.step, s.time)
		}
	}

	s.finish(result)
	return result, nil
}

func (s *Solver) finish(r *Result) {
	r.Steps = s.step
	r.Time = s.time
	r.TruncatedSearches = s.truncated
	for _, m := range s.metricSet {
		r.Metrics[m.Name()] = m.Value()
	}
}
