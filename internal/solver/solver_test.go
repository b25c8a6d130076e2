package solver

import (
	"context"
	"math"
	"testing"

	"github.com/san-kum/sphlab/internal/fluid"
	"github.com/san-kum/sphlab/internal/ghost"
	"github.com/san-kum/sphlab/internal/metrics"
	"github.com/san-kum/sphlab/internal/particle"
	"github.com/san-kum/sphlab/internal/scenario"
	"github.com/san-kum/sphlab/internal/tree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shockTubeSolver(t *testing.T, walls bool) *Solver {
	t.Helper()

	set, err := scenario.ShockTube(64, walls)
	require.NoError(t, err)

	gm := ghost.New()
	require.NoError(t, gm.Initialize(set.Boundary))

	tr := tree.New(set.Tree)
	require.NoError(t, tr.Resize(2*len(set.Particles)+128, 5))

	comp, err := fluid.NewComputer(set.Fluid)
	require.NoError(t, err)

	return New(set.Particles, gm, tr, comp)
}

func TestRunRejectsBadConfig(t *testing.T) {
	s := shockTubeSolver(t, false)

	_, err := s.Run(context.Background(), Config{Dt: 0, Duration: 1})
	assert.ErrorIs(t, err, ErrBadConfig)
	_, err = s.Run(context.Background(), Config{Dt: 1e-4, Duration: 0})
	assert.ErrorIs(t, err, ErrBadConfig)
}

func TestInitializeComputesState(t *testing.T) {
	s := shockTubeSolver(t, false)
	require.NoError(t, s.Initialize())

	parts := s.Particles()
	for i := range parts {
		assert.Greater(t, parts[i].Dens, 0.0, "particle %d", i)
		assert.Greater(t, parts[i].Pres, 0.0, "particle %d", i)
		assert.Greater(t, parts[i].Neighbor, 0, "particle %d", i)
	}

	// The discontinuity is smoothed but both states are recovered
	// away from it.
	assert.InDelta(t, 1.0, parts[10].Dens, 0.05)
	assert.InDelta(t, 0.125, parts[68].Dens, 0.02)
}

func TestShockTubeRunStaysFinite(t *testing.T) {
	s := shockTubeSolver(t, false)
	s.AddMetric(metrics.NewStability())
	s.AddMetric(metrics.NewMomentumDrift())
	s.AddMetric(metrics.NewTotalEnergy())

	res, err := s.Run(context.Background(), Config{Dt: 5e-4, Duration: 0.01})
	require.NoError(t, err)

	assert.Equal(t, 20, res.Steps)
	assert.InDelta(t, 0.01, res.Time, 1e-9)
	assert.Equal(t, 1.0, res.Metrics["stability"])
	assert.Less(t, res.Metrics["momentum_drift"], 1e-8,
		"symmetric pair forces on a periodic domain conserve momentum")

	for i := range s.Particles() {
		p := &s.Particles()[i]
		assert.False(t, math.IsNaN(p.Dens) || math.IsNaN(p.Vel[0]))
		assert.GreaterOrEqual(t, p.Ene, 0.0)
	}
}

func TestWallRunKeepsParticlesInside(t *testing.T) {
	s := shockTubeSolver(t, true)
	_, err := s.Run(context.Background(), Config{Dt: 5e-4, Duration: 0.005})
	require.NoError(t, err)

	// No-slip ghost walls repel: nothing should escape the domain by
	// more than a spacing in this short window.
	for i := range s.Particles() {
		x := s.Particles()[i].Pos[0]
		assert.Greater(t, x, -0.6)
		assert.Less(t, x, 1.6)
	}
}

func TestPeriodicWrappingDuringRun(t *testing.T) {
	s := shockTubeSolver(t, false)
	_, err := s.Run(context.Background(), Config{Dt: 5e-4, Duration: 0.01})
	require.NoError(t, err)

	for i := range s.Particles() {
		x := s.Particles()[i].Pos[0]
		assert.GreaterOrEqual(t, x, -0.5)
		assert.LessOrEqual(t, x, 1.5)
	}
}

func TestContextCancellation(t *testing.T) {
	s := shockTubeSolver(t, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := s.Run(ctx, Config{Dt: 5e-4, Duration: 1})
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Zero(t, res.Steps)
}

type stepRecorder struct {
	steps []int
	times []float64
}

func (r *stepRecorder) OnStep(parts []particle.Particle, step int, t float64) {
	r.steps = append(r.steps, step)
	r.times = append(r.times, t)
}

func TestObserversSeeEveryStep(t *testing.T) {
	s := shockTubeSolver(t, false)
	rec := &stepRecorder{}
	s.AddObserver(rec)

	_, err := s.Run(context.Background(), Config{Dt: 5e-4, Duration: 0.005})
	require.NoError(t, err)

	require.Len(t, rec.steps, 10)
	assert.Equal(t, 1, rec.steps[0])
	assert.Equal(t, 10, rec.steps[9])
	assert.InDelta(t, 5e-4, rec.times[0], 1e-12)
}

func TestTruncationWarningRateLimited(t *testing.T) {
	s := shockTubeSolver(t, false)

	var warnings int
	s.SetWarnf(func(string, ...any) { warnings++ })

	// Force truncation by noting counts directly: the hook fires on
	// the first event and then at most once per window.
	s.noteTruncation(5)
	assert.Equal(t, 1, warnings)
	s.noteTruncation(5)
	assert.Equal(t, 1, warnings, "second event inside the window is silent")

	s.step = defaultWarnEvery
	s.noteTruncation(5)
	assert.Equal(t, 2, warnings)
	assert.Equal(t, 15, s.TruncatedSearches())
}
