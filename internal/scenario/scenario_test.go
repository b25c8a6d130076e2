package scenario

import (
	"math"
	"testing"

	"github.com/san-kum/sphlab/internal/boundary"
	"github.com/san-kum/sphlab/internal/ghost"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShockTube(t *testing.T) {
	s, err := ShockTube(64, false)
	require.NoError(t, err)

	assert.Equal(t, "shock_tube", s.Name)
	assert.Equal(t, 1, s.Dim)
	assert.Len(t, s.Particles, 64+8)

	// Equal-mass discretization: total mass is 1 (left) + 0.125 (right).
	total := 0.0
	for i := range s.Particles {
		total += s.Particles[i].Mass
		assert.Equal(t, i, s.Particles[i].ID)
	}
	assert.InDelta(t, 1.125, total, 1e-12)

	// Left state is 8x denser, so the spacing jumps 8x at the interface.
	left, right := s.Particles[0], s.Particles[70]
	assert.InDelta(t, 8.0, right.Sml/left.Sml, 1e-12)

	// Sod pressures through the EOS.
	assert.InDelta(t, 1.0, (1.4-1)*left.Dens*left.Ene, 1e-12)
	assert.InDelta(t, 0.1, (1.4-1)*right.Dens*right.Ene, 1e-12)

	// All particles inside the domain.
	for i := range s.Particles {
		x := s.Particles[i].Pos[0]
		assert.Greater(t, x, -0.5)
		assert.Less(t, x, 1.5)
	}

	assert.True(t, s.Boundary.HasPeriodic())
	assert.False(t, s.Tree.Periodic.Valid(),
		"ghosts own the boundary, so the tree must not also wrap distances")
}

func TestShockTubeWalls(t *testing.T) {
	s, err := ShockTube(64, true)
	require.NoError(t, err)

	assert.Equal(t, "shock_tube_walls", s.Name)
	assert.True(t, s.Boundary.HasMirror())
	assert.False(t, s.Boundary.HasPeriodic())

	// Wall offsets follow the face-local spacing.
	dxL := 1.0 / 64
	dxR := 8 * dxL
	assert.InDelta(t, -0.5-0.5*dxL, s.Boundary.WallPosition(0, false), 1e-12)
	assert.InDelta(t, 1.5+0.5*dxR, s.Boundary.WallPosition(0, true), 1e-12)

	// Mirror domains never wrap.
	assert.False(t, s.Tree.Periodic.Valid())
}

func TestShockTubeResolution(t *testing.T) {
	_, err := ShockTube(8, false)
	assert.ErrorIs(t, err, ErrBadResolution)
	_, err = ShockTube(65, false)
	assert.ErrorIs(t, err, ErrBadResolution)
}

func TestPeriodicBox2D(t *testing.T) {
	s, err := PeriodicBox2D(16, 0.05, 42)
	require.NoError(t, err)

	assert.Len(t, s.Particles, 256)
	assert.Equal(t, 2, s.Dim)

	for i := range s.Particles {
		p := &s.Particles[i]
		assert.Equal(t, i, p.ID)
		assert.InDelta(t, 1.0/256, p.Mass, 1e-12)
		// Perlin noise is bounded, so perturbations stay small.
		assert.Less(t, math.Abs(p.Vel[0]), 0.1)
		assert.Less(t, math.Abs(p.Vel[1]), 0.1)
	}

	// Same seed reproduces the same field.
	s2, err := PeriodicBox2D(16, 0.05, 42)
	require.NoError(t, err)
	assert.Equal(t, s.Particles[100].Vel, s2.Particles[100].Vel)

	s3, err := PeriodicBox2D(16, 0.05, 7)
	require.NoError(t, err)
	assert.NotEqual(t, s.Particles[100].Vel, s3.Particles[100].Vel)

	assert.Equal(t, boundary.Periodic, s.Boundary.Types[0])
	assert.Equal(t, boundary.Periodic, s.Boundary.Types[1])
}

func TestGravityCube(t *testing.T) {
	s, err := GravityCube(4)
	require.NoError(t, err)

	assert.Len(t, s.Particles, 64)
	assert.Equal(t, 1.0, s.Tree.G)
	assert.False(t, s.Tree.Periodic.Valid())
	assert.NoError(t, s.Boundary.Validate(), "disabled boundary config is valid")

	// The open boundary must assemble: the ghost manager accepts it
	// and produces no ghosts.
	gm := ghost.New()
	require.NoError(t, gm.Initialize(s.Boundary))
	gm.SetKernelSupportRadius(2 * s.Particles[0].Sml)
	gm.GenerateGhosts(s.Particles)
	assert.Zero(t, gm.Count())

	total := 0.0
	for i := range s.Particles {
		total += s.Particles[i].Mass
	}
	assert.InDelta(t, 1.0, total, 1e-12)
}
