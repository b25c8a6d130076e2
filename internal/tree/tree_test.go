package tree

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/san-kum/sphlab/internal/particle"
	"github.com/san-kum/sphlab/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lattice1D(n int, lo, hi, sml float64) []particle.Particle {
	spacing := (hi - lo) / float64(n)
	parts := make([]particle.Particle, n)
	for i := range parts {
		parts[i] = particle.Particle{
			Pos:  vec.Vec{lo + (float64(i)+0.5)*spacing},
			Mass: 1.0 / float64(n),
			Sml:  sml,
			ID:   i,
			Next: particle.NoLink,
		}
	}
	return parts
}

func bruteForceNeighbors(parts []particle.Particle, p *particle.Particle, per vec.Periodic, symmetric bool) []int {
	var ids []int
	for i := range parts {
		r := p.Sml
		if symmetric && parts[i].Sml > r {
			r = parts[i].Sml
		}
		d2 := per.MinImage(p.Pos.Sub(parts[i].Pos)).Abs2()
		if d2 <= r*r {
			ids = append(ids, parts[i].ID)
		}
	}
	sort.Slice(ids, func(a, b int) bool {
		da := per.MinImage(parts[ids[a]].Pos.Sub(p.Pos)).Abs2()
		db := per.MinImage(parts[ids[b]].Pos.Sub(p.Pos)).Abs2()
		if da != db {
			return da < db
		}
		return ids[a] < ids[b]
	})
	return ids
}

func TestResizeTwiceFails(t *testing.T) {
	tr := New(DefaultParams(1))
	require.NoError(t, tr.Resize(10, 5))
	assert.ErrorIs(t, tr.Resize(10, 5), ErrAlreadySized)
}

func TestMakeBeforeResizeFails(t *testing.T) {
	tr := New(DefaultParams(1))
	assert.ErrorIs(t, tr.Make(lattice1D(4, 0, 1, 0.1)), ErrNotSized)
}

func TestQueriesBeforeMakeFail(t *testing.T) {
	tr := New(DefaultParams(1))
	require.NoError(t, tr.Resize(4, 5))

	p := particle.Particle{Sml: 0.1}
	cfg, _ := NewSearchConfig(4, false)
	_, err := tr.FindNeighbors(&p, cfg)
	assert.ErrorIs(t, err, ErrNotBuilt)
	assert.ErrorIs(t, tr.SetKernel(), ErrNotBuilt)
}

func TestPoolExhaustionIsFatal(t *testing.T) {
	// A pool of a single node cannot split 64 spread-out particles.
	params := DefaultParams(1)
	tr := New(params)
	tr.nodes = make([]node, 2)
	tr.sized = true

	err := tr.Make(lattice1D(64, 0, 1, 0.01))
	assert.ErrorIs(t, err, ErrPoolExhausted)
}

func TestBuildDeterminism(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	parts := make([]particle.Particle, 200)
	for i := range parts {
		parts[i] = particle.Particle{
			Pos:  vec.Vec{rng.Float64(), rng.Float64()},
			Mass: 0.5 + rng.Float64(),
			Sml:  0.05,
			ID:   i,
			Next: particle.NoLink,
		}
	}

	params := DefaultParams(2)
	tr := New(params)
	require.NoError(t, tr.Resize(len(parts), 5))
	require.NoError(t, tr.Make(parts))

	rootMass := tr.nodes[0].mass
	rootCOM := tr.nodes[0].mcenter
	used := tr.used

	for rebuild := 0; rebuild < 3; rebuild++ {
		require.NoError(t, tr.Make(parts))
		assert.Equal(t, used, tr.used, "node count must be reproducible")
		assert.InDelta(t, rootMass, tr.nodes[0].mass, 1e-12)
		for d := 0; d < 2; d++ {
			assert.InDelta(t, rootCOM[d], tr.nodes[0].mcenter[d], 1e-12)
		}
	}
}

func TestRootAggregates(t *testing.T) {
	parts := []particle.Particle{
		{Pos: vec.Vec{0.0}, Mass: 1.0, ID: 0, Next: particle.NoLink},
		{Pos: vec.Vec{1.0}, Mass: 3.0, ID: 1, Next: particle.NoLink},
	}
	tr := New(DefaultParams(1))
	require.NoError(t, tr.Resize(2, 5))
	require.NoError(t, tr.Make(parts))

	assert.InDelta(t, 4.0, tr.nodes[0].mass, 1e-12)
	assert.InDelta(t, 0.75, tr.nodes[0].mcenter[0], 1e-12, "center of mass is mass-normalized")
}

func TestNeighborsMatchBruteForceUniformLattice(t *testing.T) {
	// 100 uniformly spaced particles, single-particle leaves, radius
	// two spacings: the tree result matches an O(N^2) scan exactly.
	const n = 100
	spacing := 1.0 / n
	parts := lattice1D(n, 0, 1, 2*spacing)

	params := DefaultParams(1)
	params.MaxLevel = 20
	params.LeafParticleNum = 1
	tr := New(params)
	require.NoError(t, tr.Resize(n, 5))
	require.NoError(t, tr.Make(parts))
	require.NoError(t, tr.SetKernel())

	cfg, err := NewSearchConfig(8, false)
	require.NoError(t, err)

	mid := &parts[n/2]
	res, err := tr.FindNeighbors(mid, cfg)
	require.NoError(t, err)
	assert.False(t, res.Truncated)

	want := bruteForceNeighbors(parts, mid, vec.Periodic{}, false)
	assert.Equal(t, want, res.Indices)
}

func TestNeighborsMatchBruteForceRandomPeriodic(t *testing.T) {
	const n = 150
	per := vec.NewPeriodic(2, vec.Vec{0, 0}, vec.Vec{1, 1})
	rng := rand.New(rand.NewSource(42))

	parts := make([]particle.Particle, n)
	for i := range parts {
		parts[i] = particle.Particle{
			Pos:  vec.Vec{rng.Float64(), rng.Float64()},
			Mass: 1,
			Sml:  0.08 + 0.04*rng.Float64(),
			ID:   i,
			Next: particle.NoLink,
		}
	}

	params := DefaultParams(2)
	params.Periodic = per
	tr := New(params)
	require.NoError(t, tr.Resize(n, 5))
	require.NoError(t, tr.Make(parts))
	require.NoError(t, tr.SetKernel())

	for _, symmetric := range []bool{false, true} {
		cfg, err := NewSearchConfig(64, symmetric)
		require.NoError(t, err)
		for i := 0; i < n; i += 17 {
			res, err := tr.FindNeighbors(&parts[i], cfg)
			require.NoError(t, err)
			want := bruteForceNeighbors(parts, &parts[i], per, symmetric)
			if res.Truncated {
				continue
			}
			assert.Equal(t, want, res.Indices, "particle %d symmetric=%v", i, symmetric)
		}
	}
}

func TestNeighborsAcrossPeriodicSeam(t *testing.T) {
	// Two particles hugging opposite faces of [-0.5, 1.5] are only
	// 0.1 apart under the minimum image.
	parts := []particle.Particle{
		{Pos: vec.Vec{-0.45}, Mass: 1, Sml: 0.2, ID: 0, Next: particle.NoLink},
		{Pos: vec.Vec{1.45}, Mass: 1, Sml: 0.2, ID: 1, Next: particle.NoLink},
		{Pos: vec.Vec{0.5}, Mass: 1, Sml: 0.2, ID: 2, Next: particle.NoLink},
	}
	params := DefaultParams(1)
	params.Periodic = vec.NewPeriodic(1, vec.Vec{-0.5}, vec.Vec{1.5})
	tr := New(params)
	require.NoError(t, tr.Resize(len(parts), 5))
	require.NoError(t, tr.Make(parts))
	require.NoError(t, tr.SetKernel())

	cfg, _ := NewSearchConfig(4, false)
	res, err := tr.FindNeighbors(&parts[0], cfg)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1}, res.Indices, "seam neighbor found before the distant interior particle")
}

func TestNeighborOrderingByDistance(t *testing.T) {
	parts := []particle.Particle{
		{Pos: vec.Vec{0.50}, Mass: 1, Sml: 0.3, ID: 0, Next: particle.NoLink},
		{Pos: vec.Vec{0.70}, Mass: 1, Sml: 0.3, ID: 1, Next: particle.NoLink},
		{Pos: vec.Vec{0.55}, Mass: 1, Sml: 0.3, ID: 2, Next: particle.NoLink},
		{Pos: vec.Vec{0.35}, Mass: 1, Sml: 0.3, ID: 3, Next: particle.NoLink},
	}
	tr := New(DefaultParams(1))
	require.NoError(t, tr.Resize(len(parts), 5))
	require.NoError(t, tr.Make(parts))
	require.NoError(t, tr.SetKernel())

	cfg, _ := NewSearchConfig(8, false)
	res, err := tr.FindNeighbors(&parts[0], cfg)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 2, 3, 1}, res.Indices)
}

func TestTruncationFlagged(t *testing.T) {
	parts := lattice1D(50, 0, 1, 1.0) // everyone sees everyone
	tr := New(DefaultParams(1))
	require.NoError(t, tr.Resize(len(parts), 5))
	require.NoError(t, tr.Make(parts))
	require.NoError(t, tr.SetKernel())

	cfg := SearchConfig{MaxNeighbors: 10, KernelScale: 1}
	res, err := tr.FindNeighbors(&parts[25], cfg)
	require.NoError(t, err)

	assert.True(t, res.Truncated)
	assert.Equal(t, 10, res.Len())
	assert.Equal(t, 50, res.TotalCandidates)
}

func TestSetKernelPropagatesMaxSml(t *testing.T) {
	parts := lattice1D(16, 0, 1, 0.05)
	parts[11].Sml = 0.4

	tr := New(DefaultParams(1))
	require.NoError(t, tr.Resize(len(parts), 5))
	require.NoError(t, tr.Make(parts))
	require.NoError(t, tr.SetKernel())

	assert.InDelta(t, 0.4, tr.nodes[0].kernel, 1e-12, "root caches the global max smoothing length")
}

func TestSymmetricSearchSeesLargeNeighborKernel(t *testing.T) {
	// The query particle has a tiny kernel but a fat neighbor; only a
	// symmetric search may use the neighbor's radius.
	parts := []particle.Particle{
		{Pos: vec.Vec{0.2}, Mass: 1, Sml: 0.01, ID: 0, Next: particle.NoLink},
		{Pos: vec.Vec{0.8}, Mass: 1, Sml: 0.7, ID: 1, Next: particle.NoLink},
	}
	tr := New(DefaultParams(1))
	require.NoError(t, tr.Resize(len(parts), 5))
	require.NoError(t, tr.Make(parts))
	require.NoError(t, tr.SetKernel())

	plain, _ := NewSearchConfig(4, false)
	res, err := tr.FindNeighbors(&parts[0], plain)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, res.Indices)

	symmetric, _ := NewSearchConfig(4, true)
	res, err = tr.FindNeighbors(&parts[0], symmetric)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, res.Indices)
}

func TestSymmetricScaledSearchIsReciprocal(t *testing.T) {
	// With a kernel scale the effective radius is scale*max(h_i, h_j)
	// for both members of a pair: a small-kernel particle must see its
	// fat neighbor exactly when the fat neighbor sees it. Scaling only
	// the query's smoothing length would break this for mixed h.
	parts := []particle.Particle{
		{Pos: vec.Vec{0.1}, Mass: 1, Sml: 0.01, ID: 0, Next: particle.NoLink},
		{Pos: vec.Vec{0.7}, Mass: 1, Sml: 0.35, ID: 1, Next: particle.NoLink},
	}
	tr := New(DefaultParams(1))
	require.NoError(t, tr.Resize(len(parts), 5))
	require.NoError(t, tr.Make(parts))
	require.NoError(t, tr.SetKernel())

	base, err := NewSearchConfig(4, true)
	require.NoError(t, err)
	cfg, err := base.WithKernelScale(2)
	require.NoError(t, err)

	// Separation 0.6 is inside 2*max(h) = 0.7 but outside both
	// max(2*h_0, h_1) = 0.35 and h_0 + h_1 = 0.36.
	res, err := tr.FindNeighbors(&parts[0], cfg)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, res.Indices, "small-kernel particle sees the fat neighbor")

	res, err = tr.FindNeighbors(&parts[1], cfg)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0}, res.Indices, "fat particle sees the small one back")
}

func TestKernelScaleValidation(t *testing.T) {
	base, err := NewSearchConfig(4, false)
	require.NoError(t, err)
	assert.Equal(t, 1.0, base.KernelScale)

	_, err = base.WithKernelScale(0)
	assert.ErrorIs(t, err, ErrInvalidSearchConfig)
	_, err = base.WithKernelScale(-2)
	assert.ErrorIs(t, err, ErrInvalidSearchConfig)

	parts := lattice1D(4, 0, 1, 0.5)
	tr := New(DefaultParams(1))
	require.NoError(t, tr.Resize(len(parts), 5))
	require.NoError(t, tr.Make(parts))
	require.NoError(t, tr.SetKernel())

	_, err = tr.FindNeighbors(&parts[0], SearchConfig{MaxNeighbors: 8})
	assert.ErrorIs(t, err, ErrInvalidSearchConfig, "a zero kernel scale never searches silently at radius zero")
}

func TestFailedBuildLeavesTreeUnbuilt(t *testing.T) {
	params := DefaultParams(1)
	tr := New(params)
	require.NoError(t, tr.Resize(64, 5))

	parts := lattice1D(64, 0, 1, 0.05)
	require.NoError(t, tr.Make(parts))
	gen := tr.Generation()

	// Exhaust the pool mid-build: the partial tree must not be
	// queryable, and the generation must not advance.
	tr.nodes = tr.nodes[:2]
	err := tr.Make(parts)
	require.ErrorIs(t, err, ErrPoolExhausted)

	assert.False(t, tr.Built())
	assert.Equal(t, gen, tr.Generation())

	cfg, _ := NewSearchConfig(8, false)
	_, err = tr.FindNeighbors(&parts[0], cfg)
	assert.ErrorIs(t, err, ErrNotBuilt)
}

func TestTreeForceMatchesDirectSum(t *testing.T) {
	// With theta = 0 every node opens, so the tree walk reduces to the
	// exact softened pairwise sum.
	rng := rand.New(rand.NewSource(3))
	const n = 40
	parts := make([]particle.Particle, n)
	for i := range parts {
		parts[i] = particle.Particle{
			Pos:  vec.Vec{rng.Float64(), rng.Float64(), rng.Float64()},
			Mass: 1.0 / n,
			Sml:  0.05,
			ID:   i,
			Next: particle.NoLink,
		}
	}

	params := DefaultParams(3)
	params.G = 1.0
	params.Theta = 0
	tr := New(params)
	require.NoError(t, tr.Resize(n, 8))
	require.NoError(t, tr.Make(parts))
	require.NoError(t, tr.SetKernel())

	p := parts[0]
	require.NoError(t, tr.TreeForce(&p))

	var acc vec.Vec
	phi := 0.0
	for j := 1; j < n; j++ {
		dr := parts[j].Pos.Sub(parts[0].Pos)
		r := dr.Abs()
		h := 0.5 * (parts[0].Sml + parts[j].Sml)
		acc = acc.Add(dr.Scale(parts[j].Mass * gravForceFactor(r, h)))
		phi -= parts[j].Mass * gravPotential(r, h)
	}

	for d := 0; d < 3; d++ {
		assert.InDelta(t, acc[d], p.Acc[d], 1e-10)
	}
	assert.InDelta(t, phi, p.Phi, 1e-10)
}

func TestTreeForceApproximatesDirectSum(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	const n = 300
	parts := make([]particle.Particle, n)
	for i := range parts {
		parts[i] = particle.Particle{
			Pos:  vec.Vec{rng.Float64(), rng.Float64(), rng.Float64()},
			Mass: 1.0 / n,
			Sml:  0.02,
			ID:   i,
			Next: particle.NoLink,
		}
	}

	// Each tree threads bucket links through its build array, so the
	// two builds need separate copies.
	exactParts := make([]particle.Particle, n)
	copy(exactParts, parts)

	exactParams := DefaultParams(3)
	exactParams.G = 1.0
	exactParams.Theta = 0
	exact := New(exactParams)
	require.NoError(t, exact.Resize(n, 8))
	require.NoError(t, exact.Make(exactParts))
	require.NoError(t, exact.SetKernel())

	approxParams := DefaultParams(3)
	approxParams.G = 1.0
	approxParams.Theta = 0.5
	approx := New(approxParams)
	require.NoError(t, approx.Resize(n, 8))
	require.NoError(t, approx.Make(parts))
	require.NoError(t, approx.SetKernel())

	pe := parts[7]
	pa := parts[7]
	require.NoError(t, exact.TreeForce(&pe))
	require.NoError(t, approx.TreeForce(&pa))

	rel := pe.Acc.Sub(pa.Acc).Abs() / pe.Acc.Abs()
	assert.Less(t, rel, 0.05, "opening angle 0.5 stays within a few percent of direct summation")
}

func TestGravityKernelContinuity(t *testing.T) {
	const h = 0.3
	// At u = 2 both kernels hand over to the Newtonian point mass.
	r := 2 * h
	assert.InDelta(t, 1/(r*r*r), gravForceFactor(r*(1-1e-9), h), 1e-6)
	assert.InDelta(t, 1/r, gravPotential(r*(1-1e-9), h), 1e-6)

	// At u = 1 the two spline branches agree.
	r = h
	assert.InDelta(t, gravForceFactor(r*(1-1e-9), h), gravForceFactor(r*(1+1e-9), h), 1e-6)
	assert.InDelta(t, gravPotential(r*(1-1e-9), h), gravPotential(r*(1+1e-9), h), 1e-6)

	// Softened force stays finite at zero separation.
	assert.False(t, math.IsInf(gravForceFactor(0, h), 0))
}

func TestMakeRecordsBuildMetadata(t *testing.T) {
	parts := lattice1D(10, 0, 1, 0.1)
	tr := New(DefaultParams(1))
	require.NoError(t, tr.Resize(10, 5))

	require.NoError(t, tr.Make(parts))
	g1 := tr.Generation()
	assert.Equal(t, 10, tr.BuildLen())

	require.NoError(t, tr.Make(parts[:7]))
	assert.Equal(t, g1+1, tr.Generation(), "every build bumps the generation token")
	assert.Equal(t, 7, tr.BuildLen())
}

func TestStaleIndicesFiltered(t *testing.T) {
	// Particles carrying ids beyond the build array length (a ghost
	// renumbering bug upstream) must never leak out of a query.
	parts := lattice1D(5, 0, 1, 0.5)
	parts[4].ID = 99

	tr := New(DefaultParams(1))
	require.NoError(t, tr.Resize(5, 5))
	require.NoError(t, tr.Make(parts))
	require.NoError(t, tr.SetKernel())

	cfg, _ := NewSearchConfig(8, false)
	res, err := tr.FindNeighbors(&parts[0], cfg)
	require.NoError(t, err)
	for _, id := range res.Indices {
		assert.Less(t, id, 5)
	}
}
