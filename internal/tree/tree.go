// Package tree implements the Barnes-Hut spatial partition used for
// bounded neighbor search and O(N log N) gravity.
//
// Nodes live in a preallocated arena and reference children by index,
// so a rebuild never leaves dangling references. Particles are
// threaded into build buckets through their transient Next index; the
// links are recreated on every build and mean nothing between builds.
//
// The tree is rebuilt from scratch every step against a caller-chosen
// particle array. It keeps only that array's slice header plus the
// recorded length for bounds filtering; the array must outlive the
// tree's use and must not be reallocated while queries run.
package tree

import (
	"fmt"
	"math"

	"github.com/san-kum/sphlab/internal/particle"
	"github.com/san-kum/sphlab/internal/vec"
)

// Params configures a tree. Dim selects 1, 2, or 3 spatial dimensions
// (2^Dim children per node).
type Params struct {
	Dim             int
	MaxLevel        int
	LeafParticleNum int

	// Theta is the Barnes-Hut opening angle; a node of edge length e
	// at distance d acts as a point mass when e^2 <= Theta^2 * d^2.
	Theta float64

	// G is the gravitational constant; zero disables tree gravity.
	G float64

	// Periodic fixes the bounding cube and enables minimum-image
	// distances. Disabled domains size the cube from the particles.
	Periodic vec.Periodic
}

// DefaultParams mirrors the settings the solver uses unless a config
// overrides them.
func DefaultParams(dim int) Params {
	return Params{
		Dim:             dim,
		MaxLevel:        20,
		LeafParticleNum: 1,
		Theta:           0.5,
	}
}

// noChild marks an absent child slot.
const noChild int32 = -1

type node struct {
	children [1 << vec.MaxDim]int32

	// first/num thread member particles through their Next links.
	first int32
	num   int32

	level int32
	leaf  bool

	mass    float64
	mcenter vec.Vec // mass-weighted center, normalized after insertion
	center  vec.Vec // bounding-cube center
	edge    float64

	// kernel caches the subtree's max member smoothing length; the
	// neighbor search prunes with it.
	kernel float64
}

func (n *node) reset(level int32) {
	for i := range n.children {
		n.children[i] = noChild
	}
	n.first = particle.NoLink
	n.num = 0
	n.level = level
	n.leaf = false
	n.mass = 0
	n.mcenter = vec.Vec{}
	n.center = vec.Vec{}
	n.edge = 0
	n.kernel = 0
}

// Tree is a Barnes-Hut tree. Build phases (Resize, Make, SetKernel)
// are single-threaded; once built the tree is read-only and safe to
// query from many goroutines.
type Tree struct {
	params Params
	theta2 float64

	nodes []node
	used  int
	sized bool

	// Build-array bookkeeping: the slice queried at leaves, the
	// length recorded at build time for index filtering, and a
	// generation token bumped per build.
	particles []particle.Particle
	buildLen  int
	buildGen  uint64
	built     bool
}

// New returns a tree configured by params. Resize must be called once
// before the first Make.
func New(params Params) *Tree {
	return &Tree{
		params: params,
		theta2: params.Theta * params.Theta,
	}
}

// Params returns the active configuration.
func (t *Tree) Params() Params { return t.params }

// Resize preallocates the node pool for particleNum particles with a
// growth factor of treeSize (5 covers typical distributions). The pool
// is sized exactly once; callers must include the worst-case ghost
// population in particleNum.
func (t *Tree) Resize(particleNum, treeSize int) error {
	if t.sized {
		return ErrAlreadySized
	}
	if treeSize <= 0 {
		treeSize = 5
	}
	n := particleNum * treeSize
	if n < 1 {
		n = 1
	}
	t.nodes = make([]node, n)
	t.sized = true
	return nil
}

// alloc hands out the next pool node. Exhaustion is fatal: a partial
// tree corrupts every downstream result.
func (t *Tree) alloc(level int32) (int32, error) {
	if t.used >= len(t.nodes) {
		return noChild, fmt.Errorf("%w: %d nodes (level %d); size the pool for the full real+ghost population",
			ErrPoolExhausted, len(t.nodes), level)
	}
	idx := int32(t.used)
	t.used++
	t.nodes[idx].reset(level)
	return idx, nil
}

// Make rebuilds the tree against particles. The slice is recorded for
// later bounds filtering but never mutated beyond the transient Next
// links used for bucketing.
func (t *Tree) Make(particles []particle.Particle) error {
	if !t.sized {
		return ErrNotSized
	}
	n := len(particles)

	// A build in progress is not queryable; only a completed split
	// reinstates the tree.
	t.built = false
	t.used = 0
	root, err := t.alloc(0)
	if err != nil {
		return err
	}
	rn := &t.nodes[root]
	rn.center, rn.edge = t.boundingCube(particles)

	// Thread every particle into the root bucket.
	for i := n - 1; i >= 0; i-- {
		p := &particles[i]
		p.Next = rn.first
		rn.first = int32(i)
		rn.num++
		rn.mass += p.Mass
		rn.mcenter = rn.mcenter.Add(p.Pos.Scale(p.Mass))
	}

	t.particles = particles
	t.buildLen = n

	if err := t.split(root); err != nil {
		return err
	}
	t.buildGen++
	t.built = true
	return nil
}

// Built reports whether the tree holds a complete build. A failed Make
// leaves the tree unbuilt until the next successful one.
func (t *Tree) Built() bool { return t.built }

// Generation returns the build token; it increments on every Make.
func (t *Tree) Generation() uint64 { return t.buildGen }

// BuildLen returns the recorded length of the build array.
func (t *Tree) BuildLen() int { return t.buildLen }

// boundingCube picks the root cube: the fixed periodic extents when a
// periodic domain is configured, otherwise the tight cube around the
// particles.
func (t *Tree) boundingCube(particles []particle.Particle) (vec.Vec, float64) {
	if t.params.Periodic.Valid() {
		min, max := t.params.Periodic.Min(), t.params.Periodic.Max()
		center := min.Add(max).Scale(0.5)
		edge := 0.0
		for d := 0; d < t.params.Dim; d++ {
			edge = math.Max(edge, max[d]-min[d])
		}
		return center, edge
	}

	if len(particles) == 0 {
		return vec.Vec{}, 0
	}
	min, max := particles[0].Pos, particles[0].Pos
	for i := 1; i < len(particles); i++ {
		for d := 0; d < t.params.Dim; d++ {
			min[d] = math.Min(min[d], particles[i].Pos[d])
			max[d] = math.Max(max[d], particles[i].Pos[d])
		}
	}
	center := min.Add(max).Scale(0.5)
	edge := 0.0
	for d := 0; d < t.params.Dim; d++ {
		edge = math.Max(edge, max[d]-min[d])
	}
	// Particles exactly on the cube surface still need a side.
	return center, edge * (1 + 1e-12)
}

// childIndex picks the child octant for a position: one bit per
// dimension, set when the coordinate exceeds the node center.
func (t *Tree) childIndex(pos, center vec.Vec) int {
	idx := 0
	for d := 0; d < t.params.Dim; d++ {
		if pos[d] > center[d] {
			idx |= 1 << d
		}
	}
	return idx
}

// split recursively partitions a node's bucket into children until the
// leaf occupancy threshold or the depth limit is reached, then
// normalizes the center of mass.
func (t *Tree) split(ni int32) error {
	n := &t.nodes[ni]

	if n.mass > 0 {
		n.mcenter = n.mcenter.Scale(1 / n.mass)
	}

	if int(n.num) <= t.params.LeafParticleNum || int(n.level) >= t.params.MaxLevel {
		n.leaf = true
		return nil
	}

	half := n.edge * 0.25

	// Distribute the bucket; each particle moves to exactly one child
	// list, so the shared Next links stay consistent.
	for pi := n.first; pi != particle.NoLink; {
		p := &t.particles[pi]
		next := p.Next

		ci := t.childIndex(p.Pos, n.center)
		if n.children[ci] == noChild {
			child, err := t.alloc(n.level + 1)
			if err != nil {
				return err
			}
			n.children[ci] = child

			c := &t.nodes[child]
			c.edge = n.edge * 0.5
			for d := 0; d < t.params.Dim; d++ {
				if ci&(1<<d) != 0 {
					c.center[d] = n.center[d] + half
				} else {
					c.center[d] = n.center[d] - half
				}
			}
		}

		c := &t.nodes[n.children[ci]]
		p.Next = c.first
		c.first = pi
		c.num++
		c.mass += p.Mass
		c.mcenter = c.mcenter.Add(p.Pos.Scale(p.Mass))

		pi = next
	}

	n.first = particle.NoLink
	n.num = 0

	for _, ci := range n.children {
		if ci == noChild {
			continue
		}
		if err := t.split(ci); err != nil {
			return err
		}
	}
	return nil
}

// SetKernel refreshes the per-node max smoothing length caches with a
// bottom-up pass. Call it after Make and after smoothing lengths
// change.
func (t *Tree) SetKernel() error {
	if !t.Built() {
		return ErrNotBuilt
	}
	t.setKernel(0)
	return nil
}

func (t *Tree) setKernel(ni int32) float64 {
	n := &t.nodes[ni]
	n.kernel = 0

	if n.leaf {
		for pi := n.first; pi != particle.NoLink; pi = t.particles[pi].Next {
			n.kernel = math.Max(n.kernel, t.particles[pi].Sml)
		}
		return n.kernel
	}

	for _, ci := range n.children {
		if ci == noChild {
			continue
		}
		n.kernel = math.Max(n.kernel, t.setKernel(ci))
	}
	return n.kernel
}
