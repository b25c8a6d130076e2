package sim

import (
	"fmt"

	"github.com/san-kum/sphlab/internal/ghost"
	"github.com/san-kum/sphlab/internal/particle"
	"github.com/san-kum/sphlab/internal/tree"
)

// reallocationHeadroom is extra capacity reserved beyond the current
// real+ghost population so that modest ghost-count growth between
// steps never reallocates the search array while the tree still
// references it.
const reallocationHeadroom = 100

// TreeCoordinator owns the combined "search" array the tree is built
// against: the real particles followed by the current ghosts,
// renumbered so that id == index holds across the whole array. The
// tree keeps the array's slice header between rebuild and query, so
// the coordinator reuses the backing storage and only grows it with
// headroom.
type TreeCoordinator struct {
	tree   *tree.Tree
	ghosts *ghost.Manager

	search    []particle.Particle
	realCount int
}

// NewTreeCoordinator couples a tree with a ghost manager. The tree
// must be resized by the caller for the worst-case real+ghost
// population before the first Rebuild.
func NewTreeCoordinator(t *tree.Tree, m *ghost.Manager) *TreeCoordinator {
	return &TreeCoordinator{tree: t, ghosts: m}
}

// Tree exposes the coordinated tree for queries.
func (c *TreeCoordinator) Tree() *tree.Tree { return c.tree }

// Search returns the current combined array. Valid until the next
// Rebuild.
func (c *TreeCoordinator) Search() []particle.Particle { return c.search }

// RealCount returns how many leading entries of Search are real
// particles; the remainder are ghosts.
func (c *TreeCoordinator) RealCount() int { return c.realCount }

// Rebuild synchronizes the search array from the real particles and
// the current ghosts, then rebuilds the tree against it, in four
// ordered steps: sync with capacity headroom, clear stale build links,
// validate id == index, rebuild.
func (c *TreeCoordinator) Rebuild(real []particle.Particle) error {
	c.sync(real)

	for i := range c.search {
		c.search[i].Next = particle.NoLink
	}

	if err := c.validate(); err != nil {
		return err
	}

	return c.tree.Make(c.search)
}

// RefreshKernelAggregates recomputes the per-node max smoothing length
// after smoothing lengths change on a built tree.
func (c *TreeCoordinator) RefreshKernelAggregates() error {
	return c.tree.SetKernel()
}

// sync copies the real particles and appends the ghosts, renumbering
// every ghost to its position in the combined array.
func (c *TreeCoordinator) sync(real []particle.Particle) {
	ghosts := c.ghosts.Ghosts()
	need := len(real) + len(ghosts)

	if cap(c.search) < need {
		c.search = make([]particle.Particle, 0, need+reallocationHeadroom)
	}
	c.search = c.search[:0]
	c.search = append(c.search, real...)
	c.search = append(c.search, ghosts...)
	c.realCount = len(real)

	for i := c.realCount; i < len(c.search); i++ {
		c.search[i].ID = i
	}
}

// validate enforces the id == index precondition for neighbor-index
// resolution. A violation is fatal and diagnosable, never silent.
func (c *TreeCoordinator) validate() error {
	for i := range c.search {
		if c.search[i].ID != i {
			return fmt.Errorf("%w: index %d holds id %d (real count %d); real particles must be numbered by index, ghosts renumbered after them",
				ErrIDMismatch, i, c.search[i].ID, c.realCount)
		}
	}
	return nil
}
