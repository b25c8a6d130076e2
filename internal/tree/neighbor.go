package tree

import (
	"sort"

	"github.com/san-kum/sphlab/internal/particle"
)

// FindNeighbors collects the particles within the query particle's
// effective kernel radius, under the periodic minimum-image metric
// when a periodic domain is configured. Indices reference the build
// array, are filtered against the recorded build length, and come back
// sorted ascending by distance. The query particle finds itself.
func (t *Tree) FindNeighbors(p *particle.Particle, cfg SearchConfig) (Result, error) {
	if !t.Built() {
		return Result{}, ErrNotBuilt
	}
	if !cfg.Valid() {
		return Result{}, ErrInvalidSearchConfig
	}

	c := NewCollector(cfg.MaxNeighbors)
	t.searchNode(0, p, cfg, c)
	res := c.Finalize()

	// Indices past the recorded length would dereference memory the
	// array no longer owns; drop them.
	kept := res.Indices[:0]
	for _, id := range res.Indices {
		if id < t.buildLen {
			kept = append(kept, id)
		}
	}
	res.Indices = kept

	sort.Slice(res.Indices, func(a, b int) bool {
		da := t.params.Periodic.MinImage(t.particles[res.Indices[a]].Pos.Sub(p.Pos)).Abs2()
		db := t.params.Periodic.MinImage(t.particles[res.Indices[b]].Pos.Sub(p.Pos)).Abs2()
		if da != db {
			return da < db
		}
		return res.Indices[a] < res.Indices[b]
	})

	return res, nil
}

func (t *Tree) searchNode(ni int32, p *particle.Particle, cfg SearchConfig, c *Collector) {
	n := &t.nodes[ni]
	if n.num == 0 && n.leaf {
		return
	}

	// Prune: the subtree is unreachable when the effective radius
	// cannot touch the node's bounding cube, measured with the
	// minimum-image displacement to the cube center.
	r := p.Sml
	if cfg.UseMaxKernel && n.kernel > r {
		r = n.kernel
	}
	r *= cfg.KernelScale
	dr := t.params.Periodic.MinImage(p.Pos.Sub(n.center))
	reach := n.edge*0.5 + r
	for d := 0; d < t.params.Dim; d++ {
		if dr[d] > reach || dr[d] < -reach {
			return
		}
	}

	if !n.leaf {
		for _, ci := range n.children {
			if ci != noChild {
				t.searchNode(ci, p, cfg, c)
			}
		}
		return
	}

	for pi := n.first; pi != particle.NoLink; pi = t.particles[pi].Next {
		q := &t.particles[pi]
		// Scale both sides before taking the max, so a symmetric pair
		// agrees on its interaction radius regardless of which member
		// asks.
		rq := p.Sml
		if cfg.UseMaxKernel && q.Sml > rq {
			rq = q.Sml
		}
		rq *= cfg.KernelScale
		d2 := t.params.Periodic.MinImage(p.Pos.Sub(q.Pos)).Abs2()
		if d2 <= rq*rq {
			c.TryAdd(q.ID)
		}
	}
}
