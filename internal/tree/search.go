package tree

import "fmt"

const (
	// safetyFactor scales the nominal neighbor number into the
	// collector capacity, allowing uneven particle distributions to
	// exceed the nominal count without truncation.
	safetyFactor = 20

	// maxReasonableNeighbors is a sanity ceiling; typical SPH runs
	// see tens to a few hundred neighbors per particle.
	maxReasonableNeighbors = 100000
)

// SearchConfig is a validated neighbor-search request. Build it with
// NewSearchConfig; a zero value is invalid.
type SearchConfig struct {
	// MaxNeighbors caps the result size.
	MaxNeighbors int

	// UseMaxKernel widens the search radius to the larger of the
	// query particle's smoothing length and the candidate side's,
	// which symmetric i-j kernels require.
	UseMaxKernel bool

	// KernelScale multiplies every smoothing length before the radius
	// comparison, on the query and candidate sides alike, so kernels
	// whose support exceeds h search in consistent units.
	KernelScale float64
}

// NewSearchConfig derives a capacity from the nominal neighbor number
// and records the kernel-selection rule. Rejects non-positive counts.
func NewSearchConfig(neighborNumber int, symmetric bool) (SearchConfig, error) {
	if neighborNumber <= 0 {
		return SearchConfig{}, fmt.Errorf("%w: got %d", ErrInvalidNeighborNumber, neighborNumber)
	}
	max := neighborNumber * safetyFactor
	if max > maxReasonableNeighbors {
		max = maxReasonableNeighbors
	}
	return SearchConfig{MaxNeighbors: max, UseMaxKernel: symmetric, KernelScale: 1}, nil
}

// WithKernelScale returns a copy searching at scale times each
// smoothing length. Rejects non-positive scales.
func (c SearchConfig) WithKernelScale(scale float64) (SearchConfig, error) {
	if scale <= 0 {
		return SearchConfig{}, fmt.Errorf("%w: kernel scale %g", ErrInvalidSearchConfig, scale)
	}
	c.KernelScale = scale
	return c, nil
}

// Valid reports whether the configuration is usable.
func (c SearchConfig) Valid() bool {
	return c.MaxNeighbors > 0 && c.MaxNeighbors <= maxReasonableNeighbors &&
		c.KernelScale > 0
}

// Result is the immutable outcome of one neighbor search. Indices are
// sorted ascending by distance to the query particle.
type Result struct {
	// Indices identifies neighbors within the array the tree was
	// built against.
	Indices []int

	// Truncated is set when candidates were rejected for capacity;
	// the nearest MaxNeighbors survivors usually remain usable, so
	// truncation is non-fatal and left to the caller's logging policy.
	Truncated bool

	// TotalCandidates counts every candidate offered, accepted or not.
	TotalCandidates int
}

func (r Result) Len() int    { return len(r.Indices) }
func (r Result) Empty() bool { return len(r.Indices) == 0 }

// Collector accumulates neighbor candidates under a fixed capacity.
// Every offer is counted so truncation is detectable afterwards; the
// collector is single-use and finalized exactly once.
type Collector struct {
	indices   []int
	capacity  int
	attempts  int
	finalized bool
}

// NewCollector preallocates storage for at most capacity neighbors.
func NewCollector(capacity int) *Collector {
	return &Collector{
		indices:  make([]int, 0, capacity),
		capacity: capacity,
	}
}

// TryAdd offers a candidate index. Negative ids and offers past
// capacity are rejected but still counted.
func (c *Collector) TryAdd(id int) bool {
	if c.finalized {
		panic("tree: TryAdd on finalized collector")
	}
	c.attempts++
	if id < 0 {
		return false
	}
	if len(c.indices) >= c.capacity {
		return false
	}
	c.indices = append(c.indices, id)
	return true
}

// Full reports whether the collector reached capacity; traversals use
// it for early exit.
func (c *Collector) Full() bool {
	return len(c.indices) >= c.capacity
}

// Finalize yields the result and consumes the collector. Calling it
// twice is a programming error and panics.
func (c *Collector) Finalize() Result {
	if c.finalized {
		panic("tree: collector finalized twice")
	}
	c.finalized = true
	return Result{
		Indices:         c.indices,
		Truncated:       c.attempts > len(c.indices),
		TotalCandidates: c.attempts,
	}
}
