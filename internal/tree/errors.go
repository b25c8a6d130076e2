package tree

import "errors"

// Domain errors for tree construction and queries.
var (
	// ErrPoolExhausted indicates the preallocated node pool ran out
	// during a build. The pool must be sized for the worst-case
	// real+ghost population; silently truncating the tree instead
	// would corrupt every force and neighbor result.
	ErrPoolExhausted = errors.New("tree: node pool exhausted")

	// ErrAlreadySized indicates Resize was called twice.
	ErrAlreadySized = errors.New("tree: node pool already sized")

	// ErrNotSized indicates Make was called before Resize.
	ErrNotSized = errors.New("tree: node pool not sized")

	// ErrNotBuilt indicates a query against a tree with no build.
	ErrNotBuilt = errors.New("tree: no build to query")

	// ErrInvalidNeighborNumber indicates a non-positive neighbor
	// number was passed to NewSearchConfig.
	ErrInvalidNeighborNumber = errors.New("tree: neighbor number must be positive")

	// ErrInvalidSearchConfig indicates an unusable search parameter.
	ErrInvalidSearchConfig = errors.New("tree: invalid search configuration")
)
