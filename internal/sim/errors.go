package sim

import "errors"

var (
	// ErrBadSmoothingLength reports a non-positive smoothing length
	// found while deriving the kernel support radius.
	ErrBadSmoothingLength = errors.New("sim: non-positive smoothing length")

	// ErrIDMismatch reports a particle whose id does not match its
	// index in the search array; neighbor indices returned by the
	// tree would be meaningless.
	ErrIDMismatch = errors.New("sim: particle id does not match array index")
)
