package benchmark

import "errors"

// Sentinel kinds for benchmark errors.
var (
	ErrMissingVersion = errors.New("benchmark seed missing version")
)
