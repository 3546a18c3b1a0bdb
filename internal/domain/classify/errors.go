package classify

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	// ErrMissingDiagnostic marks a member with no diagnostic score;
	// the member is routed to the global bucket, not failed.
	ErrMissingDiagnostic = errors.New("missing diagnostic score")

	// ErrInvalidTrack marks a track identifier that cannot survive
	// the canonical key serialization.
	ErrInvalidTrack = errors.New("invalid track identifier")
)
