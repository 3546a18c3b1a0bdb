package roster

import "errors"

// Sentinel kinds for roster errors.
var (
	ErrMemberNotFound = errors.New("member not found")
)
