package partition

import "errors"

// Sentinel kinds for partition errors.
var (
	// ErrConcurrencyConflict marks a transfer whose from key did not
	// match the user's current key, indicating a concurrent move.
	ErrConcurrencyConflict = errors.New("concurrent cohort mutation detected")

	// ErrUserNotFound marks a lookup for a user outside the partition.
	ErrUserNotFound = errors.New("user not in partition")

	// ErrCohortNotFound marks a lookup for a cohort with no members.
	ErrCohortNotFound = errors.New("cohort not found")

	// ErrInvalidKey marks a transfer to the zero (unassigned) key.
	ErrInvalidKey = errors.New("invalid cohort key")
)
