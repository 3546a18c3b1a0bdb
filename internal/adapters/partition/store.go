// Package partition defines the durable cohort partition contract and
// its in-memory and Badger-backed implementations.
//
// The store is the single shared mutable resource of the engine. The
// atomic per-user Transfer is the sole mutation path: a user is never
// absent from all cohorts and never present in two at once.
package partition

import (
	"context"

	"github.com/momenta/cohortd/internal/domain/cohort"
)

// Store provides the durable mapping cohort key -> member set and
// user -> current cohort key.
type Store interface {
	// Transfer atomically moves a user from one cohort to another.
	// For a user not yet in the partition, from must be the zero key.
	// Returns ErrConcurrencyConflict when the user's current key does
	// not match from at transfer time.
	Transfer(ctx context.Context, userID string, from, to cohort.Key) error

	// Members returns the member IDs of a cohort, sorted for
	// deterministic iteration. An unknown key yields an empty slice.
	Members(ctx context.Context, key cohort.Key) ([]string, error)

	// UserKey returns the user's current cohort key.
	// Returns ErrUserNotFound for users outside the partition.
	UserKey(ctx context.Context, userID string) (cohort.Key, error)

	// Keys enumerates all cohort keys with at least one member,
	// sorted by canonical serialization.
	Keys(ctx context.Context) ([]cohort.Key, error)

	// Cohort returns the materialized state of one cohort.
	// Returns ErrCohortNotFound for keys with no members.
	Cohort(ctx context.Context, key cohort.Key) (cohort.Cohort, error)
}

// MovementLog is the append-only audit trail of cohort transfers.
// Records are never mutated or deleted.
type MovementLog interface {
	// Append records one movement.
	Append(ctx context.Context, mv cohort.Movement) error

	// Movements returns all recorded movements for a user, oldest
	// first.
	Movements(ctx context.Context, userID string) ([]cohort.Movement, error)

	// Len returns the total number of recorded movements.
	Len(ctx context.Context) (int, error)
}
