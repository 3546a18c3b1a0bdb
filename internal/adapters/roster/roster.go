// Package roster provides access to the member directory: the
// per-user metric subset the engine reads, owned upstream by the
// surrounding application.
package roster

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/momenta/cohortd/internal/domain/cohort"
)

// Roster reads and updates the cohort-relevant slice of user state.
type Roster interface {
	// Get returns one member. Returns ErrMemberNotFound for unknown IDs.
	Get(ctx context.Context, id string) (cohort.Member, error)

	// All returns every member, sorted by ID.
	All(ctx context.Context) ([]cohort.Member, error)

	// Upsert inserts or replaces a member record.
	Upsert(ctx context.Context, m cohort.Member) error

	// SetPlacement updates a member's cohort placement after a
	// committed transfer.
	SetPlacement(ctx context.Context, id string, key cohort.Key, joinedAt time.Time, joinedSkillTier float64) error
}

// MemoryRoster implements Roster with a map under a mutex.
type MemoryRoster struct {
	mu      sync.RWMutex
	members map[string]cohort.Member
}

// NewMemoryRoster creates an empty in-memory roster.
func NewMemoryRoster() *MemoryRoster {
	return &MemoryRoster{members: make(map[string]cohort.Member)}
}

// Get returns one member.
func (r *MemoryRoster) Get(_ context.Context, id string) (cohort.Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.members[id]
	if !ok {
		return cohort.Member{}, ErrMemberNotFound
	}
	return m, nil
}

// All returns every member, sorted by ID.
func (r *MemoryRoster) All(_ context.Context) ([]cohort.Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]cohort.Member, 0, len(r.members))
	for _, m := range r.members {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Upsert inserts or replaces a member record.
func (r *MemoryRoster) Upsert(_ context.Context, m cohort.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[m.ID] = m
	return nil
}

// SetPlacement updates a member's cohort placement.
func (r *MemoryRoster) SetPlacement(_ context.Context, id string, key cohort.Key, joinedAt time.Time, joinedSkillTier float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[id]
	if !ok {
		return ErrMemberNotFound
	}
	m.Key = key
	m.JoinedAt = joinedAt
	m.JoinedSkillTier = joinedSkillTier
	r.members[id] = m
	return nil
}

var _ Roster = (*MemoryRoster)(nil)
