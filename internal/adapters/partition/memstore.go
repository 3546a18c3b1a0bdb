package partition

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/momenta/cohortd/internal/domain/cohort"
)

type cohortMeta struct {
	createdAt time.Time
	updatedAt time.Time
}

// MemoryStore implements Store with plain maps under a mutex. It is
// the default store and the reference implementation for tests.
type MemoryStore struct {
	mu      sync.RWMutex
	users   map[string]cohort.Key
	members map[cohort.Key]map[string]struct{}
	meta    map[cohort.Key]cohortMeta
	now     func() time.Time
}

// MemoryOption applies a configuration option to the MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock overrides the time source, for deterministic tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewMemoryStore creates an empty in-memory partition store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		users:   make(map[string]cohort.Key),
		members: make(map[cohort.Key]map[string]struct{}),
		meta:    make(map[cohort.Key]cohortMeta),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Transfer atomically moves a user between cohorts.
func (s *MemoryStore) Transfer(_ context.Context, userID string, from, to cohort.Key) error {
	if to.IsZero() {
		return ErrInvalidKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, known := s.users[userID]
	if known {
		if cur != from {
			return ErrConcurrencyConflict
		}
	} else if !from.IsZero() {
		return ErrConcurrencyConflict
	}

	now := s.now()

	if known {
		delete(s.members[from], userID)
		if len(s.members[from]) == 0 {
			delete(s.members, from)
			delete(s.meta, from)
		} else {
			m := s.meta[from]
			m.updatedAt = now
			s.meta[from] = m
		}
	}

	set, ok := s.members[to]
	if !ok {
		set = make(map[string]struct{})
		s.members[to] = set
		s.meta[to] = cohortMeta{createdAt: now, updatedAt: now}
	} else {
		m := s.meta[to]
		m.updatedAt = now
		s.meta[to] = m
	}
	set[userID] = struct{}{}
	s.users[userID] = to

	return nil
}

// Members returns sorted member IDs for a cohort.
func (s *MemoryStore) Members(_ context.Context, key cohort.Key) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := s.members[key]
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// UserKey returns the user's current cohort key.
func (s *MemoryStore) UserKey(_ context.Context, userID string) (cohort.Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key, ok := s.users[userID]
	if !ok {
		return cohort.Key{}, ErrUserNotFound
	}
	return key, nil
}

// Keys enumerates non-empty cohorts in canonical order.
func (s *MemoryStore) Keys(_ context.Context) ([]cohort.Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]cohort.Key, 0, len(s.members))
	for k := range s.members {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys, nil
}

// Cohort returns the materialized state of one cohort.
func (s *MemoryStore) Cohort(_ context.Context, key cohort.Key) (cohort.Cohort, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set, ok := s.members[key]
	if !ok {
		return cohort.Cohort{}, ErrCohortNotFound
	}
	ids := make(map[string]struct{}, len(set))
	for id := range set {
		ids[id] = struct{}{}
	}
	m := s.meta[key]
	return cohort.Cohort{
		Key:         key,
		MemberIDs:   ids,
		MemberCount: len(ids),
		CreatedAt:   m.createdAt,
		UpdatedAt:   m.updatedAt,
	}, nil
}
