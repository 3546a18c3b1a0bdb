package stats

import (
	"context"
	"sync"
	"time"

	"github.com/momenta/cohortd/internal/domain/cohort"
	"github.com/momenta/cohortd/pkg/logger"
	"github.com/momenta/cohortd/pkg/metrics"
)

// Partition is the read-only slice of the partition store the
// aggregator needs.
type Partition interface {
	Keys(ctx context.Context) ([]cohort.Key, error)
	Members(ctx context.Context, key cohort.Key) ([]string, error)
}

// MemberSource resolves member metrics by ID. The second return
// distinguishes "absent" from a real error.
type MemberSource interface {
	Get(ctx context.Context, id string) (cohort.Member, bool, error)
}

// Snapshot is the per-cohort aggregate set computed at one instant.
// It is transient display data, never authoritative state.
type Snapshot struct {
	Key             cohort.Key `json:"key"`
	Count           int        `json:"count"`
	TasksCompleted  Aggregate  `json:"tasks_completed"`
	WeeklyTasks     Aggregate  `json:"weekly_tasks"`
	PracticeMinutes Aggregate  `json:"practice_minutes"`
	Streak          Aggregate  `json:"streak"`
	TakenAt         time.Time  `json:"taken_at"`
}

// Aggregator recomputes cohort snapshots on a schedule. It only reads
// the partition; the full snapshot set is swapped in wholesale so a
// reader always sees aggregates from a single instant.
type Aggregator struct {
	partition Partition
	members   MemberSource

	mu        sync.RWMutex
	snapshots map[cohort.Key]*Snapshot

	now    func() time.Time
	logger logger.Logger
}

// AggregatorOption applies a configuration option to the Aggregator.
type AggregatorOption func(*Aggregator)

// WithClock overrides the time source, for deterministic tests.
func WithClock(now func() time.Time) AggregatorOption {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) AggregatorOption {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAggregator creates an aggregator over the given partition.
func NewAggregator(p Partition, m MemberSource, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		partition: p,
		members:   m,
		snapshots: make(map[cohort.Key]*Snapshot),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run recomputes every cohort snapshot and replaces the previous set.
// Cohorts with no active members yield no snapshot.
func (a *Aggregator) Run(ctx context.Context) error {
	if a.logger == nil {
		a.logger = logger.Get().Named("stats")
	}
	start := time.Now()

	keys, err := a.partition.Keys(ctx)
	if err != nil {
		return err
	}

	next := make(map[cohort.Key]*Snapshot, len(keys))
	takenAt := a.now()

	for _, key := range keys {
		snap, err := a.snapshot(ctx, key, takenAt)
		if err != nil {
			return err
		}
		if snap != nil {
			next[key] = snap
		}
	}

	a.mu.Lock()
	a.snapshots = next
	a.mu.Unlock()

	elapsed := time.Since(start)
	metrics.RecordAggregationRun()
	metrics.RecordAggregationDuration(elapsed.Seconds())
	metrics.UpdateSnapshotCount(len(next))

	a.logger.Info(ctx, "aggregation cycle complete",
		logger.Int("cohorts", len(keys)),
		logger.Int("snapshots", len(next)),
		logger.Duration("elapsed", elapsed),
	)
	return nil
}

func (a *Aggregator) snapshot(ctx context.Context, key cohort.Key, takenAt time.Time) (*Snapshot, error) {
	ids, err := a.partition.Members(ctx, key)
	if err != nil {
		return nil, err
	}

	var tasks, weekly, minutes, streaks []float64
	for _, id := range ids {
		m, ok, err := a.members.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		// Membership may briefly lag the roster while a balance
		// commit is underway; skip unresolved members.
		if !ok || m.Excluded {
			continue
		}
		tasks = append(tasks, float64(m.TasksCompleted))
		weekly = append(weekly, float64(m.WeeklyTasks))
		minutes = append(minutes, float64(m.PracticeMinutes))
		streaks = append(streaks, float64(m.StreakDays))
	}

	if len(tasks) == 0 {
		return nil, nil
	}

	return &Snapshot{
		Key:             key,
		Count:           len(tasks),
		TasksCompleted:  aggregate(tasks),
		WeeklyTasks:     aggregate(weekly),
		PracticeMinutes: aggregate(minutes),
		Streak:          aggregate(streaks),
		TakenAt:         takenAt,
	}, nil
}

// Snapshot returns the current aggregate for one cohort, or false when
// none exists (unknown or empty cohort).
func (a *Aggregator) Snapshot(key cohort.Key) (*Snapshot, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s, ok := a.snapshots[key]
	return s, ok
}
