// Package benchmark holds the immutable historical success benchmarks
// used for ghost comparisons. The active snapshot is a versioned,
// read-only value; a monthly out-of-band job swaps in a replacement
// wholesale rather than mutating entries.
package benchmark

import (
	"sync/atomic"
)

// MinSampleSize is the minimum cohort-of-origin size for a benchmark
// to exist. Entries below it are dropped at load time: a lookup miss,
// not a zero.
const MinSampleSize = 50

// Allowed percentile bands for published benchmarks.
var validPercentiles = map[int]struct{}{10: {}, 25: {}, 50: {}}

// Entry is one published benchmark: the aggregate trajectory of users
// who started at StartingSkill and reached TargetBand, sampled at
// DayNumber for a given success percentile.
type Entry struct {
	TargetBand         float64 `yaml:"target_band" json:"target_band"`
	StartingSkill      float64 `yaml:"starting_skill" json:"starting_skill"`
	DayNumber          int     `yaml:"day_number" json:"day_number"`
	Percentile         int     `yaml:"percentile" json:"percentile"`
	AvgTasksCompleted  float64 `yaml:"avg_tasks_completed" json:"avg_tasks_completed"`
	AvgPracticeMinutes float64 `yaml:"avg_practice_minutes" json:"avg_practice_minutes"`
	SampleSize         int     `yaml:"sample_size" json:"sample_size"`
}

type lookupKey struct {
	targetBand    float64
	startingSkill float64
	dayNumber     int
	percentile    int
}

// Snapshot is one immutable benchmark version. Build it once, then
// only read it.
type Snapshot struct {
	version string
	entries map[lookupKey]Entry
}

// NewSnapshot builds a snapshot from entries, dropping any below
// MinSampleSize or outside the valid percentile bands. Later
// duplicates of the unique 4-tuple overwrite earlier ones.
func NewSnapshot(version string, entries []Entry) *Snapshot {
	s := &Snapshot{
		version: version,
		entries: make(map[lookupKey]Entry, len(entries)),
	}
	for _, e := range entries {
		if e.SampleSize < MinSampleSize {
			continue
		}
		if _, ok := validPercentiles[e.Percentile]; !ok {
			continue
		}
		if e.DayNumber < 1 || e.DayNumber > 90 {
			continue
		}
		s.entries[lookupKey{e.TargetBand, e.StartingSkill, e.DayNumber, e.Percentile}] = e
	}
	return s
}

// Version returns the snapshot's version label.
func (s *Snapshot) Version() string { return s.version }

// Len returns the number of qualifying entries.
func (s *Snapshot) Len() int { return len(s.entries) }

// Repository serves benchmark lookups against the active snapshot.
// Swap replaces the whole version atomically; lookups never block.
type Repository struct {
	active atomic.Pointer[Snapshot]
}

// NewRepository creates a repository with an empty initial snapshot.
func NewRepository() *Repository {
	r := &Repository{}
	r.active.Store(NewSnapshot("empty", nil))
	return r
}

// Get returns the benchmark for the unique 4-tuple, or false when no
// qualifying entry exists. Absence is by design, never an error.
func (r *Repository) Get(targetBand, startingSkill float64, dayNumber, percentile int) (Entry, bool) {
	s := r.active.Load()
	e, ok := s.entries[lookupKey{targetBand, startingSkill, dayNumber, percentile}]
	return e, ok
}

// Swap atomically replaces the active snapshot.
func (r *Repository) Swap(s *Snapshot) {
	if s != nil {
		r.active.Store(s)
	}
}

// Version returns the active snapshot version.
func (r *Repository) Version() string {
	return r.active.Load().version
}
