// Package classify derives a member's cohort key from raw metrics.
// All functions are pure: deterministic, no randomness, no I/O.
package classify

import (
	"math"

	"github.com/momenta/cohortd/internal/domain/cohort"
)

// Velocity thresholds in tasks per week.
const (
	slowCeiling   = 10.0
	mediumCeiling = 20.0

	// Members with less than a week of history have no meaningful
	// throughput signal and default to the medium tier.
	minHistoryDays = 7
)

// SkillTier buckets a diagnostic score to the nearest 0.5 increment,
// clamped to [4.0, 9.0].
func SkillTier(score float64) float64 {
	tier := math.Round(score*2) / 2
	if tier < cohort.MinSkillTier {
		return cohort.MinSkillTier
	}
	if tier > cohort.MaxSkillTier {
		return cohort.MaxSkillTier
	}
	return tier
}

// VelocityTier categorizes learning pace from task throughput.
func VelocityTier(daysActive, tasksCompleted int) cohort.Velocity {
	if daysActive < minHistoryDays {
		return cohort.VelocityMedium
	}
	weeks := math.Max(1, float64(daysActive)/7)
	tasksPerWeek := float64(tasksCompleted) / weeks
	switch {
	case tasksPerWeek < slowCeiling:
		return cohort.VelocitySlow
	case tasksPerWeek < mediumCeiling:
		return cohort.VelocityMedium
	default:
		return cohort.VelocityFast
	}
}

// Key derives the cohort key for a member. A member without a
// diagnostic score cannot be classified; the caller must route them
// to the global bucket.
func Key(m cohort.Member) (cohort.Key, error) {
	score, ok := m.Score()
	if !ok {
		return cohort.Key{}, ErrMissingDiagnostic
	}
	if !cohort.ValidTrack(m.Track) {
		return cohort.Key{}, ErrInvalidTrack
	}
	return cohort.NewKey(
		SkillTier(score),
		VelocityTier(m.DaysActive, m.TasksCompleted),
		m.Track,
	), nil
}
