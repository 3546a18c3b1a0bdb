package cohort

import "time"

// Member is the per-user subset of state the engine reads and writes.
// The surrounding application owns the full user record.
type Member struct {
	ID string

	// DiagnosticScore is the raw skill score from the diagnostic
	// intake; nil means the user was never assessed and belongs in
	// the global bucket.
	DiagnosticScore *float64

	Track string

	// Lifetime counters.
	TasksCompleted  int
	PracticeMinutes int

	// Rolling activity.
	WeeklyTasks int
	DaysActive  int
	StreakDays  int

	// Cohort placement.
	Key             Key
	JoinedAt        time.Time
	JoinedSkillTier float64

	// Excluded is set when the user has been inactive for 14 days or
	// more; excluded members keep their slot but are ignored by the
	// balancer and the aggregator.
	Excluded bool
}

// Score returns the diagnostic score and whether one exists.
func (m Member) Score() (float64, bool) {
	if m.DiagnosticScore == nil {
		return 0, false
	}
	return *m.DiagnosticScore, true
}

// Cohort is the materialized state of one peer group.
type Cohort struct {
	Key               Key
	MemberIDs         map[string]struct{}
	MemberCount       int
	ActiveMemberCount int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
