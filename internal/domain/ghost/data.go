package ghost

// UserStats is the caller-facing snapshot of the user's own numbers.
type UserStats struct {
	TasksCompleted  int     `json:"tasks_completed"`
	PracticeMinutes int     `json:"practice_minutes"`
	StreakDays      int     `json:"streak_days"`
	DayNumber       int     `json:"day_number"`
	SkillTier       float64 `json:"skill_tier"`
	Velocity        string  `json:"velocity"`
}

// BenchmarkComparison contrasts the user with a historical benchmark
// slice of users who went on to reach their target.
type BenchmarkComparison struct {
	AvgTasksCompleted  float64 `json:"avg_tasks_completed"`
	AvgPracticeMinutes float64 `json:"avg_practice_minutes"`
	SampleSize         int     `json:"sample_size"`
	Message            Message `json:"message"`
}

// CohortComparison contrasts the user with their live cohort.
type CohortComparison struct {
	CohortKey      string  `json:"cohort_key"`
	CohortSize     int     `json:"cohort_size"`
	AvgTasks       float64 `json:"avg_tasks"`
	MedianTasks    float64 `json:"median_tasks"`
	UserPercentile float64 `json:"user_percentile"`
	Message        Message `json:"message"`
	StreakMessage  Message `json:"streak_message"`
}

// TopPerformers describes the upper tail of the cohort.
type TopPerformers struct {
	P90Tasks float64 `json:"p90_tasks"`
	P75Tasks float64 `json:"p75_tasks"`
	Message  Message `json:"message"`
}

// Data is the full ghost payload for one user. SuccessBenchmark and
// CohortComparison are nil when the underlying data is unavailable,
// never zero-valued.
type Data struct {
	UserStats        UserStats            `json:"user_stats"`
	SuccessBenchmark *BenchmarkComparison `json:"success_benchmark,omitempty"`
	CohortComparison *CohortComparison    `json:"cohort_comparison,omitempty"`
	TopPerformers    *TopPerformers       `json:"top_performers,omitempty"`
}
