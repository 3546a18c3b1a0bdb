package loadsim

import "time"

// Config holds configuration for the load simulation
type Config struct {
	BaseURL        string        // Base URL of the service
	NumMembers     int           // Number of members to generate
	ProgressRounds int           // Progress updates submitted per member
	Workers        int           // Number of concurrent workers
	Timeout        time.Duration // HTTP request timeout
	OutputFile     string        // Output file for generated members
	LogFile        string        // Log file for simulation output
	Verbose        bool          // Enable verbose logging
}

// Member represents a member intake request
type Member struct {
	UserID          string   `json:"user_id"`
	DiagnosticScore *float64 `json:"diagnostic_score,omitempty"`
	Track           string   `json:"track"`
	TasksCompleted  int      `json:"tasks_completed"`
	PracticeMinutes int      `json:"practice_minutes"`
	WeeklyTasks     int      `json:"weekly_tasks"`
	DaysActive      int      `json:"days_active"`
	StreakDays      int      `json:"streak_days"`
}

// Placement represents the response from member intake
type Placement struct {
	UserID    string `json:"user_id"`
	CohortKey string `json:"cohort_key"`
}

// ProgressUpdate represents one activity update submission
type ProgressUpdate struct {
	EventID         string `json:"event_id"`
	UserID          string `json:"user_id"`
	TasksCompleted  int    `json:"tasks_completed"`
	PracticeMinutes int    `json:"practice_minutes"`
	WeeklyTasks     int    `json:"weekly_tasks"`
	DaysActive      int    `json:"days_active"`
	StreakDays      int    `json:"streak_days"`
}

// GhostPayload is the subset of the ghost response the simulation checks
type GhostPayload struct {
	UserStats struct {
		TasksCompleted int     `json:"tasks_completed"`
		DayNumber      int     `json:"day_number"`
		SkillTier      float64 `json:"skill_tier"`
		Velocity       string  `json:"velocity"`
	} `json:"user_stats"`
	CohortComparison *struct {
		CohortKey  string `json:"cohort_key"`
		CohortSize int    `json:"cohort_size"`
	} `json:"cohort_comparison"`
}

// Stats holds simulation statistics
type Stats struct {
	MembersGenerated int
	MembersPlaced    int
	PlacementsGlobal int
	PlacementsFailed int
	UpdatesSubmitted int
	UpdatesQueued    int
	UpdatesDuplicate int
	UpdatesFailed    int
	GhostsRetrieved  int
	GhostsFailed     int
	CohortsReported  int
	MembersReported  int
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}
