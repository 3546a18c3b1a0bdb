// Package progress contains the activity update passed between layers.
package progress

import "time"

// Update represents a member activity report submitted by clients.
// Fields mirror the OpenAPI schema for /progress.
type Update struct {
	EventID         string    // unique id for idempotency
	UserID          string    // member identifier
	TasksCompleted  int       // lifetime tasks completed
	PracticeMinutes int       // lifetime practice minutes
	WeeklyTasks     int       // tasks completed in the current week
	DaysActive      int       // days since first activity
	StreakDays      int       // current consecutive-day streak
	At              time.Time // report timestamp
}
