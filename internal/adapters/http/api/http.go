// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/momenta/cohortd/internal/adapters/partition"
	"github.com/momenta/cohortd/internal/adapters/roster"
	service "github.com/momenta/cohortd/internal/app"
	"github.com/momenta/cohortd/internal/domain/cohort"
	"github.com/momenta/cohortd/internal/domain/ghost"
	"github.com/momenta/cohortd/internal/domain/progress"
	"github.com/momenta/cohortd/internal/domain/stats"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// AssignCohort places a member on intake and returns their cohort.
	AssignCohort(ctx context.Context, m cohort.Member) (cohort.Key, error)

	// SubmitProgress queues an activity update for asynchronous
	// application.
	SubmitProgress(ctx context.Context, u progress.Update) error

	// Read operations expose the comparison surface.
	GhostData(ctx context.Context, userID string) (ghost.Data, error)
	CohortStats(ctx context.Context, userID string) (*stats.Snapshot, error)
	Movements(ctx context.Context, userID string) ([]cohort.Movement, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	membersHandler   *MembersHandler
	progressHandler  *ProgressHandler
	ghostHandler     *GhostHandler
	cohortHandler    *CohortHandler
	movementsHandler *MovementsHandler
	dashboardHandler *dashboardHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(statsProvider),
		membersHandler:   NewMembersHandler(deps),
		progressHandler:  NewProgressHandler(deps),
		ghostHandler:     NewGhostHandler(deps),
		cohortHandler:    NewCohortHandler(deps),
		movementsHandler: NewMovementsHandler(deps),
		dashboardHandler: newdashboardHandler(),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/dashboard", s.dashboardHandler.HandleDashboard)
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/members", MetricsMiddleware(s.membersHandler.HandlePostMember, "members"))
	mux.HandleFunc("/progress", MetricsMiddleware(s.progressHandler.HandlePostProgress, "progress"))
	mux.HandleFunc("/ghost/", MetricsMiddleware(s.ghostHandler.HandleGetGhost, "ghost"))
	mux.HandleFunc("/cohorts/", MetricsMiddleware(s.cohortHandler.HandleGetCohort, "cohorts"))
	mux.HandleFunc("/movements/", MetricsMiddleware(s.movementsHandler.HandleGetMovements, "movements"))
}

// memberRequest mirrors the OpenAPI schema for POST /members.
type memberRequest struct {
	UserID          string   `json:"user_id"`
	DiagnosticScore *float64 `json:"diagnostic_score,omitempty"`
	Track           string   `json:"track"`
	TasksCompleted  int      `json:"tasks_completed"`
	PracticeMinutes int      `json:"practice_minutes"`
	WeeklyTasks     int      `json:"weekly_tasks"`
	DaysActive      int      `json:"days_active"`
	StreakDays      int      `json:"streak_days"`
}

func (m memberRequest) validate() error {
	switch {
	case strings.TrimSpace(m.UserID) == "":
		return errors.New("missing user_id")
	case strings.Contains(m.UserID, "!"):
		return errors.New("user_id must not contain '!'")
	case strings.TrimSpace(m.Track) == "":
		return errors.New("missing track")
	case !cohort.ValidTrack(m.Track):
		return errors.New("track must not contain '/' or '!'")
	case m.TasksCompleted < 0 || m.DaysActive < 0 || m.StreakDays < 0:
		return errors.New("counters must not be negative")
	}
	if m.DiagnosticScore != nil && (*m.DiagnosticScore < 0 || *m.DiagnosticScore > 9) {
		return errors.New("diagnostic_score must be within [0, 9]")
	}
	return nil
}

func (m memberRequest) toMember() cohort.Member {
	return cohort.Member{
		ID:              m.UserID,
		DiagnosticScore: m.DiagnosticScore,
		Track:           m.Track,
		TasksCompleted:  m.TasksCompleted,
		PracticeMinutes: m.PracticeMinutes,
		WeeklyTasks:     m.WeeklyTasks,
		DaysActive:      m.DaysActive,
		StreakDays:      m.StreakDays,
	}
}

type placementResponse struct {
	UserID    string `json:"user_id"`
	CohortKey string `json:"cohort_key"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// isNotFound translates upstream not-found conditions to 404.
func isNotFound(err error) bool {
	return errors.Is(err, roster.ErrMemberNotFound) ||
		errors.Is(err, partition.ErrUserNotFound) ||
		errors.Is(err, service.ErrNoSnapshot)
}

// userFromPath extracts the trailing path parameter after prefix.
// Returns "" when the path is malformed.
func userFromPath(r *http.Request, prefix string) string {
	p := strings.TrimPrefix(r.URL.Path, prefix)
	if p == "" || strings.Contains(p, "/") {
		return ""
	}
	return p
}
