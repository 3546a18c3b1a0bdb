// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	service "github.com/momenta/cohortd/internal/app"
	"github.com/momenta/cohortd/internal/domain/progress"
)

// ProgressDependencies defines the interface for activity ingestion.
type ProgressDependencies interface {
	SubmitProgress(ctx context.Context, u progress.Update) error
}

// ProgressHandler handles activity update submissions.
type ProgressHandler struct {
	deps ProgressDependencies
}

// NewProgressHandler creates a new progress handler.
func NewProgressHandler(deps ProgressDependencies) *ProgressHandler {
	return &ProgressHandler{deps: deps}
}

// progressRequest mirrors the OpenAPI schema for POST /progress.
type progressRequest struct {
	EventID         string `json:"event_id,omitempty"`
	UserID          string `json:"user_id"`
	TasksCompleted  int    `json:"tasks_completed"`
	PracticeMinutes int    `json:"practice_minutes"`
	WeeklyTasks     int    `json:"weekly_tasks"`
	DaysActive      int    `json:"days_active"`
	StreakDays      int    `json:"streak_days"`
}

func (p progressRequest) validate() error {
	switch {
	case strings.TrimSpace(p.UserID) == "":
		return errors.New("missing user_id")
	case p.TasksCompleted < 0 || p.PracticeMinutes < 0 || p.WeeklyTasks < 0 || p.DaysActive < 0 || p.StreakDays < 0:
		return errors.New("counters must not be negative")
	}
	return nil
}

type progressResponse struct {
	EventID string `json:"event_id"`
	Status  string `json:"status"`
}

// HandlePostProgress handles POST /progress requests. Updates are
// queued for asynchronous application; a missing event_id gets one
// assigned.
func (h *ProgressHandler) HandlePostProgress(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_progress"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req progressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%s: %w: %w", op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%s: %w: %w", op, ErrBadRequest, err))
		return
	}
	if req.EventID == "" {
		req.EventID = uuid.NewString()
	}

	err := h.deps.SubmitProgress(r.Context(), progress.Update{
		EventID:         req.EventID,
		UserID:          req.UserID,
		TasksCompleted:  req.TasksCompleted,
		PracticeMinutes: req.PracticeMinutes,
		WeeklyTasks:     req.WeeklyTasks,
		DaysActive:      req.DaysActive,
		StreakDays:      req.StreakDays,
		At:              time.Now(),
	})
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, progressResponse{EventID: req.EventID, Status: "queued"})
	case errors.Is(err, service.ErrDuplicateEvent):
		writeError(w, http.StatusConflict, "duplicate_event", fmt.Errorf("%s: %w", op, err))
	case errors.Is(err, service.ErrQueueBusy):
		writeError(w, http.StatusServiceUnavailable, "queue_busy", fmt.Errorf("%s: %w", op, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", fmt.Errorf("%s: %w", op, err))
	}
}
