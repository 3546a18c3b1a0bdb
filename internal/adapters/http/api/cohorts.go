// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/momenta/cohortd/internal/domain/stats"
)

// CohortDependencies defines the interface for cohort stat reads.
type CohortDependencies interface {
	CohortStats(ctx context.Context, userID string) (*stats.Snapshot, error)
}

// CohortHandler handles cohort snapshot requests.
type CohortHandler struct {
	deps CohortDependencies
}

// NewCohortHandler creates a new cohort handler.
func NewCohortHandler(deps CohortDependencies) *CohortHandler {
	return &CohortHandler{deps: deps}
}

// HandleGetCohort handles GET /cohorts/{user_id} requests, returning
// the aggregate snapshot of the user's cohort.
func (h *CohortHandler) HandleGetCohort(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_cohort"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	userID := userFromPath(r, "/cohorts/")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	snap, err := h.deps.CohortStats(r.Context(), userID)
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "not_found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", fmt.Errorf("%s: %w", op, err))
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
