// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/momenta/cohortd/internal/domain/cohort"
)

// MemberDependencies defines the interface for member intake.
type MemberDependencies interface {
	AssignCohort(ctx context.Context, m cohort.Member) (cohort.Key, error)
}

// MembersHandler handles member intake requests.
type MembersHandler struct {
	deps MemberDependencies
}

// NewMembersHandler creates a new members handler.
func NewMembersHandler(deps MemberDependencies) *MembersHandler {
	return &MembersHandler{deps: deps}
}

// HandlePostMember handles POST /members requests. Placement is
// immediate; re-posting a placed member returns their current cohort.
func (h *MembersHandler) HandlePostMember(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_member"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req memberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%s: %w: %w", op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%s: %w: %w", op, ErrBadRequest, err))
		return
	}

	key, err := h.deps.AssignCohort(r.Context(), req.toMember())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", fmt.Errorf("%s: %w", op, err))
		return
	}
	writeJSON(w, http.StatusAccepted, placementResponse{
		UserID:    req.UserID,
		CohortKey: key.String(),
	})
}
