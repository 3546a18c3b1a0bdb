// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/momenta/cohortd/internal/domain/cohort"
)

// MovementDependencies defines the interface for movement audit reads.
type MovementDependencies interface {
	Movements(ctx context.Context, userID string) ([]cohort.Movement, error)
}

// MovementsHandler handles movement history requests.
type MovementsHandler struct {
	deps MovementDependencies
}

// NewMovementsHandler creates a new movements handler.
func NewMovementsHandler(deps MovementDependencies) *MovementsHandler {
	return &MovementsHandler{deps: deps}
}

// HandleGetMovements handles GET /movements/{user_id} requests. A user
// with no recorded movements yields an empty list, not a 404.
func (h *MovementsHandler) HandleGetMovements(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_movements"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	userID := userFromPath(r, "/movements/")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	mvs, err := h.deps.Movements(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", fmt.Errorf("%s: %w", op, err))
		return
	}
	if mvs == nil {
		mvs = []cohort.Movement{}
	}
	writeJSON(w, http.StatusOK, mvs)
}
