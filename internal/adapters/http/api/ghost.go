// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/momenta/cohortd/internal/domain/ghost"
)

// GhostDependencies defines the interface for ghost data reads.
type GhostDependencies interface {
	GhostData(ctx context.Context, userID string) (ghost.Data, error)
}

// GhostHandler handles ghost data requests.
type GhostHandler struct {
	deps GhostDependencies
}

// NewGhostHandler creates a new ghost handler.
func NewGhostHandler(deps GhostDependencies) *GhostHandler {
	return &GhostHandler{deps: deps}
}

// HandleGetGhost handles GET /ghost/{user_id} requests.
func (h *GhostHandler) HandleGetGhost(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_ghost"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	userID := userFromPath(r, "/ghost/")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	data, err := h.deps.GhostData(r.Context(), userID)
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "not_found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", fmt.Errorf("%s: %w", op, err))
		return
	}
	writeJSON(w, http.StatusOK, data)
}
