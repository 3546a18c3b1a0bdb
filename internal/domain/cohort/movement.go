package cohort

import (
	"time"

	"github.com/google/uuid"
)

// Movement reasons recorded in the audit trail.
const (
	ReasonInitial        = "initial"
	ReasonRebalance      = "rebalance"
	ReasonGraduation     = "graduation"
	ReasonMerge          = "merge"
	ReasonSplit          = "split"
	ReasonGlobalFallback = "global_fallback"
)

// Movement is one append-only audit record of a member changing
// cohorts. Records are never mutated or deleted.
type Movement struct {
	ID     string    `json:"id"`
	UserID string    `json:"user_id"`
	From   string    `json:"from_key"`
	To     string    `json:"to_key"`
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}

// NewMovement builds a movement record with a fresh ID.
func NewMovement(userID string, from, to Key, reason string, at time.Time) Movement {
	return Movement{
		ID:     uuid.NewString(),
		UserID: userID,
		From:   from.String(),
		To:     to.String(),
		Reason: reason,
		At:     at,
	}
}
