package balance

import "errors"

// Balancer errors.
var (
	// ErrBalanceInProgress is returned when a balance run is triggered
	// while another is still executing.
	ErrBalanceInProgress = errors.New("balance run already in progress")

	// ErrInvariantViolation is returned when a computed plan would
	// leave a cohort outside its size bounds. No transfers are
	// committed.
	ErrInvariantViolation = errors.New("plan violates cohort size invariant")
)
