package service

import "errors"

// Service errors.
var (
	// ErrNoSnapshot is returned when a cohort has not yet been covered
	// by an aggregation cycle.
	ErrNoSnapshot = errors.New("no aggregate snapshot for cohort")

	// ErrNotStarted is returned when an operation needs a started
	// service.
	ErrNotStarted = errors.New("service not started")

	// ErrDuplicateEvent is returned when a progress event ID was
	// already accepted inside the idempotency window.
	ErrDuplicateEvent = errors.New("duplicate progress event")

	// ErrQueueBusy is returned when the progress queue is at capacity.
	ErrQueueBusy = errors.New("progress queue at capacity")
)
