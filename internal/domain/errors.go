package domain

import "errors"

var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrBudgetExceeded indicates today's recorded token total has reached the
	// configured daily ceiling; the run is rejected before any LLM call.
	ErrBudgetExceeded = errors.New("daily token budget exceeded")

	// ErrRunConflict indicates a run for the same agent type is already
	// active; the request is rejected at the queue boundary.
	ErrRunConflict = errors.New("agent type already running")

	// ErrQueueEvicted indicates a queued run was displaced by a newer request
	// for the same agent type.
	ErrQueueEvicted = errors.New("queued run evicted by newer request")
)
