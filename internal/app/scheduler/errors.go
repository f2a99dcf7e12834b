package scheduler

import "errors"

// Sentinel errors of the scheduler.
var (
	ErrInvalidSchedule = errors.New("invalid schedule")
	ErrEntryNotFound   = errors.New("schedule entry not found")
	ErrAlreadyStarted  = errors.New("scheduler already started")
)
