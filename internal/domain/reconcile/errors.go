package reconcile

import "errors"

// Sentinel kinds for orchestrator errors. Only ErrConcurrentRun and
// ErrInvalidWindow abort a run; everything else is itemized on the result.
var (
	ErrConcurrentRun  = errors.New("a sync run is already in progress")
	ErrInvalidWindow  = errors.New("invalid sync window")
	ErrInvalidOptions = errors.New("invalid sync options")
	ErrRunNotFound    = errors.New("sync run not found")
	ErrNoSources      = errors.New("no transaction sources configured")
)
