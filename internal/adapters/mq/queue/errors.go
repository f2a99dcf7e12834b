package queue

import "errors"

// Sentinel kinds for queue errors.
var (
	ErrNotClosed = errors.New("queue not closed")
)
