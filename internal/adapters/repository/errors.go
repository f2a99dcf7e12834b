package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrUnknownDriver = errors.New("unknown database driver")
	ErrNoSchedule    = errors.New("no sync schedule stored")
	ErrInvalidLimit  = errors.New("invalid limit")
)
