package scheduler

import (
	"time"

	"github.com/widjis/attend-now-report-view-sub001/internal/domain/model"
	"github.com/widjis/attend-now-report-view-sub001/pkg/logger"
)

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithStore persists the schedule. Without a store changes live in memory.
func WithStore(st Store) Option {
	return func(s *Scheduler) {
		s.store = st
	}
}

// WithSchedule seeds the schedule used when the store has none.
func WithSchedule(sched model.SyncSchedule) Option {
	return func(s *Scheduler) {
		s.sched = sched.Clone()
	}
}

// WithRunOptions sets the options every scheduled run is started with.
func WithRunOptions(opts model.RunOptions) Option {
	return func(s *Scheduler) {
		s.runOpts = opts
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}
