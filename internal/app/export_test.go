package service

import (
	"context"
	"time"
)

// TickScheduler evaluates the schedule at now and waits for the run it starts.
func (s *Service) TickScheduler(ctx context.Context, now time.Time) string {
	id := s.scheduler.Tick(ctx, now)
	s.scheduler.Wait()
	return id
}
