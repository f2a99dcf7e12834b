// Package scheduler triggers sync runs at configured times of day.
//
// A cron job ticks every minute. Each enabled entry whose HH:MM matches the
// current minute in its own timezone starts a run over the entry's window,
// unless a run is already active: overlapping triggers are skipped, never
// queued. The schedule can be changed while the scheduler is running.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	_ "time/tzdata" // entry timezones must resolve on hosts without zoneinfo

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/widjis/attend-now-report-view-sub001/internal/adapters/repository"
	"github.com/widjis/attend-now-report-view-sub001/internal/domain/model"
	"github.com/widjis/attend-now-report-view-sub001/pkg/logger"
	"github.com/widjis/attend-now-report-view-sub001/pkg/metrics"
)

const (
	tickSpec     = "* * * * *"
	slotLayout   = "2006-01-02 15:04"
	initiator    = "scheduler"
	stopTimeout  = 30 * time.Second
	defaultEntry = "02:00"
)

// Runner starts sync runs. The reconcile Orchestrator implements it.
type Runner interface {
	Run(ctx context.Context, w model.Window, opts model.RunOptions) (*model.SyncResult, error)
	Running() (string, bool)
}

// Store persists the schedule.
type Store interface {
	LoadSchedule(ctx context.Context) (model.SyncSchedule, error)
	SaveSchedule(ctx context.Context, sched model.SyncSchedule) error
}

// State is the scheduler's run state.
type State string

// States. A finished run returns the scheduler to Idle; its outcome is kept
// as the last status.
const (
	StateIdle    State = "idle"
	StateRunning State = "running"
)

// Status is a snapshot of the scheduler.
type Status struct {
	Started    bool            `json:"started"`
	State      State           `json:"state"`
	LastStatus model.RunStatus `json:"last_status,omitempty"`
	LastRunID  string          `json:"last_run_id,omitempty"`
	LastError  string          `json:"last_error,omitempty"`
}

// Scheduler fires scheduled sync runs.
type Scheduler struct {
	runner   Runner
	store    Store
	runOpts  model.RunOptions
	validate *validator.Validate
	now      func() time.Time
	logger   logger.Logger

	mu       sync.Mutex
	sched    model.SyncSchedule
	fired    map[string]string // entry id -> last fired minute slot
	inflight bool
	status   Status
	cron     *cron.Cron
	runCtx   context.Context
	wg       sync.WaitGroup
}

// New creates a Scheduler. The default schedule is disabled with one daily
// entry at 02:00 UTC.
func New(runner Runner, opts ...Option) *Scheduler {
	s := &Scheduler{
		runner:   runner,
		validate: validator.New(),
		now:      time.Now,
		logger:   logger.Nop(),
		fired:    make(map[string]string),
		status:   Status{State: StateIdle},
		runCtx:   context.Background(),
		sched: model.SyncSchedule{Entries: []model.ScheduleEntry{{
			Time: defaultEntry, Timezone: "UTC", Enabled: true, WindowDays: 1, Description: "daily sync",
		}}},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("scheduler")
	s.assignIDs(&s.sched)
	return s
}

// Start loads the persisted schedule (or stores the seed) and starts the
// minute tick. Runs started by the scheduler use ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return ErrAlreadyStarted
	}

	if s.store != nil {
		stored, err := s.store.LoadSchedule(ctx)
		switch {
		case err == nil:
			s.assignIDs(&stored)
			s.sched = stored
		case errors.Is(err, repository.ErrNoSchedule):
			s.logger.Info(ctx, "no stored schedule, saving seed")
			if err := s.store.SaveSchedule(ctx, s.sched.Clone()); err != nil {
				return fmt.Errorf("save schedule: %w", err)
			}
		default:
			return fmt.Errorf("load schedule: %w", err)
		}
	}
	if err := s.validate.Struct(s.sched); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSchedule, err)
	}

	cl := cronLogger{l: s.logger}
	c := cron.New(cron.WithChain(cron.Recover(cl)), cron.WithLogger(cl))
	if _, err := c.AddFunc(tickSpec, func() { s.Tick(ctx, s.now()) }); err != nil {
		return fmt.Errorf("add tick: %w", err)
	}
	s.cron = c
	s.runCtx = ctx
	s.status.Started = true
	c.Start()

	s.logger.Info(ctx, "scheduler started",
		logger.Bool("enabled", s.sched.Enabled),
		logger.Int("entries", len(s.sched.Entries)),
	)
	return nil
}

// Stop halts the tick and waits for an in-flight run.
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.status.Started = false
	s.mu.Unlock()

	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn(ctx, "scheduled run still active at shutdown")
	case <-time.After(stopTimeout):
		s.logger.Warn(ctx, "scheduled run still active at shutdown")
	}
}

// Tick evaluates the schedule at now and starts at most one run. Every other
// entry due in the same minute is skipped with a warning. It returns the id
// of the triggering entry, or "" when nothing started.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.sched.Enabled {
		return ""
	}

	started := ""
	for i := range s.sched.Entries {
		e := &s.sched.Entries[i]
		if !e.Enabled {
			continue
		}
		loc, err := time.LoadLocation(e.Timezone)
		if err != nil {
			s.logger.Error(ctx, "bad entry timezone", logger.String("entry", e.ID), logger.Error(err))
			continue
		}
		local := now.In(loc)
		if local.Format("15:04") != e.Time {
			continue
		}
		slot := local.Format(slotLayout)
		if s.fired[e.ID] == slot {
			continue
		}
		s.fired[e.ID] = slot

		if active, busy := s.runner.Running(); busy || s.inflight {
			metrics.RecordSchedulerTrigger("skipped")
			s.logger.Warn(ctx, "scheduled run skipped, a run is already active",
				logger.String("entry", e.ID), logger.String("active_run", active))
			continue
		}

		at := now
		e.LastRun = &at
		e.NextRun = nextRun(*e, now)
		s.inflight = true
		s.status.State = StateRunning
		metrics.RecordSchedulerTrigger("triggered")

		w := model.DayWindow(now, e.WindowDays, loc)
		opts := s.runOpts
		opts.Initiator = initiator
		s.wg.Add(1)
		go s.run(s.runContext(ctx), e.ID, w, opts)
		started = e.ID
	}
	return started
}

func (s *Scheduler) runContext(ctx context.Context) context.Context {
	if s.cron != nil {
		return s.runCtx
	}
	return context.WithoutCancel(ctx)
}

func (s *Scheduler) run(ctx context.Context, entryID string, w model.Window, opts model.RunOptions) {
	defer s.wg.Done()
	s.logger.Info(ctx, "scheduled run starting", logger.String("entry", entryID), logger.String("window", w.String()))

	res, err := s.runner.Run(ctx, w, opts)

	s.mu.Lock()
	s.inflight = false
	s.status.State = StateIdle
	s.status.LastError = ""
	switch {
	case err != nil:
		s.status.LastStatus = model.RunError
		s.status.LastError = err.Error()
		if errors.Is(err, context.Canceled) {
			s.status.LastStatus = model.RunCancelled
		}
	default:
		s.status.LastStatus = res.Run.Status
		s.status.LastRunID = res.Run.ID
	}
	snapshot := s.sched.Clone()
	s.mu.Unlock()

	if err != nil {
		metrics.RecordSchedulerTrigger("failed")
		s.logger.Error(ctx, "scheduled run failed", logger.String("entry", entryID), logger.Error(err))
	}
	s.persist(context.WithoutCancel(ctx), snapshot)
}

// Wait blocks until runs started by Tick have returned.
func (s *Scheduler) Wait() { s.wg.Wait() }

// Schedule returns the current schedule with next run times filled in.
func (s *Scheduler) Schedule() model.SyncSchedule {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.sched.Clone()
	now := s.now()
	for i := range out.Entries {
		out.Entries[i].NextRun = nil
		if out.Enabled && out.Entries[i].Enabled {
			out.Entries[i].NextRun = nextRun(out.Entries[i], now)
		}
	}
	return out
}

// Status reports the run state and the outcome of the last scheduled run.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Update validates and replaces the schedule. Entries keep their last run
// time when their id is unchanged; entries without id get one.
func (s *Scheduler) Update(ctx context.Context, sched model.SyncSchedule) (model.SyncSchedule, error) {
	if err := s.validate.Struct(sched); err != nil {
		return model.SyncSchedule{}, fmt.Errorf("%w: %w", ErrInvalidSchedule, err)
	}
	next := sched.Clone()
	s.mu.Lock()
	s.assignIDs(&next)
	prev := make(map[string]*time.Time, len(s.sched.Entries))
	for _, e := range s.sched.Entries {
		prev[e.ID] = e.LastRun
	}
	for i := range next.Entries {
		next.Entries[i].LastRun = prev[next.Entries[i].ID]
		next.Entries[i].NextRun = nil
	}
	s.sched = next
	snapshot := next.Clone()
	s.mu.Unlock()

	if err := s.persist(ctx, snapshot); err != nil {
		return model.SyncSchedule{}, err
	}
	s.logger.Info(ctx, "schedule updated", logger.Bool("enabled", next.Enabled), logger.Int("entries", len(next.Entries)))
	return s.Schedule(), nil
}

// SetEnabled turns the whole schedule on or off.
func (s *Scheduler) SetEnabled(ctx context.Context, enabled bool) (model.SyncSchedule, error) {
	s.mu.Lock()
	s.sched.Enabled = enabled
	snapshot := s.sched.Clone()
	s.mu.Unlock()

	if err := s.persist(ctx, snapshot); err != nil {
		return model.SyncSchedule{}, err
	}
	s.logger.Info(ctx, "schedule toggled", logger.Bool("enabled", enabled))
	return s.Schedule(), nil
}

// Toggle enables or disables one entry.
func (s *Scheduler) Toggle(ctx context.Context, entryID string, enabled bool) (model.SyncSchedule, error) {
	s.mu.Lock()
	found := false
	for i := range s.sched.Entries {
		if s.sched.Entries[i].ID == entryID {
			s.sched.Entries[i].Enabled = enabled
			found = true
			break
		}
	}
	snapshot := s.sched.Clone()
	s.mu.Unlock()

	if !found {
		return model.SyncSchedule{}, fmt.Errorf("%w: %s", ErrEntryNotFound, entryID)
	}
	if err := s.persist(ctx, snapshot); err != nil {
		return model.SyncSchedule{}, err
	}
	s.logger.Info(ctx, "schedule entry toggled", logger.String("entry", entryID), logger.Bool("enabled", enabled))
	return s.Schedule(), nil
}

func (s *Scheduler) persist(ctx context.Context, sched model.SyncSchedule) error {
	if s.store == nil {
		return nil
	}
	if err := s.store.SaveSchedule(ctx, sched); err != nil {
		s.logger.Error(ctx, "failed to save schedule", logger.Error(err))
		return fmt.Errorf("save schedule: %w", err)
	}
	return nil
}

func (s *Scheduler) assignIDs(sched *model.SyncSchedule) {
	for i := range sched.Entries {
		if sched.Entries[i].ID == "" {
			sched.Entries[i].ID = uuid.NewString()
		}
	}
}

// nextRun is the next time after now the entry fires.
func nextRun(e model.ScheduleEntry, now time.Time) *time.Time {
	t, err := time.Parse("15:04", e.Time)
	if err != nil {
		return nil
	}
	spec, err := cron.ParseStandard(fmt.Sprintf("CRON_TZ=%s %d %d * * *", e.Timezone, t.Minute(), t.Hour()))
	if err != nil {
		return nil
	}
	next := spec.Next(now)
	if next.IsZero() {
		return nil
	}
	return &next
}
