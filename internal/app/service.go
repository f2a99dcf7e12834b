// Package service wires stores, the reconciliation engine, the worker pool,
// the notifier and the scheduler into the dependencies the HTTP API needs.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	eventqueue "github.com/widjis/attend-now-report-view-sub001/internal/adapters/mq/queue"
	workerpool "github.com/widjis/attend-now-report-view-sub001/internal/adapters/mq/worker"
	"github.com/widjis/attend-now-report-view-sub001/internal/adapters/notify"
	"github.com/widjis/attend-now-report-view-sub001/internal/adapters/repository"
	"github.com/widjis/attend-now-report-view-sub001/internal/app/scheduler"
	"github.com/widjis/attend-now-report-view-sub001/internal/config"
	"github.com/widjis/attend-now-report-view-sub001/internal/domain/model"
	"github.com/widjis/attend-now-report-view-sub001/internal/domain/reconcile"
	"github.com/widjis/attend-now-report-view-sub001/internal/domain/schedule"
	"github.com/widjis/attend-now-report-view-sub001/pkg/logger"
	"github.com/widjis/attend-now-report-view-sub001/pkg/metrics"
)

const driverMemory = "memory"

// ErrNotStarted is returned by operations that need a started service.
var ErrNotStarted = errors.New("service not started")

// Store is what the service needs from a configured database: it can act as
// a punch source, an assignment source, a record target and a run/schedule
// store. MemoryStore and SQLStore both satisfy it.
type Store interface {
	reconcile.Source
	schedule.Source
	reconcile.CanonicalStore
	reconcile.RunStore
	scheduler.Store
	CountRecords(ctx context.Context) (int64, error)
}

// Service implements the API dependencies for the attendance sync engine.
type Service struct {
	mu sync.RWMutex

	cfg    *config.Config
	logger logger.Logger
	now    func() time.Time

	// Stores; injected ones win over the configured databases.
	source Store
	extras []Store
	target Store
	mirror Store
	dbs    map[string]*gorm.DB
	mems   map[string]*repository.MemoryStore
	opened []*Store
	// ownExtras marks extras opened from config rather than injected.
	ownExtras bool

	notifier  reconcile.Notifier
	queue     *eventqueue.InMemoryQueue
	pool      *workerpool.Pool
	engine    *reconcile.Orchestrator
	scheduler *scheduler.Scheduler
	loc       *time.Location

	started   bool
	startedAt time.Time
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSource replaces the configured primary source.
func WithSource(st Store) Option {
	return func(s *Service) { s.source = st }
}

// WithExtraSources replaces the configured extra sources.
func WithExtraSources(st ...Store) Option {
	return func(s *Service) { s.extras = st }
}

// WithTarget replaces the configured target.
func WithTarget(st Store) Option {
	return func(s *Service) { s.target = st }
}

// WithMirror replaces the configured mirror.
func WithMirror(st Store) Option {
	return func(s *Service) { s.mirror = st }
}

// WithNotifier replaces the gateway notifier built from the notify section.
func WithNotifier(n reconcile.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithClock replaces time.Now in the engine and scheduler.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a Service from cfg. A nil cfg uses config.New().
func New(cfg *config.Config, opts ...Option) *Service {
	if cfg == nil {
		cfg = config.New()
	}
	s := &Service{
		cfg:  cfg,
		now:  time.Now,
		dbs:  make(map[string]*gorm.DB),
		mems: make(map[string]*repository.MemoryStore),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens the stores and starts the worker pool and the scheduler.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	s.logger.Info(ctx, "starting attendance sync service...")

	loc, err := s.cfg.Location()
	if err != nil {
		return fmt.Errorf("%w: timezone: %w", config.ErrInvalidConfig, err)
	}
	s.loc = loc

	if err := s.openStores(); err != nil {
		s.closeStores(ctx)
		return err
	}

	templates, err := s.cfg.Templates()
	if err != nil {
		s.closeStores(ctx)
		return err
	}
	cal := schedule.NewCalendar()
	if err := cal.AddHolidays(s.cfg.Holidays...); err != nil {
		s.closeStores(ctx)
		return fmt.Errorf("%w: holidays: %w", config.ErrInvalidConfig, err)
	}
	resolver := schedule.NewResolver(s.source,
		schedule.WithCalendar(cal),
		schedule.WithTemplates(templates),
		schedule.WithLocation(loc),
		schedule.WithLogger(s.logger),
	)

	workers := s.cfg.Workers.Count
	if workers <= 0 {
		workers = 1
	}
	s.queue = eventqueue.NewInMemoryQueue(
		eventqueue.WithCapacity(s.cfg.Workers.QueueSize),
		eventqueue.WithBufferSize(s.cfg.Workers.QueueSize),
	)
	s.pool = workerpool.NewPool(workers, s.queue, workerpool.WithPoolLogger(s.logger))
	s.pool.Start(ctx)
	metrics.UpdateWorkerCount(workers)

	if s.notifier == nil && s.cfg.Notify.Endpoint != "" {
		s.notifier = s.newDispatcher()
	}

	sources := make([]reconcile.Source, 0, 1+len(s.extras))
	sources = append(sources, s.source)
	for _, e := range s.extras {
		sources = append(sources, e)
	}
	engineOpts := []reconcile.Option{
		reconcile.WithRunStore(s.target),
		reconcile.WithExecutor(s.pool),
		reconcile.WithRetryPolicy(s.cfg.RetryPolicy()),
		reconcile.WithLocation(loc),
		reconcile.WithDefaults(s.cfg.RunDefaults()),
		reconcile.WithLogger(s.logger),
		reconcile.WithClock(s.now),
	}
	if s.mirror != nil {
		engineOpts = append(engineOpts, reconcile.WithMirror(s.mirror))
	}
	if s.notifier != nil {
		engineOpts = append(engineOpts, reconcile.WithNotifier(s.notifier))
	}
	s.engine, err = reconcile.New(sources, resolver, s.target, engineOpts...)
	if err != nil {
		s.shutdownPool(ctx)
		s.closeStores(ctx)
		return err
	}

	s.scheduler = scheduler.New(s.engine,
		scheduler.WithStore(s.target),
		scheduler.WithSchedule(s.cfg.SyncSchedule()),
		scheduler.WithRunOptions(model.RunOptions{
			Notify:               s.cfg.Scheduler.Notify,
			OutsideRangeFallback: s.cfg.Sync.OutsideRangeFallback,
		}),
		scheduler.WithClock(s.now),
		scheduler.WithLogger(s.logger),
	)
	if err := s.scheduler.Start(ctx); err != nil {
		s.shutdownPool(ctx)
		s.closeStores(ctx)
		return fmt.Errorf("start scheduler: %w", err)
	}

	s.started = true
	s.startedAt = s.now()
	s.logger.Info(ctx, "attendance sync service started",
		logger.Int("workers", workers),
		logger.Int("queueSize", s.cfg.Workers.QueueSize),
		logger.Int("sources", len(sources)),
		logger.Bool("mirror", s.mirror != nil),
		logger.Bool("notify", s.notifier != nil),
	)
	return nil
}

// Stop cancels an active run, stops the scheduler and the worker pool, and
// closes the databases.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.logger.Info(ctx, "stopping attendance sync service...")

	if id, ok := s.engine.Running(); ok {
		_ = s.engine.Cancel(id)
	}
	s.scheduler.Stop(ctx)
	s.shutdownPool(ctx)
	s.closeStores(ctx)

	s.started = false
	s.logger.Info(ctx, "attendance sync service stopped")
}

func (s *Service) shutdownPool(ctx context.Context) {
	if s.pool == nil {
		return
	}
	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool shutdown", logger.Error(err))
	}
}

func (s *Service) newDispatcher() *notify.Dispatcher {
	n := s.cfg.Notify
	transport := notify.NewHTTPTransport(n.Endpoint, notify.WithToken(n.Token))
	return notify.NewDispatcher(transport, n.Recipients,
		notify.WithTitle(n.Title),
		notify.WithAttachment(n.Attach),
		notify.WithRetryPolicy(s.cfg.RetryPolicy()),
		notify.WithTimeout(time.Duration(n.TimeoutMS)*time.Millisecond),
		notify.WithClock(s.now),
		notify.WithLogger(s.logger),
	)
}

// openStores resolves every configured database that was not injected.
// Databases with the same driver and dsn share one connection.
func (s *Service) openStores() error {
	var err error
	if s.source == nil {
		if s.source, err = s.open(s.cfg.Source); err != nil {
			return err
		}
		s.opened = append(s.opened, &s.source)
	}
	if s.target == nil {
		if s.target, err = s.open(s.cfg.Target); err != nil {
			return err
		}
		s.opened = append(s.opened, &s.target)
	}
	if s.mirror == nil && s.cfg.Mirror.Enabled() {
		if s.mirror, err = s.open(s.cfg.Mirror); err != nil {
			return err
		}
		s.opened = append(s.opened, &s.mirror)
	}
	if s.extras == nil {
		for _, d := range s.cfg.ExtraSources {
			st, err := s.open(d)
			if err != nil {
				return err
			}
			s.extras = append(s.extras, st)
		}
		s.ownExtras = len(s.extras) > 0
	}
	return nil
}

func (s *Service) open(d config.Database) (Store, error) {
	name := d.Name
	if name == "" {
		name = d.Driver
	}
	storeOpts := []repository.Option{
		repository.WithName(name),
		repository.WithLocation(s.loc),
		repository.WithClock(s.now),
		repository.WithLogger(s.logger),
	}
	key := d.Driver + "|" + d.DSN

	if d.Driver == driverMemory {
		if m, ok := s.mems[key]; ok {
			return m, nil
		}
		m := repository.NewMemoryStore(storeOpts...)
		s.mems[key] = m
		return m, nil
	}

	db, ok := s.dbs[key]
	if !ok {
		var err error
		if db, err = repository.Open(d.Driver, d.DSN, s.logger); err != nil {
			return nil, err
		}
		if s.cfg.AutoMigrate {
			if err := repository.Migrate(db); err != nil {
				_ = repository.Close(db)
				return nil, fmt.Errorf("migrate %s: %w", name, err)
			}
		}
		s.dbs[key] = db
	}
	return repository.NewSQLStore(db, storeOpts...), nil
}

func (s *Service) closeStores(ctx context.Context) {
	for key, db := range s.dbs {
		if err := repository.Close(db); err != nil {
			s.logger.Warn(ctx, "close database", logger.Error(err))
		}
		delete(s.dbs, key)
	}
	// configured stores are reopened on the next Start
	for _, st := range s.opened {
		*st = nil
	}
	s.opened = nil
	if s.ownExtras {
		s.extras, s.ownExtras = nil, false
	}
}

func (s *Service) ready() (*reconcile.Orchestrator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.engine, nil
}

func (s *Service) withDefaults(opts model.RunOptions) model.RunOptions {
	if s.cfg.Sync.OutsideRangeFallback {
		opts.OutsideRangeFallback = true
	}
	return opts
}

// Location is the zone work dates are evaluated in.
func (s *Service) Location() *time.Location {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.loc != nil {
		return s.loc
	}
	if loc, err := s.cfg.Location(); err == nil {
		return loc
	}
	return time.UTC
}

// Run performs a sync run over w.
func (s *Service) Run(ctx context.Context, w model.Window, opts model.RunOptions) (*model.SyncResult, error) {
	engine, err := s.ready()
	if err != nil {
		return nil, err
	}
	return engine.Run(ctx, w, s.withDefaults(opts))
}

// Preview summarizes what a run over w would process.
func (s *Service) Preview(ctx context.Context, w model.Window, opts model.RunOptions) (*model.PreviewResult, error) {
	engine, err := s.ready()
	if err != nil {
		return nil, err
	}
	return engine.Preview(ctx, w, s.withDefaults(opts))
}

// Validate reports the quality of the records a run over w would produce.
func (s *Service) Validate(ctx context.Context, w model.Window, opts model.RunOptions) (*model.ValidationResult, error) {
	engine, err := s.ready()
	if err != nil {
		return nil, err
	}
	return engine.Validate(ctx, w, s.withDefaults(opts))
}

// Cancel requests cancellation of the active run.
func (s *Service) Cancel(_ context.Context, runID string) error {
	engine, err := s.ready()
	if err != nil {
		return err
	}
	return engine.Cancel(runID)
}

// Runs lists recent runs, newest first.
func (s *Service) Runs(ctx context.Context, limit int) ([]model.SyncRun, error) {
	engine, err := s.ready()
	if err != nil {
		return nil, err
	}
	return engine.Runs(ctx, limit)
}

func (s *Service) sched() (*scheduler.Scheduler, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.scheduler, nil
}

// Schedule returns the current sync schedule.
func (s *Service) Schedule(context.Context) (model.SyncSchedule, error) {
	sc, err := s.sched()
	if err != nil {
		return model.SyncSchedule{}, err
	}
	return sc.Schedule(), nil
}

// UpdateSchedule replaces the sync schedule.
func (s *Service) UpdateSchedule(ctx context.Context, sched model.SyncSchedule) (model.SyncSchedule, error) {
	sc, err := s.sched()
	if err != nil {
		return model.SyncSchedule{}, err
	}
	return sc.Update(ctx, sched)
}

// SetScheduleEnabled switches the whole schedule on or off.
func (s *Service) SetScheduleEnabled(ctx context.Context, enabled bool) (model.SyncSchedule, error) {
	sc, err := s.sched()
	if err != nil {
		return model.SyncSchedule{}, err
	}
	return sc.SetEnabled(ctx, enabled)
}

// ToggleSchedule switches one entry on or off.
func (s *Service) ToggleSchedule(ctx context.Context, entryID string, enabled bool) (model.SyncSchedule, error) {
	sc, err := s.sched()
	if err != nil {
		return model.SyncSchedule{}, err
	}
	return sc.Toggle(ctx, entryID, enabled)
}

// Health reports source reachability, the scheduler and the latest run.
func (s *Service) Health(ctx context.Context) (model.Health, error) {
	engine, err := s.ready()
	if err != nil {
		return model.Health{}, err
	}
	sources, reachable := engine.Ping(ctx)
	h := model.Health{
		SourcesReachable: reachable,
		Sources:          sources,
		SchedulerRunning: s.scheduler.Status().Started,
	}
	h.ActiveRunID, h.RunActive = engine.Running()
	if last, ok := engine.LastRun(); ok {
		h.LastRunStatus = last.Status
		at := last.FinishedAt
		if at.IsZero() {
			at = last.StartedAt
		}
		h.LastRunAt = &at
	}
	return h, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.cfg.Workers.Count,
		"queueSize":   s.cfg.Workers.QueueSize,
	}
	if !s.started {
		return stats
	}

	queueLen := s.queue.Len(ctx)
	stats["queueLength"] = queueLen
	stats["uptimeSeconds"] = int64(s.now().Sub(s.startedAt).Seconds())
	stats["scheduler"] = s.scheduler.Status()
	if id, ok := s.engine.Running(); ok {
		stats["activeRunID"] = id
	}
	if n, err := s.target.CountRecords(ctx); err == nil {
		stats["totalRecords"] = n
	}
	if last, ok := s.engine.LastRun(); ok {
		stats["lastRun"] = last
	}
	metrics.UpdateQueue(queueLen, s.queue.Capacity())
	return stats
}
