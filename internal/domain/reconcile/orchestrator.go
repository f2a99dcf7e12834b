// Package reconcile orchestrates sync runs: it pages raw transactions from
// the sources, matches and classifies each (staff, date) group, and upserts
// the canonical records.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/widjis/attend-now-report-view-sub001/internal/domain/model"
	"github.com/widjis/attend-now-report-view-sub001/internal/domain/schedule"
	"github.com/widjis/attend-now-report-view-sub001/pkg/logger"
	"github.com/widjis/attend-now-report-view-sub001/pkg/metrics"
	"github.com/widjis/attend-now-report-view-sub001/pkg/retry"
)

const (
	// maxIssues bounds each of a run's warning and error lists.
	maxIssues = 500
	// historySize is kept in memory when no RunStore is configured.
	historySize = 50
)

// Orchestrator runs reconciliation over its sources. It owns the run lock:
// at most one Run is active per Orchestrator.
type Orchestrator struct {
	sources  []Source
	resolver *schedule.Resolver
	store    CanonicalStore
	mirror   CanonicalStore
	runs     RunStore
	notifier Notifier
	executor Executor
	policy   retry.Policy
	defaults Defaults
	loc      *time.Location
	logger   logger.Logger
	now      func() time.Time

	lock  RunLock
	keys  keyLocks
	state sync.Mutex
	last  *model.SyncRun
	hist  []model.SyncRun
}

// New builds an Orchestrator.
func New(sources []Source, resolver *schedule.Resolver, store CanonicalStore, opts ...Option) (*Orchestrator, error) {
	if len(sources) == 0 {
		return nil, ErrNoSources
	}
	if resolver == nil || store == nil {
		return nil, errors.New("reconcile: resolver and store are required")
	}
	o := &Orchestrator{
		sources:  sources,
		resolver: resolver,
		store:    store,
		policy:   retry.Default(),
		defaults: DefaultDefaults(),
		loc:      time.Local,
		logger:   logger.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.Named("reconcile")
	return o, nil
}

// Sources returns the configured sources.
func (o *Orchestrator) Sources() []Source { return o.sources }

// runState is the mutable progress of one run, shared by its group tasks.
type runState struct {
	mu        sync.Mutex
	run       model.SyncRun
	cfg       settings
	cancelled *atomic.Bool
	dropped   [2]int
}

func (r *runState) warn(i model.Issue) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.run.Warnings) >= maxIssues {
		r.dropped[0]++
		return
	}
	r.run.Warnings = append(r.run.Warnings, i)
}

func (r *runState) fail(i model.Issue) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.run.Errors) >= maxIssues {
		r.dropped[1]++
		return
	}
	r.run.Errors = append(r.run.Errors, i)
}

func (r *runState) count(fn func(c *model.Counters)) {
	r.mu.Lock()
	fn(&r.run.Counters)
	r.mu.Unlock()
}

// Run reconciles the pending transactions in w. It fails fast with
// ErrConcurrentRun while another run is active, then with ErrInvalidWindow
// for an empty or oversized window. Every other problem is itemized on the
// returned run.
func (o *Orchestrator) Run(ctx context.Context, w model.Window, opts model.RunOptions) (*model.SyncResult, error) {
	id := uuid.NewString()
	if !o.lock.TryAcquire(id) {
		metrics.RecordRunRejected()
		active, _ := o.lock.Active()
		return nil, fmt.Errorf("%w: run %s", ErrConcurrentRun, active)
	}
	defer o.lock.Release(id)

	cfg, err := o.settingsFor(opts)
	if err != nil {
		return nil, err
	}
	if err := o.checkWindow(w); err != nil {
		return nil, err
	}
	metrics.SetRunActive(true)
	defer metrics.SetRunActive(false)

	started := o.now()
	r := &runState{
		run: model.SyncRun{
			ID:        id,
			Window:    w,
			Status:    model.RunRunning,
			Initiator: cfg.initiator,
			Options:   opts,
			StartedAt: started,
			Warnings:  []model.Issue{},
			Errors:    []model.Issue{},
		},
		cfg:       cfg,
		cancelled: o.lock.cancelFlag(id),
	}
	o.saveRun(ctx, &r.run)

	log := o.logger
	log.Info(ctx, "sync run started",
		logger.String("run_id", id),
		logger.String("window", w.String()),
		logger.String("initiator", cfg.initiator),
		logger.Bool("dry_run", cfg.dryRun),
	)

	sess := o.resolver.Session()
	err = o.eachBatch(ctx, w, cfg.batchSize, sess, func(ctx context.Context, b batch) bool {
		r.count(func(c *model.Counters) { c.Retrieved += b.retrieved })
		return o.runBatch(ctx, r, sess, b)
	})

	status := model.RunSuccess
	switch {
	case r.cancelled.Load() || errors.Is(err, context.Canceled):
		status = model.RunCancelled
	case err != nil:
		status = model.RunError
		r.fail(model.Issue{Code: model.IssueSource, Message: err.Error()})
		log.Error(ctx, "sync run aborted", logger.String("run_id", id), logger.Error(err))
	}

	result := o.finish(ctx, r, status, started)
	return result, nil
}

// runBatch dispatches the groups of one batch and waits for them. It returns
// false once the run is cancelled.
func (o *Orchestrator) runBatch(ctx context.Context, r *runState, sess *schedule.Session, b batch) bool {
	var wg sync.WaitGroup
	for _, key := range b.keys {
		if r.cancelled.Load() || ctx.Err() != nil {
			break
		}
		punches, ok := b.groups[key]
		if !ok {
			continue
		}
		key := key
		wg.Add(1)
		task := func(ctx context.Context) {
			defer wg.Done()
			o.applyGroup(ctx, r, sess, key, punches)
		}
		if o.executor == nil || !o.executor.Submit(ctx, task) {
			task(ctx)
		}
	}
	wg.Wait()
	return !r.cancelled.Load() && ctx.Err() == nil
}

// applyGroup evaluates and persists one group. Failures are counted as
// skipped and recorded; they never stop the run.
func (o *Orchestrator) applyGroup(ctx context.Context, r *runState, sess *schedule.Session, key model.GroupKey, punches []model.RawTransaction) {
	cfg := r.cfg
	skip := func(code model.IssueCode, err error) {
		r.count(func(c *model.Counters) {
			c.Processed++
			c.Skipped++
		})
		r.fail(model.Issue{Code: code, Key: key.String(), Message: err.Error()})
		metrics.RecordGroup("skipped")
		o.logger.Warn(ctx, "group skipped",
			logger.String("run_id", r.run.ID),
			logger.String("group", key.String()),
			logger.Error(err),
		)
	}

	out, err := o.evaluate(ctx, sess, key, punches, cfg)
	if err != nil {
		code := model.IssueSchedule
		var ge *groupError
		if errors.As(err, &ge) {
			code = ge.code
		}
		skip(code, err)
		return
	}
	for _, i := range out.issues {
		r.warn(i)
	}
	if n := len(out.match.Collapsed); n > 0 {
		metrics.AddPunchesCollapsed(n)
		o.logger.Debug(ctx, "duplicate punches collapsed",
			logger.String("group", key.String()), logger.Int("count", n))
	}

	rec := out.record
	created := false
	if !cfg.dryRun {
		unlock := o.keys.lock(key)
		created, err = o.persist(ctx, r, &rec, out.match.Consumed)
		unlock()
		if err != nil {
			skip(model.IssuePersistence, err)
			return
		}
	}

	r.count(func(c *model.Counters) {
		c.Processed++
		c.Inserted++
		c.Collapsed += len(out.match.Collapsed)
		if created {
			c.Created++
		}
		if rec.Valid() {
			c.Valid++
		} else {
			c.Invalid++
		}
	})
	metrics.RecordGroup("inserted")
	metrics.RecordStatus("in", string(rec.InStatus))
	metrics.RecordStatus("out", string(rec.OutStatus))
}

// persist upserts rec, mirrors it when asked and marks the consumed
// transactions processed. Callers hold the key lock.
func (o *Orchestrator) persist(ctx context.Context, r *runState, rec *model.CanonicalRecord, consumed []model.RawTransaction) (bool, error) {
	var created bool
	err := o.call(ctx, "upsert", func(ctx context.Context) error {
		var err error
		created, err = o.store.Upsert(ctx, rec)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("upsert %s: %w", rec.Key(), err)
	}

	if r.cfg.mirror && o.mirror != nil {
		mirrored := *rec
		err := o.call(ctx, "mirror_upsert", func(ctx context.Context) error {
			_, err := o.mirror.Upsert(ctx, &mirrored)
			return err
		})
		if err != nil {
			r.warn(model.Issue{Code: model.IssuePersistence, Key: rec.Key().String(), Message: "mirror: " + err.Error()})
		}
	}

	bySource := make(map[string][]int64)
	for _, t := range consumed {
		if t.Source == model.ManualController {
			continue
		}
		bySource[t.Source] = append(bySource[t.Source], t.ID)
	}
	for _, src := range o.sources {
		ids := bySource[src.Name()]
		if len(ids) == 0 {
			continue
		}
		err := o.call(ctx, "mark_processed", func(ctx context.Context) error {
			return src.MarkProcessed(ctx, ids)
		})
		if err != nil {
			return false, fmt.Errorf("mark processed in %s: %w", src.Name(), err)
		}
	}
	return created, nil
}

// finish finalizes, notifies and records the run.
func (o *Orchestrator) finish(ctx context.Context, r *runState, status model.RunStatus, started time.Time) *model.SyncResult {
	// Finalization must survive a cancelled caller context.
	ctx = context.WithoutCancel(ctx)

	r.mu.Lock()
	r.run.Status = status
	r.run.FinishedAt = o.now()
	r.run.Duration = r.run.FinishedAt.Sub(started)
	if r.dropped[0] > 0 {
		r.run.Warnings = append(r.run.Warnings, model.Issue{Code: model.IssueValidationFailure, Message: fmt.Sprintf("%d more warnings not listed", r.dropped[0])})
	}
	if r.dropped[1] > 0 {
		r.run.Errors = append(r.run.Errors, model.Issue{Code: model.IssuePersistence, Message: fmt.Sprintf("%d more errors not listed", r.dropped[1])})
	}
	result := &model.SyncResult{Run: r.run}
	r.mu.Unlock()

	if r.cfg.notify && o.notifier != nil {
		n := o.notifier.Notify(ctx, result)
		result.Notification = &n
		metrics.RecordNotification(n.Success)
		if !n.Success {
			result.Run.Warnings = append(result.Run.Warnings, model.Issue{Code: model.IssueNotification, Message: n.Error})
		}
	}

	o.saveRun(ctx, &result.Run)
	o.remember(result.Run)
	metrics.RecordRun(string(status), result.Run.Duration)

	c := result.Run.Counters
	o.logger.Info(ctx, "sync run finished",
		logger.String("run_id", result.Run.ID),
		logger.String("status", string(status)),
		logger.Int("retrieved", c.Retrieved),
		logger.Int("processed", c.Processed),
		logger.Int("inserted", c.Inserted),
		logger.Int("skipped", c.Skipped),
		logger.Int("warnings", len(result.Run.Warnings)),
		logger.Duration("duration", result.Run.Duration),
	)
	return result
}

func (o *Orchestrator) saveRun(ctx context.Context, run *model.SyncRun) {
	if o.runs == nil {
		return
	}
	snapshot := *run
	err := o.call(ctx, "save_run", func(ctx context.Context) error {
		return o.runs.SaveRun(ctx, &snapshot)
	})
	if err != nil {
		o.logger.Error(ctx, "failed to save sync run", logger.String("run_id", run.ID), logger.Error(err))
	}
}

func (o *Orchestrator) remember(run model.SyncRun) {
	o.state.Lock()
	defer o.state.Unlock()
	o.last = &run
	o.hist = append(o.hist, run)
	if len(o.hist) > historySize {
		o.hist = o.hist[len(o.hist)-historySize:]
	}
}

// Cancel asks the active run to stop after the groups already in flight.
func (o *Orchestrator) Cancel(runID string) error {
	if !o.lock.RequestCancel(runID) {
		return fmt.Errorf("%w: %s is not running", ErrRunNotFound, runID)
	}
	o.logger.Info(context.Background(), "sync run cancellation requested", logger.String("run_id", runID))
	return nil
}

// Running reports whether a run holds the lock, and its id.
func (o *Orchestrator) Running() (string, bool) {
	return o.lock.Active()
}

// LastRun returns the most recent finished run of this process.
func (o *Orchestrator) LastRun() (model.SyncRun, bool) {
	o.state.Lock()
	defer o.state.Unlock()
	if o.last == nil {
		return model.SyncRun{}, false
	}
	return *o.last, true
}

// Runs lists recent runs, newest first.
func (o *Orchestrator) Runs(ctx context.Context, limit int) ([]model.SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}
	if o.runs != nil {
		var runs []model.SyncRun
		err := o.call(ctx, "list_runs", func(ctx context.Context) error {
			var err error
			runs, err = o.runs.ListRuns(ctx, limit)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		return runs, nil
	}

	o.state.Lock()
	runs := make([]model.SyncRun, len(o.hist))
	copy(runs, o.hist)
	o.state.Unlock()
	sort.SliceStable(runs, func(i, j int) bool { return runs[i].StartedAt.After(runs[j].StartedAt) })
	if len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// Ping checks every source and returns per-source status ("ok" or the error).
func (o *Orchestrator) Ping(ctx context.Context) (map[string]string, bool) {
	out := make(map[string]string, len(o.sources))
	ok := true
	for _, src := range o.sources {
		if err := src.Ping(ctx); err != nil {
			out[src.Name()] = err.Error()
			ok = false
			continue
		}
		out[src.Name()] = "ok"
	}
	return out, ok
}
