package reconcile

import (
	"time"

	"github.com/widjis/attend-now-report-view-sub001/internal/domain/model"
	"github.com/widjis/attend-now-report-view-sub001/pkg/logger"
	"github.com/widjis/attend-now-report-view-sub001/pkg/retry"
)

// Defaults applied when a RunOptions field is zero.
type Defaults struct {
	BatchSize        int
	Tolerance        time.Duration
	Mode             model.MatchMode
	DedupeEpsilon    time.Duration
	MaxWindow        time.Duration
	SampleSize       int
	PerGroupEstimate time.Duration
	// SkipMirror makes mirroring opt-in per run instead of applying to every
	// run while a mirror store is configured.
	SkipMirror bool
	// OvernightSlack is how long after an overnight shift's scheduled end a
	// next-day punch still counts as that shift's clock-out.
	OvernightSlack time.Duration
}

// DefaultDefaults returns the built-in defaults.
func DefaultDefaults() Defaults {
	return Defaults{
		BatchSize:        500,
		Tolerance:        5 * time.Minute,
		Mode:             model.MatchFILO,
		DedupeEpsilon:    3 * time.Second,
		MaxWindow:        31 * 24 * time.Hour,
		SampleSize:       10,
		PerGroupEstimate: 20 * time.Millisecond,
		OvernightSlack:   4 * time.Hour,
	}
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMirror sets the secondary store that receives the same writes. Runs
// mirror by default; RunOptions.Mirror or Defaults.SkipMirror turn it off.
func WithMirror(store CanonicalStore) Option {
	return func(o *Orchestrator) {
		o.mirror = store
	}
}

// WithRunStore persists run history.
func WithRunStore(store RunStore) Option {
	return func(o *Orchestrator) {
		o.runs = store
	}
}

// WithNotifier sets the run summary notifier.
func WithNotifier(n Notifier) Option {
	return func(o *Orchestrator) {
		o.notifier = n
	}
}

// WithExecutor dispatches groups to a worker pool instead of running them inline.
func WithExecutor(e Executor) Option {
	return func(o *Orchestrator) {
		o.executor = e
	}
}

// WithRetryPolicy sets the policy wrapped around every store call.
func WithRetryPolicy(p retry.Policy) Option {
	return func(o *Orchestrator) {
		o.policy = p
	}
}

// WithLocation sets the zone that defines work dates.
func WithLocation(loc *time.Location) Option {
	return func(o *Orchestrator) {
		if loc != nil {
			o.loc = loc
		}
	}
}

// WithDefaults overrides the run defaults. Zero durations and sizes keep the
// built-in value; SkipMirror is taken as given.
func WithDefaults(d Defaults) Option {
	return func(o *Orchestrator) {
		base := DefaultDefaults()
		if d.BatchSize > 0 {
			base.BatchSize = d.BatchSize
		}
		if d.Tolerance > 0 {
			base.Tolerance = d.Tolerance
		}
		if d.Mode != "" {
			base.Mode = d.Mode
		}
		if d.DedupeEpsilon > 0 {
			base.DedupeEpsilon = d.DedupeEpsilon
		}
		if d.MaxWindow > 0 {
			base.MaxWindow = d.MaxWindow
		}
		if d.SampleSize > 0 {
			base.SampleSize = d.SampleSize
		}
		if d.PerGroupEstimate > 0 {
			base.PerGroupEstimate = d.PerGroupEstimate
		}
		if d.OvernightSlack > 0 {
			base.OvernightSlack = d.OvernightSlack
		}
		base.SkipMirror = d.SkipMirror
		o.defaults = base
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}
