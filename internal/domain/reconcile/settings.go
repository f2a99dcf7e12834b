package reconcile

import (
	"fmt"
	"time"

	"github.com/widjis/attend-now-report-view-sub001/internal/domain/match"
	"github.com/widjis/attend-now-report-view-sub001/internal/domain/model"
)

// settings are RunOptions with defaults applied and strings parsed.
type settings struct {
	batchSize int
	dryRun    bool
	mirror    bool
	tolerance time.Duration
	notify    bool
	initiator string
	match     match.Options
}

func (o *Orchestrator) settingsFor(opts model.RunOptions) (settings, error) {
	d := o.defaults
	s := settings{
		batchSize: d.BatchSize,
		dryRun:    opts.DryRun,
		mirror:    !d.SkipMirror,
		tolerance: d.Tolerance,
		notify:    opts.Notify,
		initiator: opts.Initiator,
		match: match.Options{
			Mode:                 d.Mode,
			Epsilon:              d.DedupeEpsilon,
			OutsideRangeFallback: opts.OutsideRangeFallback,
			Location:             o.loc,
		},
	}
	if opts.Mirror != nil {
		s.mirror = *opts.Mirror
	}
	if s.initiator == "" {
		s.initiator = "manual"
	}
	if opts.BatchSize < 0 {
		return s, fmt.Errorf("%w: batch size %d", ErrInvalidOptions, opts.BatchSize)
	}
	if opts.BatchSize > 0 {
		s.batchSize = opts.BatchSize
	}
	if opts.ToleranceSeconds != nil {
		if *opts.ToleranceSeconds < 0 {
			return s, fmt.Errorf("%w: tolerance %ds", ErrInvalidOptions, *opts.ToleranceSeconds)
		}
		s.tolerance = time.Duration(*opts.ToleranceSeconds) * time.Second
	}
	if opts.DedupeEpsilonSeconds != nil {
		if *opts.DedupeEpsilonSeconds < 0 {
			return s, fmt.Errorf("%w: dedupe epsilon %ds", ErrInvalidOptions, *opts.DedupeEpsilonSeconds)
		}
		s.match.Epsilon = time.Duration(*opts.DedupeEpsilonSeconds) * time.Second
	}
	switch opts.Mode {
	case "":
	case model.MatchFILO, model.MatchNearest:
		s.match.Mode = opts.Mode
	default:
		return s, fmt.Errorf("%w: match mode %q", ErrInvalidOptions, opts.Mode)
	}
	if opts.ManualIn != "" {
		t, err := model.ParseTimeOfDay(opts.ManualIn)
		if err != nil {
			return s, fmt.Errorf("%w: manual in: %w", ErrInvalidOptions, err)
		}
		s.match.ManualIn = &t
	}
	if opts.ManualOut != "" {
		t, err := model.ParseTimeOfDay(opts.ManualOut)
		if err != nil {
			return s, fmt.Errorf("%w: manual out: %w", ErrInvalidOptions, err)
		}
		s.match.ManualOut = &t
	}
	return s, nil
}

func (o *Orchestrator) checkWindow(w model.Window) error {
	if w.Start.IsZero() || w.End.IsZero() || !w.End.After(w.Start) {
		return fmt.Errorf("%w: %s: end must be after start", ErrInvalidWindow, w)
	}
	if w.Span() > o.defaults.MaxWindow {
		return fmt.Errorf("%w: %s spans %s, max %s", ErrInvalidWindow, w, w.Span(), o.defaults.MaxWindow)
	}
	return nil
}
