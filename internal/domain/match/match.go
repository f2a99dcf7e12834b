// Package match selects the canonical clock-in and clock-out punch of a day
// out of the raw reads recorded for it.
package match

import (
	"errors"
	"fmt"
	"time"

	"github.com/widjis/attend-now-report-view-sub001/internal/domain/dedupe"
	"github.com/widjis/attend-now-report-view-sub001/internal/domain/model"
)

// ErrNoDate is returned when the schedule does not carry the group date
// needed to anchor manual or scheduled times.
var ErrNoDate = errors.New("match: schedule has no date")

// Options control one matching pass.
type Options struct {
	Mode    model.MatchMode
	Epsilon time.Duration
	// OutsideRangeFallback lets an OutsideRange punch fill an edge that has
	// no regular candidate.
	OutsideRangeFallback bool
	// ManualIn and ManualOut, when set, replace matching with literal times.
	ManualIn  *model.TimeOfDay
	ManualOut *model.TimeOfDay
	Location  *time.Location
}

// Manual reports whether a manual override is configured.
func (o Options) Manual() bool { return o.ManualIn != nil || o.ManualOut != nil }

// Result is the outcome of matching one day.
type Result struct {
	In  *model.RawTransaction
	Out *model.RawTransaction
	// Collapsed holds reads folded into an earlier one by deduplication.
	Collapsed []model.RawTransaction
	// OutsideRange counts reads the controller flagged as outside range.
	OutsideRange int
	// Ambiguous lists edges left empty because no candidate was clearly best.
	Ambiguous []model.Edge
	// Consumed lists every raw read that took part, for mark-processed.
	Consumed []model.RawTransaction
}

// Match picks the in and out punch for one (staff, date) group.
func Match(punches []model.RawTransaction, schedule model.ShiftSchedule, opts Options) (Result, error) {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	res := Result{Consumed: punches}

	if opts.Manual() {
		return manual(res, schedule, opts, loc)
	}

	kept, collapsed := dedupe.Collapse(punches, opts.Epsilon)
	res.Collapsed = collapsed

	var regular, outside []model.RawTransaction
	for _, p := range kept {
		if p.Kind == model.KindOutsideRange {
			outside = append(outside, p)
			continue
		}
		regular = append(regular, p)
	}
	res.OutsideRange = len(outside)
	for _, p := range collapsed {
		if p.Kind == model.KindOutsideRange {
			res.OutsideRange++
		}
	}

	var err error
	res.In, res.Out, res.Ambiguous, err = pick(regular, schedule, opts.Mode, loc)
	if err != nil {
		return Result{}, err
	}

	if opts.OutsideRangeFallback && len(outside) > 0 && (res.In == nil || res.Out == nil) {
		fillFromOutside(&res, outside, schedule, opts.Mode, loc)
	}
	return res, nil
}

func pick(cands []model.RawTransaction, schedule model.ShiftSchedule, mode model.MatchMode, loc *time.Location) (in, out *model.RawTransaction, ambiguous []model.Edge, err error) {
	switch len(cands) {
	case 0:
		return nil, nil, nil, nil
	case 1:
		p := cands[0]
		edge, err := singleEdge(p, schedule, loc)
		if err != nil {
			return nil, nil, nil, err
		}
		if edge == model.EdgeOut {
			return nil, &p, nil, nil
		}
		return &p, nil, nil, nil
	}

	if mode != model.MatchNearest || !schedule.Known() {
		// FILO: cands are sorted by dedupe.Collapse.
		first, last := cands[0], cands[len(cands)-1]
		return &first, &last, nil, nil
	}

	schedIn, err := schedule.ScheduledIn(loc)
	if err != nil {
		return nil, nil, nil, err
	}
	schedOut, err := schedule.ScheduledOut(loc)
	if err != nil {
		return nil, nil, nil, err
	}

	inIdx, inTie := nearest(cands, schedIn, -1)
	if inTie {
		ambiguous = append(ambiguous, model.EdgeIn)
		inIdx = -1
	}
	outIdx, outTie := nearest(cands, schedOut, inIdx)
	if outTie {
		ambiguous = append(ambiguous, model.EdgeOut)
		outIdx = -1
	}
	if inIdx >= 0 {
		p := cands[inIdx]
		in = &p
	}
	if outIdx >= 0 {
		p := cands[outIdx]
		out = &p
	}
	return in, out, ambiguous, nil
}

// nearest returns the index of the candidate closest to target, skipping
// index skip. tie is true when two distinct candidates are equally close.
func nearest(cands []model.RawTransaction, target time.Time, skip int) (idx int, tie bool) {
	idx = -1
	var best time.Duration
	for i, c := range cands {
		if i == skip {
			continue
		}
		d := absDuration(c.Timestamp.Sub(target))
		switch {
		case idx < 0 || d < best:
			idx, best, tie = i, d, false
		case d == best:
			tie = true
		}
	}
	return idx, tie
}

// singleEdge decides which edge a lone punch belongs to: the nearer
// scheduled time when the schedule is known, the punch kind otherwise.
func singleEdge(p model.RawTransaction, schedule model.ShiftSchedule, loc *time.Location) (model.Edge, error) {
	if !schedule.Known() {
		if p.Kind == model.KindClockOut {
			return model.EdgeOut, nil
		}
		return model.EdgeIn, nil
	}
	schedIn, err := schedule.ScheduledIn(loc)
	if err != nil {
		return model.EdgeIn, err
	}
	schedOut, err := schedule.ScheduledOut(loc)
	if err != nil {
		return model.EdgeIn, err
	}
	if absDuration(p.Timestamp.Sub(schedOut)) < absDuration(p.Timestamp.Sub(schedIn)) {
		return model.EdgeOut, nil
	}
	return model.EdgeIn, nil
}

// fillFromOutside fills empty edges from OutsideRange reads. With both
// edges empty the outside reads are matched like regular ones; otherwise the
// in edge takes the earliest outside read before the out punch and the out
// edge the latest outside read after the in punch.
func fillFromOutside(res *Result, outside []model.RawTransaction, schedule model.ShiftSchedule, mode model.MatchMode, loc *time.Location) {
	switch {
	case res.In == nil && res.Out == nil:
		in, out, _, err := pick(outside, schedule, mode, loc)
		if err == nil {
			res.In, res.Out = in, out
		}
	case res.In == nil:
		for _, p := range outside {
			if p.Timestamp.Before(res.Out.Timestamp) {
				p := p
				res.In = &p
				return
			}
		}
	case res.Out == nil:
		for i := len(outside) - 1; i >= 0; i-- {
			if outside[i].Timestamp.After(res.In.Timestamp) {
				p := outside[i]
				res.Out = &p
				return
			}
		}
	}
}

func manual(res Result, schedule model.ShiftSchedule, opts Options, loc *time.Location) (Result, error) {
	if schedule.Date == "" {
		return Result{}, ErrNoDate
	}
	if opts.ManualIn != nil {
		at, err := opts.ManualIn.On(schedule.Date, loc)
		if err != nil {
			return Result{}, fmt.Errorf("manual in: %w", err)
		}
		res.In = &model.RawTransaction{
			Source: model.ManualController, StaffNo: schedule.StaffNo, Timestamp: at,
			Controller: model.ManualController, Kind: model.KindClockIn,
		}
	}
	if opts.ManualOut != nil {
		at, err := opts.ManualOut.On(schedule.Date, loc)
		if err != nil {
			return Result{}, fmt.Errorf("manual out: %w", err)
		}
		if opts.ManualIn != nil && *opts.ManualOut <= *opts.ManualIn {
			at = at.AddDate(0, 0, 1)
		}
		res.Out = &model.RawTransaction{
			Source: model.ManualController, StaffNo: schedule.StaffNo, Timestamp: at,
			Controller: model.ManualController, Kind: model.KindClockOut,
		}
	}
	return res, nil
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
