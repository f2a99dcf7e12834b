// Package classify decides the timeliness status of a clock-in or clock-out.
package classify

import (
	"time"

	"github.com/widjis/attend-now-report-view-sub001/internal/domain/model"
)

// DefaultTolerance is the OnTime band used when none is configured.
const DefaultTolerance = 5 * time.Minute

// Input carries everything the classifier looks at for one edge.
type Input struct {
	ScheduleType model.ScheduleType
	Scheduled    time.Time
	Actual       *time.Time      // nil when no punch was matched
	Kind         model.EventKind // kind of the matched punch
	Tolerance    time.Duration
	Edge         model.Edge
}

// Classify returns the status for one edge. It is pure: the same input
// always yields the same status.
//
// Unknown schedules are not evaluable and yield StatusNone. The comparison
// is symmetric for both edges: before the band is Early, after it is Late.
func Classify(in Input) model.Status {
	if in.ScheduleType == "" || in.ScheduleType == model.ScheduleUnknown {
		return model.StatusNone
	}
	if in.Actual == nil {
		return model.StatusMissing
	}
	if in.Kind == model.KindOutsideRange {
		return model.StatusOutOfRange
	}

	tol := in.Tolerance
	if tol < 0 {
		tol = -tol
	}
	diff := in.Actual.Sub(in.Scheduled)
	switch {
	case diff < -tol:
		return model.StatusEarly
	case diff > tol:
		return model.StatusLate
	default:
		return model.StatusOnTime
	}
}

// Pair classifies both edges of a day against a resolved schedule.
type Pair struct {
	In  model.Status
	Out model.Status
}

// Day classifies both edges. in/out are nil when unmatched.
func Day(schedule model.ShiftSchedule, in, out *Punch, tolerance time.Duration, loc *time.Location) (Pair, error) {
	if !schedule.Known() {
		return Pair{}, nil
	}
	schedIn, err := schedule.ScheduledIn(loc)
	if err != nil {
		return Pair{}, err
	}
	schedOut, err := schedule.ScheduledOut(loc)
	if err != nil {
		return Pair{}, err
	}
	return Pair{
		In:  Classify(in.input(schedule.Type, schedIn, tolerance, model.EdgeIn)),
		Out: Classify(out.input(schedule.Type, schedOut, tolerance, model.EdgeOut)),
	}, nil
}

// Punch is the minimal view of a matched punch the classifier needs.
type Punch struct {
	At   time.Time
	Kind model.EventKind
}

func (p *Punch) input(t model.ScheduleType, scheduled time.Time, tol time.Duration, edge model.Edge) Input {
	in := Input{ScheduleType: t, Scheduled: scheduled, Tolerance: tol, Edge: edge}
	if p != nil {
		at := p.At
		in.Actual = &at
		in.Kind = p.Kind
	}
	return in
}
