// Package schedule resolves the expected shift of an employee on a date.
//
// Resolution is split in two: a lookup of the employee's assignment (I/O,
// behind Source) and a pure function of (assignment, day class, templates).
package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/widjis/attend-now-report-view-sub001/internal/domain/model"
	"github.com/widjis/attend-now-report-view-sub001/pkg/logger"
)

// ErrNotFound is returned by a Source when the employee has no assignment.
var ErrNotFound = errors.New("schedule assignment not found")

// Source looks up the shift assignment of an employee.
type Source interface {
	// Assignment returns ErrNotFound (possibly wrapped) when unassigned.
	Assignment(ctx context.Context, staffNo string) (model.ShiftAssignment, error)
}

// Templates maps each schedule type to its default window.
type Templates map[model.ScheduleType]model.ShiftWindow

// DefaultTemplates returns the stock shift windows.
func DefaultTemplates() Templates {
	w := func(in, out string) model.ShiftWindow {
		return model.ShiftWindow{In: model.MustTimeOfDay(in), Out: model.MustTimeOfDay(out)}
	}
	return Templates{
		model.ScheduleFixed:               w("08:00", "17:00"),
		model.ScheduleTwoShiftDay:         w("07:00", "19:00"),
		model.ScheduleTwoShiftNight:       w("19:00", "07:00"),
		model.ScheduleThreeShiftMorning:   w("06:00", "14:00"),
		model.ScheduleThreeShiftAfternoon: w("14:00", "22:00"),
		model.ScheduleThreeShiftNight:     w("22:00", "06:00"),
	}
}

// Resolve is the pure core: the schedule an assignment yields on a date of
// the given class. Day-class overrides win over the type template; an
// assignment whose type has no template resolves to Unknown.
func Resolve(a model.ShiftAssignment, date string, class model.DayClass, templates Templates) model.ShiftSchedule {
	out := model.ShiftSchedule{StaffNo: a.StaffNo, Date: date, Type: model.ScheduleUnknown, DayClass: class}
	if a.Type == "" || a.Type == model.ScheduleUnknown {
		return out
	}
	if w, ok := a.Overrides[class]; ok {
		out.Type, out.Window = a.Type, w
		return out
	}
	if w, ok := templates[a.Type]; ok {
		out.Type, out.Window = a.Type, w
	}
	return out
}

// Resolver resolves schedules through a Source.
type Resolver struct {
	source    Source
	calendar  *Calendar
	templates Templates
	loc       *time.Location
	logger    logger.Logger
}

// NewResolver builds a Resolver over source.
func NewResolver(source Source, opts ...Option) *Resolver {
	r := &Resolver{
		source:    source,
		calendar:  NewCalendar(),
		templates: DefaultTemplates(),
		loc:       time.Local,
		logger:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the schedule of staffNo on date (model.DateLayout).
// found is false when the employee has no usable assignment; the returned
// schedule then has type Unknown. err is only set for source failures.
func (r *Resolver) Resolve(ctx context.Context, staffNo, date string) (sched model.ShiftSchedule, found bool, err error) {
	a, err := r.source.Assignment(ctx, staffNo)
	return r.finish(ctx, staffNo, date, a, err)
}

func (r *Resolver) finish(ctx context.Context, staffNo, date string, a model.ShiftAssignment, err error) (model.ShiftSchedule, bool, error) {
	unknown := model.ShiftSchedule{StaffNo: staffNo, Date: date, Type: model.ScheduleUnknown}
	if errors.Is(err, ErrNotFound) {
		r.logger.Debug(ctx, "no schedule assignment", logger.String("staff_no", staffNo))
		return unknown, false, nil
	}
	if err != nil {
		return unknown, false, fmt.Errorf("lookup schedule for %s: %w", staffNo, err)
	}
	d, err := time.ParseInLocation(model.DateLayout, date, r.loc)
	if err != nil {
		return unknown, false, fmt.Errorf("invalid date %q: %w", date, err)
	}
	if a.StaffNo == "" {
		a.StaffNo = staffNo
	}
	s := Resolve(a, date, r.calendar.Classify(d), r.templates)
	return s, s.Known(), nil
}

// Session memoizes assignment lookups for the lifetime of one run, so an
// employee with many days is looked up once.
type Session struct {
	r  *Resolver
	mu sync.Mutex
	// cached lookup outcome per staff number
	memo map[string]lookup
}

type lookup struct {
	a   model.ShiftAssignment
	err error
}

// Session starts a memoizing view of r.
func (r *Resolver) Session() *Session {
	return &Session{r: r, memo: make(map[string]lookup)}
}

// Resolve behaves like Resolver.Resolve. Source failures are not cached.
func (s *Session) Resolve(ctx context.Context, staffNo, date string) (model.ShiftSchedule, bool, error) {
	s.mu.Lock()
	l, ok := s.memo[staffNo]
	s.mu.Unlock()
	if !ok {
		a, err := s.r.source.Assignment(ctx, staffNo)
		l = lookup{a: a, err: err}
		if err == nil || errors.Is(err, ErrNotFound) {
			s.mu.Lock()
			s.memo[staffNo] = l
			s.mu.Unlock()
		}
	}
	return s.r.finish(ctx, staffNo, date, l.a, l.err)
}
