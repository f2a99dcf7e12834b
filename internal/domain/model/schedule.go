package model

import (
	"fmt"
	"strings"
	"time"
)

// ScheduleType names a shift pattern.
type ScheduleType string

// Known schedule types.
const (
	ScheduleFixed               ScheduleType = "Fixed"
	ScheduleTwoShiftDay         ScheduleType = "TwoShift_Day"
	ScheduleTwoShiftNight       ScheduleType = "TwoShift_Night"
	ScheduleThreeShiftMorning   ScheduleType = "ThreeShift_Morning"
	ScheduleThreeShiftAfternoon ScheduleType = "ThreeShift_Afternoon"
	ScheduleThreeShiftNight     ScheduleType = "ThreeShift_Night"
	ScheduleUnknown             ScheduleType = "Unknown"
)

// ScheduleTypes lists every evaluable schedule type.
var ScheduleTypes = []ScheduleType{
	ScheduleFixed,
	ScheduleTwoShiftDay,
	ScheduleTwoShiftNight,
	ScheduleThreeShiftMorning,
	ScheduleThreeShiftAfternoon,
	ScheduleThreeShiftNight,
}

// ParseScheduleType returns the matching ScheduleType, or ScheduleUnknown.
func ParseScheduleType(s string) ScheduleType {
	for _, t := range ScheduleTypes {
		if strings.EqualFold(string(t), strings.TrimSpace(s)) {
			return t
		}
	}
	return ScheduleUnknown
}

// DayClass is the calendar classification of a date.
type DayClass string

// Day classes.
const (
	DayWeekday DayClass = "weekday"
	DayWeekend DayClass = "weekend"
	DayHoliday DayClass = "holiday"
)

// TimeOfDay is an offset from midnight with second precision.
type TimeOfDay time.Duration

// ParseTimeOfDay parses "HH:MM" or "HH:MM:SS".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return TimeOfDay(time.Duration(t.Hour())*time.Hour +
				time.Duration(t.Minute())*time.Minute +
				time.Duration(t.Second())*time.Second), nil
		}
	}
	return 0, fmt.Errorf("invalid time of day %q", s)
}

// MustTimeOfDay is ParseTimeOfDay for constants; it panics on bad input.
func MustTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

// On anchors the time of day on the given calendar date in loc.
func (t TimeOfDay) On(date string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	d, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	return d.Add(time.Duration(t)), nil
}

// String renders HH:MM:SS.
func (t TimeOfDay) String() string {
	d := time.Duration(t)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// ShiftWindow is the expected clock-in and clock-out time of day.
type ShiftWindow struct {
	In  TimeOfDay
	Out TimeOfDay
}

// Overnight reports whether the shift ends on the following day.
func (w ShiftWindow) Overnight() bool { return w.Out <= w.In }

// ShiftAssignment is what a schedule source knows about an employee.
// Overrides replace the shift template for the given day class.
type ShiftAssignment struct {
	StaffNo   string
	Type      ScheduleType
	Overrides map[DayClass]ShiftWindow
}

// ShiftSchedule is the resolved expectation for one employee on one date.
type ShiftSchedule struct {
	StaffNo  string
	Date     string
	Type     ScheduleType
	DayClass DayClass
	Window   ShiftWindow
}

// Known reports whether the schedule can be evaluated.
func (s ShiftSchedule) Known() bool { return s.Type != "" && s.Type != ScheduleUnknown }

// ScheduledIn returns the expected clock-in instant.
func (s ShiftSchedule) ScheduledIn(loc *time.Location) (time.Time, error) {
	return s.Window.In.On(s.Date, loc)
}

// ScheduledOut returns the expected clock-out instant; overnight shifts end
// on the day after Date.
func (s ShiftSchedule) ScheduledOut(loc *time.Location) (time.Time, error) {
	out, err := s.Window.Out.On(s.Date, loc)
	if err != nil {
		return time.Time{}, err
	}
	if s.Window.Overnight() {
		out = out.AddDate(0, 0, 1)
	}
	return out, nil
}
