package schedule

import (
	"fmt"
	"time"

	"github.com/widjis/attend-now-report-view-sub001/internal/domain/model"
)

// Calendar classifies dates as weekday, weekend or holiday.
type Calendar struct {
	holidays map[string]struct{}
	weekend  map[time.Weekday]struct{}
}

// NewCalendar returns a calendar with a Saturday/Sunday weekend and no
// holidays.
func NewCalendar() *Calendar {
	return &Calendar{
		holidays: map[string]struct{}{},
		weekend:  map[time.Weekday]struct{}{time.Saturday: {}, time.Sunday: {}},
	}
}

// AddHolidays registers dates in model.DateLayout.
func (c *Calendar) AddHolidays(dates ...string) error {
	for _, d := range dates {
		if _, err := time.Parse(model.DateLayout, d); err != nil {
			return fmt.Errorf("invalid holiday %q: %w", d, err)
		}
		c.holidays[d] = struct{}{}
	}
	return nil
}

// SetWeekend replaces the weekend days.
func (c *Calendar) SetWeekend(days ...time.Weekday) {
	c.weekend = make(map[time.Weekday]struct{}, len(days))
	for _, d := range days {
		c.weekend[d] = struct{}{}
	}
}

// Classify returns the day class of date. Holidays win over weekends.
func (c *Calendar) Classify(date time.Time) model.DayClass {
	if _, ok := c.holidays[date.Format(model.DateLayout)]; ok {
		return model.DayHoliday
	}
	if _, ok := c.weekend[date.Weekday()]; ok {
		return model.DayWeekend
	}
	return model.DayWeekday
}
