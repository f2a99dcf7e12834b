package model

import "time"

// ScheduleEntry is one daily trigger time of the scheduler.
type ScheduleEntry struct {
	ID          string     `json:"id"`
	Time        string     `json:"time" validate:"required,datetime=15:04"`
	Timezone    string     `json:"timezone" validate:"required,timezone"`
	Enabled     bool       `json:"enabled"`
	Description string     `json:"description" validate:"max=200"`
	WindowDays  int        `json:"window_days" validate:"gte=0,lte=31"`
	LastRun     *time.Time `json:"last_run,omitempty"`
	NextRun     *time.Time `json:"next_run,omitempty"`
}

// SyncSchedule is the scheduler's configuration and state.
type SyncSchedule struct {
	Enabled bool            `json:"enabled"`
	Entries []ScheduleEntry `json:"entries" validate:"dive"`
}

// Clone returns a deep copy safe to hand to callers.
func (s SyncSchedule) Clone() SyncSchedule {
	out := SyncSchedule{Enabled: s.Enabled, Entries: make([]ScheduleEntry, len(s.Entries))}
	for i, e := range s.Entries {
		if e.LastRun != nil {
			t := *e.LastRun
			e.LastRun = &t
		}
		if e.NextRun != nil {
			t := *e.NextRun
			e.NextRun = &t
		}
		out.Entries[i] = e
	}
	return out
}
