// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar date format used for work dates and keys.
const DateLayout = "2006-01-02"

// EventKind is the raw event classification reported by the access controller.
type EventKind int

// Known event kinds.
const (
	KindClockIn EventKind = iota + 1
	KindClockOut
	KindOutsideRange
)

// ParseEventKind maps the controller's event label onto an EventKind.
// Labels are matched case-insensitively ignoring spaces and underscores,
// so "Clock In", "CLOCK_IN" and "clockin" are equivalent.
func ParseEventKind(s string) (EventKind, error) {
	norm := strings.NewReplacer(" ", "", "_", "", "-", "").Replace(strings.ToLower(strings.TrimSpace(s)))
	switch norm {
	case "clockin", "in":
		return KindClockIn, nil
	case "clockout", "out":
		return KindClockOut, nil
	case "outsiderange", "outofrange":
		return KindOutsideRange, nil
	}
	return 0, fmt.Errorf("unknown event kind %q", s)
}

// String returns the controller label for k.
func (k EventKind) String() string {
	switch k {
	case KindClockIn:
		return "Clock In"
	case KindClockOut:
		return "Clock Out"
	case KindOutsideRange:
		return "Outside Range"
	}
	return "Unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (k EventKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *EventKind) UnmarshalText(b []byte) error {
	parsed, err := ParseEventKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// RawTransaction is one badge read as stored by a source system.
type RawTransaction struct {
	ID         int64
	Source     string // name of the source store the row came from
	StaffNo    string
	Timestamp  time.Time
	Controller string
	Position   string
	Kind       EventKind
	Processed  bool
}

// WorkDate returns the calendar date of the punch in loc.
func (t RawTransaction) WorkDate(loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.Timestamp.In(loc).Format(DateLayout)
}

// GroupKey identifies one (employee, date) reconciliation unit.
type GroupKey struct {
	StaffNo string `json:"staff_no"`
	Date    string `json:"date"` // DateLayout
}

// String renders the key as "date/staff".
func (k GroupKey) String() string { return k.Date + "/" + k.StaffNo }

// Less orders keys by date then staff number.
func (k GroupKey) Less(o GroupKey) bool {
	if k.Date != o.Date {
		return k.Date < o.Date
	}
	return k.StaffNo < o.StaffNo
}

// Employee is the master record for a staff member.
type Employee struct {
	StaffNo    string `json:"staff_no"`
	Name       string `json:"name"`
	Department string `json:"department"`
	Position   string `json:"position"`
	Company    string `json:"company"`
}
