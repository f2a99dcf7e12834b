package model

import "time"

// Status is the timeliness classification of one edge of a day.
// The zero value means "not evaluable".
type Status string

// Statuses.
const (
	StatusNone       Status = ""
	StatusEarly      Status = "Early"
	StatusOnTime     Status = "OnTime"
	StatusLate       Status = "Late"
	StatusOutOfRange Status = "OutOfRange"
	StatusMissing    Status = "Missing"
)

// Edge selects clock-in or clock-out.
type Edge int

// Edges.
const (
	EdgeIn Edge = iota
	EdgeOut
)

func (e Edge) String() string {
	if e == EdgeOut {
		return "out"
	}
	return "in"
}

// ManualController is recorded as the controller for manually supplied times.
const ManualController = "MANUAL"

// CanonicalRecord is the single reconciled attendance row for (staff, date).
type CanonicalRecord struct {
	StaffNo       string       `json:"staff_no"`
	Date          string       `json:"date"`
	ScheduleType  ScheduleType `json:"schedule_type"`
	ScheduledIn   *time.Time   `json:"scheduled_in,omitempty"`
	ScheduledOut  *time.Time   `json:"scheduled_out,omitempty"`
	ActualIn      *time.Time   `json:"actual_in,omitempty"`
	ActualOut     *time.Time   `json:"actual_out,omitempty"`
	InController  string       `json:"clock_in_controller,omitempty"`
	OutController string       `json:"clock_out_controller,omitempty"`
	InStatus      Status       `json:"clock_in_status,omitempty"`
	OutStatus     Status       `json:"clock_out_status,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// Key returns the upsert key of the record.
func (r CanonicalRecord) Key() GroupKey { return GroupKey{StaffNo: r.StaffNo, Date: r.Date} }

// Valid reports whether both edges were matched and classified against a
// known schedule.
func (r CanonicalRecord) Valid() bool {
	return evaluable(r.InStatus) && evaluable(r.OutStatus)
}

func evaluable(s Status) bool {
	return s == StatusEarly || s == StatusOnTime || s == StatusLate
}
