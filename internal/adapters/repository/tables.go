package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/widjis/attend-now-report-view-sub001/internal/domain/model"
)

// transactionRow is one raw badge read. WorkDate is derived from Timestamp
// in the store's zone when the row is written.
type transactionRow struct {
	ID         int64     `gorm:"primaryKey;autoIncrement"`
	StaffNo    string    `gorm:"size:32;not null;index:idx_txn_pending,priority:2"`
	WorkDate   string    `gorm:"size:10;not null;index:idx_txn_pending,priority:1"`
	Timestamp  time.Time `gorm:"column:ts;not null;index"`
	Controller string    `gorm:"size:64"`
	Position   string    `gorm:"size:64"`
	Kind       string    `gorm:"size:16;not null"`
	Processed  bool      `gorm:"not null;default:false;index:idx_txn_pending,priority:3"`
}

func (transactionRow) TableName() string { return "access_transactions" }

func (r transactionRow) toModel(source string) (model.RawTransaction, error) {
	kind, err := model.ParseEventKind(r.Kind)
	if err != nil {
		return model.RawTransaction{}, fmt.Errorf("transaction %d: %w", r.ID, err)
	}
	return model.RawTransaction{
		ID: r.ID, Source: source, StaffNo: r.StaffNo, Timestamp: r.Timestamp,
		Controller: r.Controller, Position: r.Position, Kind: kind, Processed: r.Processed,
	}, nil
}

// employeeRow is the employee master joined with its shift assignment.
type employeeRow struct {
	StaffNo      string `gorm:"primaryKey;size:32"`
	Name         string `gorm:"size:128"`
	Department   string `gorm:"size:128"`
	Position     string `gorm:"size:128"`
	Company      string `gorm:"size:128"`
	ScheduleType string `gorm:"size:32"`
	// Overrides maps day class to {"in":"HH:MM:SS","out":"HH:MM:SS"}.
	Overrides datatypes.JSON
}

func (employeeRow) TableName() string { return "employees" }

type windowJSON struct {
	In  string `json:"in"`
	Out string `json:"out"`
}

func (r employeeRow) assignment() (model.ShiftAssignment, error) {
	a := model.ShiftAssignment{StaffNo: r.StaffNo, Type: model.ParseScheduleType(r.ScheduleType)}
	if len(r.Overrides) == 0 {
		return a, nil
	}
	var raw map[model.DayClass]windowJSON
	if err := json.Unmarshal(r.Overrides, &raw); err != nil {
		return a, fmt.Errorf("overrides of %s: %w", r.StaffNo, err)
	}
	a.Overrides = make(map[model.DayClass]model.ShiftWindow, len(raw))
	for class, w := range raw {
		in, err := model.ParseTimeOfDay(w.In)
		if err != nil {
			return a, fmt.Errorf("override %s in of %s: %w", class, r.StaffNo, err)
		}
		out, err := model.ParseTimeOfDay(w.Out)
		if err != nil {
			return a, fmt.Errorf("override %s out of %s: %w", class, r.StaffNo, err)
		}
		a.Overrides[class] = model.ShiftWindow{In: in, Out: out}
	}
	return a, nil
}

func newEmployeeRow(e model.Employee, a *model.ShiftAssignment) (employeeRow, error) {
	row := employeeRow{
		StaffNo: e.StaffNo, Name: e.Name, Department: e.Department,
		Position: e.Position, Company: e.Company,
	}
	if a == nil {
		return row, nil
	}
	row.ScheduleType = string(a.Type)
	if len(a.Overrides) > 0 {
		raw := make(map[model.DayClass]windowJSON, len(a.Overrides))
		for class, w := range a.Overrides {
			raw[class] = windowJSON{In: w.In.String(), Out: w.Out.String()}
		}
		b, err := json.Marshal(raw)
		if err != nil {
			return row, err
		}
		row.Overrides = b
	}
	return row, nil
}

// recordRow is the canonical attendance row, unique per (staff_no, work_date).
type recordRow struct {
	ID            int64  `gorm:"primaryKey;autoIncrement"`
	StaffNo       string `gorm:"size:32;not null;uniqueIndex:idx_record_key,priority:1"`
	WorkDate      string `gorm:"size:10;not null;uniqueIndex:idx_record_key,priority:2"`
	ScheduleType  string `gorm:"size:32"`
	ScheduledIn   *time.Time
	ScheduledOut  *time.Time
	ActualIn      *time.Time
	ActualOut     *time.Time
	InController  string `gorm:"size:64"`
	OutController string `gorm:"size:64"`
	InStatus      string `gorm:"size:16"`
	OutStatus     string `gorm:"size:16"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (recordRow) TableName() string { return "attendance_records" }

func newRecordRow(r *model.CanonicalRecord) recordRow {
	return recordRow{
		StaffNo: r.StaffNo, WorkDate: r.Date, ScheduleType: string(r.ScheduleType),
		ScheduledIn: r.ScheduledIn, ScheduledOut: r.ScheduledOut,
		ActualIn: r.ActualIn, ActualOut: r.ActualOut,
		InController: r.InController, OutController: r.OutController,
		InStatus: string(r.InStatus), OutStatus: string(r.OutStatus),
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
}

func (r recordRow) toModel() model.CanonicalRecord {
	return model.CanonicalRecord{
		StaffNo: r.StaffNo, Date: r.WorkDate, ScheduleType: model.ScheduleType(r.ScheduleType),
		ScheduledIn: r.ScheduledIn, ScheduledOut: r.ScheduledOut,
		ActualIn: r.ActualIn, ActualOut: r.ActualOut,
		InController: r.InController, OutController: r.OutController,
		InStatus: model.Status(r.InStatus), OutStatus: model.Status(r.OutStatus),
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
}

// runRow is one audited sync run.
type runRow struct {
	ID          string    `gorm:"primaryKey;size:36"`
	WindowStart time.Time `gorm:"not null"`
	WindowEnd   time.Time `gorm:"not null"`
	Status      string    `gorm:"size:16;not null;index"`
	Initiator   string    `gorm:"size:64"`
	DurationMS  int64
	Counters    datatypes.JSON
	Options     datatypes.JSON
	Warnings    datatypes.JSON
	Errors      datatypes.JSON
	StartedAt   time.Time `gorm:"not null;index"`
	FinishedAt  *time.Time
}

func (runRow) TableName() string { return "sync_runs" }

func newRunRow(r *model.SyncRun) (runRow, error) {
	row := runRow{
		ID: r.ID, WindowStart: r.Window.Start, WindowEnd: r.Window.End,
		Status: string(r.Status), Initiator: r.Initiator,
		DurationMS: r.Duration.Milliseconds(), StartedAt: r.StartedAt,
	}
	if !r.FinishedAt.IsZero() {
		t := r.FinishedAt
		row.FinishedAt = &t
	}
	for _, f := range []struct {
		dst *datatypes.JSON
		v   any
	}{
		{&row.Counters, r.Counters},
		{&row.Options, r.Options},
		{&row.Warnings, nonNil(r.Warnings)},
		{&row.Errors, nonNil(r.Errors)},
	} {
		b, err := json.Marshal(f.v)
		if err != nil {
			return row, fmt.Errorf("encode run %s: %w", r.ID, err)
		}
		*f.dst = b
	}
	return row, nil
}

func nonNil(issues []model.Issue) []model.Issue {
	if issues == nil {
		return []model.Issue{}
	}
	return issues
}

func (r runRow) toModel() (model.SyncRun, error) {
	run := model.SyncRun{
		ID: r.ID, Window: model.Window{Start: r.WindowStart, End: r.WindowEnd},
		Status: model.RunStatus(r.Status), Initiator: r.Initiator,
		Duration: time.Duration(r.DurationMS) * time.Millisecond, StartedAt: r.StartedAt,
	}
	if r.FinishedAt != nil {
		run.FinishedAt = *r.FinishedAt
	}
	for _, f := range []struct {
		src datatypes.JSON
		dst any
	}{
		{r.Counters, &run.Counters},
		{r.Options, &run.Options},
		{r.Warnings, &run.Warnings},
		{r.Errors, &run.Errors},
	} {
		if len(f.src) == 0 {
			continue
		}
		if err := json.Unmarshal(f.src, f.dst); err != nil {
			return run, fmt.Errorf("decode run %s: %w", r.ID, err)
		}
	}
	return run, nil
}

// scheduleRow holds the scheduler master switch. There is a single row.
type scheduleRow struct {
	ID        int `gorm:"primaryKey"`
	Enabled   bool
	UpdatedAt time.Time
}

func (scheduleRow) TableName() string { return "sync_schedule" }

type scheduleEntryRow struct {
	ID          string `gorm:"primaryKey;size:36"`
	Position    int    `gorm:"not null"`
	Time        string `gorm:"size:5;not null"`
	Timezone    string `gorm:"size:64;not null"`
	Enabled     bool
	Description string `gorm:"size:200"`
	WindowDays  int
	LastRun     *time.Time
	NextRun     *time.Time
}

func (scheduleEntryRow) TableName() string { return "sync_schedule_entries" }
