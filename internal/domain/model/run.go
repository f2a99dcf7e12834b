package model

import (
	"fmt"
	"time"
)

// RunStatus is the lifecycle state of a sync run.
type RunStatus string

// Run statuses.
const (
	RunRunning   RunStatus = "running"
	RunSuccess   RunStatus = "success"
	RunError     RunStatus = "error"
	RunCancelled RunStatus = "cancelled"
)

// Terminal reports whether s is a final state.
func (s RunStatus) Terminal() bool { return s != RunRunning && s != "" }

// Window is a half-open time range [Start, End).
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Span returns End-Start.
func (w Window) Span() time.Duration { return w.End.Sub(w.Start) }

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

func (w Window) String() string {
	return fmt.Sprintf("[%s, %s)", w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
}

// DayWindow returns the window covering the `days` calendar days that end at
// the start of the day containing now, in loc. DayWindow(now, 1, loc) is
// "yesterday".
func DayWindow(now time.Time, days int, loc *time.Location) Window {
	if loc == nil {
		loc = time.Local
	}
	if days < 1 {
		days = 1
	}
	n := now.In(loc)
	end := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, loc)
	return Window{Start: end.AddDate(0, 0, -days), End: end}
}

// MatchMode selects the punch matching strategy.
type MatchMode string

// Match modes.
const (
	MatchFILO    MatchMode = "filo"
	MatchNearest MatchMode = "nearest"
)

// IssueCode classifies warnings and errors recorded on a run.
type IssueCode string

// Issue codes.
const (
	IssueScheduleNotFound  IssueCode = "ScheduleNotFound"
	IssueDuplicatePunch    IssueCode = "DuplicatePunch"
	IssueMatchAmbiguous    IssueCode = "MatchAmbiguous"
	IssuePersistence       IssueCode = "PersistenceError"
	IssueSource            IssueCode = "SourceError"
	IssueSchedule          IssueCode = "ScheduleError"
	IssueNotification      IssueCode = "NotificationError"
	IssueValidationFailure IssueCode = "ValidationFailure"
	IssueConcurrentRun     IssueCode = "ConcurrentRunRejected"
)

// Issue is one itemized warning or error.
type Issue struct {
	Code    IssueCode `json:"code"`
	Key     string    `json:"key,omitempty"` // group key, when group scoped
	Message string    `json:"message"`
}

func (i Issue) String() string {
	if i.Key == "" {
		return fmt.Sprintf("%s: %s", i.Code, i.Message)
	}
	return fmt.Sprintf("%s [%s]: %s", i.Code, i.Key, i.Message)
}

// Counters aggregates run statistics.
type Counters struct {
	Retrieved int `json:"retrieved"`
	Processed int `json:"processed"`
	Inserted  int `json:"inserted"`
	Skipped   int `json:"skipped"`
	Valid     int `json:"valid"`
	Invalid   int `json:"invalid"`
	Collapsed int `json:"collapsed"`
	Created   int `json:"created"` // subset of Inserted that did not exist before
}

// SyncRun is the audit trail of one reconciliation run.
type SyncRun struct {
	ID         string        `json:"id"`
	Window     Window        `json:"window"`
	Status     RunStatus     `json:"status"`
	Counters   Counters      `json:"counters"`
	Duration   time.Duration `json:"duration"`
	Initiator  string        `json:"initiator"`
	Options    RunOptions    `json:"options"`
	Warnings   []Issue       `json:"warnings"`
	Errors     []Issue       `json:"errors"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
}

// RunOptions are the caller supplied knobs of preview/validate/run.
// Zero values fall back to the orchestrator defaults.
type RunOptions struct {
	BatchSize            int       `json:"batch_size,omitempty"`
	DryRun               bool      `json:"dry_run,omitempty"`
	Mirror               *bool     `json:"mirror,omitempty"`     // nil follows the defaults
	ManualIn             string    `json:"manual_in,omitempty"`  // HH:MM[:SS]
	ManualOut            string    `json:"manual_out,omitempty"` // HH:MM[:SS]
	ToleranceSeconds     *int      `json:"tolerance_seconds,omitempty"`
	Mode                 MatchMode `json:"mode,omitempty"`
	DedupeEpsilonSeconds *int      `json:"dedupe_epsilon_seconds,omitempty"`
	OutsideRangeFallback bool      `json:"outside_range_fallback,omitempty"`
	Notify               bool      `json:"notify,omitempty"`
	Initiator            string    `json:"initiator,omitempty"`
}

// SyncResult is returned by a run.
type SyncResult struct {
	Run          SyncRun             `json:"run"`
	Notification *NotificationResult `json:"notification,omitempty"`
}

// NotificationResult is the outcome of delivering a run summary.
type NotificationResult struct {
	Success   bool   `json:"success"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// GroupSample is one matched group shown by preview.
type GroupSample struct {
	Key       GroupKey        `json:"key"`
	Punches   int             `json:"punches"`
	Record    CanonicalRecord `json:"record"`
	Collapsed int             `json:"collapsed"`
}

// PreviewResult summarizes what a run over the window would touch.
type PreviewResult struct {
	Window              Window        `json:"window"`
	TotalTransactions   int           `json:"total_transactions"`
	TotalGroups         int           `json:"total_groups"`
	Employees           int           `json:"employees"`
	Controllers         []string      `json:"controllers"`
	Sample              []GroupSample `json:"sample"`
	EstimatedDuration   time.Duration `json:"estimated_duration"`
	EstimatedDurationMS int64         `json:"estimated_duration_ms"`
	Warnings            []Issue       `json:"warnings,omitempty"`
}

// ValidationResult reports data quality for the window without persisting.
type ValidationResult struct {
	Window            Window   `json:"window"`
	TotalTransactions int      `json:"total_transactions"`
	TotalGroups       int      `json:"total_groups"`
	Valid             int      `json:"valid"`
	Invalid           int      `json:"invalid"`
	MissingSchedules  int      `json:"missing_schedules"`
	OutOfRangeEvents  int      `json:"out_of_range_events"`
	DuplicatePunches  int      `json:"duplicate_punches"`
	AmbiguousMatches  int      `json:"ambiguous_matches"`
	MissingIn         int      `json:"missing_in"`
	MissingOut        int      `json:"missing_out"`
	SuccessPercent    string   `json:"success_percent"`
	Recommendations   []string `json:"recommendations"`
	Issues            []Issue  `json:"issues,omitempty"`
}

// Health reports reachability and scheduler state.
type Health struct {
	SourcesReachable bool              `json:"sources_reachable"`
	Sources          map[string]string `json:"sources"`
	SchedulerRunning bool              `json:"scheduler_running"`
	RunActive        bool              `json:"run_active"`
	ActiveRunID      string            `json:"active_run_id,omitempty"`
	LastRunStatus    RunStatus         `json:"last_run_status,omitempty"`
	LastRunAt        *time.Time        `json:"last_run_at,omitempty"`
}
