package reconcile

import (
	"context"

	"github.com/widjis/attend-now-report-view-sub001/internal/domain/model"
)

// Source is a store of raw access-control transactions.
type Source interface {
	// Name identifies the source in logs, health and processed routing.
	Name() string
	// PendingKeys returns up to limit (staff, date) keys with unprocessed
	// transactions in w, strictly after the cursor, in GroupKey order.
	PendingKeys(ctx context.Context, w model.Window, after model.GroupKey, limit int) ([]model.GroupKey, error)
	// Fetch returns the unprocessed transactions in w that belong to keys.
	Fetch(ctx context.Context, w model.Window, keys []model.GroupKey) ([]model.RawTransaction, error)
	// MarkProcessed flips the processed flag of the given transactions.
	MarkProcessed(ctx context.Context, ids []int64) error
	// Ping checks reachability.
	Ping(ctx context.Context) error
}

// CanonicalStore persists canonical attendance records.
type CanonicalStore interface {
	// Upsert writes rec keyed by (staff number, date). created reports
	// whether no record existed before.
	Upsert(ctx context.Context, rec *model.CanonicalRecord) (created bool, err error)
}

// RunStore keeps the audit history of runs.
type RunStore interface {
	SaveRun(ctx context.Context, run *model.SyncRun) error
	ListRuns(ctx context.Context, limit int) ([]model.SyncRun, error)
}

// Notifier delivers a run summary. It never fails the run.
type Notifier interface {
	Notify(ctx context.Context, result *model.SyncResult) model.NotificationResult
}

// Executor runs group tasks concurrently. Submit returns false when the task
// was not accepted; the orchestrator then runs it inline.
type Executor interface {
	Submit(ctx context.Context, task func(ctx context.Context)) bool
}
