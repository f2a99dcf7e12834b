package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/widjis/attend-now-report-view-sub001/internal/domain/model"
	"github.com/widjis/attend-now-report-view-sub001/internal/domain/schedule"
)

// SQLStore is the gorm backed store. One SQLStore wraps one database; it can
// act as a transaction source, the canonical target, the mirror, or all three.
type SQLStore struct {
	db  *gorm.DB
	cfg storeConfig
}

// NewSQLStore wraps db.
func NewSQLStore(db *gorm.DB, opts ...Option) *SQLStore {
	return &SQLStore{db: db, cfg: newStoreConfig(opts)}
}

// DB exposes the underlying handle.
func (s *SQLStore) DB() *gorm.DB { return s.db }

// Name implements reconcile.Source.
func (s *SQLStore) Name() string { return s.cfg.name }

// Ping implements reconcile.Source.
func (s *SQLStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// AddTransactions inserts raw reads and returns their ids.
func (s *SQLStore) AddTransactions(ctx context.Context, txns ...model.RawTransaction) ([]int64, error) {
	if len(txns) == 0 {
		return nil, nil
	}
	rows := make([]transactionRow, len(txns))
	for i, t := range txns {
		rows[i] = transactionRow{
			StaffNo: t.StaffNo, WorkDate: t.WorkDate(s.cfg.loc), Timestamp: t.Timestamp,
			Controller: t.Controller, Position: t.Position, Kind: t.Kind.String(), Processed: t.Processed,
		}
	}
	if err := s.db.WithContext(ctx).CreateInBatches(rows, 500).Error; err != nil {
		return nil, fmt.Errorf("insert transactions: %w", err)
	}
	ids := make([]int64, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	return ids, nil
}

func (s *SQLStore) pendingIn(ctx context.Context, w model.Window) *gorm.DB {
	return s.db.WithContext(ctx).Model(&transactionRow{}).
		Where("processed = ? AND ts >= ? AND ts < ?", false, w.Start, w.End)
}

// PendingKeys implements reconcile.Source.
func (s *SQLStore) PendingKeys(ctx context.Context, w model.Window, after model.GroupKey, limit int) ([]model.GroupKey, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}
	var rows []struct {
		StaffNo  string
		WorkDate string
	}
	err := s.pendingIn(ctx, w).
		Where("(work_date > ? OR (work_date = ? AND staff_no > ?))", after.Date, after.Date, after.StaffNo).
		Distinct("work_date", "staff_no").
		Order("work_date, staff_no").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("pending keys: %w", err)
	}
	keys := make([]model.GroupKey, len(rows))
	for i, r := range rows {
		keys[i] = model.GroupKey{StaffNo: r.StaffNo, Date: r.WorkDate}
	}
	return keys, nil
}

// Fetch implements reconcile.Source.
func (s *SQLStore) Fetch(ctx context.Context, w model.Window, keys []model.GroupKey) ([]model.RawTransaction, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	wanted := make(map[model.GroupKey]struct{}, len(keys))
	dates := make(map[string]struct{})
	staff := make(map[string]struct{})
	for _, k := range keys {
		wanted[k] = struct{}{}
		dates[k.Date] = struct{}{}
		staff[k.StaffNo] = struct{}{}
	}

	var rows []transactionRow
	err := s.pendingIn(ctx, w).
		Where("work_date IN ? AND staff_no IN ?", setKeys(dates), setKeys(staff)).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("fetch transactions: %w", err)
	}

	out := make([]model.RawTransaction, 0, len(rows))
	for _, r := range rows {
		if _, ok := wanted[model.GroupKey{StaffNo: r.StaffNo, Date: r.WorkDate}]; !ok {
			continue
		}
		t, err := r.toModel(s.cfg.name)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func setKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// MarkProcessed implements reconcile.Source.
func (s *SQLStore) MarkProcessed(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Model(&transactionRow{}).
		Where("id IN ?", ids).
		Update("processed", true).Error
	if err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	return nil
}

// PutEmployee upserts an employee and its shift assignment.
func (s *SQLStore) PutEmployee(ctx context.Context, e model.Employee, a *model.ShiftAssignment) error {
	row, err := newEmployeeRow(e, a)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
}

// Assignment implements schedule.Source.
func (s *SQLStore) Assignment(ctx context.Context, staffNo string) (model.ShiftAssignment, error) {
	var row employeeRow
	err := s.db.WithContext(ctx).Where("staff_no = ?", staffNo).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.ShiftAssignment{}, fmt.Errorf("assignment %s: %w", staffNo, schedule.ErrNotFound)
	}
	if err != nil {
		return model.ShiftAssignment{}, fmt.Errorf("assignment %s: %w", staffNo, err)
	}
	if row.ScheduleType == "" {
		return model.ShiftAssignment{}, fmt.Errorf("assignment %s: %w", staffNo, schedule.ErrNotFound)
	}
	return row.assignment()
}

// Upsert implements reconcile.CanonicalStore. The existence check and the
// write share a transaction so created is exact.
func (s *SQLStore) Upsert(ctx context.Context, rec *model.CanonicalRecord) (bool, error) {
	now := s.cfg.now()
	created := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing recordRow
		err := tx.Where("staff_no = ? AND work_date = ?", rec.StaffNo, rec.Date).Take(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			created = true
			rec.CreatedAt = now
		case err != nil:
			return err
		default:
			rec.CreatedAt = existing.CreatedAt
		}
		rec.UpdatedAt = now

		row := newRecordRow(rec)
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "staff_no"}, {Name: "work_date"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"schedule_type", "scheduled_in", "scheduled_out", "actual_in", "actual_out",
				"in_controller", "out_controller", "in_status", "out_status", "updated_at",
			}),
		}).Create(&row).Error
	})
	if err != nil {
		return false, fmt.Errorf("upsert record %s: %w", rec.Key(), err)
	}
	return created, nil
}

// Record returns the canonical record of a key.
func (s *SQLStore) Record(ctx context.Context, k model.GroupKey) (model.CanonicalRecord, bool, error) {
	var row recordRow
	err := s.db.WithContext(ctx).Where("staff_no = ? AND work_date = ?", k.StaffNo, k.Date).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.CanonicalRecord{}, false, nil
	}
	if err != nil {
		return model.CanonicalRecord{}, false, err
	}
	return row.toModel(), true, nil
}

// CountRecords returns the number of canonical records.
func (s *SQLStore) CountRecords(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&recordRow{}).Count(&n).Error
	return n, err
}

// SaveRun implements reconcile.RunStore.
func (s *SQLStore) SaveRun(ctx context.Context, run *model.SyncRun) error {
	row, err := newRunRow(run)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
}

// ListRuns implements reconcile.RunStore, newest first.
func (s *SQLStore) ListRuns(ctx context.Context, limit int) ([]model.SyncRun, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}
	var rows []runRow
	if err := s.db.WithContext(ctx).Order("started_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	out := make([]model.SyncRun, 0, len(rows))
	for _, r := range rows {
		run, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, nil
}

const scheduleRowID = 1

// LoadSchedule returns the stored sync schedule or ErrNoSchedule.
func (s *SQLStore) LoadSchedule(ctx context.Context) (model.SyncSchedule, error) {
	var head scheduleRow
	err := s.db.WithContext(ctx).Where("id = ?", scheduleRowID).Take(&head).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.SyncSchedule{}, ErrNoSchedule
	}
	if err != nil {
		return model.SyncSchedule{}, fmt.Errorf("load schedule: %w", err)
	}
	var rows []scheduleEntryRow
	if err := s.db.WithContext(ctx).Order("position").Find(&rows).Error; err != nil {
		return model.SyncSchedule{}, fmt.Errorf("load schedule entries: %w", err)
	}
	out := model.SyncSchedule{Enabled: head.Enabled, Entries: make([]model.ScheduleEntry, len(rows))}
	for i, r := range rows {
		out.Entries[i] = model.ScheduleEntry{
			ID: r.ID, Time: r.Time, Timezone: r.Timezone, Enabled: r.Enabled,
			Description: r.Description, WindowDays: r.WindowDays, LastRun: r.LastRun, NextRun: r.NextRun,
		}
	}
	return out, nil
}

// SaveSchedule replaces the stored sync schedule.
func (s *SQLStore) SaveSchedule(ctx context.Context, sched model.SyncSchedule) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		head := scheduleRow{ID: scheduleRowID, Enabled: sched.Enabled, UpdatedAt: s.cfg.now()}
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&head).Error; err != nil {
			return fmt.Errorf("save schedule: %w", err)
		}
		if err := tx.Where("1 = 1").Delete(&scheduleEntryRow{}).Error; err != nil {
			return fmt.Errorf("clear schedule entries: %w", err)
		}
		if len(sched.Entries) == 0 {
			return nil
		}
		rows := make([]scheduleEntryRow, len(sched.Entries))
		for i, e := range sched.Entries {
			rows[i] = scheduleEntryRow{
				ID: e.ID, Position: i, Time: e.Time, Timezone: e.Timezone, Enabled: e.Enabled,
				Description: e.Description, WindowDays: e.WindowDays, LastRun: e.LastRun, NextRun: e.NextRun,
			}
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("save schedule entries: %w", err)
		}
		return nil
	})
}
