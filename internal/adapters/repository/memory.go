package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/widjis/attend-now-report-view-sub001/internal/domain/model"
	"github.com/widjis/attend-now-report-view-sub001/internal/domain/schedule"
)

// MemoryStore keeps every table in memory. It serves as a transaction
// source, schedule source, canonical store, run store and schedule store.
type MemoryStore struct {
	cfg storeConfig

	mu          sync.RWMutex
	nextID      int64
	txns        map[int64]*model.RawTransaction
	pendingIDs  map[model.GroupKey]map[int64]struct{}
	pending     pendingIndex
	employees   map[string]model.Employee
	assignments map[string]model.ShiftAssignment
	records     map[model.GroupKey]model.CanonicalRecord
	runs        map[string]model.SyncRun
	schedule    *model.SyncSchedule
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{
		cfg:         newStoreConfig(opts),
		txns:        make(map[int64]*model.RawTransaction),
		pendingIDs:  make(map[model.GroupKey]map[int64]struct{}),
		employees:   make(map[string]model.Employee),
		assignments: make(map[string]model.ShiftAssignment),
		records:     make(map[model.GroupKey]model.CanonicalRecord),
		runs:        make(map[string]model.SyncRun),
	}
}

// Name implements reconcile.Source.
func (s *MemoryStore) Name() string { return s.cfg.name }

// Ping implements reconcile.Source.
func (s *MemoryStore) Ping(context.Context) error { return nil }

// AddTransactions stores raw reads and returns their assigned ids.
func (s *MemoryStore) AddTransactions(_ context.Context, txns ...model.RawTransaction) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(txns))
	for _, t := range txns {
		s.nextID++
		t.ID = s.nextID
		t.Source = s.cfg.name
		s.txns[t.ID] = &t
		if !t.Processed {
			s.markPending(t)
		}
		ids = append(ids, t.ID)
	}
	return ids, nil
}

func (s *MemoryStore) keyOf(t model.RawTransaction) model.GroupKey {
	return model.GroupKey{StaffNo: t.StaffNo, Date: t.WorkDate(s.cfg.loc)}
}

func (s *MemoryStore) markPending(t model.RawTransaction) {
	k := s.keyOf(t)
	ids, ok := s.pendingIDs[k]
	if !ok {
		ids = make(map[int64]struct{})
		s.pendingIDs[k] = ids
		s.pending.add(k)
	}
	ids[t.ID] = struct{}{}
}

// Transaction returns a copy of one raw read.
func (s *MemoryStore) Transaction(id int64) (model.RawTransaction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.txns[id]
	if !ok {
		return model.RawTransaction{}, false
	}
	return *t, true
}

// PendingCount returns the number of keys with unprocessed reads.
func (s *MemoryStore) PendingCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending.len()
}

// PendingKeys implements reconcile.Source.
func (s *MemoryStore) PendingKeys(_ context.Context, w model.Window, after model.GroupKey, limit int) ([]model.GroupKey, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending.after(after, limit, func(k model.GroupKey) bool {
		for id := range s.pendingIDs[k] {
			if w.Contains(s.txns[id].Timestamp) {
				return true
			}
		}
		return false
	}), nil
}

// Fetch implements reconcile.Source.
func (s *MemoryStore) Fetch(_ context.Context, w model.Window, keys []model.GroupKey) ([]model.RawTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.RawTransaction
	for _, k := range keys {
		for id := range s.pendingIDs[k] {
			t := s.txns[id]
			if w.Contains(t.Timestamp) {
				out = append(out, *t)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// MarkProcessed implements reconcile.Source.
func (s *MemoryStore) MarkProcessed(_ context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		t, ok := s.txns[id]
		if !ok || t.Processed {
			continue
		}
		t.Processed = true
		k := s.keyOf(*t)
		delete(s.pendingIDs[k], id)
		if len(s.pendingIDs[k]) == 0 {
			delete(s.pendingIDs, k)
			s.pending.remove(k)
		}
	}
	return nil
}

// PutEmployee stores an employee and, when a schedule type is given, its
// shift assignment.
func (s *MemoryStore) PutEmployee(_ context.Context, e model.Employee, a *model.ShiftAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.employees[e.StaffNo] = e
	if a != nil && a.Type != "" {
		c := *a
		c.StaffNo = e.StaffNo
		s.assignments[e.StaffNo] = c
	}
	return nil
}

// Employee returns the employee record.
func (s *MemoryStore) Employee(staffNo string) (model.Employee, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.employees[staffNo]
	return e, ok
}

// Assignment implements schedule.Source.
func (s *MemoryStore) Assignment(_ context.Context, staffNo string) (model.ShiftAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assignments[staffNo]
	if !ok {
		return model.ShiftAssignment{}, fmt.Errorf("assignment %s: %w", staffNo, schedule.ErrNotFound)
	}
	return a, nil
}

// Upsert implements reconcile.CanonicalStore.
func (s *MemoryStore) Upsert(_ context.Context, rec *model.CanonicalRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.cfg.now()
	k := rec.Key()
	old, exists := s.records[k]
	if exists {
		rec.CreatedAt = old.CreatedAt
	} else {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	s.records[k] = *rec
	return !exists, nil
}

// Record returns the canonical record of a key.
func (s *MemoryStore) Record(_ context.Context, k model.GroupKey) (model.CanonicalRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[k]
	return r, ok, nil
}

// CountRecords returns the number of canonical records.
func (s *MemoryStore) CountRecords(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.records)), nil
}

// Records returns all canonical records in key order.
func (s *MemoryStore) Records() []model.CanonicalRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.CanonicalRecord, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key().Less(out[j].Key()) })
	return out
}

// SaveRun implements reconcile.RunStore.
func (s *MemoryStore) SaveRun(_ context.Context, run *model.SyncRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = *run
	return nil
}

// ListRuns implements reconcile.RunStore, newest first.
func (s *MemoryStore) ListRuns(_ context.Context, limit int) ([]model.SyncRun, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.SyncRun, 0, len(s.runs))
	for _, r := range s.runs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// LoadSchedule returns the stored sync schedule or ErrNoSchedule.
func (s *MemoryStore) LoadSchedule(context.Context) (model.SyncSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.schedule == nil {
		return model.SyncSchedule{}, ErrNoSchedule
	}
	return s.schedule.Clone(), nil
}

// SaveSchedule replaces the stored sync schedule.
func (s *MemoryStore) SaveSchedule(_ context.Context, sched model.SyncSchedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := sched.Clone()
	s.schedule = &c
	return nil
}
