// Package dedupe collapses duplicate badge reads and tracks keys already
// handled within a run.
package dedupe

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/widjis/attend-now-report-view-sub001/internal/domain/model"
)

// DefaultEpsilon is the window within which two reads count as one tap.
const DefaultEpsilon = 3 * time.Second

// Collapse sorts punches by time and folds every punch that lands within
// epsilon of the last kept punch into it, keeping the earliest. Ties on the
// timestamp keep the lower ID so the result is deterministic.
//
// Collapsed punches are returned separately so callers can still mark them
// processed.
func Collapse(punches []model.RawTransaction, epsilon time.Duration) (kept, collapsed []model.RawTransaction) {
	if len(punches) == 0 {
		return nil, nil
	}
	sorted := make([]model.RawTransaction, len(punches))
	copy(sorted, punches)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Timestamp.Equal(sorted[j].Timestamp) {
			return sorted[i].ID < sorted[j].ID
		}
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	if epsilon < 0 {
		epsilon = 0
	}

	kept = make([]model.RawTransaction, 0, len(sorted))
	kept = append(kept, sorted[0])
	for _, p := range sorted[1:] {
		anchor := kept[len(kept)-1]
		if p.Timestamp.Sub(anchor.Timestamp) <= epsilon {
			collapsed = append(collapsed, p)
			continue
		}
		kept = append(kept, p)
	}
	return kept, collapsed
}

// Deduper records seen keys to ensure at-most-once handling.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord removes an ID so it may be handled again.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// inMemoryDeduper implements Deduper with a map. When maxSize > 0 the
// oldest recorded ids are evicted first once the bound is reached.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	order   []string // insertion order, only maintained when bounded
	maxSize int
	size    atomic.Int64
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: defaultMaxSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]struct{})
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return true
	}
	if d.maxSize > 0 {
		for len(d.seen) >= d.maxSize && len(d.order) > 0 {
			oldest := d.order[0]
			d.order = d.order[1:]
			if _, ok := d.seen[oldest]; ok {
				delete(d.seen, oldest)
				d.size.Add(-1)
			}
		}
		d.order = append(d.order, id)
	}
	d.seen[id] = struct{}{}
	d.size.Add(1)
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; !ok {
		return
	}
	delete(d.seen, id)
	d.size.Add(-1)
	// order keeps a stale entry; eviction skips ids no longer in seen.
}

func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
