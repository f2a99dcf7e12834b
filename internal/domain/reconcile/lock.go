package reconcile

import (
	"hash/fnv"
	"sync"
	"sync/atomic"

	"github.com/widjis/attend-now-report-view-sub001/internal/domain/model"
)

// RunLock is a single-slot, non-blocking lock held for the duration of a run.
type RunLock struct {
	mu     sync.Mutex
	holder string
	cancel *atomic.Bool
}

// TryAcquire takes the lock for runID. It returns false if another run holds it.
func (l *RunLock) TryAcquire(runID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.holder != "" {
		return false
	}
	l.holder = runID
	l.cancel = new(atomic.Bool)
	return true
}

// Release frees the lock if runID holds it.
func (l *RunLock) Release(runID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.holder == runID {
		l.holder = ""
		l.cancel = nil
	}
}

// Active returns the id of the run holding the lock.
func (l *RunLock) Active() (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.holder, l.holder != ""
}

// RequestCancel flags the holding run for cancellation.
func (l *RunLock) RequestCancel(runID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.holder == "" || l.holder != runID {
		return false
	}
	l.cancel.Store(true)
	return true
}

// cancelFlag returns the cancellation flag of the holding run.
func (l *RunLock) cancelFlag(runID string) *atomic.Bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.holder != runID {
		return new(atomic.Bool)
	}
	return l.cancel
}

const keyStripes = 64

// keyLocks serializes writes per (staff, date).
type keyLocks struct {
	stripes [keyStripes]sync.Mutex
}

func (k *keyLocks) lock(key model.GroupKey) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key.String()))
	m := &k.stripes[h.Sum32()%keyStripes]
	m.Lock()
	return m.Unlock
}
