package runtime

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

type timerEntry struct {
	deadline  time.Time
	seq       uint64
	fn        func()
	cancelled bool
}

type timerHeap []*timerEntry

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	if h[i].deadline.Equal(h[j].deadline) {
		return h[i].seq < h[j].seq
	}
	return h[i].deadline.Before(h[j].deadline)
}
func (h timerHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *timerHeap) Push(x any)   { *h = append(*h, x.(*timerEntry)) }
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Fake is a manually-advanced Runtime for deterministic protocol tests: no
// wall-clock time passes except when the test calls Advance.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	timers  timerHeap
	seq     uint64
	pending []func(ctx context.Context)
}

// NewFake constructs a Fake Runtime with its virtual clock set to start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

// Now returns the fake's current virtual time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Spawn records fn to be run synchronously by the next call to RunSpawned,
// so tests observe goroutine side effects deterministically rather than
// racing a real goroutine.
func (f *Fake) Spawn(fn func(ctx context.Context)) {
	f.mu.Lock()
	f.pending = append(f.pending, fn)
	f.mu.Unlock()
}

// RunSpawned synchronously runs every Spawn call queued since the last
// RunSpawned, in order.
func (f *Fake) RunSpawned(ctx context.Context) {
	f.mu.Lock()
	pending := f.pending
	f.pending = nil
	f.mu.Unlock()
	for _, fn := range pending {
		fn(ctx)
	}
}

// SleepUntil schedules fn to fire the next time Advance reaches deadline.
func (f *Fake) SleepUntil(deadline time.Time, fn func()) CancelFunc {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	entry := &timerEntry{deadline: deadline, seq: f.seq, fn: fn}
	heap.Push(&f.timers, entry)
	return func() {
		f.mu.Lock()
		entry.cancelled = true
		f.mu.Unlock()
	}
}

// Oneshot schedules fn to fire d after the current virtual time.
func (f *Fake) Oneshot(d time.Duration, fn func()) CancelFunc {
	return f.SleepUntil(f.Now().Add(d), fn)
}

// Advance moves the virtual clock forward by d, firing (in deadline order)
// every non-cancelled timer whose deadline falls at or before the new time.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	f.now = target
	var due []*timerEntry
	for f.timers.Len() > 0 && !f.timers[0].deadline.After(target) {
		entry := heap.Pop(&f.timers).(*timerEntry)
		if !entry.cancelled {
			due = append(due, entry)
		}
	}
	f.mu.Unlock()
	for _, entry := range due {
		entry.fn()
	}
}

// PendingTimers reports how many timers are still scheduled, for test assertions.
func (f *Fake) PendingTimers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.timers.Len()
}
