package runtime

import (
	"context"
	"sync"
	"time"
)

// Real is the production Runtime: Spawn starts a goroutine, SleepUntil and
// Oneshot are backed by time.Timer.
type Real struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu sync.WaitGroup
}

// NewReal constructs a Real runtime bound to ctx; spawned goroutines observe
// ctx's cancellation.
func NewReal(ctx context.Context) *Real {
	ctx, cancel := context.WithCancel(ctx)
	return &Real{ctx: ctx, cancel: cancel}
}

// Now returns time.Now().
func (r *Real) Now() time.Time { return time.Now() }

// Spawn runs fn on a new goroutine bound to the Runtime's context.
func (r *Real) Spawn(fn func(ctx context.Context)) {
	r.mu.Add(1)
	go func() {
		defer r.mu.Done()
		fn(r.ctx)
	}()
}

// SleepUntil schedules fn via time.AfterFunc.
func (r *Real) SleepUntil(deadline time.Time, fn func()) CancelFunc {
	d := time.Until(deadline)
	if d < 0 {
		d = 0
	}
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}

// Oneshot schedules fn after d elapses.
func (r *Real) Oneshot(d time.Duration, fn func()) CancelFunc {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}

// Close cancels the runtime's context and waits for spawned goroutines to
// return, used during orderly participant shutdown.
func (r *Real) Close() {
	r.cancel()
	r.mu.Wait()
}
