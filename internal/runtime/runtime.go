// Package runtime defines the Runtime capability the RTPS core depends on
// for scheduling (spec.md section 5: "the core never calls time.Now or
// time.Sleep directly; it depends on an injected Runtime capability so
// that tests can drive time deterministically"), plus a concrete
// goroutine/timer-backed implementation and a manual fake for tests.
package runtime

import (
	"context"
	"time"
)

// CancelFunc stops a scheduled callback. Calling it after the callback has
// already fired is a no-op.
type CancelFunc func()

// Runtime is the capability the RTPS core uses instead of calling into the
// time package or the go keyword directly.
type Runtime interface {
	// Now returns the current time. On the fake Runtime this is the
	// manually-advanced virtual clock, letting tests exercise heartbeat and
	// lease-duration timeouts without sleeping.
	Now() time.Time

	// Spawn runs fn on its own goroutine (or, on the fake, synchronously
	// enqueued for the test to pump).
	Spawn(fn func(ctx context.Context))

	// SleepUntil schedules fn to run once at or after deadline, returning a
	// CancelFunc that prevents it from running if called first.
	SleepUntil(deadline time.Time, fn func()) CancelFunc

	// Oneshot is a convenience wrapper scheduling fn after d elapses.
	Oneshot(d time.Duration, fn func()) CancelFunc
}
