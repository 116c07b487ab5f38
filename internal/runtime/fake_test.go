package runtime

import (
	"testing"
	"time"
)

func TestFakeAdvanceFiresDueTimers(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	var fired []string

	f.SleepUntil(f.Now().Add(2*time.Second), func() { fired = append(fired, "a") })
	f.Oneshot(5*time.Second, func() { fired = append(fired, "b") })

	f.Advance(1 * time.Second)
	if len(fired) != 0 {
		t.Fatalf("expected no timers fired yet, got %v", fired)
	}

	f.Advance(2 * time.Second)
	if want := []string{"a"}; !equalSlices(fired, want) {
		t.Fatalf("fired = %v, want %v", fired, want)
	}

	f.Advance(3 * time.Second)
	if want := []string{"a", "b"}; !equalSlices(fired, want) {
		t.Fatalf("fired = %v, want %v", fired, want)
	}
}

func TestFakeCancelPreventsFire(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	var fired bool
	cancel := f.Oneshot(time.Second, func() { fired = true })
	cancel()
	f.Advance(time.Hour)
	if fired {
		t.Fatal("cancelled timer fired")
	}
}

func TestFakeTimersFireInDeadlineOrder(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	var order []int
	f.Oneshot(3*time.Second, func() { order = append(order, 3) })
	f.Oneshot(1*time.Second, func() { order = append(order, 1) })
	f.Oneshot(2*time.Second, func() { order = append(order, 2) })

	f.Advance(3 * time.Second)
	want := []int{1, 2, 3}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func equalSlices(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
