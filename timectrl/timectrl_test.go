package timectrl

import (
	"testing"
	"time"
)

func TestStepClockAdvances(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	clock := NewStepClock(start, DefaultStepDuration)

	if clock.Step() != 0 {
		t.Fatalf("initial step = %d, want 0", clock.Step())
	}
	if !clock.SimTime().Equal(start) {
		t.Fatalf("initial sim time = %v, want %v", clock.SimTime(), start)
	}

	clock.Advance(3)
	if clock.Step() != 3 {
		t.Fatalf("step after Advance(3) = %d, want 3", clock.Step())
	}
	want := start.Add(3 * DefaultStepDuration)
	if !clock.SimTime().Equal(want) {
		t.Fatalf("sim time = %v, want %v", clock.SimTime(), want)
	}
}

func TestStepClockNotifiesListenersPerStep(t *testing.T) {
	clock := NewStepClock(time.Unix(0, 0), time.Minute)

	var seen []int
	clock.AddListener(func(step int) { seen = append(seen, step) })
	clock.AddListener(func(step int) { seen = append(seen, -step) })

	clock.Advance(2)

	// Listeners fire once per elapsed step, in registration order.
	want := []int{1, -1, 2, -2}
	if len(seen) != len(want) {
		t.Fatalf("listener calls = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("listener calls = %v, want %v", seen, want)
		}
	}
}
