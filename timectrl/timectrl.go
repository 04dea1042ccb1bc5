// Package timectrl owns simulation time: a discrete step counter and its
// mapping onto simulated wall-clock time. The whole simulator is
// single-threaded and cooperative, so the clock advances synchronously and
// listeners run inline, in registration order.
package timectrl

import "time"

// DefaultStepDuration is the simulated wall-clock span of one step.
const DefaultStepDuration = 10 * time.Minute

// StepClock drives simulation time. Steps are monotonically increasing
// integers starting at zero.
type StepClock struct {
	start    time.Time
	stepDur  time.Duration
	step     int
	listener []func(step int)
}

// NewStepClock constructs a clock anchored at start, advancing by stepDur
// of simulated time per step. A non-positive stepDur falls back to
// DefaultStepDuration.
func NewStepClock(start time.Time, stepDur time.Duration) *StepClock {
	if stepDur <= 0 {
		stepDur = DefaultStepDuration
	}
	return &StepClock{start: start.UTC(), stepDur: stepDur}
}

// Step returns the current discrete simulation step.
func (c *StepClock) Step() int { return c.step }

// SimTime returns the simulated wall-clock instant for the current step.
func (c *StepClock) SimTime() time.Time {
	return c.start.Add(time.Duration(c.step) * c.stepDur)
}

// AddListener registers a callback invoked after every step advance.
// Listeners run synchronously in registration order.
func (c *StepClock) AddListener(fn func(step int)) {
	c.listener = append(c.listener, fn)
}

// Advance moves the clock forward n steps, notifying listeners once per
// step. Negative or zero n is a no-op.
func (c *StepClock) Advance(n int) {
	for i := 0; i < n; i++ {
		c.step++
		for _, fn := range c.listener {
			fn(c.step)
		}
	}
}
