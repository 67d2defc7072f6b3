// Package timer provides the tick-counted task scheduler that drives every
// wait in the engine: light dwell, detection arming, debounce, penalty
// cooldown, countdowns and speed ramps.
//
// A task is a remaining-tick count plus a callback. Advance decrements each
// task once and fires the ones that reach zero, in the order they were
// scheduled. Tasks scheduled from inside a callback start counting on the
// next Advance, so a firing can never cascade within the same tick.
package timer

import (
	"math"
	"time"
)

// DefaultTick is the fixed simulation step (50 Hz).
const DefaultTick = 20 * time.Millisecond

// Task is a handle to a scheduled callback. A nil *Task is inactive.
type Task struct {
	remaining int
	fn        func()
	every     func() bool
	cancelled bool
	done      bool
}

// Cancel stops the task from firing. Cancelling a fired or nil task is a no-op.
func (t *Task) Cancel() {
	if t != nil {
		t.cancelled = true
	}
}

// Active reports whether the task is still waiting to fire.
func (t *Task) Active() bool {
	return t != nil && !t.cancelled && !t.done
}

// Remaining returns the ticks left before the task fires.
func (t *Task) Remaining() int {
	if !t.Active() {
		return 0
	}
	return t.remaining
}

// Scheduler owns all pending tasks. It is not safe for concurrent use; the
// engine drives it from a single goroutine.
type Scheduler struct {
	tick    time.Duration
	now     uint64
	tasks   []*Task
	pending []*Task
}

// NewScheduler creates a scheduler with the given tick length.
// A non-positive tick uses DefaultTick.
func NewScheduler(tick time.Duration) *Scheduler {
	if tick <= 0 {
		tick = DefaultTick
	}
	return &Scheduler{tick: tick}
}

// Tick returns the scheduler's step length.
func (s *Scheduler) Tick() time.Duration {
	return s.tick
}

// Now returns the number of ticks advanced so far.
func (s *Scheduler) Now() uint64 {
	return s.now
}

// Elapsed returns Now expressed as a duration.
func (s *Scheduler) Elapsed() time.Duration {
	return time.Duration(s.now) * s.tick
}

// Ticks converts d to a tick count, rounding up. Anything non-positive is one tick.
func (s *Scheduler) Ticks(d time.Duration) int {
	if d <= 0 {
		return 1
	}
	n := int(math.Ceil(float64(d) / float64(s.tick)))
	if n < 1 {
		n = 1
	}
	return n
}

// After schedules fn to run once d has elapsed.
func (s *Scheduler) After(d time.Duration, fn func()) *Task {
	return s.AfterTicks(s.Ticks(d), fn)
}

// AfterTicks schedules fn to run on the n-th following Advance (minimum 1).
func (s *Scheduler) AfterTicks(n int, fn func()) *Task {
	if n < 1 {
		n = 1
	}
	t := &Task{remaining: n, fn: fn}
	s.tasks = append(s.tasks, t)
	return t
}

// Every runs fn on each following Advance until it returns false.
func (s *Scheduler) Every(fn func() bool) *Task {
	t := &Task{remaining: 1, every: fn}
	s.tasks = append(s.tasks, t)
	return t
}

// Len returns the number of active tasks.
func (s *Scheduler) Len() int {
	n := 0
	for _, t := range s.tasks {
		if t.Active() {
			n++
		}
	}
	return n
}

// Clear cancels every task, including ones not yet reached in an Advance
// that is currently firing.
func (s *Scheduler) Clear() {
	for _, t := range s.tasks {
		t.cancelled = true
	}
	for _, t := range s.pending {
		t.cancelled = true
	}
	s.tasks = nil
}

// Reset clears all tasks and rewinds the tick counter.
func (s *Scheduler) Reset() {
	s.Clear()
	s.now = 0
}

// Advance moves time forward one tick and fires due tasks.
func (s *Scheduler) Advance() {
	s.now++

	s.pending = s.tasks
	s.tasks = nil

	kept := make([]*Task, 0, len(s.pending))
	for _, t := range s.pending {
		if t.cancelled {
			continue
		}
		if t.every != nil {
			if t.every() && !t.cancelled {
				kept = append(kept, t)
			} else {
				t.done = true
			}
			continue
		}
		t.remaining--
		if t.remaining > 0 {
			kept = append(kept, t)
			continue
		}
		t.done = true
		t.fn()
	}

	s.pending = nil
	live := kept[:0]
	for _, t := range kept {
		if !t.cancelled {
			live = append(live, t)
		}
	}
	s.tasks = append(live, s.tasks...)
}
