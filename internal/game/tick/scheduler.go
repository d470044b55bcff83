// Package tick provides the single-threaded game clock that drives every
// engagement, delayed damage application, and effect cleanup poll.
package tick

import (
	"container/heap"
	"math"
	"time"

	"go.uber.org/zap"
)

// Task is a pending unit of work registered with a Scheduler.
// It runs at most once per scheduling unless it was created by Repeat.
type Task struct {
	fn       func()
	due      time.Duration
	seq      uint64
	index    int
	stopped  bool
	interval time.Duration
	repeat   func() bool
}

// Stop prevents the task from running again. Safe to call multiple times and
// from within the task's own callback.
//
// Postcondition: the task's callback will not be invoked after Stop returns.
func (t *Task) Stop() {
	if t == nil {
		return
	}
	t.stopped = true
}

// Stopped reports whether Stop has been called.
func (t *Task) Stopped() bool {
	return t == nil || t.stopped
}

// Due reports the game time at which the task is next scheduled to run.
func (t *Task) Due() time.Duration {
	return t.due
}

type taskQueue []*Task

func (q taskQueue) Len() int { return len(q) }

func (q taskQueue) Less(i, j int) bool {
	if q[i].due != q[j].due {
		return q[i].due < q[j].due
	}
	return q[i].seq < q[j].seq
}

func (q taskQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *taskQueue) Push(x any) {
	t := x.(*Task)
	t.index = len(*q)
	*q = append(*q, t)
}

func (q *taskQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*q = old[:n-1]
	return t
}

type system struct {
	name string
	fn   func(now time.Duration)
}

// Scheduler owns game time. Each Advance runs the registered per-tick systems
// in registration order, then every task that has become due, ordered by due
// time and then by scheduling order.
//
// A Scheduler is not safe for concurrent use; all calls must come from the
// goroutine that advances it (see Driver).
//
// Invariant: a task scheduled during an Advance never runs within that same Advance.
type Scheduler struct {
	logger  *zap.Logger
	now     time.Duration
	seq     uint64
	queue   taskQueue
	systems []system
	ticks   uint64
}

// NewScheduler returns a Scheduler positioned at game time zero.
//
// Precondition: logger must be non-nil.
func NewScheduler(logger *zap.Logger) *Scheduler {
	if logger == nil {
		panic("tick.NewScheduler: logger must not be nil")
	}
	return &Scheduler{logger: logger}
}

// Now returns the current game time.
func (s *Scheduler) Now() time.Duration {
	return s.now
}

// Ticks returns the number of Advance calls performed so far.
func (s *Scheduler) Ticks() uint64 {
	return s.ticks
}

// Pending returns the number of tasks waiting in the queue, including
// stopped tasks that have not yet been discarded.
func (s *Scheduler) Pending() int {
	return len(s.queue)
}

// AddSystem registers fn to run once per Advance, before due tasks.
//
// Precondition: name must be non-empty; fn must be non-nil.
func (s *Scheduler) AddSystem(name string, fn func(now time.Duration)) {
	s.systems = append(s.systems, system{name: name, fn: fn})
	s.logger.Debug("tick system registered", zap.String("system", name))
}

// After schedules fn to run once d after the current game time.
// A negative d is treated as zero.
//
// Precondition: fn must be non-nil.
// Postcondition: Returns a running Task; fn runs on the first Advance that
// reaches the due time unless the Task is stopped first.
func (s *Scheduler) After(d time.Duration, fn func()) *Task {
	if d < 0 {
		d = 0
	}
	t := &Task{fn: fn}
	s.push(t, s.now+d)
	return t
}

// Repeat schedules fn to run first after delay and then every interval for as
// long as fn returns true. The returned Task stops the whole series.
//
// Precondition: interval must be > 0; fn must be non-nil.
func (s *Scheduler) Repeat(delay, interval time.Duration, fn func() bool) *Task {
	if interval <= 0 {
		panic("tick.Scheduler.Repeat: interval must be > 0")
	}
	if delay < 0 {
		delay = 0
	}
	t := &Task{interval: interval, repeat: fn}
	s.push(t, s.now+delay)
	return t
}

func (s *Scheduler) push(t *Task, due time.Duration) {
	s.seq++
	t.due = due
	t.seq = s.seq
	heap.Push(&s.queue, t)
}

// Advance moves game time forward by dt, runs every system, then runs every
// task due at or before the new time that was scheduled before this call.
//
// Precondition: dt must be >= 0.
func (s *Scheduler) Advance(dt time.Duration) {
	if dt < 0 {
		dt = 0
	}
	s.now += dt
	s.ticks++
	barrier := s.seq

	for _, sys := range s.systems {
		sys.fn(s.now)
	}

	for len(s.queue) > 0 {
		next := s.queue[0]
		if next.due > s.now || next.seq > barrier {
			break
		}
		heap.Pop(&s.queue)
		if next.stopped {
			continue
		}
		s.run(next)
	}
}

func (s *Scheduler) run(t *Task) {
	if t.repeat == nil {
		t.stopped = true
		t.fn()
		return
	}
	if !t.repeat() {
		t.stopped = true
		return
	}
	if !t.stopped {
		s.push(t, s.now+t.interval)
	}
}

// RunFor advances the scheduler in fixed steps until total game time has
// elapsed. The final step is shortened so that exactly total elapses.
//
// Precondition: step must be > 0.
func (s *Scheduler) RunFor(total, step time.Duration) {
	if step <= 0 {
		panic("tick.Scheduler.RunFor: step must be > 0")
	}
	end := s.now + total
	for s.now < end {
		dt := step
		if remaining := end - s.now; remaining < dt {
			dt = remaining
		}
		s.Advance(dt)
	}
}

// Seconds converts a content-authored duration in seconds to game time.
func Seconds(sec float64) time.Duration {
	return time.Duration(math.Round(sec * float64(time.Second)))
}
