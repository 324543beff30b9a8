package fworktest

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/gordian-engine/ferry/fwork"
)

// Manual is an [fwork.Scheduler] whose tasks only run
// when the test explicitly asks for it.
// Delayed tasks ignore their delay; the test decides when the "timer fires".
//
// Manual never runs a task concurrently with anything else,
// so tests control the exact interleaving of scheduled work
// with the calls they make directly.
type Manual struct {
	mu      sync.Mutex
	tasks   []*ManualTask
	stopped bool
}

var _ fwork.Scheduler = (*Manual)(nil)

// NewManual returns an empty Manual scheduler.
func NewManual() *Manual {
	return new(Manual)
}

// NewTask implements [fwork.Scheduler].
func (m *Manual) NewTask(name string, fn, onDrop func()) fwork.Task {
	return m.add(name, fn, onDrop, false)
}

// NewDelayedTask implements [fwork.Scheduler].
func (m *Manual) NewDelayedTask(name string, fn, onDrop func()) fwork.DelayedTask {
	return m.add(name, fn, onDrop, true)
}

func (m *Manual) add(name string, fn, onDrop func(), delayed bool) *ManualTask {
	t := &ManualTask{m: m, name: name, fn: fn, onDrop: onDrop, delayed: delayed}

	m.mu.Lock()
	m.tasks = append(m.tasks, t)
	m.mu.Unlock()

	return t
}

// Stop makes every later Schedule or ScheduleAfter call return false,
// simulating a work queue that no longer accepts work.
// Pending tasks stay pending; use [*ManualTask.Drop] to discard them.
func (m *Manual) Stop() {
	m.mu.Lock()
	m.stopped = true
	m.mu.Unlock()
}

// Task returns the task created with the given name, or nil.
func (m *Manual) Task(name string) *ManualTask {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tasks {
		if t.name == name {
			return t
		}
	}
	return nil
}

// Pending returns the tasks that are currently scheduled, in creation order.
func (m *Manual) Pending() []*ManualTask {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*ManualTask
	for _, t := range m.tasks {
		if t.pending {
			out = append(out, t)
		}
	}
	return out
}

// RunPending runs pending tasks in creation order
// until none are pending or limit runs have happened.
// It returns the number of runs.
func (m *Manual) RunPending(limit int) int {
	n := 0
	for n < limit {
		p := m.Pending()
		if len(p) == 0 {
			break
		}
		if p[0].Run() {
			n++
		}
	}
	return n
}

// RunRandom runs one pending task chosen by r.
// It returns false if nothing was pending.
func (m *Manual) RunRandom(r *rand.Rand) bool {
	p := m.Pending()
	if len(p) == 0 {
		return false
	}
	return p[r.IntN(len(p))].Run()
}

// ManualTask is a task created by [Manual].
type ManualTask struct {
	m *Manual

	name    string
	fn      func()
	onDrop  func()
	delayed bool

	// Guarded by m.mu.
	pending   bool
	delay     time.Duration
	schedules int
	runs      int
	cancels   int
	drops     int
}

// Schedule implements [fwork.Task].
func (t *ManualTask) Schedule() bool {
	return t.schedule(0)
}

// ScheduleAfter implements [fwork.DelayedTask].
func (t *ManualTask) ScheduleAfter(d time.Duration) bool {
	return t.schedule(d)
}

func (t *ManualTask) schedule(d time.Duration) bool {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()

	if t.m.stopped || t.pending {
		return false
	}
	t.pending = true
	t.delay = d
	t.schedules++
	return true
}

// CancelSync implements [fwork.Task] and [fwork.DelayedTask].
// Manual tasks only run on the test goroutine,
// so there is never an in-progress run to wait for.
func (t *ManualTask) CancelSync() bool {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()

	was := t.pending
	if was {
		t.pending = false
		t.cancels++
	}
	return was
}

// Run runs the task if it is pending,
// reporting whether it ran.
func (t *ManualTask) Run() bool {
	t.m.mu.Lock()
	if !t.pending {
		t.m.mu.Unlock()
		return false
	}
	t.pending = false
	t.runs++
	t.m.mu.Unlock()

	t.fn()
	return true
}

// Drop discards the pending run and calls the task's drop callback,
// as a work queue does for work pending when it stops.
// It reports whether a run was pending.
func (t *ManualTask) Drop() bool {
	t.m.mu.Lock()
	if !t.pending {
		t.m.mu.Unlock()
		return false
	}
	t.pending = false
	t.drops++
	t.m.mu.Unlock()

	if t.onDrop != nil {
		t.onDrop()
	}
	return true
}

// Name is the name the task was created with.
func (t *ManualTask) Name() string { return t.name }

// IsPending reports whether the task is scheduled.
func (t *ManualTask) IsPending() bool {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	return t.pending
}

// Delay is the duration passed to the most recent ScheduleAfter,
// or zero for an immediate schedule.
func (t *ManualTask) Delay() time.Duration {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	return t.delay
}

// Schedules counts successful Schedule or ScheduleAfter calls.
func (t *ManualTask) Schedules() int {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	return t.schedules
}

// Runs counts how many times the task ran.
func (t *ManualTask) Runs() int {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	return t.runs
}

// Cancels counts CancelSync calls that removed a pending run.
func (t *ManualTask) Cancels() int {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	return t.cancels
}

// Drops counts Drop calls that discarded a pending run.
func (t *ManualTask) Drops() int {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	return t.drops
}
