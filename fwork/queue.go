package fwork

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// QueueConfig is the configuration for [NewQueue].
type QueueConfig struct {
	// Number of worker goroutines.
	// If zero, a single worker is used.
	Workers int
}

// Queue runs tasks on a fixed set of worker goroutines.
//
// Tasks are non-reentrant:
// a task scheduled while it is running waits until the current run finishes,
// even if another worker is idle.
type Queue struct {
	log *slog.Logger

	ctx context.Context

	mu sync.Mutex

	// Signaled whenever a task finishes running,
	// so CancelSync can wait for in-progress runs.
	idle *sync.Cond

	// Tasks waiting for a worker, in scheduling order.
	ready []*task

	// Set once the lifecycle context is canceled.
	stopped bool

	// Every task created by the queue,
	// so that work pending at stop can be reported as dropped.
	tasks []*task

	// Buffered with capacity 1, so that waking workers never blocks.
	wake chan struct{}

	wg   sync.WaitGroup
	done chan struct{}
}

var _ Scheduler = (*Queue)(nil)

// NewQueue returns a new Queue and starts its workers.
// Cancel ctx to stop the workers,
// then use [*Queue.Wait] to block until they have exited.
// Tasks still pending at that point never run;
// their drop callbacks are called before Wait returns.
func NewQueue(ctx context.Context, log *slog.Logger, cfg QueueConfig) *Queue {
	n := cfg.Workers
	if n <= 0 {
		n = 1
	}

	q := &Queue{
		log: log,

		ctx: ctx,

		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	q.idle = sync.NewCond(&q.mu)

	q.wg.Add(n)
	for range n {
		go q.work(ctx)
	}

	go q.stopOnDone(ctx)

	return q
}

// Wait blocks until all workers have stopped.
func (q *Queue) Wait() {
	<-q.done
}

func (q *Queue) stopOnDone(ctx context.Context) {
	<-ctx.Done()

	q.mu.Lock()
	q.stopped = true
	q.mu.Unlock()

	q.wg.Wait()

	// No worker is left, so anything still queued or armed is lost.
	q.mu.Lock()
	var dropped []*task
	for _, t := range q.tasks {
		pending := false
		if t.armed {
			t.timer.Stop()
			t.timer = nil
			t.armed = false
			t.gen++
			pending = true
		}
		if t.queued {
			q.removeLocked(t)
			pending = true
		}
		if pending {
			dropped = append(dropped, t)
		}
	}
	q.mu.Unlock()

	for _, t := range dropped {
		t.drop("Dropping task pending at queue stop")
	}

	close(q.done)
}

// NewTask implements [Scheduler].
func (q *Queue) NewTask(name string, fn, onDrop func()) Task {
	return q.newTask(name, fn, onDrop)
}

// NewDelayedTask implements [Scheduler].
func (q *Queue) NewDelayedTask(name string, fn, onDrop func()) DelayedTask {
	return q.newTask(name, fn, onDrop)
}

func (q *Queue) newTask(name string, fn, onDrop func()) *task {
	t := &task{q: q, name: name, fn: fn, onDrop: onDrop}

	q.mu.Lock()
	q.tasks = append(q.tasks, t)
	q.mu.Unlock()

	return t
}

// acceptingLocked reports whether new work may be scheduled.
// The context is checked directly
// so that scheduling is refused as soon as it is canceled,
// before stopOnDone has run.
// q.mu must be held.
func (q *Queue) acceptingLocked() bool {
	return !q.stopped && q.ctx.Err() == nil
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) work(ctx context.Context) {
	defer q.wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}

		q.mu.Lock()
		t := q.nextLocked()
		if t == nil {
			q.mu.Unlock()

			select {
			case <-ctx.Done():
				return
			case <-q.wake:
				continue
			}
		}

		t.queued = false
		t.running = true
		more := len(q.ready) > 0
		q.mu.Unlock()

		if more {
			// Let another worker pick up the rest.
			q.signal()
		}

		t.fn()

		q.mu.Lock()
		t.running = false
		more = len(q.ready) > 0
		q.idle.Broadcast()
		q.mu.Unlock()

		if more {
			q.signal()
		}
	}
}

// nextLocked removes and returns the first ready task
// that is not currently running, or nil if there is none.
// q.mu must be held.
func (q *Queue) nextLocked() *task {
	for i, t := range q.ready {
		if !t.running {
			q.ready = slices.Delete(q.ready, i, i+1)
			return t
		}
	}
	return nil
}

// enqueueLocked appends t to the ready list.
// q.mu must be held.
func (q *Queue) enqueueLocked(t *task) {
	t.queued = true
	q.ready = append(q.ready, t)
}

func (q *Queue) removeLocked(t *task) {
	if i := slices.Index(q.ready, t); i >= 0 {
		q.ready = slices.Delete(q.ready, i, i+1)
	}
	t.queued = false
}

// task implements both Task and DelayedTask.
// All fields other than the immutable q, name, fn, and onDrop
// are protected by q.mu.
type task struct {
	q      *Queue
	name   string
	fn     func()
	onDrop func()

	queued  bool
	running bool

	armed bool
	timer *time.Timer

	// Incremented whenever an armed timer is canceled,
	// so a timer that fires concurrently with Stop is ignored.
	gen uint64
}

func (t *task) Schedule() bool {
	q := t.q
	q.mu.Lock()
	if !q.acceptingLocked() || t.queued || t.armed {
		q.mu.Unlock()
		return false
	}
	q.enqueueLocked(t)
	q.mu.Unlock()

	q.signal()
	return true
}

func (t *task) ScheduleAfter(d time.Duration) bool {
	if d <= 0 {
		return t.Schedule()
	}

	q := t.q
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.acceptingLocked() || t.queued || t.armed {
		return false
	}

	t.armed = true
	gen := t.gen
	t.timer = time.AfterFunc(d, func() {
		t.fire(gen)
	})
	return true
}

func (t *task) fire(gen uint64) {
	q := t.q
	q.mu.Lock()
	if !t.armed || t.gen != gen {
		q.mu.Unlock()
		return
	}
	t.armed = false
	t.timer = nil

	if !q.acceptingLocked() {
		q.mu.Unlock()
		t.drop("Dropping delayed task fired after queue stop")
		return
	}

	q.enqueueLocked(t)
	q.mu.Unlock()

	q.signal()
}

// drop reports a discarded run to the task's owner.
// q.mu must not be held.
func (t *task) drop(msg string) {
	t.q.log.Debug(msg, "task", t.name)
	if t.onDrop != nil {
		t.onDrop()
	}
}

func (t *task) CancelSync() bool {
	q := t.q
	q.mu.Lock()
	defer q.mu.Unlock()

	var removed bool
	for {
		if t.armed {
			t.timer.Stop()
			t.timer = nil
			t.armed = false
			t.gen++
			removed = true
		}
		if t.queued {
			q.removeLocked(t)
			removed = true
		}

		if !t.running {
			return removed
		}

		// The running function may schedule the task again
		// before it returns, so re-check everything after waking.
		q.idle.Wait()
	}
}
