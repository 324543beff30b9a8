package fwork

import "time"

// Scheduler creates tasks bound to a particular execution context.
type Scheduler interface {
	// NewTask returns a task that runs fn when scheduled.
	// The name is only used for logging.
	//
	// If onDrop is not nil, it is called in place of fn
	// when a successfully scheduled run is discarded
	// because the scheduler stopped before the run could start.
	// A run removed by CancelSync is not a drop.
	// onDrop may be called from any goroutine.
	NewTask(name string, fn, onDrop func()) Task

	// NewDelayedTask returns a task that runs fn
	// some duration after being scheduled.
	// onDrop behaves as in NewTask.
	NewDelayedTask(name string, fn, onDrop func()) DelayedTask
}

// Task is a unit of work that can be scheduled to run soon.
type Task interface {
	// Schedule queues the task to run, without blocking.
	// It returns false if the task was already pending,
	// or if the scheduler no longer accepts work.
	Schedule() bool

	// CancelSync removes any pending run of the task,
	// and waits for a run already in progress to complete.
	// It returns whether a pending run was removed.
	//
	// CancelSync must not be called from the task's own function.
	CancelSync() bool
}

// DelayedTask is a unit of work that runs after a delay.
type DelayedTask interface {
	// ScheduleAfter arranges for the task to run after d, without blocking.
	// It returns false if the task was already pending,
	// or if the scheduler no longer accepts work.
	ScheduleAfter(d time.Duration) bool

	// CancelSync behaves like [Task.CancelSync],
	// also stopping an armed timer.
	CancelSync() bool
}
