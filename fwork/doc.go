// Package fwork is the work-scheduling facility used by the egress path.
//
// A [Task] runs as soon as a worker is free;
// a [DelayedTask] runs after a delay.
// Both are scheduled at most once at a time:
// scheduling an already pending task is a no-op.
// [Task.CancelSync] and [DelayedTask.CancelSync] remove a pending run
// and wait for any in-progress run to finish,
// which is the building block for race-free teardown.
// Work a scheduler accepted but discards when it stops
// is reported through the task's drop callback instead.
//
// [Queue] is the goroutine-backed implementation.
// Package [github.com/gordian-engine/ferry/fwork/fworktest]
// has a deterministic implementation for tests.
package fwork
