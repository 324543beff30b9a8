package fegress

import (
	"fmt"
	"io"
)

// state is the shutdown coordinator's position.
// Transitions only move forward.
type state uint8

const (
	active state = iota
	shuttingDown
	tornDown
)

func (s state) String() string {
	switch s {
	case active:
		return "active"
	case shuttingDown:
		return "shutting_down"
	case tornDown:
		return "torn_down"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// BeginShutdown latches the shutdown flag and stops the transmit queue.
// It reports whether this call performed the transition.
//
// Every scheduling decision checks the latch under the same lock,
// so once BeginShutdown returns no new work can be scheduled;
// work scheduled earlier either completes or is canceled by [*Scheduler.Drain].
func (s *Scheduler) BeginShutdown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != active {
		return false
	}

	s.state = shuttingDown
	s.txq.Stop()
	return true
}

// Drain cancels the retry task and then the attempt task,
// waiting for either to finish if it is running.
// After Drain returns, no egress work runs again.
//
// Drain blocks, and must only be called after BeginShutdown,
// from a goroutine that is not running egress work.
func (s *Scheduler) Drain() {
	s.mu.Lock()
	st := s.state
	s.mu.Unlock()
	if st == active {
		panic(fmt.Errorf("BUG: Drain called before BeginShutdown"))
	}

	// Retry first: a running retry may schedule one more attempt
	// if it checked the latch before BeginShutdown.
	if s.retry.CancelSync() {
		s.log.Debug("Canceled pending transmit retry")
	}
	if s.attempt.CancelSync() {
		s.log.Debug("Canceled pending transmit attempt")
	}
}

// Finalize releases a frame abandoned in the slot by canceled work,
// and closes the channel if it implements [io.Closer].
// Calls after the first are no-ops returning nil.
//
// Finalize must only be called after Drain.
func (s *Scheduler) Finalize() error {
	s.mu.Lock()
	switch s.state {
	case active:
		s.mu.Unlock()
		panic(fmt.Errorf("BUG: Finalize called before BeginShutdown"))
	case tornDown:
		s.mu.Unlock()
		return nil
	}

	f := s.slot
	s.slot = nil
	s.retries = 0
	s.state = tornDown
	s.mu.Unlock()

	if f != nil {
		s.counters.TxDropped.Add(1)
		f.Release()
		s.log.Debug("Released frame abandoned by canceled transmit work")
	}

	if c, ok := s.ch.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("failed to close channel: %w", err)
		}
	}
	return nil
}

// Shutdown runs the whole teardown sequence:
// [*Scheduler.BeginShutdown], [*Scheduler.Drain], and [*Scheduler.Finalize].
// It is safe to call more than once, but not concurrently.
func (s *Scheduler) Shutdown() error {
	s.BeginShutdown()
	s.Drain()
	return s.Finalize()
}

// ShuttingDown reports whether shutdown has begun.
func (s *Scheduler) ShuttingDown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state != active
}
