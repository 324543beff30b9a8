package fegress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gordian-engine/ferry/fbuf"
	"github.com/gordian-engine/ferry/fchan"
	"github.com/gordian-engine/ferry/fwork"
	"github.com/gordian-engine/ferry/internal/fstats"
	"github.com/gordian-engine/ferry/internal/ftrace"
	"golang.org/x/time/rate"
)

const (
	// DefaultRetryInterval is the wait after the channel reports backpressure.
	// It needs to be long enough for the peer to drain at least one message;
	// observed drain rates of a few hundred messages per second
	// under load make 10ms a comfortable value.
	DefaultRetryInterval = 10 * time.Millisecond

	// DefaultMaxRetries is how many times a frame is retried
	// before it is dropped.
	DefaultMaxRetries = 1
)

var (
	// ErrBusy is returned from [*Scheduler.Submit]
	// when a frame is already in flight.
	// The caller keeps ownership of the rejected frame.
	ErrBusy = errors.New("transmit queue busy")

	// ErrFrameTooLarge is returned from [*Scheduler.Submit]
	// when the frame exceeds the channel's payload limit.
	// The caller keeps ownership of the rejected frame.
	ErrFrameTooLarge = errors.New("frame exceeds channel payload limit")
)

// TxQueue is the flow control surface of the network stack's transmit queue.
//
// Both methods are called with the scheduler's lock held,
// so they must return promptly and must not call back into the scheduler.
type TxQueue interface {
	// Stop pauses the transmit queue;
	// the stack must not submit frames until Wake.
	Stop()

	// Wake resumes the transmit queue.
	Wake()
}

// NewRetryPolicy returns the default retry policy:
// up to maxRetries retries, each after the same interval.
// A maxRetries of zero or less never retries.
func NewRetryPolicy(interval time.Duration, maxRetries int) backoff.BackOff {
	if maxRetries <= 0 {
		// WithMaxRetries treats zero as unlimited.
		return &backoff.StopBackOff{}
	}
	return backoff.WithMaxRetries(
		backoff.NewConstantBackOff(interval), uint64(maxRetries),
	)
}

// Config is the configuration for [New].
type Config struct {
	Channel fchan.Channel
	TxQueue TxQueue

	// Creates the attempt and retry tasks.
	Work fwork.Scheduler

	// Consulted after every transient failure.
	// backoff.Stop means the frame is dropped.
	// If nil, NewRetryPolicy(DefaultRetryInterval, DefaultMaxRetries) is used.
	RetryPolicy backoff.BackOff

	// If nil, a private set of counters is used.
	Counters *fstats.Counters

	// If nil, a no-op tracer is used.
	Tracer ftrace.Tracer
}

// Scheduler owns the single outbound frame slot.
// It hands the frame to the channel off the caller's goroutine,
// retries on backpressure,
// and coordinates with shutdown so the frame is released exactly once.
//
// The shutdown half of the type lives in shutdown.go.
type Scheduler struct {
	log *slog.Logger

	ch       fchan.Channel
	txq      TxQueue
	counters *fstats.Counters
	tracer   ftrace.Tracer

	attempt fwork.Task
	retry   fwork.DelayedTask

	// Limits log volume for per-frame drop messages.
	dropLog rate.Sometimes

	// Guards every field below.
	// Critical sections only mutate state and make non-blocking calls.
	mu sync.Mutex

	// The in-flight frame, or nil.
	slot *fbuf.Frame

	// Retries already made for the frame in slot.
	retries int

	policy backoff.BackOff

	state state
}

// New returns a new Scheduler.
// It panics if a required field of cfg is missing.
func New(log *slog.Logger, cfg Config) *Scheduler {
	var errs error
	if cfg.Channel == nil {
		errs = errors.Join(errs, errors.New("Config.Channel may not be nil"))
	}
	if cfg.TxQueue == nil {
		errs = errors.Join(errs, errors.New("Config.TxQueue may not be nil"))
	}
	if cfg.Work == nil {
		errs = errors.Join(errs, errors.New("Config.Work may not be nil"))
	}
	if errs != nil {
		panic(fmt.Errorf("BUG: invalid egress configuration: %w", errs))
	}

	policy := cfg.RetryPolicy
	if policy == nil {
		policy = NewRetryPolicy(DefaultRetryInterval, DefaultMaxRetries)
	}

	counters := cfg.Counters
	if counters == nil {
		counters = new(fstats.Counters)
	}

	tracer := cfg.Tracer
	if tracer == nil {
		tracer = ftrace.TracerFrom(nil)
	}

	s := &Scheduler{
		log: log,

		ch:       cfg.Channel,
		txq:      cfg.TxQueue,
		counters: counters,
		tracer:   tracer,

		dropLog: rate.Sometimes{First: 5, Interval: time.Second},

		policy: policy,
	}

	s.attempt = cfg.Work.NewTask("egress attempt", s.runAttempt, s.workDropped)
	s.retry = cfg.Work.NewDelayedTask("egress retry", s.runDelayedRetry, s.workDropped)

	return s
}

// MaxFrameSize is the largest frame Submit accepts.
func (s *Scheduler) MaxFrameSize() int {
	return s.ch.MaxPayload()
}

// Submit takes ownership of f and schedules it for transmission.
//
// A nil return means the scheduler owns f,
// even if f is dropped because shutdown has begun.
// On ErrBusy or ErrFrameTooLarge, the caller still owns f.
//
// Submit never blocks.
// The transmit queue is stopped before Submit returns,
// and woken again once the frame has been sent or dropped.
func (s *Scheduler) Submit(f *fbuf.Frame) error {
	if limit := s.ch.MaxPayload(); f.Len() > limit {
		return fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, f.Len(), limit)
	}

	s.mu.Lock()
	if s.slot != nil {
		s.mu.Unlock()
		return ErrBusy
	}

	// Single outstanding frame:
	// stop the queue before any asynchronous work can run.
	s.txq.Stop()

	if s.state != active {
		// Queue stays stopped; it will never be woken for this link.
		s.mu.Unlock()

		s.counters.TxDropped.Add(1)
		f.Release()
		s.log.Debug("Dropping frame submitted during shutdown")
		return nil
	}

	s.slot = f
	s.retries = 0
	s.policy.Reset()

	if !s.attempt.Schedule() {
		// The work queue refused the task.
		// Nothing will ever run for this frame, so reclaim it here.
		s.slot = nil
		s.txq.Wake()
		s.mu.Unlock()

		s.counters.TxDropped.Add(1)
		f.Release()
		s.log.Warn("Dropping frame: work queue refused transmit attempt")
		return nil
	}

	s.mu.Unlock()
	return nil
}

// runAttempt is the body of the attempt task.
func (s *Scheduler) runAttempt() {
	s.mu.Lock()
	f := s.slot
	retries := s.retries
	s.mu.Unlock()

	if f == nil {
		s.log.Error("BUG: transmit attempt ran with empty slot")
		return
	}

	// Only this task, Finalize, or a discarded run clear the slot.
	// Finalize never runs concurrently with this task,
	// and no other run is pending while this one is running,
	// so f stays valid without the lock held.
	_, span := s.tracer.Start(
		context.Background(),
		"egress attempt",
		ftrace.WithAttributes(
			ftrace.FrameLenAttr(f.Len()),
			ftrace.RetryAttr(retries),
		),
	)
	defer span.End()

	err := s.ch.TrySend(f.Bytes())
	outcome := fchan.Classify(err)
	span.SetAttributes(ftrace.OutcomeAttr(outcome))

	switch outcome {
	case fchan.Sent:
		s.counters.TxPackets.Add(1)
		s.counters.TxBytes.Add(uint64(f.Len()))
		s.complete(f)

	case fchan.Fatal:
		ftrace.SpanError(span, err)
		s.counters.TxErrors.Add(1)
		s.counters.TxDropped.Add(1)
		s.dropLog.Do(func() {
			s.log.Warn("Dropping frame after fatal channel error", "err", err)
		})
		s.complete(f)

	case fchan.WouldBlock:
		span.SetAttributes(ftrace.ErrorAttr(err))
		s.backpressure(f, err)

	default:
		panic(fmt.Errorf("IMPOSSIBLE: unknown send outcome %d", outcome))
	}
}

// backpressure handles a transient failure for f,
// which is still in the slot.
func (s *Scheduler) backpressure(f *fbuf.Frame, err error) {
	s.mu.Lock()

	if s.state != active {
		// No retry once shutdown has begun.
		// Reclaim the frame now rather than leaving it for Finalize.
		s.slot = nil
		s.retries = 0
		s.mu.Unlock()

		s.counters.TxDropped.Add(1)
		f.Release()
		s.log.Debug("Skipping transmit retry due to shutdown")
		return
	}

	delay := s.policy.NextBackOff()
	if delay == backoff.Stop {
		s.mu.Unlock()

		s.counters.TxDropped.Add(1)
		s.dropLog.Do(func() {
			s.log.Warn("Dropping frame: channel still full after retry", "err", err)
		})
		s.complete(f)
		return
	}

	if !s.retry.ScheduleAfter(delay) {
		s.mu.Unlock()

		s.counters.TxDropped.Add(1)
		s.log.Warn("Dropping frame: work queue refused transmit retry")
		s.complete(f)
		return
	}

	s.retries++
	s.mu.Unlock()

	s.counters.TxRetries.Add(1)
	s.log.Debug("Channel full; will retry", "delay", delay, "err", err)
}

// complete empties the slot, wakes the queue unless shutting down,
// and then releases f.
func (s *Scheduler) complete(f *fbuf.Frame) {
	s.mu.Lock()
	s.slot = nil
	s.retries = 0
	if s.state == active {
		s.txq.Wake()
	}
	s.mu.Unlock()

	// The slot no longer references f,
	// so nothing else can release it.
	f.Release()
}

// runDelayedRetry is the body of the retry task.
func (s *Scheduler) runDelayedRetry() {
	s.mu.Lock()

	if s.state != active || s.slot == nil {
		s.mu.Unlock()
		s.log.Debug("Retry skipping transmit attempt due to shutdown")
		return
	}

	if s.attempt.Schedule() {
		s.mu.Unlock()
		return
	}

	// The attempt task is never pending while the retry is,
	// so the work queue must have stopped accepting work.
	f := s.slot
	s.mu.Unlock()

	s.counters.TxDropped.Add(1)
	s.log.Warn("Dropping frame: work queue refused transmit attempt after retry delay")
	s.complete(f)
}

// workDropped is the drop callback of both tasks.
// The work queue discarded a run it had accepted,
// so nothing will ever finish the frame in the slot.
//
// At most one of the two tasks is pending for a given frame,
// so the slot still holds the frame the discarded run was for.
func (s *Scheduler) workDropped() {
	s.mu.Lock()
	f := s.slot
	if f == nil {
		// Finalize got there first.
		s.mu.Unlock()
		return
	}
	s.slot = nil
	s.retries = 0
	if s.state == active {
		s.txq.Wake()
	}
	s.mu.Unlock()

	s.counters.TxDropped.Add(1)
	f.Release()
	s.log.Warn("Dropping frame: work queue discarded pending transmit work")
}

// Pause stops the transmit queue.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txq.Stop()
}

// Resume wakes the transmit queue,
// unless a frame is in flight or shutdown has begun.
// It reports whether the queue was woken.
func (s *Scheduler) Resume() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != active || s.slot != nil {
		return false
	}
	s.txq.Wake()
	return true
}
