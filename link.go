package ferry

import (
	"bytes"
	"context"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/gordian-engine/ferry/fbuf"
	"github.com/gordian-engine/ferry/fether"
	"github.com/gordian-engine/ferry/fwork"
	"github.com/gordian-engine/ferry/internal/fegress"
	"github.com/gordian-engine/ferry/internal/fingress"
	"github.com/gordian-engine/ferry/internal/fstats"
	"github.com/gordian-engine/ferry/internal/ftrace"
)

// Stats is a point-in-time copy of a link's counters.
type Stats = fstats.Stats

// Link is a network interface backed by a transport channel.
//
// All methods are safe for concurrent use.
type Link struct {
	log *slog.Logger

	hwAddr net.HardwareAddr

	pool     *fbuf.Pool
	counters *fstats.Counters

	egress  *fegress.Scheduler
	ingress *fingress.Ingress

	// Set only when the link created its own work queue.
	work       *fwork.Queue
	cancelWork context.CancelFunc

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// NewLink returns a new Link.
// The transmit queue is left as the caller configured it;
// call [*Link.Open] once the stack is ready to send.
//
// NewLink panics if cfg is invalid.
func NewLink(log *slog.Logger, cfg LinkConfig) *Link {
	cfg.validate(log)

	maxPayload := cfg.Channel.MaxPayload()

	pool := cfg.Pool
	if pool == nil {
		pool = fbuf.NewPool(fbuf.PoolConfig{
			FrameSize: maxPayload,
			Limit:     DefaultPoolLimit,
		})
	}

	l := &Link{
		log: log,

		hwAddr: bytes.Clone(cfg.hardwareAddr()),

		pool:     pool,
		counters: new(fstats.Counters),
	}

	sched := cfg.Scheduler
	if sched == nil {
		ctx, cancel := context.WithCancel(context.Background())
		l.work = fwork.NewQueue(ctx, log.With("link_sys", "work"), fwork.QueueConfig{Workers: 1})
		l.cancelWork = cancel
		sched = l.work
	}

	l.egress = fegress.New(log.With("link_sys", "egress"), fegress.Config{
		Channel:     cfg.Channel,
		TxQueue:     cfg.TxQueue,
		Work:        sched,
		RetryPolicy: cfg.retryPolicy(),
		Counters:    l.counters,
		Tracer:      ftrace.TracerFrom(cfg.TracerProvider),
	})

	l.ingress = fingress.New(log.With("link_sys", "ingress"), fingress.Config{
		Pool:         pool,
		Types:        cfg.acceptTypes(),
		Input:        cfg.Input,
		MaxFrameSize: maxPayload,
		Counters:     l.counters,
	})

	return l
}

// Open wakes the transmit queue so the stack may start sending.
// It is a no-op once the link is closed.
func (l *Link) Open() {
	if !l.egress.Resume() {
		l.log.Debug("Transmit queue left stopped on open")
	}
}

// Stop stops the transmit queue.
// A frame already accepted still completes,
// but the queue is woken when it does;
// call Stop again after that if the link should stay quiet.
func (l *Link) Stop() {
	l.egress.Pause()
}

// Transmit takes ownership of f and sends it to the peer asynchronously.
//
// It returns [ErrBusy] or [ErrFrameTooLarge] without taking ownership.
// Once the link is closed, Transmit releases f and returns nil;
// the frame is counted as dropped.
//
// Transmit never blocks.
func (l *Link) Transmit(f *fbuf.Frame) error {
	if l.closed.Load() {
		l.counters.TxDropped.Add(1)
		f.Release()
		return nil
	}
	return l.egress.Submit(f)
}

// Deliver accepts one message from the channel.
// Its signature matches [fchan.DeliverFunc].
// p is not retained after Deliver returns.
func (l *Link) Deliver(p []byte) {
	if l.closed.Load() {
		l.counters.RxDropped.Add(1)
		return
	}
	l.ingress.Deliver(p)
}

// MaxFrameSize is the largest frame, including its Ethernet header,
// that the link carries.
func (l *Link) MaxFrameSize() int {
	return l.egress.MaxFrameSize()
}

// MTU is the largest payload after the Ethernet header.
func (l *Link) MTU() int {
	return l.egress.MaxFrameSize() - fether.HeaderSize
}

// HardwareAddr returns a copy of the link's MAC address.
func (l *Link) HardwareAddr() net.HardwareAddr {
	return bytes.Clone(l.hwAddr)
}

// Stats returns the link's counters.
func (l *Link) Stats() Stats {
	return l.counters.Snapshot()
}

// Close shuts the link down.
// Transmit work is canceled and waited for,
// an in-flight frame is released,
// the channel is closed if it supports closing,
// and a link-owned work queue is stopped.
//
// Close must not be called from an input function or transmit queue callback.
// Calls after the first return the first call's result.
func (l *Link) Close() error {
	l.closeOnce.Do(func() {
		l.closed.Store(true)

		l.closeErr = l.egress.Shutdown()

		if l.work != nil {
			l.cancelWork()
			l.work.Wait()
		}

		if l.closeErr != nil {
			l.log.Warn("Link closed with error", "err", l.closeErr)
		} else {
			l.log.Debug("Link closed")
		}
	})
	return l.closeErr
}
