package fegress_test

import (
	"sync"
	"testing"

	"github.com/cenkalti/backoff"
	"github.com/gordian-engine/ferry/fbuf"
	"github.com/gordian-engine/ferry/fchan/fchantest"
	"github.com/gordian-engine/ferry/fwork"
	"github.com/gordian-engine/ferry/fwork/fworktest"
	"github.com/gordian-engine/ferry/internal/fegress"
	"github.com/gordian-engine/ferry/internal/fstats"
	"github.com/gordian-engine/ferry/internal/ftest"
	"github.com/stretchr/testify/require"
)

const (
	attemptTask = "egress attempt"
	retryTask   = "egress retry"
)

// recordingQueue is a TxQueue that records its transitions.
// It starts awake, as a stack would after the link is opened.
type recordingQueue struct {
	mu      sync.Mutex
	stopped bool
	stops   int
	wakes   int
}

func (q *recordingQueue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stopped = true
	q.stops++
}

func (q *recordingQueue) Wake() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stopped = false
	q.wakes++
}

func (q *recordingQueue) Stopped() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stopped
}

func (q *recordingQueue) Wakes() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.wakes
}

type fixture struct {
	Sched    *fegress.Scheduler
	Work     *fworktest.Manual
	Ch       *fchantest.Channel
	TxQ      *recordingQueue
	Pool     *fbuf.Pool
	Counters *fstats.Counters
}

type fixtureOpts struct {
	MaxPayload int
	Policy     backoff.BackOff
	Work       fwork.Scheduler
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithOpts(t, fixtureOpts{})
}

func newFixtureWithOpts(t *testing.T, opts fixtureOpts) *fixture {
	t.Helper()

	fx := &fixture{
		Ch:       fchantest.NewChannel(opts.MaxPayload),
		TxQ:      new(recordingQueue),
		Counters: new(fstats.Counters),
	}
	fx.Pool = fbuf.NewPool(fbuf.PoolConfig{FrameSize: fx.Ch.MaxPayload() + 64})

	work := opts.Work
	if work == nil {
		fx.Work = fworktest.NewManual()
		work = fx.Work
	}

	fx.Sched = fegress.New(ftest.NewLogger(t), fegress.Config{
		Channel:     fx.Ch,
		TxQueue:     fx.TxQ,
		Work:        work,
		RetryPolicy: opts.Policy,
		Counters:    fx.Counters,
	})

	return fx
}

func (fx *fixture) Attempt() *fworktest.ManualTask {
	return fx.Work.Task(attemptTask)
}

func (fx *fixture) Retry() *fworktest.ManualTask {
	return fx.Work.Task(retryTask)
}

// NewFrame returns a pool-backed frame of n pseudorandom bytes.
func (fx *fixture) NewFrame(t *testing.T, n int) *fbuf.Frame {
	t.Helper()

	f, err := fx.Pool.Copy(ftest.RandomDataForTest(t, n))
	require.NoError(t, err)
	return f
}
