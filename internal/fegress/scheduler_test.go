package fegress_test

import (
	"errors"
	"testing"
	"time"

	"github.com/gordian-engine/ferry/fchan"
	"github.com/gordian-engine/ferry/internal/fegress"
	"github.com/stretchr/testify/require"
)

func TestSubmit_sentOnFirstAttempt(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	f := fx.NewFrame(t, 100)
	want := append([]byte(nil), f.Bytes()...)

	require.NoError(t, fx.Sched.Submit(f))

	// Nothing is sent from the submitting goroutine,
	// but the queue is already stopped.
	require.Zero(t, fx.Ch.Calls())
	require.True(t, fx.TxQ.Stopped())
	require.True(t, fx.Attempt().IsPending())
	require.True(t, fx.Sched.HasFrame())

	require.True(t, fx.Attempt().Run())

	require.True(t, f.Released())
	require.Zero(t, fx.Pool.Outstanding())
	require.False(t, fx.TxQ.Stopped())
	require.Zero(t, fx.Sched.Retries())
	require.False(t, fx.Sched.HasFrame())
	require.Equal(t, [][]byte{want}, fx.Ch.Sent())

	st := fx.Counters.Snapshot()
	require.Equal(t, uint64(1), st.TxPackets)
	require.Equal(t, uint64(100), st.TxBytes)
	require.Zero(t, st.TxDropped)
}

func TestSubmit_wouldBlockThenSent(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	fx.Ch.Push(fchan.ErrWouldBlock, nil)

	f := fx.NewFrame(t, 60)
	require.NoError(t, fx.Sched.Submit(f))
	require.True(t, fx.Attempt().Run())

	// First failure: frame kept, one delayed retry armed.
	require.False(t, f.Released())
	require.True(t, fx.TxQ.Stopped())
	require.Equal(t, 1, fx.Sched.Retries())
	require.True(t, fx.Retry().IsPending())
	require.Equal(t, fegress.DefaultRetryInterval, fx.Retry().Delay())
	require.False(t, fx.Attempt().IsPending())

	// Retry delay elapses, which schedules another attempt.
	require.True(t, fx.Retry().Run())
	require.True(t, fx.Attempt().IsPending())

	require.True(t, fx.Attempt().Run())
	require.True(t, f.Released())
	require.False(t, fx.TxQ.Stopped())
	require.Zero(t, fx.Sched.Retries())
	require.Len(t, fx.Ch.Sent(), 1)

	st := fx.Counters.Snapshot()
	require.Equal(t, uint64(1), st.TxPackets)
	require.Equal(t, uint64(1), st.TxRetries)
	require.Zero(t, st.TxDropped)

	require.Equal(t, 1, fx.Retry().Schedules())
	require.Equal(t, 2, fx.Attempt().Runs())
}

func TestSubmit_twoWouldBlocksDropsFrame(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	fx.Ch.Push(fchan.ErrWouldBlock, fchan.ErrWouldBlock)

	f := fx.NewFrame(t, 60)
	require.NoError(t, fx.Sched.Submit(f))
	require.True(t, fx.Attempt().Run())
	require.True(t, fx.Retry().Run())
	require.True(t, fx.Attempt().Run())

	require.True(t, f.Released())
	require.False(t, fx.TxQ.Stopped())
	require.Empty(t, fx.Work.Pending())
	require.Equal(t, 1, fx.Retry().Schedules())
	require.Empty(t, fx.Ch.Sent())

	st := fx.Counters.Snapshot()
	require.Equal(t, uint64(1), st.TxDropped)
	require.Zero(t, st.TxPackets)
	require.Zero(t, st.TxErrors)
}

func TestSubmit_fatalDropsWithoutRetry(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	fx.Ch.Push(errors.New("endpoint destroyed"))

	f := fx.NewFrame(t, 60)
	require.NoError(t, fx.Sched.Submit(f))
	require.True(t, fx.Attempt().Run())

	require.True(t, f.Released())
	require.False(t, fx.TxQ.Stopped())
	require.Empty(t, fx.Work.Pending())
	require.Zero(t, fx.Retry().Schedules())

	st := fx.Counters.Snapshot()
	require.Equal(t, uint64(1), st.TxErrors)
	require.Equal(t, uint64(1), st.TxDropped)
}

func TestSubmit_busyWhileInFlight(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)

	f1 := fx.NewFrame(t, 20)
	f2 := fx.NewFrame(t, 30)

	require.NoError(t, fx.Sched.Submit(f1))
	require.ErrorIs(t, fx.Sched.Submit(f2), fegress.ErrBusy)
	require.False(t, f2.Released())

	// Still busy while waiting on a retry.
	fx.Ch.Push(fchan.ErrWouldBlock)
	require.True(t, fx.Attempt().Run())
	require.ErrorIs(t, fx.Sched.Submit(f2), fegress.ErrBusy)

	require.True(t, fx.Retry().Run())
	require.True(t, fx.Attempt().Run())
	require.True(t, f1.Released())

	require.NoError(t, fx.Sched.Submit(f2))
	require.True(t, fx.Attempt().Run())
	require.True(t, f2.Released())
	require.Zero(t, fx.Pool.Outstanding())
}

func TestSubmit_rejectsOversizeFrame(t *testing.T) {
	t.Parallel()

	fx := newFixtureWithOpts(t, fixtureOpts{MaxPayload: 64})

	f := fx.NewFrame(t, 65)
	require.ErrorIs(t, fx.Sched.Submit(f), fegress.ErrFrameTooLarge)

	require.False(t, f.Released())
	require.Zero(t, fx.Ch.Calls())
	require.Empty(t, fx.Work.Pending())
	require.False(t, fx.TxQ.Stopped())
	require.False(t, fx.Sched.HasFrame())

	// Exactly at the limit is fine.
	f.Release()
	g := fx.NewFrame(t, 64)
	require.NoError(t, fx.Sched.Submit(g))
	require.True(t, fx.Attempt().Run())
	require.True(t, g.Released())
}

func TestSubmit_refusedSchedulingDropsAndWakes(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	fx.Work.Stop()

	f := fx.NewFrame(t, 20)
	require.NoError(t, fx.Sched.Submit(f))

	require.True(t, f.Released())
	require.False(t, fx.TxQ.Stopped())
	require.False(t, fx.Sched.HasFrame())
	require.Equal(t, uint64(1), fx.Counters.Snapshot().TxDropped)
}

func TestRetry_refusedSchedulingDropsAndWakes(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	fx.Ch.Push(fchan.ErrWouldBlock)

	f := fx.NewFrame(t, 20)
	require.NoError(t, fx.Sched.Submit(f))
	require.True(t, fx.Attempt().Run())

	// The queue dies between arming the retry and its timer firing.
	fx.Work.Stop()
	require.True(t, fx.Retry().Run())

	require.True(t, f.Released())
	require.False(t, fx.TxQ.Stopped())
	require.Equal(t, uint64(1), fx.Counters.Snapshot().TxDropped)
}

func TestSubmit_configurableRetries(t *testing.T) {
	t.Parallel()

	fx := newFixtureWithOpts(t, fixtureOpts{
		Policy: fegress.NewRetryPolicy(3*time.Millisecond, 3),
	})
	fx.Ch.Push(fchan.ErrWouldBlock, fchan.ErrWouldBlock, fchan.ErrWouldBlock, nil)

	f := fx.NewFrame(t, 20)
	require.NoError(t, fx.Sched.Submit(f))

	for i := range 3 {
		require.True(t, fx.Attempt().Run())
		require.Equal(t, i+1, fx.Sched.Retries())
		require.Equal(t, 3*time.Millisecond, fx.Retry().Delay())
		require.True(t, fx.Retry().Run())
	}
	require.True(t, fx.Attempt().Run())

	require.True(t, f.Released())
	require.Len(t, fx.Ch.Sent(), 1)
	require.Equal(t, uint64(3), fx.Counters.Snapshot().TxRetries)

	// The budget resets for the next frame.
	fx.Ch.Push(fchan.ErrWouldBlock, nil)
	g := fx.NewFrame(t, 20)
	require.NoError(t, fx.Sched.Submit(g))
	require.True(t, fx.Attempt().Run())
	require.Equal(t, 1, fx.Sched.Retries())
	require.True(t, fx.Retry().Run())
	require.True(t, fx.Attempt().Run())
	require.True(t, g.Released())
}

func TestSubmit_noRetries(t *testing.T) {
	t.Parallel()

	fx := newFixtureWithOpts(t, fixtureOpts{
		Policy: fegress.NewRetryPolicy(time.Millisecond, 0),
	})
	fx.Ch.Push(fchan.ErrWouldBlock)

	f := fx.NewFrame(t, 20)
	require.NoError(t, fx.Sched.Submit(f))
	require.True(t, fx.Attempt().Run())

	require.True(t, f.Released())
	require.False(t, fx.TxQ.Stopped())
	require.Zero(t, fx.Retry().Schedules())
}

func TestPauseResume(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)

	fx.Sched.Pause()
	require.True(t, fx.TxQ.Stopped())
	require.True(t, fx.Sched.Resume())
	require.False(t, fx.TxQ.Stopped())

	// No resume while a frame is in flight.
	f := fx.NewFrame(t, 20)
	require.NoError(t, fx.Sched.Submit(f))
	require.False(t, fx.Sched.Resume())
	require.True(t, fx.TxQ.Stopped())

	require.True(t, fx.Attempt().Run())
	require.False(t, fx.TxQ.Stopped())

	require.True(t, fx.Sched.BeginShutdown())
	require.False(t, fx.Sched.Resume())
	require.True(t, fx.TxQ.Stopped())
}
