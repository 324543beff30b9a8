package fworktest_test

import (
	"testing"
	"time"

	"github.com/gordian-engine/ferry/fwork/fworktest"
	"github.com/stretchr/testify/require"
)

func TestManual(t *testing.T) {
	t.Parallel()

	m := fworktest.NewManual()

	var runs, drops int
	task := m.NewTask("now", func() { runs++ }, nil)
	delayed := m.NewDelayedTask("later", func() { runs += 10 }, func() { drops++ })

	require.True(t, task.Schedule())
	require.False(t, task.Schedule())
	require.True(t, delayed.ScheduleAfter(5*time.Millisecond))

	mt := m.Task("later")
	require.NotNil(t, mt)
	require.Equal(t, 5*time.Millisecond, mt.Delay())
	require.Len(t, m.Pending(), 2)

	require.Equal(t, 2, m.RunPending(10))
	require.Equal(t, 11, runs)
	require.Empty(t, m.Pending())

	require.True(t, task.Schedule())
	require.True(t, task.CancelSync())
	require.Equal(t, 1, m.Task("now").Cancels())

	require.True(t, delayed.ScheduleAfter(time.Second))
	m.Stop()
	require.False(t, task.Schedule())

	// Stopping leaves the armed task pending until it is dropped.
	require.True(t, m.Task("later").IsPending())
	require.True(t, m.Task("later").Drop())
	require.False(t, m.Task("later").Drop())
	require.Equal(t, 1, drops)
	require.Equal(t, 1, m.Task("later").Drops())
	require.Equal(t, 11, runs)
}
