package ftest

import (
	"testing"
	"time"
)

// ScheduleDelay is how long the Soon helpers wait
// before failing the test.
// Generous enough to tolerate a loaded CI machine running with -race.
const ScheduleDelay = 2 * time.Second

// ReceiveSoon returns the next value from ch,
// failing the test if no value arrives within [ScheduleDelay].
func ReceiveSoon[T any](t testing.TB, ch <-chan T) T {
	t.Helper()

	timer := time.NewTimer(ScheduleDelay)
	defer timer.Stop()

	select {
	case v := <-ch:
		return v
	case <-timer.C:
		t.Fatalf("did not receive value within %s", ScheduleDelay)
	}

	panic("unreachable")
}

// SendSoon sends v on ch,
// failing the test if the send does not complete within [ScheduleDelay].
func SendSoon[T any](t testing.TB, ch chan<- T, v T) {
	t.Helper()

	timer := time.NewTimer(ScheduleDelay)
	defer timer.Stop()

	select {
	case ch <- v:
		// Okay.
	case <-timer.C:
		t.Fatalf("did not send value within %s", ScheduleDelay)
	}
}

// IsSending asserts that ch is readable right now.
// It is intended for channels that are closed to signal readiness,
// so the read does not consume anything meaningful.
func IsSending[T any](t testing.TB, ch <-chan T) {
	t.Helper()

	select {
	case <-ch:
		// Okay.
	default:
		t.Fatal("channel was not ready for reading")
	}
}

// NotSending asserts that ch is not readable right now.
func NotSending[T any](t testing.TB, ch <-chan T) {
	t.Helper()

	select {
	case <-ch:
		t.Fatal("channel should not have been ready for reading")
	default:
		// Okay.
	}
}
