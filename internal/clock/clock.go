// Package clock lets timer-driven code run against real time in
// production and a hand-advanced fake in tests.
package clock

import "time"

// Clock is the subset of the time package used by the daemon client.
type Clock interface {
	Now() time.Time
	// After returns a channel that receives once d has elapsed.
	After(d time.Duration) <-chan time.Time
	// AfterFunc calls f once d has elapsed. The returned Timer can stop or
	// re-arm the call.
	AfterFunc(d time.Duration, f func()) *Timer
}

// Timer is a scheduled AfterFunc call.
type Timer struct {
	stop  func() bool
	reset func(time.Duration) bool
}

// Stop cancels the pending call. It reports whether the call was still
// pending.
func (t *Timer) Stop() bool { return t.stop() }

// Reset re-arms the timer to fire after d. It reports whether the timer
// was pending before the reset.
func (t *Timer) Reset(d time.Duration) bool { return t.reset(d) }

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

func (realClock) AfterFunc(d time.Duration, f func()) *Timer {
	t := time.AfterFunc(d, f)
	return &Timer{stop: t.Stop, reset: t.Reset}
}
