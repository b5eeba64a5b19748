// Package clock abstracts time so the flush timeout and the polling source can
// be driven deterministically in tests.
//
// Production code uses Real(). Tests use Fake(t0) and move time with Advance;
// AfterFunc callbacks run synchronously inside Advance.
package clock

import "time"

// Clock is the subset of the time package perfship schedules work with.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc calls f once after d. The returned Timer cancels the call.
	AfterFunc(d time.Duration, f func()) *Timer

	// NewTicker delivers ticks on C every d. Panics if d <= 0.
	NewTicker(d time.Duration) *Ticker
}

// Timer is a pending AfterFunc call.
type Timer struct {
	stop func() bool
}

// Stop prevents the call. It returns false if the call already ran or the
// timer was already stopped.
func (t *Timer) Stop() bool { return t.stop() }

// Ticker delivers periodic ticks on C. C has capacity 1; late ticks are dropped.
type Ticker struct {
	C    <-chan time.Time
	stop func()
}

// Stop turns the ticker off. C is not closed.
func (t *Ticker) Stop() { t.stop() }
