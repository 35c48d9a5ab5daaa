// Package clock provides the UTC time source used for every persisted
// timestamp, truncated to the millisecond precision durations are stored in.
package clock

import (
	"sync"
	"time"
)

// Clock returns the current time
type Clock interface {
	Now() time.Time
}

// System reads the wall clock
type System struct{}

// Now returns the current UTC time truncated to milliseconds
func (System) Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// Fake is a settable clock for tests
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake returns a Fake starting at t
func NewFake(t time.Time) *Fake {
	return &Fake{now: t.UTC().Truncate(time.Millisecond)}
}

// Now returns the fake's current time
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance moves the fake forward by d
func (f *Fake) Advance(d time.Duration) time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d).Truncate(time.Millisecond)
	return f.now
}

// Set moves the fake to t, which may be earlier than the current value
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t.UTC().Truncate(time.Millisecond)
}
