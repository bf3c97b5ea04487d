// Package clock provides Clock implementations.
package clock

import (
	"sort"
	"sync"
	"time"

	"github.com/finswitch/finswitch/ports"
)

// Real returns the actual current time.
type Real struct{}

// Now returns the current time.
func (Real) Now() time.Time {
	return time.Now()
}

// After waits for the duration to elapse.
func (Real) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

var _ ports.Clock = Real{}

// Fake provides a controllable clock for testing. Timers created with After
// fire when Advance moves the clock past their deadline.
type Fake struct {
	mu      sync.Mutex
	current time.Time
	waiters []fakeWaiter
}

type fakeWaiter struct {
	deadline time.Time
	ch       chan time.Time
}

// NewFake creates a fake clock set to the given time.
func NewFake(t time.Time) *Fake {
	return &Fake{current: t}
}

// Now returns the fake current time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// After returns a channel that fires once Advance reaches now+d.
func (f *Fake) After(d time.Duration) <-chan time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch := make(chan time.Time, 1)
	deadline := f.current.Add(d)
	if d <= 0 {
		ch <- f.current
		return ch
	}
	f.waiters = append(f.waiters, fakeWaiter{deadline: deadline, ch: ch})
	return ch
}

// Set sets the fake current time and fires due timers.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = t
	f.fire()
}

// Advance moves the fake time forward by duration d and fires due timers.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = f.current.Add(d)
	f.fire()
}

// fire completes every waiter at or before the current time. Caller holds mu.
func (f *Fake) fire() {
	sort.Slice(f.waiters, func(i, j int) bool {
		return f.waiters[i].deadline.Before(f.waiters[j].deadline)
	})
	kept := f.waiters[:0]
	for _, w := range f.waiters {
		if !w.deadline.After(f.current) {
			w.ch <- f.current
			continue
		}
		kept = append(kept, w)
	}
	f.waiters = kept
}

var _ ports.Clock = (*Fake)(nil)
