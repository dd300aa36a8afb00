// Copyright 2026 The Tourbase Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake returns a FakeClock frozen at the given time. Nothing fires
// until Advance moves the clock past a deadline.
//
// FakeClock is safe for concurrent use.
func Fake(initial time.Time) *FakeClock {
	fake := &FakeClock{current: initial}
	fake.scheduled = sync.NewCond(&fake.mu)
	return fake
}

// FakeClock is a deterministic Clock for tests. Time moves only when
// Advance is called; expired timers fire in deadline order.
//
// AfterFunc callbacks run synchronously inside Advance, in the calling
// goroutine. Calling Advance from inside a callback deadlocks.
type FakeClock struct {
	mu        sync.Mutex
	current   time.Time
	timers    []*fakeTimer
	scheduled *sync.Cond
}

// fakeTimer is one pending timer or ticker registration.
type fakeTimer struct {
	deadline time.Time

	// channel receives the fire time for After and Ticker timers.
	// Nil for AfterFunc registrations.
	channel chan time.Time

	// callback runs synchronously during Advance for AfterFunc
	// registrations. Nil otherwise.
	callback func()

	// interval is non-zero for tickers; after firing, the deadline
	// moves forward by interval and the registration stays live.
	interval time.Duration

	stopped bool
	fired   bool
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// After returns a channel that receives once the clock advances past
// the deadline. If d <= 0, it receives immediately.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	channel := make(chan time.Time, 1)
	if d <= 0 {
		channel <- c.current
		return channel
	}
	c.timers = append(c.timers, &fakeTimer{
		deadline: c.current.Add(d),
		channel:  channel,
	})
	c.scheduled.Broadcast()
	return channel
}

// AfterFunc registers f to run when the clock advances past the
// deadline. If d <= 0, f runs synchronously before AfterFunc returns.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) *Timer {
	if d <= 0 {
		f()
		return &Timer{
			stop:  func() bool { return false },
			reset: func(time.Duration) bool { return false },
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	registration := &fakeTimer{
		deadline: c.current.Add(d),
		callback: f,
	}
	c.timers = append(c.timers, registration)
	c.scheduled.Broadcast()

	return &Timer{
		stop: func() bool {
			c.mu.Lock()
			defer c.mu.Unlock()
			if registration.stopped || registration.fired {
				return false
			}
			registration.stopped = true
			return true
		},
		reset: func(d time.Duration) bool {
			c.mu.Lock()
			defer c.mu.Unlock()
			active := !registration.stopped && !registration.fired
			registration.stopped = false
			registration.fired = false
			registration.deadline = c.current.Add(d)
			if !active {
				// The registration was removed after firing; re-add it.
				c.timers = append(c.timers, registration)
				c.scheduled.Broadcast()
			}
			return active
		},
	}
}

// NewTicker registers a periodic timer. Panics if d <= 0.
func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	channel := make(chan time.Time, 1)
	registration := &fakeTimer{
		deadline: c.current.Add(d),
		channel:  channel,
		interval: d,
	}
	c.timers = append(c.timers, registration)
	c.scheduled.Broadcast()

	return &Ticker{
		C: channel,
		stop: func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			registration.stopped = true
		},
	}
}

// Advance moves the clock forward by d and fires every timer whose
// deadline falls within the new time, in deadline order. Channel sends
// are non-blocking: a full buffer drops the tick, matching
// time.Ticker. Tickers spanning multiple intervals fire once per
// interval.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.current = c.current.Add(d)
	target := c.current
	c.mu.Unlock()

	for {
		expired := c.takeExpired(target)
		if len(expired) == 0 {
			return
		}
		sort.Slice(expired, func(i, j int) bool {
			return expired[i].deadline.Before(expired[j].deadline)
		})
		for _, registration := range expired {
			if registration.callback != nil {
				registration.callback()
			} else if registration.channel != nil {
				select {
				case registration.channel <- target:
				default:
				}
			}
		}
	}
}

// takeExpired removes expired registrations, reschedules tickers, and
// returns what should fire. One-shot registrations are marked fired
// and dropped from the pending list.
func (c *FakeClock) takeExpired(target time.Time) []*fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expired, remaining []*fakeTimer
	for _, registration := range c.timers {
		if registration.stopped {
			continue
		}
		if registration.deadline.After(target) {
			remaining = append(remaining, registration)
		} else {
			expired = append(expired, registration)
		}
	}
	for _, registration := range expired {
		if registration.interval > 0 {
			registration.deadline = registration.deadline.Add(registration.interval)
			remaining = append(remaining, registration)
		} else {
			registration.fired = true
		}
	}
	c.timers = remaining
	return expired
}

// WaitForTimers blocks until at least n timers are pending. This
// removes the race between a goroutine registering its timer and the
// test advancing the clock:
//
//	go socket.Connect()
//	fake.WaitForTimers(1)          // reconnect timer registered
//	fake.Advance(2 * time.Second)  // fires deterministically
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.pendingLocked() < n {
		c.scheduled.Wait()
	}
}

// PendingCount returns the number of live registrations. Useful for
// asserting that teardown cancelled every timer.
func (c *FakeClock) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingLocked()
}

func (c *FakeClock) pendingLocked() int {
	count := 0
	for _, registration := range c.timers {
		if !registration.stopped {
			count++
		}
	}
	return count
}
