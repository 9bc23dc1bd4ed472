// Copyright 2026 The yabridge Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"slices"
	"sync"
	"time"
)

// FakeClock is a Clock whose time only moves when Advance is called.
// AfterFunc callbacks run synchronously inside Advance, so they must
// not call Advance themselves.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	pending []*fakeTimer
	changed *sync.Cond
}

type fakeTimer struct {
	due    time.Time
	period time.Duration  // non-zero for tickers
	ticks  chan time.Time // tickers
	call   func()         // AfterFunc
}

// Fake returns a FakeClock standing at start.
func Fake(start time.Time) *FakeClock {
	c := &FakeClock{now: start}
	c.changed = sync.NewCond(&c.mu)
	return c
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: NewTicker needs a positive interval")
	}
	ticks := make(chan time.Time, 1)
	timer := c.add(&fakeTimer{period: d, ticks: ticks}, d)
	return &Ticker{C: ticks, stop: func() { c.cancel(timer) }}
}

func (c *FakeClock) AfterFunc(d time.Duration, f func()) *Timer {
	timer := c.add(&fakeTimer{call: f}, d)
	return &Timer{stop: func() bool { return c.cancel(timer) }}
}

func (c *FakeClock) add(timer *fakeTimer, d time.Duration) *fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	timer.due = c.now.Add(d)
	c.pending = append(c.pending, timer)
	c.changed.Broadcast()
	return timer
}

// cancel removes timer and reports whether it was pending.
func (c *FakeClock) cancel(timer *fakeTimer) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	index := slices.Index(c.pending, timer)
	if index < 0 {
		return false
	}
	c.pending = slices.Delete(c.pending, index, index+1)
	return true
}

// Advance moves the clock forward by d and fires everything that fell
// due, earliest first. A ticker fires once per elapsed period, subject
// to its one-slot buffer.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()

	for {
		timer, at := c.next()
		if timer == nil {
			return
		}
		if timer.call != nil {
			timer.call()
			continue
		}
		select {
		case timer.ticks <- at:
		default:
		}
	}
}

// next pops the earliest timer due at or before now, rescheduling
// tickers.
func (c *FakeClock) next() (*fakeTimer, time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var earliest *fakeTimer
	for _, timer := range c.pending {
		if timer.due.After(c.now) {
			continue
		}
		if earliest == nil || timer.due.Before(earliest.due) {
			earliest = timer
		}
	}
	if earliest == nil {
		return nil, time.Time{}
	}
	at := earliest.due
	if earliest.period > 0 {
		earliest.due = earliest.due.Add(earliest.period)
	} else {
		index := slices.Index(c.pending, earliest)
		c.pending = slices.Delete(c.pending, index, index+1)
	}
	return earliest, at
}

// WaitForTimers blocks until at least n timers or tickers are pending.
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.pending) < n {
		c.changed.Wait()
	}
}

// Pending returns the number of pending timers and tickers.
func (c *FakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
