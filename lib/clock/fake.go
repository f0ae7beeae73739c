// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"container/heap"
	"sync"
	"time"
)

// FakeClock is a deterministic [Clock]. Time only moves when Advance is
// called. It is safe for concurrent use.
type FakeClock struct {
	mu      sync.Mutex
	changed *sync.Cond
	now     time.Time
	timers  timerQueue
	created uint64
}

// Fake returns a FakeClock reading initial.
func Fake(initial time.Time) *FakeClock {
	c := &FakeClock{now: initial}
	c.changed = sync.NewCond(&c.mu)
	return c
}

// fakeTimer is one pending After or Ticker. period is zero for After.
type fakeTimer struct {
	deadline time.Time
	period   time.Duration
	channel  chan time.Time

	// sequence orders timers with equal deadlines by creation.
	sequence uint64
	index    int
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	channel := make(chan time.Time, 1)
	if d <= 0 {
		channel <- c.now
		return channel
	}
	c.scheduleLocked(&fakeTimer{deadline: c.now.Add(d), channel: channel})
	return channel
}

func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: NewTicker with non-positive interval")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	timer := &fakeTimer{deadline: c.now.Add(d), period: d, channel: make(chan time.Time, 1)}
	c.scheduleLocked(timer)
	return &Ticker{C: timer.channel, stop: func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if timer.index >= 0 {
			heap.Remove(&c.timers, timer.index)
			c.changed.Broadcast()
		}
	}}
}

func (c *FakeClock) scheduleLocked(timer *fakeTimer) {
	c.created++
	timer.sequence = c.created
	heap.Push(&c.timers, timer)
	c.changed.Broadcast()
}

// Advance moves time forward by d. Timers due within the step fire in
// deadline order, each seeing Now() at its own deadline; a ticker fires
// once per elapsed period, dropping ticks its channel cannot hold.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	target := c.now.Add(d)
	for len(c.timers) > 0 && !c.timers[0].deadline.After(target) {
		timer := heap.Pop(&c.timers).(*fakeTimer)
		c.now = timer.deadline
		select {
		case timer.channel <- c.now:
		default:
		}
		if timer.period > 0 {
			timer.deadline = timer.deadline.Add(timer.period)
			c.scheduleLocked(timer)
		}
	}
	c.now = target
	c.changed.Broadcast()
}

// WaitForTimers blocks until at least n timers are pending. Tests call
// it before Advance so that the goroutine under test has registered its
// wait.
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.timers) < n {
		c.changed.Wait()
	}
}

// PendingCount returns the number of pending timers.
func (c *FakeClock) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// timerQueue is a min-heap of timers by deadline.
type timerQueue []*fakeTimer

func (q timerQueue) Len() int { return len(q) }

func (q timerQueue) Less(i, j int) bool {
	if q[i].deadline.Equal(q[j].deadline) {
		return q[i].sequence < q[j].sequence
	}
	return q[i].deadline.Before(q[j].deadline)
}

func (q timerQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *timerQueue) Push(x any) {
	timer := x.(*fakeTimer)
	timer.index = len(*q)
	*q = append(*q, timer)
}

func (q *timerQueue) Pop() any {
	old := *q
	timer := old[len(old)-1]
	old[len(old)-1] = nil
	timer.index = -1
	*q = old[:len(old)-1]
	return timer
}
