// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"context"
	"time"
)

// Clock is the time source of every supervision loop.
type Clock interface {
	Now() time.Time

	// After returns a channel that receives the time once d has
	// elapsed. A non-positive d is ready immediately.
	After(d time.Duration) <-chan time.Time

	// NewTicker delivers the time every d. It panics if d <= 0.
	NewTicker(d time.Duration) *Ticker
}

// Ticker is a periodic timer. C holds at most one tick; ticks are
// dropped while the consumer is behind.
type Ticker struct {
	C <-chan time.Time

	stop func()
}

// Stop turns the ticker off. C is not closed.
func (t *Ticker) Stop() { t.stop() }

// Wait blocks for d on c or until ctx is done, returning ctx.Err() in
// the latter case.
func Wait(ctx context.Context, c Clock, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.After(d):
		return nil
	}
}

// Real returns the wall clock.
func Real() Clock { return wallClock{} }

type wallClock struct{}

func (wallClock) Now() time.Time                         { return time.Now() }
func (wallClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

func (wallClock) NewTicker(d time.Duration) *Ticker {
	ticker := time.NewTicker(d)
	return &Ticker{C: ticker.C, stop: ticker.Stop}
}
