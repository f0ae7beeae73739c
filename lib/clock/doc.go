// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source for the concert
// supervision loops.
//
// Everything that waits (handshake reachability polls, the disable
// escalation countdown, the roster refresh ticker) takes a Clock rather
// than calling the time package. Real() is the production clock. Fake()
// is deterministic: time stands still until Advance is called.
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go service.Disable(ctx)
//	c.WaitForTimers(1)      // the poll interval is registered
//	c.Advance(time.Second)  // and fires deterministically
//
// Wait combines a clock wait with context cancellation and is the
// single primitive polling loops use.
package clock
