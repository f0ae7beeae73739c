// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"time"
)

// TB is the subset of testing.TB the helpers need.
type TB interface {
	Helper()
	Fatalf(format string, args ...any)
}

// RequireReceive returns the next value from ch, failing the test if
// none arrives within timeout or ch is closed first.
//
//	descriptor := testutil.RequireReceive(t, changes, 5*time.Second, "enabled edge")
func RequireReceive[T any](t TB, ch <-chan T, timeout time.Duration, what ...any) T {
	t.Helper()
	timer := time.NewTimer(timeout) //nolint:realclock test hang prevention
	defer timer.Stop()
	select {
	case value, ok := <-ch:
		if !ok {
			t.Fatalf("%s: channel closed without a value", describe(what))
		}
		return value
	case <-timer.C:
		t.Fatalf("%s: nothing received after %v", describe(what), timeout)
	}
	panic("unreachable")
}

// RequireClosed waits up to timeout for ch to close or deliver.
//
//	testutil.RequireClosed(t, endpoint.Ready(), 5*time.Second, "endpoint ready")
func RequireClosed(t TB, ch <-chan struct{}, timeout time.Duration, what ...any) {
	t.Helper()
	timer := time.NewTimer(timeout) //nolint:realclock test hang prevention
	defer timer.Stop()
	select {
	case <-ch:
	case <-timer.C:
		t.Fatalf("%s: not closed after %v", describe(what), timeout)
	}
}

// RequireEventually polls condition until it holds, failing the test
// after timeout. It is for state driven by real processes and sockets;
// code on a fake clock synchronizes with WaitForTimers instead.
func RequireEventually(t TB, timeout time.Duration, condition func() bool, what ...any) {
	t.Helper()
	deadline := time.Now().Add(timeout) //nolint:realclock test hang prevention
	for !condition() {
		if time.Now().After(deadline) { //nolint:realclock test hang prevention
			t.Fatalf("%s: condition still false after %v", describe(what), timeout)
		}
		time.Sleep(5 * time.Millisecond) //nolint:realclock test hang prevention
	}
}

// describe renders the trailing arguments of a Require call: nothing,
// a single value, or a format string with its arguments.
func describe(what []any) string {
	switch {
	case len(what) == 0:
		return "(no message)"
	case len(what) == 1:
		return fmt.Sprint(what[0])
	}
	if format, ok := what[0].(string); ok {
		return fmt.Sprintf(format, what[1:]...)
	}
	return fmt.Sprint(what...)
}
