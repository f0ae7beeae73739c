// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds the test helpers shared by concert packages.
//
// [SocketDir] makes a short directory under /tmp for Unix sockets,
// whose paths are limited to 108 bytes. [WriteScript] drops an
// executable shell script for supervision tests.
//
// [RequireReceive], [RequireClosed] and [RequireEventually] bound every
// wait on a goroutine with a wall-clock timeout. They are the only
// wall-clock waits in tests; everything else runs on clock.Fake.
package testutil
