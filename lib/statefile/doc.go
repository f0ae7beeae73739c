// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package statefile reads and writes small CBOR state files atomically
// (temporary file, fsync, rename, directory fsync). The service
// manager keeps its PID ledger here so that a restarted manager can
// find and reap children left behind by a crashed predecessor.
package statefile
