// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds the entrypoint error handling shared by the
// concert daemons and concertctl. It is the one place that writes to
// stderr without the structured logger, which may not exist yet when
// run() fails.
package process
