// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports build and protocol versions for concert
// binaries.
//
// Release builds inject the commit and build time with -ldflags:
//
//	go build -ldflags "-X github.com/bureau-foundation/concert/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// Other builds read the VCS stamp from runtime/debug. [ProtocolVersion]
// is a constant that changes only with the wire protocol between
// conductors and clients.
package version
