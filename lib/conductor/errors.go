// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package conductor

import (
	"errors"
	"fmt"

	"github.com/bureau-foundation/concert/lib/gateway"
)

var (
	// ErrHandshakeTimeout means a client did not expose its handshake
	// operations, or did not answer them, in time.
	ErrHandshakeTimeout = errors.New("client handshake timed out")

	// ErrVersionMismatch means the client speaks a different protocol
	// revision. It is a configuration problem and is never retried.
	ErrVersionMismatch = errors.New("client protocol version mismatch")

	// ErrClientUnreachable means a status call failed. The client has
	// most likely disconnected.
	ErrClientUnreachable = errors.New("client unreachable")

	// ErrStatsNotFound means the channel's connection statistics have
	// no entry for a client whose status call just succeeded.
	ErrStatsNotFound = errors.New("connection statistics not found for client")

	// ErrSessionClosed is returned by operations on a closed session.
	ErrSessionClosed = errors.New("client session is closed")

	// ErrUnknownClient is returned by Roster operations naming an
	// endpoint without a session.
	ErrUnknownClient = errors.New("unknown client")
)

// handshakeError classifies a handshake step failure. Timeouts are
// ErrHandshakeTimeout; every other failure is ErrClientUnreachable.
func handshakeError(endpoint, stage string, err error) error {
	if errors.Is(err, gateway.ErrTimeout) {
		return fmt.Errorf("handshake with %s: %s: %w: %w", endpoint, stage, ErrHandshakeTimeout, err)
	}
	return fmt.Errorf("handshake with %s: %s: %w: %w", endpoint, stage, ErrClientUnreachable, err)
}
