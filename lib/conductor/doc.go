// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package conductor tracks the remote clients of a concert controller.
//
// A [ClientSession] is the controller's view of one client endpoint.
// [NewClientSession] performs the handshake synchronously: it reserves
// the platform_info, list_apps, status and invite operations, waits for
// them to become reachable, checks the client's protocol version and
// pulls its app list. Any failure releases the reservation before the
// error is returned, so a failed handshake leaves nothing behind on the
// channel.
//
// After construction the session is driven by its owner:
//
//   - Refresh re-reads the client's status and the channel's connection
//     statistics. ErrClientUnreachable means the client is probably
//     gone and the session should be evicted.
//   - Invite and uninvite go through a classification that separates
//     transport failures (retryable, state unknown and left untouched)
//     from policy refusals (sticky blocked state), from a client held
//     by another controller (invited elsewhere), and from everything
//     else (logged, no state change).
//   - IsReadyForAction latches once the invited client exposes its
//     start_app operation.
//
// Operations on one session are serialized internally. Status returns
// a copy and may be called concurrently with anything.
//
// A [Roster] owns the sessions of a controller: it admits endpoints
// listed by the resolver, refreshes them periodically, evicts
// unreachable ones, and optionally invites every available client.
package conductor
