// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Concert-conductor is the controller daemon of a concert. It watches
// the endpoint directory for client sockets, performs the handshake
// with each new client, refreshes every tracked client on a fixed
// interval and, when auto_invite is on, invites the clients that are
// free to take work.
//
// # Control socket
//
// Operators reach the conductor through conductor.socket_path using
// the gateway protocol:
//
//   - list-clients returns the status snapshot of every tracked client
//   - invite-client invites one client by endpoint name
//   - uninvite-client releases one client
//
// concertctl clients wraps these actions.
//
// # Health
//
// The gRPC health service on conductor.health_socket reports the
// conductor itself under the empty service name, and each client
// endpoint under its endpoint name: SERVING once the client is invited
// and ready for action, NOT_SERVING otherwise.
package main
