// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package gateway is the remote-call layer between a concert controller
// and its clients.
//
// [Channel] is the narrow interface the conductor consumes: reserve the
// operations a session needs on an endpoint, wait for them to become
// reachable, call them with a per-call timeout, probe for operations
// outside the reservation, and read per-endpoint connection statistics.
// Every transport failure is one of [ErrUnreachable], [ErrTimeout] or
// [ErrInterrupted]; a handler that answers with a failure produces a
// [*RemoteError]. Callers that only care whether the call reached a
// working handler use [IsTransportFailure].
//
// [Gateway] implements Channel over Unix sockets. Each call opens one
// connection, writes one CBOR [Request], reads one CBOR [Response] and
// closes. Endpoint names are mapped to socket paths by a [Resolver].
//
// [Endpoint] is the serving side. Handlers may be added and removed
// while it serves, which is how a client advertises operations (such
// as start_app) that only exist while it is invited. The built-in
// [DescribeAction] lists the currently registered operations.
//
// [Client] is a one-shot caller for daemon control sockets, used by
// concertctl.
package gateway
