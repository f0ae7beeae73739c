// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the one CBOR configuration shared by every
// concert component.
//
// CBOR is used for everything internal: gateway requests and responses
// between the controller and its clients, the daemon control sockets,
// and on-disk state files such as the service PID ledger. JSON appears
// only at the operator edge (concertctl --json) and in hand-written
// service definition files.
//
// Types that cross both boundaries carry `json` tags; fxamacker/cbor
// falls back to them when no `cbor` tag is present. Purely internal
// types carry `cbor` tags. A field never has both.
package codec
