// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package schema defines the message and snapshot types exchanged
// between a concert controller, its remote clients, the local service
// manager, and operator tooling.
//
// Operation names ([OpPlatformInfo], [OpListApps], [OpStatus],
// [OpInvite], [OpStartApp], [OpStopApp]) are the action strings a
// client endpoint serves. Request and response structs define their
// payloads. [ErrorCode] is the invitation result taxonomy shared by the
// client-side policy and the controller-side classification.
//
// [ClientStatus] and [ServiceDescriptor] are the read-only snapshots
// published by the conductor and the service manager. They carry json
// tags because concertctl prints them with --json.
//
// This package depends on no other concert packages.
package schema
