// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package health exposes the standard gRPC health service on a Unix
// socket next to each daemon's control socket, and provides the client
// side used by concertctl and by tests.
//
// The overall status (service name "") is SERVING while the daemon
// runs. The service manager additionally publishes one status per
// supervised service: SERVING while it is enabled, NOT_SERVING
// otherwise.
package health
