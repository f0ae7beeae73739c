// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Concert-client serves the client side of the concert protocol for
// one robot or device. It publishes an endpoint socket (by default in
// the conductor's endpoint directory, where conductors discover it),
// answers platform_info, list_apps and status, and decides invitations
// with its whitelist, blacklist and local-only policy.
//
// While a conductor holds the invitation the client also serves
// start_app and stop_app. It is mostly used to stand up development
// fleets and integration tests without real robots.
package main
