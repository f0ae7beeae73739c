// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package appmanager is the client side of the concert protocol. A
// [Manager] answers the handshake operations a controller reserves
// (platform_info, list_apps, status, invite) on a [gateway.Endpoint]
// and decides invitations against a local policy: local-only clients
// refuse controllers on other hosts, then the blacklist, then the
// whitelist, then any controller other than the current holder.
//
// While a controller holds the client, the manager additionally
// exposes start_app and stop_app. Controllers detect that exposure
// with a probe and treat the client as ready for action.
package appmanager
