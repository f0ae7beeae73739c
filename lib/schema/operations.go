// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package schema

// Operations served by every concert client endpoint.
const (
	// OpPlatformInfo returns the client's [PlatformInfo].
	OpPlatformInfo = "platform_info"

	// OpListApps returns a [ListAppsResponse].
	OpListApps = "list_apps"

	// OpStatus returns a [StatusResponse].
	OpStatus = "status"

	// OpInvite accepts an [InviteRequest] and returns an
	// [InviteResponse].
	OpInvite = "invite"
)

// Operations a client registers only while a controller holds its
// invitation. Their reachability is how the controller learns that an
// invited client is ready to take work.
const (
	OpStartApp = "start_app"
	OpStopApp  = "stop_app"
)

// HandshakeOperations lists the operations a controller reserves on a
// client endpoint before it will track the client.
func HandshakeOperations() []string {
	return []string{OpPlatformInfo, OpListApps, OpStatus, OpInvite}
}
