// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import "time"

// NoRemoteController is the RemoteController value of a client that no
// controller currently holds.
const NoRemoteController = "none"

// StatusResponse is the payload of [OpStatus].
type StatusResponse struct {
	// RemoteController is the controller ID holding the client's
	// invitation, or NoRemoteController.
	RemoteController string `json:"remote_controller"`

	// AppStatus is the client's own description of what it is
	// running (e.g. "stopped", "running turtle_follower").
	AppStatus string `json:"app_status"`
}

// Availability is the controller's two-way classification of a client.
// It does not distinguish "held by us" from "held by another
// controller"; see ClientStatus.InvitedElsewhere for the latter.
type Availability string

const (
	// Available means no controller holds the client.
	Available Availability = "available"

	// Connected means some controller holds the client.
	Connected Availability = "connected"
)

// ConnectionStats is the transport-level view of one client endpoint
// as seen by the controller's gateway.
type ConnectionStats struct {
	Endpoint     string        `json:"endpoint"`
	Calls        uint64        `json:"calls"`
	Failures     uint64        `json:"failures"`
	LastLatency  time.Duration `json:"last_latency"`
	LastSuccess  time.Time     `json:"last_success,omitempty"`
	LastFailure  time.Time     `json:"last_failure,omitempty"`
	LastErrorMsg string        `json:"last_error,omitempty"`
}

// ClientStatus is the read-only snapshot of one tracked client.
type ClientStatus struct {
	DisplayName  string          `json:"display_name"`
	EndpointName string          `json:"endpoint_name"`
	Platform     PlatformInfo    `json:"platform"`
	Apps         []AppDescriptor `json:"apps"`

	Invited          bool `json:"invited"`
	ReadyForAction   bool `json:"ready_for_action"`
	Blocked          bool `json:"blocked"`
	InvitedElsewhere bool `json:"invited_elsewhere"`
	Local            bool `json:"local"`

	Availability    Availability    `json:"availability"`
	AppStatus       string          `json:"app_status"`
	Connection      ConnectionStats `json:"connection"`
	LastRefreshed   time.Time       `json:"last_refreshed"`
	LastInviteError ErrorCode       `json:"last_invite_error"`
}
