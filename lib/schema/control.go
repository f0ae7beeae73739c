// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package schema

// Actions served on the conductor's control socket.
const (
	ActionListClients    = "list-clients"
	ActionInviteClient   = "invite-client"
	ActionUninviteClient = "uninvite-client"
)

// Actions served on the service manager's control socket.
const (
	ActionListServices   = "list-services"
	ActionEnableService  = "enable-service"
	ActionDisableService = "disable-service"
)

// ListClientsResponse is the reply to [ActionListClients].
type ListClientsResponse struct {
	ControllerID string         `json:"controller_id"`
	Clients      []ClientStatus `json:"clients"`
}

// ClientRequest names one client by endpoint. It is the payload of
// [ActionInviteClient] and [ActionUninviteClient].
type ClientRequest struct {
	Endpoint string `json:"endpoint"`
}

// InviteClientResponse reports the classified outcome of an invite or
// uninvite issued through the control socket.
type InviteClientResponse struct {
	Success bool      `json:"success"`
	Outcome string    `json:"outcome"`
	Code    ErrorCode `json:"code"`
	Message string    `json:"message,omitempty"`

	// ReadyForAction is sampled after a successful invite.
	ReadyForAction bool `json:"ready_for_action"`
}

// ListServicesResponse is the reply to [ActionListServices].
type ListServicesResponse struct {
	Services []ServiceDescriptor `json:"services"`
}

// ServiceRequest names one service. It is the payload of
// [ActionEnableService] and [ActionDisableService].
type ServiceRequest struct {
	Name string `json:"name"`
}

// ServiceResponse is the reply to [ActionEnableService] and
// [ActionDisableService]. Message is one of the service manager's fixed
// result messages.
type ServiceResponse struct {
	Result     bool              `json:"result"`
	Message    string            `json:"message"`
	Descriptor ServiceDescriptor `json:"descriptor"`
}
