// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import "fmt"

// InviteRequest is the payload of [OpInvite].
type InviteRequest struct {
	// ControllerID names the inviting controller. A client remembers
	// it as its remote controller on success.
	ControllerID string `json:"controller_id"`

	// ControllerHost is the inviting controller's hostname. Clients
	// restricted to local invitations compare it with their own.
	ControllerHost string `json:"controller_host,omitempty"`

	// ClientAlias is the name the controller will use for the client.
	ClientAlias string `json:"client_alias,omitempty"`

	// Cancel requests an uninvite instead of an invite.
	Cancel bool `json:"cancel"`
}

// InviteResponse is the reply to [OpInvite].
type InviteResponse struct {
	Result  bool      `json:"result"`
	Code    ErrorCode `json:"code"`
	Message string    `json:"message,omitempty"`
}

// ErrorCode classifies the outcome of an invitation.
type ErrorCode int

const (
	CodeSuccess ErrorCode = 0

	// CodeConnectionDisrupted never travels on the wire. A controller
	// synthesizes it when the invite call itself failed, so the client's
	// real state is unknown.
	CodeConnectionDisrupted ErrorCode = 10

	// Policy refusals. A controller treats these as sticky until the
	// next successful invite.
	CodeNotWhitelisted          ErrorCode = 20
	CodeBlacklisted             ErrorCode = 21
	CodeLocalInvitationsOnly    ErrorCode = 22
	CodeAlreadyRemoteControlled ErrorCode = 23

	// CodeNotCurrentController rejects an uninvite from a controller
	// that does not hold the client.
	CodeNotCurrentController ErrorCode = 30

	CodeInvalidRequest ErrorCode = 40
)

// IsPolicyRefusal reports whether code is one of the refusals that put
// a client into the blocked state.
func (c ErrorCode) IsPolicyRefusal() bool {
	switch c {
	case CodeNotWhitelisted, CodeBlacklisted, CodeLocalInvitationsOnly:
		return true
	}
	return false
}

func (c ErrorCode) String() string {
	switch c {
	case CodeSuccess:
		return "success"
	case CodeConnectionDisrupted:
		return "connection disrupted"
	case CodeNotWhitelisted:
		return "not whitelisted"
	case CodeBlacklisted:
		return "blacklisted"
	case CodeLocalInvitationsOnly:
		return "local invitations only"
	case CodeAlreadyRemoteControlled:
		return "already remote controlled"
	case CodeNotCurrentController:
		return "not current controller"
	case CodeInvalidRequest:
		return "invalid request"
	default:
		return fmt.Sprintf("code %d", int(c))
	}
}
