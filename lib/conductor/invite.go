// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package conductor

import (
	"context"
	"errors"
	"fmt"

	"github.com/bureau-foundation/concert/lib/gateway"
	"github.com/bureau-foundation/concert/lib/schema"
)

// Outcome classifies the result of Invite.
type Outcome int

const (
	// OutcomeInvited and OutcomeUninvited are explicit successes.
	OutcomeInvited Outcome = iota
	OutcomeUninvited

	// OutcomeAlreadyUninvited is an uninvite of a session that was not
	// invited. No remote call was made.
	OutcomeAlreadyUninvited

	// OutcomeBlocked is a policy refusal, either just received or
	// remembered from an earlier call.
	OutcomeBlocked

	// OutcomeInvitedElsewhere means another controller holds the
	// client.
	OutcomeInvitedElsewhere

	// OutcomeConnectionDisrupted means the call did not produce a
	// usable reply. The client's real state is unknown.
	OutcomeConnectionDisrupted

	// OutcomeRejected is any other refusal of an invite.
	OutcomeRejected

	// OutcomeUninviteFailed is a refused uninvite.
	OutcomeUninviteFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInvited:
		return "invited"
	case OutcomeUninvited:
		return "uninvited"
	case OutcomeAlreadyUninvited:
		return "already-uninvited"
	case OutcomeBlocked:
		return "blocked"
	case OutcomeInvitedElsewhere:
		return "invited-elsewhere"
	case OutcomeConnectionDisrupted:
		return "connection-disrupted"
	case OutcomeRejected:
		return "rejected"
	case OutcomeUninviteFailed:
		return "uninvite-failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// InviteResult is the classified result of Invite.
type InviteResult struct {
	Success bool
	Code    schema.ErrorCode
	Message string
	Outcome Outcome
}

// Retryable reports whether repeating the same call may succeed without
// anything changing upstream.
func (r InviteResult) Retryable() bool {
	return r.Outcome == OutcomeConnectionDisrupted || r.Outcome == OutcomeUninviteFailed
}

// Invite asks the client to accept (cancel=false) or release
// (cancel=true) control by controllerID. Remote failures are reported
// in the result; the error return is only for invalid arguments or a
// closed session.
func (s *ClientSession) Invite(ctx context.Context, controllerID, localAlias string, cancel bool) (InviteResult, error) {
	if controllerID == "" {
		return InviteResult{}, errors.New("invite: controller ID is required")
	}
	if !cancel && localAlias == "" {
		return InviteResult{}, errors.New("invite: local alias is required")
	}

	s.operationMu.Lock()
	defer s.operationMu.Unlock()
	if s.closed {
		return InviteResult{}, ErrSessionClosed
	}

	s.mu.RLock()
	invited, blocked, blockedCode := s.invited, s.blocked, s.blockedCode
	s.mu.RUnlock()

	if cancel && !invited {
		return InviteResult{
			Success: true,
			Code:    schema.CodeSuccess,
			Message: "client is not invited",
			Outcome: OutcomeAlreadyUninvited,
		}, nil
	}
	if !cancel && blocked {
		return InviteResult{
			Success: false,
			Code:    blockedCode,
			Message: fmt.Sprintf("client refused invitations earlier: %s", blockedCode),
			Outcome: OutcomeBlocked,
		}, nil
	}

	request := schema.InviteRequest{
		ControllerID:   controllerID,
		ControllerHost: s.localHostname,
		ClientAlias:    localAlias,
		Cancel:         cancel,
	}
	var response schema.InviteResponse
	err := s.channel.Call(ctx, s.handle(schema.OpInvite), request, &response, s.timeouts.Invite)
	if err != nil {
		return s.disrupted(cancel, err), nil
	}
	return s.classify(cancel, response), nil
}

// disrupted reports a call that produced no usable reply. State is left
// untouched: the call may still land on the client.
func (s *ClientSession) disrupted(cancel bool, err error) InviteResult {
	action := "invite"
	if cancel {
		action = "uninvite"
	}
	if !gateway.IsTransportFailure(err) {
		s.logger.Error("invite call failed unexpectedly", "action", action, "error", err)
	} else {
		s.logger.Warn("invite call disrupted", "action", action, "error", err)
	}

	s.mu.Lock()
	s.lastInviteCode = schema.CodeConnectionDisrupted
	s.mu.Unlock()

	return InviteResult{
		Success: false,
		Code:    schema.CodeConnectionDisrupted,
		Message: fmt.Sprintf("%s: connection disrupted: %v", action, err),
		Outcome: OutcomeConnectionDisrupted,
	}
}

func (s *ClientSession) classify(cancel bool, response schema.InviteResponse) InviteResult {
	s.mu.Lock()
	s.lastInviteCode = response.Code

	result := InviteResult{
		Success: response.Result,
		Code:    response.Code,
		Message: response.Message,
	}

	var events []EventKind
	switch {
	case response.Result:
		wasInvited := s.invited
		s.invited = !cancel
		s.invitedElsewhere = false
		s.blocked = false
		s.blockedCode = schema.CodeSuccess
		if cancel {
			s.readyForAction = false
			result.Outcome = OutcomeUninvited
			if wasInvited {
				events = append(events, EventUninvited)
			}
		} else {
			result.Outcome = OutcomeInvited
			if !wasInvited {
				events = append(events, EventInvited)
			}
		}

	case cancel:
		result.Outcome = OutcomeUninviteFailed

	case response.Code.IsPolicyRefusal():
		if !s.blocked {
			events = append(events, EventBlocked)
		}
		s.blocked = true
		s.blockedCode = response.Code
		result.Outcome = OutcomeBlocked

	case response.Code == schema.CodeAlreadyRemoteControlled:
		if !s.invitedElsewhere {
			events = append(events, EventInvitedElsewhere)
		}
		s.invitedElsewhere = true
		result.Outcome = OutcomeInvitedElsewhere

	default:
		result.Outcome = OutcomeRejected
	}
	s.mu.Unlock()

	switch result.Outcome {
	case OutcomeInvited, OutcomeUninvited:
		if len(events) > 0 {
			s.logger.Info("invitation changed", "outcome", result.Outcome.String())
		}
	case OutcomeUninviteFailed:
		s.logger.Warn("uninvite refused", "code", response.Code.String(), "message", response.Message)
	case OutcomeBlocked:
		if len(events) > 0 {
			s.logger.Info("client refused invitation, marking blocked", "code", response.Code.String())
		}
	case OutcomeInvitedElsewhere:
		if len(events) > 0 {
			s.logger.Info("client is controlled by another concert", "message", response.Message)
		}
	case OutcomeRejected:
		s.logger.Warn("invitation rejected", "code", response.Code.String(), "message", response.Message)
	}
	for _, kind := range events {
		s.emit(kind, response.Code)
	}
	return result
}
