// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/bureau-foundation/concert/lib/conductor"
	"github.com/bureau-foundation/concert/lib/gateway"
	"github.com/bureau-foundation/concert/lib/health"
	"github.com/bureau-foundation/concert/lib/schema"
)

// conductorService is the control surface of the daemon.
type conductorService struct {
	controllerID string
	roster       *conductor.Roster
	health       *health.Server
	logger       *slog.Logger
}

func (c *conductorService) registerActions(endpoint *gateway.Endpoint) {
	endpoint.Handle(schema.ActionListClients, c.handleListClients)
	endpoint.Handle(schema.ActionInviteClient, c.handleInviteClient)
	endpoint.Handle(schema.ActionUninviteClient, c.handleUninviteClient)
}

func (c *conductorService) handleListClients(ctx context.Context, body []byte) (any, error) {
	return schema.ListClientsResponse{
		ControllerID: c.controllerID,
		Clients:      c.roster.Statuses(),
	}, nil
}

func (c *conductorService) handleInviteClient(ctx context.Context, body []byte) (any, error) {
	return c.invite(ctx, body, false)
}

func (c *conductorService) handleUninviteClient(ctx context.Context, body []byte) (any, error) {
	return c.invite(ctx, body, true)
}

func (c *conductorService) invite(ctx context.Context, body []byte, cancel bool) (any, error) {
	var request schema.ClientRequest
	if err := gateway.DecodeBody(body, &request); err != nil {
		return nil, err
	}
	if request.Endpoint == "" {
		return nil, errors.New("endpoint is required")
	}

	result, err := c.roster.Invite(ctx, request.Endpoint, cancel)
	if err != nil {
		return nil, err
	}
	response := schema.InviteClientResponse{
		Success: result.Success,
		Outcome: result.Outcome.String(),
		Code:    result.Code,
		Message: result.Message,
	}
	if result.Success && !cancel {
		if session := c.roster.Get(request.Endpoint); session != nil {
			response.ReadyForAction = session.IsReadyForAction(ctx)
		}
	}

	c.logger.Info("operator invite",
		"endpoint", request.Endpoint,
		"cancel", cancel,
		"outcome", response.Outcome,
		"ready", response.ReadyForAction,
	)
	return response, nil
}

// onEvent publishes a client's readiness on the health server.
func (c *conductorService) onEvent(event conductor.Event) {
	c.logger.Debug("client event", "endpoint", event.Endpoint, "kind", event.Kind.String(), "code", event.Code.String())
	if c.health == nil {
		return
	}
	switch event.Kind {
	case conductor.EventReady:
		c.health.Set(event.Endpoint, true)
	case conductor.EventUninvited, conductor.EventBlocked, conductor.EventInvitedElsewhere, conductor.EventEvicted:
		c.health.Set(event.Endpoint, false)
	}
}
