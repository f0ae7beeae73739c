// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/bureau-foundation/concert/lib/gateway"
	"github.com/bureau-foundation/concert/lib/schema"
	"github.com/bureau-foundation/concert/lib/servicemanager"
)

type managerService struct {
	manager *servicemanager.Manager
	logger  *slog.Logger
}

func (s *managerService) registerActions(endpoint *gateway.Endpoint) {
	endpoint.Handle(schema.ActionListServices, s.handleListServices)
	endpoint.Handle(schema.ActionEnableService, s.handleEnableService)
	endpoint.Handle(schema.ActionDisableService, s.handleDisableService)
}

func (s *managerService) handleListServices(ctx context.Context, body []byte) (any, error) {
	return schema.ListServicesResponse{Services: s.manager.List()}, nil
}

func (s *managerService) handleEnableService(ctx context.Context, body []byte) (any, error) {
	return s.apply(ctx, body, "enable", s.manager.Enable)
}

func (s *managerService) handleDisableService(ctx context.Context, body []byte) (any, error) {
	return s.apply(ctx, body, "disable", s.manager.Disable)
}

func (s *managerService) apply(ctx context.Context, body []byte, verb string,
	operation func(context.Context, string) (bool, string, error)) (any, error) {
	var request schema.ServiceRequest
	if err := gateway.DecodeBody(body, &request); err != nil {
		return nil, err
	}
	if request.Name == "" {
		return nil, errors.New("service name is required")
	}

	result, message, err := operation(ctx, request.Name)
	if err != nil {
		return nil, err
	}
	descriptor, err := s.manager.Descriptor(request.Name)
	if err != nil {
		return nil, err
	}
	s.logger.Info("operator "+verb, "service", request.Name, "result", result, "message", message)
	return schema.ServiceResponse{
		Result:     result,
		Message:    message,
		Descriptor: descriptor,
	}, nil
}
