// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package appmanager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"slices"
	"sync"

	"github.com/bureau-foundation/concert/lib/gateway"
	"github.com/bureau-foundation/concert/lib/schema"
)

// AppStatusStopped is the app status of a client running nothing.
const AppStatusStopped = "stopped"

// Config configures a Manager.
type Config struct {
	Platform schema.PlatformInfo
	Apps     []schema.AppDescriptor

	// LocalOnly refuses controllers whose host differs from
	// Platform.Hostname.
	LocalOnly bool

	// Whitelist and Blacklist hold controller ID patterns in path.Match
	// syntax. An empty whitelist admits every controller not
	// blacklisted.
	Whitelist []string
	Blacklist []string

	Logger *slog.Logger
}

// Manager serves the client side of the concert protocol on an
// Endpoint. It applies the invitation policy and exposes start_app and
// stop_app only while a controller holds the client.
type Manager struct {
	endpoint *gateway.Endpoint
	config   Config
	logger   *slog.Logger

	mu               sync.Mutex
	remoteController string
	alias            string
	runningApp       string
}

// New validates config and registers the handshake operations on
// endpoint. The caller serves the endpoint.
func New(endpoint *gateway.Endpoint, config Config) (*Manager, error) {
	if endpoint == nil {
		return nil, errors.New("app manager: endpoint is required")
	}
	if config.Platform.Name == "" {
		return nil, errors.New("app manager: platform name is required")
	}
	if config.Platform.Version == "" {
		return nil, errors.New("app manager: platform version is required")
	}
	if config.LocalOnly && config.Platform.Hostname == "" {
		return nil, errors.New("app manager: local-only policy requires a hostname")
	}
	for _, pattern := range slices.Concat(config.Whitelist, config.Blacklist) {
		if _, err := path.Match(pattern, ""); err != nil {
			return nil, fmt.Errorf("app manager: invalid controller pattern %q: %w", pattern, err)
		}
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	manager := &Manager{
		endpoint: endpoint,
		config:   config,
		logger:   config.Logger,
	}
	endpoint.Handle(schema.OpPlatformInfo, manager.handlePlatformInfo)
	endpoint.Handle(schema.OpListApps, manager.handleListApps)
	endpoint.Handle(schema.OpStatus, manager.handleStatus)
	endpoint.Handle(schema.OpInvite, manager.handleInvite)
	return manager, nil
}

// RemoteController returns the ID of the controller holding the client,
// or schema.NoRemoteController.
func (m *Manager) RemoteController() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.remoteController == "" {
		return schema.NoRemoteController
	}
	return m.remoteController
}

// Alias returns the name the holding controller uses for this client.
func (m *Manager) Alias() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.alias
}

// Status returns what the status operation would report.
func (m *Manager) Status() schema.StatusResponse {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusLocked()
}

func (m *Manager) statusLocked() schema.StatusResponse {
	status := schema.StatusResponse{
		RemoteController: m.remoteController,
		AppStatus:        AppStatusStopped,
	}
	if status.RemoteController == "" {
		status.RemoteController = schema.NoRemoteController
	}
	if m.runningApp != "" {
		status.AppStatus = "running " + m.runningApp
	}
	return status
}

func (m *Manager) handlePlatformInfo(ctx context.Context, body []byte) (any, error) {
	return m.config.Platform, nil
}

func (m *Manager) handleListApps(ctx context.Context, body []byte) (any, error) {
	return schema.ListAppsResponse{Apps: slices.Clone(m.config.Apps)}, nil
}

func (m *Manager) handleStatus(ctx context.Context, body []byte) (any, error) {
	return m.Status(), nil
}

func (m *Manager) handleInvite(ctx context.Context, body []byte) (any, error) {
	var request schema.InviteRequest
	if err := gateway.DecodeBody(body, &request); err != nil {
		return refuse(schema.CodeInvalidRequest, "malformed invite request: %v", err), nil
	}
	if request.ControllerID == "" {
		return refuse(schema.CodeInvalidRequest, "controller ID is required"), nil
	}
	if request.Cancel {
		return m.uninvite(request), nil
	}
	return m.invite(request), nil
}

// Decide applies the invitation policy to request without changing any
// state. A zero code admits the request.
func (m *Manager) Decide(request schema.InviteRequest) (schema.ErrorCode, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.decideLocked(request)
}

func (m *Manager) decideLocked(request schema.InviteRequest) (schema.ErrorCode, string) {
	controller := request.ControllerID
	switch {
	case m.config.LocalOnly && request.ControllerHost != m.config.Platform.Hostname:
		return schema.CodeLocalInvitationsOnly,
			fmt.Sprintf("only controllers on %s may invite this client", m.config.Platform.Hostname)
	case matchesAny(m.config.Blacklist, controller):
		return schema.CodeBlacklisted, fmt.Sprintf("controller %s is blacklisted", controller)
	case len(m.config.Whitelist) > 0 && !matchesAny(m.config.Whitelist, controller):
		return schema.CodeNotWhitelisted, fmt.Sprintf("controller %s is not whitelisted", controller)
	case m.remoteController != "" && m.remoteController != controller:
		return schema.CodeAlreadyRemoteControlled,
			fmt.Sprintf("client is already controlled by %s", m.remoteController)
	}
	return schema.CodeSuccess, ""
}

func matchesAny(patterns []string, controller string) bool {
	for _, pattern := range patterns {
		if matched, _ := path.Match(pattern, controller); matched {
			return true
		}
	}
	return false
}

func (m *Manager) invite(request schema.InviteRequest) schema.InviteResponse {
	m.mu.Lock()
	code, message := m.decideLocked(request)
	if code != schema.CodeSuccess {
		m.mu.Unlock()
		m.logger.Info("invitation refused",
			"controller", request.ControllerID,
			"code", code.String(),
		)
		return refuse(code, "%s", message)
	}
	first := m.remoteController == ""
	m.remoteController = request.ControllerID
	m.alias = request.ClientAlias
	// start_app and stop_app are registered exactly while
	// remoteController is set; both change under mu.
	if first {
		m.endpoint.Handle(schema.OpStartApp, m.handleStartApp)
		m.endpoint.Handle(schema.OpStopApp, m.handleStopApp)
	}
	m.mu.Unlock()

	if first {
		m.logger.Info("invitation accepted",
			"controller", request.ControllerID,
			"alias", request.ClientAlias,
		)
	}
	return schema.InviteResponse{Result: true, Code: schema.CodeSuccess}
}

func (m *Manager) uninvite(request schema.InviteRequest) schema.InviteResponse {
	m.mu.Lock()
	switch m.remoteController {
	case "":
		m.mu.Unlock()
		return schema.InviteResponse{Result: true, Code: schema.CodeSuccess, Message: "not invited"}
	case request.ControllerID:
	default:
		holder := m.remoteController
		m.mu.Unlock()
		return refuse(schema.CodeNotCurrentController,
			"client is controlled by %s, not %s", holder, request.ControllerID)
	}
	stopped := m.runningApp
	m.remoteController = ""
	m.alias = ""
	m.runningApp = ""
	m.endpoint.Unhandle(schema.OpStartApp)
	m.endpoint.Unhandle(schema.OpStopApp)
	m.mu.Unlock()

	m.logger.Info("invitation cancelled", "controller", request.ControllerID, "stopped_app", stopped)
	return schema.InviteResponse{Result: true, Code: schema.CodeSuccess}
}

func (m *Manager) handleStartApp(ctx context.Context, body []byte) (any, error) {
	var request schema.StartAppRequest
	if err := gateway.DecodeBody(body, &request); err != nil {
		return nil, fmt.Errorf("decoding start_app request: %w", err)
	}

	if !slices.ContainsFunc(m.config.Apps, func(app schema.AppDescriptor) bool {
		return app.Name == request.Name
	}) {
		return schema.AppResponse{Message: fmt.Sprintf("unknown app %q", request.Name)}, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.remoteController == "" {
		return schema.AppResponse{Message: "client is not invited"}, nil
	}
	if m.runningApp != "" {
		return schema.AppResponse{Message: fmt.Sprintf("app %s is already running", m.runningApp)}, nil
	}
	m.runningApp = request.Name
	m.logger.Info("app started", "app", request.Name, "controller", m.remoteController)
	return schema.AppResponse{Started: true}, nil
}

func (m *Manager) handleStopApp(ctx context.Context, body []byte) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.runningApp == "" {
		return schema.AppResponse{Message: "no app is running"}, nil
	}
	m.logger.Info("app stopped", "app", m.runningApp)
	m.runningApp = ""
	return schema.AppResponse{Stopped: true}, nil
}

func refuse(code schema.ErrorCode, format string, args ...any) schema.InviteResponse {
	return schema.InviteResponse{Result: false, Code: code, Message: fmt.Sprintf(format, args...)}
}
