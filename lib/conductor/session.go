// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package conductor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/bureau-foundation/concert/lib/clock"
	"github.com/bureau-foundation/concert/lib/gateway"
	"github.com/bureau-foundation/concert/lib/schema"
)

// Timeouts bounds every remote call a session makes.
type Timeouts struct {
	// Handshake bounds the wait for each reserved operation and the
	// platform_info call.
	Handshake time.Duration

	// AppList bounds the list_apps wait and call.
	AppList time.Duration

	Status time.Duration
	Invite time.Duration
	Probe  time.Duration
}

// DefaultTimeouts returns the timeouts used when a SessionConfig leaves
// them zero.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Handshake: 1500 * time.Millisecond,
		AppList:   500 * time.Millisecond,
		Status:    1500 * time.Millisecond,
		Invite:    300 * time.Millisecond,
		Probe:     300 * time.Millisecond,
	}
}

func (t Timeouts) withDefaults() Timeouts {
	defaults := DefaultTimeouts()
	if t.Handshake <= 0 {
		t.Handshake = defaults.Handshake
	}
	if t.AppList <= 0 {
		t.AppList = defaults.AppList
	}
	if t.Status <= 0 {
		t.Status = defaults.Status
	}
	if t.Invite <= 0 {
		t.Invite = defaults.Invite
	}
	if t.Probe <= 0 {
		t.Probe = defaults.Probe
	}
	return t
}

// SessionConfig configures NewClientSession.
type SessionConfig struct {
	// Endpoint is the client's routing name on the channel.
	Endpoint string

	// DisplayName is the initial alias. Empty uses the client's
	// platform name.
	DisplayName string

	// ExpectedVersion is the protocol revision the client must report.
	ExpectedVersion string

	// LocalHostname marks clients reporting the same hostname as local.
	LocalHostname string

	Channel  gateway.Channel
	Clock    clock.Clock
	Logger   *slog.Logger
	Timeouts Timeouts

	// OnEvent, if set, is called synchronously on every state edge.
	OnEvent func(Event)
}

// ClientSession is the controller's view of one remote client.
type ClientSession struct {
	endpoint        string
	expectedVersion string
	localHostname   string
	channel         gateway.Channel
	clock           clock.Clock
	logger          *slog.Logger
	timeouts        Timeouts
	onEvent         func(Event)

	// operationMu serializes Refresh, Invite, IsReadyForAction and
	// Close. It is held across remote calls.
	operationMu sync.Mutex
	reservation *gateway.Reservation
	closed      bool

	// mu guards the fields below. It is never held across a remote
	// call.
	mu               sync.RWMutex
	displayName      string
	platform         schema.PlatformInfo
	apps             []schema.AppDescriptor
	local            bool
	invited          bool
	readyForAction   bool
	blocked          bool
	blockedCode      schema.ErrorCode
	invitedElsewhere bool
	availability     schema.Availability
	appStatus        string
	connection       schema.ConnectionStats
	lastRefreshed    time.Time
	lastInviteCode   schema.ErrorCode
}

// NewClientSession performs the handshake with config.Endpoint and
// returns a session whose status has been refreshed once. On failure no
// reservation is left held.
func NewClientSession(ctx context.Context, config SessionConfig) (*ClientSession, error) {
	if config.Endpoint == "" {
		return nil, errors.New("client session: endpoint is required")
	}
	if config.Channel == nil {
		return nil, errors.New("client session: channel is required")
	}
	if config.ExpectedVersion == "" {
		return nil, errors.New("client session: expected version is required")
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	session := &ClientSession{
		endpoint:        config.Endpoint,
		expectedVersion: config.ExpectedVersion,
		localHostname:   config.LocalHostname,
		channel:         config.Channel,
		clock:           config.Clock,
		logger:          config.Logger.With("endpoint", config.Endpoint),
		timeouts:        config.Timeouts.withDefaults(),
		onEvent:         config.OnEvent,
		displayName:     config.DisplayName,
		availability:    schema.Available,
	}

	reservation, err := session.channel.Reserve(ctx, session.endpoint, schema.HandshakeOperations())
	if err != nil {
		return nil, handshakeError(session.endpoint, "reserving operations", err)
	}
	session.reservation = reservation

	if err := session.handshake(ctx); err != nil {
		session.release(ctx)
		return nil, err
	}
	if err := session.refresh(ctx); err != nil {
		session.release(ctx)
		return nil, fmt.Errorf("initial refresh of %s: %w", session.endpoint, err)
	}

	session.logger.Info("client session established",
		"display_name", session.DisplayName(),
		"version", session.platform.Version,
		"apps", len(session.apps),
		"local", session.local,
	)
	return session, nil
}

func (s *ClientSession) handshake(ctx context.Context) error {
	for _, operation := range schema.HandshakeOperations() {
		if err := s.channel.WaitForOperation(ctx, s.handle(operation), s.timeouts.Handshake); err != nil {
			return handshakeError(s.endpoint, "waiting for "+operation, err)
		}
	}

	var platform schema.PlatformInfo
	if err := s.channel.Call(ctx, s.handle(schema.OpPlatformInfo), nil, &platform, s.timeouts.Handshake); err != nil {
		return handshakeError(s.endpoint, "querying platform info", err)
	}
	if platform.Version != s.expectedVersion {
		return fmt.Errorf("handshake with %s: %w: client reports %q, controller expects %q",
			s.endpoint, ErrVersionMismatch, platform.Version, s.expectedVersion)
	}

	if err := s.channel.WaitForOperation(ctx, s.handle(schema.OpListApps), s.timeouts.AppList); err != nil {
		return handshakeError(s.endpoint, "waiting for list_apps", err)
	}
	var apps schema.ListAppsResponse
	if err := s.channel.Call(ctx, s.handle(schema.OpListApps), nil, &apps, s.timeouts.AppList); err != nil {
		return handshakeError(s.endpoint, "listing apps", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.platform = platform
	s.apps = apps.Apps
	s.local = s.localHostname != "" && platform.Hostname == s.localHostname
	if s.displayName == "" {
		s.displayName = platform.Name
	}
	if s.displayName == "" {
		s.displayName = s.endpoint
	}
	return nil
}

// handle returns the reserved handle for a handshake operation. The
// reservation always holds all four.
func (s *ClientSession) handle(operation string) gateway.Handle {
	handle, _ := s.reservation.Handle(operation)
	return handle
}

// release gives back the reservation even if ctx is already done.
func (s *ClientSession) release(ctx context.Context) {
	if s.reservation == nil {
		return
	}
	if err := s.channel.Release(context.WithoutCancel(ctx), s.reservation); err != nil {
		s.logger.Warn("releasing reservation failed", "error", err)
	}
	s.reservation = nil
}

// Close releases the session's reservation. Further operations return
// ErrSessionClosed. Close is idempotent.
func (s *ClientSession) Close(ctx context.Context) error {
	s.operationMu.Lock()
	defer s.operationMu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.release(ctx)
	s.logger.Debug("client session closed")
	return nil
}

// EndpointName returns the immutable routing name.
func (s *ClientSession) EndpointName() string { return s.endpoint }

// DisplayName returns the current alias.
func (s *ClientSession) DisplayName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.displayName
}

// SetDisplayName changes the alias used in later invitations.
func (s *ClientSession) SetDisplayName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.displayName = name
}

// Platform returns the identity pulled during the handshake.
func (s *ClientSession) Platform() schema.PlatformInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.platform
}

// Status returns a snapshot of everything the session knows.
func (s *ClientSession) Status() schema.ClientStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return schema.ClientStatus{
		DisplayName:      s.displayName,
		EndpointName:     s.endpoint,
		Platform:         s.platform,
		Apps:             slices.Clone(s.apps),
		Invited:          s.invited,
		ReadyForAction:   s.readyForAction,
		Blocked:          s.blocked,
		InvitedElsewhere: s.invitedElsewhere,
		Local:            s.local,
		Availability:     s.availability,
		AppStatus:        s.appStatus,
		Connection:       s.connection,
		LastRefreshed:    s.lastRefreshed,
		LastInviteError:  s.lastInviteCode,
	}
}

// Refresh re-reads the client's status and connection statistics.
// Nothing is updated unless both succeed.
func (s *ClientSession) Refresh(ctx context.Context) error {
	s.operationMu.Lock()
	defer s.operationMu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	return s.refresh(ctx)
}

func (s *ClientSession) refresh(ctx context.Context) error {
	var status schema.StatusResponse
	if err := s.channel.Call(ctx, s.handle(schema.OpStatus), nil, &status, s.timeouts.Status); err != nil {
		return fmt.Errorf("refreshing %s: %w: %w", s.endpoint, ErrClientUnreachable, err)
	}

	// Two-way classification: a client held by this controller and one
	// held by another both read as connected.
	availability := schema.Available
	if status.RemoteController != "" && status.RemoteController != schema.NoRemoteController {
		availability = schema.Connected
	}

	allStats, err := s.channel.Stats(ctx)
	if err != nil {
		return fmt.Errorf("refreshing %s: statistics unavailable: %w: %w", s.endpoint, ErrClientUnreachable, err)
	}
	index := slices.IndexFunc(allStats, func(entry schema.ConnectionStats) bool {
		return entry.Endpoint == s.endpoint
	})
	if index < 0 {
		return fmt.Errorf("refreshing %s: %w", s.endpoint, ErrStatsNotFound)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.availability = availability
	s.appStatus = status.AppStatus
	s.connection = allStats[index]
	s.lastRefreshed = s.clock.Now()
	return nil
}

// IsReadyForAction reports whether the invited client has exposed its
// start_app operation. The answer latches true until the next
// successful uninvite. Probe failures read as not ready.
func (s *ClientSession) IsReadyForAction(ctx context.Context) bool {
	s.operationMu.Lock()
	defer s.operationMu.Unlock()

	s.mu.RLock()
	invited, ready := s.invited, s.readyForAction
	s.mu.RUnlock()
	if !invited || s.closed {
		return false
	}
	if ready {
		return true
	}

	available, err := s.channel.Probe(ctx, s.endpoint, schema.OpStartApp, s.timeouts.Probe)
	if err != nil {
		s.logger.Debug("readiness probe failed", "error", err)
		return false
	}
	if !available {
		return false
	}

	s.mu.Lock()
	s.readyForAction = true
	s.mu.Unlock()
	s.logger.Info("client ready for action")
	s.emit(EventReady, schema.CodeSuccess)
	return true
}

func (s *ClientSession) emit(kind EventKind, code schema.ErrorCode) {
	if s.onEvent == nil {
		return
	}
	s.onEvent(Event{Kind: kind, Endpoint: s.endpoint, Code: code, At: s.clock.Now()})
}
