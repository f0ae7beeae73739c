// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package conductor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/bureau-foundation/concert/lib/clock"
	"github.com/bureau-foundation/concert/lib/gateway"
	"github.com/bureau-foundation/concert/lib/schema"
)

// EndpointLister enumerates the client endpoints currently advertised.
// gateway.Resolver satisfies it.
type EndpointLister interface {
	Endpoints() ([]string, error)
}

// DefaultRefreshInterval is the Run cycle period when RosterConfig
// leaves it zero.
const DefaultRefreshInterval = 5 * time.Second

// RosterConfig configures a Roster.
type RosterConfig struct {
	ControllerID    string
	ExpectedVersion string
	LocalHostname   string

	Channel gateway.Channel
	Lister  EndpointLister
	Clock   clock.Clock
	Logger  *slog.Logger

	Timeouts        Timeouts
	RefreshInterval time.Duration

	// AutoInvite invites every available, unblocked client on each
	// Run cycle.
	AutoInvite bool

	OnEvent func(Event)
}

// Roster owns the client sessions of one controller.
type Roster struct {
	config RosterConfig
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*ClientSession

	// refused remembers endpoints whose handshake failed with a version
	// mismatch, so Sync does not retry them every cycle. An endpoint is
	// forgotten once it stops being listed.
	refused map[string]error
}

// NewRoster creates an empty roster.
func NewRoster(config RosterConfig) (*Roster, error) {
	if config.ControllerID == "" {
		return nil, errors.New("roster: controller ID is required")
	}
	if config.Channel == nil {
		return nil, errors.New("roster: channel is required")
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.RefreshInterval <= 0 {
		config.RefreshInterval = DefaultRefreshInterval
	}
	return &Roster{
		config:   config,
		logger:   config.Logger,
		sessions: make(map[string]*ClientSession),
		refused:  make(map[string]error),
	}, nil
}

// Admit performs the handshake with endpoint and starts tracking it.
// Admitting a tracked endpoint returns the existing session.
func (r *Roster) Admit(ctx context.Context, endpoint string) (*ClientSession, error) {
	if session := r.Get(endpoint); session != nil {
		return session, nil
	}

	session, err := NewClientSession(ctx, SessionConfig{
		Endpoint:        endpoint,
		ExpectedVersion: r.config.ExpectedVersion,
		LocalHostname:   r.config.LocalHostname,
		Channel:         r.config.Channel,
		Clock:           r.config.Clock,
		Logger:          r.config.Logger,
		Timeouts:        r.config.Timeouts,
		OnEvent:         r.config.OnEvent,
	})
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if existing, ok := r.sessions[endpoint]; ok {
		r.mu.Unlock()
		session.Close(ctx)
		return existing, nil
	}
	session.SetDisplayName(uniqueAlias(session.DisplayName(), r.aliasesLocked()))
	r.sessions[endpoint] = session
	delete(r.refused, endpoint)
	r.mu.Unlock()

	r.logger.Info("client admitted", "endpoint", endpoint, "display_name", session.DisplayName())
	return session, nil
}

func (r *Roster) aliasesLocked() map[string]bool {
	taken := make(map[string]bool, len(r.sessions))
	for _, session := range r.sessions {
		taken[session.DisplayName()] = true
	}
	return taken
}

// uniqueAlias returns base, or base with the smallest numeric suffix
// from 2 upward that is not taken.
func uniqueAlias(base string, taken map[string]bool) string {
	if !taken[base] {
		return base
	}
	for index := 2; ; index++ {
		candidate := fmt.Sprintf("%s%d", base, index)
		if !taken[candidate] {
			return candidate
		}
	}
}

// Get returns the session for endpoint, or nil.
func (r *Roster) Get(endpoint string) *ClientSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[endpoint]
}

// Sessions returns the tracked sessions ordered by endpoint name.
func (r *Roster) Sessions() []*ClientSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sessions := make([]*ClientSession, 0, len(r.sessions))
	for _, session := range r.sessions {
		sessions = append(sessions, session)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].EndpointName() < sessions[j].EndpointName()
	})
	return sessions
}

// Statuses returns a snapshot of every tracked session.
func (r *Roster) Statuses() []schema.ClientStatus {
	sessions := r.Sessions()
	statuses := make([]schema.ClientStatus, 0, len(sessions))
	for _, session := range sessions {
		statuses = append(statuses, session.Status())
	}
	return statuses
}

// Evict stops tracking endpoint, releases its reservation and drops its
// connection statistics.
func (r *Roster) Evict(ctx context.Context, endpoint string) error {
	session := r.Get(endpoint)
	if session == nil {
		return fmt.Errorf("evicting %s: %w", endpoint, ErrUnknownClient)
	}
	return r.evict(ctx, session)
}

// evict removes session only while it is still the one tracked under
// its endpoint, so a session admitted in its place survives.
func (r *Roster) evict(ctx context.Context, session *ClientSession) error {
	endpoint := session.EndpointName()
	r.mu.Lock()
	if r.sessions[endpoint] != session {
		r.mu.Unlock()
		return fmt.Errorf("evicting %s: %w", endpoint, ErrUnknownClient)
	}
	delete(r.sessions, endpoint)
	r.mu.Unlock()

	err := session.Close(ctx)
	if forgetter, ok := r.config.Channel.(interface{ Forget(string) }); ok {
		forgetter.Forget(endpoint)
	}
	r.logger.Info("client evicted", "endpoint", endpoint)
	if r.config.OnEvent != nil {
		r.config.OnEvent(Event{Kind: EventEvicted, Endpoint: endpoint, At: r.config.Clock.Now()})
	}
	return err
}

// Invite invites or uninvites the client at endpoint on behalf of this
// controller, using the session's display name as the alias.
func (r *Roster) Invite(ctx context.Context, endpoint string, cancel bool) (InviteResult, error) {
	session := r.Get(endpoint)
	if session == nil {
		return InviteResult{}, fmt.Errorf("inviting %s: %w", endpoint, ErrUnknownClient)
	}
	return session.Invite(ctx, r.config.ControllerID, session.DisplayName(), cancel)
}

// Sync admits every listed endpoint that is not yet tracked. Handshake
// failures are logged; version mismatches are remembered and not
// retried while the endpoint stays listed.
func (r *Roster) Sync(ctx context.Context) error {
	if r.config.Lister == nil {
		return nil
	}
	endpoints, err := r.config.Lister.Endpoints()
	if err != nil {
		return fmt.Errorf("listing endpoints: %w", err)
	}

	listed := make(map[string]bool, len(endpoints))
	for _, endpoint := range endpoints {
		listed[endpoint] = true
	}
	r.mu.Lock()
	for endpoint := range r.refused {
		if !listed[endpoint] {
			delete(r.refused, endpoint)
		}
	}
	r.mu.Unlock()

	for _, endpoint := range endpoints {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.mu.RLock()
		_, tracked := r.sessions[endpoint]
		_, refused := r.refused[endpoint]
		r.mu.RUnlock()
		if tracked || refused {
			continue
		}

		if _, err := r.Admit(ctx, endpoint); err != nil {
			if errors.Is(err, ErrVersionMismatch) {
				r.mu.Lock()
				r.refused[endpoint] = err
				r.mu.Unlock()
				r.logger.Warn("refusing client with mismatched version", "endpoint", endpoint, "error", err)
				continue
			}
			r.logger.Warn("client handshake failed", "endpoint", endpoint, "error", err)
		}
	}
	return nil
}

// Refresh refreshes every session and evicts the unreachable ones. A
// failure caused by ctx ending evicts nothing.
func (r *Roster) Refresh(ctx context.Context) {
	for _, session := range r.Sessions() {
		if ctx.Err() != nil {
			return
		}
		err := session.Refresh(ctx)
		switch {
		case err == nil:
		case ctx.Err() != nil:
			return
		case errors.Is(err, ErrClientUnreachable):
			r.logger.Info("client unreachable, evicting", "endpoint", session.EndpointName(), "error", err)
			if err := r.evict(ctx, session); err != nil && !errors.Is(err, ErrUnknownClient) {
				r.logger.Warn("closing evicted session failed", "endpoint", session.EndpointName(), "error", err)
			}
		default:
			r.logger.Warn("refresh failed", "endpoint", session.EndpointName(), "error", err)
		}
	}
}

// InviteAvailable invites every session that is available, not
// invited, not blocked and not held by another controller.
func (r *Roster) InviteAvailable(ctx context.Context) {
	for _, session := range r.Sessions() {
		status := session.Status()
		if status.Invited || status.Blocked || status.InvitedElsewhere || status.Availability != schema.Available {
			continue
		}
		result, err := session.Invite(ctx, r.config.ControllerID, status.DisplayName, false)
		if err != nil {
			r.logger.Warn("auto-invite failed", "endpoint", status.EndpointName, "error", err)
			continue
		}
		r.logger.Debug("auto-invite",
			"endpoint", status.EndpointName,
			"outcome", result.Outcome.String(),
			"code", result.Code.String(),
		)
	}
}

// Cycle runs one Sync, Refresh and (if enabled) InviteAvailable pass.
func (r *Roster) Cycle(ctx context.Context) {
	if err := r.Sync(ctx); err != nil && ctx.Err() == nil {
		r.logger.Warn("endpoint sync failed", "error", err)
	}
	r.Refresh(ctx)
	if r.config.AutoInvite {
		r.InviteAvailable(ctx)
	}
}

// Run cycles every RefreshInterval until ctx is cancelled, then closes
// every session.
func (r *Roster) Run(ctx context.Context) error {
	ticker := r.config.Clock.NewTicker(r.config.RefreshInterval)
	defer ticker.Stop()

	for {
		r.Cycle(ctx)
		select {
		case <-ctx.Done():
			r.Close(context.WithoutCancel(ctx))
			return nil
		case <-ticker.C:
		}
	}
}

// Close closes and forgets every session.
func (r *Roster) Close(ctx context.Context) {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*ClientSession)
	r.mu.Unlock()

	for _, session := range sessions {
		session.Close(ctx)
	}
}
