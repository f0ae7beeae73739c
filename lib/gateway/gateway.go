// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/bureau-foundation/concert/lib/clock"
	"github.com/bureau-foundation/concert/lib/schema"
)

// DefaultPollInterval is how often WaitForOperation re-checks an
// endpoint.
const DefaultPollInterval = 100 * time.Millisecond

// Config configures a Gateway.
type Config struct {
	Resolver Resolver
	Clock    clock.Clock
	Logger   *slog.Logger

	// PollInterval overrides DefaultPollInterval.
	PollInterval time.Duration
}

// Gateway implements Channel over Unix sockets.
type Gateway struct {
	resolver     Resolver
	clock        clock.Clock
	logger       *slog.Logger
	pollInterval time.Duration

	mu           sync.Mutex
	nextID       uint64
	reservations map[uint64]*reservationEntry

	stats *statsTable
}

type reservationEntry struct {
	reservation *Reservation
	socketPath  string
}

var _ Channel = (*Gateway)(nil)

// New creates a Gateway.
func New(config Config) *Gateway {
	pollInterval := config.PollInterval
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Gateway{
		resolver:     config.Resolver,
		clock:        config.Clock,
		logger:       config.Logger,
		pollInterval: pollInterval,
		reservations: make(map[uint64]*reservationEntry),
		stats:        newStatsTable(),
	}
}

// Reserve resolves endpoint and records a reservation for operations.
// It does not contact the endpoint; WaitForOperation does.
func (g *Gateway) Reserve(ctx context.Context, endpoint string, operations []string) (*Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("reserving on %s: %w: %w", endpoint, ErrInterrupted, err)
	}
	if len(operations) == 0 {
		return nil, fmt.Errorf("reserving on %s: no operations requested", endpoint)
	}
	socketPath, err := g.resolver.Resolve(endpoint)
	if err != nil {
		return nil, fmt.Errorf("reserving on %s: %w: %w", endpoint, ErrUnreachable, err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextID++
	reservation := NewReservation(g.nextID, endpoint, operations)
	g.reservations[reservation.ID] = &reservationEntry{
		reservation: reservation,
		socketPath:  socketPath,
	}
	g.logger.Debug("reserved operations",
		"endpoint", endpoint,
		"reservation", reservation.ID,
		"operations", operations,
	)
	return reservation, nil
}

// Release drops the reservation.
func (g *Gateway) Release(ctx context.Context, reservation *Reservation) error {
	if reservation == nil {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.reservations[reservation.ID]; ok {
		delete(g.reservations, reservation.ID)
		g.logger.Debug("released reservation",
			"endpoint", reservation.Endpoint,
			"reservation", reservation.ID,
		)
	}
	return nil
}

// ActiveReservations returns the number of unreleased reservations.
func (g *Gateway) ActiveReservations() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.reservations)
}

// socketFor returns the socket path backing handle, or ErrNotReserved.
func (g *Gateway) socketFor(handle Handle) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	entry, ok := g.reservations[handle.reservation]
	if !ok || entry.reservation.Endpoint != handle.Endpoint {
		return "", fmt.Errorf("%s: %w", handle, ErrNotReserved)
	}
	if _, reserved := entry.reservation.handles[handle.Operation]; !reserved {
		return "", fmt.Errorf("%s: %w", handle, ErrNotReserved)
	}
	return entry.socketPath, nil
}

// Call invokes a reserved operation.
func (g *Gateway) Call(ctx context.Context, handle Handle, request, response any, timeout time.Duration) error {
	socketPath, err := g.socketFor(handle)
	if err != nil {
		return err
	}
	return g.call(ctx, handle.Endpoint, socketPath, handle.Operation, request, response, timeout)
}

func (g *Gateway) call(ctx context.Context, endpoint, socketPath, operation string, request, response any, timeout time.Duration) error {
	start := g.clock.Now()
	reply, err := roundTrip(ctx, socketPath, operation, request, timeout)
	if err == nil {
		err = decodeResponse(endpoint, operation, reply, response)
	}
	now := g.clock.Now()
	g.stats.record(endpoint, now, now.Sub(start), err)
	if err != nil {
		return fmt.Errorf("calling %s/%s: %w", endpoint, operation, err)
	}
	return nil
}

// describe returns the operations endpoint currently serves.
func (g *Gateway) describe(ctx context.Context, endpoint, socketPath string, timeout time.Duration) ([]string, error) {
	var description DescribeResponse
	if err := g.call(ctx, endpoint, socketPath, DescribeAction, nil, &description, timeout); err != nil {
		return nil, err
	}
	return description.Operations, nil
}

// WaitForOperation polls the endpoint's operation list until the
// handle's operation appears. Failed polls are retried until timeout.
func (g *Gateway) WaitForOperation(ctx context.Context, handle Handle, timeout time.Duration) error {
	socketPath, err := g.socketFor(handle)
	if err != nil {
		return err
	}

	deadline := g.clock.Now().Add(timeout)
	var lastErr error
	for {
		remaining := deadline.Sub(g.clock.Now())
		if remaining <= 0 {
			if lastErr != nil {
				return fmt.Errorf("waiting for %s: %w (last error: %v)", handle, ErrTimeout, lastErr)
			}
			return fmt.Errorf("waiting for %s: %w", handle, ErrTimeout)
		}

		operations, err := g.describe(ctx, handle.Endpoint, socketPath, remaining)
		if err == nil && slices.Contains(operations, handle.Operation) {
			return nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return fmt.Errorf("waiting for %s: %w: %w", handle, ErrInterrupted, ctx.Err())
		}

		if err := clock.Wait(ctx, g.clock, min(g.pollInterval, remaining)); err != nil {
			return fmt.Errorf("waiting for %s: %w: %w", handle, ErrInterrupted, err)
		}
	}
}

// Probe asks endpoint whether it serves operation right now.
func (g *Gateway) Probe(ctx context.Context, endpoint, operation string, timeout time.Duration) (bool, error) {
	socketPath, err := g.resolver.Resolve(endpoint)
	if err != nil {
		return false, fmt.Errorf("probing %s: %w: %w", endpoint, ErrUnreachable, err)
	}
	operations, err := g.describe(ctx, endpoint, socketPath, timeout)
	if err != nil {
		return false, err
	}
	return slices.Contains(operations, operation), nil
}

// Stats returns the statistics of every endpoint this gateway has
// called since it was created or the endpoint was forgotten.
func (g *Gateway) Stats(ctx context.Context) ([]schema.ConnectionStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("reading connection statistics: %w: %w", ErrInterrupted, err)
	}
	return g.stats.snapshot(), nil
}

// Forget drops the statistics of endpoint, typically after its session
// has been evicted.
func (g *Gateway) Forget(endpoint string) {
	g.stats.forget(endpoint)
}
