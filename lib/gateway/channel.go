// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bureau-foundation/concert/lib/schema"
)

// Channel is the remote-call surface a controller uses to talk to its
// clients.
type Channel interface {
	// Reserve claims handles for operations on endpoint. The handles
	// stay valid until Release.
	Reserve(ctx context.Context, endpoint string, operations []string) (*Reservation, error)

	// Release gives back every handle of a reservation. Releasing an
	// already released reservation is a no-op.
	Release(ctx context.Context, reservation *Reservation) error

	// WaitForOperation blocks until the handle's operation is served
	// by its endpoint, or returns ErrTimeout after timeout.
	WaitForOperation(ctx context.Context, handle Handle, timeout time.Duration) error

	// Call invokes the handle's operation with request and decodes the
	// reply into response (which may be nil).
	Call(ctx context.Context, handle Handle, request, response any, timeout time.Duration) error

	// Probe reports whether endpoint currently serves operation,
	// without a reservation.
	Probe(ctx context.Context, endpoint, operation string, timeout time.Duration) (bool, error)

	// Stats returns the connection statistics of every endpoint the
	// channel has talked to.
	Stats(ctx context.Context) ([]schema.ConnectionStats, error)
}

// Handle names one reserved operation on one endpoint.
type Handle struct {
	Endpoint  string
	Operation string

	reservation uint64
}

func (h Handle) String() string {
	return h.Endpoint + "/" + h.Operation
}

// Reservation is a set of handles acquired together and released
// together.
type Reservation struct {
	ID       uint64
	Endpoint string

	handles map[string]Handle
}

// NewReservation builds a reservation for a Channel implementation.
func NewReservation(id uint64, endpoint string, operations []string) *Reservation {
	handles := make(map[string]Handle, len(operations))
	for _, operation := range operations {
		handles[operation] = Handle{Endpoint: endpoint, Operation: operation, reservation: id}
	}
	return &Reservation{ID: id, Endpoint: endpoint, handles: handles}
}

// Handle returns the handle for operation and whether it is part of the
// reservation.
func (r *Reservation) Handle(operation string) (Handle, bool) {
	handle, ok := r.handles[operation]
	return handle, ok
}

// Operations returns the reserved operation names.
func (r *Reservation) Operations() []string {
	operations := make([]string, 0, len(r.handles))
	for operation := range r.handles {
		operations = append(operations, operation)
	}
	return operations
}

// Transport failures. The remote side may or may not have acted on a
// call that failed with ErrTimeout or ErrInterrupted.
var (
	ErrUnreachable = errors.New("endpoint unreachable")
	ErrTimeout     = errors.New("remote call timed out")
	ErrInterrupted = errors.New("remote call interrupted")
)

// ErrNotReserved is returned when a handle is used after its
// reservation was released, or was never issued by this channel.
var ErrNotReserved = errors.New("handle is not reserved")

// RemoteError is returned when the remote handler answered with a
// failure instead of a result.
type RemoteError struct {
	Endpoint  string
	Operation string
	Message   string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error on %s/%s: %s", e.Endpoint, e.Operation, e.Message)
}

// IsTransportFailure reports whether err means the call did not produce
// a usable reply: the endpoint was unreachable, the call timed out or
// was interrupted, or the handler faulted.
func IsTransportFailure(err error) bool {
	if errors.Is(err, ErrUnreachable) || errors.Is(err, ErrTimeout) || errors.Is(err, ErrInterrupted) {
		return true
	}
	var remote *RemoteError
	return errors.As(err, &remote)
}
