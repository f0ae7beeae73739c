// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package conductor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/bureau-foundation/concert/lib/clock"
	"github.com/bureau-foundation/concert/lib/gateway"
	"github.com/bureau-foundation/concert/lib/schema"
)

const testVersion = "acdc"

var testEpoch = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// fakeClient scripts the replies of one endpoint.
type fakeClient struct {
	platform schema.PlatformInfo
	apps     []schema.AppDescriptor
	status   schema.StatusResponse

	// waitErr fails WaitForOperation for the named operation.
	waitErr map[string]error

	// callErr fails Call for the named operation.
	callErr map[string]error

	invite func(schema.InviteRequest) (schema.InviteResponse, error)

	probeResult bool
	probeErr    error

	// hideStats leaves the endpoint out of Stats.
	hideStats bool
}

func newFakeClient(name string) *fakeClient {
	return &fakeClient{
		platform: schema.PlatformInfo{Name: name, Version: testVersion, Hostname: name + "-host"},
		apps: []schema.AppDescriptor{
			{Name: "turtle_follower", DisplayName: "Follower"},
			{Name: "teleop", DisplayName: "Teleop"},
		},
		status:   schema.StatusResponse{RemoteController: schema.NoRemoteController, AppStatus: "stopped"},
		waitErr:  map[string]error{},
		callErr:  map[string]error{},
		invite:   acceptInvites,
		probeErr: nil,
	}
}

func acceptInvites(schema.InviteRequest) (schema.InviteResponse, error) {
	return schema.InviteResponse{Result: true, Code: schema.CodeSuccess}, nil
}

func refuseInvites(code schema.ErrorCode) func(schema.InviteRequest) (schema.InviteResponse, error) {
	return func(schema.InviteRequest) (schema.InviteResponse, error) {
		return schema.InviteResponse{Result: false, Code: code, Message: code.String()}, nil
	}
}

func failInvites(err error) func(schema.InviteRequest) (schema.InviteResponse, error) {
	return func(schema.InviteRequest) (schema.InviteResponse, error) {
		return schema.InviteResponse{}, err
	}
}

// fakeChannel is a scripted gateway.Channel that counts reservations,
// calls and probes.
type fakeChannel struct {
	mu           sync.Mutex
	clients      map[string]*fakeClient
	reserveErr   error
	statsErr     error
	nextID       uint64
	reservations map[uint64]*gateway.Reservation
	calls        map[string]int
	probes       int
	forgotten    []string
	lastInvite   schema.InviteRequest
}

var _ gateway.Channel = (*fakeChannel)(nil)

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		clients:      make(map[string]*fakeClient),
		reservations: make(map[uint64]*gateway.Reservation),
		calls:        make(map[string]int),
	}
}

func (f *fakeChannel) add(endpoint string) *fakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	client := newFakeClient(endpoint)
	f.clients[endpoint] = client
	return client
}

func (f *fakeChannel) remove(endpoint string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.clients, endpoint)
}

// update runs change on the endpoint's script under the channel lock.
func (f *fakeChannel) update(endpoint string, change func(*fakeClient)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	change(f.clients[endpoint])
}

func (f *fakeChannel) activeReservations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reservations)
}

func (f *fakeChannel) callCount(operation string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[operation]
}

func (f *fakeChannel) probeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.probes
}

// Endpoints makes the fake usable as a roster EndpointLister.
func (f *fakeChannel) Endpoints() ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	endpoints := make([]string, 0, len(f.clients))
	for endpoint := range f.clients {
		endpoints = append(endpoints, endpoint)
	}
	sort.Strings(endpoints)
	return endpoints, nil
}

func (f *fakeChannel) Reserve(ctx context.Context, endpoint string, operations []string) (*gateway.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reserveErr != nil {
		return nil, f.reserveErr
	}
	f.nextID++
	reservation := gateway.NewReservation(f.nextID, endpoint, operations)
	f.reservations[reservation.ID] = reservation
	return reservation, nil
}

func (f *fakeChannel) Release(ctx context.Context, reservation *gateway.Reservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.reservations, reservation.ID)
	return nil
}

func (f *fakeChannel) clientFor(handle gateway.Handle) (*fakeClient, error) {
	reserved := false
	for _, reservation := range f.reservations {
		if candidate, ok := reservation.Handle(handle.Operation); ok && candidate == handle {
			reserved = true
			break
		}
	}
	if !reserved {
		return nil, fmt.Errorf("%s: %w", handle, gateway.ErrNotReserved)
	}
	client, ok := f.clients[handle.Endpoint]
	if !ok {
		return nil, fmt.Errorf("%s: %w", handle.Endpoint, gateway.ErrUnreachable)
	}
	return client, nil
}

func (f *fakeChannel) WaitForOperation(ctx context.Context, handle gateway.Handle, timeout time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	client, err := f.clientFor(handle)
	if err != nil {
		return err
	}
	return client.waitErr[handle.Operation]
}

func (f *fakeChannel) Call(ctx context.Context, handle gateway.Handle, request, response any, timeout time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[handle.Operation]++
	client, err := f.clientFor(handle)
	if err != nil {
		return err
	}
	if err := client.callErr[handle.Operation]; err != nil {
		return err
	}

	switch handle.Operation {
	case schema.OpPlatformInfo:
		*response.(*schema.PlatformInfo) = client.platform
	case schema.OpListApps:
		*response.(*schema.ListAppsResponse) = schema.ListAppsResponse{Apps: client.apps}
	case schema.OpStatus:
		*response.(*schema.StatusResponse) = client.status
	case schema.OpInvite:
		invite := request.(schema.InviteRequest)
		f.lastInvite = invite
		reply, err := client.invite(invite)
		if err != nil {
			return err
		}
		*response.(*schema.InviteResponse) = reply
	default:
		return &gateway.RemoteError{Endpoint: handle.Endpoint, Operation: handle.Operation, Message: "unknown operation"}
	}
	return nil
}

func (f *fakeChannel) Probe(ctx context.Context, endpoint, operation string, timeout time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probes++
	client, ok := f.clients[endpoint]
	if !ok {
		return false, gateway.ErrUnreachable
	}
	return client.probeResult, client.probeErr
}

func (f *fakeChannel) Stats(ctx context.Context) ([]schema.ConnectionStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statsErr != nil {
		return nil, f.statsErr
	}
	var stats []schema.ConnectionStats
	for endpoint, client := range f.clients {
		if client.hideStats {
			continue
		}
		stats = append(stats, schema.ConnectionStats{Endpoint: endpoint, Calls: uint64(f.calls[schema.OpStatus])})
	}
	return stats, nil
}

func (f *fakeChannel) Forget(endpoint string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forgotten = append(f.forgotten, endpoint)
}

// eventRecorder collects session events.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) record(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]EventKind, len(r.events))
	for i, event := range r.events {
		kinds[i] = event.Kind
	}
	return kinds
}

func testSessionConfig(channel *fakeChannel, endpoint string, recorder *eventRecorder) SessionConfig {
	config := SessionConfig{
		Endpoint:        endpoint,
		ExpectedVersion: testVersion,
		LocalHostname:   "concert-host",
		Channel:         channel,
		Clock:           clock.Fake(testEpoch),
		Logger:          testLogger(),
	}
	if recorder != nil {
		config.OnEvent = recorder.record
	}
	return config
}
