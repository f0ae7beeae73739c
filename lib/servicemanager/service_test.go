// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package servicemanager

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/concert/lib/clock"
	"github.com/bureau-foundation/concert/lib/schema"
	"github.com/bureau-foundation/concert/lib/testutil"
)

func newTestService(t *testing.T, config ServiceConfig) *ServiceProcess {
	t.Helper()
	service, err := NewServiceProcess(config)
	if err != nil {
		t.Fatalf("NewServiceProcess: %v", err)
	}
	t.Cleanup(func() { service.Close(context.Background()) })
	return service
}

func enabledFlags(changes []schema.ServiceDescriptor) []bool {
	flags := make([]bool, len(changes))
	for i, change := range changes {
		flags[i] = change.Enabled
	}
	return flags
}

func TestEnableDisableCooperativeChild(t *testing.T) {
	host := newFakeHost(true)
	recorder := newChangeRecorder()
	service := newTestService(t, testServiceConfig(host, clock.Fake(testEpoch), recorder))

	ok, message := service.Enable(context.Background())
	if !ok || message != MessageSuccess {
		t.Fatalf("Enable() = (%v, %q), want (true, %q)", ok, message, MessageSuccess)
	}
	// The enabled callback has run by the time Enable returns.
	changes := recorder.drain()
	if len(changes) != 1 || !changes[0].Enabled {
		t.Fatalf("changes after Enable = %+v, want one enabled snapshot", changes)
	}
	if changes[0].PID != host.process(0).PID() {
		t.Errorf("enabled snapshot PID = %d, want %d", changes[0].PID, host.process(0).PID())
	}

	call := host.lastCall()
	if !slices.Equal(call.argv, []string{"run.sh", "--flag"}) {
		t.Errorf("argv = %q, want [run.sh --flag]", call.argv)
	}
	for _, want := range []string{"PATH=/usr/bin:/bin", "KEY=1", EnvServiceName + "=gazebo", EnvServiceInstance + "=" + service.InstanceID()} {
		if !slices.Contains(call.env, want) {
			t.Errorf("child environment %q lacks %q", call.env, want)
		}
	}

	ok, message = service.Disable(context.Background())
	if !ok || message != MessageTerminated {
		t.Fatalf("Disable() = (%v, %q), want (true, %q)", ok, message, MessageTerminated)
	}
	terminates, kills := host.process(0).counts()
	if terminates != 1 || kills != 0 {
		t.Errorf("terminates = %d, kills = %d, want 1 and 0", terminates, kills)
	}
	if got := enabledFlags(recorder.drain()); !slices.Equal(got, []bool{false}) {
		t.Errorf("changes after Disable = %v, want [false]", got)
	}

	descriptor := service.Descriptor()
	if descriptor.Enabled {
		t.Error("Descriptor().Enabled = true after Disable")
	}
	if descriptor.ExitStatus != "signal: terminated" {
		t.Errorf("ExitStatus = %q, want signal: terminated", descriptor.ExitStatus)
	}
	if !descriptor.StartedAt.Equal(testEpoch) || !descriptor.StoppedAt.Equal(testEpoch) {
		t.Errorf("timestamps = %v / %v, want the fake clock's time", descriptor.StartedAt, descriptor.StoppedAt)
	}
}

func TestDisableAlreadyDisabled(t *testing.T) {
	host := newFakeHost(true)
	service := newTestService(t, testServiceConfig(host, clock.Fake(testEpoch), nil))

	ok, message := service.Disable(context.Background())
	if !ok || message != MessageAlreadyDisabled {
		t.Errorf("Disable() on a new service = (%v, %q), want (true, %q)", ok, message, MessageAlreadyDisabled)
	}

	service.Enable(context.Background())
	service.Disable(context.Background())
	ok, message = service.Disable(context.Background())
	if !ok || message != MessageAlreadyDisabled {
		t.Errorf("second Disable() = (%v, %q), want (true, %q)", ok, message, MessageAlreadyDisabled)
	}
	if terminates, _ := host.process(0).counts(); terminates != 1 {
		t.Errorf("terminates = %d, want 1", terminates)
	}
}

func TestDisableEscalatesToKill(t *testing.T) {
	host := newFakeHost(false)
	fake := clock.Fake(testEpoch)
	recorder := newChangeRecorder()
	service := newTestService(t, testServiceConfig(host, fake, recorder))

	if ok, message := service.Enable(context.Background()); !ok {
		t.Fatalf("Enable: %s", message)
	}

	type result struct {
		ok      bool
		message string
	}
	done := make(chan result, 1)
	go func() {
		ok, message := service.Disable(context.Background())
		done <- result{ok, message}
	}()

	for poll := 1; poll < DefaultEscalateAfterPolls; poll++ {
		fake.WaitForTimers(1)
		fake.Advance(DefaultPollInterval)
	}
	fake.WaitForTimers(1)
	if _, kills := host.process(0).counts(); kills != 0 {
		t.Fatalf("killed after %d polls, want no kill before %d", DefaultEscalateAfterPolls-1, DefaultEscalateAfterPolls)
	}
	fake.Advance(DefaultPollInterval)

	got := testutil.RequireReceive(t, done, 5*time.Second, "Disable to return")
	if !got.ok || got.message != MessageForceKilled {
		t.Errorf("Disable() = (%v, %q), want (true, %q)", got.ok, got.message, MessageForceKilled)
	}
	terminates, kills := host.process(0).counts()
	if terminates != 1 || kills != 1 {
		t.Errorf("terminates = %d, kills = %d, want 1 and 1", terminates, kills)
	}
	if service.Enabled() {
		t.Error("service enabled after forced kill")
	}
	if got := enabledFlags(recorder.drain()); !slices.Equal(got, []bool{true, false}) {
		t.Errorf("changes = %v, want [true false]", got)
	}
}

func TestDisableCustomEscalation(t *testing.T) {
	host := newFakeHost(false)
	fake := clock.Fake(testEpoch)
	config := testServiceConfig(host, fake, nil)
	config.PollInterval = 250 * time.Millisecond
	config.EscalateAfterPolls = 2
	service := newTestService(t, config)
	service.Enable(context.Background())

	done := make(chan string, 1)
	go func() {
		_, message := service.Disable(context.Background())
		done <- message
	}()
	for range 2 {
		fake.WaitForTimers(1)
		fake.Advance(250 * time.Millisecond)
	}
	if got := testutil.RequireReceive(t, done, 5*time.Second, "Disable to return"); got != MessageForceKilled {
		t.Errorf("Disable() message = %q, want %q", got, MessageForceKilled)
	}
}

func TestDisableContextCancelledKills(t *testing.T) {
	host := newFakeHost(false)
	service := newTestService(t, testServiceConfig(host, clock.Fake(testEpoch), nil))
	service.Enable(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ok, message := service.Disable(ctx)
	if !ok || message != MessageForceKilled {
		t.Errorf("Disable() = (%v, %q), want (true, %q)", ok, message, MessageForceKilled)
	}
	if _, kills := host.process(0).counts(); kills != 1 {
		t.Errorf("kills = %d, want 1", kills)
	}
}

func TestDisableTerminateError(t *testing.T) {
	host := newFakeHost(true)
	host.terminateErr = errors.New("operation not permitted")
	service := newTestService(t, testServiceConfig(host, clock.Fake(testEpoch), nil))
	service.Enable(context.Background())

	ok, message := service.Disable(context.Background())
	if ok || message != MessageDisableFailed+"operation not permitted" {
		t.Errorf("Disable() = (%v, %q), want the disabling error", ok, message)
	}
	if !service.Enabled() {
		t.Error("service disabled although termination failed")
	}
}

func TestEnableSpawnError(t *testing.T) {
	host := newFakeHost(true)
	host.spawnErr = &SpawnError{Argv: []string{"run.sh", "--flag"}, Err: errors.New("no such file or directory")}
	recorder := newChangeRecorder()
	service := newTestService(t, testServiceConfig(host, clock.Fake(testEpoch), recorder))

	ok, message := service.Enable(context.Background())
	if ok {
		t.Fatal("Enable() succeeded with a failing host")
	}
	if !strings.HasPrefix(message, MessageEnableFailed) || !strings.Contains(message, "no such file or directory") {
		t.Errorf("Enable() message = %q, want the enabling error with its cause", message)
	}
	if service.Enabled() {
		t.Error("service enabled after spawn failure")
	}
	if changes := recorder.drain(); len(changes) != 0 {
		t.Errorf("OnChange called %d times after spawn failure, want 0", len(changes))
	}
}

func TestEnableAlreadyEnabled(t *testing.T) {
	host := newFakeHost(true)
	service := newTestService(t, testServiceConfig(host, clock.Fake(testEpoch), nil))

	service.Enable(context.Background())
	ok, message := service.Enable(context.Background())
	if !ok || message != MessageAlreadyEnabled {
		t.Errorf("second Enable() = (%v, %q), want (true, %q)", ok, message, MessageAlreadyEnabled)
	}
	if got := host.spawnCount(); got != 1 {
		t.Errorf("spawned %d times, want 1", got)
	}
}

func TestEnableCancelledBeforeStart(t *testing.T) {
	host := newFakeHost(true)
	service := newTestService(t, testServiceConfig(host, clock.Fake(testEpoch), nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ok, message := service.Enable(ctx)
	if ok || message != MessageEnableFailed+context.Canceled.Error() {
		t.Errorf("Enable() = (%v, %q), want the cancellation error", ok, message)
	}
	if got := host.spawnCount(); got != 0 {
		t.Errorf("spawned %d times, want 0", got)
	}
}

func TestEnableCancelledDuringSpawn(t *testing.T) {
	host := newFakeHost(true)
	host.gate = make(chan struct{})
	host.started = make(chan struct{}, 1)
	recorder := newChangeRecorder()
	service := newTestService(t, testServiceConfig(host, clock.Fake(testEpoch), recorder))

	ctx, cancel := context.WithCancel(context.Background())
	type result struct {
		ok      bool
		message string
	}
	done := make(chan result, 1)
	go func() {
		ok, message := service.Enable(ctx)
		done <- result{ok, message}
	}()

	testutil.RequireReceive(t, host.started, 5*time.Second, "spawn to start")
	cancel()
	close(host.gate)
	got := testutil.RequireReceive(t, done, 5*time.Second, "Enable to return")

	// Spawn completing just before the cancellation is observed is a
	// legitimate success; either way the state must be consistent.
	if got.ok {
		if !service.Enabled() {
			t.Error("Enable() succeeded but the service is not enabled")
		}
		return
	}
	if got.message != MessageEnableFailed+context.Canceled.Error() {
		t.Errorf("Enable() message = %q, want the cancellation error", got.message)
	}
	if service.Enabled() {
		t.Error("service enabled after cancelled Enable")
	}
	if _, kills := host.process(0).counts(); kills != 1 {
		t.Errorf("abandoned child killed %d times, want 1", kills)
	}
	if changes := recorder.drain(); len(changes) != 0 {
		t.Errorf("OnChange called %d times for an abandoned child, want 0", len(changes))
	}
}

func TestChildExitsOnItsOwn(t *testing.T) {
	host := newFakeHost(true)
	recorder := newChangeRecorder()
	service := newTestService(t, testServiceConfig(host, clock.Fake(testEpoch), recorder))

	service.Enable(context.Background())
	instanceID := service.InstanceID()
	recorder.drain()

	host.process(0).exit("exit status 3")
	change := testutil.RequireReceive(t, recorder.changes, 5*time.Second, "disabled edge")
	if change.Enabled || change.ExitStatus != "exit status 3" {
		t.Errorf("change = %+v, want a disabled snapshot with exit status 3", change)
	}

	ok, message := service.Enable(context.Background())
	if !ok || message != MessageSuccess {
		t.Fatalf("re-Enable() = (%v, %q), want success", ok, message)
	}
	descriptor := service.Descriptor()
	if descriptor.PID != host.process(1).PID() {
		t.Errorf("PID = %d, want the new child's %d", descriptor.PID, host.process(1).PID())
	}
	if descriptor.ExitStatus != "" {
		t.Errorf("ExitStatus = %q after re-enable, want empty", descriptor.ExitStatus)
	}
	if descriptor.InstanceID != instanceID {
		t.Error("instance ID changed across enabled periods")
	}
}

func TestCloseKillsLiveChild(t *testing.T) {
	host := newFakeHost(false)
	recorder := newChangeRecorder()
	service, err := NewServiceProcess(testServiceConfig(host, clock.Fake(testEpoch), recorder))
	if err != nil {
		t.Fatalf("NewServiceProcess: %v", err)
	}
	service.Enable(context.Background())

	if err := service.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, kills := host.process(0).counts(); kills != 1 {
		t.Errorf("kills = %d, want 1", kills)
	}
	if service.Enabled() {
		t.Error("service enabled after Close")
	}
	if got := enabledFlags(recorder.drain()); !slices.Equal(got, []bool{true, false}) {
		t.Errorf("changes = %v, want [true false]", got)
	}

	if err := service.Close(context.Background()); err != nil {
		t.Errorf("second Close: %v", err)
	}
	ok, message := service.Enable(context.Background())
	if ok || !strings.Contains(message, ErrServiceClosed.Error()) {
		t.Errorf("Enable() after Close = (%v, %q), want a closed error", ok, message)
	}
}

func TestNewServiceProcessValidation(t *testing.T) {
	host := newFakeHost(true)
	tests := []struct {
		name   string
		mutate func(*ServiceConfig)
	}{
		{"no host", func(c *ServiceConfig) { c.Host = nil }},
		{"no name", func(c *ServiceConfig) { c.Definition.Name = "" }},
		{"no command", func(c *ServiceConfig) { c.Definition.Launcher = "" }},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			config := testServiceConfig(host, clock.Fake(testEpoch), nil)
			test.mutate(&config)
			if _, err := NewServiceProcess(config); err == nil {
				t.Fatal("NewServiceProcess accepted an invalid config")
			}
		})
	}
}

func TestDescriptorIdentity(t *testing.T) {
	host := newFakeHost(true)
	first := newTestService(t, testServiceConfig(host, clock.Fake(testEpoch), nil))
	second := newTestService(t, testServiceConfig(host, clock.Fake(testEpoch), nil))

	descriptor := first.Descriptor()
	if _, err := uuid.Parse(descriptor.InstanceID); err != nil {
		t.Errorf("InstanceID %q is not a UUID: %v", descriptor.InstanceID, err)
	}
	if descriptor.InstanceID == second.InstanceID() {
		t.Error("two services share an instance ID")
	}
	if descriptor.Fingerprint != second.Descriptor().Fingerprint {
		t.Error("identical definitions have different fingerprints")
	}
	if descriptor.Description != "Simulation world" {
		t.Errorf("Description = %q", descriptor.Description)
	}

	descriptor.Command[0] = "mutated"
	if first.Descriptor().Command[0] != "run.sh" {
		t.Error("mutating a Descriptor snapshot changed the service")
	}
}

func TestFingerprint(t *testing.T) {
	base := Fingerprint([]string{"run.sh", "--flag"}, map[string]string{"KEY": "1"})
	if len(base) != 64 {
		t.Fatalf("fingerprint %q is not 32 hex bytes", base)
	}
	variants := map[string]string{
		"argument changed":      Fingerprint([]string{"run.sh", "--other"}, map[string]string{"KEY": "1"}),
		"environment changed":   Fingerprint([]string{"run.sh", "--flag"}, map[string]string{"KEY": "2"}),
		"argument boundaries":   Fingerprint([]string{"run.sh--flag"}, map[string]string{"KEY": "1"}),
		"environment dropped":   Fingerprint([]string{"run.sh", "--flag"}, nil),
		"argument moved to env": Fingerprint([]string{"run.sh"}, map[string]string{"--flag": "", "KEY": "1"}),
	}
	for name, variant := range variants {
		if variant == base {
			t.Errorf("%s: fingerprint unchanged", name)
		}
	}
}
