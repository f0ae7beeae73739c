// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package servicemanager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/concert/lib/clock"
	"github.com/bureau-foundation/concert/lib/schema"
	"github.com/bureau-foundation/concert/lib/servicedef"
)

// Messages returned by Enable and Disable. Operators and scripts match
// on them, so they are stable.
const (
	MessageSuccess         = "Success"
	MessageAlreadyEnabled  = "Already enabled"
	MessageAlreadyDisabled = "Already disabled"
	MessageTerminated      = "Terminated"
	MessageForceKilled     = "Force Killed"

	// Prefixes of failure messages; the cause follows.
	MessageEnableFailed  = "Error while enabling service : "
	MessageDisableFailed = "Error while disabling : "
)

const (
	// DefaultPollInterval is the interval Disable waits between checks
	// of a terminating child.
	DefaultPollInterval = time.Second

	// DefaultEscalateAfterPolls is the number of poll intervals Disable
	// waits after SIGTERM before sending SIGKILL.
	DefaultEscalateAfterPolls = 10
)

// ErrServiceClosed is returned by operations on a closed ServiceProcess.
var ErrServiceClosed = errors.New("service closed")

// ServiceConfig configures a ServiceProcess.
type ServiceConfig struct {
	Definition schema.ServiceDefinition

	// Environment is the inherited environment of the child. Nil means
	// os.Environ() at construction. The definition's own variables are
	// appended after it and win on conflict.
	Environment []string

	Host   ProcessHost
	Clock  clock.Clock
	Logger *slog.Logger

	// PollInterval and EscalateAfterPolls shape Disable's wait for a
	// terminating child. Zero selects the defaults.
	PollInterval       time.Duration
	EscalateAfterPolls int

	// OnChange is called on every enabled/disabled edge with a snapshot
	// taken after the edge. It runs on the service's worker goroutine
	// and must not call Enable, Disable or Close on the same service.
	OnChange func(schema.ServiceDescriptor)
}

// ServiceProcess supervises one locally launched service. Enable and
// Disable are serialized; Descriptor may be called at any time.
type ServiceProcess struct {
	definition   schema.ServiceDefinition
	argv         []string
	env          []string
	instanceID   string
	fingerprint  string
	host         ProcessHost
	clock        clock.Clock
	logger       *slog.Logger
	pollInterval time.Duration
	escalate     int
	onChange     func(schema.ServiceDescriptor)

	// controlMu serializes Enable, Disable and Close. It is held for the
	// whole operation and guards worker and closed.
	controlMu sync.Mutex
	worker    *worker
	closed    bool

	// mu guards the observable state below. Enable is the only writer
	// of enabled on false→true; the worker is the only writer on
	// true→false.
	mu         sync.RWMutex
	enabled    bool
	pid        int
	startedAt  time.Time
	stoppedAt  time.Time
	exitStatus string
}

// worker is one enabled period: a spawned child and the goroutine
// waiting on it.
type worker struct {
	process Process

	// enabledNotified is closed once OnChange has seen the enabled
	// edge. done is closed when the goroutine returns.
	enabledNotified chan struct{}
	done            chan struct{}
}

// spawnResult carries the outcome of Spawn from the worker to Enable.
type spawnResult struct {
	process Process
	err     error
}

// NewServiceProcess validates the definition and captures the child's
// environment. No process is started until Enable.
func NewServiceProcess(config ServiceConfig) (*ServiceProcess, error) {
	definition := config.Definition
	if issues := servicedef.Validate(definition); len(issues) > 0 {
		return nil, fmt.Errorf("service %q: invalid definition: %v", definition.Name, issues)
	}
	if config.Host == nil {
		return nil, fmt.Errorf("service %q: process host is required", definition.Name)
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.EscalateAfterPolls <= 0 {
		config.EscalateAfterPolls = DefaultEscalateAfterPolls
	}
	base := config.Environment
	if base == nil {
		base = os.Environ()
	}

	instanceID := uuid.New().String()
	argv := slices.Clone(servicedef.Argv(definition))

	env := slices.Clone(base)
	env = append(env, sortedEnvironment(definition.Environment)...)
	env = append(env,
		EnvServiceName+"="+definition.Name,
		EnvServiceInstance+"="+instanceID,
	)

	return &ServiceProcess{
		definition:   definition,
		argv:         argv,
		env:          env,
		instanceID:   instanceID,
		fingerprint:  Fingerprint(argv, definition.Environment),
		host:         config.Host,
		clock:        config.Clock,
		logger:       config.Logger.With("service", definition.Name, "instance", instanceID),
		pollInterval: config.PollInterval,
		escalate:     config.EscalateAfterPolls,
		onChange:     config.OnChange,
	}, nil
}

// Name returns the service name.
func (s *ServiceProcess) Name() string { return s.definition.Name }

// InstanceID returns the random identifier generated at construction.
func (s *ServiceProcess) InstanceID() string { return s.instanceID }

// Enabled reports whether the child is expected to be running.
func (s *ServiceProcess) Enabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

// Descriptor returns a snapshot of the service.
func (s *ServiceProcess) Descriptor() schema.ServiceDescriptor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.descriptorLocked()
}

func (s *ServiceProcess) descriptorLocked() schema.ServiceDescriptor {
	return schema.ServiceDescriptor{
		Name:        s.definition.Name,
		Description: s.definition.Description,
		InstanceID:  s.instanceID,
		Command:     slices.Clone(s.argv),
		Fingerprint: s.fingerprint,
		Enabled:     s.enabled,
		PID:         s.pid,
		StartedAt:   s.startedAt,
		StoppedAt:   s.stoppedAt,
		ExitStatus:  s.exitStatus,
	}
}

// Enable launches the child and returns once it is running and OnChange
// has seen the enabled edge. The boolean reports whether the service is
// enabled on return; the message is one of the Message constants, or
// MessageEnableFailed followed by the cause.
func (s *ServiceProcess) Enable(ctx context.Context) (bool, string) {
	s.controlMu.Lock()
	defer s.controlMu.Unlock()

	if s.closed {
		return false, MessageEnableFailed + ErrServiceClosed.Error()
	}
	if s.Enabled() {
		return true, MessageAlreadyEnabled
	}
	if err := ctx.Err(); err != nil {
		return false, MessageEnableFailed + err.Error()
	}
	// A child that exited on its own leaves a worker finishing its
	// disabled callback.
	if s.worker != nil {
		<-s.worker.done
		s.worker = nil
	}

	w := &worker{
		enabledNotified: make(chan struct{}),
		done:            make(chan struct{}),
	}
	spawned := make(chan spawnResult, 1)
	proceed := make(chan struct{})
	abandon := make(chan struct{})
	go s.run(w, spawned, proceed, abandon)

	select {
	case result := <-spawned:
		if result.err != nil {
			<-w.done
			s.logger.Error("service failed to start", "error", result.err)
			return false, MessageEnableFailed + result.err.Error()
		}

		s.mu.Lock()
		s.enabled = true
		s.pid = result.process.PID()
		s.startedAt = s.clock.Now()
		s.stoppedAt = time.Time{}
		s.exitStatus = ""
		s.mu.Unlock()

		w.process = result.process
		s.worker = w
		close(proceed)
		<-w.enabledNotified

		s.logger.Info("service enabled", "pid", result.process.PID())
		return true, MessageSuccess

	case <-ctx.Done():
		close(abandon)
		<-w.done
		s.logger.Warn("service enable abandoned", "error", ctx.Err())
		return false, MessageEnableFailed + ctx.Err().Error()
	}
}

// run is the worker goroutine of one enabled period.
func (s *ServiceProcess) run(w *worker, spawned chan<- spawnResult, proceed, abandon <-chan struct{}) {
	defer close(w.done)

	process, err := s.host.Spawn(s.argv, s.env)
	if err != nil {
		spawned <- spawnResult{err: err}
		return
	}
	spawned <- spawnResult{process: process}

	select {
	case <-proceed:
	case <-abandon:
		if err := process.Kill(); err != nil {
			s.logger.Warn("killing abandoned child failed", "pid", process.PID(), "error", err)
		}
		<-process.Done()
		return
	}

	s.notify()
	close(w.enabledNotified)

	<-process.Done()

	s.mu.Lock()
	s.enabled = false
	s.stoppedAt = s.clock.Now()
	s.exitStatus = process.ExitStatus()
	s.mu.Unlock()

	s.logger.Info("service exited", "pid", process.PID(), "status", process.ExitStatus())
	s.notify()
}

func (s *ServiceProcess) notify() {
	if s.onChange == nil {
		return
	}
	s.onChange(s.Descriptor())
}

// Disable asks the child to terminate and waits for it, killing it
// after the escalation threshold or when ctx ends. The worker has
// returned by the time Disable does.
func (s *ServiceProcess) Disable(ctx context.Context) (bool, string) {
	s.controlMu.Lock()
	defer s.controlMu.Unlock()

	w := s.worker
	if !s.Enabled() || w == nil {
		if w != nil {
			<-w.done
			s.worker = nil
		}
		return true, MessageAlreadyDisabled
	}

	if err := w.process.Terminate(); err != nil {
		s.logger.Error("terminating service failed", "error", err)
		return false, MessageDisableFailed + err.Error()
	}

	forced := false
	polls := 0
	for !forced {
		select {
		case <-w.done:
			s.worker = nil
			s.logger.Info("service disabled", "polls", polls)
			return true, MessageTerminated
		case <-ctx.Done():
			s.logger.Warn("disable interrupted, killing service", "error", ctx.Err())
			forced = true
		case <-s.clock.After(s.pollInterval):
			polls++
			if polls >= s.escalate {
				s.logger.Warn("service ignored termination, killing it", "polls", polls)
				forced = true
			}
		}
	}

	if err := w.process.Kill(); err != nil {
		s.logger.Error("killing service failed", "error", err)
	}
	<-w.done
	s.worker = nil
	return true, MessageForceKilled
}

// Close kills a live child and joins the worker. It is safe to call on
// every exit path and more than once. Later Enable calls fail.
func (s *ServiceProcess) Close(ctx context.Context) error {
	s.controlMu.Lock()
	defer s.controlMu.Unlock()

	s.closed = true
	w := s.worker
	if w == nil {
		return nil
	}
	if s.Enabled() {
		s.logger.Warn("closing enabled service, killing it")
		if err := w.process.Kill(); err != nil {
			s.logger.Error("killing service failed", "error", err)
		}
	}
	select {
	case <-w.done:
		s.worker = nil
		return nil
	case <-ctx.Done():
		return fmt.Errorf("service %s: waiting for worker: %w", s.definition.Name, ctx.Err())
	}
}
