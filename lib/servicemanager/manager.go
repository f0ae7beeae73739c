// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package servicemanager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/bureau-foundation/concert/lib/clock"
	"github.com/bureau-foundation/concert/lib/health"
	"github.com/bureau-foundation/concert/lib/schema"
	"github.com/bureau-foundation/concert/lib/statefile"
)

// ErrUnknownService is returned for a name no loaded definition has.
var ErrUnknownService = errors.New("unknown service")

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	Host   ProcessHost
	Clock  clock.Clock
	Logger *slog.Logger

	// Health, when set, publishes one gRPC health service per loaded
	// service: SERVING while enabled.
	Health *health.Server

	// LedgerPath, when set, is rewritten on every enabled/disabled edge
	// with the running children. ReapOrphans reads it at the next
	// start.
	LedgerPath string

	// Environment is passed to every ServiceProcess. Nil means
	// os.Environ().
	Environment []string

	PollInterval       time.Duration
	EscalateAfterPolls int

	// OnChange observes every edge of every service after the manager
	// has recorded it.
	OnChange func(schema.ServiceDescriptor)
}

// Manager owns the ServiceProcesses of one host.
type Manager struct {
	config ManagerConfig
	logger *slog.Logger

	mu       sync.RWMutex
	services map[string]*ServiceProcess

	ledgerMu sync.Mutex
	ledger   Ledger
}

// NewManager creates an empty Manager.
func NewManager(config ManagerConfig) (*Manager, error) {
	if config.Host == nil {
		return nil, errors.New("service manager: process host is required")
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Manager{
		config:   config,
		logger:   config.Logger,
		services: make(map[string]*ServiceProcess),
		ledger: Ledger{
			Owner:   os.Getpid(),
			Entries: make(map[string]LedgerEntry),
		},
	}, nil
}

// Load creates a ServiceProcess for every definition, then enables the
// ones marked EnableOnStart. A definition whose name is already loaded
// is an error. Enable failures are logged and returned joined; the
// remaining services are still loaded.
func (m *Manager) Load(ctx context.Context, definitions []schema.ServiceDefinition) error {
	var created []*ServiceProcess
	m.mu.Lock()
	seen := make(map[string]bool, len(definitions))
	for _, definition := range definitions {
		if _, exists := m.services[definition.Name]; exists || seen[definition.Name] {
			m.mu.Unlock()
			return fmt.Errorf("service %q is already loaded", definition.Name)
		}
		seen[definition.Name] = true
	}
	for _, definition := range definitions {
		service, err := NewServiceProcess(ServiceConfig{
			Definition:         definition,
			Environment:        m.config.Environment,
			Host:               m.config.Host,
			Clock:              m.config.Clock,
			Logger:             m.logger,
			PollInterval:       m.config.PollInterval,
			EscalateAfterPolls: m.config.EscalateAfterPolls,
			OnChange:           m.recordChange,
		})
		if err != nil {
			m.mu.Unlock()
			return err
		}
		created = append(created, service)
	}
	for _, service := range created {
		m.services[service.Name()] = service
		if m.config.Health != nil {
			m.config.Health.Set(service.Name(), false)
		}
	}
	m.mu.Unlock()

	m.logger.Info("services loaded", "count", len(created))

	var problems []error
	for _, service := range created {
		if !service.definition.EnableOnStart {
			continue
		}
		if ok, message := service.Enable(ctx); !ok {
			problems = append(problems, fmt.Errorf("enabling %s on start: %s", service.Name(), message))
		}
	}
	return errors.Join(problems...)
}

func (m *Manager) lookup(name string) (*ServiceProcess, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	service, exists := m.services[name]
	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrUnknownService, name)
	}
	return service, nil
}

// Enable enables the named service. The error is non-nil only for an
// unknown name; launch failures are reported in the message.
func (m *Manager) Enable(ctx context.Context, name string) (bool, string, error) {
	service, err := m.lookup(name)
	if err != nil {
		return false, "", err
	}
	ok, message := service.Enable(ctx)
	return ok, message, nil
}

// Disable disables the named service.
func (m *Manager) Disable(ctx context.Context, name string) (bool, string, error) {
	service, err := m.lookup(name)
	if err != nil {
		return false, "", err
	}
	ok, message := service.Disable(ctx)
	return ok, message, nil
}

// Descriptor returns the snapshot of the named service.
func (m *Manager) Descriptor(name string) (schema.ServiceDescriptor, error) {
	service, err := m.lookup(name)
	if err != nil {
		return schema.ServiceDescriptor{}, err
	}
	return service.Descriptor(), nil
}

// List returns snapshots of every service sorted by name.
func (m *Manager) List() []schema.ServiceDescriptor {
	m.mu.RLock()
	descriptors := make([]schema.ServiceDescriptor, 0, len(m.services))
	for _, service := range m.services {
		descriptors = append(descriptors, service.Descriptor())
	}
	m.mu.RUnlock()

	sort.Slice(descriptors, func(i, j int) bool { return descriptors[i].Name < descriptors[j].Name })
	return descriptors
}

// Close closes every service, killing live children. The ledger is
// empty afterwards unless a child could not be joined.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.RLock()
	services := make([]*ServiceProcess, 0, len(m.services))
	for _, service := range m.services {
		services = append(services, service)
	}
	m.mu.RUnlock()

	var (
		wg       sync.WaitGroup
		problems = make([]error, len(services))
	)
	for index, service := range services {
		wg.Add(1)
		go func() {
			defer wg.Done()
			problems[index] = service.Close(ctx)
		}()
	}
	wg.Wait()
	return errors.Join(problems...)
}

// recordChange is the OnChange callback of every managed service.
func (m *Manager) recordChange(descriptor schema.ServiceDescriptor) {
	if m.config.Health != nil {
		m.config.Health.Set(descriptor.Name, descriptor.Enabled)
	}
	m.updateLedger(descriptor)
	if m.config.OnChange != nil {
		m.config.OnChange(descriptor)
	}
}

func (m *Manager) updateLedger(descriptor schema.ServiceDescriptor) {
	m.ledgerMu.Lock()
	defer m.ledgerMu.Unlock()

	if descriptor.Enabled {
		m.ledger.Entries[descriptor.Name] = LedgerEntry{
			PID:         descriptor.PID,
			InstanceID:  descriptor.InstanceID,
			Fingerprint: descriptor.Fingerprint,
			StartedAt:   descriptor.StartedAt,
		}
	} else {
		delete(m.ledger.Entries, descriptor.Name)
	}
	if m.config.LedgerPath == "" {
		return
	}

	m.ledger.Updated = m.config.Clock.Now()
	if len(m.ledger.Entries) == 0 {
		if err := statefile.Clear(m.config.LedgerPath); err != nil {
			m.logger.Error("clearing service ledger failed", "error", err)
		}
		return
	}
	if err := statefile.Write(m.config.LedgerPath, m.ledger); err != nil {
		m.logger.Error("writing service ledger failed", "error", err)
	}
}
