// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import "time"

// ServiceDefinition is the static, on-disk description of a service
// the local service manager may launch.
type ServiceDefinition struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	// Command is the argument vector. Command[0] is resolved through
	// PATH when it contains no slash.
	Command []string `json:"command,omitempty"`

	// Launcher is the legacy single-string form of Command. It is
	// split on whitespace with no quoting support, and is ignored when
	// Command is set.
	Launcher string `json:"launcher,omitempty"`

	// Environment is added to the manager's own environment for the
	// child.
	Environment map[string]string `json:"environment,omitempty"`

	// EnableOnStart enables the service as soon as the manager loads
	// it.
	EnableOnStart bool `json:"enable_on_start,omitempty"`
}

// ServiceDescriptor is the read-only snapshot of one supervised
// service.
type ServiceDescriptor struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	InstanceID  string   `json:"instance_id"`
	Command     []string `json:"command"`
	Fingerprint string   `json:"fingerprint"`

	Enabled    bool      `json:"enabled"`
	PID        int       `json:"pid,omitempty"`
	StartedAt  time.Time `json:"started_at,omitempty"`
	StoppedAt  time.Time `json:"stopped_at,omitempty"`
	ExitStatus string    `json:"exit_status,omitempty"`
}
