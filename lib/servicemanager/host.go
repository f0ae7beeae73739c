// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package servicemanager

import (
	"fmt"
	"strings"
)

// ProcessState is the result of Process.Poll.
type ProcessState int

const (
	Running ProcessState = iota
	Exited
)

func (s ProcessState) String() string {
	switch s {
	case Running:
		return "running"
	case Exited:
		return "exited"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ProcessHost launches child processes. argv[0] is resolved through
// PATH when it contains no slash. env is the complete environment of
// the child.
type ProcessHost interface {
	Spawn(argv, env []string) (Process, error)
}

// Process is a launched child, exclusively owned by the ServiceProcess
// that spawned it.
type Process interface {
	PID() int

	// Poll reports whether the process has exited without blocking.
	Poll() ProcessState

	// Terminate asks the process to exit. Kill forces it. Both are
	// no-ops on a process that already exited.
	Terminate() error
	Kill() error

	// Done is closed once the process has exited and been reaped.
	Done() <-chan struct{}

	// ExitStatus describes how the process ended, e.g. "exit status 0"
	// or "signal: killed". It is empty while the process runs.
	ExitStatus() string
}

// Environment keys a ServiceProcess sets on every child. ExecHost uses
// them to name the output archive.
const (
	EnvServiceName     = "CONCERT_SERVICE_NAME"
	EnvServiceInstance = "CONCERT_SERVICE_INSTANCE"
)

// SpawnError reports a child that could not be started.
type SpawnError struct {
	Argv []string
	Err  error
}

func (e *SpawnError) Error() string {
	if len(e.Argv) == 0 {
		return fmt.Sprintf("spawning service: %v", e.Err)
	}
	return fmt.Sprintf("spawning %q: %v", strings.Join(e.Argv, " "), e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }
