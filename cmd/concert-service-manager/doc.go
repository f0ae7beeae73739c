// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Concert-service-manager supervises the locally launched services of
// one host: simulators, drivers, teleoperation bridges. Each service is
// described by a JSONC file in service_manager.definitions and runs as
// its own process group.
//
// # Startup
//
// The manager first reads the PID ledger left by its predecessor and
// kills any service process groups that are still alive. It then loads
// every definition, enables the ones marked enable_on_start, and starts
// listening on its control and health sockets. A definition directory
// with any invalid file refuses to start: every problem is reported.
//
// # Control socket
//
//   - list-services returns every service descriptor
//   - enable-service starts one service
//   - disable-service terminates one service, killing it if it has not
//     exited after escalate_after_polls × disable_poll_interval
//
// Enable and disable replies carry the fixed result messages
// ("Success", "Already enabled", "Terminated", "Force Killed", ...).
//
// # Shutdown
//
// On SIGINT or SIGTERM every enabled service is killed and the ledger
// is cleared.
package main
