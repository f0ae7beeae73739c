// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package servicemanager supervises the services a concert host runs
// locally.
//
// A [ServiceProcess] owns one child at a time. Enable spawns it on a
// worker goroutine and returns once the child is running and the
// OnChange callback has seen the enabled edge. Disable sends SIGTERM to
// the child's process group and waits in poll intervals on the injected
// clock; after the escalation threshold it sends SIGKILL. The returned
// message tells clean termination ("Terminated") from forced
// termination ("Force Killed"). Close is the backstop that kills a
// live child and joins the worker on every exit path.
//
// Processes are launched through a [ProcessHost]. [ExecHost] is the
// os/exec implementation; it places each child in its own process
// group and can archive combined output as zstd.
//
// A [Manager] owns the ServiceProcesses of one host. It publishes each
// service's state to a gRPC health server and records running children
// in a CBOR ledger, which [ReapOrphans] reads at the next start to kill
// children a crashed manager left behind.
package servicemanager
