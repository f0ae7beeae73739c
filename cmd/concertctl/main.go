// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Concertctl is the operator command line for a concert: it lists and
// invites clients through concert-conductor, enables and disables
// services through concert-service-manager, reads archived service
// output and checks daemon health.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/bureau-foundation/concert/cmd/concertctl/commands"
	"github.com/bureau-foundation/concert/lib/process"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return commands.Root().Execute(ctx, os.Args[1:])
}
