// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the concertctl command tree.
package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/concert/cmd/concertctl/cli"
	"github.com/bureau-foundation/concert/lib/version"
)

// Root builds and returns the complete concertctl command tree.
func Root() *cli.Command {
	return &cli.Command{
		Name: "concertctl",
		Description: `concertctl: operate a concert.

Inspect and invite the clients tracked by concert-conductor, enable
and disable the services run by concert-service-manager, and check
daemon health. Daemon sockets are read from the configuration file
(--config or $CONCERT_CONFIG) unless --socket is given.`,
		Subcommands: []*cli.Command{
			clientsCommand(),
			servicesCommand(),
			healthCommand(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(_ context.Context, _ []string, _ *slog.Logger) error {
					fmt.Printf("concertctl %s\n", version.Full())
					return nil
				},
			},
		},
	}
}

// requireArg returns the single positional argument of command.
func requireArg(args []string, command, what string) (string, error) {
	switch len(args) {
	case 1:
		return args[0], nil
	case 0:
		return "", fmt.Errorf("%s requires a %s argument", command, what)
	default:
		return "", fmt.Errorf("%s takes one %s argument, got %d arguments", command, what, len(args))
	}
}
