// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/concert/cmd/concertctl/cli"
	"github.com/bureau-foundation/concert/lib/clock"
	"github.com/bureau-foundation/concert/lib/config"
	"github.com/bureau-foundation/concert/lib/health"
)

// healthTargets maps a daemon name to its health socket.
var healthTargets = map[string]func(*config.Config) string{
	"conductor":       func(cfg *config.Config) string { return cfg.Conductor.HealthSocket },
	"service-manager": func(cfg *config.Config) string { return cfg.ServiceManager.HealthSocket },
}

type healthParams struct {
	cli.JSONOutput
	ConfigPath string        `json:"-" flag:"config" desc:"path to concert.yaml (default: $CONCERT_CONFIG)"`
	SocketPath string        `json:"-" flag:"socket" desc:"health socket (overrides the configuration)"`
	Wait       bool          `json:"-" flag:"wait" desc:"poll until the service reports SERVING"`
	Timeout    time.Duration `json:"-" flag:"timeout" default:"5s" desc:"give up after this long"`
}

type healthResult struct {
	Daemon  string `json:"daemon"`
	Service string `json:"service"`
	Status  string `json:"status"`
}

func healthCommand() *cli.Command {
	var params healthParams
	return &cli.Command{
		Name:    "health",
		Summary: "Check daemon or service health",
		Usage:   "concertctl health <conductor|service-manager> [service] [flags]",
		Description: `Query the gRPC health service of a daemon.

Without a service name the daemon's own status is reported. The
service manager reports each service by name (SERVING while enabled);
the conductor reports each client by endpoint name (SERVING while
invited and ready for action). Exits 1 unless the status is SERVING.`,
		Examples: []cli.Example{
			{Description: "Check the conductor", Command: "concertctl health conductor"},
			{Description: "Wait up to a minute for gazebo to start", Command: "concertctl health service-manager gazebo --wait --timeout 1m"},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("health", &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) < 1 || len(args) > 2 {
				return fmt.Errorf("health takes a daemon name and an optional service name")
			}
			daemon, service := args[0], health.Overall
			if len(args) == 2 {
				service = args[1]
			}
			pick, ok := healthTargets[daemon]
			if !ok {
				return fmt.Errorf("unknown daemon %q (want conductor or service-manager)", daemon)
			}
			socketPath := params.SocketPath
			if socketPath == "" {
				cfg, err := config.LoadFlag(params.ConfigPath)
				if err != nil {
					return err
				}
				socketPath = pick(cfg)
			}

			conn, err := health.Dial(socketPath)
			if err != nil {
				return err
			}
			defer conn.Close()

			ctx, cancel := context.WithTimeout(ctx, params.Timeout)
			defer cancel()

			status := "SERVING"
			if params.Wait {
				if err := health.WaitForServing(ctx, conn, service, clock.Real()); err != nil {
					logger.Debug("wait for serving failed", "error", err)
					status = "NOT_SERVING"
				}
			} else {
				status, err = health.Check(ctx, conn, service)
				if err != nil {
					return err
				}
			}

			if done, err := params.EmitJSON(os.Stdout, healthResult{Daemon: daemon, Service: service, Status: status}); done {
				if err != nil {
					return err
				}
			} else {
				target := daemon
				if service != health.Overall {
					target += "/" + service
				}
				table := cli.NewTable(os.Stdout, "TARGET", "STATUS").StatusColumn(1)
				table.Row(target, status)
				if err := table.Render(); err != nil {
					return err
				}
			}
			if status != "SERVING" {
				return &cli.ExitError{Code: 1}
			}
			return nil
		},
	}
}
