// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/concert/cmd/concertctl/cli"
	"github.com/bureau-foundation/concert/lib/config"
	"github.com/bureau-foundation/concert/lib/gateway"
	"github.com/bureau-foundation/concert/lib/schema"
	"github.com/bureau-foundation/concert/lib/servicemanager"
)

func servicesCommand() *cli.Command {
	return &cli.Command{
		Name:    "services",
		Summary: "List, enable and disable locally launched services",
		Description: `Work with the services supervised by concert-service-manager.

Disabling a service sends SIGTERM to its process group and waits; a
service still running after the configured number of polls is killed.`,
		Subcommands: []*cli.Command{
			servicesListCommand(),
			servicesToggleCommand(true),
			servicesToggleCommand(false),
			servicesLogsCommand(),
		},
	}
}

type servicesListParams struct {
	cli.JSONOutput
	connectionParams
}

func servicesListCommand() *cli.Command {
	var params servicesListParams
	return &cli.Command{
		Name:    "list",
		Summary: "List services and their state",
		Usage:   "concertctl services list [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("list", &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			client, err := params.client(serviceManagerSocket, defaultCallTimeout)
			if err != nil {
				return err
			}
			var response schema.ListServicesResponse
			if err := client.Call(ctx, schema.ActionListServices, nil, &response); err != nil {
				return err
			}
			if done, err := params.EmitJSON(os.Stdout, response.Services); done {
				return err
			}
			return renderServices(os.Stdout, response.Services, time.Now())
		},
	}
}

func renderServices(w io.Writer, services []schema.ServiceDescriptor, now time.Time) error {
	if len(services) == 0 {
		_, err := fmt.Fprintln(w, "no services")
		return err
	}
	table := cli.NewTable(w, "NAME", "STATE", "PID", "SINCE", "COMMAND").StatusColumn(1)
	for _, service := range services {
		state, pid, since := "disabled", "-", "-"
		switch {
		case service.Enabled:
			state = "enabled"
			pid = fmt.Sprint(service.PID)
			since = formatAge(now.Sub(service.StartedAt))
		case !service.StoppedAt.IsZero():
			state = "exited: " + service.ExitStatus
			since = formatAge(now.Sub(service.StoppedAt))
		}
		table.Row(service.Name, state, pid, since, strings.Join(service.Command, " "))
	}
	return table.Render()
}

// formatAge renders a duration at the precision an operator cares
// about: seconds under a minute, minutes under an hour, then hours.
func formatAge(age time.Duration) string {
	switch {
	case age < time.Minute:
		return fmt.Sprintf("%ds", int(age.Seconds()))
	case age < time.Hour:
		return fmt.Sprintf("%dm", int(age.Minutes()))
	default:
		return fmt.Sprintf("%dh%dm", int(age.Hours()), int(age.Minutes())%60)
	}
}

type servicesToggleParams struct {
	cli.JSONOutput
	connectionParams
	Timeout time.Duration `json:"-" flag:"timeout" desc:"how long to wait for the service manager (default: long enough to escalate to a kill)"`
}

func servicesToggleCommand(enable bool) *cli.Command {
	var params servicesToggleParams
	name, action, summary := "disable", schema.ActionDisableService, "Stop a service"
	if enable {
		name, action, summary = "enable", schema.ActionEnableService, "Start a service"
	}
	return &cli.Command{
		Name:    name,
		Summary: summary,
		Usage:   "concertctl services " + name + " <service> [flags]",
		Examples: []cli.Example{
			{Description: summary, Command: "concertctl services " + name + " gazebo"},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams(name, &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			service, err := requireArg(args, "services "+name, "service")
			if err != nil {
				return err
			}
			socketPath, timeout := params.SocketPath, params.Timeout
			if socketPath == "" {
				cfg, err := config.LoadFlag(params.ConfigPath)
				if err != nil {
					return err
				}
				socketPath = cfg.ServiceManager.SocketPath
				if timeout == 0 {
					timeout = escalationWindow(cfg.ServiceManager)
				}
			}
			if timeout == 0 {
				timeout = escalationWindow(config.ServiceManagerConfig{})
			}

			var response schema.ServiceResponse
			if err := gateway.NewClient(socketPath, timeout).Call(ctx, action, schema.ServiceRequest{Name: service}, &response); err != nil {
				return err
			}
			logger.Debug("service result", "service", service, "result", response.Result, "message", response.Message)
			if done, err := params.EmitJSON(os.Stdout, response); done {
				if err == nil && !response.Result {
					return &cli.ExitError{Code: 1}
				}
				return err
			}
			if _, err := fmt.Printf("%s: %s\n", service, response.Message); err != nil {
				return err
			}
			if !response.Result {
				return &cli.ExitError{Code: 1}
			}
			return nil
		},
	}
}

// escalationWindow is the longest a disable can take: every poll
// before the kill, plus slack for the call itself. Zero fields take the
// service manager's defaults.
func escalationWindow(managerConfig config.ServiceManagerConfig) time.Duration {
	interval := managerConfig.DisablePollInterval
	if interval <= 0 {
		interval = servicemanager.DefaultPollInterval
	}
	polls := managerConfig.EscalateAfterPolls
	if polls <= 0 {
		polls = servicemanager.DefaultEscalateAfterPolls
	}
	return time.Duration(polls)*interval + defaultCallTimeout
}

type servicesLogsParams struct {
	ConfigPath string `json:"-" flag:"config" desc:"path to concert.yaml (default: $CONCERT_CONFIG)"`
	OutputDir  string `json:"-" flag:"output-dir" desc:"archive directory (overrides service_manager.output_dir)"`
	Instance   string `json:"-" flag:"instance" desc:"instance ID to show (default: the most recent)"`
	All        bool   `json:"-" flag:"all" desc:"show every archived instance, oldest first"`
}

func servicesLogsCommand() *cli.Command {
	var params servicesLogsParams
	return &cli.Command{
		Name:    "logs",
		Summary: "Print the archived output of a service",
		Usage:   "concertctl services logs <service> [flags]",
		Description: `Print the archived stdout and stderr of a service.

The service manager compresses each enabled period's output into
<output_dir>/<service>-<instance>.log.zst. This command reads those
files directly, so it works while the manager is down.`,
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("logs", &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			service, err := requireArg(args, "services logs", "service")
			if err != nil {
				return err
			}
			directory := params.OutputDir
			if directory == "" {
				cfg, err := config.LoadFlag(params.ConfigPath)
				if err != nil {
					return err
				}
				directory = cfg.ServiceManager.OutputDir
			}
			if directory == "" {
				return fmt.Errorf("service output archiving is disabled (service_manager.output_dir is empty)")
			}
			return printLogs(os.Stdout, directory, service, params.Instance, params.All)
		},
	}
}

func printLogs(w io.Writer, directory, service, instance string, all bool) error {
	var paths []string
	if instance != "" {
		paths = []string{servicemanager.ArchivePath(directory, service, instance)}
	} else {
		archives, err := servicemanager.ListArchives(directory, service)
		if err != nil {
			return fmt.Errorf("listing archives: %w", err)
		}
		if len(archives) == 0 {
			return fmt.Errorf("no archived output for service %q in %s", service, directory)
		}
		paths = archives
		if !all {
			paths = archives[len(archives)-1:]
		}
	}

	for _, path := range paths {
		data, err := servicemanager.ReadArchive(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		if all {
			if _, err := fmt.Fprintf(w, "==> %s <==\n", path); err != nil {
				return err
			}
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
	}
	return nil
}
