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

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/concert/cmd/concertctl/cli"
	"github.com/bureau-foundation/concert/lib/schema"
)

func clientsCommand() *cli.Command {
	return &cli.Command{
		Name:    "clients",
		Summary: "List, invite and uninvite concert clients",
		Description: `Work with the clients tracked by concert-conductor.

A client is invited when this conductor holds it, blocked when it
refused an invitation on policy grounds, and invited-elsewhere when
another conductor holds it.`,
		Subcommands: []*cli.Command{
			clientsListCommand(),
			clientsInviteCommand(false),
			clientsInviteCommand(true),
		},
	}
}

type clientsListParams struct {
	cli.JSONOutput
	connectionParams
}

func clientsListCommand() *cli.Command {
	var params clientsListParams
	return &cli.Command{
		Name:    "list",
		Summary: "List tracked clients",
		Usage:   "concertctl clients list [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("list", &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			client, err := params.client(conductorSocket, defaultCallTimeout)
			if err != nil {
				return err
			}
			var response schema.ListClientsResponse
			if err := client.Call(ctx, schema.ActionListClients, nil, &response); err != nil {
				return err
			}
			if done, err := params.EmitJSON(os.Stdout, response.Clients); done {
				return err
			}
			return renderClients(os.Stdout, response.Clients)
		},
	}
}

// clientState summarizes the flags of a client status in one word.
func clientState(status schema.ClientStatus) string {
	switch {
	case status.Invited && status.ReadyForAction:
		return "ready"
	case status.Invited:
		return "invited"
	case status.Blocked:
		return "blocked"
	case status.InvitedElsewhere:
		return "invited-elsewhere"
	default:
		return string(status.Availability)
	}
}

func renderClients(w io.Writer, clients []schema.ClientStatus) error {
	if len(clients) == 0 {
		_, err := fmt.Fprintln(w, "no clients")
		return err
	}
	table := cli.NewTable(w, "NAME", "ENDPOINT", "PLATFORM", "STATE", "APP", "APPS").StatusColumn(3)
	for _, status := range clients {
		platform := status.Platform.Name
		if status.Platform.Robot != "" {
			platform += "/" + status.Platform.Robot
		}
		if status.Local {
			platform += " (local)"
		}
		apps := make([]string, len(status.Apps))
		for index, app := range status.Apps {
			apps[index] = app.Name
		}
		table.Row(status.DisplayName, status.EndpointName, platform, clientState(status), status.AppStatus, strings.Join(apps, ","))
	}
	return table.Render()
}

type clientsInviteParams struct {
	cli.JSONOutput
	connectionParams
}

func clientsInviteCommand(cancel bool) *cli.Command {
	var params clientsInviteParams
	name, action, summary := "invite", schema.ActionInviteClient, "Invite a client"
	if cancel {
		name, action, summary = "uninvite", schema.ActionUninviteClient, "Release a client"
	}
	return &cli.Command{
		Name:    name,
		Summary: summary,
		Usage:   "concertctl clients " + name + " <endpoint> [flags]",
		Examples: []cli.Example{
			{Description: summary + " by endpoint name", Command: "concertctl clients " + name + " turtlebot-a"},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams(name, &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			endpoint, err := requireArg(args, "clients "+name, "endpoint")
			if err != nil {
				return err
			}
			client, err := params.client(conductorSocket, defaultCallTimeout)
			if err != nil {
				return err
			}
			var response schema.InviteClientResponse
			if err := client.Call(ctx, action, schema.ClientRequest{Endpoint: endpoint}, &response); err != nil {
				return err
			}
			logger.Debug("invite result", "endpoint", endpoint, "outcome", response.Outcome, "code", response.Code.String())
			if done, err := params.EmitJSON(os.Stdout, response); done {
				if err == nil && !response.Success {
					return &cli.ExitError{Code: 1}
				}
				return err
			}
			if err := renderInvite(os.Stdout, endpoint, response); err != nil {
				return err
			}
			if !response.Success {
				return &cli.ExitError{Code: 1}
			}
			return nil
		},
	}
}

func renderInvite(w io.Writer, endpoint string, response schema.InviteClientResponse) error {
	line := fmt.Sprintf("%s: %s", endpoint, response.Outcome)
	if response.Code != schema.CodeSuccess {
		line += fmt.Sprintf(" (%s)", response.Code)
	}
	if response.Message != "" {
		line += ": " + response.Message
	}
	if response.Success && response.Outcome == "invited" {
		if response.ReadyForAction {
			line += ", ready for action"
		} else {
			line += ", not yet ready for action"
		}
	}
	_, err := fmt.Fprintln(w, line)
	return err
}
