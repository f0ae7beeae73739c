// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/pflag"
)

// Command is one node of the concertctl command tree. A node either
// groups Subcommands or does work in Run.
type Command struct {
	// Name is what the operator types ("services", "enable").
	Name string

	// Summary is the one line shown in the parent's command list.
	Summary string

	// Description is the long form shown by the command's own --help.
	Description string

	// Usage overrides the synthesized usage line.
	Usage string

	Examples []Example

	// Flags builds the command's flag set. It is called once per parse
	// and once per help render, so it must return a fresh set bound to
	// the same parameter struct each time.
	Flags func() *pflag.FlagSet

	Subcommands []*Command

	// Run receives the positional arguments left after flag parsing and
	// a logger tagged with the command path. A command with both Run
	// and Subcommands runs when the first argument names no subcommand.
	Run func(ctx context.Context, args []string, logger *slog.Logger) error

	parent *Command
}

// Example is one annotated command line in help output.
type Example struct {
	Description string
	Command     string
}

// errSubcommandRequired is returned when a group is invoked without
// naming one of its subcommands.
var errSubcommandRequired = errors.New("subcommand required")

// Execute resolves args against the tree rooted at c and runs the
// selected command.
func (c *Command) Execute(ctx context.Context, args []string) error {
	if len(args) > 0 && isHelpFlag(args[0]) {
		c.PrintHelp(os.Stderr)
		return nil
	}

	if len(args) > 0 && len(c.Subcommands) > 0 && !strings.HasPrefix(args[0], "-") {
		if sub := c.subcommand(args[0]); sub != nil {
			sub.parent = c
			return sub.Execute(ctx, args[1:])
		}
		if c.Run == nil {
			hint := ""
			if suggestion := suggestCommand(args[0], c.Subcommands); suggestion != "" {
				hint = fmt.Sprintf(" (did you mean %q?)", suggestion)
			}
			return c.usageError("unknown command %q%s", args[0], hint)
		}
	}

	if c.Run == nil {
		c.PrintHelp(os.Stderr)
		if len(c.Subcommands) == 0 {
			return fmt.Errorf("no action defined for %q", c.fullName())
		}
		if len(args) > 0 {
			return fmt.Errorf("%w (got flag %q)", errSubcommandRequired, args[0])
		}
		return errSubcommandRequired
	}

	positional, err := c.parseFlags(args)
	if err != nil {
		return err
	}
	return c.Run(ctx, positional, NewCommandLogger().With("command", c.path()))
}

// parseFlags parses args against the command's flags and returns the
// positional arguments.
func (c *Command) parseFlags(args []string) ([]string, error) {
	if c.Flags == nil {
		return args, nil
	}
	flagSet := c.Flags()
	flagSet.SetOutput(io.Discard)
	if err := flagSet.Parse(args); err != nil {
		message := err.Error()
		if strings.HasPrefix(message, "unknown flag") || strings.HasPrefix(message, "unknown shorthand flag") {
			// The failed parse may have written into the bound struct,
			// so suggestions come from a fresh set.
			if suggestion := suggestFlag(args, c.Flags()); suggestion != "" {
				return nil, c.usageError("%s (did you mean %s?)", message, suggestion)
			}
		}
		return nil, c.usageError("%s", message)
	}
	return flagSet.Args(), nil
}

func (c *Command) subcommand(name string) *Command {
	for _, sub := range c.Subcommands {
		if sub.Name == name {
			return sub
		}
	}
	return nil
}

// usageError formats a parse failure followed by a pointer to --help.
func (c *Command) usageError(format string, args ...any) error {
	return fmt.Errorf(format+"\n\nRun '%s --help' for usage.", append(args, c.fullName())...)
}

// PrintHelp writes the command's help to w. Section headings are bold
// when w is a color terminal.
func (c *Command) PrintHelp(w io.Writer) {
	renderer := lipgloss.NewRenderer(w, termenv.WithProfile(ColorProfile(w)))
	heading := renderer.NewStyle().Bold(true)
	section := func(title string) {
		fmt.Fprintf(w, "\n%s\n", heading.Render(title+":"))
	}

	name := c.fullName()
	switch {
	case c.Description != "":
		fmt.Fprintln(w, c.Description)
	case c.Summary != "":
		fmt.Fprintln(w, c.Summary)
	}

	usage := c.Usage
	if usage == "" {
		usage = name + " [flags]"
		if len(c.Subcommands) > 0 {
			usage = name + " <command> [flags]"
		}
	}
	section("Usage")
	fmt.Fprintf(w, "  %s\n", usage)

	if len(c.Subcommands) > 0 {
		section("Commands")
		table := NewTable(w)
		for _, sub := range c.Subcommands {
			table.Row("  "+sub.Name, " "+sub.Summary)
		}
		table.Render()
	}

	if c.Flags != nil {
		if usage := c.Flags().FlagUsages(); usage != "" {
			section("Flags")
			fmt.Fprint(w, usage)
		}
	}

	if len(c.Examples) > 0 {
		section("Examples")
		for index, example := range c.Examples {
			if index > 0 {
				fmt.Fprintln(w)
			}
			if example.Description != "" {
				fmt.Fprintf(w, "  # %s\n", example.Description)
			}
			fmt.Fprintf(w, "  %s\n", example.Command)
		}
	}

	if len(c.Subcommands) > 0 {
		fmt.Fprintf(w, "\nRun '%s <command> --help' for more information on a command.\n", name)
	}
}

// fullName is the command line that reaches c ("concertctl services
// enable").
func (c *Command) fullName() string {
	if c.parent == nil {
		return c.Name
	}
	return c.parent.fullName() + " " + c.Name
}

// path is the slash-joined command path below the root
// ("services/enable"). The root itself has an empty path.
func (c *Command) path() string {
	if c.parent == nil {
		return ""
	}
	if parent := c.parent.path(); parent != "" {
		return parent + "/" + c.Name
	}
	return c.Name
}

func isHelpFlag(arg string) bool {
	switch arg {
	case "-h", "--help", "help":
		return true
	}
	return false
}
