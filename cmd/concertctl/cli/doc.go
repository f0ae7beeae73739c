// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the small command framework behind concertctl.
//
// A [Command] has a name, help text, an optional pflag set and either a
// Run function or subcommands. [Command.Execute] dispatches on the
// first positional argument, parses flags, builds a scoped logger and
// calls Run. Unknown commands and flags get "did you mean" suggestions.
//
// Parameters are declared as tagged structs and bound with
// [FlagsFromParams]. Commands that print data embed [JSONOutput] for a
// --json mode and otherwise render with [Table].
package cli
