// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package servicedef

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/bureau-foundation/concert/lib/schema"
)

// namePattern matches service names. Names appear in file names, health
// service names and log attributes.
var namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]*$`)

// environmentKeyPattern matches portable environment variable names.
var environmentKeyPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate checks a definition for structural issues and returns a list
// of human-readable descriptions. An empty list means the definition is
// valid.
func Validate(definition schema.ServiceDefinition) []string {
	var issues []string

	if definition.Name == "" {
		issues = append(issues, "name is required")
	} else if !namePattern.MatchString(definition.Name) {
		issues = append(issues, fmt.Sprintf("name %q must be lowercase letters, digits, '.', '_' or '-'", definition.Name))
	}

	if len(definition.Command) > 0 && definition.Launcher != "" {
		issues = append(issues, "set either command or launcher, not both")
	}
	argv := Argv(definition)
	if len(argv) == 0 {
		issues = append(issues, "command (or launcher) is required")
	}
	for index, argument := range definition.Command {
		if strings.ContainsRune(argument, 0) {
			issues = append(issues, fmt.Sprintf("command[%d] contains a NUL byte", index))
		}
	}
	if len(definition.Command) > 0 && definition.Command[0] == "" {
		issues = append(issues, "command[0] must not be empty")
	}

	keys := make([]string, 0, len(definition.Environment))
	for key := range definition.Environment {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if !environmentKeyPattern.MatchString(key) {
			issues = append(issues, fmt.Sprintf("environment key %q is not a valid variable name", key))
		}
	}

	return issues
}

// Argv returns the argument vector of definition: Command when set,
// otherwise the split Launcher.
func Argv(definition schema.ServiceDefinition) []string {
	if len(definition.Command) > 0 {
		return definition.Command
	}
	return SplitLauncher(definition.Launcher)
}

// SplitLauncher splits a legacy launcher string on runs of whitespace.
// There is no quoting or escaping: `sh -c "a b"` yields four
// arguments. Definitions that need either should use command instead.
func SplitLauncher(launcher string) []string {
	return strings.Fields(launcher)
}
