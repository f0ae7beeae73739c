// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package servicedef

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/bureau-foundation/concert/lib/schema"
)

func TestParseJSONC(t *testing.T) {
	t.Parallel()

	data := []byte(`{
		// Simulation world.
		"name": "gazebo",
		"command": ["roslaunch", "concert_gazebo", "world.launch",],
		"environment": {"GAZEBO_MASTER_URI": "http://localhost:11345"},
		"enable_on_start": true,
	}`)
	definition, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if definition.Name != "gazebo" {
		t.Errorf("Name = %q, want gazebo", definition.Name)
	}
	if !slices.Equal(definition.Command, []string{"roslaunch", "concert_gazebo", "world.launch"}) {
		t.Errorf("Command = %v", definition.Command)
	}
	if definition.Environment["GAZEBO_MASTER_URI"] != "http://localhost:11345" {
		t.Errorf("Environment = %v", definition.Environment)
	}
	if !definition.EnableOnStart {
		t.Error("EnableOnStart = false, want true")
	}
}

func TestParseMalformed(t *testing.T) {
	t.Parallel()

	if _, err := Parse([]byte(`{"name": `)); err == nil {
		t.Fatal("Parse accepted truncated input")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		definition schema.ServiceDefinition
		wantIssue  string
	}{
		{
			name:       "valid command",
			definition: schema.ServiceDefinition{Name: "gazebo", Command: []string{"gzserver"}},
		},
		{
			name:       "valid launcher",
			definition: schema.ServiceDefinition{Name: "gazebo", Launcher: "run.sh --flag"},
		},
		{
			name:       "missing name",
			definition: schema.ServiceDefinition{Command: []string{"gzserver"}},
			wantIssue:  "name is required",
		},
		{
			name:       "bad name",
			definition: schema.ServiceDefinition{Name: "Gazebo World", Command: []string{"gzserver"}},
			wantIssue:  "must be lowercase",
		},
		{
			name:       "no command",
			definition: schema.ServiceDefinition{Name: "gazebo"},
			wantIssue:  "command (or launcher) is required",
		},
		{
			name:       "whitespace launcher",
			definition: schema.ServiceDefinition{Name: "gazebo", Launcher: "   "},
			wantIssue:  "command (or launcher) is required",
		},
		{
			name: "both forms",
			definition: schema.ServiceDefinition{
				Name: "gazebo", Command: []string{"gzserver"}, Launcher: "gzserver",
			},
			wantIssue: "not both",
		},
		{
			name:       "empty argv0",
			definition: schema.ServiceDefinition{Name: "gazebo", Command: []string{"", "x"}},
			wantIssue:  "command[0] must not be empty",
		},
		{
			name: "bad environment key",
			definition: schema.ServiceDefinition{
				Name: "gazebo", Command: []string{"gzserver"},
				Environment: map[string]string{"1BAD": "x"},
			},
			wantIssue: `environment key "1BAD"`,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			issues := Validate(test.definition)
			if test.wantIssue == "" {
				if len(issues) > 0 {
					t.Fatalf("Validate() = %v, want no issues", issues)
				}
				return
			}
			for _, issue := range issues {
				if strings.Contains(issue, test.wantIssue) {
					return
				}
			}
			t.Errorf("Validate() = %v, want an issue containing %q", issues, test.wantIssue)
		})
	}
}

func TestArgv(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		definition schema.ServiceDefinition
		want       []string
	}{
		{"command", schema.ServiceDefinition{Command: []string{"a", "b c"}}, []string{"a", "b c"}},
		{"launcher", schema.ServiceDefinition{Launcher: "run.sh  --flag\tvalue"}, []string{"run.sh", "--flag", "value"}},
		{"launcher has no quoting", schema.ServiceDefinition{Launcher: `sh -c "a b"`}, []string{"sh", "-c", `"a`, `b"`}},
		{"empty", schema.ServiceDefinition{}, nil},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			if got := Argv(test.definition); !slices.Equal(got, test.want) {
				t.Errorf("Argv() = %q, want %q", got, test.want)
			}
		})
	}
}

func TestNameFromPath(t *testing.T) {
	t.Parallel()

	for path, want := range map[string]string{
		"services/gazebo.jsonc":    "gazebo",
		"/etc/concert/teleop.json": "teleop",
		"bare":                     "bare",
	} {
		if got := NameFromPath(path); got != want {
			t.Errorf("NameFromPath(%q) = %q, want %q", path, got, want)
		}
	}
}

func writeFile(t *testing.T, directory, name, content string) string {
	t.Helper()
	path := filepath.Join(directory, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadFileNameFromPath(t *testing.T) {
	t.Parallel()

	directory := t.TempDir()
	path := writeFile(t, directory, "teleop.jsonc", `{"launcher": "teleop.sh"}`)

	definition, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if definition.Name != "teleop" {
		t.Errorf("Name = %q, want teleop", definition.Name)
	}
}

func TestReadFileInvalid(t *testing.T) {
	t.Parallel()

	directory := t.TempDir()
	path := writeFile(t, directory, "broken.jsonc", `{"name": "broken"}`)

	_, err := ReadFile(path)
	if err == nil {
		t.Fatal("ReadFile accepted a definition with no command")
	}
	if !strings.Contains(err.Error(), path) {
		t.Errorf("error %q does not name the file", err)
	}
}

func TestReadDir(t *testing.T) {
	t.Parallel()

	directory := t.TempDir()
	writeFile(t, directory, "zeta.jsonc", `{"command": ["zeta"]}`)
	writeFile(t, directory, "alpha.json", `{"command": ["alpha"]}`)
	writeFile(t, directory, "README.md", "not a definition")
	if err := os.Mkdir(filepath.Join(directory, "nested.jsonc"), 0o755); err != nil {
		t.Fatal(err)
	}

	definitions, err := ReadDir(directory)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	var names []string
	for _, definition := range definitions {
		names = append(names, definition.Name)
	}
	if !slices.Equal(names, []string{"alpha", "zeta"}) {
		t.Errorf("names = %v, want [alpha zeta]", names)
	}
}

func TestReadDirReportsEveryProblem(t *testing.T) {
	t.Parallel()

	directory := t.TempDir()
	writeFile(t, directory, "a.jsonc", `{"name": "same", "command": ["a"]}`)
	writeFile(t, directory, "b.jsonc", `{"name": "same", "command": ["b"]}`)
	writeFile(t, directory, "c.jsonc", `{"name": "c"}`)

	_, err := ReadDir(directory)
	if err == nil {
		t.Fatal("ReadDir succeeded with broken definitions")
	}
	message := err.Error()
	if !strings.Contains(message, "already defined") {
		t.Errorf("error %q does not report the duplicate", message)
	}
	if !strings.Contains(message, "c.jsonc") {
		t.Errorf("error %q does not report the invalid file", message)
	}
}
