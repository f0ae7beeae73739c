// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package servicedef reads service definitions for the service
// manager. Definitions are authored as JSONC files (JSON extended with
// comments and trailing commas), one service per file:
//
//	// deploy/services/gazebo.jsonc
//	{
//	    "description": "Simulation world",
//	    "command": ["roslaunch", "concert_gazebo", "world.launch"],
//	    "environment": {"GAZEBO_MASTER_URI": "http://localhost:11345"},
//	}
//
// A file that omits "name" takes its name from the file name.
package servicedef

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tidwall/jsonc"

	"github.com/bureau-foundation/concert/lib/schema"
)

// Extensions lists the file extensions ReadDir loads.
var Extensions = []string{".jsonc", ".json"}

// Parse strips JSONC comments and trailing commas from data, then
// unmarshals the result into a ServiceDefinition. It does not
// validate.
func Parse(data []byte) (schema.ServiceDefinition, error) {
	stripped := jsonc.ToJSON(data)

	var definition schema.ServiceDefinition
	if err := json.Unmarshal(stripped, &definition); err != nil {
		return schema.ServiceDefinition{}, fmt.Errorf("parsing service definition: %w", err)
	}
	return definition, nil
}

// ReadFile reads, parses and validates one definition file.
func ReadFile(path string) (schema.ServiceDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return schema.ServiceDefinition{}, fmt.Errorf("reading %s: %w", path, err)
	}

	definition, err := Parse(data)
	if err != nil {
		return schema.ServiceDefinition{}, fmt.Errorf("%s: %w", path, err)
	}
	if definition.Name == "" {
		definition.Name = NameFromPath(path)
	}
	if issues := Validate(definition); len(issues) > 0 {
		return schema.ServiceDefinition{}, fmt.Errorf("%s: invalid service definition:\n  %s",
			path, strings.Join(issues, "\n  "))
	}
	return definition, nil
}

// ReadDir loads every definition file in directory, sorted by name.
// Every broken file is reported, not just the first.
func ReadDir(directory string) ([]schema.ServiceDefinition, error) {
	entries, err := os.ReadDir(directory)
	if err != nil {
		return nil, fmt.Errorf("reading service directory: %w", err)
	}

	var (
		definitions []schema.ServiceDefinition
		problems    []error
		seen        = make(map[string]string)
	)
	for _, entry := range entries {
		if entry.IsDir() || !hasDefinitionExtension(entry.Name()) {
			continue
		}
		path := filepath.Join(directory, entry.Name())
		definition, err := ReadFile(path)
		if err != nil {
			problems = append(problems, err)
			continue
		}
		if previous, exists := seen[definition.Name]; exists {
			problems = append(problems, fmt.Errorf("%s: service %q is already defined in %s",
				path, definition.Name, previous))
			continue
		}
		seen[definition.Name] = path
		definitions = append(definitions, definition)
	}
	if len(problems) > 0 {
		return nil, errors.Join(problems...)
	}

	sort.Slice(definitions, func(i, j int) bool { return definitions[i].Name < definitions[j].Name })
	return definitions, nil
}

func hasDefinitionExtension(name string) bool {
	for _, extension := range Extensions {
		if strings.HasSuffix(name, extension) {
			return true
		}
	}
	return false
}

// NameFromPath extracts a service name from a file path by stripping
// the directory and the extension: "services/gazebo.jsonc" returns
// "gazebo".
func NameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
