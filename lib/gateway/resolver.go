// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Resolver maps endpoint names to socket paths and enumerates the
// endpoints currently advertised.
type Resolver interface {
	Resolve(endpoint string) (string, error)
	Endpoints() ([]string, error)
}

// SocketSuffix is the file suffix DirectoryResolver expects.
const SocketSuffix = ".sock"

// DirectoryResolver treats every "<name>.sock" file in Directory as the
// endpoint "<name>". Clients advertise themselves by listening there.
type DirectoryResolver struct {
	Directory string
}

// Resolve returns the socket path for endpoint. The socket need not
// exist yet.
func (r DirectoryResolver) Resolve(endpoint string) (string, error) {
	if endpoint == "" || strings.ContainsRune(endpoint, filepath.Separator) || endpoint == "." || endpoint == ".." {
		return "", fmt.Errorf("invalid endpoint name %q", endpoint)
	}
	return filepath.Join(r.Directory, endpoint+SocketSuffix), nil
}

// Endpoints lists the sockets present in Directory, sorted.
func (r DirectoryResolver) Endpoints() ([]string, error) {
	entries, err := os.ReadDir(r.Directory)
	if err != nil {
		return nil, fmt.Errorf("listing endpoint directory %s: %w", r.Directory, err)
	}
	var endpoints []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.Type()&os.ModeSocket == 0 || !strings.HasSuffix(name, SocketSuffix) {
			continue
		}
		endpoints = append(endpoints, strings.TrimSuffix(name, SocketSuffix))
	}
	sort.Strings(endpoints)
	return endpoints, nil
}

// StaticResolver is a fixed endpoint-to-socket map.
type StaticResolver map[string]string

func (r StaticResolver) Resolve(endpoint string) (string, error) {
	path, ok := r[endpoint]
	if !ok {
		return "", fmt.Errorf("unknown endpoint %q", endpoint)
	}
	return path, nil
}

func (r StaticResolver) Endpoints() ([]string, error) {
	endpoints := make([]string, 0, len(r))
	for endpoint := range r {
		endpoints = append(endpoints, endpoint)
	}
	sort.Strings(endpoints)
	return endpoints, nil
}
