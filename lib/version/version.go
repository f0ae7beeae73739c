// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// ProtocolVersion is the concert protocol revision. A conductor refuses
// clients whose platform_info reports anything else.
const ProtocolVersion = "acdc"

// Set with -ldflags -X. Builds without them fall back to the VCS stamp
// the Go toolchain embeds.
var (
	Version   = "0.1.0-dev"
	GitCommit = ""
	GitDirty  = ""
	BuildTime = ""
)

// Info returns the one-line version printed by --version:
// "0.1.0 (abc1234-dirty, 2026-05-01T12:00:00Z)".
func Info() string {
	commit, dirty, built := stamp()
	if dirty {
		commit += "-dirty"
	}
	return fmt.Sprintf("%s (%s, %s)", Version, commit, built)
}

// Full adds the protocol revision and toolchain to [Info].
func Full() string {
	return fmt.Sprintf("%s\n  Protocol: %s\n  Go: %s\n  Platform: %s/%s",
		Info(), ProtocolVersion, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// stamp resolves the commit, dirty flag and build time, preferring
// linker-injected values.
func stamp() (commit string, dirty bool, built string) {
	commit, built = GitCommit, BuildTime
	dirty = GitDirty == "true"
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				if commit == "" {
					commit = setting.Value[:min(len(setting.Value), 7)]
				}
			case "vcs.time":
				if built == "" {
					built = setting.Value
				}
			case "vcs.modified":
				if GitDirty == "" {
					dirty = setting.Value == "true"
				}
			}
		}
	}
	if commit == "" {
		commit = "unknown"
	}
	if built == "" {
		built = "unknown"
	}
	return commit, dirty, built
}
