// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for concert
// binaries.
//
// Configuration is loaded from a single file specified by either the
// CONCERT_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There are no fallbacks and no automatic file
// search.
//
// One file configures every binary on a host: the conductor section
// for concert-conductor, service_manager for concert-service-manager,
// and client for concert-client. The file may also carry
// environment-specific sections (development, staging, production)
// that override base values when [Config].Environment matches.
// Production never auto-invites clients unless its section turns
// auto_invite back on.
//
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${CONCERT_ROOT}, ${CONCERT_RUN}, ${CONCERT_STATE} and
// ${VAR:-default} patterns are expanded. No other environment
// variables override config values.
//
// Durations use Go syntax ("1.5s", "300ms").
package config
