// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"time"

	"github.com/bureau-foundation/concert/lib/config"
	"github.com/bureau-foundation/concert/lib/gateway"
)

// defaultCallTimeout bounds control socket calls that do not wait on a
// child process.
const defaultCallTimeout = 10 * time.Second

// connectionParams locate a daemon: an explicit socket, or the
// configuration that names it.
type connectionParams struct {
	ConfigPath string `json:"-" flag:"config" desc:"path to concert.yaml (default: $CONCERT_CONFIG)"`
	SocketPath string `json:"-" flag:"socket" desc:"daemon control socket (overrides the configuration)"`
}

// socket returns --socket when set, otherwise pick applied to the
// loaded configuration.
func (p *connectionParams) socket(pick func(*config.Config) string) (string, error) {
	if p.SocketPath != "" {
		return p.SocketPath, nil
	}
	cfg, err := config.LoadFlag(p.ConfigPath)
	if err != nil {
		return "", err
	}
	return pick(cfg), nil
}

// client returns a control socket client for the daemon chosen by
// pick.
func (p *connectionParams) client(pick func(*config.Config) string, timeout time.Duration) (*gateway.Client, error) {
	socketPath, err := p.socket(pick)
	if err != nil {
		return nil, err
	}
	return gateway.NewClient(socketPath, timeout), nil
}

func conductorSocket(cfg *config.Config) string      { return cfg.Conductor.SocketPath }
func serviceManagerSocket(cfg *config.Config) string { return cfg.ServiceManager.SocketPath }
