// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/concert/lib/appmanager"
	"github.com/bureau-foundation/concert/lib/config"
	"github.com/bureau-foundation/concert/lib/gateway"
	"github.com/bureau-foundation/concert/lib/process"
	"github.com/bureau-foundation/concert/lib/schema"
	"github.com/bureau-foundation/concert/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var (
		configPath  string
		showVersion bool
	)
	flags := pflag.NewFlagSet("concert-client", pflag.ContinueOnError)
	flags.StringVar(&configPath, "config", "", "path to concert.yaml (default: $CONCERT_CONFIG)")
	flags.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flags.Parse(os.Args[1:]); err != nil {
		return err
	}

	if showVersion {
		fmt.Printf("concert-client %s\n", version.Info())
		return nil
	}

	cfg, err := config.LoadFlag(configPath)
	if err != nil {
		return err
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hostname, err := os.Hostname()
	if err != nil {
		return fmt.Errorf("reading hostname: %w", err)
	}

	socketPath := cfg.ClientSocketPath()
	if err := os.MkdirAll(filepath.Dir(socketPath), 0o755); err != nil {
		return fmt.Errorf("creating endpoint directory: %w", err)
	}

	endpoint := gateway.NewEndpoint(socketPath, logger.With("component", "endpoint"))
	manager, err := appmanager.New(endpoint, managerConfig(cfg.Client, hostname, logger))
	if err != nil {
		return err
	}

	logger.Info("client running",
		"endpoint", cfg.Client.EndpointName,
		"socket", socketPath,
		"local_only", cfg.Client.LocalOnly,
		"apps", len(cfg.Client.Apps),
	)

	if err := endpoint.Serve(ctx); err != nil {
		return err
	}
	logger.Info("shutting down", "remote_controller", manager.RemoteController())
	return nil
}

// managerConfig translates the client section of the configuration.
func managerConfig(client config.ClientConfig, hostname string, logger *slog.Logger) appmanager.Config {
	apps := make([]schema.AppDescriptor, 0, len(client.Apps))
	for _, app := range client.Apps {
		apps = append(apps, schema.AppDescriptor{
			Name:          app.Name,
			DisplayName:   app.DisplayName,
			Description:   app.Description,
			Compatibility: app.Compatibility,
		})
	}
	return appmanager.Config{
		Platform: schema.PlatformInfo{
			Name:     client.PlatformName,
			Version:  version.ProtocolVersion,
			Platform: runtime.GOOS,
			System:   runtime.GOARCH,
			Robot:    client.Robot,
			Hostname: hostname,
		},
		Apps:      apps,
		LocalOnly: client.LocalOnly,
		Whitelist: client.Whitelist,
		Blacklist: client.Blacklist,
		Logger:    logger,
	}
}
