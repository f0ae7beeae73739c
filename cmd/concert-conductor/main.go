// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/concert/lib/clock"
	"github.com/bureau-foundation/concert/lib/conductor"
	"github.com/bureau-foundation/concert/lib/config"
	"github.com/bureau-foundation/concert/lib/gateway"
	"github.com/bureau-foundation/concert/lib/health"
	"github.com/bureau-foundation/concert/lib/process"
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
	flags := pflag.NewFlagSet("concert-conductor", pflag.ContinueOnError)
	flags.StringVar(&configPath, "config", "", "path to concert.yaml (default: $CONCERT_CONFIG)")
	flags.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flags.Parse(os.Args[1:]); err != nil {
		return err
	}

	if showVersion {
		fmt.Printf("concert-conductor %s\n", version.Info())
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

	clk := clock.Real()
	conductorConfig := cfg.Conductor
	resolver := gateway.DirectoryResolver{Directory: conductorConfig.EndpointDir}
	channel := gateway.New(gateway.Config{
		Resolver: resolver,
		Clock:    clk,
		Logger:   logger.With("component", "gateway"),
	})

	healthServer := health.NewServer(conductorConfig.HealthSocket, logger)
	service := &conductorService{
		controllerID: conductorConfig.ControllerID,
		health:       healthServer,
		logger:       logger,
	}

	roster, err := conductor.NewRoster(conductor.RosterConfig{
		ControllerID:    conductorConfig.ControllerID,
		ExpectedVersion: conductorConfig.ExpectedVersion,
		LocalHostname:   hostname,
		Channel:         channel,
		Lister:          resolver,
		Clock:           clk,
		Logger:          logger,
		Timeouts: conductor.Timeouts{
			Handshake: conductorConfig.Timeouts.Handshake,
			AppList:   conductorConfig.Timeouts.AppList,
			Status:    conductorConfig.Timeouts.Status,
			Invite:    conductorConfig.Timeouts.Invite,
			Probe:     conductorConfig.Timeouts.Probe,
		},
		RefreshInterval: conductorConfig.RefreshInterval,
		AutoInvite:      conductorConfig.AutoInvite,
		OnEvent:         service.onEvent,
	})
	if err != nil {
		return err
	}
	service.roster = roster

	control := gateway.NewEndpoint(conductorConfig.SocketPath, logger.With("component", "control"))
	service.registerActions(control)

	controlDone := make(chan error, 1)
	go func() { controlDone <- control.Serve(ctx) }()
	healthDone := make(chan error, 1)
	go func() { healthDone <- healthServer.Serve(ctx) }()
	rosterDone := make(chan error, 1)
	go func() { rosterDone <- roster.Run(ctx) }()

	logger.Info("conductor running",
		"controller_id", conductorConfig.ControllerID,
		"environment", cfg.Environment,
		"endpoint_dir", conductorConfig.EndpointDir,
		"socket", conductorConfig.SocketPath,
		"auto_invite", conductorConfig.AutoInvite,
	)

	// A listener that fails brings the daemon down; otherwise wait for
	// a signal.
	var runErr error
	select {
	case <-ctx.Done():
	case err := <-controlDone:
		if err != nil {
			runErr = fmt.Errorf("control socket: %w", err)
		}
		controlDone = nil
	case err := <-healthDone:
		if err != nil {
			runErr = fmt.Errorf("health server: %w", err)
		}
		healthDone = nil
	}
	logger.Info("shutting down")
	stop()

	// Run closes every session on the way out, releasing their
	// reservations. Clients stay invited.
	if err := <-rosterDone; err != nil {
		logger.Error("roster error", "error", err)
	}
	if controlDone != nil {
		if err := <-controlDone; err != nil {
			logger.Error("control socket error", "error", err)
		}
	}
	if healthDone != nil {
		if err := <-healthDone; err != nil {
			logger.Error("health server error", "error", err)
		}
	}
	return runErr
}
