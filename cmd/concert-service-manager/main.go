// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/concert/lib/clock"
	"github.com/bureau-foundation/concert/lib/config"
	"github.com/bureau-foundation/concert/lib/gateway"
	"github.com/bureau-foundation/concert/lib/health"
	"github.com/bureau-foundation/concert/lib/process"
	"github.com/bureau-foundation/concert/lib/schema"
	"github.com/bureau-foundation/concert/lib/servicedef"
	"github.com/bureau-foundation/concert/lib/servicemanager"
	"github.com/bureau-foundation/concert/lib/version"
)

// shutdownTimeout bounds the wait for killed services to be reaped.
const shutdownTimeout = 10 * time.Second

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
	flags := pflag.NewFlagSet("concert-service-manager", pflag.ContinueOnError)
	flags.StringVar(&configPath, "config", "", "path to concert.yaml (default: $CONCERT_CONFIG)")
	flags.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flags.Parse(os.Args[1:]); err != nil {
		return err
	}

	if showVersion {
		fmt.Printf("concert-service-manager %s\n", version.Info())
		return nil
	}

	cfg, err := config.LoadFlag(configPath)
	if err != nil {
		return err
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}
	managerConfig := cfg.ServiceManager

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if managerConfig.LedgerPath != "" {
		reaped, err := servicemanager.ReapOrphans(managerConfig.LedgerPath, logger)
		if errors.Is(err, servicemanager.ErrLedgerOwned) {
			return err
		}
		if err != nil {
			logger.Warn("reaping orphaned services", "error", err)
		}
		for _, orphan := range reaped {
			logger.Info("reaped orphaned service", "service", orphan.Name, "pid", orphan.Entry.PID)
		}
	}

	definitions, err := loadDefinitions(managerConfig.Definitions, logger)
	if err != nil {
		return err
	}

	healthServer := health.NewServer(managerConfig.HealthSocket, logger)
	manager, err := servicemanager.NewManager(servicemanager.ManagerConfig{
		Host: servicemanager.NewExecHost(servicemanager.ExecHostConfig{
			OutputDirectory: managerConfig.OutputDir,
			Logger:          logger,
		}),
		Clock:              clock.Real(),
		Logger:             logger,
		Health:             healthServer,
		LedgerPath:         managerConfig.LedgerPath,
		PollInterval:       managerConfig.DisablePollInterval,
		EscalateAfterPolls: managerConfig.EscalateAfterPolls,
	})
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := manager.Close(closeCtx); err != nil {
			logger.Error("closing services", "error", err)
		}
	}()

	if err := manager.Load(ctx, definitions); err != nil {
		// Services that failed to start stay loaded and can be enabled
		// once the cause is fixed.
		logger.Error("enabling services on start", "error", err)
	}

	control := gateway.NewEndpoint(managerConfig.SocketPath, logger.With("component", "control"))
	(&managerService{manager: manager, logger: logger}).registerActions(control)

	controlDone := make(chan error, 1)
	go func() { controlDone <- control.Serve(ctx) }()
	healthDone := make(chan error, 1)
	go func() { healthDone <- healthServer.Serve(ctx) }()

	logger.Info("service manager running",
		"environment", cfg.Environment,
		"services", len(definitions),
		"socket", managerConfig.SocketPath,
	)

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

// loadDefinitions reads the definition directory. A missing directory
// means no services.
func loadDefinitions(directory string, logger *slog.Logger) ([]schema.ServiceDefinition, error) {
	if directory == "" {
		return nil, nil
	}
	if _, err := os.Stat(directory); errors.Is(err, os.ErrNotExist) {
		logger.Warn("service definition directory does not exist", "path", directory)
		return nil, nil
	}
	definitions, err := servicedef.ReadDir(directory)
	if err != nil {
		return nil, fmt.Errorf("loading service definitions from %s:\n%w", directory, err)
	}
	return definitions, nil
}
