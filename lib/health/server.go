// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package health

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Overall is the service name of the daemon-wide status.
const Overall = ""

// Server serves grpc.health.v1.Health on a Unix socket.
type Server struct {
	socketPath string
	logger     *slog.Logger

	grpcServer   *grpc.Server
	healthServer *grpchealth.Server

	ready     chan struct{}
	readyOnce sync.Once
}

// NewServer creates a health server for socketPath. The overall status
// starts as NOT_SERVING; Serve flips it to SERVING once listening.
func NewServer(socketPath string, logger *slog.Logger) *Server {
	healthServer := grpchealth.NewServer()
	healthServer.SetServingStatus(Overall, healthpb.HealthCheckResponse_NOT_SERVING)
	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	return &Server{
		socketPath:   socketPath,
		logger:       logger,
		grpcServer:   grpcServer,
		healthServer: healthServer,
		ready:        make(chan struct{}),
	}
}

// Set publishes the status of service.
func (s *Server) Set(service string, serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.healthServer.SetServingStatus(service, status)
}

// Ready is closed once the socket is listening.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Serve listens on the socket until ctx is cancelled. On shutdown every
// status turns NOT_SERVING before the listener closes, so watchers see
// the transition.
func (s *Server) Serve(ctx context.Context) error {
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale health socket %s: %w", s.socketPath, err)
	}
	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.socketPath, err)
	}
	defer os.Remove(s.socketPath)

	stop := context.AfterFunc(ctx, func() {
		s.healthServer.Shutdown()
		s.grpcServer.GracefulStop()
	})
	defer stop()

	s.Set(Overall, true)
	s.logger.Info("health endpoint listening", "path", s.socketPath)
	s.readyOnce.Do(func() { close(s.ready) })

	if err := s.grpcServer.Serve(listener); err != nil && ctx.Err() == nil {
		return fmt.Errorf("serving health on %s: %w", s.socketPath, err)
	}
	return nil
}
