// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package health

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/bureau-foundation/concert/lib/clock"
)

// Dial returns a client connection to the health socket at socketPath.
// The connection is established lazily on the first call.
func Dial(socketPath string) (*grpc.ClientConn, error) {
	conn, err := grpc.NewClient("unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dialing health socket %s: %w", socketPath, err)
	}
	return conn, nil
}

// Check returns the status of service as a string such as "SERVING" or
// "NOT_SERVING". An unknown service is an error with gRPC code
// NotFound.
func Check(ctx context.Context, conn *grpc.ClientConn, service string) (string, error) {
	response, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return "", err
	}
	return response.GetStatus().String(), nil
}

// WaitForServing polls service until it reports SERVING or ctx ends.
// The poll interval starts at 50ms and doubles up to one second.
func WaitForServing(ctx context.Context, conn *grpc.ClientConn, service string, c clock.Clock) error {
	backoff := 50 * time.Millisecond
	for {
		callCtx, cancel := context.WithTimeout(ctx, time.Second)
		status, err := Check(callCtx, conn, service)
		cancel()
		if err == nil && status == healthpb.HealthCheckResponse_SERVING.String() {
			return nil
		}

		if waitErr := clock.Wait(ctx, c, backoff); waitErr != nil {
			if err != nil {
				return fmt.Errorf("waiting for %q to serve: %w (last error: %v)", service, waitErr, err)
			}
			return fmt.Errorf("waiting for %q to serve: %w (last status: %s)", service, waitErr, status)
		}
		backoff = min(backoff*2, time.Second)
	}
}
