// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/bureau-foundation/concert/lib/codec"
)

// DescribeAction is served by every Endpoint and returns a
// DescribeResponse.
const DescribeAction = "describe"

// Request is the wire envelope of one call.
type Request struct {
	Action string           `cbor:"action"`
	Body   codec.RawMessage `cbor:"body,omitempty"`
}

// Response is the wire envelope of one reply. On failure Error carries
// the handler's message and Data is empty.
type Response struct {
	OK    bool             `cbor:"ok"`
	Error string           `cbor:"error,omitempty"`
	Data  codec.RawMessage `cbor:"data,omitempty"`
}

// DescribeResponse lists the operations an endpoint currently serves.
type DescribeResponse struct {
	Operations []string `cbor:"operations"`
}

// maxMessageSize bounds both requests and responses. App lists are the
// largest payloads and stay far below it.
const maxMessageSize = 1024 * 1024

// defaultCallTimeout applies when a caller passes a zero timeout.
const defaultCallTimeout = 30 * time.Second

// roundTrip performs one request-response exchange on socketPath and
// returns the decoded envelope. Failures are mapped onto the transport
// sentinels; a reply with ok=false is returned as-is for the caller to
// turn into a RemoteError.
func roundTrip(ctx context.Context, socketPath, action string, body any, timeout time.Duration) (*Response, error) {
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}

	request := Request{Action: action}
	if body != nil {
		encoded, err := codec.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding %q request: %w", action, err)
		}
		request.Body = encoded
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var dialer net.Dialer
	conn, err := dialer.DialContext(callCtx, "unix", socketPath)
	if err != nil {
		return nil, classify(ctx, callCtx, "connecting", err)
	}
	defer conn.Close()

	if deadline, ok := callCtx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}
	// Unblock reads and writes as soon as the caller gives up.
	stop := context.AfterFunc(callCtx, func() {
		conn.SetDeadline(time.Now())
	})
	defer stop()

	if err := codec.NewEncoder(conn).Encode(request); err != nil {
		return nil, classify(ctx, callCtx, "writing request", err)
	}
	if unixConn, ok := conn.(*net.UnixConn); ok {
		unixConn.CloseWrite()
	}

	var response Response
	if err := codec.DecodeLimited(conn, maxMessageSize, &response); err != nil {
		return nil, classify(ctx, callCtx, "reading response", err)
	}
	return &response, nil
}

// classify maps a socket error onto ErrInterrupted (the caller's
// context ended), ErrTimeout (the per-call timeout expired) or
// ErrUnreachable (anything else: no socket, refused, reset, EOF).
func classify(parent, call context.Context, stage string, err error) error {
	switch {
	case errors.Is(parent.Err(), context.Canceled):
		return fmt.Errorf("%s: %w: %w", stage, ErrInterrupted, err)
	case parent.Err() != nil, call.Err() != nil, errors.Is(err, os.ErrDeadlineExceeded):
		return fmt.Errorf("%s: %w: %w", stage, ErrTimeout, err)
	default:
		return fmt.Errorf("%s: %w: %w", stage, ErrUnreachable, err)
	}
}
