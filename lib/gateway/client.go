// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/bureau-foundation/concert/lib/codec"
)

// Client calls a single socket, typically a daemon's control socket.
// Each Call opens a new connection.
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient returns a client for socketPath. A zero timeout uses the
// package default.
func NewClient(socketPath string, timeout time.Duration) *Client {
	return &Client{socketPath: socketPath, timeout: timeout}
}

// Call sends request as the body of action and decodes the reply data
// into result. A handler failure is returned as a *RemoteError.
func (c *Client) Call(ctx context.Context, action string, request, result any) error {
	response, err := roundTrip(ctx, c.socketPath, action, request, c.timeout)
	if err != nil {
		return fmt.Errorf("calling %q on %s: %w", action, c.socketPath, err)
	}
	return decodeResponse(c.socketPath, action, response, result)
}

func decodeResponse(endpoint, action string, response *Response, result any) error {
	if !response.OK {
		return &RemoteError{Endpoint: endpoint, Operation: action, Message: response.Error}
	}
	if result != nil && len(response.Data) > 0 {
		if err := codec.Unmarshal(response.Data, result); err != nil {
			return &RemoteError{
				Endpoint:  endpoint,
				Operation: action,
				Message:   fmt.Sprintf("malformed response: %v", err),
			}
		}
	}
	return nil
}
