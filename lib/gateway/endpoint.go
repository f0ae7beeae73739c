// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/bureau-foundation/concert/lib/codec"
)

// ActionFunc handles one operation. body is the CBOR-encoded request
// payload and is empty when the caller sent none. A nil result produces
// {ok: true} with no data.
type ActionFunc func(ctx context.Context, body []byte) (any, error)

// Endpoint serves operations on a Unix socket, one request per
// connection.
type Endpoint struct {
	socketPath string
	logger     *slog.Logger

	mu       sync.RWMutex
	handlers map[string]ActionFunc

	ready     chan struct{}
	readyOnce sync.Once

	activeConnections sync.WaitGroup
}

// NewEndpoint creates an endpoint that will listen on socketPath.
func NewEndpoint(socketPath string, logger *slog.Logger) *Endpoint {
	return &Endpoint{
		socketPath: socketPath,
		logger:     logger,
		handlers:   make(map[string]ActionFunc),
		ready:      make(chan struct{}),
	}
}

// SocketPath returns the path the endpoint listens on.
func (e *Endpoint) SocketPath() string { return e.socketPath }

// Handle registers handler for operation. It may be called while
// serving. Registering an operation twice, or registering the reserved
// describe action, panics.
func (e *Endpoint) Handle(operation string, handler ActionFunc) {
	if operation == DescribeAction {
		panic("gateway.Endpoint: describe is a built-in action")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.handlers[operation]; exists {
		panic(fmt.Sprintf("gateway.Endpoint: duplicate handler for operation %q", operation))
	}
	e.handlers[operation] = handler
}

// Unhandle removes operation. Removing an unregistered operation is a
// no-op.
func (e *Endpoint) Unhandle(operation string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.handlers, operation)
}

// Operations returns the registered operation names in sorted order.
func (e *Endpoint) Operations() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	operations := make([]string, 0, len(e.handlers))
	for operation := range e.handlers {
		operations = append(operations, operation)
	}
	sort.Strings(operations)
	return operations
}

// Ready is closed once the socket is listening.
func (e *Endpoint) Ready() <-chan struct{} { return e.ready }

// Serve listens and dispatches until ctx is cancelled, then waits for
// in-flight handlers. A stale socket file is removed first; the socket
// file is removed on return.
func (e *Endpoint) Serve(ctx context.Context) error {
	if err := os.Remove(e.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale socket %s: %w", e.socketPath, err)
	}

	listener, err := net.Listen("unix", e.socketPath)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", e.socketPath, err)
	}
	defer func() {
		listener.Close()
		os.Remove(e.socketPath)
	}()

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	e.logger.Info("endpoint listening", "path", e.socketPath)
	e.readyOnce.Do(func() { close(e.ready) })

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			e.logger.Error("accept failed", "error", err)
			continue
		}

		e.activeConnections.Add(1)
		go func() {
			defer e.activeConnections.Done()
			e.handleConnection(ctx, conn)
		}()
	}

	e.activeConnections.Wait()
	return nil
}

const (
	readTimeout  = 10 * time.Second
	writeTimeout = 10 * time.Second
)

func (e *Endpoint) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(readTimeout))

	var request Request
	if err := codec.DecodeLimited(conn, maxMessageSize, &request); err != nil {
		if errors.Is(err, io.EOF) {
			return
		}
		e.writeResponse(conn, failure(fmt.Sprintf("invalid request: %v", err)))
		return
	}
	if request.Action == "" {
		e.writeResponse(conn, failure("missing required field: action"))
		return
	}

	if request.Action == DescribeAction {
		e.writeResponse(conn, e.success(DescribeResponse{Operations: e.Operations()}))
		return
	}

	e.mu.RLock()
	handler, exists := e.handlers[request.Action]
	e.mu.RUnlock()
	if !exists {
		e.writeResponse(conn, failure(fmt.Sprintf("unknown operation %q", request.Action)))
		return
	}

	result, err := handler(ctx, request.Body)
	if err != nil {
		e.logger.Debug("operation failed", "operation", request.Action, "error", err)
		e.writeResponse(conn, failure(err.Error()))
		return
	}
	e.writeResponse(conn, e.success(result))
}

func failure(message string) Response {
	return Response{OK: false, Error: message}
}

func (e *Endpoint) success(result any) Response {
	response := Response{OK: true}
	if result == nil {
		return response
	}
	data, err := codec.Marshal(result)
	if err != nil {
		return failure(fmt.Sprintf("internal: marshaling response: %v", err))
	}
	response.Data = data
	return response
}

func (e *Endpoint) writeResponse(conn net.Conn, response Response) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := codec.NewEncoder(conn).Encode(response); err != nil {
		e.logger.Debug("failed to write response", "error", err)
	}
}

// DecodeBody decodes a request body into v. An empty body leaves v
// untouched.
func DecodeBody(body []byte, v any) error {
	if len(body) == 0 {
		return nil
	}
	if err := codec.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decoding request body: %w", err)
	}
	return nil
}
