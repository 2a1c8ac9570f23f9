// Package session implements the Session Manager: it owns the live
// transport connection to each registered backend, translating the
// namespacing-agnostic mark3labs/mcp-go client into the narrow
// surface the rest of the aggregator needs (list tools, call a tool,
// probe liveness), plus the connect retry/backoff and stdio
// supervision that the spec requires on top of it.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// protocolVersion and clientInfo are sent on every handshake,
// regardless of transport.
const protocolVersion = "2024-11-05"

var clientInfo = mcp.Implementation{Name: "mcp-aggregator", Version: "1.0.0"}

// Client is the narrow surface the aggregator needs from a connected
// backend. All three transports share the protocol calls; Initialize
// differs in how the underlying mcp-go client is built, and stdio also
// has its own Close that stops its supervisor goroutine.
type Client interface {
	Initialize(ctx context.Context) error
	Close() error
	ListTools(ctx context.Context) ([]mcp.Tool, error)
	CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error)
	Ping(ctx context.Context) error
}

// baseClient holds the behavior shared by every transport once the
// underlying mcp-go client exists: connected-state tracking and the
// protocol calls themselves.
type baseClient struct {
	inner     client.MCPClient
	mu        sync.RWMutex
	connected bool
}

func (b *baseClient) checkConnected() error {
	if !b.connected || b.inner == nil {
		return fmt.Errorf("session: client not connected")
	}
	return nil
}

func (b *baseClient) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.connected || b.inner == nil {
		return nil
	}
	err := b.inner.Close()
	b.connected = false
	b.inner = nil
	return err
}

func (b *baseClient) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.checkConnected(); err != nil {
		return nil, err
	}
	result, err := b.inner.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}
	return result.Tools, nil
}

func (b *baseClient) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.checkConnected(); err != nil {
		return nil, err
	}
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	result, err := b.inner.CallTool(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("call tool %s: %w", name, err)
	}
	return result, nil
}

func (b *baseClient) Ping(ctx context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.checkConnected(); err != nil {
		return err
	}
	return b.inner.Ping(ctx)
}

func initializeRequest() mcp.InitializeRequest {
	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = protocolVersion
	req.Params.ClientInfo = clientInfo
	req.Params.Capabilities = mcp.ClientCapabilities{}
	return req
}
