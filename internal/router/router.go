// Package router implements the Request Router: resolution of a tool
// reference (explicit server, namespaced name, or bare name) to a
// concrete (server, original tool name) pair, followed by a bounded
// call through the Session Manager.
package router

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/xenophobed/isA-MCP-sub015/internal/apierrors"
	"github.com/xenophobed/isA-MCP-sub015/internal/domain"
	"github.com/xenophobed/isA-MCP-sub015/internal/registry"
	"github.com/xenophobed/isA-MCP-sub015/internal/store/tool"
)

const defaultExecutionTimeout = 60 * time.Second

// ToolCaller is the narrow slice of the Session Manager the router
// needs to forward a resolved call.
type ToolCaller interface {
	CallTool(ctx context.Context, serverID, name string, args map[string]any) (*mcp.CallToolResult, error)
}

// Router resolves and forwards tool execution requests.
type Router struct {
	registry registry.Registry
	tools    tool.Store
	sessions ToolCaller
	timeout  time.Duration
}

// New builds a Router. timeout <= 0 defaults to 60s.
func New(reg registry.Registry, tools tool.Store, sessions ToolCaller, timeout time.Duration) *Router {
	if timeout <= 0 {
		timeout = defaultExecutionTimeout
	}
	return &Router{registry: reg, tools: tools, sessions: sessions, timeout: timeout}
}

// Resolve determines the routing strategy and target for name,
// optionally scoped to an explicit serverID. It fails with
// ErrServerUnavailable if the resolved server is not connected.
func (r *Router) Resolve(ctx context.Context, serverID, name string) (domain.RoutingContext, error) {
	switch {
	case serverID != "":
		return r.resolveExplicit(ctx, serverID, name)
	case strings.Contains(name, "."):
		return r.resolveNamespaced(ctx, name)
	default:
		return r.resolveFallback(ctx, name)
	}
}

func (r *Router) resolveExplicit(ctx context.Context, serverID, name string) (domain.RoutingContext, error) {
	rec, ok, err := r.registry.Get(ctx, serverID)
	if err != nil {
		return domain.RoutingContext{}, err
	}
	if !ok {
		return domain.RoutingContext{}, apierrors.NewServerNotFoundError(serverID)
	}
	if rec.Status != domain.StatusConnected {
		return domain.RoutingContext{}, fmt.Errorf("%w: %s (%s)", apierrors.ErrServerUnavailable, rec.Name, rec.Status)
	}

	originalName := name
	if toolRec, ok, err := r.tools.GetByName(ctx, domain.NamespaceTool(rec.Name, name)); err == nil && ok {
		originalName = toolRec.OriginalName
	}

	return domain.RoutingContext{
		ResolvedName: name,
		OriginalName: originalName,
		ServerID:     rec.ID,
		ServerName:   rec.Name,
		Strategy:     domain.StrategyExplicitServer,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

func (r *Router) resolveNamespaced(ctx context.Context, name string) (domain.RoutingContext, error) {
	serverName, originalName, err := domain.ParseNamespacedName(name)
	if err != nil {
		return domain.RoutingContext{}, fmt.Errorf("%w: %s", apierrors.ErrValidation, err)
	}

	rec, ok, err := r.registry.GetByName(ctx, serverName)
	if err != nil {
		return domain.RoutingContext{}, err
	}
	if !ok {
		return domain.RoutingContext{}, apierrors.NewServerNotFoundError(serverName)
	}
	if rec.Status != domain.StatusConnected {
		return domain.RoutingContext{}, fmt.Errorf("%w: %s (%s)", apierrors.ErrServerUnavailable, rec.Name, rec.Status)
	}

	return domain.RoutingContext{
		ResolvedName: name,
		OriginalName: originalName,
		ServerID:     rec.ID,
		ServerName:   rec.Name,
		Strategy:     domain.StrategyNamespaceResolved,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

func (r *Router) resolveFallback(ctx context.Context, name string) (domain.RoutingContext, error) {
	toolRec, ok, err := r.tools.GetByName(ctx, name)
	if err != nil {
		return domain.RoutingContext{}, err
	}
	if !ok {
		return domain.RoutingContext{}, apierrors.NewToolNotFoundError(name)
	}

	rec, ok, err := r.registry.Get(ctx, toolRec.SourceServerID)
	if err != nil {
		return domain.RoutingContext{}, err
	}
	if !ok {
		return domain.RoutingContext{}, apierrors.NewServerNotFoundError(toolRec.SourceServerID)
	}
	if rec.Status != domain.StatusConnected {
		return domain.RoutingContext{}, fmt.Errorf("%w: %s (%s)", apierrors.ErrServerUnavailable, rec.Name, rec.Status)
	}

	return domain.RoutingContext{
		ResolvedName: name,
		OriginalName: toolRec.OriginalName,
		ServerID:     rec.ID,
		ServerName:   rec.Name,
		Strategy:     domain.StrategyFallback,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// Execute resolves name (optionally pinned to serverID) and forwards
// the call through the bounded ToolCaller, returning the normalised
// invocation envelope.
func (r *Router) Execute(ctx context.Context, serverID, name string, args map[string]any) (domain.InvocationResult, error) {
	rctx, err := r.Resolve(ctx, serverID, name)
	if err != nil {
		return domain.InvocationResult{}, err
	}
	rctx.Args = args

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	started := time.Now().UTC()
	result, err := r.sessions.CallTool(callCtx, rctx.ServerID, rctx.OriginalName, args)
	completed := time.Now().UTC()

	if err != nil {
		if callCtx.Err() != nil {
			return domain.InvocationResult{}, fmt.Errorf("%w: %s", apierrors.ErrToolExecutionTimeout, rctx.ResolvedName)
		}

		// Distinguish a disconnect that happened mid-flight from a
		// genuine tool-side failure by re-reading server status.
		if rec, ok, gerr := r.registry.Get(ctx, rctx.ServerID); gerr == nil && ok && rec.Status != domain.StatusConnected {
			return domain.InvocationResult{}, fmt.Errorf("%w: %s", apierrors.ErrServerDisconnectedDuringExecution, rec.Name)
		}
		return domain.InvocationResult{}, fmt.Errorf("%w: %s: %s", apierrors.ErrToolExecutionFailed, rctx.ResolvedName, err)
	}

	return domain.InvocationResult{
		Content:         contentBlocks(result),
		IsError:         result.IsError,
		ExecutionTimeMS: completed.Sub(started).Milliseconds(),
		ServerID:        rctx.ServerID,
		ServerName:      rctx.ServerName,
		ToolName:        rctx.ResolvedName,
		OriginalName:    rctx.OriginalName,
	}, nil
}

func contentBlocks(result *mcp.CallToolResult) []domain.ContentBlock {
	if result == nil {
		return nil
	}
	blocks := make([]domain.ContentBlock, 0, len(result.Content))
	for _, c := range result.Content {
		if tc, ok := mcp.AsTextContent(c); ok {
			blocks = append(blocks, domain.ContentBlock{Type: "text", Text: tc.Text})
			continue
		}
		blocks = append(blocks, domain.ContentBlock{Type: "unknown"})
	}
	return blocks
}
