// Package frontend exposes the Aggregator Facade over MCP itself: a
// thin mcp-go server whose tools are the Facade's external operations
// (register/connect/disconnect/remove a server, search and call
// tools, inspect health and state). It carries none of the domain
// logic; every handler just unmarshals arguments and calls straight
// into the Facade.
package frontend

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/xenophobed/isA-MCP-sub015/internal/domain"
	strutil "github.com/xenophobed/isA-MCP-sub015/pkg/strings"
)

// Facade is the slice of *facade.Facade the frontend drives. Declared
// locally so this package never imports internal/facade's concrete
// type, matching the narrow-interface idiom used across the stack.
type Facade interface {
	RegisterServer(ctx context.Context, cfg domain.RegisterConfig) (domain.ServerRecord, error)
	ConnectServer(ctx context.Context, serverID string) error
	DisconnectServer(ctx context.Context, serverID string) error
	RemoveServer(ctx context.Context, serverID string) error
	ExecuteTool(ctx context.Context, name string, args map[string]any, serverID string) (domain.InvocationResult, error)
	SearchTools(ctx context.Context, query string, serverFilter []string, limit int) ([]domain.ScoredTool, error)
	ListToolsBySkill(ctx context.Context, skillID string) ([]domain.ToolRecord, error)
	ListServers(ctx context.Context, status *domain.ServerStatus, tenantOrgID string) ([]domain.ServerRecord, error)
	GetServer(ctx context.Context, id string) (domain.ServerRecord, bool, error)
	GetState(ctx context.Context) (domain.AggregatorState, error)
	HealthCheckOne(ctx context.Context, id string) (domain.HealthResult, error)
	ReconnectUnhealthy(ctx context.Context) (map[string]bool, error)
}

// Server wraps an *mcpserver.MCPServer built from a Facade's tool set
// and serves it over streamable HTTP.
type Server struct {
	facade Facade
	mcp    *mcpserver.MCPServer
	http   *mcpserver.StreamableHTTPServer
}

// New builds the frontend's MCP server and registers its meta-tools.
func New(f Facade) *Server {
	mcpSrv := mcpserver.NewMCPServer(
		"mcp-aggregator",
		"1.0.0",
		mcpserver.WithToolCapabilities(true),
	)

	s := &Server{facade: f, mcp: mcpSrv}
	mcpSrv.AddTools(s.tools()...)
	s.http = mcpserver.NewStreamableHTTPServer(mcpSrv)
	return s
}

// ListenAndServe blocks serving the streamable-HTTP transport on addr
// until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{Addr: addr, Handler: s.http}

	errc := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errc:
		return err
	}
}

func (s *Server) tools() []mcpserver.ServerTool {
	return []mcpserver.ServerTool{
		{Tool: mcp.Tool{
			Name:        "register_server",
			Description: "Register a new backend MCP server without connecting to it",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"name":      map[string]any{"type": "string"},
					"transport": map[string]any{"type": "string", "enum": []string{"stdio", "sse", "streamable_http", "http"}},
					"command":   map[string]any{"type": "string"},
					"args":      map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"url":       map[string]any{"type": "string"},
					"org_id":    map[string]any{"type": "string"},
					"is_global": map[string]any{"type": "boolean"},
				},
				Required: []string{"name", "transport"},
			},
		}, Handler: s.handleRegisterServer},

		{Tool: mcp.Tool{
			Name:        "connect_server",
			Description: "Connect a registered server and discover its tools",
			InputSchema: stringArgSchema("server_id"),
		}, Handler: s.handleConnectServer},

		{Tool: mcp.Tool{
			Name:        "disconnect_server",
			Description: "Disconnect a server's live session without forgetting it",
			InputSchema: stringArgSchema("server_id"),
		}, Handler: s.handleDisconnectServer},

		{Tool: mcp.Tool{
			Name:        "remove_server",
			Description: "Disconnect a server, purge its tools, and delete its record",
			InputSchema: stringArgSchema("server_id"),
		}, Handler: s.handleRemoveServer},

		{Tool: mcp.Tool{
			Name:        "list_servers",
			Description: "List registered servers, optionally filtered by status",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"status":        map[string]any{"type": "string"},
					"tenant_org_id": map[string]any{"type": "string"},
				},
			},
		}, Handler: s.handleListServers},

		{Tool: mcp.Tool{
			Name:        "get_state",
			Description: "Return aggregated server/tool counters and last health sweep time",
			InputSchema: mcp.ToolInputSchema{Type: "object"},
		}, Handler: s.handleGetState},

		{Tool: mcp.Tool{
			Name:        "health_check",
			Description: "Probe a single server's live session directly",
			InputSchema: stringArgSchema("server_id"),
		}, Handler: s.handleHealthCheck},

		{Tool: mcp.Tool{
			Name:        "reconnect_unhealthy",
			Description: "Attempt to reconnect every degraded or errored server",
			InputSchema: mcp.ToolInputSchema{Type: "object"},
		}, Handler: s.handleReconnectUnhealthy},

		{Tool: mcp.Tool{
			Name:        "search_tools",
			Description: "Semantic search across every discovered external tool",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"query":   map[string]any{"type": "string"},
					"servers": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"limit":   map[string]any{"type": "integer"},
				},
				Required: []string{"query"},
			},
		}, Handler: s.handleSearchTools},

		{Tool: mcp.Tool{
			Name:        "call_tool",
			Description: "Invoke a tool by namespaced, bare, or server-scoped name",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"name":      map[string]any{"type": "string"},
					"server_id": map[string]any{"type": "string"},
					"arguments": map[string]any{"type": "object"},
				},
				Required: []string{"name"},
			},
		}, Handler: s.handleCallTool},

		{Tool: mcp.Tool{
			Name:        "list_tools_by_skill",
			Description: "List every classified tool under a skill, primary-skill matches first",
			InputSchema: stringArgSchema("skill_id"),
		}, Handler: s.handleListToolsBySkill},
	}
}

func stringArgSchema(field string) mcp.ToolInputSchema {
	return mcp.ToolInputSchema{
		Type:       "object",
		Properties: map[string]any{field: map[string]any{"type": "string"}},
		Required:   []string{field},
	}
}

func argsOf(req mcp.CallToolRequest) map[string]any {
	if m, ok := req.Params.Arguments.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func boolArg(args map[string]any, key string) bool {
	b, _ := args[key].(bool)
	return b
}

func stringSliceArg(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func intArg(args map[string]any, key string, fallback int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return fallback
	}
}

func mapArg(args map[string]any, key string) map[string]any {
	m, _ := args[key].(map[string]any)
	return m
}

func (s *Server) handleRegisterServer(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := argsOf(req)
	transport, err := domain.ParseTransportKind(stringArg(args, "transport"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	connCfg := map[string]any{}
	if v := stringArg(args, "command"); v != "" {
		connCfg["command"] = v
	}
	if v := stringArg(args, "url"); v != "" {
		connCfg["url"] = v
	}
	if v := args["args"]; v != nil {
		connCfg["args"] = v
	}

	rec, err := s.facade.RegisterServer(ctx, domain.RegisterConfig{
		Name:             stringArg(args, "name"),
		Transport:        transport,
		ConnectionConfig: connCfg,
		Tenant:           domain.TenantScope{OrgID: stringArg(args, "org_id"), IsGlobal: boolArg(args, "is_global") || stringArg(args, "org_id") == ""},
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("registered server %s (%s)", rec.Name, rec.ID)), nil
}

func (s *Server) handleConnectServer(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := stringArg(argsOf(req), "server_id")
	if err := s.facade.ConnectServer(ctx, id); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("connected %s", id)), nil
}

func (s *Server) handleDisconnectServer(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := stringArg(argsOf(req), "server_id")
	if err := s.facade.DisconnectServer(ctx, id); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("disconnected %s", id)), nil
}

func (s *Server) handleRemoveServer(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := stringArg(argsOf(req), "server_id")
	if err := s.facade.RemoveServer(ctx, id); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("removed %s", id)), nil
}

func (s *Server) handleListServers(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := argsOf(req)
	var status *domain.ServerStatus
	if raw := stringArg(args, "status"); raw != "" {
		st := domain.ServerStatus(raw)
		status = &st
	}

	servers, err := s.facade.ListServers(ctx, status, stringArg(args, "tenant_org_id"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	lines := make([]string, 0, len(servers))
	for _, rec := range servers {
		desc := strutil.TruncateDescription(rec.Description, strutil.DefaultDescriptionMaxLen)
		lines = append(lines, fmt.Sprintf("%s\t%s\t%s\ttools=%d\t%s", rec.ID, rec.Name, rec.Status, rec.ToolCount, desc))
	}
	return mcp.NewToolResultText(joinLines(lines)), nil
}

func (s *Server) handleGetState(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	state, err := s.facade.GetState(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf(
		"servers=%d connected=%d degraded=%d error=%d disconnected=%d tools=%d",
		state.TotalServers, state.ConnectedCount, state.DegradedCount, state.ErrorCount, state.DisconnectedCount, state.TotalTools,
	)), nil
}

func (s *Server) handleHealthCheck(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := stringArg(argsOf(req), "server_id")
	result, err := s.facade.HealthCheckOne(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("healthy=%v reason=%q", result.Healthy, result.Reason)), nil
}

func (s *Server) handleReconnectUnhealthy(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	results, err := s.facade.ReconnectUnhealthy(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	lines := make([]string, 0, len(results))
	for id, ok := range results {
		lines = append(lines, fmt.Sprintf("%s\treconnected=%v", id, ok))
	}
	return mcp.NewToolResultText(joinLines(lines)), nil
}

func (s *Server) handleSearchTools(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := argsOf(req)
	hits, err := s.facade.SearchTools(ctx, stringArg(args, "query"), stringSliceArg(args, "servers"), intArg(args, "limit", 10))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	lines := make([]string, 0, len(hits))
	for _, hit := range hits {
		name, _ := hit.Tool.Payload["original_name"].(string)
		server, _ := hit.Tool.Payload["server_name"].(string)
		lines = append(lines, fmt.Sprintf("%s.%s\tscore=%.4f", server, name, hit.Score))
	}
	return mcp.NewToolResultText(joinLines(lines)), nil
}

func (s *Server) handleCallTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := argsOf(req)
	result, err := s.facade.ExecuteTool(ctx, stringArg(args, "name"), mapArg(args, "arguments"), stringArg(args, "server_id"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	texts := make([]string, 0, len(result.Content))
	for _, block := range result.Content {
		texts = append(texts, block.Text)
	}
	if result.IsError {
		return mcp.NewToolResultError(joinLines(texts)), nil
	}
	return mcp.NewToolResultText(joinLines(texts)), nil
}

func (s *Server) handleListToolsBySkill(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	skillID := stringArg(argsOf(req), "skill_id")
	recs, err := s.facade.ListToolsBySkill(ctx, skillID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	lines := make([]string, 0, len(recs))
	for _, rec := range recs {
		lines = append(lines, fmt.Sprintf("%s\tprimary=%v", rec.Name, rec.PrimarySkillID == skillID))
	}
	return mcp.NewToolResultText(joinLines(lines)), nil
}

func joinLines(lines []string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}
