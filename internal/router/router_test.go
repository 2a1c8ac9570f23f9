package router

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenophobed/isA-MCP-sub015/internal/apierrors"
	"github.com/xenophobed/isA-MCP-sub015/internal/domain"
	"github.com/xenophobed/isA-MCP-sub015/internal/registry"
	"github.com/xenophobed/isA-MCP-sub015/internal/store/tool"
)

type fakeCaller struct {
	result *mcp.CallToolResult
	err    error
	calls  []string
	onCall func()
}

func (f *fakeCaller) CallTool(_ context.Context, serverID, name string, _ map[string]any) (*mcp.CallToolResult, error) {
	f.calls = append(f.calls, serverID+":"+name)
	if f.onCall != nil {
		f.onCall()
	}
	return f.result, f.err
}

func setup(t *testing.T) (*Router, registry.Registry, tool.Store, domain.ServerRecord, *fakeCaller) {
	t.Helper()
	reg := registry.NewMemory(nil)
	tools := tool.NewMemory()

	rec, err := reg.Add(context.Background(), domain.RegisterConfig{Name: "weather", Transport: domain.TransportStdio, Tenant: domain.TenantScope{IsGlobal: true}})
	require.NoError(t, err)
	_, err = reg.UpdateStatus(context.Background(), rec.ID, domain.StatusConnected, "")
	require.NoError(t, err)

	_, err = tools.Upsert(context.Background(), domain.ToolRecord{
		Name: "weather.forecast", OriginalName: "forecast", SourceServerID: rec.ID, IsExternal: true,
	})
	require.NoError(t, err)

	caller := &fakeCaller{result: &mcp.CallToolResult{}}
	return New(reg, tools, caller, 0), reg, tools, rec, caller
}

func TestRouter_ResolveExplicitServer(t *testing.T) {
	r, _, _, rec, _ := setup(t)
	rctx, err := r.Resolve(context.Background(), rec.ID, "forecast")
	require.NoError(t, err)
	assert.Equal(t, domain.StrategyExplicitServer, rctx.Strategy)
	assert.Equal(t, "forecast", rctx.OriginalName)
}

func TestRouter_ResolveNamespaced(t *testing.T) {
	r, _, _, rec, _ := setup(t)
	rctx, err := r.Resolve(context.Background(), "", "weather.forecast")
	require.NoError(t, err)
	assert.Equal(t, domain.StrategyNamespaceResolved, rctx.Strategy)
	assert.Equal(t, "forecast", rctx.OriginalName)
	assert.Equal(t, rec.ID, rctx.ServerID)
}

func TestRouter_ResolveFallback(t *testing.T) {
	r, _, tools, rec, _ := setup(t)
	_, err := tools.Upsert(context.Background(), domain.ToolRecord{
		Name: "ping", OriginalName: "ping", SourceServerID: rec.ID, IsExternal: true,
	})
	require.NoError(t, err)

	rctx, err := r.Resolve(context.Background(), "", "ping")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, rctx.ServerID)
	assert.Equal(t, domain.StrategyFallback, rctx.Strategy)
}

func TestRouter_ResolveUnavailableServer(t *testing.T) {
	r, reg, _, rec, _ := setup(t)
	_, err := reg.UpdateStatus(context.Background(), rec.ID, domain.StatusDegraded, "flaky")
	require.NoError(t, err)

	_, err = r.Resolve(context.Background(), rec.ID, "forecast")
	assert.ErrorIs(t, err, apierrors.ErrServerUnavailable)
}

func TestRouter_ResolveUnknownServer(t *testing.T) {
	r, _, _, _, _ := setup(t)
	_, err := r.Resolve(context.Background(), "does-not-exist", "forecast")
	assert.True(t, apierrors.IsNotFound(err))
}

func TestRouter_ExecuteForwardsAndNormalises(t *testing.T) {
	r, _, _, rec, caller := setup(t)
	caller.result = &mcp.CallToolResult{Content: []mcp.Content{mcp.TextContent{Type: "text", Text: "sunny"}}}

	res, err := r.Execute(context.Background(), "", "weather.forecast", map[string]any{"city": "NYC"})
	require.NoError(t, err)
	assert.Equal(t, rec.ID, res.ServerID)
	assert.Equal(t, "forecast", res.OriginalName)
	require.Len(t, res.Content, 1)
	assert.Equal(t, "sunny", res.Content[0].Text)
	assert.Contains(t, caller.calls, rec.ID+":forecast")
}

func TestRouter_ExecuteMapsDisconnectDuringExecution(t *testing.T) {
	r, reg, _, rec, caller := setup(t)
	caller.err = assertErr{"transport closed"}
	_, callErr := r.Execute(context.Background(), "", "weather.forecast", nil)
	require.Error(t, callErr)
	assert.ErrorIs(t, callErr, apierrors.ErrToolExecutionFailed)

	// The server drops while the call is in flight.
	caller.onCall = func() {
		_, err := reg.UpdateStatus(context.Background(), rec.ID, domain.StatusDisconnected, "")
		require.NoError(t, err)
	}
	_, callErr = r.Execute(context.Background(), "", "weather.forecast", nil)
	assert.ErrorIs(t, callErr, apierrors.ErrServerDisconnectedDuringExecution)
}

type assertErr struct{ msg string }

func (e assertErr) Error() string { return e.msg }
