package frontend

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenophobed/isA-MCP-sub015/internal/domain"
)

type fakeFacade struct {
	registerErr error
	registered  domain.ServerRecord
	connectErr  error
	servers     []domain.ServerRecord
	state       domain.AggregatorState
	searchHits  []domain.ScoredTool
	skillHits   []domain.ToolRecord
	execResult  domain.InvocationResult
	execErr     error
}

func (f *fakeFacade) RegisterServer(context.Context, domain.RegisterConfig) (domain.ServerRecord, error) {
	return f.registered, f.registerErr
}
func (f *fakeFacade) ConnectServer(context.Context, string) error    { return f.connectErr }
func (f *fakeFacade) DisconnectServer(context.Context, string) error { return nil }
func (f *fakeFacade) RemoveServer(context.Context, string) error     { return nil }
func (f *fakeFacade) ExecuteTool(context.Context, string, map[string]any, string) (domain.InvocationResult, error) {
	return f.execResult, f.execErr
}
func (f *fakeFacade) SearchTools(context.Context, string, []string, int) ([]domain.ScoredTool, error) {
	return f.searchHits, nil
}
func (f *fakeFacade) ListToolsBySkill(context.Context, string) ([]domain.ToolRecord, error) {
	return f.skillHits, nil
}
func (f *fakeFacade) ListServers(context.Context, *domain.ServerStatus, string) ([]domain.ServerRecord, error) {
	return f.servers, nil
}
func (f *fakeFacade) GetServer(context.Context, string) (domain.ServerRecord, bool, error) {
	return domain.ServerRecord{}, false, nil
}
func (f *fakeFacade) GetState(context.Context) (domain.AggregatorState, error) { return f.state, nil }
func (f *fakeFacade) HealthCheckOne(context.Context, string) (domain.HealthResult, error) {
	return domain.HealthResult{Healthy: true}, nil
}
func (f *fakeFacade) ReconnectUnhealthy(context.Context) (map[string]bool, error) {
	return map[string]bool{"srv-1": true}, nil
}

func req(args map[string]any) mcp.CallToolRequest {
	var r mcp.CallToolRequest
	r.Params.Arguments = args
	return r
}

func TestServer_HandleRegisterServer(t *testing.T) {
	f := &fakeFacade{registered: domain.ServerRecord{ID: "srv-1", Name: "weather"}}
	s := New(f)

	result, err := s.handleRegisterServer(context.Background(), req(map[string]any{
		"name": "weather", "transport": "stdio", "command": "weather-server",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
}

func TestServer_HandleRegisterServerBadTransport(t *testing.T) {
	f := &fakeFacade{}
	s := New(f)

	result, err := s.handleRegisterServer(context.Background(), req(map[string]any{
		"name": "weather", "transport": "carrier-pigeon",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestServer_HandleCallToolForwardsArguments(t *testing.T) {
	f := &fakeFacade{execResult: domain.InvocationResult{Content: []domain.ContentBlock{{Type: "text", Text: "sunny"}}}}
	s := New(f)

	result, err := s.handleCallTool(context.Background(), req(map[string]any{
		"name": "weather.forecast", "arguments": map[string]any{"city": "NYC"},
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
}

func TestServer_HandleCallToolSurfacesError(t *testing.T) {
	f := &fakeFacade{execErr: assertErr{"boom"}}
	s := New(f)

	result, err := s.handleCallTool(context.Background(), req(map[string]any{"name": "weather.forecast"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestServer_HandleGetState(t *testing.T) {
	f := &fakeFacade{state: domain.AggregatorState{TotalServers: 2, ConnectedCount: 1}}
	s := New(f)

	result, err := s.handleGetState(context.Background(), req(nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)
}

func TestServer_HandleListToolsBySkill(t *testing.T) {
	f := &fakeFacade{skillHits: []domain.ToolRecord{
		{Name: "weather.alerts", PrimarySkillID: "skill-weather"},
		{Name: "weather.forecast", SkillIDs: []string{"skill-weather"}},
	}}
	s := New(f)

	result, err := s.handleListToolsBySkill(context.Background(), req(map[string]any{"skill_id": "skill-weather"}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
}

type assertErr struct{ msg string }

func (e assertErr) Error() string { return e.msg }
