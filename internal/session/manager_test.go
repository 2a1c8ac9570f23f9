package session

import (
	"context"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenophobed/isA-MCP-sub015/internal/config"
	"github.com/xenophobed/isA-MCP-sub015/internal/domain"
)

func TestBackoffDelay(t *testing.T) {
	schedule := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	assert.Equal(t, time.Second, backoffDelay(schedule, 0))
	assert.Equal(t, 2*time.Second, backoffDelay(schedule, 1))
	assert.Equal(t, 4*time.Second, backoffDelay(schedule, 2))
	// Beyond the schedule's length, the last delay repeats.
	assert.Equal(t, 4*time.Second, backoffDelay(schedule, 5))
	assert.Equal(t, time.Second, backoffDelay(nil, 0))
}

func TestNewClient_UnsupportedTransport(t *testing.T) {
	_, err := newClient(domain.ServerRecord{Name: "x", Transport: "carrier-pigeon"})
	assert.Error(t, err)
}

func TestNewClient_StdioRequiresCommand(t *testing.T) {
	_, err := newClient(domain.ServerRecord{Name: "x", Transport: domain.TransportStdio})
	assert.Error(t, err)
}

func TestNewClient_SSERequiresURL(t *testing.T) {
	_, err := newClient(domain.ServerRecord{Name: "x", Transport: domain.TransportSSE})
	assert.Error(t, err)
}

func TestToStringSliceAndMap(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, toStringSlice([]any{"a", "b"}))
	assert.Nil(t, toStringSlice(nil))
	assert.Equal(t, map[string]string{"k": "v"}, toStringMap(map[string]any{"k": "v"}))
	assert.Nil(t, toStringMap(nil))
}

// fakeClient is a minimal in-memory Client used to exercise the
// Manager without a real subprocess or network connection.
type fakeClient struct {
	initErr error
	tools   []mcp.Tool
	closed  bool
}

func (f *fakeClient) Initialize(context.Context) error { return f.initErr }
func (f *fakeClient) Close() error                      { f.closed = true; return nil }
func (f *fakeClient) ListTools(context.Context) ([]mcp.Tool, error) {
	return f.tools, nil
}
func (f *fakeClient) CallTool(context.Context, string, map[string]any) (*mcp.CallToolResult, error) {
	return &mcp.CallToolResult{}, nil
}
func (f *fakeClient) Ping(context.Context) error { return nil }

func TestManager_GetSessionAndIsConnected(t *testing.T) {
	m := NewManager(config.Default().Retry)
	assert.False(t, m.IsConnected("srv-1"))

	m.mu.Lock()
	m.connections["srv-1"] = &ManagedConnection{ServerID: "srv-1", Client: &fakeClient{tools: []mcp.Tool{{Name: "echo"}}}}
	m.mu.Unlock()

	assert.True(t, m.IsConnected("srv-1"))
	cl, ok := m.GetSession("srv-1")
	require.True(t, ok)
	tools, err := cl.ListTools(context.Background())
	require.NoError(t, err)
	assert.Len(t, tools, 1)
}

func TestManager_DisconnectClosesClient(t *testing.T) {
	m := NewManager(config.Default().Retry)
	fc := &fakeClient{}
	m.mu.Lock()
	m.connections["srv-1"] = &ManagedConnection{ServerID: "srv-1", Client: fc}
	m.mu.Unlock()

	require.NoError(t, m.Disconnect(context.Background(), "srv-1"))
	assert.True(t, fc.closed)
	assert.False(t, m.IsConnected("srv-1"))
}

func TestManager_HealthCheckNoSession(t *testing.T) {
	m := NewManager(config.Default().Retry)
	result := m.HealthCheck(context.Background(), "missing")
	assert.False(t, result.Healthy)
	assert.Equal(t, "no live session", result.Reason)
}

func TestManager_HealthCheckHealthy(t *testing.T) {
	m := NewManager(config.Default().Retry)
	m.mu.Lock()
	m.connections["srv-1"] = &ManagedConnection{ServerID: "srv-1", Client: &fakeClient{}}
	m.mu.Unlock()

	result := m.HealthCheck(context.Background(), "srv-1")
	assert.True(t, result.Healthy)
}

func TestManager_ListToolsNoSessionIsNotFound(t *testing.T) {
	m := NewManager(config.Default().Retry)
	_, err := m.ListTools(context.Background(), "missing")
	assert.Error(t, err)
}
