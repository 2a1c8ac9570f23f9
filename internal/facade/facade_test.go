package facade

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenophobed/isA-MCP-sub015/internal/domain"
	"github.com/xenophobed/isA-MCP-sub015/internal/registry"
)

type fakeSessions struct {
	mu         sync.Mutex
	connected  map[string]bool
	connectErr error
	health     map[string]domain.HealthResult
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{connected: map[string]bool{}, health: map[string]domain.HealthResult{}}
}

func (f *fakeSessions) Connect(_ context.Context, rec domain.ServerRecord) error {
	if f.connectErr != nil {
		return f.connectErr
	}
	f.mu.Lock()
	f.connected[rec.ID] = true
	f.mu.Unlock()
	return nil
}

func (f *fakeSessions) Disconnect(_ context.Context, serverID string) error {
	f.mu.Lock()
	delete(f.connected, serverID)
	f.mu.Unlock()
	return nil
}

func (f *fakeSessions) Reconnect(ctx context.Context, rec domain.ServerRecord) error {
	return f.Connect(ctx, rec)
}

func (f *fakeSessions) HealthCheck(_ context.Context, serverID string) domain.HealthResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.health[serverID]; ok {
		return r
	}
	return domain.HealthResult{ServerID: serverID, Healthy: true}
}

func (f *fakeSessions) IsConnected(serverID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected[serverID]
}

type fakeDiscoverer struct {
	discoverCalls int
	removeCalls   int
	discoverErr   error
}

func (f *fakeDiscoverer) DiscoverTools(context.Context, string) ([]domain.ToolRecord, error) {
	f.discoverCalls++
	return nil, f.discoverErr
}

func (f *fakeDiscoverer) RemoveServerTools(context.Context, string) (int, error) {
	f.removeCalls++
	return 0, nil
}

func (f *fakeDiscoverer) SearchTools(context.Context, string, []string, int) ([]domain.ScoredTool, error) {
	return nil, nil
}

func (f *fakeDiscoverer) ListToolsBySkill(context.Context, string) ([]domain.ToolRecord, error) {
	return nil, nil
}

type fakeExecutor struct{}

func (fakeExecutor) Execute(context.Context, string, string, map[string]any) (domain.InvocationResult, error) {
	return domain.InvocationResult{}, nil
}

func setup(t *testing.T) (*Facade, registry.Registry, *fakeSessions, *fakeDiscoverer, domain.ServerRecord) {
	t.Helper()
	reg := registry.NewMemory(nil)
	rec, err := reg.Add(context.Background(), domain.RegisterConfig{Name: "weather", Transport: domain.TransportStdio, Tenant: domain.TenantScope{IsGlobal: true}})
	require.NoError(t, err)

	sessions := newFakeSessions()
	disc := &fakeDiscoverer{}
	f := New(reg, sessions, disc, fakeExecutor{}, 3, time.Hour)
	return f, reg, sessions, disc, rec
}

func TestFacade_ConnectServerConnectsAndDiscovers(t *testing.T) {
	f, reg, sessions, disc, rec := setup(t)

	require.NoError(t, f.ConnectServer(context.Background(), rec.ID))
	assert.True(t, sessions.IsConnected(rec.ID))
	assert.Equal(t, 1, disc.discoverCalls)

	got, _, err := reg.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConnected, got.Status)
}

func TestFacade_ConnectServerIdempotent(t *testing.T) {
	f, _, sessions, disc, rec := setup(t)
	require.NoError(t, f.ConnectServer(context.Background(), rec.ID))
	require.NoError(t, f.ConnectServer(context.Background(), rec.ID))
	assert.True(t, sessions.IsConnected(rec.ID))
	assert.Equal(t, 1, disc.discoverCalls)
}

func TestFacade_ConnectServerDiscoveryFailureNonFatal(t *testing.T) {
	f, reg, _, disc, rec := setup(t)
	disc.discoverErr = fmt.Errorf("boom")

	require.NoError(t, f.ConnectServer(context.Background(), rec.ID))
	got, _, err := reg.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConnected, got.Status)
}

func TestFacade_DisconnectServer(t *testing.T) {
	f, reg, sessions, _, rec := setup(t)
	require.NoError(t, f.ConnectServer(context.Background(), rec.ID))
	require.NoError(t, f.DisconnectServer(context.Background(), rec.ID))

	assert.False(t, sessions.IsConnected(rec.ID))
	got, _, err := reg.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDisconnected, got.Status)
}

func TestFacade_RemoveServerPurgesEverything(t *testing.T) {
	f, reg, _, disc, rec := setup(t)
	require.NoError(t, f.ConnectServer(context.Background(), rec.ID))
	require.NoError(t, f.RemoveServer(context.Background(), rec.ID))

	assert.Equal(t, 1, disc.removeCalls)
	_, ok, err := reg.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFacade_HealthSweepDemotesAfterThreshold(t *testing.T) {
	f, reg, sessions, _, rec := setup(t)
	require.NoError(t, f.ConnectServer(context.Background(), rec.ID))
	sessions.health[rec.ID] = domain.HealthResult{Healthy: false, Reason: "timeout"}

	for i := 0; i < 3; i++ {
		f.sweepHealth(context.Background())
	}

	got, _, err := reg.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDegraded, got.Status)
	assert.NotNil(t, got.LastHealthCheck)
}

func TestFacade_HealthSweepResetsOnRecovery(t *testing.T) {
	f, _, sessions, _, rec := setup(t)
	require.NoError(t, f.ConnectServer(context.Background(), rec.ID))
	sessions.health[rec.ID] = domain.HealthResult{Healthy: false}
	f.sweepHealth(context.Background())
	f.sweepHealth(context.Background())

	sessions.health[rec.ID] = domain.HealthResult{Healthy: true}
	f.sweepHealth(context.Background())

	f.healthMu.RLock()
	failures := f.healthFailures[rec.ID]
	f.healthMu.RUnlock()
	assert.Equal(t, 0, failures)
}

func TestFacade_ReconnectUnhealthy(t *testing.T) {
	f, reg, sessions, disc, rec := setup(t)
	require.NoError(t, f.ConnectServer(context.Background(), rec.ID))
	_, err := reg.UpdateStatus(context.Background(), rec.ID, domain.StatusDegraded, "flaky")
	require.NoError(t, err)

	results, err := f.ReconnectUnhealthy(context.Background())
	require.NoError(t, err)
	assert.True(t, results[rec.ID])
	assert.True(t, sessions.IsConnected(rec.ID))
	assert.Equal(t, 2, disc.discoverCalls)
}

func TestFacade_GetStateAggregatesCounts(t *testing.T) {
	f, _, _, _, rec := setup(t)
	require.NoError(t, f.ConnectServer(context.Background(), rec.ID))

	state, err := f.GetState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, state.TotalServers)
	assert.Equal(t, 1, state.ConnectedCount)
}

func TestFacade_StartHealthMonitorCancelStops(t *testing.T) {
	f, _, _, _, rec := setup(t)
	require.NoError(t, f.ConnectServer(context.Background(), rec.ID))

	f.healthInterval = 5 * time.Millisecond
	cancel := f.StartHealthMonitor(context.Background())
	time.Sleep(20 * time.Millisecond)
	cancel()
	f.Wait()
}
