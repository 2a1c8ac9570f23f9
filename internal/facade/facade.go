// Package facade implements the Aggregator Facade: thin orchestration
// over the Server Registry, Session Manager and Tool Aggregator, plus
// the consecutive-failure health bookkeeping that demotes a server to
// degraded.
package facade

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xenophobed/isA-MCP-sub015/internal/apierrors"
	"github.com/xenophobed/isA-MCP-sub015/internal/domain"
	"github.com/xenophobed/isA-MCP-sub015/internal/registry"
	"github.com/xenophobed/isA-MCP-sub015/pkg/logging"
)

// SessionController is the slice of the Session Manager the facade
// drives directly.
type SessionController interface {
	Connect(ctx context.Context, rec domain.ServerRecord) error
	Disconnect(ctx context.Context, serverID string) error
	Reconnect(ctx context.Context, rec domain.ServerRecord) error
	HealthCheck(ctx context.Context, serverID string) domain.HealthResult
	IsConnected(serverID string) bool
}

// Discoverer is the slice of the Tool Aggregator the facade drives
// directly for connect/disconnect lifecycle management.
type Discoverer interface {
	DiscoverTools(ctx context.Context, serverID string) ([]domain.ToolRecord, error)
	RemoveServerTools(ctx context.Context, serverID string) (int, error)
	SearchTools(ctx context.Context, query string, serverFilter []string, limit int) ([]domain.ScoredTool, error)
	ListToolsBySkill(ctx context.Context, skillID string) ([]domain.ToolRecord, error)
}

// Executor is the slice of the Request Router the facade forwards
// tool invocations to.
type Executor interface {
	Execute(ctx context.Context, serverID, name string, args map[string]any) (domain.InvocationResult, error)
}

// Facade is the orchestration entry point used by transport-facing
// callers (CLI, HTTP API).
type Facade struct {
	registry   registry.Registry
	sessions   SessionController
	aggregator Discoverer
	router     Executor

	healthMu         sync.RWMutex
	healthFailures   map[string]int
	failureThreshold int
	healthInterval   time.Duration
	lastHealthSweep  *time.Time

	wg sync.WaitGroup
}

// New builds a Facade. failureThreshold <= 0 defaults to 3;
// healthInterval <= 0 defaults to 30s, matching config.Default().
func New(reg registry.Registry, sessions SessionController, aggregator Discoverer, router Executor, failureThreshold int, healthInterval time.Duration) *Facade {
	if failureThreshold <= 0 {
		failureThreshold = 3
	}
	if healthInterval <= 0 {
		healthInterval = 30 * time.Second
	}
	return &Facade{
		registry:         reg,
		sessions:         sessions,
		aggregator:       aggregator,
		router:           router,
		healthFailures:   make(map[string]int),
		failureThreshold: failureThreshold,
		healthInterval:   healthInterval,
	}
}

// RegisterServer adds a new server record without connecting to it.
func (f *Facade) RegisterServer(ctx context.Context, cfg domain.RegisterConfig) (domain.ServerRecord, error) {
	return f.registry.Add(ctx, cfg)
}

// ExecuteTool resolves and forwards a tool call through the Request
// Router; serverID may be empty to let the router resolve by name.
func (f *Facade) ExecuteTool(ctx context.Context, name string, args map[string]any, serverID string) (domain.InvocationResult, error) {
	return f.router.Execute(ctx, serverID, name, args)
}

// SearchTools delegates to the Tool Aggregator's embedding search.
func (f *Facade) SearchTools(ctx context.Context, query string, serverFilter []string, limit int) ([]domain.ScoredTool, error) {
	return f.aggregator.SearchTools(ctx, query, serverFilter, limit)
}

// ListToolsBySkill returns every tool classified under skillID, with
// primary-skill matches ordered first.
func (f *Facade) ListToolsBySkill(ctx context.Context, skillID string) ([]domain.ToolRecord, error) {
	return f.aggregator.ListToolsBySkill(ctx, skillID)
}

// ListServers delegates to the Registry's tenant-scoped listing.
func (f *Facade) ListServers(ctx context.Context, status *domain.ServerStatus, tenantOrgID string) ([]domain.ServerRecord, error) {
	return f.registry.List(ctx, status, tenantOrgID)
}

// GetServer delegates to the Registry.
func (f *Facade) GetServer(ctx context.Context, id string) (domain.ServerRecord, bool, error) {
	return f.registry.Get(ctx, id)
}

// DiscoverTools runs the Tool Aggregator's discovery sweep for one
// server and returns the tools it recorded.
func (f *Facade) DiscoverTools(ctx context.Context, serverID string) ([]domain.ToolRecord, error) {
	return f.aggregator.DiscoverTools(ctx, serverID)
}

// HealthCheckOne probes a single server's live session directly
// (outside the periodic sweep) and records the outcome in
// healthFailures exactly as a sweep does, so repeated failures demote
// a connected server to degraded.
func (f *Facade) HealthCheckOne(ctx context.Context, id string) (domain.HealthResult, error) {
	rec, ok, err := f.registry.Get(ctx, id)
	if err != nil {
		return domain.HealthResult{}, err
	}
	if !ok {
		return domain.HealthResult{}, apierrors.NewServerNotFoundError(id)
	}
	result := f.sessions.HealthCheck(ctx, id)
	f.recordHealth(ctx, rec, result)
	return result, nil
}

// GetState returns the aggregated server/tool counters and the time
// of the last health sweep.
func (f *Facade) GetState(ctx context.Context) (domain.AggregatorState, error) {
	servers, err := f.registry.ListAll(ctx, nil)
	if err != nil {
		return domain.AggregatorState{}, err
	}

	state := domain.AggregatorState{TotalServers: len(servers)}
	for _, rec := range servers {
		state.TotalTools += rec.ToolCount
		switch rec.Status {
		case domain.StatusConnected:
			state.ConnectedCount++
		case domain.StatusDegraded:
			state.DegradedCount++
		case domain.StatusError:
			state.ErrorCount++
		case domain.StatusDisconnected:
			state.DisconnectedCount++
		}
	}

	f.healthMu.RLock()
	state.LastHealthSweep = f.lastHealthSweep
	f.healthMu.RUnlock()

	return state, nil
}

// ConnectServer is idempotent: if the record is already connected and
// the Session Manager agrees, it is a no-op. Otherwise it marks the
// record connecting, (re)connects, and triggers discovery; a discovery
// failure does not fail connect.
func (f *Facade) ConnectServer(ctx context.Context, serverID string) error {
	rec, ok, err := f.registry.Get(ctx, serverID)
	if err != nil {
		return err
	}
	if !ok {
		return apierrors.NewServerNotFoundError(serverID)
	}

	if rec.Status == domain.StatusConnected && f.sessions.IsConnected(serverID) {
		return nil
	}

	if _, err := f.registry.UpdateStatus(ctx, serverID, domain.StatusConnecting, ""); err != nil {
		logging.Warn("Facade", "update status before connect to %s: %v", rec.Name, err)
	}

	if err := f.sessions.Connect(ctx, rec); err != nil {
		if _, uerr := f.registry.UpdateStatus(ctx, serverID, domain.StatusError, err.Error()); uerr != nil {
			logging.Warn("Facade", "update status after failed connect to %s: %v", rec.Name, uerr)
		}
		return err
	}

	if _, err := f.registry.UpdateStatus(ctx, serverID, domain.StatusConnected, ""); err != nil {
		logging.Warn("Facade", "update status after connect to %s: %v", rec.Name, err)
	}
	f.clearHealthFailures(serverID)

	if _, err := f.aggregator.DiscoverTools(ctx, serverID); err != nil {
		logging.Warn("Facade", "discovery after connect to %s failed: %v", rec.Name, err)
	}

	return nil
}

// DisconnectServer closes the live session and marks the record
// disconnected, without touching its discovered tools.
func (f *Facade) DisconnectServer(ctx context.Context, serverID string) error {
	rec, ok, err := f.registry.Get(ctx, serverID)
	if err != nil {
		return err
	}
	if !ok {
		return apierrors.NewServerNotFoundError(serverID)
	}

	if err := f.sessions.Disconnect(ctx, serverID); err != nil {
		logging.Warn("Facade", "disconnect %s: %v", rec.Name, err)
	}
	if _, err := f.registry.UpdateStatus(ctx, serverID, domain.StatusDisconnected, ""); err != nil {
		logging.Warn("Facade", "update status after disconnect from %s: %v", rec.Name, err)
	}
	f.clearHealthFailures(serverID)
	return nil
}

// RemoveServer disconnects, purges every discovered tool, then
// deletes the registry record itself.
func (f *Facade) RemoveServer(ctx context.Context, serverID string) error {
	if err := f.DisconnectServer(ctx, serverID); err != nil && !apierrors.IsNotFound(err) {
		return err
	}

	if _, err := f.aggregator.RemoveServerTools(ctx, serverID); err != nil {
		logging.Warn("Facade", "remove tools for %s: %v", serverID, err)
	}

	if _, err := f.registry.Remove(ctx, serverID); err != nil {
		return err
	}
	f.clearHealthFailures(serverID)
	return nil
}

// StartHealthMonitor launches a periodic sweep that probes every
// connected server and demotes it to degraded after enough
// consecutive failures. The returned cancel func stops the loop; the
// caller should await Wait() (or let the process exit) to ensure the
// goroutine has actually returned.
func (f *Facade) StartHealthMonitor(ctx context.Context) context.CancelFunc {
	loopCtx, cancel := context.WithCancel(ctx)

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		ticker := time.NewTicker(f.healthInterval)
		defer ticker.Stop()

		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				f.sweepHealth(loopCtx)
			}
		}
	}()

	return cancel
}

// Wait blocks until a previously started health monitor goroutine has
// fully returned after being cancelled.
func (f *Facade) Wait() { f.wg.Wait() }

func (f *Facade) sweepHealth(ctx context.Context) {
	connected := domain.StatusConnected
	servers, err := f.registry.ListAll(ctx, &connected)
	if err != nil {
		logging.Warn("Facade", "health sweep: list connected servers: %v", err)
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, rec := range servers {
		rec := rec
		g.Go(func() error {
			result := f.sessions.HealthCheck(gctx, rec.ID)
			f.recordHealth(gctx, rec, result)
			return nil
		})
	}
	_ = g.Wait()

	now := time.Now().UTC()
	f.healthMu.Lock()
	f.lastHealthSweep = &now
	f.healthMu.Unlock()
}

func (f *Facade) recordHealth(ctx context.Context, rec domain.ServerRecord, result domain.HealthResult) {
	f.healthMu.Lock()
	if result.Healthy {
		f.healthFailures[rec.ID] = 0
	} else {
		f.healthFailures[rec.ID]++
	}
	failures := f.healthFailures[rec.ID]
	f.healthMu.Unlock()

	if _, err := f.registry.UpdateLastHealthCheck(ctx, rec.ID); err != nil {
		logging.Warn("Facade", "update last health check for %s: %v", rec.Name, err)
	}

	if !result.Healthy && failures >= f.failureThreshold && rec.Status == domain.StatusConnected {
		if _, err := f.registry.UpdateStatus(ctx, rec.ID, domain.StatusDegraded, result.Reason); err != nil {
			logging.Warn("Facade", "demote %s to degraded: %v", rec.Name, err)
		}
	}
}

func (f *Facade) clearHealthFailures(serverID string) {
	f.healthMu.Lock()
	delete(f.healthFailures, serverID)
	f.healthMu.Unlock()
}

// ReconnectUnhealthy attempts to reconnect every server currently in
// degraded or error status, returning a map of server id to whether
// the reconnect succeeded.
func (f *Facade) ReconnectUnhealthy(ctx context.Context) (map[string]bool, error) {
	degraded := domain.StatusDegraded
	errored := domain.StatusError

	degradedServers, err := f.registry.ListAll(ctx, &degraded)
	if err != nil {
		return nil, err
	}
	erroredServers, err := f.registry.ListAll(ctx, &errored)
	if err != nil {
		return nil, err
	}

	candidates := make([]domain.ServerRecord, 0, len(degradedServers)+len(erroredServers))
	candidates = append(candidates, degradedServers...)
	candidates = append(candidates, erroredServers...)

	results := make(map[string]bool, len(candidates))
	for _, rec := range candidates {
		err := f.sessions.Reconnect(ctx, rec)
		if err != nil {
			if _, uerr := f.registry.UpdateStatus(ctx, rec.ID, domain.StatusError, err.Error()); uerr != nil {
				logging.Warn("Facade", "update status after failed reconnect to %s: %v", rec.Name, uerr)
			}
			results[rec.ID] = false
			continue
		}

		if _, uerr := f.registry.UpdateStatus(ctx, rec.ID, domain.StatusConnected, ""); uerr != nil {
			logging.Warn("Facade", "update status after reconnect to %s: %v", rec.Name, uerr)
		}
		f.clearHealthFailures(rec.ID)
		if _, derr := f.aggregator.DiscoverTools(ctx, rec.ID); derr != nil {
			logging.Warn("Facade", "discovery after reconnect to %s failed: %v", rec.Name, derr)
		}
		results[rec.ID] = true
	}

	return results, nil
}
