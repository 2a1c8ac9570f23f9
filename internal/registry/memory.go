package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xenophobed/isA-MCP-sub015/internal/apierrors"
	"github.com/xenophobed/isA-MCP-sub015/internal/domain"
	"github.com/xenophobed/isA-MCP-sub015/pkg/logging"
)

// Memory is the in-process fallback Registry implementation, used
// when no relational store is wired. All access is guarded by a
// single RWMutex; no suspension point is ever held across a lock.
type Memory struct {
	mu      sync.RWMutex
	servers map[string]domain.ServerRecord
	sink    EventSink
}

var _ Registry = (*Memory)(nil)

// NewMemory constructs an empty in-memory Registry. A nil sink
// installs a no-op observer.
func NewMemory(sink EventSink) *Memory {
	if sink == nil {
		sink = noopSink{}
	}
	return &Memory{
		servers: make(map[string]domain.ServerRecord),
		sink:    sink,
	}
}

func (m *Memory) Add(ctx context.Context, cfg domain.RegisterConfig) (domain.ServerRecord, error) {
	if cfg.Name == "" {
		return domain.ServerRecord{}, fmt.Errorf("%w: name must not be empty", apierrors.ErrValidation)
	}
	if cfg.Transport == "" {
		return domain.ServerRecord{}, fmt.Errorf("%w: transport kind required", apierrors.ErrValidation)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.servers {
		if existing.Name != cfg.Name {
			continue
		}
		// Defensive default: a duplicate global name always collides;
		// a duplicate within the same org collides; different orgs
		// may reuse the same name.
		if existing.Tenant.IsGlobal || existing.Tenant.OrgID == cfg.Tenant.OrgID {
			return domain.ServerRecord{}, fmt.Errorf("%w: %s", apierrors.ErrDuplicateName, cfg.Name)
		}
	}

	rec := domain.ServerRecord{
		ID:                 uuid.NewString(),
		Name:               cfg.Name,
		Description:        cfg.Description,
		Transport:          cfg.Transport,
		ConnectionConfig:   cfg.ConnectionConfig,
		HealthCheckAddress: cfg.HealthCheckAddress,
		Status:             domain.StatusDisconnected,
		ToolCount:          0,
		Tenant:             cfg.Tenant,
		RegisteredAt:       time.Now().UTC(),
	}
	m.servers[rec.ID] = rec

	logging.Info("Registry", "registered server %s (%s)", rec.Name, logging.TruncateID(rec.ID))
	m.sink.Emit(ctx, "server.registered", map[string]any{"server_id": rec.ID, "status": string(rec.Status)})

	return rec, nil
}

func (m *Memory) Get(_ context.Context, id string) (domain.ServerRecord, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.servers[id]
	return rec, ok, nil
}

func (m *Memory) GetByName(_ context.Context, name string) (domain.ServerRecord, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, rec := range m.servers {
		if rec.Name == name {
			return rec, true, nil
		}
	}
	return domain.ServerRecord{}, false, nil
}

// List returns records visible to tenantOrgID: when tenantOrgID is
// empty, only global records are visible (the defensive default);
// otherwise globals plus that tenant's own records.
func (m *Memory) List(_ context.Context, status *domain.ServerStatus, tenantOrgID string) ([]domain.ServerRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.ServerRecord, 0, len(m.servers))
	for _, rec := range m.servers {
		if status != nil && rec.Status != *status {
			continue
		}
		if !rec.Tenant.Visible(tenantOrgID) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// ListAll ignores tenant scoping; it is used by internal housekeeping
// sweeps (discovery, health loop) rather than caller-facing queries.
func (m *Memory) ListAll(_ context.Context, status *domain.ServerStatus) ([]domain.ServerRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.ServerRecord, 0, len(m.servers))
	for _, rec := range m.servers {
		if status != nil && rec.Status != *status {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (m *Memory) Update(_ context.Context, id string, patch domain.ServerPatch) (domain.ServerRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.servers[id]
	if !ok {
		return domain.ServerRecord{}, apierrors.NewServerNotFoundError(id)
	}
	if patch.Description != nil {
		rec.Description = *patch.Description
	}
	if patch.ConnectionConfig != nil {
		rec.ConnectionConfig = patch.ConnectionConfig
	}
	if patch.HealthCheckAddress != nil {
		rec.HealthCheckAddress = *patch.HealthCheckAddress
	}
	m.servers[id] = rec
	return rec, nil
}

func (m *Memory) UpdateStatus(ctx context.Context, id string, status domain.ServerStatus, errMsg string) (bool, error) {
	m.mu.Lock()
	rec, ok := m.servers[id]
	if !ok {
		m.mu.Unlock()
		return false, nil
	}

	rec.Status = status
	rec.ErrorMessage = errMsg
	if status == domain.StatusConnected {
		rec.ConnectedAt = nowPtr()
	}
	m.servers[id] = rec
	m.mu.Unlock()

	m.sink.Emit(ctx, "server.status_changed", map[string]any{"server_id": id, "status": string(status)})
	return true, nil
}

func (m *Memory) UpdateToolCount(_ context.Context, id string, count int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.servers[id]
	if !ok {
		return false, nil
	}
	rec.ToolCount = count
	m.servers[id] = rec
	return true, nil
}

func (m *Memory) UpdateLastHealthCheck(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.servers[id]
	if !ok {
		return false, nil
	}
	rec.LastHealthCheck = nowPtr()
	m.servers[id] = rec
	return true, nil
}

func (m *Memory) Remove(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.servers[id]; !ok {
		return false, nil
	}
	delete(m.servers, id)
	return true, nil
}
