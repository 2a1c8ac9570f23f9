// Package registry implements the Server Registry: the authoritative
// store and query surface for ServerRecords. Registry is a single
// interface with two implementations — an in-process map and a
// Postgres-backed store — so tests and production share identical
// semantics.
package registry

import (
	"context"
	"time"

	"github.com/xenophobed/isA-MCP-sub015/internal/domain"
)

// Registry is the Server Registry's public contract.
type Registry interface {
	Add(ctx context.Context, cfg domain.RegisterConfig) (domain.ServerRecord, error)
	Get(ctx context.Context, id string) (domain.ServerRecord, bool, error)
	GetByName(ctx context.Context, name string) (domain.ServerRecord, bool, error)
	List(ctx context.Context, status *domain.ServerStatus, tenantOrgID string) ([]domain.ServerRecord, error)
	// ListAll ignores tenant scoping entirely; it exists for internal
	// housekeeping sweeps (discovery, health loop) that must see every
	// record regardless of caller visibility rules.
	ListAll(ctx context.Context, status *domain.ServerStatus) ([]domain.ServerRecord, error)
	Update(ctx context.Context, id string, patch domain.ServerPatch) (domain.ServerRecord, error)
	UpdateStatus(ctx context.Context, id string, status domain.ServerStatus, errMsg string) (bool, error)
	UpdateToolCount(ctx context.Context, id string, count int) (bool, error)
	UpdateLastHealthCheck(ctx context.Context, id string) (bool, error)
	Remove(ctx context.Context, id string) (bool, error)
}

// EventSink is the minimal optional observer of status changes.
// Implementations must never block the registry.
type EventSink interface {
	Emit(ctx context.Context, eventName string, payload map[string]any)
}

// noopSink is used when no EventSink is wired.
type noopSink struct{}

func (noopSink) Emit(context.Context, string, map[string]any) {}

func nowPtr() *time.Time {
	t := time.Now().UTC()
	return &t
}
