// Package tool implements the ToolStore capability: the relational
// half of a discovered tool's record, keyed by its namespaced name,
// with an in-memory implementation for tests and a Postgres-backed
// implementation for production.
package tool

import (
	"context"

	"github.com/xenophobed/isA-MCP-sub015/internal/domain"
)

// Store is the ToolStore capability interface.
type Store interface {
	// Upsert inserts or overwrites the tool keyed by rec.Name, returning
	// the assigned (or existing) id.
	Upsert(ctx context.Context, rec domain.ToolRecord) (int64, error)
	GetByName(ctx context.Context, namespacedName string) (domain.ToolRecord, bool, error)
	GetByID(ctx context.Context, id int64) (domain.ToolRecord, bool, error)
	ListIDsByServer(ctx context.Context, serverID string) ([]int64, error)
	// UpdateClassification applies skill assignments idempotently.
	UpdateClassification(ctx context.Context, id int64, skillIDs []string, primarySkillID string) error
	// DeleteByServer atomically deletes every tool sourced from
	// serverID and reports how many rows were removed.
	DeleteByServer(ctx context.Context, serverID string) (int, error)
	// GetToolsBySkill returns every classified tool carrying skillID
	// among its skill_ids, with tools whose primary_skill_id is skillID
	// sorted first.
	GetToolsBySkill(ctx context.Context, skillID string) ([]domain.ToolRecord, error)
	// ListDefaults returns a representative set of tools to show when a
	// search query is empty, rather than failing or returning nothing.
	ListDefaults(ctx context.Context, limit int) ([]domain.ToolRecord, error)
}
