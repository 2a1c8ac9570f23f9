// Package vector implements the VectorStore capability: the
// embedding-indexed twin of a ToolRecord, with an in-memory brute
// force implementation for tests and a pgvector-backed implementation
// for production similarity search.
package vector

import (
	"context"

	"github.com/xenophobed/isA-MCP-sub015/internal/domain"
)

// Filter narrows a Search call to payload attributes. An empty
// ServerNames means no server restriction.
type Filter struct {
	ExternalOnly bool
	ServerNames  []string
}

// Store is the VectorStore capability interface.
type Store interface {
	Upsert(ctx context.Context, rec domain.VectorRecord) error
	Delete(ctx context.Context, toolID int64) error
	Search(ctx context.Context, queryVector []float32, filter Filter, limit int) ([]domain.ScoredTool, error)
}
