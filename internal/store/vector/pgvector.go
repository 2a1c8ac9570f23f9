package vector

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgv "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/xenophobed/isA-MCP-sub015/internal/domain"
)

// Pgvector is the production VectorStore, backed by the pgvector
// extension with an HNSW cosine-distance index.
type Pgvector struct {
	pool *pgxpool.Pool
}

var _ Store = (*Pgvector)(nil)

// NewPgvector wraps an already-connected, already-migrated pool. The
// pool must have been built with pgxvec.RegisterTypes wired into its
// AfterConnect hook.
func NewPgvector(pool *pgxpool.Pool) *Pgvector {
	return &Pgvector{pool: pool}
}

// RegisterTypes installs the pgvector codec on a connection; callers
// wire this into pgxpool.Config.AfterConnect before calling Connect.
func RegisterTypes(ctx context.Context, conn *pgx.Conn) error {
	return pgxvec.RegisterTypes(ctx, conn)
}

// Migrate creates the tool_vectors table and its HNSW index if absent.
func Migrate(ctx context.Context, pool *pgxpool.Pool, dimensions int) error {
	_, err := pool.Exec(ctx, fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS tool_vectors (
	tool_id   BIGINT PRIMARY KEY,
	embedding vector(%d) NOT NULL,
	payload   JSONB NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_tool_vectors_embedding
	ON tool_vectors USING hnsw (embedding vector_cosine_ops)`, dimensions))
	if err != nil {
		return fmt.Errorf("migrate tool_vectors table: %w", err)
	}
	return nil
}

func (p *Pgvector) Upsert(ctx context.Context, rec domain.VectorRecord) error {
	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return fmt.Errorf("marshal vector payload: %w", err)
	}

	_, err = p.pool.Exec(ctx, `
INSERT INTO tool_vectors (tool_id, embedding, payload)
VALUES ($1, $2, $3)
ON CONFLICT (tool_id) DO UPDATE SET embedding = EXCLUDED.embedding, payload = EXCLUDED.payload`,
		rec.ToolID, pgv.NewVector(rec.Vector), payload)
	if err != nil {
		return fmt.Errorf("upsert vector for tool %d: %w", rec.ToolID, err)
	}
	return nil
}

func (p *Pgvector) Delete(ctx context.Context, toolID int64) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM tool_vectors WHERE tool_id = $1`, toolID)
	if err != nil {
		return fmt.Errorf("delete vector for tool %d: %w", toolID, err)
	}
	return nil
}

// Search ranks by ascending cosine distance (pgvector's <=> operator)
// and reports score = 1 - distance, so higher is better.
func (p *Pgvector) Search(ctx context.Context, queryVector []float32, filter Filter, limit int) ([]domain.ScoredTool, error) {
	args := []any{pgv.NewVector(queryVector)}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	var conds []string
	if filter.ExternalOnly {
		conds = append(conds, "(payload->>'is_external')::boolean = TRUE")
	}
	if len(filter.ServerNames) > 0 {
		conds = append(conds, "payload->>'source_server_name' = ANY("+arg(filter.ServerNames)+"::text[])")
	}

	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}
	if limit <= 0 {
		limit = 10
	}

	query := fmt.Sprintf(`
SELECT tool_id, embedding, payload, 1 - (embedding <=> $1) AS score
FROM tool_vectors
%s
ORDER BY embedding <=> $1
LIMIT %s`, where, arg(limit))

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search tool vectors: %w", err)
	}
	defer rows.Close()

	var out []domain.ScoredTool
	for rows.Next() {
		var toolID int64
		var vec pgv.Vector
		var payloadRaw []byte
		var score float32

		if err := rows.Scan(&toolID, &vec, &payloadRaw, &score); err != nil {
			return nil, fmt.Errorf("scan vector search row: %w", err)
		}

		var payload map[string]any
		if len(payloadRaw) > 0 {
			if err := json.Unmarshal(payloadRaw, &payload); err != nil {
				return nil, fmt.Errorf("unmarshal vector payload: %w", err)
			}
		}

		out = append(out, domain.ScoredTool{
			Tool:  domain.VectorRecord{ToolID: toolID, Vector: vec.Slice(), Payload: payload},
			Score: score,
		})
	}
	return out, rows.Err()
}
