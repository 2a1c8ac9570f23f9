package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenophobed/isA-MCP-sub015/internal/domain"
)

// Postgres is the relational Store implementation backed by pgx.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ Store = (*Postgres)(nil)

// NewPostgres wraps an already-connected, already-migrated pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Migrate creates the tools table if it does not already exist.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tools (
	id                BIGSERIAL PRIMARY KEY,
	name              TEXT NOT NULL UNIQUE,
	original_name     TEXT NOT NULL,
	description       TEXT NOT NULL DEFAULT '',
	input_schema      JSONB NOT NULL DEFAULT '{}',
	source_server_id  TEXT NOT NULL,
	is_external       BOOLEAN NOT NULL DEFAULT TRUE,
	is_classified     BOOLEAN NOT NULL DEFAULT FALSE,
	skill_ids         TEXT[] NOT NULL DEFAULT '{}',
	primary_skill_id  TEXT NOT NULL DEFAULT '',
	org_id            TEXT NOT NULL DEFAULT '',
	is_global         BOOLEAN NOT NULL DEFAULT TRUE,
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
)`)
	if err != nil {
		return fmt.Errorf("migrate tools table: %w", err)
	}
	return nil
}

func (p *Postgres) Upsert(ctx context.Context, rec domain.ToolRecord) (int64, error) {
	schema, err := json.Marshal(rec.InputSchema)
	if err != nil {
		return 0, fmt.Errorf("marshal input schema: %w", err)
	}

	var id int64
	err = p.pool.QueryRow(ctx, `
INSERT INTO tools (name, original_name, description, input_schema, source_server_id, is_external, org_id, is_global, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
ON CONFLICT (name) DO UPDATE SET
	description = EXCLUDED.description,
	input_schema = EXCLUDED.input_schema,
	source_server_id = EXCLUDED.source_server_id,
	original_name = EXCLUDED.original_name,
	org_id = EXCLUDED.org_id,
	is_global = EXCLUDED.is_global,
	updated_at = now()
RETURNING id`,
		rec.Name, rec.OriginalName, rec.Description, schema, rec.SourceServerID, rec.IsExternal, rec.Tenant.OrgID, rec.Tenant.IsGlobal).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert tool %s: %w", rec.Name, err)
	}
	return id, nil
}

func (p *Postgres) GetByName(ctx context.Context, namespacedName string) (domain.ToolRecord, bool, error) {
	row := p.pool.QueryRow(ctx, selectToolSQL+" WHERE name = $1", namespacedName)
	return scanOptionalToolRow(row)
}

func (p *Postgres) GetByID(ctx context.Context, id int64) (domain.ToolRecord, bool, error) {
	row := p.pool.QueryRow(ctx, selectToolSQL+" WHERE id = $1", id)
	return scanOptionalToolRow(row)
}

func (p *Postgres) ListIDsByServer(ctx context.Context, serverID string) ([]int64, error) {
	rows, err := p.pool.Query(ctx, `SELECT id FROM tools WHERE source_server_id = $1`, serverID)
	if err != nil {
		return nil, fmt.Errorf("list tool ids for server %s: %w", serverID, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (p *Postgres) UpdateClassification(ctx context.Context, id int64, skillIDs []string, primarySkillID string) error {
	_, err := p.pool.Exec(ctx, `
UPDATE tools SET skill_ids = $1, primary_skill_id = $2, is_classified = TRUE WHERE id = $3`,
		skillIDs, primarySkillID, id)
	if err != nil {
		return fmt.Errorf("update classification for tool %d: %w", id, err)
	}
	return nil
}

// DeleteByServer deletes every tool sourced from serverID in a single
// atomic statement and reports how many rows were removed, rather
// than issuing a count query followed by a separate delete.
func (p *Postgres) DeleteByServer(ctx context.Context, serverID string) (int, error) {
	var count int
	err := p.pool.QueryRow(ctx, `
WITH deleted AS (
	DELETE FROM tools WHERE source_server_id = $1 RETURNING id
)
SELECT COUNT(*) FROM deleted`, serverID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("delete tools for server %s: %w", serverID, err)
	}
	return count, nil
}

// GetToolsBySkill returns every tool carrying skillID among its
// skill_ids, with primary-skill matches ordered first.
func (p *Postgres) GetToolsBySkill(ctx context.Context, skillID string) ([]domain.ToolRecord, error) {
	rows, err := p.pool.Query(ctx, selectToolSQL+`
WHERE $1 = ANY(skill_ids)
ORDER BY (primary_skill_id = $1) DESC, name ASC`, skillID)
	if err != nil {
		return nil, fmt.Errorf("list tools for skill %s: %w", skillID, err)
	}
	defer rows.Close()
	return scanToolRows(rows)
}

// ListDefaults returns a representative page of tools for an empty
// search query, newest-classified first.
func (p *Postgres) ListDefaults(ctx context.Context, limit int) ([]domain.ToolRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := p.pool.Query(ctx, selectToolSQL+`
ORDER BY is_classified DESC, updated_at DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list default tools: %w", err)
	}
	defer rows.Close()
	return scanToolRows(rows)
}

func scanToolRows(rows pgx.Rows) ([]domain.ToolRecord, error) {
	var out []domain.ToolRecord
	for rows.Next() {
		rec, _, err := scanOptionalToolRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

const selectToolSQL = `SELECT id, name, original_name, description, input_schema, source_server_id, is_external, is_classified, skill_ids, primary_skill_id, org_id, is_global, updated_at FROM tools`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOptionalToolRow(row rowScanner) (domain.ToolRecord, bool, error) {
	var rec domain.ToolRecord
	var schema []byte
	var orgID string
	var isGlobal bool

	err := row.Scan(&rec.ID, &rec.Name, &rec.OriginalName, &rec.Description, &schema, &rec.SourceServerID,
		&rec.IsExternal, &rec.IsClassified, &rec.SkillIDs, &rec.PrimarySkillID, &orgID, &isGlobal, &rec.UpdatedAt)
	if err == pgx.ErrNoRows {
		return domain.ToolRecord{}, false, nil
	}
	if err != nil {
		return domain.ToolRecord{}, false, err
	}

	rec.Tenant = domain.TenantScope{OrgID: orgID, IsGlobal: isGlobal}
	if len(schema) > 0 {
		if err := json.Unmarshal(schema, &rec.InputSchema); err != nil {
			return domain.ToolRecord{}, false, fmt.Errorf("unmarshal input schema: %w", err)
		}
	}
	return rec, true, nil
}
