package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenophobed/isA-MCP-sub015/internal/apierrors"
	"github.com/xenophobed/isA-MCP-sub015/internal/domain"
	"github.com/xenophobed/isA-MCP-sub015/pkg/logging"
)

// Postgres is the relational Registry implementation backed by pgx.
// It is safe for concurrent use: every method issues its own query
// against the pool, there is no client-side locking.
type Postgres struct {
	pool *pgxpool.Pool
	sink EventSink
}

var _ Registry = (*Postgres)(nil)

// NewPostgres wraps an already-connected pool. Migrate must have been
// run first.
func NewPostgres(pool *pgxpool.Pool, sink EventSink) *Postgres {
	if sink == nil {
		sink = noopSink{}
	}
	return &Postgres{pool: pool, sink: sink}
}

// Migrate creates the servers table if it does not already exist. It
// is idempotent and safe to call on every startup.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS servers (
	id                   TEXT PRIMARY KEY,
	name                 TEXT NOT NULL,
	description          TEXT NOT NULL DEFAULT '',
	transport            TEXT NOT NULL,
	connection_config    JSONB NOT NULL DEFAULT '{}',
	health_check_address TEXT NOT NULL DEFAULT '',
	status               TEXT NOT NULL DEFAULT 'disconnected',
	tool_count           INTEGER NOT NULL DEFAULT 0,
	error_message        TEXT NOT NULL DEFAULT '',
	org_id               TEXT NOT NULL DEFAULT '',
	is_global            BOOLEAN NOT NULL DEFAULT TRUE,
	registered_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	connected_at         TIMESTAMPTZ,
	last_health_check    TIMESTAMPTZ
)`)
	if err != nil {
		return fmt.Errorf("migrate servers table: %w", err)
	}

	// Guard against pre-existing tables created before tenant scoping
	// was added: add the columns if an older schema is found.
	hasTenant, err := columnExists(ctx, pool, "servers", "org_id")
	if err != nil {
		return fmt.Errorf("check tenant columns: %w", err)
	}
	if !hasTenant {
		_, err := pool.Exec(ctx, `
ALTER TABLE servers
	ADD COLUMN IF NOT EXISTS org_id TEXT NOT NULL DEFAULT '',
	ADD COLUMN IF NOT EXISTS is_global BOOLEAN NOT NULL DEFAULT TRUE`)
		if err != nil {
			return fmt.Errorf("add tenant columns: %w", err)
		}
	}

	return nil
}

func columnExists(ctx context.Context, pool *pgxpool.Pool, table, column string) (bool, error) {
	var exists bool
	err := pool.QueryRow(ctx, `
SELECT EXISTS (
	SELECT 1 FROM information_schema.columns
	WHERE table_name = $1 AND column_name = $2
)`, table, column).Scan(&exists)
	return exists, err
}

func (p *Postgres) Add(ctx context.Context, cfg domain.RegisterConfig) (domain.ServerRecord, error) {
	if cfg.Name == "" {
		return domain.ServerRecord{}, fmt.Errorf("%w: name must not be empty", apierrors.ErrValidation)
	}

	connCfg, err := json.Marshal(cfg.ConnectionConfig)
	if err != nil {
		return domain.ServerRecord{}, fmt.Errorf("marshal connection config: %w", err)
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return domain.ServerRecord{}, fmt.Errorf("begin add transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// A name collides if an existing registration with the same name
	// is global, or belongs to the same tenant; different tenants may
	// reuse a name.
	var collision bool
	err = tx.QueryRow(ctx, `
SELECT EXISTS (
	SELECT 1 FROM servers WHERE name = $1 AND (is_global OR org_id = $2)
)`, cfg.Name, cfg.Tenant.OrgID).Scan(&collision)
	if err != nil {
		return domain.ServerRecord{}, fmt.Errorf("check duplicate name: %w", err)
	}
	if collision {
		return domain.ServerRecord{}, fmt.Errorf("%w: %s", apierrors.ErrDuplicateName, cfg.Name)
	}

	id := uuid.NewString()
	row := tx.QueryRow(ctx, `
INSERT INTO servers (id, name, description, transport, connection_config, health_check_address, status, org_id, is_global)
VALUES ($1, $2, $3, $4, $5, $6, 'disconnected', $7, $8)
RETURNING id, name, description, transport, connection_config, health_check_address, status, tool_count, error_message, org_id, is_global, registered_at, connected_at, last_health_check`,
		id, cfg.Name, cfg.Description, string(cfg.Transport), connCfg, cfg.HealthCheckAddress, cfg.Tenant.OrgID, cfg.Tenant.IsGlobal)

	rec, err := scanServerRow(row)
	if err != nil {
		return domain.ServerRecord{}, fmt.Errorf("insert server: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.ServerRecord{}, fmt.Errorf("commit add transaction: %w", err)
	}

	logging.Info("Registry", "registered server %s (%s)", rec.Name, logging.TruncateID(rec.ID))
	p.sink.Emit(ctx, "server.registered", map[string]any{"server_id": rec.ID, "status": string(rec.Status)})
	return rec, nil
}

func (p *Postgres) Get(ctx context.Context, id string) (domain.ServerRecord, bool, error) {
	row := p.pool.QueryRow(ctx, selectServerSQL+" WHERE id = $1", id)
	rec, err := scanServerRow(row)
	if err == pgx.ErrNoRows {
		return domain.ServerRecord{}, false, nil
	}
	if err != nil {
		return domain.ServerRecord{}, false, fmt.Errorf("get server %s: %w", id, err)
	}
	return rec, true, nil
}

func (p *Postgres) GetByName(ctx context.Context, name string) (domain.ServerRecord, bool, error) {
	row := p.pool.QueryRow(ctx, selectServerSQL+" WHERE name = $1", name)
	rec, err := scanServerRow(row)
	if err == pgx.ErrNoRows {
		return domain.ServerRecord{}, false, nil
	}
	if err != nil {
		return domain.ServerRecord{}, false, fmt.Errorf("get server by name %s: %w", name, err)
	}
	return rec, true, nil
}

func (p *Postgres) List(ctx context.Context, status *domain.ServerStatus, tenantOrgID string) ([]domain.ServerRecord, error) {
	// An empty tenantOrgID sees global records only, as in Memory.List.
	query := selectServerSQL + " WHERE (is_global OR ($1 <> '' AND org_id = $1))"
	args := []any{tenantOrgID}
	if status != nil {
		query += " AND status = $2"
		args = append(args, string(*status))
	}
	query += " ORDER BY registered_at"

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list servers: %w", err)
	}
	defer rows.Close()

	var out []domain.ServerRecord
	for rows.Next() {
		rec, err := scanServerRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan server row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListAll ignores tenant scoping; it is used by internal housekeeping
// sweeps (discovery, health loop) rather than caller-facing queries.
func (p *Postgres) ListAll(ctx context.Context, status *domain.ServerStatus) ([]domain.ServerRecord, error) {
	query := selectServerSQL
	var args []any
	if status != nil {
		query += " WHERE status = $1"
		args = append(args, string(*status))
	}
	query += " ORDER BY registered_at"

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list all servers: %w", err)
	}
	defer rows.Close()

	var out []domain.ServerRecord
	for rows.Next() {
		rec, err := scanServerRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan server row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (p *Postgres) Update(ctx context.Context, id string, patch domain.ServerPatch) (domain.ServerRecord, error) {
	sets := make([]string, 0, 3)
	args := make([]any, 0, 4)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if patch.Description != nil {
		sets = append(sets, "description = "+arg(*patch.Description))
	}
	if patch.ConnectionConfig != nil {
		raw, err := json.Marshal(patch.ConnectionConfig)
		if err != nil {
			return domain.ServerRecord{}, fmt.Errorf("marshal connection config: %w", err)
		}
		sets = append(sets, "connection_config = "+arg(raw))
	}
	if patch.HealthCheckAddress != nil {
		sets = append(sets, "health_check_address = "+arg(*patch.HealthCheckAddress))
	}

	if len(sets) == 0 {
		rec, ok, err := p.Get(ctx, id)
		if err != nil {
			return domain.ServerRecord{}, err
		}
		if !ok {
			return domain.ServerRecord{}, apierrors.NewServerNotFoundError(id)
		}
		return rec, nil
	}

	query := fmt.Sprintf("UPDATE servers SET %s WHERE id = %s RETURNING id, name, description, transport, connection_config, health_check_address, status, tool_count, error_message, org_id, is_global, registered_at, connected_at, last_health_check",
		strings.Join(sets, ", "), arg(id))

	row := p.pool.QueryRow(ctx, query, args...)
	rec, err := scanServerRow(row)
	if err == pgx.ErrNoRows {
		return domain.ServerRecord{}, apierrors.NewServerNotFoundError(id)
	}
	if err != nil {
		return domain.ServerRecord{}, fmt.Errorf("update server %s: %w", id, err)
	}
	return rec, nil
}

func (p *Postgres) UpdateStatus(ctx context.Context, id string, status domain.ServerStatus, errMsg string) (bool, error) {
	var tag string
	var err error
	if status == domain.StatusConnected {
		tag, err = execTag(ctx, p.pool, `UPDATE servers SET status = $1, error_message = $2, connected_at = now() WHERE id = $3`, string(status), errMsg, id)
	} else {
		tag, err = execTag(ctx, p.pool, `UPDATE servers SET status = $1, error_message = $2 WHERE id = $3`, string(status), errMsg, id)
	}
	if err != nil {
		return false, fmt.Errorf("update server status %s: %w", id, err)
	}
	updated := tag != "0"
	if updated {
		p.sink.Emit(ctx, "server.status_changed", map[string]any{"server_id": id, "status": string(status)})
	}
	return updated, nil
}

func (p *Postgres) UpdateToolCount(ctx context.Context, id string, count int) (bool, error) {
	tag, err := execTag(ctx, p.pool, `UPDATE servers SET tool_count = $1 WHERE id = $2`, count, id)
	if err != nil {
		return false, fmt.Errorf("update tool count %s: %w", id, err)
	}
	return tag != "0", nil
}

func (p *Postgres) UpdateLastHealthCheck(ctx context.Context, id string) (bool, error) {
	tag, err := execTag(ctx, p.pool, `UPDATE servers SET last_health_check = now() WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("update last health check %s: %w", id, err)
	}
	return tag != "0", nil
}

// Remove deletes the server and atomically reports whether a row was
// actually removed, via a DELETE...RETURNING wrapped in a count CTE
// rather than a separate existence check plus delete.
func (p *Postgres) Remove(ctx context.Context, id string) (bool, error) {
	var count int
	err := p.pool.QueryRow(ctx, `
WITH deleted AS (
	DELETE FROM servers WHERE id = $1 RETURNING id
)
SELECT COUNT(*) FROM deleted`, id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("remove server %s: %w", id, err)
	}
	return count > 0, nil
}

const selectServerSQL = `SELECT id, name, description, transport, connection_config, health_check_address, status, tool_count, error_message, org_id, is_global, registered_at, connected_at, last_health_check FROM servers`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanServerRow(row rowScanner) (domain.ServerRecord, error) {
	var rec domain.ServerRecord
	var transport, status string
	var connCfg []byte
	var orgID string
	var isGlobal bool
	var registeredAt time.Time
	var connectedAt, lastHealthCheck *time.Time

	err := row.Scan(&rec.ID, &rec.Name, &rec.Description, &transport, &connCfg, &rec.HealthCheckAddress,
		&status, &rec.ToolCount, &rec.ErrorMessage, &orgID, &isGlobal, &registeredAt, &connectedAt, &lastHealthCheck)
	if err != nil {
		return domain.ServerRecord{}, err
	}

	rec.Transport = domain.TransportKind(transport)
	rec.Status = domain.ServerStatus(status)
	rec.Tenant = domain.TenantScope{OrgID: orgID, IsGlobal: isGlobal}
	rec.RegisteredAt = registeredAt
	rec.ConnectedAt = connectedAt
	rec.LastHealthCheck = lastHealthCheck

	if len(connCfg) > 0 {
		if err := json.Unmarshal(connCfg, &rec.ConnectionConfig); err != nil {
			return domain.ServerRecord{}, fmt.Errorf("unmarshal connection config: %w", err)
		}
	}

	return rec, nil
}

func execTag(ctx context.Context, pool *pgxpool.Pool, sql string, args ...any) (string, error) {
	tag, err := pool.Exec(ctx, sql, args...)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", tag.RowsAffected()), nil
}
