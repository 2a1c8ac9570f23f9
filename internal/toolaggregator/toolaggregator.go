// Package toolaggregator discovers the tool catalog behind each
// connected backend, assigns collision-free namespaced names,
// persists the result into the relational and vector stores, and
// hands newly discovered tools to the skill classifier.
package toolaggregator

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/xenophobed/isA-MCP-sub015/internal/apierrors"
	"github.com/xenophobed/isA-MCP-sub015/internal/classify"
	"github.com/xenophobed/isA-MCP-sub015/internal/domain"
	"github.com/xenophobed/isA-MCP-sub015/internal/embed"
	"github.com/xenophobed/isA-MCP-sub015/internal/registry"
	"github.com/xenophobed/isA-MCP-sub015/internal/store/tool"
	"github.com/xenophobed/isA-MCP-sub015/internal/store/vector"
	"github.com/xenophobed/isA-MCP-sub015/pkg/logging"
)

// SessionSource is the narrow slice of the Session Manager this
// package needs: whether a server has a live session and what tools
// it currently exposes. Satisfied by *session.Manager in production.
type SessionSource interface {
	IsConnected(serverID string) bool
	ListTools(ctx context.Context, serverID string) ([]mcp.Tool, error)
}

// Aggregator wires the Registry, a SessionSource and the two stores
// together with the optional embed/classify capabilities.
type Aggregator struct {
	registry   registry.Registry
	sessions   SessionSource
	tools      tool.Store
	vectors    vector.Store
	embedder   embed.Embedder
	classifier classify.SkillClassifier
}

// New builds an Aggregator. embedder and classifier may be the Zero
// and Noop null objects when no model is configured.
func New(reg registry.Registry, sessions SessionSource, tools tool.Store, vectors vector.Store, embedder embed.Embedder, classifier classify.SkillClassifier) *Aggregator {
	return &Aggregator{
		registry:   reg,
		sessions:   sessions,
		tools:      tools,
		vectors:    vectors,
		embedder:   embedder,
		classifier: classifier,
	}
}

// DiscoverTools runs the full discovery sweep for one server: lists
// its live tools, upserts each into the tool and vector stores, bumps
// the server's tool_count, and submits the batch to the classifier.
// Per-tool failures are logged and skipped rather than aborting the
// sweep.
func (a *Aggregator) DiscoverTools(ctx context.Context, serverID string) ([]domain.ToolRecord, error) {
	rec, ok, err := a.registry.Get(ctx, serverID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", apierrors.ErrDiscoveryFailed, err)
	}
	if !ok {
		return nil, apierrors.NewServerNotFoundError(serverID)
	}

	if !a.sessions.IsConnected(serverID) {
		return nil, apierrors.NewSessionNotFoundError(serverID)
	}

	mcpTools, err := a.sessions.ListTools(ctx, serverID)
	if err != nil {
		return nil, fmt.Errorf("%w: list tools for %s: %s", apierrors.ErrDiscoveryFailed, rec.Name, err)
	}

	discovered := make([]domain.ToolRecord, 0, len(mcpTools))
	for _, t := range mcpTools {
		toolRec, err := a.discoverOne(ctx, rec, t)
		if err != nil {
			logging.Warn("ToolAggregator", "discover tool %s on %s: %v", t.Name, rec.Name, err)
			continue
		}
		discovered = append(discovered, toolRec)
	}

	if _, err := a.registry.UpdateToolCount(ctx, serverID, len(discovered)); err != nil {
		logging.Warn("ToolAggregator", "update tool count for %s: %v", rec.Name, err)
	}

	a.classifyBatch(ctx, discovered)

	return discovered, nil
}

func (a *Aggregator) discoverOne(ctx context.Context, rec domain.ServerRecord, t mcp.Tool) (domain.ToolRecord, error) {
	namespaced := domain.NamespaceTool(rec.Name, t.Name)

	toolRec := domain.ToolRecord{
		Name:           namespaced,
		OriginalName:   t.Name,
		Description:    t.Description,
		InputSchema:    inputSchemaToMap(t.InputSchema),
		SourceServerID: rec.ID,
		IsExternal:     true,
		Tenant:         rec.Tenant,
	}

	id, err := a.tools.Upsert(ctx, toolRec)
	if err != nil {
		return domain.ToolRecord{}, fmt.Errorf("upsert tool: %w", err)
	}
	toolRec.ID = id

	vec, err := a.embedder.Embed(ctx, namespaced+": "+t.Description)
	if err != nil {
		logging.Warn("ToolAggregator", "embed tool %s: %v, indexing skipped", namespaced, err)
		return toolRec, nil
	}

	payload := map[string]any{
		"server_id":          rec.ID,
		"server_name":        rec.Name,
		"original_name":      t.Name,
		"is_external":        true,
		"is_classified":      false,
		"skill_ids":          []string{},
		"primary_skill_id":   "",
		"tenant_org_id":      rec.Tenant.OrgID,
		"tenant_is_global":   rec.Tenant.IsGlobal,
		"source_server_name": rec.Name,
	}
	if err := a.vectors.Upsert(ctx, domain.VectorRecord{ToolID: id, Vector: vec, Payload: payload}); err != nil {
		logging.Warn("ToolAggregator", "index tool %s: %v", namespaced, err)
	}

	return toolRec, nil
}

// classifyBatch submits every discovered tool to the classifier in
// one call and applies returned assignments idempotently. A
// classifier failure is logged and leaves tools unclassified but
// searchable.
func (a *Aggregator) classifyBatch(ctx context.Context, tools []domain.ToolRecord) {
	if len(tools) == 0 {
		return
	}
	assignments, err := a.classifier.ClassifyBatch(ctx, tools)
	if err != nil {
		logging.Warn("ToolAggregator", "batch classification failed: %v", err)
		return
	}
	for _, t := range tools {
		cl, ok := assignments[t.ID]
		if !ok {
			continue
		}
		if err := a.tools.UpdateClassification(ctx, t.ID, cl.SkillIDs, cl.PrimarySkillID); err != nil {
			logging.Warn("ToolAggregator", "apply classification for tool %d: %v", t.ID, err)
		}
	}
}

// AggregateTools runs discovery on every connected server, logging
// and skipping servers whose sweep fails.
func (a *Aggregator) AggregateTools(ctx context.Context) error {
	connected := domain.StatusConnected
	servers, err := a.registry.ListAll(ctx, &connected)
	if err != nil {
		return fmt.Errorf("%w: list connected servers: %s", apierrors.ErrDiscoveryFailed, err)
	}

	for _, rec := range servers {
		if _, err := a.DiscoverTools(ctx, rec.ID); err != nil {
			logging.Warn("ToolAggregator", "aggregate sweep skipped %s: %v", rec.Name, err)
		}
	}
	return nil
}

// SearchTools embeds query and returns the top-limit matching
// external tools, optionally restricted to serverFilter. An empty
// query falls back to the tool store's default listing instead of
// embedding an empty string.
func (a *Aggregator) SearchTools(ctx context.Context, query string, serverFilter []string, limit int) ([]domain.ScoredTool, error) {
	if query == "" {
		return a.defaultTools(ctx, serverFilter, limit)
	}

	vec, err := a.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := a.vectors.Search(ctx, vec, vector.Filter{ExternalOnly: true, ServerNames: serverFilter}, limit)
	if err != nil {
		return nil, fmt.Errorf("search tools: %w", err)
	}
	return hits, nil
}

// defaultTools renders the tool store's default listing as ScoredTool
// hits with a zero score, filtered to serverFilter when given.
func (a *Aggregator) defaultTools(ctx context.Context, serverFilter []string, limit int) ([]domain.ScoredTool, error) {
	recs, err := a.tools.ListDefaults(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list default tools: %w", err)
	}

	allowed := make(map[string]bool, len(serverFilter))
	for _, s := range serverFilter {
		allowed[s] = true
	}

	hits := make([]domain.ScoredTool, 0, len(recs))
	for _, rec := range recs {
		if !rec.IsExternal {
			continue
		}
		serverName, _, err := domain.ParseNamespacedName(rec.Name)
		if err != nil {
			serverName = rec.SourceServerID
		}
		if len(allowed) > 0 && !allowed[serverName] {
			continue
		}
		hits = append(hits, domain.ScoredTool{
			Tool: domain.VectorRecord{
				ToolID: rec.ID,
				Payload: map[string]any{
					"server_id":          rec.SourceServerID,
					"server_name":        serverName,
					"original_name":      rec.OriginalName,
					"is_external":        rec.IsExternal,
					"is_classified":      rec.IsClassified,
					"skill_ids":          rec.SkillIDs,
					"primary_skill_id":   rec.PrimarySkillID,
					"tenant_org_id":      rec.Tenant.OrgID,
					"tenant_is_global":   rec.Tenant.IsGlobal,
					"source_server_name": serverName,
				},
			},
			Score: 0,
		})
	}
	return hits, nil
}

// ListToolsBySkill returns every tool classified under skillID, with
// primary-skill matches first.
func (a *Aggregator) ListToolsBySkill(ctx context.Context, skillID string) ([]domain.ToolRecord, error) {
	return a.tools.GetToolsBySkill(ctx, skillID)
}

// inputSchemaToMap flattens an mcp.ToolInputSchema into the opaque
// map shape ToolRecord.InputSchema carries, so the tool store never
// needs to import mcp-go.
func inputSchemaToMap(schema mcp.ToolInputSchema) map[string]any {
	out := map[string]any{"type": schema.Type}
	if len(schema.Properties) > 0 {
		out["properties"] = schema.Properties
	}
	if len(schema.Required) > 0 {
		out["required"] = schema.Required
	}
	return out
}

// RemoveServerTools deletes every tool sourced from serverID: vector
// records are removed best-effort per id, then the relational rows
// are deleted in one atomic statement. It returns the relational
// delete count.
func (a *Aggregator) RemoveServerTools(ctx context.Context, serverID string) (int, error) {
	ids, err := a.tools.ListIDsByServer(ctx, serverID)
	if err != nil {
		return 0, fmt.Errorf("list tool ids for %s: %w", serverID, err)
	}

	for _, id := range ids {
		if err := a.vectors.Delete(ctx, id); err != nil {
			logging.Warn("ToolAggregator", "delete vector for tool %d: %v", id, err)
		}
	}

	count, err := a.tools.DeleteByServer(ctx, serverID)
	if err != nil {
		return 0, fmt.Errorf("delete tools for %s: %w", serverID, err)
	}
	return count, nil
}
