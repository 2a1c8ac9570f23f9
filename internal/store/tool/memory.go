package tool

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/xenophobed/isA-MCP-sub015/internal/apierrors"
	"github.com/xenophobed/isA-MCP-sub015/internal/domain"
)

// Memory is the in-process fallback Store, keyed by namespaced name.
type Memory struct {
	mu     sync.RWMutex
	byName map[string]int64
	byID   map[int64]domain.ToolRecord
	nextID int64
}

var _ Store = (*Memory)(nil)

// NewMemory constructs an empty in-memory Store.
func NewMemory() *Memory {
	return &Memory{
		byName: make(map[string]int64),
		byID:   make(map[int64]domain.ToolRecord),
	}
}

func (m *Memory) Upsert(_ context.Context, rec domain.ToolRecord) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.byName[rec.Name]; ok {
		existing := m.byID[id]
		existing.Description = rec.Description
		existing.InputSchema = rec.InputSchema
		existing.SourceServerID = rec.SourceServerID
		existing.OriginalName = rec.OriginalName
		existing.Tenant = rec.Tenant
		existing.IsExternal = rec.IsExternal
		existing.UpdatedAt = rec.UpdatedAt
		m.byID[id] = existing
		return id, nil
	}

	m.nextID++
	id := m.nextID
	rec.ID = id
	m.byID[id] = rec
	m.byName[rec.Name] = id
	return id, nil
}

func (m *Memory) GetByName(_ context.Context, namespacedName string) (domain.ToolRecord, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byName[namespacedName]
	if !ok {
		return domain.ToolRecord{}, false, nil
	}
	return m.byID[id], true, nil
}

func (m *Memory) GetByID(_ context.Context, id int64) (domain.ToolRecord, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.byID[id]
	return rec, ok, nil
}

func (m *Memory) ListIDsByServer(_ context.Context, serverID string) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []int64
	for id, rec := range m.byID {
		if rec.SourceServerID == serverID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *Memory) UpdateClassification(_ context.Context, id int64, skillIDs []string, primarySkillID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.byID[id]
	if !ok {
		return apierrors.NewToolNotFoundError(strconv.FormatInt(id, 10))
	}
	rec.SkillIDs = skillIDs
	rec.PrimarySkillID = primarySkillID
	rec.IsClassified = true
	m.byID[id] = rec
	return nil
}

func (m *Memory) GetToolsBySkill(_ context.Context, skillID string) ([]domain.ToolRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matches []domain.ToolRecord
	for _, rec := range m.byID {
		for _, sid := range rec.SkillIDs {
			if sid == skillID {
				matches = append(matches, rec)
				break
			}
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		iPrimary := matches[i].PrimarySkillID == skillID
		jPrimary := matches[j].PrimarySkillID == skillID
		if iPrimary != jPrimary {
			return iPrimary
		}
		return matches[i].Name < matches[j].Name
	})
	return matches, nil
}

func (m *Memory) ListDefaults(_ context.Context, limit int) ([]domain.ToolRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]domain.ToolRecord, 0, len(m.byID))
	for _, rec := range m.byID {
		all = append(all, rec)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })

	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *Memory) DeleteByServer(_ context.Context, serverID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for id, rec := range m.byID {
		if rec.SourceServerID != serverID {
			continue
		}
		delete(m.byID, id)
		delete(m.byName, rec.Name)
		count++
	}
	return count, nil
}
