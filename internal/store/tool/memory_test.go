package tool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenophobed/isA-MCP-sub015/internal/domain"
)

func TestMemory_UpsertInsertsThenUpdates(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	id, err := m.Upsert(ctx, domain.ToolRecord{Name: "weather.forecast", OriginalName: "forecast", SourceServerID: "srv-1", Description: "v1"})
	require.NoError(t, err)
	assert.NotZero(t, id)

	id2, err := m.Upsert(ctx, domain.ToolRecord{Name: "weather.forecast", OriginalName: "forecast", SourceServerID: "srv-1", Description: "v2"})
	require.NoError(t, err)
	assert.Equal(t, id, id2)

	rec, ok, err := m.GetByName(ctx, "weather.forecast")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v2", rec.Description)
}

func TestMemory_UpdateClassification(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	id, err := m.Upsert(ctx, domain.ToolRecord{Name: "a.b", SourceServerID: "srv-1"})
	require.NoError(t, err)

	require.NoError(t, m.UpdateClassification(ctx, id, []string{"skill-1", "skill-2"}, "skill-1"))

	rec, _, err := m.GetByID(ctx, id)
	require.NoError(t, err)
	assert.True(t, rec.IsClassified)
	assert.Equal(t, "skill-1", rec.PrimarySkillID)
	assert.Equal(t, []string{"skill-1", "skill-2"}, rec.SkillIDs)
}

func TestMemory_UpdateClassificationUnknownIDErrors(t *testing.T) {
	m := NewMemory()
	err := m.UpdateClassification(context.Background(), 999, nil, "")
	assert.Error(t, err)
}

func TestMemory_DeleteByServer(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, err := m.Upsert(ctx, domain.ToolRecord{Name: "a.one", SourceServerID: "srv-1"})
	require.NoError(t, err)
	_, err = m.Upsert(ctx, domain.ToolRecord{Name: "a.two", SourceServerID: "srv-1"})
	require.NoError(t, err)
	_, err = m.Upsert(ctx, domain.ToolRecord{Name: "b.one", SourceServerID: "srv-2"})
	require.NoError(t, err)

	ids, err := m.ListIDsByServer(ctx, "srv-1")
	require.NoError(t, err)
	assert.Len(t, ids, 2)

	count, err := m.DeleteByServer(ctx, "srv-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	remaining, err := m.ListIDsByServer(ctx, "srv-1")
	require.NoError(t, err)
	assert.Empty(t, remaining)

	_, ok, err := m.GetByName(ctx, "b.one")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemory_GetToolsBySkillOrdersPrimaryFirst(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	idA, err := m.Upsert(ctx, domain.ToolRecord{Name: "weather.forecast", SourceServerID: "srv-1"})
	require.NoError(t, err)
	idB, err := m.Upsert(ctx, domain.ToolRecord{Name: "weather.alerts", SourceServerID: "srv-1"})
	require.NoError(t, err)
	idC, err := m.Upsert(ctx, domain.ToolRecord{Name: "news.headlines", SourceServerID: "srv-2"})
	require.NoError(t, err)

	require.NoError(t, m.UpdateClassification(ctx, idA, []string{"skill-weather"}, ""))
	require.NoError(t, m.UpdateClassification(ctx, idB, []string{"skill-weather"}, "skill-weather"))
	require.NoError(t, m.UpdateClassification(ctx, idC, []string{"skill-news"}, "skill-news"))

	hits, err := m.GetToolsBySkill(ctx, "skill-weather")
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "weather.alerts", hits[0].Name)
	assert.Equal(t, "weather.forecast", hits[1].Name)
}

func TestMemory_ListDefaultsRespectsLimit(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	for _, name := range []string{"a.one", "b.two", "c.three"} {
		_, err := m.Upsert(ctx, domain.ToolRecord{Name: name, SourceServerID: "srv-1"})
		require.NoError(t, err)
	}

	all, err := m.ListDefaults(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	limited, err := m.ListDefaults(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}
