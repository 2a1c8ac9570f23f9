package vector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenophobed/isA-MCP-sub015/internal/domain"
)

func TestMemory_SearchRanksByCosineSimilarity(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Upsert(ctx, domain.VectorRecord{
		ToolID: 1, Vector: []float32{1, 0}, Payload: map[string]any{"is_external": true, "source_server_name": "weather"},
	}))
	require.NoError(t, m.Upsert(ctx, domain.VectorRecord{
		ToolID: 2, Vector: []float32{0, 1}, Payload: map[string]any{"is_external": true, "source_server_name": "news"},
	}))

	results, err := m.Search(ctx, []float32{1, 0}, Filter{}, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, int64(1), results[0].Tool.ToolID)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestMemory_SearchFiltersByServerName(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Upsert(ctx, domain.VectorRecord{ToolID: 1, Vector: []float32{1, 0}, Payload: map[string]any{"source_server_name": "weather"}}))
	require.NoError(t, m.Upsert(ctx, domain.VectorRecord{ToolID: 2, Vector: []float32{1, 0}, Payload: map[string]any{"source_server_name": "news"}}))

	results, err := m.Search(ctx, []float32{1, 0}, Filter{ServerNames: []string{"news"}}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(2), results[0].Tool.ToolID)
}

func TestMemory_SearchRespectsLimit(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	for i := int64(1); i <= 5; i++ {
		require.NoError(t, m.Upsert(ctx, domain.VectorRecord{ToolID: i, Vector: []float32{1, 0}}))
	}

	results, err := m.Search(ctx, []float32{1, 0}, Filter{}, 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestMemory_Delete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Upsert(ctx, domain.VectorRecord{ToolID: 1, Vector: []float32{1, 0}}))
	require.NoError(t, m.Delete(ctx, 1))

	results, err := m.Search(ctx, []float32{1, 0}, Filter{}, 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}
