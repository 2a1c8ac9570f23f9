package vector

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/xenophobed/isA-MCP-sub015/internal/domain"
)

// Memory is a brute-force, in-process VectorStore: every Search scans
// the full set and ranks by cosine similarity. Adequate for tests and
// small deployments; production scale wants Pgvector.
type Memory struct {
	mu      sync.RWMutex
	records map[int64]domain.VectorRecord
}

var _ Store = (*Memory)(nil)

// NewMemory constructs an empty in-memory Store.
func NewMemory() *Memory {
	return &Memory{records: make(map[int64]domain.VectorRecord)}
}

func (m *Memory) Upsert(_ context.Context, rec domain.VectorRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.ToolID] = rec
	return nil
}

func (m *Memory) Delete(_ context.Context, toolID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, toolID)
	return nil
}

func (m *Memory) Search(_ context.Context, queryVector []float32, filter Filter, limit int) ([]domain.ScoredTool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	candidates := make([]domain.ScoredTool, 0, len(m.records))
	for _, rec := range m.records {
		if filter.ExternalOnly {
			external, _ := rec.Payload["is_external"].(bool)
			if !external {
				continue
			}
		}
		if len(filter.ServerNames) > 0 {
			serverName, _ := rec.Payload["source_server_name"].(string)
			if !containsString(filter.ServerNames, serverName) {
				continue
			}
		}
		candidates = append(candidates, domain.ScoredTool{Tool: rec, Score: cosineSimilarity(queryVector, rec.Vector)})
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
