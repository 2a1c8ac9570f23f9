package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"
	"golang.org/x/sync/errgroup"

	"github.com/xenophobed/isA-MCP-sub015/internal/domain"
	"github.com/xenophobed/isA-MCP-sub015/pkg/logging"
)

const classifierConcurrency = 5

var skillTaxonomy = []string{
	"filesystem", "network", "data-processing", "communication",
	"search", "scheduling", "monitoring", "automation", "other",
}

// AnyLLM is a SkillClassifier backed by github.com/mozilla-ai/any-llm-go,
// sending one chat-completion request per batch of tools.
type AnyLLM struct {
	backend   anyllmlib.Provider
	model     string
	batchSize int
}

var _ SkillClassifier = (*AnyLLM)(nil)

// NewAnyLLM constructs an OpenAI-backed classifier. batchSize <= 0
// falls back to 10, matching the default classification batch.
func NewAnyLLM(apiKey, model string, batchSize int) (*AnyLLM, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("classify: apiKey must not be empty")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	if batchSize <= 0 {
		batchSize = 10
	}

	backend, err := anyllmoai.New(anyllmlib.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("classify: create backend: %w", err)
	}
	return &AnyLLM{backend: backend, model: model, batchSize: batchSize}, nil
}

// ClassifyBatch splits tools into chunks of batchSize and classifies
// each chunk concurrently (bounded concurrency of 5). A chunk's
// failure is logged and simply contributes no assignments; it never
// fails the call.
func (c *AnyLLM) ClassifyBatch(ctx context.Context, tools []domain.ToolRecord) (map[int64]Classification, error) {
	if len(tools) == 0 {
		return map[int64]Classification{}, nil
	}

	var mu sync.Mutex
	results := make(map[int64]Classification, len(tools))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(classifierConcurrency)

	for start := 0; start < len(tools); start += c.batchSize {
		end := start + c.batchSize
		if end > len(tools) {
			end = len(tools)
		}
		batch := tools[start:end]

		g.Go(func() error {
			assigned, err := c.classifyBatchChunk(gctx, batch)
			if err != nil {
				logging.Warn("Classifier", "batch classification failed for %d tools: %v", len(batch), err)
				return nil
			}
			mu.Lock()
			for id, cl := range assigned {
				results[id] = cl
			}
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()
	return results, nil
}

func (c *AnyLLM) classifyBatchChunk(ctx context.Context, tools []domain.ToolRecord) (map[int64]Classification, error) {
	prompt := buildClassificationPrompt(tools)

	resp, err := c.backend.Completion(ctx, anyllmlib.CompletionParams{
		Model: c.model,
		Messages: []anyllmlib.Message{
			{Role: anyllmlib.RoleSystem, Content: "You label MCP tools with one or more skills from a fixed taxonomy. Respond with JSON only."},
			{Role: anyllmlib.RoleUser, Content: prompt},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty completion response")
	}

	return parseClassificationResponse(resp.Choices[0].Message.ContentString())
}

func buildClassificationPrompt(tools []domain.ToolRecord) string {
	var sb strings.Builder
	sb.WriteString("Skills: ")
	sb.WriteString(strings.Join(skillTaxonomy, ", "))
	sb.WriteString("\n\nFor each tool below, return a JSON array of objects {\"id\": <id>, \"skills\": [<skill>, ...], \"primary\": <skill>}.\n\n")
	for _, t := range tools {
		sb.WriteString(fmt.Sprintf("id=%d name=%s description=%s\n", t.ID, t.Name, t.Description))
	}
	return sb.String()
}

type classificationEntry struct {
	ID      int64    `json:"id"`
	Skills  []string `json:"skills"`
	Primary string   `json:"primary"`
}

func parseClassificationResponse(content string) (map[int64]Classification, error) {
	content = extractJSONArray(content)

	var entries []classificationEntry
	if err := json.Unmarshal([]byte(content), &entries); err != nil {
		return nil, fmt.Errorf("parse classification response: %w", err)
	}

	out := make(map[int64]Classification, len(entries))
	for _, e := range entries {
		primary := e.Primary
		if primary == "" && len(e.Skills) > 0 {
			primary = e.Skills[0]
		}
		out[e.ID] = Classification{SkillIDs: e.Skills, PrimarySkillID: primary}
	}
	return out, nil
}

// extractJSONArray trims any leading/trailing prose a chat model adds
// around the JSON payload, keeping only the first top-level array.
func extractJSONArray(s string) string {
	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start < 0 || end < start {
		return s
	}
	return s[start : end+1]
}
