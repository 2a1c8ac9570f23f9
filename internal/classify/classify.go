// Package classify implements the SkillClassifier capability: batch
// labelling of newly discovered tools with one or more skills via a
// chat-completion call, with a no-op implementation used when no
// classifier model is configured.
package classify

import (
	"context"

	"github.com/xenophobed/isA-MCP-sub015/internal/domain"
)

// Classification is one tool's assigned skills, in priority order
// with the first entry also duplicated as PrimarySkillID.
type Classification struct {
	SkillIDs       []string
	PrimarySkillID string
}

// SkillClassifier is the capability interface consumed by the tool
// aggregator after a discovery sweep completes.
type SkillClassifier interface {
	// ClassifyBatch labels tools in one or more batched calls and
	// returns assignments keyed by ToolRecord.ID. A classifier failure
	// for part of the batch must not fail the whole call: missing
	// entries in the result are simply left unclassified by the caller.
	ClassifyBatch(ctx context.Context, tools []domain.ToolRecord) (map[int64]Classification, error)
}
