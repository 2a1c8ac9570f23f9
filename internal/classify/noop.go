package classify

import (
	"context"

	"github.com/xenophobed/isA-MCP-sub015/internal/domain"
)

// Noop is the null-object SkillClassifier used when no classifier
// model is configured: every tool is returned unclassified.
type Noop struct{}

var _ SkillClassifier = Noop{}

// NewNoop constructs a Noop classifier.
func NewNoop() Noop { return Noop{} }

func (Noop) ClassifyBatch(context.Context, []domain.ToolRecord) (map[int64]Classification, error) {
	return map[int64]Classification{}, nil
}
