// Package embed implements the Embedder capability: computing a dense
// vector for a tool's namespaced-name-plus-description string, with
// an OpenAI-compatible implementation and a zero-vector null object
// used when no embedding provider is configured.
package embed

import "context"

// Embedder is the capability interface consumed by the tool
// aggregator during discovery.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}
