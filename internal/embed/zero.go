package embed

import "context"

// Zero is the null-object Embedder used when no provider is
// configured: it returns a fixed-length zero vector so downstream
// indexing stays consistent even though similarity search degenerates
// to an arbitrary ordering.
type Zero struct {
	dimensions int
}

var _ Embedder = Zero{}

// NewZero builds a Zero embedder of the given dimensionality.
func NewZero(dimensions int) Zero {
	if dimensions <= 0 {
		dimensions = 1536
	}
	return Zero{dimensions: dimensions}
}

func (z Zero) Embed(context.Context, string) ([]float32, error) {
	return make([]float32, z.dimensions), nil
}

func (z Zero) Dimensions() int {
	return z.dimensions
}
