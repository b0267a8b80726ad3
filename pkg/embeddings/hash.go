package embeddings

import (
	"context"
	"hash/fnv"

	"github.com/similivec/similivec/pkg/core/distance"
	"github.com/similivec/similivec/pkg/textanalyzer"
)

// DefaultDimension matches the small sentence-embedding models the service
// is usually paired with.
const DefaultDimension = 384

// HashEmbedder is a deterministic, offline embedder. Each token of Analyzer is
// hashed into one of Dim buckets with a hash-derived sign, and the result is
// L2-normalized. Texts sharing words end up close in cosine distance, which
// is enough for tests and for running without a model server.
type HashEmbedder struct {
	Dim      int
	Analyzer textanalyzer.Analyzer
}

func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = DefaultDimension
	}
	return &HashEmbedder{Dim: dim, Analyzer: textanalyzer.Plain{}}
}

func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float32, e.Dim)
	analyzer := e.Analyzer
	if analyzer == nil {
		analyzer = textanalyzer.Plain{}
	}
	for _, w := range analyzer.Analyze(text) {
		h := fnv.New64a()
		h.Write([]byte(w))
		sum := h.Sum64()
		bucket := sum % uint64(e.Dim)
		if sum>>63 == 1 {
			vec[bucket]--
		} else {
			vec[bucket]++
		}
	}

	if !distance.Normalize(vec) {
		return nil, ErrEmptyText
	}
	return vec, nil
}
