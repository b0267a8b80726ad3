package embeddings

import (
	"context"
	"slices"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedEmbedder memoizes embeddings in a fixed-size LRU. Repeated queries,
// which dominate interactive search, skip the model entirely.
type CachedEmbedder struct {
	base  Embedder
	cache *lru.Cache[string, []float32]
}

func NewCachedEmbedder(base Embedder, size int) (*CachedEmbedder, error) {
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, err
	}
	return &CachedEmbedder{base: base, cache: cache}, nil
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return c.lookup("\x00"+text, func() ([]float32, error) {
		return c.base.Embed(ctx, text)
	})
}

func (c *CachedEmbedder) EmbedKind(ctx context.Context, kind Kind, text string) ([]float32, error) {
	return c.lookup(kind.String()+"\x00"+text, func() ([]float32, error) {
		return EmbedAs(ctx, c.base, kind, text)
	})
}

// lookup returns copies so callers cannot corrupt cached entries.
func (c *CachedEmbedder) lookup(key string, embed func() ([]float32, error)) ([]float32, error) {
	if v, ok := c.cache.Get(key); ok {
		return slices.Clone(v), nil
	}
	v, err := embed()
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, slices.Clone(v))
	return v, nil
}

// Len returns the number of cached entries.
func (c *CachedEmbedder) Len() int { return c.cache.Len() }
