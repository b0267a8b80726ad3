package embeddings

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimitedEmbedder throttles calls to a remote embedder. Callers block
// until a token is available or their context ends.
type RateLimitedEmbedder struct {
	base    Embedder
	limiter *rate.Limiter
}

// NewRateLimitedEmbedder allows perSecond requests per second with the given burst.
func NewRateLimitedEmbedder(base Embedder, perSecond float64, burst int) *RateLimitedEmbedder {
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedEmbedder{
		base:    base,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

func (r *RateLimitedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("embedding rate limit: %w", err)
	}
	return r.base.Embed(ctx, text)
}

func (r *RateLimitedEmbedder) EmbedKind(ctx context.Context, kind Kind, text string) ([]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("embedding rate limit: %w", err)
	}
	return EmbedAs(ctx, r.base, kind, text)
}
