package llm

import (
	"context"
	"time"

	"github.com/aditya01hpl/Inspectra/pkg/cache"
)

// CachedEmbedder memoizes vectors by input text. Repeated questions
// skip the provider round trip entirely.
type CachedEmbedder struct {
	inner Embedder
	cache *cache.Cache[[]float32]
}

// NewCachedEmbedder wraps inner with an LRU of the given capacity.
// Entries expire after ttl; ttl <= 0 means no expiry.
func NewCachedEmbedder(inner Embedder, capacity int, ttl time.Duration) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, cache: cache.New[[]float32](capacity, ttl)}
}

// Dimensions implements Embedder.
func (e *CachedEmbedder) Dimensions() int { return e.inner.Dimensions() }

// Embed implements Embedder. Cached texts are served locally; only
// misses hit the inner embedder, in a single batch.
func (e *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int
	for i, text := range texts {
		if vec, ok := e.cache.Get(text); ok {
			out[i] = vec
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	vecs, err := e.inner.Embed(ctx, missing)
	if err != nil {
		return nil, err
	}
	for j, vec := range vecs {
		out[missingIdx[j]] = vec
		e.cache.Set(missing[j], vec)
	}
	return out, nil
}
