package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

// CachedEmbedder wraps an Embedder with an LRU cache keyed by content hash.
// Embeddings are deterministic per text, so a hit never goes stale.
type CachedEmbedder struct {
	inner Embedder
	cache *Cache
}

// NewCached wraps inner with a cache of the given capacity.
func NewCached(inner Embedder, capacity int) *CachedEmbedder {
	return &CachedEmbedder{
		inner: inner,
		cache: NewCache(capacity),
	}
}

// Embed returns the cached embedding for text, calling the wrapped embedder
// on a miss. Errors from the wrapped embedder are never cached.
func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(text)
	if vec, ok := e.cache.Get(key); ok {
		return vec, nil
	}
	vec, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Set(key, vec)
	return vec, nil
}

// Dimensions returns the wrapped embedder's dimension.
func (e *CachedEmbedder) Dimensions() int {
	return e.inner.Dimensions()
}

// Close closes the wrapped embedder.
func (e *CachedEmbedder) Close() error {
	return e.inner.Close()
}

// cacheKey hashes text so the cache does not pin whole documents in memory.
func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
