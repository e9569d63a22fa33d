package model

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// defaultCacheSize bounds the embedding cache, adapted from the
// teacher's DefaultEmbeddingCacheSize (internal/embed/cached.go).
const defaultCacheSize = 1000

// cachedEmbedder wraps an embedder with an LRU cache keyed on text
// content, so repeated vsearch/embed calls over the same chunk or
// query text skip the native call entirely. A singleflight group
// collapses concurrent cache misses on the same text (e.g. the same
// query string embedded by two in-flight requests) into one native
// call, so both callers share its result instead of racing it twice.
type cachedEmbedder struct {
	inner embedder
	cache *lru.Cache[string, []float32]
	sf    singleflight.Group
}

func newCachedEmbedder(inner embedder, size int) *cachedEmbedder {
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, _ := lru.New[string, []float32](size)
	return &cachedEmbedder{inner: inner, cache: cache}
}

func (c *cachedEmbedder) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func (c *cachedEmbedder) embed(ctx context.Context, text string) ([]float32, error) {
	key := c.cacheKey(text)
	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}

	v, err, _ := c.sf.Do(key, func() (any, error) {
		if vec, ok := c.cache.Get(key); ok {
			return vec, nil
		}
		vec, err := c.inner.embed(ctx, text)
		if err != nil {
			return nil, err
		}
		c.cache.Add(key, vec)
		return vec, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]float32), nil
}

func (c *cachedEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string

	for i, text := range texts {
		key := c.cacheKey(text)
		if vec, ok := c.cache.Get(key); ok {
			results[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) == 0 {
		return results, nil
	}

	computed, err := c.inner.embedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, idx := range missIdx {
		results[idx] = computed[j]
		c.cache.Add(c.cacheKey(texts[idx]), computed[j])
	}
	return results, nil
}

func (c *cachedEmbedder) tokenize(text string) ([]int32, error)         { return c.inner.tokenize(text) }
func (c *cachedEmbedder) detokenize(tokens []int32) (string, error)     { return c.inner.detokenize(tokens) }
func (c *cachedEmbedder) dimensions() int                               { return c.inner.dimensions() }
func (c *cachedEmbedder) close() error                                  { return c.inner.close() }
