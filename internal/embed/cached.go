package embed

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkorolev/factscan/internal/cache"
)

// CacheStore is the subset of the cache layer the embedding cache needs.
type CacheStore interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
}

// Cached decorates a Provider with per-text caching keyed on the model
// identity, so re-ingesting an unchanged corpus does not re-embed it.
// Determinism of the provider for a fixed model makes this safe.
type Cached struct {
	inner Provider
	store CacheStore
}

// NewCached wraps the given provider with the cache store.
func NewCached(inner Provider, store CacheStore) *Cached {
	return &Cached{inner: inner, store: store}
}

// Name returns the inner provider's name.
func (c *Cached) Name() string { return c.inner.Name() }

// ModelID returns the inner provider's model identity.
func (c *Cached) ModelID() string { return c.inner.ModelID() }

// BatchSize returns the inner provider's native batch size.
func (c *Cached) BatchSize() int { return c.inner.BatchSize() }

// Embed serves cached vectors where possible and embeds only the
// misses, preserving input order.
func (c *Cached) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	var missTexts []string
	var missIdx []int

	for i, text := range texts {
		key := cache.Key("embed", c.inner.ModelID(), text)
		if data, found := c.store.Get(key); found {
			var vec []float32
			if err := json.Unmarshal(data, &vec); err == nil && len(vec) > 0 {
				vectors[i] = vec
				continue
			}
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) > 0 {
		fresh, err := c.inner.Embed(ctx, missTexts)
		if err != nil {
			return nil, err
		}
		for j, vec := range fresh {
			vectors[missIdx[j]] = vec
			if data, err := json.Marshal(vec); err == nil {
				key := cache.Key("embed", c.inner.ModelID(), missTexts[j])
				_ = c.store.Set(key, data, 0)
			}
		}
	}
	return vectors, nil
}

// EmbedOne embeds a single query text through the cache.
func (c *Cached) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	return embedOne(ctx, c, text)
}
