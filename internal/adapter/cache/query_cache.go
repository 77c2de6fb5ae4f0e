package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"biorag/internal/port"
)

// QueryCache is a size-bounded LRU of query embeddings with a TTL.
type QueryCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	order   []string
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

type cacheEntry struct {
	vector    []float32
	timestamp time.Time
}

func NewQueryCache(maxSize int, ttl time.Duration) *QueryCache {
	if maxSize <= 0 {
		maxSize = 100
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &QueryCache{
		entries: make(map[string]*cacheEntry),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

func cacheKey(model, query string) string {
	data := make([]byte, 0, len(model)+1+len(query))
	data = append(data, model...)
	data = append(data, 0)
	data = append(data, query...)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:16])
}

func (c *QueryCache) Get(model, query string) ([]float32, bool) {
	key := cacheKey(model, query)

	c.mu.RLock()
	entry, exists := c.entries[key]
	c.mu.RUnlock()

	if !exists {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.now().Sub(entry.timestamp) > c.ttl {
		delete(c.entries, key)
		c.removeFromOrder(key)
		return nil, false
	}

	c.moveToEnd(key)
	return entry.vector, true
}

func (c *QueryCache) Put(model, query string, vector []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(model, query)
	entry := &cacheEntry{vector: vector, timestamp: c.now()}

	if _, exists := c.entries[key]; exists {
		c.entries[key] = entry
		c.moveToEnd(key)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	c.entries[key] = entry
	c.order = append(c.order, key)
}

func (c *QueryCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.order = c.order[:0]
}

func (c *QueryCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *QueryCache) evictOldest() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, oldest)
}

func (c *QueryCache) moveToEnd(key string) {
	c.removeFromOrder(key)
	c.order = append(c.order, key)
}

func (c *QueryCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// CachedEmbedder serves repeated single-text Embed calls from a QueryCache.
// Batches pass straight through, so ingestion never fills the cache.
type CachedEmbedder struct {
	embedder port.Embedder
	cache    *QueryCache
}

func NewCachedEmbedder(embedder port.Embedder, cache *QueryCache) *CachedEmbedder {
	return &CachedEmbedder{
		embedder: embedder,
		cache:    cache,
	}
}

func (e *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) != 1 {
		return e.embedder.Embed(ctx, texts)
	}

	model := e.embedder.ModelName()
	if vector, hit := e.cache.Get(model, texts[0]); hit {
		return [][]float32{vector}, nil
	}

	vectors, err := e.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) == 1 && len(vectors[0]) > 0 {
		e.cache.Put(model, texts[0], vectors[0])
	}
	return vectors, nil
}

func (e *CachedEmbedder) Dimension() int {
	return e.embedder.Dimension()
}

func (e *CachedEmbedder) ModelName() string {
	return e.embedder.ModelName()
}
