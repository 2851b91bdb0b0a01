package embedding

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// Cache wraps an Embedder with a content-hash-keyed cache, so re-indexing an
// unchanged chunk never recomputes (or re-pays for) its embedding. Eviction
// is LRU-bounded by MaxEntries and time-bounded by TTL.
type Cache struct {
	inner      Embedder
	maxEntries int
	ttl        time.Duration

	mu      sync.Mutex
	entries map[string]*list.Element // key -> node in order
	order   *list.List                // front = most recently used
}

type cacheEntry struct {
	key       string
	vector    []float32
	expiresAt time.Time
}

// NewCache wraps inner with a cache holding up to maxEntries vectors, each
// valid for ttl. A non-positive maxEntries disables the size bound; a
// non-positive ttl disables expiry.
func NewCache(inner Embedder, maxEntries int, ttl time.Duration) *Cache {
	return &Cache{
		inner:      inner,
		maxEntries: maxEntries,
		ttl:        ttl,
		entries:    make(map[string]*list.Element),
		order:      list.New(),
	}
}

func (c *Cache) Name() string   { return c.inner.Name() }
func (c *Cache) Dimension() int { return c.inner.Dimension() }

// Key returns the cache key for text under this cache's model name: the
// SHA-256 hex of the model name and text. EmbedBatch looks entries up by it.
func (c *Cache) Key(text string) string {
	sum := sha256.Sum256([]byte(c.inner.Name() + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

// EmbedBatch returns a vector per text, serving cache hits directly and
// batching the remaining misses through the wrapped Embedder in one call.
func (c *Cache) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string

	now := time.Now()
	c.mu.Lock()
	for i, t := range texts {
		key := c.Key(t)
		if el, ok := c.entries[key]; ok {
			entry := el.Value.(*cacheEntry)
			if c.ttl <= 0 || now.Before(entry.expiresAt) {
				c.order.MoveToFront(el)
				out[i] = entry.vector
				continue
			}
			c.removeLocked(el)
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}
	c.mu.Unlock()

	if len(missTexts) == 0 {
		return out, nil
	}

	vectors, err := c.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	for i, idx := range missIdx {
		out[idx] = vectors[i]
		c.storeLocked(c.Key(missTexts[i]), vectors[i], now)
	}
	c.mu.Unlock()

	return out, nil
}

func (c *Cache) storeLocked(key string, vec []float32, now time.Time) {
	if el, ok := c.entries[key]; ok {
		entry := el.Value.(*cacheEntry)
		entry.vector = vec
		if c.ttl > 0 {
			entry.expiresAt = now.Add(c.ttl)
		}
		c.order.MoveToFront(el)
		return
	}

	entry := &cacheEntry{key: key, vector: vec}
	if c.ttl > 0 {
		entry.expiresAt = now.Add(c.ttl)
	}
	el := c.order.PushFront(entry)
	c.entries[key] = el

	if c.maxEntries > 0 {
		for len(c.entries) > c.maxEntries {
			oldest := c.order.Back()
			if oldest == nil {
				break
			}
			c.removeLocked(oldest)
		}
	}
}

func (c *Cache) removeLocked(el *list.Element) {
	entry := el.Value.(*cacheEntry)
	delete(c.entries, entry.key)
	c.order.Remove(el)
}

// SweepExpired removes every entry whose TTL has already elapsed as of now,
// for a periodic sweeper goroutine to call rather than relying solely on
// lazy per-read expiry. A non-positive TTL means entries never expire, so
// this is a no-op in that case.
func (c *Cache) SweepExpired(now time.Time) int {
	if c.ttl <= 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for key, el := range c.entries {
		entry := el.Value.(*cacheEntry)
		if now.After(entry.expiresAt) {
			c.order.Remove(el)
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len reports the current number of cached entries, primarily for tests.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
