package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/tripglot/translator-worker/internal/logging"
	"github.com/tripglot/translator-worker/internal/store"
)

// DefaultCacheCapacity bounds the cache when no capacity is configured.
const DefaultCacheCapacity = 500

// CacheEntry is a remembered translation.
type CacheEntry struct {
	Translation string    `json:"translation"`
	Confidence  float64   `json:"confidence"`
	ProviderID  string    `json:"providerId"`
	CreatedAt   time.Time `json:"createdAt"`
}

// cachePair persists as a [key, entry] JSON pair.
type cachePair struct {
	Key   string
	Entry CacheEntry
}

func (p cachePair) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]interface{}{p.Key, p.Entry})
}

func (p *cachePair) UnmarshalJSON(data []byte) error {
	var raw [2]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("cache pair is not a two-element array: %w", err)
	}
	if err := json.Unmarshal(raw[0], &p.Key); err != nil {
		return fmt.Errorf("cache pair key: %w", err)
	}
	if err := json.Unmarshal(raw[1], &p.Entry); err != nil {
		return fmt.Errorf("cache pair entry: %w", err)
	}
	return nil
}

// Cache maps exact trimmed source text (plus language pair) to a
// previously computed translation. When an insert would exceed the
// capacity the oldest quarter of entries by insertion order is evicted.
// Every write persists the whole cache through the store.
type Cache struct {
	mu      sync.Mutex
	entries map[string]CacheEntry
	order   []string
	max     int
	store   store.Store
	logger  *logging.Logger
}

// NewCache loads any persisted entries from the store. Decode failures
// start with an empty cache rather than blocking startup.
func NewCache(ctx context.Context, st store.Store, max int, logger *logging.Logger) *Cache {
	if max < 4 {
		max = DefaultCacheCapacity
	}
	if logger == nil {
		logger = logging.NewLogger("translate-cache")
	}
	c := &Cache{
		entries: make(map[string]CacheEntry),
		max:     max,
		store:   st,
		logger:  logger,
	}

	var persisted []cachePair
	found, err := st.Get(ctx, store.KeyTranslationCache, &persisted)
	if err != nil {
		logger.Warn("failed to load persisted cache, starting empty", "error", err)
		return c
	}
	if found {
		for _, p := range persisted {
			if _, exists := c.entries[p.Key]; exists {
				continue
			}
			c.entries[p.Key] = p.Entry
			c.order = append(c.order, p.Key)
		}
		c.evictIfNeeded()
		logger.Info("translation cache loaded", "entries", len(c.order))
	}
	return c
}

// Get returns the entry for exactly the given key.
func (c *Cache) Get(key string) (CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	return entry, ok
}

// Put inserts or updates an entry and persists the cache. An update
// keeps the key's original insertion position.
func (c *Cache) Put(ctx context.Context, key string, entry CacheEntry) {
	c.mu.Lock()
	if _, exists := c.entries[key]; !exists {
		c.order = append(c.order, key)
	}
	c.entries[key] = entry
	c.evictIfNeeded()
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	if err := c.store.Set(ctx, store.KeyTranslationCache, snapshot); err != nil {
		c.logger.Warn("failed to persist translation cache", "error", err)
	}
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}

// evictIfNeeded drops the oldest quarter when the bound is exceeded.
// Called with the lock held.
func (c *Cache) evictIfNeeded() {
	if len(c.order) <= c.max {
		return
	}
	drop := c.max / 4
	if drop < 1 {
		drop = 1
	}
	if over := len(c.order) - c.max; over > drop {
		drop = over
	}
	for _, key := range c.order[:drop] {
		delete(c.entries, key)
	}
	c.order = append([]string(nil), c.order[drop:]...)
}

func (c *Cache) snapshotLocked() []cachePair {
	pairs := make([]cachePair, 0, len(c.order))
	for _, key := range c.order {
		pairs = append(pairs, cachePair{Key: key, Entry: c.entries[key]})
	}
	return pairs
}
