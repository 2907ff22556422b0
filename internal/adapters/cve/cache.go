package cve

import (
	"container/list"
	"sync"

	"github.com/lcalzada-xor/certmap/internal/core/domain"
)

// DefaultCacheSize bounds the number of cached repository lookups.
const DefaultCacheSize = 1024

// QueryCache implements an LRU (Least Recently Used) cache for repository lookups.
// Many certificates share a vendor, so vendor queries repeat across a run.
type QueryCache struct {
	capacity int
	cache    map[string]*list.Element
	lru      *list.List
	mu       sync.Mutex
}

type cacheEntry struct {
	key   string
	value []domain.CVERecord
}

// NewQueryCache creates a new LRU cache with the specified capacity.
func NewQueryCache(capacity int) *QueryCache {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	return &QueryCache{
		capacity: capacity,
		cache:    make(map[string]*list.Element),
		lru:      list.New(),
	}
}

// Get retrieves a value from the cache
func (c *QueryCache) Get(key string) ([]domain.CVERecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.cache[key]; ok {
		c.lru.MoveToFront(elem)
		return elem.Value.(*cacheEntry).value, true
	}
	return nil, false
}

// Set adds or updates a value in the cache
func (c *QueryCache) Set(key string, value []domain.CVERecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.cache[key]; ok {
		c.lru.MoveToFront(elem)
		elem.Value.(*cacheEntry).value = value
		return
	}

	elem := c.lru.PushFront(&cacheEntry{key, value})
	c.cache[key] = elem

	// Evict oldest if over capacity
	if c.lru.Len() > c.capacity {
		if oldest := c.lru.Back(); oldest != nil {
			c.lru.Remove(oldest)
			delete(c.cache, oldest.Value.(*cacheEntry).key)
		}
	}
}

// Len returns the current number of items in the cache
func (c *QueryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Clear removes all items from the cache
func (c *QueryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]*list.Element)
	c.lru = list.New()
}
