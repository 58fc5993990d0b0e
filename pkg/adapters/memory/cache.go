package memory

import (
	"context"
	"sync"
)

// DefaultCacheCapacity bounds the number of frames kept by NewCache.
const DefaultCacheCapacity = 1024

// Cache implements ports.FrameCache in memory with FIFO eviction.
// Safe for concurrent use.
type Cache struct {
	mu       sync.RWMutex
	data     map[string][]float32
	order    []string
	capacity int
}

// NewCache creates a cache holding at most capacity frames (DefaultCacheCapacity if <= 0).
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	return &Cache{
		data:     make(map[string][]float32),
		capacity: capacity,
	}
}

// Get returns a copy of the cached frame.
func (c *Cache) Get(ctx context.Context, key string) ([]float32, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.data[key]
	if !ok {
		return nil, false, nil
	}
	// Copy on read so callers can't mutate the cached frame.
	return append([]float32(nil), v...), true, nil
}

// Put stores a copy of pixels, evicting the oldest entry when full.
func (c *Cache) Put(ctx context.Context, key string, pixels []float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.data[key]; !exists {
		if len(c.order) >= c.capacity {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.data, oldest)
		}
		c.order = append(c.order, key)
	}
	c.data[key] = append([]float32(nil), pixels...)
	return nil
}

// Len returns the number of cached frames.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}
