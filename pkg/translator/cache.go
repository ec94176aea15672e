package translator

import "sync"

const DefaultCacheSize = 200

// Cache is a bounded map that evicts in insertion order. Overwriting a key
// keeps its original position.
type Cache struct {
	mu    sync.Mutex
	cap   int
	items map[string]string
	order []string
}

func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	return &Cache{cap: capacity, items: make(map[string]string, capacity)}
}

func (c *Cache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.items[key]
	return v, ok
}

func (c *Cache) Put(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[key]; !ok {
		c.order = append(c.order, key)
	}
	c.items[key] = value
	for len(c.order) > c.cap {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.items, oldest)
	}
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Cache) Cap() int { return c.cap }

func (c *Cache) Clear() {
	c.mu.Lock()
	c.items = make(map[string]string, c.cap)
	c.order = nil
	c.mu.Unlock()
}
