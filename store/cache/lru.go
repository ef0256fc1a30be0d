package cache

import (
	"container/list"
	"strings"
	"sync"
)

// LRU is a size-bounded least-recently-used cache.
// It is bounded both by entry count and by the total weight reported by the
// weigher, so a handful of large media bodies cannot pin the whole budget.
type LRU[V any] struct {
	capacity  int
	maxWeight int64
	weigh     func(V) int64
	mu        sync.Mutex

	weight int64
	items  map[string]*entry[V]
	order  *list.List // front is most recently used
}

type entry[V any] struct {
	key     string
	value   V
	weight  int64
	element *list.Element
}

// New creates an LRU holding at most capacity entries and maxWeight total weight.
// A nil weigher counts every value as weight 1.
func New[V any](capacity int, maxWeight int64, weigh func(V) int64) *LRU[V] {
	if capacity <= 0 {
		capacity = 256
	}
	if weigh == nil {
		weigh = func(V) int64 { return 1 }
	}
	if maxWeight <= 0 {
		maxWeight = int64(capacity)
	}

	return &LRU[V]{
		capacity:  capacity,
		maxWeight: maxWeight,
		weigh:     weigh,
		items:     make(map[string]*entry[V]),
		order:     list.New(),
	}
}

// Get retrieves a value and marks it most recently used.
func (c *LRU[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.order.MoveToFront(e.element)
	return e.value, true
}

// Set stores a value. Values heavier than the whole budget are not cached.
func (c *LRU[V]) Set(key string, value V) {
	w := c.weigh(value)

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[key]; ok {
		c.removeEntry(e)
	}
	if w > c.maxWeight {
		return
	}

	for len(c.items) >= c.capacity || (c.weight+w > c.maxWeight && c.order.Len() > 0) {
		c.evictOldest()
	}

	e := &entry[V]{key: key, value: value, weight: w}
	e.element = c.order.PushFront(e)
	c.items[key] = e
	c.weight += w
}

// Invalidate removes entries matching the pattern.
// Supports * wildcard at the end (e.g., "static-v1\x00*").
func (c *LRU[V]) Invalidate(pattern string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !strings.HasSuffix(pattern, "*") {
		if e, ok := c.items[pattern]; ok {
			c.removeEntry(e)
			return 1
		}
		return 0
	}

	count := 0
	prefix := strings.TrimSuffix(pattern, "*")
	for key, e := range c.items {
		if strings.HasPrefix(key, prefix) {
			c.removeEntry(e)
			count++
		}
	}
	return count
}

// Size returns the number of entries in the cache.
func (c *LRU[V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Weight returns the total weight of cached entries.
func (c *LRU[V]) Weight() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.weight
}

// Clear removes all entries from the cache.
func (c *LRU[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*entry[V])
	c.order.Init()
	c.weight = 0
}

// evictOldest removes the least recently used entry.
// Must be called with lock held.
func (c *LRU[V]) evictOldest() {
	oldest := c.order.Back()
	if oldest == nil {
		return
	}
	c.removeEntry(oldest.Value.(*entry[V]))
}

// removeEntry must be called with lock held.
func (c *LRU[V]) removeEntry(e *entry[V]) {
	c.order.Remove(e.element)
	delete(c.items, e.key)
	c.weight -= e.weight
}
