package cache

import (
	"container/list"
	"sync"
	"time"
)

// LRUCache bounds memory two ways: a hard entry cap with least-recently-used
// eviction, and a per-entry TTL checked lazily on read and swept by
// CleanExpired.
type LRUCache[T any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	order   *list.List
	index   map[string]*list.Element
}

type entry[T any] struct {
	key    string
	value  T
	expiry time.Time
}

func (e *entry[T]) expired(now time.Time) bool {
	return now.After(e.expiry)
}

func NewLRUCache[T any](maxSize int, ttl time.Duration) *LRUCache[T] {
	return &LRUCache[T]{
		maxSize: maxSize,
		ttl:     ttl,
		order:   list.New(),
		index:   make(map[string]*list.Element),
	}
}

// Get retrieves a value from the cache. An expired entry reads as a miss and
// is dropped on the spot.
func (c *LRUCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	el, ok := c.index[key]
	if !ok {
		return zero, false
	}
	e := el.Value.(*entry[T])
	if e.expired(time.Now()) {
		c.drop(el)
		return zero, false
	}
	c.order.MoveToFront(el)
	return e.value, true
}

// Set stores a value, refreshing the TTL and recency of an existing key.
func (c *LRUCache[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := &entry[T]{key: key, value: value, expiry: time.Now().Add(c.ttl)}
	if el, ok := c.index[key]; ok {
		el.Value = e
		c.order.MoveToFront(el)
		return
	}

	c.index[key] = c.order.PushFront(e)
	for c.order.Len() > c.maxSize {
		c.drop(c.order.Back())
	}
}

// Delete removes a key from the cache
func (c *LRUCache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.index[key]; ok {
		c.drop(el)
	}
}

// Size returns the current number of items in the cache
func (c *LRUCache[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// CleanExpired removes every expired entry and reports how many were dropped.
func (c *LRUCache[T]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	var next *list.Element
	for el := c.order.Front(); el != nil; el = next {
		next = el.Next()
		if el.Value.(*entry[T]).expired(now) {
			c.drop(el)
			removed++
		}
	}
	return removed
}

// drop must be called with the lock held.
func (c *LRUCache[T]) drop(el *list.Element) {
	if el == nil {
		return
	}
	delete(c.index, el.Value.(*entry[T]).key)
	c.order.Remove(el)
}
