// Package cache provides the bounded LRU cache used for search results and
// recommendations. Get and Put are O(1): a map finds the entry and an
// intrusive doubly linked list keeps recency order.
package cache

import (
	"errors"
	"sync"

	"github.com/bastiangx/menuserve/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// ErrInvalidCapacity is returned when a cache is built with capacity <= 0.
var ErrInvalidCapacity = errors.New("cache: capacity must be positive")

type entry[V any] struct {
	key     string
	value   V
	recency uint64
	prev    *entry[V]
	next    *entry[V]
}

// LRU is a fixed-capacity least-recently-used cache. Safe for concurrent use.
type LRU[V any] struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*entry[V]
	// head is the most recent entry, tail the next eviction candidate.
	head *entry[V]
	tail *entry[V]
	seq  uint64

	hits      uint64
	misses    uint64
	evictions uint64

	hitCounter   prometheus.Counter
	missCounter  prometheus.Counter
	evictCounter prometheus.Counter
}

// Option configures an LRU.
type Option func(*options)

type options struct {
	name string
}

// WithName labels the cache's Prometheus series. Default is "default".
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

// New creates a cache holding at most capacity entries.
func New[V any](capacity int, opts ...Option) (*LRU[V], error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	o := options{name: "default"}
	for _, opt := range opts {
		opt(&o)
	}
	return &LRU[V]{
		capacity:     capacity,
		items:        make(map[string]*entry[V], capacity),
		hitCounter:   metrics.CacheRequestsTotal.WithLabelValues(o.name, "hit"),
		missCounter:  metrics.CacheRequestsTotal.WithLabelValues(o.name, "miss"),
		evictCounter: metrics.CacheEvictionsTotal.WithLabelValues(o.name),
	}, nil
}

// Get returns the value for key and marks it most recently used.
func (c *LRU[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		c.misses++
		c.missCounter.Inc()
		var zero V
		return zero, false
	}
	c.hits++
	c.hitCounter.Inc()
	c.touch(e)
	return e.value, true
}

// Peek returns the value for key without touching its recency.
func (c *LRU[V]) Peek(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[key]; ok {
		return e.value, true
	}
	var zero V
	return zero, false
}

// Put stores value under key. An existing key gets the new value and
// becomes most recent without evicting anything; a new key at capacity
// evicts the least recently used entry first.
func (c *LRU[V]) Put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[key]; ok {
		e.value = value
		c.touch(e)
		return
	}

	if len(c.items) >= c.capacity {
		c.evictOldest()
	}

	c.seq++
	e := &entry[V]{key: key, value: value, recency: c.seq}
	c.pushFront(e)
	c.items[key] = e
}

// Delete removes key. It reports whether the key was present.
func (c *LRU[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		return false
	}
	c.unlink(e)
	delete(c.items, key)
	return true
}

// Clear drops every entry and restarts the recency sequence.
func (c *LRU[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*entry[V], c.capacity)
	c.head = nil
	c.tail = nil
	c.seq = 0
}

// Len returns the number of live entries.
func (c *LRU[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Capacity returns the configured capacity.
func (c *LRU[V]) Capacity() int {
	return c.capacity
}

// Oldest returns the key that would be evicted next.
func (c *LRU[V]) Oldest() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tail == nil {
		return "", false
	}
	return c.tail.key, true
}

// Stats returns counters in the same shape as the other components.
func (c *LRU[V]) Stats() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return map[string]int{
		"entries":   len(c.items),
		"capacity":  c.capacity,
		"hits":      int(c.hits),
		"misses":    int(c.misses),
		"evictions": int(c.evictions),
	}
}

func (c *LRU[V]) touch(e *entry[V]) {
	c.seq++
	e.recency = c.seq
	if c.head == e {
		return
	}
	c.unlink(e)
	c.pushFront(e)
}

func (c *LRU[V]) evictOldest() {
	e := c.tail
	if e == nil {
		return
	}
	c.unlink(e)
	delete(c.items, e.key)
	c.evictions++
	c.evictCounter.Inc()
}

func (c *LRU[V]) pushFront(e *entry[V]) {
	e.prev = nil
	e.next = c.head
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *LRU[V]) unlink(e *entry[V]) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
	e.prev = nil
	e.next = nil
}
