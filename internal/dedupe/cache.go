// ABOUTME: Thread-safe TTL cache for deduplicating inbound notifications.
// ABOUTME: Graph redelivers change notifications; each message id gets one run.

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

type entry struct {
	seenAt  time.Time
	element *list.Element
}

// Cache tracks recently seen notification ids. It is TTL-based and
// size-limited; when full, the oldest id is evicted in O(1) via the
// insertion-order list.
type Cache struct {
	mu      sync.Mutex
	seen    map[string]*entry
	order   *list.List // notification ids, oldest at front
	ttl     time.Duration
	maxSize int
	done    chan struct{}
	closed  bool
}

// New creates a dedupe cache with the given TTL and maximum size.
// A background goroutine sweeps expired entries.
func New(ttl time.Duration, maxSize int) *Cache {
	c := &Cache{
		seen:    make(map[string]*entry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	go c.sweep()
	return c
}

// CheckAndMark atomically checks whether a notification id has been seen
// and marks it if not. Returns true for a duplicate, false when the id is
// new and now marked. The single lock avoids a check-then-mark race when
// Graph delivers the same notification concurrently.
func (c *Cache) CheckAndMark(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.seen[id]; ok && time.Since(e.seenAt) < c.ttl {
		return true
	}

	now := time.Now()
	if e, ok := c.seen[id]; ok {
		// Expired entry, refresh in place.
		e.seenAt = now
		c.order.MoveToBack(e.element)
		return false
	}

	if len(c.seen) >= c.maxSize {
		c.evictOldest()
	}
	c.seen[id] = &entry{seenAt: now, element: c.order.PushBack(id)}
	return false
}

// Len reports the number of tracked ids.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

// evictOldest removes the oldest id. Must be called with mu held.
func (c *Cache) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}
	id, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.seen, id)
}

func (c *Cache) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-c.done:
			return
		}
	}
}

func (c *Cache) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for id, e := range c.seen {
		if now.Sub(e.seenAt) > c.ttl {
			c.order.Remove(e.element)
			delete(c.seen, id)
		}
	}
}

// Close stops the background sweep. Safe to call multiple times.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
