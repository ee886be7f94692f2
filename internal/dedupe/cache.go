// ABOUTME: Thread-safe TTL cache of recently seen Telegram update ids
// ABOUTME: Lets the webhook drop redeliveries of an update it already dispatched

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

// maxCleanupInterval caps how long expired ids linger between sweeps
const maxCleanupInterval = time.Minute

// entry stores when an update id was seen and its position in the eviction order.
type entry struct {
	seenAt  time.Time
	element *list.Element
}

// Cache remembers update ids for a TTL, holding at most maxSize of them.
// The oldest id is evicted first once the cache is full.
type Cache struct {
	mu      sync.Mutex
	seen    map[int64]*entry
	order   *list.List // update ids, oldest at front
	ttl     time.Duration
	maxSize int
	now     func() time.Time
	done    chan struct{}
	closed  bool
}

// New creates a cache and starts its background sweep. Call Close to stop it.
func New(ttl time.Duration, maxSize int) *Cache {
	if maxSize < 1 {
		maxSize = 1
	}
	c := &Cache{
		seen:    make(map[int64]*entry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
		done:    make(chan struct{}),
	}

	interval := ttl
	if interval <= 0 || interval > maxCleanupInterval {
		interval = maxCleanupInterval
	}
	go c.sweepLoop(interval)
	return c
}

// Seen reports whether updateID was already seen within the TTL, and records it if not.
// Check and record happen under one lock so two concurrent deliveries cannot both pass.
func (c *Cache) Seen(updateID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if e, ok := c.seen[updateID]; ok {
		if now.Sub(e.seenAt) < c.ttl {
			return true
		}
		// Expired: refresh in place
		e.seenAt = now
		c.order.MoveToBack(e.element)
		return false
	}

	if len(c.seen) >= c.maxSize {
		c.evictOldest()
	}
	c.seen[updateID] = &entry{seenAt: now, element: c.order.PushBack(updateID)}
	return false
}

// Len returns the number of ids currently held, expired or not.
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
	id, _ := front.Value.(int64)
	c.order.Remove(front)
	delete(c.seen, id)
}

func (c *Cache) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.done:
			return
		}
	}
}

// sweep drops expired ids from the front of the order list.
// Seen moves refreshed ids to the back, so the list is ordered by seenAt.
func (c *Cache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for front := c.order.Front(); front != nil; front = c.order.Front() {
		id, _ := front.Value.(int64)
		if now.Sub(c.seen[id].seenAt) < c.ttl {
			return
		}
		c.order.Remove(front)
		delete(c.seen, id)
	}
}

// Close stops the background sweep. It is safe to call multiple times.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
