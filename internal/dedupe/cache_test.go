// ABOUTME: Tests for the update id dedupe cache
// ABOUTME: Validates TTL expiry, size-bounded eviction, sweeping and concurrent first-wins semantics

package dedupe

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock lets tests move time without sleeping
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newTestCache(t *testing.T, ttl time.Duration, maxSize int) (*Cache, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := New(ttl, maxSize)
	c.mu.Lock()
	c.now = clock.Now
	c.mu.Unlock()
	t.Cleanup(c.Close)
	return c, clock
}

func TestCache_Seen_FirstThenDuplicate(t *testing.T) {
	c, _ := newTestCache(t, 5*time.Minute, 100)

	assert.False(t, c.Seen(1001), "first delivery is new")
	assert.True(t, c.Seen(1001), "second delivery is a duplicate")
	assert.False(t, c.Seen(1002), "other ids are unaffected")
}

func TestCache_Seen_Expired(t *testing.T) {
	c, clock := newTestCache(t, time.Minute, 100)

	assert.False(t, c.Seen(1))
	clock.Advance(59 * time.Second)
	assert.True(t, c.Seen(1))

	clock.Advance(2 * time.Second)
	assert.False(t, c.Seen(1), "expired id is new again")
	assert.True(t, c.Seen(1), "and is re-recorded")
}

func TestCache_Eviction(t *testing.T) {
	c, _ := newTestCache(t, 5*time.Minute, 3)

	c.Seen(1)
	c.Seen(2)
	c.Seen(3)
	c.Seen(4) // evicts 1

	assert.Equal(t, 3, c.Len())
	assert.False(t, c.Seen(1), "oldest id was evicted")
}

func TestCache_EvictionOrderFollowsRefresh(t *testing.T) {
	c, clock := newTestCache(t, time.Minute, 2)

	c.Seen(1)
	c.Seen(2)
	clock.Advance(2 * time.Minute)
	c.Seen(1) // expired, refreshed to newest
	c.Seen(3) // evicts 2, the oldest

	assert.True(t, c.Seen(1))
	assert.True(t, c.Seen(3))
	assert.Equal(t, 2, c.Len())
}

func TestCache_Sweep(t *testing.T) {
	c, clock := newTestCache(t, time.Minute, 100)

	c.Seen(1)
	c.Seen(2)
	clock.Advance(30 * time.Second)
	c.Seen(3)

	clock.Advance(45 * time.Second)
	c.sweep()

	assert.Equal(t, 1, c.Len(), "only the id seen 45s ago survives")
	assert.True(t, c.Seen(3))
}

func TestCache_Concurrent_OneWinner(t *testing.T) {
	c, _ := newTestCache(t, 5*time.Minute, 100)

	var wg sync.WaitGroup
	var firsts atomic.Int32
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !c.Seen(777) {
				firsts.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), firsts.Load())
}

func TestCache_Close_Idempotent(t *testing.T) {
	c := New(time.Minute, 10)
	c.Close()
	c.Close()
}

func TestNew_ClampsMaxSize(t *testing.T) {
	c, _ := newTestCache(t, time.Minute, 0)

	c.Seen(1)
	c.Seen(2)
	assert.Equal(t, 1, c.Len())
}
