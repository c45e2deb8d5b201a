package lru

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestCache(capacity int, ttl time.Duration) (*Cache[int], *fakeClock, *[]string) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	var evicted []string
	c := New(Options[int]{
		Capacity: capacity,
		TTL:      ttl,
		Clock:    clock.now,
		OnEvict:  func(key string, _ int) { evicted = append(evicted, key) },
	})
	return c, clock, &evicted
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c, _, evicted := newTestCache(3, time.Hour)
	c.Add("a", 1)
	c.Add("b", 2)
	c.Add("c", 3)
	_, ok := c.Get("a")
	require.True(t, ok)

	c.Add("d", 4)
	_, ok = c.Get("b")
	assert.False(t, ok)
	assert.Equal(t, []string{"b"}, *evicted)
	assert.Equal(t, 3, c.Len())
	assert.Equal(t, []int{4, 1, 3}, c.Values())
}

func TestCache_IdleEntriesExpire(t *testing.T) {
	c, clock, evicted := newTestCache(10, time.Minute)
	c.Add("a", 1)
	c.Add("b", 2)

	clock.advance(40 * time.Second)
	_, ok := c.Get("a") // 访问会续期
	require.True(t, ok)

	clock.advance(40 * time.Second)
	_, ok = c.Get("b")
	assert.False(t, ok)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, []string{"b"}, *evicted)
}

func TestCache_AddCleansExpiredTail(t *testing.T) {
	c, clock, _ := newTestCache(100, time.Minute)
	for i := 0; i < 50; i++ {
		c.Add(fmt.Sprint(i), i)
	}
	clock.advance(2 * time.Minute)
	c.Add("fresh", 1)
	assert.Equal(t, 1, c.Len())
}

func TestCache_GetOrAddCreatesOnce(t *testing.T) {
	c, clock, _ := newTestCache(10, time.Minute)
	calls := 0
	create := func() int { calls++; return calls }

	assert.Equal(t, 1, c.GetOrAdd("k", create))
	assert.Equal(t, 1, c.GetOrAdd("k", create))
	assert.Equal(t, 1, calls)

	clock.advance(time.Hour)
	assert.Equal(t, 2, c.GetOrAdd("k", create))
}

func TestCache_RemoveAndCleanup(t *testing.T) {
	c, clock, evicted := newTestCache(10, time.Minute)
	c.Add("a", 1)
	c.Add("b", 2)
	assert.True(t, c.Remove("a"))
	assert.False(t, c.Remove("a"))
	assert.Empty(t, *evicted)

	clock.advance(time.Hour)
	assert.Equal(t, 1, c.CleanupExpired())
	assert.Zero(t, c.Len())
}

func TestCache_Concurrent(t *testing.T) {
	c := New(Options[int]{Capacity: 64, TTL: time.Minute})
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				key := fmt.Sprint(i % 100)
				c.GetOrAdd(key, func() int { return g })
				c.Get(key)
			}
		}(g)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 64)
}
