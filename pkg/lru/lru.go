// Package lru 提供带空闲过期时间的 LRU 缓存，用于按设备缓存会话和偏好。
package lru

import (
	"container/list"
	"sync"
	"time"
)

type entry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
}

// Cache 是线程安全的 LRU 缓存。每次访问都会刷新条目的过期时间，
// 超过容量时淘汰最久未使用的条目，过期条目在访问或写入时惰性清理。
type Cache[V any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	order    *list.List // 头部为最近使用
	items    map[string]*list.Element
	now      func() time.Time
	onEvict  func(key string, value V)
}

// Options 配置缓存。Capacity 默认 10000，TTL 默认 30 分钟。
type Options[V any] struct {
	Capacity int
	TTL      time.Duration
	// OnEvict 在条目因过期或容量被移除时调用，调用时持有缓存锁，不能再访问缓存。
	OnEvict func(key string, value V)
	// Clock 仅用于测试，默认 time.Now。
	Clock func() time.Time
}

func New[V any](opts Options[V]) *Cache[V] {
	if opts.Capacity <= 0 {
		opts.Capacity = 10000
	}
	if opts.TTL <= 0 {
		opts.TTL = 30 * time.Minute
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Cache[V]{
		capacity: opts.Capacity,
		ttl:      opts.TTL,
		order:    list.New(),
		items:    make(map[string]*list.Element),
		now:      opts.Clock,
		onEvict:  opts.OnEvict,
	}
}

// Get 返回未过期的条目并把它移到最近使用的位置。
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry[V])
		now := c.now()
		if now.Before(e.expiresAt) {
			e.expiresAt = now.Add(c.ttl)
			c.order.MoveToFront(el)
			return e.value, true
		}
		c.removeLocked(el)
	}
	var zero V
	return zero, false
}

// GetOrAdd 返回已有的条目；不存在或已过期时调用 create 创建并加入缓存。
// create 在持有锁时执行，同一个键只会被创建一次。
func (c *Cache[V]) GetOrAdd(key string, create func() V) V {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry[V])
		if now.Before(e.expiresAt) {
			e.expiresAt = now.Add(c.ttl)
			c.order.MoveToFront(el)
			return e.value
		}
		c.removeLocked(el)
	}
	v := create()
	c.addLocked(key, v, now)
	return v
}

// Add 加入或替换条目。
func (c *Cache[V]) Add(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry[V])
		e.value = value
		e.expiresAt = now.Add(c.ttl)
		c.order.MoveToFront(el)
		return
	}
	c.addLocked(key, value, now)
}

// Remove 移除条目，不触发 OnEvict。
func (c *Cache[V]) Remove(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		return false
	}
	c.order.Remove(el)
	delete(c.items, key)
	return true
}

// Len 返回当前条目数 (可能包含尚未清理的过期条目)。
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Values 返回所有未过期的条目，从最近使用到最久未使用。
func (c *Cache[V]) Values() []V {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	out := make([]V, 0, len(c.items))
	for el := c.order.Front(); el != nil; el = el.Next() {
		if e := el.Value.(*entry[V]); now.Before(e.expiresAt) {
			out = append(out, e.value)
		}
	}
	return out
}

// CleanupExpired 清理所有过期条目，返回清理数量。
func (c *Cache[V]) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expireLocked(c.now())
}

func (c *Cache[V]) addLocked(key string, value V, now time.Time) {
	c.items[key] = c.order.PushFront(&entry[V]{key: key, value: value, expiresAt: now.Add(c.ttl)})
	c.expireLocked(now)
	for len(c.items) > c.capacity {
		c.removeLocked(c.order.Back())
	}
}

// expireLocked 从尾部开始清理过期条目。越靠近尾部越久未使用，遇到未过期的即可停止。
func (c *Cache[V]) expireLocked(now time.Time) int {
	removed := 0
	for el := c.order.Back(); el != nil; {
		e := el.Value.(*entry[V])
		if now.Before(e.expiresAt) {
			break
		}
		prev := el.Prev()
		c.removeLocked(el)
		removed++
		el = prev
	}
	return removed
}

func (c *Cache[V]) removeLocked(el *list.Element) {
	e := c.order.Remove(el).(*entry[V])
	delete(c.items, e.key)
	if c.onEvict != nil {
		c.onEvict(e.key, e.value)
	}
}
