// Package cache 提供带 TTL 的进程内缓存，告警去重等短生命周期状态用它。
package cache

import (
	"sync"
	"time"
)

const sweepInterval = time.Minute

// Cache 通用缓存接口
type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)
	Set(key K, value V, ttl time.Duration)
	Delete(key K)
	Clear()
	Size() int
}

type entry[V any] struct {
	value    V
	deadline time.Time
}

// InMemoryCache map + RWMutex 的 TTL 缓存。
// 过期项读取时即判失效，后台每分钟统一回收一轮。
type InMemoryCache[K comparable, V any] struct {
	mu         sync.RWMutex
	entries    map[K]entry[V]
	defaultTTL time.Duration
}

// NewInMemoryCache 创建缓存，ttl 为 Set 未指定时的默认存活期
func NewInMemoryCache[K comparable, V any](defaultTTL time.Duration) *InMemoryCache[K, V] {
	c := &InMemoryCache[K, V]{
		entries:    make(map[K]entry[V]),
		defaultTTL: defaultTTL,
	}
	go c.sweeper()
	return c
}

// Get 读取未过期的值
func (c *InMemoryCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || time.Now().After(e.deadline) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set 写入值，ttl 为 0 时使用默认存活期
func (c *InMemoryCache[K, V]) Set(key K, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	c.mu.Lock()
	c.entries[key] = entry[V]{value: value, deadline: time.Now().Add(ttl)}
	c.mu.Unlock()
}

// Delete 删除一个键
func (c *InMemoryCache[K, V]) Delete(key K) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Clear 清空全部键
func (c *InMemoryCache[K, V]) Clear() {
	c.mu.Lock()
	c.entries = make(map[K]entry[V])
	c.mu.Unlock()
}

// Size 当前键数，含尚未回收的过期项
func (c *InMemoryCache[K, V]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *InMemoryCache[K, V]) sweeper() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for range ticker.C {
		now := time.Now()
		c.mu.Lock()
		for k, e := range c.entries {
			if now.After(e.deadline) {
				delete(c.entries, k)
			}
		}
		c.mu.Unlock()
	}
}
