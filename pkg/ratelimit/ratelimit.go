// Package ratelimit 实现柜台流控用到的两类限速器：
// 令牌桶（报撤单，允许突发、按速率回补）和滑动窗口（查询与订阅，硬上限）。
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// RateLimiter 速率限制器接口
type RateLimiter interface {
	Wait(ctx context.Context) error
	Allow() bool
	GetRemaining() int
	GetResetTime() time.Time
}

// TokenBucket 令牌桶。令牌按亚秒粒度连续回补，
// capacity 决定突发额度，refillRate 决定持续速率。
type TokenBucket struct {
	mu         sync.Mutex
	capacity   float64
	tokens     float64
	refillRate float64 // 每秒回补
	window     time.Duration
	lastTick   time.Time
}

// NewTokenBucket 创建令牌桶，初始为满
func NewTokenBucket(capacity, refillRate int, window time.Duration) *TokenBucket {
	return &TokenBucket{
		capacity:   float64(capacity),
		tokens:     float64(capacity),
		refillRate: float64(refillRate),
		window:     window,
		lastTick:   time.Now(),
	}
}

// refillLocked 按流逝时间连续回补令牌
func (tb *TokenBucket) refillLocked(now time.Time) {
	elapsed := now.Sub(tb.lastTick).Seconds()
	if elapsed <= 0 {
		return
	}
	tb.tokens += elapsed * tb.refillRate
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	tb.lastTick = now
}

// Allow 尝试消耗一个令牌
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.refillLocked(time.Now())
	if tb.tokens >= 1 {
		tb.tokens--
		return true
	}
	return false
}

// Wait 阻塞到拿到令牌或 ctx 结束
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		if tb.Allow() {
			return nil
		}
		pause := tb.window
		tb.mu.Lock()
		if tb.refillRate > 0 {
			// 距下一个整令牌还差多少
			deficit := 1 - tb.tokens
			if deficit < 0 {
				deficit = 0
			}
			pause = time.Duration(deficit / tb.refillRate * float64(time.Second))
		}
		tb.mu.Unlock()
		if pause <= 0 {
			pause = time.Millisecond
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pause):
		}
	}
}

// GetRemaining 当前可用令牌数
func (tb *TokenBucket) GetRemaining() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.refillLocked(time.Now())
	return int(tb.tokens)
}

// GetResetTime 预计回满的时刻
func (tb *TokenBucket) GetResetTime() time.Time {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	now := time.Now()
	tb.refillLocked(now)
	if tb.tokens >= tb.capacity || tb.refillRate <= 0 {
		return now
	}
	deficit := tb.capacity - tb.tokens
	return now.Add(time.Duration(deficit / tb.refillRate * float64(time.Second)))
}

// SlidingWindow 滑动窗口：窗口期内最多 limit 次，超出一律拒绝。
type SlidingWindow struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	stamps []time.Time
}

// NewSlidingWindow 创建滑动窗口限速器
func NewSlidingWindow(limit int, window time.Duration) *SlidingWindow {
	return &SlidingWindow{limit: limit, window: window}
}

// pruneLocked 丢弃窗口外的时间戳，stamps 按时间有序，找到分界截断即可
func (sw *SlidingWindow) pruneLocked(now time.Time) {
	cutoff := now.Add(-sw.window)
	i := 0
	for i < len(sw.stamps) && !sw.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		sw.stamps = append(sw.stamps[:0], sw.stamps[i:]...)
	}
}

// Allow 窗口未满时登记本次请求
func (sw *SlidingWindow) Allow() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	now := time.Now()
	sw.pruneLocked(now)
	if len(sw.stamps) >= sw.limit {
		return false
	}
	sw.stamps = append(sw.stamps, now)
	return true
}

// Wait 阻塞到窗口腾出名额或 ctx 结束
func (sw *SlidingWindow) Wait(ctx context.Context) error {
	for {
		if sw.Allow() {
			return nil
		}
		sw.mu.Lock()
		pause := 100 * time.Millisecond
		if len(sw.stamps) > 0 {
			if until := time.Until(sw.stamps[0].Add(sw.window)); until > pause {
				pause = until
			}
		}
		sw.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pause):
		}
	}
}

// GetRemaining 窗口内剩余名额
func (sw *SlidingWindow) GetRemaining() int {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.pruneLocked(time.Now())
	if left := sw.limit - len(sw.stamps); left > 0 {
		return left
	}
	return 0
}

// GetResetTime 最早一个名额释放的时刻
func (sw *SlidingWindow) GetResetTime() time.Time {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if len(sw.stamps) == 0 {
		return time.Now()
	}
	return sw.stamps[0].Add(sw.window)
}

// RateLimitManager 按端点名分发限速器
type RateLimitManager struct {
	mu       sync.RWMutex
	limiters map[string]RateLimiter
}

// NewRateLimitManager 创建管理器并装入默认端点表
func NewRateLimitManager() *RateLimitManager {
	m := &RateLimitManager{limiters: make(map[string]RateLimiter)}
	m.initDefaultLimiters()
	return m
}

// initDefaultLimiters 初始化默认的速率限制器。
// 报单撤单按柜台常见流控配置（每秒回补，短窗口突发），查询类 1 秒 1 笔。
func (m *RateLimitManager) initDefaultLimiters() {
	// 交易指令流控
	m.limiters["trade:order:insert"] = NewTokenBucket(10, 5, time.Second) // 突发 10，持续 5/s
	m.limiters["trade:order:action"] = NewTokenBucket(10, 5, time.Second)

	// 查询流控，柜台普遍限 1 次/秒
	m.limiters["query:account"] = NewSlidingWindow(1, time.Second)
	m.limiters["query:position"] = NewSlidingWindow(1, time.Second)
	m.limiters["query:history"] = NewSlidingWindow(1, time.Second)

	// 行情订阅与外发通知
	m.limiters["md:subscribe"] = NewSlidingWindow(100, 10*time.Second)
	m.limiters["notify:webhook"] = NewSlidingWindow(20, time.Minute)
}

// Register 注册或覆盖指定端点的限速器
func (m *RateLimitManager) Register(endpoint string, limiter RateLimiter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limiters[endpoint] = limiter
}

// GetLimiter 取端点限速器，未登记的端点给一个宽松默认值
func (m *RateLimitManager) GetLimiter(endpoint string) RateLimiter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limiter, ok := m.limiters[endpoint]; ok {
		return limiter
	}
	return NewSlidingWindow(5000, 10*time.Second)
}

// Wait 阻塞版端点限速
func (m *RateLimitManager) Wait(ctx context.Context, endpoint string) error {
	return m.GetLimiter(endpoint).Wait(ctx)
}

// Allow 非阻塞版端点限速
func (m *RateLimitManager) Allow(endpoint string) bool {
	return m.GetLimiter(endpoint).Allow()
}

// GetRemaining 端点剩余额度
func (m *RateLimitManager) GetRemaining(endpoint string) int {
	return m.GetLimiter(endpoint).GetRemaining()
}
