package risk

import (
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/betbot/gofut/internal/metrics"
)

// ErrCircuitBreakerOpen 表示断路器已打开，禁止继续发单。
var ErrCircuitBreakerOpen = fmt.Errorf("circuit breaker open")

// CircuitBreakerConfig 断路器配置。
// 约定：阈值 <= 0 表示关闭对应限制。
type CircuitBreakerConfig struct {
	// MaxConsecutiveErrors 连续发单失败上限。
	MaxConsecutiveErrors int64

	// DailyLossLimit 当日最大亏损（元）。达到或超过时立即熔断。
	DailyLossLimit float64
}

// CircuitBreaker 高频快路径使用原子变量，低频配置更新使用原子值。
//
// 说明：
// - 当日盈亏不是全链路闭环统计，由上层在成交回报处调用 AddPnL() 更新。
type CircuitBreaker struct {
	halted atomic.Bool

	consecutiveErrors atomic.Int64
	dailyPnlBits      atomic.Uint64 // float64 位模式
	dayKey            atomic.Int64  // YYYYMMDD

	maxConsecutiveErrors atomic.Int64
	dailyLossLimitBits   atomic.Uint64
}

func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	cb := &CircuitBreaker{}
	cb.SetConfig(cfg)
	return cb
}

func (cb *CircuitBreaker) SetConfig(cfg CircuitBreakerConfig) {
	if cb == nil {
		return
	}
	cb.maxConsecutiveErrors.Store(cfg.MaxConsecutiveErrors)
	cb.dailyLossLimitBits.Store(math.Float64bits(cfg.DailyLossLimit))
}

// Halt 手动熔断（如人工介入或检测到严重异常）。
func (cb *CircuitBreaker) Halt() {
	if cb == nil {
		return
	}
	cb.trip()
}

// trip 置熔断态，只在状态翻转时计数
func (cb *CircuitBreaker) trip() {
	if cb.halted.CompareAndSwap(false, true) {
		metrics.BreakerTrips.Add(1)
	}
}

// Resume 手动恢复（会同时清空连续错误计数）。
func (cb *CircuitBreaker) Resume() {
	if cb == nil {
		return
	}
	cb.halted.Store(false)
	cb.consecutiveErrors.Store(0)
}

// Halted 当前是否处于熔断态
func (cb *CircuitBreaker) Halted() bool {
	if cb == nil {
		return false
	}
	return cb.halted.Load()
}

// AllowTrading 快路径检查是否允许发单。
func (cb *CircuitBreaker) AllowTrading() error {
	if cb == nil {
		return nil
	}

	if cb.halted.Load() {
		return ErrCircuitBreakerOpen
	}

	// 连续错误熔断
	maxErr := cb.maxConsecutiveErrors.Load()
	if maxErr > 0 && cb.consecutiveErrors.Load() >= maxErr {
		cb.trip()
		return ErrCircuitBreakerOpen
	}

	// 当日亏损熔断（若启用）
	limit := math.Float64frombits(cb.dailyLossLimitBits.Load())
	if limit > 0 {
		cb.rollDayIfNeeded()
		pnl := math.Float64frombits(cb.dailyPnlBits.Load())
		if pnl <= -limit {
			cb.trip()
			return ErrCircuitBreakerOpen
		}
	}

	return nil
}

// OnSuccess 在一次发单成功后调用，清空连续错误计数。
func (cb *CircuitBreaker) OnSuccess() {
	if cb == nil {
		return
	}
	cb.consecutiveErrors.Store(0)
}

// OnError 在一次发单失败后调用，累计连续错误计数。
func (cb *CircuitBreaker) OnError() {
	if cb == nil {
		return
	}
	cb.consecutiveErrors.Add(1)
}

// AddPnL 增量更新当日盈亏（元）。负数表示亏损。
func (cb *CircuitBreaker) AddPnL(delta float64) {
	if cb == nil {
		return
	}
	cb.rollDayIfNeeded()
	for {
		old := cb.dailyPnlBits.Load()
		next := math.Float64bits(math.Float64frombits(old) + delta)
		if cb.dailyPnlBits.CompareAndSwap(old, next) {
			return
		}
	}
}

func (cb *CircuitBreaker) rollDayIfNeeded() {
	// YYYYMMDD（本地时间即可；风控用途不要求跨时区精确）
	now := time.Now()
	key := int64(now.Year()*10000 + int(now.Month())*100 + now.Day())
	prev := cb.dayKey.Load()
	if prev == key {
		return
	}
	// 切换 dayKey；成功者负责清零当日盈亏
	if cb.dayKey.CompareAndSwap(prev, key) {
		cb.dailyPnlBits.Store(0)
	}
}
