package eventbus

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

var busLog = logrus.WithField("component", "eventbus")

// Type 事件类型
type Type string

const (
	TypeTick             Type = "tick"
	TypeBar              Type = "bar"
	TypeOrder            Type = "order"
	TypeTrade            Type = "trade"
	TypePosition         Type = "position"
	TypeAccount          Type = "account"
	TypeContract         Type = "contract"
	TypeLog              Type = "log"
	TypeTimer            Type = "timer"
	TypeStopOrder        Type = "stop_order"
	TypeStrategyPos      Type = "strategy_pos"
	TypeStrategySnapshot Type = "strategy_snapshot"
	TypeAlgo             Type = "algo"
	TypeError            Type = "error"
	TypeWarning          Type = "warning"
	TypeCritical         Type = "critical"
)

// Event 总线事件
type Event struct {
	Type Type
	Data interface{}
}

// Handler 事件处理函数
// 在分发协程上运行至完成，不允许阻塞 I/O；重活交给调用方自己的工作池。
type Handler func(Event)

// Subscription 注册凭据，注销时回传
// 函数值不可比较（闭包指针会撞车），所以按凭据注销而不是按函数本身。
type Subscription int64

type registration struct {
	id Subscription
	fn Handler
}

// Bus 单线程协作式事件总线
// 所有处理器在同一分发协程上串行执行：同类型事件全序，跨类型只保证入队顺序。
type Bus struct {
	queue chan Event

	handlers   map[Type][]registration
	general    []registration // 接收所有事件
	nextSub    Subscription   // handlersMu 保护
	handlersMu sync.RWMutex

	timerInterval time.Duration

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	mu      sync.Mutex

	dropped atomic.Int64
}

// Option 总线配置选项
type Option func(*Bus)

// WithQueueSize 设置事件队列容量
func WithQueueSize(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.queue = make(chan Event, n)
		}
	}
}

// WithTimerInterval 设置定时事件间隔（默认 1 秒）
func WithTimerInterval(d time.Duration) Option {
	return func(b *Bus) {
		if d > 0 {
			b.timerInterval = d
		}
	}
}

// New 创建事件总线
func New(opts ...Option) *Bus {
	b := &Bus{
		queue:         make(chan Event, 10000),
		handlers:      make(map[Type][]registration),
		timerInterval: time.Second,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Register 注册类型处理器，返回注销用的凭据
func (b *Bus) Register(t Type, h Handler) Subscription {
	b.handlersMu.Lock()
	defer b.handlersMu.Unlock()
	b.nextSub++
	b.handlers[t] = append(b.handlers[t], registration{id: b.nextSub, fn: h})
	return b.nextSub
}

// RegisterGeneral 注册全量处理器（接收所有事件，记录器使用）
func (b *Bus) RegisterGeneral(h Handler) Subscription {
	b.handlersMu.Lock()
	defer b.handlersMu.Unlock()
	b.nextSub++
	b.general = append(b.general, registration{id: b.nextSub, fn: h})
	return b.nextSub
}

// Unregister 注销类型处理器，凭据不存在时静默忽略
func (b *Bus) Unregister(t Type, sub Subscription) {
	b.handlersMu.Lock()
	defer b.handlersMu.Unlock()
	b.handlers[t] = removeRegistration(b.handlers[t], sub)
	if len(b.handlers[t]) == 0 {
		delete(b.handlers, t)
	}
}

// UnregisterGeneral 注销全量处理器
func (b *Bus) UnregisterGeneral(sub Subscription) {
	b.handlersMu.Lock()
	defer b.handlersMu.Unlock()
	b.general = removeRegistration(b.general, sub)
}

func removeRegistration(regs []registration, sub Subscription) []registration {
	for i, r := range regs {
		if r.id == sub {
			return append(regs[:i:i], regs[i+1:]...)
		}
	}
	return regs
}

// Put 入队事件（线程安全，生产者只调用这里）
// 队列满时丢弃并记录；行情源短暂拥塞优于阻塞网关 I/O 线程。
func (b *Bus) Put(e Event) {
	select {
	case b.queue <- e:
	default:
		b.dropped.Add(1)
		busLog.Errorf("事件队列已满，事件被丢弃: type=%s", e.Type)
	}
}

// Start 启动分发协程与定时器
func (b *Bus) Start(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return
	}
	b.started = true
	b.ctx, b.cancel = context.WithCancel(ctx)

	b.wg.Add(2)
	go b.runDispatcher()
	go b.runTimer()
	busLog.Info("事件总线已启动")
}

// Stop 停止总线并等待分发协程退出
func (b *Bus) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.started {
		return
	}
	b.cancel()
	b.wg.Wait()
	b.started = false
	busLog.Infof("事件总线已停止（累计丢弃 %d 个事件）", b.dropped.Load())
}

// runDispatcher 分发主循环：严格 FIFO，处理器串行执行
func (b *Bus) runDispatcher() {
	defer b.wg.Done()
	for {
		select {
		case e := <-b.queue:
			b.process(e)
		case <-b.ctx.Done():
			// 退出前排空队列，保证已入队事件不丢
			for {
				select {
				case e := <-b.queue:
					b.process(e)
				default:
					return
				}
			}
		}
	}
}

// runTimer 定时事件源
func (b *Bus) runTimer() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.timerInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			b.Put(Event{Type: TypeTimer, Data: time.Now()})
		case <-b.ctx.Done():
			return
		}
	}
}

// process 调用一个事件的全部处理器，逐个加异常护罩
func (b *Bus) process(e Event) {
	b.handlersMu.RLock()
	typed := b.handlers[e.Type]
	general := b.general
	b.handlersMu.RUnlock()

	for _, r := range typed {
		b.invoke(r.fn, e)
	}
	for _, r := range general {
		b.invoke(r.fn, e)
	}
}

func (b *Bus) invoke(h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			busLog.Errorf("事件处理器 panic: type=%s err=%v", e.Type, r)
		}
	}()
	h(e)
}

// Dropped 累计丢弃事件数
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}
