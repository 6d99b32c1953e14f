// Package algo 承载母单算法：价差腿单、TWAP 与狙击单。
// 算法把母单拆成真实通道委托，再以 ALGO 通道名合成母单的
// 委托与成交回报推回总线，发起方策略只看到一张逻辑委托。
package algo

import (
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/betbot/gofut/internal/combiner"
	"github.com/betbot/gofut/internal/domain"
	"github.com/betbot/gofut/internal/oms"
	"github.com/betbot/gofut/pkg/eventbus"
)

// GatewayName 合成回报的通道名，母单 vt_orderid 形如 ALGO.STRATEGY_N
const GatewayName = "ALGO"

// Trader 算法发真实腿单的通路（由策略引擎提供）
type Trader interface {
	SendOrder(req *domain.OrderRequest, lock bool) []string
	CancelOrder(vtOrderID string)
}

// Algo 单个算法实例
type Algo interface {
	ParentID() string
	OnTick(tick *domain.Tick)
	OnOrder(order *domain.Order)
	OnTrade(trade *domain.Trade)
	OnTimer()
	// Stop 撤销未完成部分；已成交部分不回滚
	Stop()
	Finished() bool
}

// Engine 算法引擎
type Engine struct {
	bus    *eventbus.Bus
	book   *oms.OrderBook
	comb   *combiner.Combiner
	trader Trader

	mu        sync.Mutex
	parentSeq int64
	algos     map[string]Algo
	childOf   map[string]string // 腿单 vt_orderid -> 母单号

	log *logrus.Entry
}

// NewEngine 创建算法引擎并订阅定时事件
func NewEngine(bus *eventbus.Bus, book *oms.OrderBook, comb *combiner.Combiner, trader Trader) *Engine {
	e := &Engine{
		bus:     bus,
		book:    book,
		comb:    comb,
		trader:  trader,
		algos:   make(map[string]Algo),
		childOf: make(map[string]string),
		log:     logrus.WithField("component", "algo"),
	}
	bus.Register(eventbus.TypeTimer, func(eventbus.Event) {
		e.onTimer()
	})
	return e
}

func (e *Engine) nextParentID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.parentSeq++
	return fmt.Sprintf("%s.STRATEGY_%d", GatewayName, e.parentSeq)
}

// Start 接管合成合约母单，实例化价差算法
func (e *Engine) Start(req *domain.OrderRequest, strategyName string) (string, error) {
	if req.Exchange != domain.ExchangeSPD {
		return "", errors.Errorf("算法引擎只接管合成合约委托: %s", req.VtSymbol())
	}
	if e.comb == nil {
		return "", errors.New("未配置合成合约")
	}
	comb := e.comb.Find(req.Symbol)
	if comb == nil {
		return "", errors.Errorf("合成合约不存在: %s", req.Symbol)
	}

	parentID := e.nextParentID()
	a := newSpreadAlgo(e, parentID, strategyName, req.Clone(), comb)
	e.register(a)
	e.emitParentOrder(a.base(), domain.StatusNotTraded)
	e.log.Infof("价差算法已启动 %s: %s %s %v x%v [%s]",
		parentID, req.VtSymbol(), req.Direction, req.Price, req.Volume, strategyName)
	return parentID, nil
}

// StartTWAP 把母单按固定节奏切片执行
func (e *Engine) StartTWAP(req *domain.OrderRequest, strategyName string, slices int, interval time.Duration) (string, error) {
	if slices <= 0 {
		return "", errors.New("TWAP 切片数必须为正")
	}
	parentID := e.nextParentID()
	a := newTWAPAlgo(e, parentID, strategyName, req.Clone(), slices, interval)
	e.register(a)
	e.emitParentOrder(a.base(), domain.StatusNotTraded)
	e.log.Infof("TWAP 算法已启动 %s: %s 切片=%d 间隔=%s", parentID, req.VtSymbol(), slices, interval)
	return parentID, nil
}

// StartSniper 行情触及目标价时全量扫单
func (e *Engine) StartSniper(req *domain.OrderRequest, strategyName string) (string, error) {
	parentID := e.nextParentID()
	a := newSniperAlgo(e, parentID, strategyName, req.Clone())
	e.register(a)
	e.emitParentOrder(a.base(), domain.StatusNotTraded)
	e.log.Infof("狙击算法已启动 %s: %s 目标价=%v", parentID, req.VtSymbol(), req.Price)
	return parentID, nil
}

func (e *Engine) register(a Algo) {
	e.mu.Lock()
	e.algos[a.ParentID()] = a
	e.mu.Unlock()
}

// Cancel 撤销母单，返回是否归本引擎管
func (e *Engine) Cancel(parentID string) bool {
	e.mu.Lock()
	a, ok := e.algos[parentID]
	e.mu.Unlock()
	if !ok {
		return false
	}
	a.Stop()
	e.remove(parentID)
	e.log.Infof("算法 %s 已撤销", parentID)
	return true
}

func (e *Engine) remove(parentID string) {
	e.mu.Lock()
	delete(e.algos, parentID)
	for child, parent := range e.childOf {
		if parent == parentID {
			delete(e.childOf, child)
		}
	}
	e.mu.Unlock()
}

// ProcessTick 路由行情到各算法
func (e *Engine) ProcessTick(tick *domain.Tick) {
	for _, a := range e.snapshot() {
		a.OnTick(tick)
	}
	e.sweep()
}

// ProcessOrder 路由腿单回报到所属算法
func (e *Engine) ProcessOrder(order *domain.Order) {
	a := e.ownerOf(order.VtOrderID())
	if a == nil {
		return
	}
	a.OnOrder(order)
	e.sweep()
}

// ProcessTrade 路由腿单成交到所属算法
func (e *Engine) ProcessTrade(trade *domain.Trade) {
	a := e.ownerOf(trade.VtOrderID())
	if a == nil {
		return
	}
	a.OnTrade(trade)
	e.sweep()
}

func (e *Engine) onTimer() {
	for _, a := range e.snapshot() {
		a.OnTimer()
	}
	e.sweep()
}

func (e *Engine) snapshot() []Algo {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Algo, 0, len(e.algos))
	for _, a := range e.algos {
		out = append(out, a)
	}
	return out
}

func (e *Engine) ownerOf(vtOrderID string) Algo {
	e.mu.Lock()
	defer e.mu.Unlock()
	parentID, ok := e.childOf[vtOrderID]
	if !ok {
		return nil
	}
	return e.algos[parentID]
}

// sweep 摘除已完成的算法
func (e *Engine) sweep() {
	e.mu.Lock()
	finished := make([]string, 0)
	for parentID, a := range e.algos {
		if a.Finished() {
			finished = append(finished, parentID)
		}
	}
	e.mu.Unlock()
	for _, parentID := range finished {
		e.remove(parentID)
		e.log.Infof("算法 %s 执行完成 ✅", parentID)
	}
}

// sendLeg 发真实腿单并登记归属
func (e *Engine) sendLeg(parentID string, req *domain.OrderRequest, lock bool) []string {
	ids := e.trader.SendOrder(req, lock)
	e.mu.Lock()
	for _, id := range ids {
		e.childOf[id] = parentID
	}
	e.mu.Unlock()
	return ids
}

// ---------------------------------------------------------------------------
// 母单合成回报

// baseState 各算法共享的母单簿记
type baseState struct {
	parentID     string
	strategyName string
	req          *domain.OrderRequest
	traded       float64
	tradeSeq     int64
	stopped      bool
}

func (b *baseState) ParentID() string { return b.parentID }

func (b *baseState) Finished() bool {
	return b.stopped || b.traded >= b.req.Volume
}

// orderID 去掉通道前缀的母单号
func (b *baseState) orderID() string {
	return b.parentID[len(GatewayName)+1:]
}

// emitParentOrder 推送合成母单委托回报
func (e *Engine) emitParentOrder(b *baseState, status domain.Status) {
	e.bus.Put(eventbus.Event{Type: eventbus.TypeOrder, Data: &domain.Order{
		Symbol:       b.req.Symbol,
		Exchange:     b.req.Exchange,
		OrderID:      b.orderID(),
		GatewayName:  GatewayName,
		Direction:    b.req.Direction,
		Offset:       b.req.Offset,
		Type:         b.req.Type,
		Price:        b.req.Price,
		Volume:       b.req.Volume,
		Traded:       b.traded,
		Status:       status,
		Datetime:     time.Now(),
		StrategyName: b.strategyName,
	}})
}

// emitParentTrade 推送合成母单成交并同步母单状态
func (e *Engine) emitParentTrade(b *baseState, price, volume float64) {
	b.traded += volume
	b.tradeSeq++
	e.bus.Put(eventbus.Event{Type: eventbus.TypeTrade, Data: &domain.Trade{
		Symbol:      b.req.Symbol,
		Exchange:    b.req.Exchange,
		OrderID:     b.orderID(),
		TradeID:     fmt.Sprintf("%s_T%d", b.orderID(), b.tradeSeq),
		GatewayName: GatewayName,
		Direction:   b.req.Direction,
		Offset:      b.req.Offset,
		Price:       price,
		Volume:      volume,
		Datetime:    time.Now(),
	}})
	if b.traded >= b.req.Volume {
		e.emitParentOrder(b, domain.StatusAllTraded)
	} else {
		e.emitParentOrder(b, domain.StatusPartTraded)
	}
}
