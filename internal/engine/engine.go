// Package engine 实现策略运行时核心：策略生命周期、事件路由、
// 委托归属关联、本地停止单与持仓对账。所有事件处理运行在
// 总线分发协程上，重 I/O 任务（初始化、落盘）交给串行工作池。
package engine

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/betbot/gofut/internal/combiner"
	"github.com/betbot/gofut/internal/domain"
	"github.com/betbot/gofut/internal/gateway"
	"github.com/betbot/gofut/internal/metrics"
	"github.com/betbot/gofut/internal/offset"
	"github.com/betbot/gofut/internal/oms"
	"github.com/betbot/gofut/internal/risk"
	"github.com/betbot/gofut/pkg/eventbus"
	"github.com/betbot/gofut/pkg/persistence"
)

const (
	stopOrderPrefix = "STOP."

	snapshotInterval  = 60  // 秒，全员 trading 时广播策略持仓
	comparePosEvery   = 5   // 快照周期数，每 5 次快照对账一次
	watchdogInterval  = 10  // 秒，撤单看门狗巡检
	defaultCancelSecs = 120 // 超时重撤阈值
)

// Config 引擎配置（trader_config.json 的引擎部分）
type Config struct {
	AccountID      string `json:"accountid"`
	StrategyGroup  string `json:"strategy_group"`
	ComparePos     bool   `json:"compare_pos"`
	AutoBalance    bool   `json:"auto_balance"`
	SnapshotToFile bool   `json:"snapshot2file"`
	CancelSeconds  int    `json:"cancel_seconds"`
	DataDir        string `json:"data_dir"`

	// 断路器阈值，零值不启用
	MaxSendErrors  int64   `json:"max_send_errors"`
	DailyLossLimit float64 `json:"daily_loss_limit"`
}

// StrategyConfig 单策略配置（trader_setting.json 的条目）
type StrategyConfig struct {
	ClassName string                 `json:"class_name"`
	VtSymbol  string                 `json:"vt_symbol"`
	Setting   map[string]interface{} `json:"setting"`
	AutoInit  bool                   `json:"auto_init,omitempty"`
	AutoStart bool                   `json:"auto_start,omitempty"`
}

// AlgoHost 算法引擎能力面。合成合约（SPD）的委托转交算法引擎
// 拆腿执行，父单号 STRATEGY_N 由算法引擎生成。
type AlgoHost interface {
	Start(req *domain.OrderRequest, strategyName string) (string, error)
	Cancel(parentID string) bool
	ProcessTick(tick *domain.Tick)
	ProcessOrder(order *domain.Order)
	ProcessTrade(trade *domain.Trade)
}

// Engine 策略引擎
type Engine struct {
	cfg       Config
	bus       *eventbus.Bus
	book      *oms.OrderBook
	converter *offset.Converter
	comb      *combiner.Combiner
	algo      AlgoHost

	gateways     map[string]gateway.Gateway
	gatewayOrder []string

	busSubs []busSub // Close 时注销，引擎可重建而不留悬挂处理器

	mu               sync.Mutex
	strategies       map[string]*instance
	symbolStrategies map[string][]*instance
	orderStrategy    map[string]*instance
	orderTime        map[string]time.Time
	tradeIDs         map[string]bool
	stopSeq          int64
	stopOrders       map[string]*domain.StopOrder

	timerCount int64

	initPool *serialPool
	ioPool   *serialPool

	settings     map[string]StrategyConfig
	settingStore persistence.Store
	snapStore    persistence.Store

	breaker *risk.CircuitBreaker

	log *logrus.Entry
}

// NewEngine 创建策略引擎并在总线上注册事件处理。
// OrderBook 必须先于引擎注册，保证策略回调时快照已更新。
func NewEngine(cfg Config, bus *eventbus.Bus, book *oms.OrderBook,
	converter *offset.Converter, settingStore, snapStore persistence.Store) *Engine {
	if cfg.CancelSeconds <= 0 {
		cfg.CancelSeconds = defaultCancelSecs
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "."
	}
	e := &Engine{
		cfg:              cfg,
		bus:              bus,
		book:             book,
		converter:        converter,
		gateways:         make(map[string]gateway.Gateway),
		strategies:       make(map[string]*instance),
		symbolStrategies: make(map[string][]*instance),
		orderStrategy:    make(map[string]*instance),
		orderTime:        make(map[string]time.Time),
		tradeIDs:         make(map[string]bool),
		stopOrders:       make(map[string]*domain.StopOrder),
		settings:         make(map[string]StrategyConfig),
		settingStore:     settingStore,
		snapStore:        snapStore,
		initPool:         newSerialPool("init", 16),
		ioPool:           newSerialPool("io", 256),
		breaker: risk.NewCircuitBreaker(risk.CircuitBreakerConfig{
			MaxConsecutiveErrors: cfg.MaxSendErrors,
			DailyLossLimit:       cfg.DailyLossLimit,
		}),
		log: logrus.WithField("component", "engine"),
	}
	e.subscribe(eventbus.TypeTick, func(ev eventbus.Event) {
		if tick, ok := ev.Data.(*domain.Tick); ok {
			e.processTick(tick)
		}
	})
	e.subscribe(eventbus.TypeOrder, func(ev eventbus.Event) {
		if order, ok := ev.Data.(*domain.Order); ok {
			e.processOrder(order)
		}
	})
	e.subscribe(eventbus.TypeTrade, func(ev eventbus.Event) {
		if trade, ok := ev.Data.(*domain.Trade); ok {
			e.processTrade(trade)
		}
	})
	e.subscribe(eventbus.TypePosition, func(ev eventbus.Event) {
		if pos, ok := ev.Data.(*domain.Position); ok {
			e.converter.UpdatePosition(pos)
		}
	})
	e.subscribe(eventbus.TypeTimer, func(eventbus.Event) {
		e.processTimer()
	})
	return e
}

// busSub 引擎持有的总线订阅
type busSub struct {
	t   eventbus.Type
	sub eventbus.Subscription
}

func (e *Engine) subscribe(t eventbus.Type, h eventbus.Handler) {
	e.busSubs = append(e.busSubs, busSub{t: t, sub: e.bus.Register(t, h)})
}

// AddGateway 挂接交易通道；第一个挂接的通道为默认通道
func (e *Engine) AddGateway(gw gateway.Gateway) {
	e.gateways[gw.Name()] = gw
	e.gatewayOrder = append(e.gatewayOrder, gw.Name())
}

// SetCombiner 挂接自定义合约合成器
func (e *Engine) SetCombiner(c *combiner.Combiner) { e.comb = c }

// SetAlgo 挂接算法引擎
func (e *Engine) SetAlgo(a AlgoHost) { e.algo = a }

// Breaker 发单断路器（管理接口做人工熔断/恢复）
func (e *Engine) Breaker() *risk.CircuitBreaker { return e.breaker }

// Close 注销总线订阅后停止工作池，排空积压任务
func (e *Engine) Close() {
	for _, s := range e.busSubs {
		e.bus.Unregister(s.t, s.sub)
	}
	e.busSubs = nil
	e.initPool.Close()
	e.ioPool.Close()
	e.log.Info("策略引擎已停止")
}

func (e *Engine) defaultGateway() gateway.Gateway {
	if len(e.gatewayOrder) == 0 {
		return nil
	}
	return e.gateways[e.gatewayOrder[0]]
}

// gatewayFor 按合约发现来源选通道，缺省回退默认通道
func (e *Engine) gatewayFor(contract *domain.Contract) gateway.Gateway {
	if contract != nil {
		if gw, ok := e.gateways[contract.GatewayName]; ok {
			return gw
		}
	}
	return e.defaultGateway()
}

// ---------------------------------------------------------------------------
// 生命周期

// AddStrategy 装载策略实例。auto_init / auto_start 链式触发后续阶段。
func (e *Engine) AddStrategy(className, name, vtSymbol string,
	setting map[string]interface{}, autoInit, autoStart bool) error {
	factory, ok := LookupFactory(className)
	if !ok {
		return errors.Errorf("未知策略类: %s", className)
	}

	e.mu.Lock()
	if _, dup := e.strategies[name]; dup {
		e.mu.Unlock()
		return errors.Errorf("策略名重复: %s", name)
	}
	inst := newInstance(name, className, vtSymbol, setting, factory())
	e.strategies[name] = inst
	e.symbolStrategies[vtSymbol] = append(e.symbolStrategies[vtSymbol], inst)
	e.settings[name] = StrategyConfig{
		ClassName: className,
		VtSymbol:  vtSymbol,
		Setting:   setting,
		AutoInit:  autoInit,
		AutoStart: autoStart,
	}
	e.mu.Unlock()

	inst.strategy.UpdateSetting(setting)
	e.saveSettings()
	e.log.Infof("策略已装载: %s [%s] %s", name, className, vtSymbol)

	if autoInit {
		return e.InitStrategy(name, autoStart)
	}
	return nil
}

// InitStrategy 在串行初始化池上执行 on_init，避免阻塞行情分发。
// autoStart 为真时初始化完成后立即转入 trading。
func (e *Engine) InitStrategy(name string, autoStart bool) error {
	inst := e.getStrategy(name)
	if inst == nil {
		return errors.Errorf("策略不存在: %s", name)
	}
	e.initPool.Submit(func() {
		e.mu.Lock()
		if inst.inited {
			e.mu.Unlock()
			e.log.Warnf("策略 %s 已初始化，忽略", name)
			return
		}
		e.mu.Unlock()

		ok := true
		e.callStrategy(inst, "on_init", func() {
			if err := inst.strategy.OnInit(&strategyContext{engine: e, inst: inst}); err != nil {
				ok = false
				e.fault(fmt.Sprintf("策略 %s 初始化失败: %v", name, err))
			}
		})
		if !ok {
			return
		}
		if err := e.Subscribe(inst.vtSymbol); err != nil {
			e.log.Warnf("策略 %s 订阅 %s 失败: %v", name, inst.vtSymbol, err)
		}

		e.mu.Lock()
		inst.inited = true
		e.mu.Unlock()
		e.log.Infof("策略 %s 初始化完成 ✅", name)

		if autoStart {
			if err := e.StartStrategy(name); err != nil {
				e.log.Errorf("策略 %s 自动启动失败: %v", name, err)
			}
		}
	})
	return nil
}

// StartStrategy 转入 trading
func (e *Engine) StartStrategy(name string) error {
	inst := e.getStrategy(name)
	if inst == nil {
		return errors.Errorf("策略不存在: %s", name)
	}
	e.mu.Lock()
	if !inst.inited {
		e.mu.Unlock()
		return errors.Errorf("策略 %s 尚未初始化", name)
	}
	if inst.trading {
		e.mu.Unlock()
		return nil
	}
	inst.trading = true
	e.mu.Unlock()

	e.callStrategy(inst, "on_start", inst.strategy.OnStart)
	e.log.Infof("策略 %s 已启动 🚀", name)
	return nil
}

// StopStrategy 退出 trading 并撤掉全部活动委托与停止单
func (e *Engine) StopStrategy(name string) error {
	inst := e.getStrategy(name)
	if inst == nil {
		return errors.Errorf("策略不存在: %s", name)
	}
	e.mu.Lock()
	if !inst.trading {
		e.mu.Unlock()
		return nil
	}
	inst.trading = false
	e.mu.Unlock()

	e.callStrategy(inst, "on_stop", inst.strategy.OnStop)
	e.cancelAll(inst)
	e.log.Infof("策略 %s 已停止", name)
	return nil
}

// RemoveStrategy 卸载策略。trading 中的策略拒绝卸载。
func (e *Engine) RemoveStrategy(name string) error {
	e.mu.Lock()
	inst, ok := e.strategies[name]
	if !ok {
		e.mu.Unlock()
		return errors.Errorf("策略不存在: %s", name)
	}
	if inst.trading {
		e.mu.Unlock()
		return errors.Errorf("策略 %s 仍在交易中，先停止再卸载", name)
	}
	delete(e.strategies, name)
	delete(e.settings, name)
	for sym, list := range e.symbolStrategies {
		kept := list[:0]
		for _, s := range list {
			if s != inst {
				kept = append(kept, s)
			}
		}
		if len(kept) == 0 {
			delete(e.symbolStrategies, sym)
		} else {
			e.symbolStrategies[sym] = kept
		}
	}
	for id, s := range e.orderStrategy {
		if s == inst {
			delete(e.orderStrategy, id)
			delete(e.orderTime, id)
		}
	}
	for id, stop := range e.stopOrders {
		if stop.StrategyName == name {
			delete(e.stopOrders, id)
		}
	}
	e.mu.Unlock()

	e.saveSettings()
	e.log.Infof("策略 %s 已卸载", name)
	return nil
}

// ReloadStrategy 停止、卸载并用新配置重建实例。
// setting 为 nil 时沿用原配置。
func (e *Engine) ReloadStrategy(name string, setting map[string]interface{}) error {
	e.mu.Lock()
	cfg, ok := e.settings[name]
	e.mu.Unlock()
	if !ok {
		return errors.Errorf("策略不存在: %s", name)
	}
	if setting == nil {
		setting = cfg.Setting
	}
	if err := e.StopStrategy(name); err != nil {
		return err
	}
	if err := e.RemoveStrategy(name); err != nil {
		return err
	}
	return e.AddStrategy(cfg.ClassName, name, cfg.VtSymbol, setting, true, false)
}

// LoadSettings 从配置仓读出策略清单并逐一装载
func (e *Engine) LoadSettings() error {
	if e.settingStore == nil {
		return nil
	}
	var stored map[string]StrategyConfig
	if err := e.settingStore.Load(&stored); err != nil {
		if errors.Is(err, persistence.ErrNotExists) {
			return nil
		}
		return errors.Wrap(err, "读取策略配置失败")
	}
	names := make([]string, 0, len(stored))
	for name := range stored {
		names = append(names, name)
	}
	// 固定装载顺序，日志可复现
	sort.Strings(names)
	for _, name := range names {
		cfg := stored[name]
		if err := e.AddStrategy(cfg.ClassName, name, cfg.VtSymbol, cfg.Setting, cfg.AutoInit, cfg.AutoStart); err != nil {
			e.log.Errorf("装载策略 %s 失败: %v", name, err)
		}
	}
	metrics.SettingLoads.Add(1)
	return nil
}

func (e *Engine) saveSettings() {
	if e.settingStore == nil {
		return
	}
	e.mu.Lock()
	snapshot := make(map[string]StrategyConfig, len(e.settings))
	for name, cfg := range e.settings {
		snapshot[name] = cfg
	}
	e.mu.Unlock()
	e.ioPool.Submit(func() {
		if err := e.settingStore.Save(snapshot); err != nil {
			e.log.Errorf("保存策略配置失败: %v", err)
		}
	})
}

func (e *Engine) getStrategy(name string) *instance {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.strategies[name]
}

// Strategies 全部策略快照（控制面用）
func (e *Engine) Strategies() []Snapshot {
	e.mu.Lock()
	insts := make([]*instance, 0, len(e.strategies))
	for _, inst := range e.strategies {
		insts = append(insts, inst)
	}
	e.mu.Unlock()

	out := make([]Snapshot, 0, len(insts))
	for _, inst := range insts {
		out = append(out, inst.snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ---------------------------------------------------------------------------
// 事件路由

func (e *Engine) processTick(tick *domain.Tick) {
	if e.comb != nil {
		e.comb.ProcessTick(tick)
	}
	e.checkStopOrders(tick)
	if e.algo != nil {
		e.algo.ProcessTick(tick)
	}

	vtSymbol := tick.VtSymbol()
	e.mu.Lock()
	targets := make([]*instance, 0, 4)
	for _, inst := range e.symbolStrategies[vtSymbol] {
		if inst.inited {
			targets = append(targets, inst)
		}
	}
	for _, inst := range e.strategies {
		if inst.vtSymbol != vtSymbol && inst.subscribed[vtSymbol] && inst.inited {
			targets = append(targets, inst)
		}
	}
	e.mu.Unlock()

	for _, inst := range targets {
		snapshot := tick.Clone()
		e.callStrategy(inst, "on_tick", func() { inst.strategy.OnTick(snapshot) })
	}
}

// ProcessBar 路由外部推送的K线（文件/历史回放源）
func (e *Engine) ProcessBar(bar *domain.Bar) {
	vtSymbol := bar.VtSymbol()
	e.mu.Lock()
	targets := make([]*instance, 0, 4)
	for _, inst := range e.symbolStrategies[vtSymbol] {
		if inst.inited {
			targets = append(targets, inst)
		}
	}
	e.mu.Unlock()

	for _, inst := range targets {
		snapshot := bar.Clone()
		e.callStrategy(inst, "on_bar", func() { inst.strategy.OnBar(snapshot) })
	}
}

func (e *Engine) processOrder(order *domain.Order) {
	e.converter.UpdateOrder(order)
	if e.algo != nil {
		e.algo.ProcessOrder(order)
	}

	vtOrderID := order.VtOrderID()
	e.mu.Lock()
	inst := e.orderStrategy[vtOrderID]
	if inst != nil && !order.IsActive() {
		delete(inst.activeOrders, vtOrderID)
		delete(e.orderTime, vtOrderID)
	}
	e.mu.Unlock()
	if inst == nil {
		return
	}

	order.StrategyName = inst.name
	if order.Type == domain.OrderTypeStop {
		// 服务器停止单的状态以普通停止单回调形式同步给策略
		stop := &domain.StopOrder{
			StopOrderID:  vtOrderID,
			VtSymbol:     order.VtSymbol(),
			Direction:    order.Direction,
			Offset:       order.Offset,
			Price:        order.Price,
			Volume:       order.Volume,
			StrategyName: inst.name,
			Status:       serverStopStatus(order.Status),
		}
		e.callStrategy(inst, "on_stop_order", func() { inst.strategy.OnStopOrder(stop) })
	}
	snapshot := order.Clone()
	e.callStrategy(inst, "on_order", func() { inst.strategy.OnOrder(snapshot) })
}

func serverStopStatus(s domain.Status) domain.StopOrderStatus {
	switch s {
	case domain.StatusCancelled, domain.StatusRejected:
		return domain.StopOrderCancelled
	case domain.StatusAllTraded, domain.StatusPartTraded:
		return domain.StopOrderTriggered
	}
	return domain.StopOrderWaiting
}

func (e *Engine) processTrade(trade *domain.Trade) {
	vtTradeID := trade.VtTradeID()
	e.mu.Lock()
	if e.tradeIDs[vtTradeID] {
		e.mu.Unlock()
		e.log.Debugf("重复成交推送已忽略: %s", vtTradeID)
		return
	}
	e.tradeIDs[vtTradeID] = true
	inst := e.orderStrategy[trade.VtOrderID()]
	e.mu.Unlock()

	e.converter.UpdateTrade(trade)
	if e.algo != nil {
		e.algo.ProcessTrade(trade)
	}
	if inst == nil {
		return
	}

	e.writeTradeCSV(inst.name, trade)
	snapshot := trade.Clone()
	e.callStrategy(inst, "on_trade", func() { inst.strategy.OnTrade(snapshot) })
	e.putSnapshot(inst)
}

func (e *Engine) processTimer() {
	e.timerCount++
	if e.timerCount%watchdogInterval == 0 {
		e.runCancelWatchdog()
	}
	if e.timerCount%snapshotInterval != 0 {
		return
	}

	e.mu.Lock()
	allTrading := len(e.strategies) > 0
	insts := make([]*instance, 0, len(e.strategies))
	for _, inst := range e.strategies {
		insts = append(insts, inst)
		if !inst.trading {
			allTrading = false
		}
	}
	e.mu.Unlock()
	if !allTrading {
		return
	}

	for _, inst := range insts {
		e.bus.Put(eventbus.Event{Type: eventbus.TypeStrategyPos, Data: &StrategyPosition{
			AccountID:    e.cfg.AccountID,
			Group:        e.cfg.StrategyGroup,
			StrategyName: inst.name,
			Pos:          inst.strategy.Pos(),
		}})
		e.putSnapshot(inst)
	}

	if e.cfg.ComparePos && (e.timerCount/snapshotInterval)%comparePosEvery == 0 {
		e.comparePos()
	}
}

// StrategyPosition 策略申报持仓事件载荷
type StrategyPosition struct {
	AccountID    string             `json:"accountid"`
	Group        string             `json:"strategy_group"`
	StrategyName string             `json:"strategy_name"`
	Pos          map[string]float64 `json:"pos"`
}

func (e *Engine) putSnapshot(inst *instance) {
	snap := inst.snapshot()
	e.bus.Put(eventbus.Event{Type: eventbus.TypeStrategySnapshot, Data: &snap})
	if e.cfg.SnapshotToFile && e.snapStore != nil {
		metrics.SnapshotSaves.Add(1)
		e.ioPool.Submit(func() {
			var stored map[string]Snapshot
			if err := e.snapStore.Load(&stored); err != nil || stored == nil {
				stored = make(map[string]Snapshot)
			}
			stored[snap.Name] = snap
			if err := e.snapStore.Save(stored); err != nil {
				e.log.Errorf("保存策略快照失败: %v", err)
			}
		})
	}
}

// runCancelWatchdog 对悬挂超过 cancel_seconds 的活动委托重发撤单
func (e *Engine) runCancelWatchdog() {
	deadline := time.Now().Add(-time.Duration(e.cfg.CancelSeconds) * time.Second)
	e.mu.Lock()
	stale := make([]string, 0)
	for vtOrderID, issued := range e.orderTime {
		if issued.Before(deadline) {
			stale = append(stale, vtOrderID)
			e.orderTime[vtOrderID] = time.Now()
		}
	}
	e.mu.Unlock()

	for _, vtOrderID := range stale {
		e.log.Warnf("委托 %s 悬挂超过 %ds，重发撤单", vtOrderID, e.cfg.CancelSeconds)
		e.cancelServerOrder(vtOrderID)
	}
}

// ---------------------------------------------------------------------------
// 委托提交

// sendOrder 策略下单主通路。返回发出的委托号列表，可能为空。
func (e *Engine) sendOrder(inst *instance, vtSymbol string, direction domain.Direction,
	offsetFlag domain.Offset, price, volume float64, stop, lock bool,
	orderType domain.OrderType) []string {
	contract := e.book.GetContract(vtSymbol)
	if contract == nil {
		e.fault(fmt.Sprintf("策略 %s 下单失败，合约缺失: %s", inst.name, vtSymbol))
		return nil
	}

	if contract.PriceTick > 0 {
		price = domain.RoundTo(price, contract.PriceTick)
	}
	if contract.MinVolume > 0 {
		volume = domain.RoundTo(volume, contract.MinVolume)
	}
	if volume <= 0 {
		e.log.Warnf("策略 %s 委托量取整后为零: %s", inst.name, vtSymbol)
		return nil
	}

	if stop && !contract.StopSupported {
		return []string{e.sendStopOrder(inst, vtSymbol, direction, offsetFlag, price, volume, lock)}
	}
	if stop {
		orderType = domain.OrderTypeStop
	}

	req := &domain.OrderRequest{
		Symbol:    contract.Symbol,
		Exchange:  contract.Exchange,
		Direction: direction,
		Offset:    offsetFlag,
		Type:      orderType,
		Price:     price,
		Volume:    volume,
		Reference: inst.name,
	}

	if contract.IsSpread() {
		return e.sendAlgoOrder(inst, req)
	}
	return e.sendServerOrder(inst, req, lock)
}

// sendServerOrder 经开平转换后逐一发往通道
func (e *Engine) sendServerOrder(inst *instance, req *domain.OrderRequest, lock bool) []string {
	if err := e.breaker.AllowTrading(); err != nil {
		e.log.Errorf("策略 %s 下单被断路器拦截: %s", inst.name, req.VtSymbol())
		return nil
	}
	contract := e.book.GetContract(req.VtSymbol())
	gw := e.gatewayFor(contract)
	if gw == nil {
		e.fault(fmt.Sprintf("策略 %s 下单失败，无可用通道: %s", inst.name, req.VtSymbol()))
		return nil
	}

	childReqs := e.converter.Convert(req, lock)
	ids := make([]string, 0, len(childReqs))
	for _, child := range childReqs {
		vtOrderID, err := gw.SendOrder(child)
		if err != nil || vtOrderID == "" {
			e.breaker.OnError()
			e.log.Errorf("策略 %s 发单被拒: %s %s %s@%v x%v err=%v",
				inst.name, child.VtSymbol(), child.Direction, child.Offset, child.Price, child.Volume, err)
			continue
		}
		e.breaker.OnSuccess()
		gatewayName, orderID := splitVtOrderID(vtOrderID)
		e.converter.UpdateOrderRequest(child, orderID, gatewayName)

		e.mu.Lock()
		e.orderStrategy[vtOrderID] = inst
		inst.activeOrders[vtOrderID] = true
		e.orderTime[vtOrderID] = time.Now()
		e.mu.Unlock()
		ids = append(ids, vtOrderID)
	}
	return ids
}

func (e *Engine) sendAlgoOrder(inst *instance, req *domain.OrderRequest) []string {
	if e.algo == nil {
		e.fault(fmt.Sprintf("策略 %s 下单失败，合成合约无算法引擎: %s", inst.name, req.VtSymbol()))
		return nil
	}
	parentID, err := e.algo.Start(req, inst.name)
	if err != nil {
		e.log.Errorf("策略 %s 算法委托失败: %v", inst.name, err)
		return nil
	}
	e.mu.Lock()
	e.orderStrategy[parentID] = inst
	inst.activeOrders[parentID] = true
	e.mu.Unlock()
	return []string{parentID}
}

// SendOrder 算法引擎腿单通路：经开平转换发往通道，不登记策略归属。
// 腿单回报由算法引擎按自己的归属表消化。
func (e *Engine) SendOrder(req *domain.OrderRequest, lock bool) []string {
	contract := e.book.GetContract(req.VtSymbol())
	if contract == nil {
		e.fault(fmt.Sprintf("腿单发送失败，合约缺失: %s", req.VtSymbol()))
		return nil
	}
	if contract.PriceTick > 0 {
		req.Price = domain.RoundTo(req.Price, contract.PriceTick)
	}
	gw := e.gatewayFor(contract)
	if gw == nil {
		e.fault(fmt.Sprintf("腿单发送失败，无可用通道: %s", req.VtSymbol()))
		return nil
	}

	ids := make([]string, 0, 2)
	for _, child := range e.converter.Convert(req, lock) {
		vtOrderID, err := gw.SendOrder(child)
		if err != nil || vtOrderID == "" {
			e.log.Errorf("腿单被拒: %s %s %s@%v x%v err=%v",
				child.VtSymbol(), child.Direction, child.Offset, child.Price, child.Volume, err)
			continue
		}
		gatewayName, orderID := splitVtOrderID(vtOrderID)
		e.converter.UpdateOrderRequest(child, orderID, gatewayName)
		ids = append(ids, vtOrderID)
	}
	return ids
}

// CancelOrder 算法引擎腿单撤单通路
func (e *Engine) CancelOrder(vtOrderID string) {
	e.cancelServerOrder(vtOrderID)
}

func splitVtOrderID(vtOrderID string) (gatewayName, orderID string) {
	parts := strings.SplitN(vtOrderID, ".", 2)
	if len(parts) != 2 {
		return "", vtOrderID
	}
	return parts[0], parts[1]
}

// cancelOrder 撤销策略委托：本地停止单、算法父单或通道委托
func (e *Engine) cancelOrder(inst *instance, vtOrderID string) {
	if strings.HasPrefix(vtOrderID, stopOrderPrefix) {
		e.cancelStopOrder(vtOrderID)
		return
	}
	if e.algo != nil && e.algo.Cancel(vtOrderID) {
		e.mu.Lock()
		delete(inst.activeOrders, vtOrderID)
		delete(e.orderStrategy, vtOrderID)
		e.mu.Unlock()
		return
	}
	e.cancelServerOrder(vtOrderID)
}

func (e *Engine) cancelServerOrder(vtOrderID string) {
	order := e.book.GetOrder(vtOrderID)
	if order == nil {
		e.log.Warnf("撤单失败，委托不存在: %s", vtOrderID)
		return
	}
	gw, ok := e.gateways[order.GatewayName]
	if !ok {
		gw = e.defaultGateway()
	}
	if gw == nil {
		return
	}
	if !gw.CancelOrder(order.CreateCancelRequest()) {
		e.log.Warnf("撤单请求被通道拒绝: %s", vtOrderID)
	}
}

func (e *Engine) cancelAll(inst *instance) {
	e.mu.Lock()
	active := make([]string, 0, len(inst.activeOrders))
	for vtOrderID := range inst.activeOrders {
		active = append(active, vtOrderID)
	}
	e.mu.Unlock()
	for _, vtOrderID := range active {
		e.cancelOrder(inst, vtOrderID)
	}
}

// Subscribe 订阅合约行情。合成合约改为订阅两腿。
func (e *Engine) Subscribe(vtSymbol string) error {
	symbol, exchange := domain.SplitVtSymbol(vtSymbol)
	if exchange == domain.ExchangeSPD {
		if e.comb == nil {
			return errors.Errorf("未配置合成合约: %s", vtSymbol)
		}
		comb := e.comb.Find(symbol)
		if comb == nil {
			return errors.Errorf("合成合约不存在: %s", vtSymbol)
		}
		for _, leg := range []string{comb.Leg1VtSymbol, comb.Leg2VtSymbol} {
			if err := e.Subscribe(leg); err != nil {
				return err
			}
		}
		return nil
	}

	contract := e.book.GetContract(vtSymbol)
	gw := e.gatewayFor(contract)
	if gw == nil {
		return errors.Errorf("无可用通道订阅: %s", vtSymbol)
	}
	return gw.Subscribe(&domain.SubscribeRequest{Symbol: symbol, Exchange: exchange})
}

// ---------------------------------------------------------------------------
// 异常屏蔽与通知

// callStrategy 策略回调异常屏蔽。panic 的策略被强制停止，
// 引擎自身与其他策略不受影响。
func (e *Engine) callStrategy(inst *instance, what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.mu.Lock()
			inst.trading = false
			inst.inited = false
			e.mu.Unlock()
			msg := fmt.Sprintf("策略 %s 回调 %s 异常，已强制停止: %v", inst.name, what, r)
			e.log.Errorf("%s\n%s", msg, debug.Stack())
			e.bus.Put(eventbus.Event{Type: eventbus.TypeCritical, Data: &domain.LogEntry{
				Msg:   msg,
				Level: "critical",
			}})
		}
	}()
	fn()
}

// fault 配置类错误：记日志并推送告警事件
func (e *Engine) fault(msg string) {
	e.log.Error(msg)
	e.bus.Put(eventbus.Event{Type: eventbus.TypeError, Data: &domain.LogEntry{
		Msg:   msg,
		Level: "error",
	}})
}

// ---------------------------------------------------------------------------
// 成交流水

// writeTradeCSV 逐笔追加策略成交流水，失败只记日志
func (e *Engine) writeTradeCSV(strategyName string, trade *domain.Trade) {
	row := []string{
		trade.Datetime.Format("2006-01-02 15:04:05"),
		trade.VtSymbol(),
		trade.VtOrderID(),
		trade.VtTradeID(),
		string(trade.Direction),
		string(trade.Offset),
		strconv.FormatFloat(trade.Price, 'f', -1, 64),
		strconv.FormatFloat(trade.Volume, 'f', -1, 64),
	}
	path := filepath.Join(e.cfg.DataDir, strategyName+"_trades.csv")
	e.ioPool.Submit(func() {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			e.log.Errorf("打开成交流水失败 %s: %v", path, err)
			return
		}
		defer f.Close()
		w := csv.NewWriter(f)
		if err := w.Write(row); err != nil {
			e.log.Errorf("写成交流水失败 %s: %v", path, err)
			return
		}
		w.Flush()
		if err := w.Error(); err != nil {
			e.log.Errorf("刷新成交流水失败 %s: %v", path, err)
		}
	})
}
