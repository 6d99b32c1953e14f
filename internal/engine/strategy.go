package engine

import (
	"sort"
	"sync"

	"github.com/betbot/gofut/internal/domain"
)

// Context 策略可见的引擎能力面。策略不持有引擎反向指针，
// 只通过这里下单、订阅、查询快照。
type Context interface {
	// SendOrder 发单。stop 为真且通道不支持服务器停止单时创建本地停止单，
	// 返回 STOP.N 合成号；其余情况返回实际发出的 vt_orderid 列表。
	SendOrder(vtSymbol string, direction domain.Direction, offset domain.Offset,
		price, volume float64, stop, lock bool) []string
	// CancelOrder 撤单（vt_orderid 或 STOP.N）
	CancelOrder(vtOrderID string)
	// CancelAll 撤掉本策略全部活动委托与停止单
	CancelAll()

	// Subscribe 订阅额外合约的行情
	Subscribe(vtSymbol string) error

	GetTick(vtSymbol string) *domain.Tick
	GetContract(vtSymbol string) *domain.Contract
	GetPosition(vtPositionID string) *domain.Position
	GetOrder(vtOrderID string) *domain.Order

	// WriteLog 以策略名为来源写日志
	WriteLog(msg string)
}

// Strategy 策略回调集。嵌入 BaseStrategy 获得全部默认空实现，
// 只覆写需要的回调。
type Strategy interface {
	// OnInit 策略自行加载持久化状态；引擎不恢复变量
	OnInit(ctx Context) error
	OnStart()
	OnStop()

	OnTick(tick *domain.Tick)
	OnBar(bar *domain.Bar)
	OnOrder(order *domain.Order)
	OnTrade(trade *domain.Trade)
	OnStopOrder(stopOrder *domain.StopOrder)

	// UpdateSetting 应用配置参数（add/reload 时调用一次）
	UpdateSetting(setting map[string]interface{})

	// Pos 策略申报持仓：vt_symbol → 净头寸（正多负空），对账用
	Pos() map[string]float64

	// Variables 快照落盘的运行时变量
	Variables() map[string]interface{}
}

// BaseStrategy 全空实现底座
type BaseStrategy struct{}

func (BaseStrategy) OnInit(Context) error                  { return nil }
func (BaseStrategy) OnStart()                              {}
func (BaseStrategy) OnStop()                               {}
func (BaseStrategy) OnTick(*domain.Tick)                   {}
func (BaseStrategy) OnBar(*domain.Bar)                     {}
func (BaseStrategy) OnOrder(*domain.Order)                 {}
func (BaseStrategy) OnTrade(*domain.Trade)                 {}
func (BaseStrategy) OnStopOrder(*domain.StopOrder)         {}
func (BaseStrategy) UpdateSetting(map[string]interface{})  {}
func (BaseStrategy) Pos() map[string]float64               { return nil }
func (BaseStrategy) Variables() map[string]interface{}     { return nil }

// Factory 策略工厂，按类名注册
type Factory func() Strategy

var (
	factoryMu sync.RWMutex
	factories = make(map[string]Factory)
)

// Register 注册策略类。策略包在 init() 中调用，
// 由 strategies/all 的空白导入聚合。
func Register(className string, factory Factory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	if _, dup := factories[className]; dup {
		panic("策略类重复注册: " + className)
	}
	factories[className] = factory
}

// LookupFactory 查找策略工厂
func LookupFactory(className string) (Factory, bool) {
	factoryMu.RLock()
	defer factoryMu.RUnlock()
	f, ok := factories[className]
	return f, ok
}

// RegisteredClasses 已注册类名（排序）
func RegisteredClasses() []string {
	factoryMu.RLock()
	defer factoryMu.RUnlock()
	out := make([]string, 0, len(factories))
	for name := range factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// instance 引擎内部的策略实例簿记
type instance struct {
	name      string
	className string
	vtSymbol  string
	setting   map[string]interface{}

	strategy Strategy

	inited  bool
	trading bool

	subscribed   map[string]bool
	activeOrders map[string]bool
}

func newInstance(name, className, vtSymbol string, setting map[string]interface{}, s Strategy) *instance {
	return &instance{
		name:         name,
		className:    className,
		vtSymbol:     vtSymbol,
		setting:      setting,
		strategy:     s,
		subscribed:   map[string]bool{vtSymbol: true},
		activeOrders: make(map[string]bool),
	}
}

// Snapshot 对外暴露的策略状态
type Snapshot struct {
	Name      string                 `json:"name"`
	ClassName string                 `json:"class_name"`
	VtSymbol  string                 `json:"vt_symbol"`
	Inited    bool                   `json:"inited"`
	Trading   bool                   `json:"trading"`
	Setting   map[string]interface{} `json:"setting"`
	Variables map[string]interface{} `json:"variables"`
	Pos       map[string]float64     `json:"pos"`
}

func (i *instance) snapshot() Snapshot {
	return Snapshot{
		Name:      i.name,
		ClassName: i.className,
		VtSymbol:  i.vtSymbol,
		Inited:    i.inited,
		Trading:   i.trading,
		Setting:   i.setting,
		Variables: i.strategy.Variables(),
		Pos:       i.strategy.Pos(),
	}
}
