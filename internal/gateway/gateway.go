// Package gateway 定义交易通道能力集：连接、订阅、下单、撤单、查询，
// 所有回报通过事件总线推送。引擎对具体通道实现无感知。
package gateway

import (
	"github.com/sirupsen/logrus"

	"github.com/betbot/gofut/internal/domain"
	"github.com/betbot/gofut/pkg/eventbus"
)

// Gateway 交易通道能力集
type Gateway interface {
	// Name 通道名，构成 vt_orderid 前缀
	Name() string

	Connect(setting map[string]string) error
	Close() error

	Subscribe(req *domain.SubscribeRequest) error

	// SendOrder 返回 vt_orderid，空串表示发单失败
	SendOrder(req *domain.OrderRequest) (string, error)
	// CancelOrder 撤单为即发即忘，终态以 on_order 回报为准
	CancelOrder(req *domain.CancelRequest) bool

	QueryAccount() error
	QueryPosition() error
	QueryHistory(req *domain.HistoryRequest) ([]*domain.Bar, error)
}

// Base 通道公共底座：事件推送与日志
type Base struct {
	name string
	bus  *eventbus.Bus
	log  *logrus.Entry
}

// NewBase 创建底座
func NewBase(name string, bus *eventbus.Bus) *Base {
	return &Base{
		name: name,
		bus:  bus,
		log:  logrus.WithField("component", "gateway."+name),
	}
}

// Name 通道名
func (b *Base) Name() string { return b.name }

// Log 通道日志
func (b *Base) Log() *logrus.Entry { return b.log }

// OnTick 推送行情
func (b *Base) OnTick(tick *domain.Tick) {
	tick.GatewayName = b.name
	b.bus.Put(eventbus.Event{Type: eventbus.TypeTick, Data: tick})
}

// OnOrder 推送委托回报
func (b *Base) OnOrder(order *domain.Order) {
	order.GatewayName = b.name
	b.bus.Put(eventbus.Event{Type: eventbus.TypeOrder, Data: order})
}

// OnTrade 推送成交回报
func (b *Base) OnTrade(trade *domain.Trade) {
	trade.GatewayName = b.name
	b.bus.Put(eventbus.Event{Type: eventbus.TypeTrade, Data: trade})
}

// OnPosition 推送持仓
func (b *Base) OnPosition(pos *domain.Position) {
	pos.GatewayName = b.name
	b.bus.Put(eventbus.Event{Type: eventbus.TypePosition, Data: pos})
}

// OnAccount 推送资金
func (b *Base) OnAccount(acc *domain.Account) {
	acc.GatewayName = b.name
	b.bus.Put(eventbus.Event{Type: eventbus.TypeAccount, Data: acc})
}

// OnContract 推送合约信息
func (b *Base) OnContract(contract *domain.Contract) {
	contract.GatewayName = b.name
	b.bus.Put(eventbus.Event{Type: eventbus.TypeContract, Data: contract})
}

// WriteLog 推送通道日志事件
func (b *Base) WriteLog(msg string) {
	b.log.Info(msg)
	b.bus.Put(eventbus.Event{Type: eventbus.TypeLog, Data: &domain.LogEntry{
		Msg:         msg,
		Level:       "info",
		GatewayName: b.name,
	}})
}
