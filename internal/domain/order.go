package domain

import (
	"fmt"
	"time"
)

// Order 委托单
type Order struct {
	Symbol      string
	Exchange    Exchange
	OrderID     string // 网关内唯一（FRONT_SESSION_REF）
	SysOrderID  string // 交易所系统编号
	GatewayName string
	HolderID    string // 多账户子账号

	Direction Direction
	Offset    Offset
	Type      OrderType
	Price     float64
	Volume    float64
	Traded    float64
	Status    Status
	Datetime  time.Time

	StrategyName string
}

// VtSymbol 合约唯一标识
func (o *Order) VtSymbol() string {
	return VtSymbolOf(o.Symbol, o.Exchange)
}

// VtOrderID 委托唯一标识：gateway.orderid
func (o *Order) VtOrderID() string {
	return fmt.Sprintf("%s.%s", o.GatewayName, o.OrderID)
}

// IsActive 是否仍为活动委托
func (o *Order) IsActive() bool {
	return o.Status.IsActive()
}

// Clone 返回副本
func (o *Order) Clone() *Order {
	c := *o
	return &c
}

// CreateCancelRequest 由委托生成撤单请求
func (o *Order) CreateCancelRequest() *CancelRequest {
	return &CancelRequest{
		OrderID:  o.OrderID,
		Symbol:   o.Symbol,
		Exchange: o.Exchange,
	}
}

// Trade 成交回报（不可变，按 VtTradeID 去重）
type Trade struct {
	Symbol      string
	Exchange    Exchange
	OrderID     string
	TradeID     string
	GatewayName string
	HolderID    string

	Direction Direction
	Offset    Offset
	Price     float64
	Volume    float64
	Datetime  time.Time
}

// VtSymbol 合约唯一标识
func (t *Trade) VtSymbol() string {
	return VtSymbolOf(t.Symbol, t.Exchange)
}

// VtTradeID 成交唯一标识
func (t *Trade) VtTradeID() string {
	return fmt.Sprintf("%s.%s", t.GatewayName, t.TradeID)
}

// VtOrderID 对应委托标识
func (t *Trade) VtOrderID() string {
	return fmt.Sprintf("%s.%s", t.GatewayName, t.OrderID)
}

// Clone 返回副本
func (t *Trade) Clone() *Trade {
	c := *t
	return &c
}

// StopOrder 本地停止单（引擎模拟，非交易所委托）
type StopOrder struct {
	StopOrderID  string // STOP.N
	VtSymbol     string
	Direction    Direction
	Offset       Offset
	Price        float64 // 触发价
	Volume       float64
	Status       StopOrderStatus
	StrategyName string
	Lock         bool
	VtOrderIDs   []string // 触发后发出的真实委托
	CreatedAt    time.Time
}

// Clone 返回副本
func (s *StopOrder) Clone() *StopOrder {
	c := *s
	c.VtOrderIDs = append([]string(nil), s.VtOrderIDs...)
	return &c
}
