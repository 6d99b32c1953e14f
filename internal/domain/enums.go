package domain

// Direction 委托/持仓方向
type Direction string

const (
	DirectionLong  Direction = "long"  // 多
	DirectionShort Direction = "short" // 空
	DirectionNet   Direction = "net"   // 净持仓（股票/指数类）
)

// Opposite 返回相反方向（net 返回自身）
func (d Direction) Opposite() Direction {
	switch d {
	case DirectionLong:
		return DirectionShort
	case DirectionShort:
		return DirectionLong
	}
	return d
}

// Offset 开平标志
type Offset string

const (
	OffsetNone           Offset = "none"
	OffsetOpen           Offset = "open"            // 开仓
	OffsetClose          Offset = "close"           // 平仓
	OffsetCloseToday     Offset = "close_today"     // 平今
	OffsetCloseYesterday Offset = "close_yesterday" // 平昨
)

// OrderType 委托类型
type OrderType string

const (
	OrderTypeLimit  OrderType = "limit"
	OrderTypeMarket OrderType = "market"
	OrderTypeStop   OrderType = "stop" // 服务器端停止单
	OrderTypeFAK    OrderType = "fak"
	OrderTypeFOK    OrderType = "fok"
)

// Status 委托状态
type Status string

const (
	StatusSubmitting Status = "submitting"
	StatusNotTraded  Status = "not_traded"
	StatusPartTraded Status = "part_traded"
	StatusAllTraded  Status = "all_traded"
	StatusCancelled  Status = "cancelled"
	StatusCancelling Status = "cancelling"
	StatusRejected   Status = "rejected"
)

// IsActive 是否为活动状态（终态不可逆转）
func (s Status) IsActive() bool {
	switch s {
	case StatusSubmitting, StatusNotTraded, StatusPartTraded, StatusCancelling:
		return true
	}
	return false
}

// Exchange 交易所代码
type Exchange string

const (
	ExchangeSHFE  Exchange = "SHFE"  // 上期所
	ExchangeINE   Exchange = "INE"   // 能源中心
	ExchangeDCE   Exchange = "DCE"   // 大商所
	ExchangeCZCE  Exchange = "CZCE"  // 郑商所
	ExchangeCFFEX Exchange = "CFFEX" // 中金所（指数期货，净持仓口径）
	ExchangeGFEX  Exchange = "GFEX"  // 广期所
	ExchangeSSE   Exchange = "SSE"   // 上交所
	ExchangeSZSE  Exchange = "SZSE"  // 深交所
	ExchangeSPD   Exchange = "SPD"   // 引擎合成合约（价差/比价）
	ExchangeLocal Exchange = "LOCAL" // 本地仿真
)

var splitCloseTodayExchanges = map[Exchange]bool{
	ExchangeSHFE: true,
	ExchangeINE:  true,
}

// RequiresSplitClose 该交易所平仓是否必须拆分平今/平昨
func (e Exchange) RequiresSplitClose() bool {
	return splitCloseTodayExchanges[e]
}

var netPositionExchanges = map[Exchange]bool{
	ExchangeCFFEX: true,
}

// UsesNetPosition 对账时是否按净持仓比较
func (e Exchange) UsesNetPosition() bool {
	return netPositionExchanges[e]
}

// Product 产品类型
type Product string

const (
	ProductEquity Product = "equity"
	ProductFuture Product = "future"
	ProductOption Product = "option"
	ProductIndex  Product = "index"
	ProductSpread Product = "spread"
	ProductETF    Product = "etf"
	ProductBond   Product = "bond"
)

// OptionType 期权类型
type OptionType string

const (
	OptionTypeCall OptionType = "call"
	OptionTypePut  OptionType = "put"
)

// Interval K线周期
type Interval string

const (
	IntervalMinute Interval = "1m"
	IntervalHour   Interval = "1h"
	IntervalDaily  Interval = "d"
	IntervalTick   Interval = "tick"
	IntervalRenko  Interval = "renko"
)

// BarColor Renko 砖块颜色
type BarColor string

const (
	ColorNone BarColor = ""
	ColorRed  BarColor = "red"  // 上涨砖
	ColorBlue BarColor = "blue" // 下跌砖
)

// StopOrderStatus 本地停止单状态
type StopOrderStatus string

const (
	StopOrderWaiting   StopOrderStatus = "waiting"
	StopOrderCancelled StopOrderStatus = "cancelled"
	StopOrderTriggered StopOrderStatus = "triggered"
)
