package domain

import "time"

// Tick 行情切片
// 同一网关内同一合约的 Datetime 单调不减。
type Tick struct {
	Symbol      string
	Exchange    Exchange
	Datetime    time.Time
	TradingDay  string // 交易日标签（夜盘与自然日可能不同）
	Name        string
	GatewayName string

	LastPrice    float64
	LastVolume   float64
	Volume       float64
	OpenInterest float64

	OpenPrice float64
	HighPrice float64
	LowPrice  float64
	PreClose  float64
	LimitUp   float64
	LimitDown float64

	BidPrice  [5]float64
	AskPrice  [5]float64
	BidVolume [5]float64
	AskVolume [5]float64
}

// VtSymbol 合约唯一标识
func (t *Tick) VtSymbol() string {
	return VtSymbolOf(t.Symbol, t.Exchange)
}

// Clone 返回副本（策略只收到快照）
func (t *Tick) Clone() *Tick {
	c := *t
	return &c
}

// Bar K线（收盘后只追加不修改）
type Bar struct {
	Symbol      string
	Exchange    Exchange
	Datetime    time.Time // 收盘时刻
	TradingDay  string
	Interval    Interval
	GatewayName string

	OpenPrice    float64
	HighPrice    float64
	LowPrice     float64
	ClosePrice   float64
	Volume       float64
	OpenInterest float64

	// Renko 专有
	Color    BarColor
	HighTime time.Time // 触及上轨时刻
	LowTime  time.Time // 触及下轨时刻
}

// VtSymbol 合约唯一标识
func (b *Bar) VtSymbol() string {
	return VtSymbolOf(b.Symbol, b.Exchange)
}

// Clone 返回副本
func (b *Bar) Clone() *Bar {
	c := *b
	return &c
}
