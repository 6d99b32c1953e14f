package domain

import (
	"fmt"
	"time"
)

// Contract 合约信息（发现后不可变）
type Contract struct {
	Symbol      string
	Exchange    Exchange
	Name        string
	Product     Product
	Size        float64 // 合约乘数
	PriceTick   float64 // 最小变动价位
	MinVolume   float64 // 最小下单量
	MarginRate  float64
	GatewayName string

	// 期权字段（Product == option 时有效）
	OptionType       OptionType
	OptionStrike     float64
	OptionExpiry     time.Time
	OptionUnderlying string

	// 网关是否支持服务器端停止单
	StopSupported bool
}

// VtSymbol 合约唯一标识：symbol.exchange
func (c *Contract) VtSymbol() string {
	return fmt.Sprintf("%s.%s", c.Symbol, c.Exchange)
}

// IsSpread 是否为引擎合成合约
func (c *Contract) IsSpread() bool {
	return c.Exchange == ExchangeSPD
}

// Clone 返回副本
func (c *Contract) Clone() *Contract {
	n := *c
	return &n
}

// VtSymbolOf 拼接 vt_symbol
func VtSymbolOf(symbol string, exchange Exchange) string {
	return fmt.Sprintf("%s.%s", symbol, exchange)
}

// SplitVtSymbol 拆分 vt_symbol 为 symbol 与 exchange
func SplitVtSymbol(vtSymbol string) (string, Exchange) {
	for i := len(vtSymbol) - 1; i >= 0; i-- {
		if vtSymbol[i] == '.' {
			return vtSymbol[:i], Exchange(vtSymbol[i+1:])
		}
	}
	return vtSymbol, ""
}
