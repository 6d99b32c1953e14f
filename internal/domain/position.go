package domain

import "fmt"

// Position 持仓
// Volume = 今仓 + YdVolume；平昨受 YdVolume 约束。
type Position struct {
	Symbol      string
	Exchange    Exchange
	Direction   Direction
	GatewayName string
	HolderID    string

	Volume   float64
	YdVolume float64
	Frozen   float64
	Price    float64 // 持仓均价
	PnL      float64
}

// VtSymbol 合约唯一标识
func (p *Position) VtSymbol() string {
	return VtSymbolOf(p.Symbol, p.Exchange)
}

// VtPositionID 持仓唯一标识：vt_symbol.direction[.holder]
func (p *Position) VtPositionID() string {
	if p.HolderID != "" {
		return fmt.Sprintf("%s.%s.%s", p.VtSymbol(), p.Direction, p.HolderID)
	}
	return fmt.Sprintf("%s.%s", p.VtSymbol(), p.Direction)
}

// TdVolume 今仓数量
func (p *Position) TdVolume() float64 {
	return p.Volume - p.YdVolume
}

// Clone 返回副本
func (p *Position) Clone() *Position {
	c := *p
	return &c
}

// Account 资金账户
type Account struct {
	AccountID   string
	GatewayName string
	Balance     float64
	Frozen      float64
}

// Available 可用资金
func (a *Account) Available() float64 {
	return a.Balance - a.Frozen
}

// VtAccountID 账户唯一标识
func (a *Account) VtAccountID() string {
	return fmt.Sprintf("%s.%s", a.GatewayName, a.AccountID)
}

// Clone 返回副本
func (a *Account) Clone() *Account {
	c := *a
	return &c
}

// LogEntry 网关/引擎日志事件载荷
type LogEntry struct {
	Msg         string
	Level       string
	GatewayName string
}
