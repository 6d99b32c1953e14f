// Package combiner 由两条腿的行情合成 SPD 价差/比值合约的行情切片。
// 合成 tick 走与原生 tick 相同的事件路径，下游无感知。
package combiner

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/betbot/gofut/internal/domain"
)

var log = logrus.WithField("component", "tick_combiner")

// Mode 合成方式
type Mode string

const (
	ModeSpread Mode = "spread" // 价差：leg1·r1 − leg2·r2
	ModeRatio  Mode = "ratio"  // 比值：100·(leg1·r1 / leg2·r2)
)

// Combination 单个合成合约
type Combination struct {
	Symbol     string
	Name       string
	Size       float64
	PriceTick  float64
	MarginRate float64
	Mode       Mode

	Leg1VtSymbol string
	Leg1Ratio    float64
	Leg2VtSymbol string
	Leg2Ratio    float64

	GatewayName string

	leg1 *domain.Tick
	leg2 *domain.Tick

	tradingDay string
	dayHigh    float64
	dayLow     float64
}

// Contract 合成合约的合约信息（挂在 SPD 交易所下）
func (c *Combination) Contract() *domain.Contract {
	return &domain.Contract{
		Symbol:      c.Symbol,
		Exchange:    domain.ExchangeSPD,
		Name:        c.Name,
		Product:     domain.ProductSpread,
		Size:        c.Size,
		PriceTick:   c.PriceTick,
		MinVolume:   1,
		MarginRate:  c.MarginRate,
		GatewayName: c.GatewayName,
	}
}

// legUsable 判断单腿行情是否可用于合成。
// 涨停封死（卖一无量）、跌停封死（买一无量）或买卖价缺失时，
// 用这条腿算出来的价差没有交易意义，直接放弃本次合成。
func legUsable(t *domain.Tick) bool {
	if t.BidPrice[0] == 0 || t.AskPrice[0] == 0 {
		return false
	}
	if t.LimitUp > 0 && t.LastPrice >= t.LimitUp && t.AskVolume[0] == 0 {
		return false
	}
	if t.LimitDown > 0 && t.LastPrice <= t.LimitDown && t.BidVolume[0] == 0 {
		return false
	}
	return true
}

// onLegTick 接收一条腿的行情，两腿同秒对齐时产出合成 tick
func (c *Combination) onLegTick(tick *domain.Tick) *domain.Tick {
	switch tick.VtSymbol() {
	case c.Leg1VtSymbol:
		c.leg1 = tick
	case c.Leg2VtSymbol:
		c.leg2 = tick
	default:
		return nil
	}

	if c.leg1 == nil || c.leg2 == nil {
		return nil
	}
	if !c.leg1.Datetime.Truncate(time.Second).Equal(c.leg2.Datetime.Truncate(time.Second)) {
		return nil
	}
	if !legUsable(c.leg1) || !legUsable(c.leg2) {
		return nil
	}
	return c.combine()
}

func (c *Combination) combine() *domain.Tick {
	l1, l2 := c.leg1, c.leg2
	r1, r2 := c.Leg1Ratio, c.Leg2Ratio

	var ask, bid, preClose, open float64
	switch c.Mode {
	case ModeRatio:
		if l2.BidPrice[0]*r2 == 0 || l2.AskPrice[0]*r2 == 0 {
			return nil
		}
		ask = 100 * l1.AskPrice[0] * r1 / (l2.BidPrice[0] * r2)
		bid = 100 * l1.BidPrice[0] * r1 / (l2.AskPrice[0] * r2)
		if l1.PreClose > 0 && l2.PreClose > 0 {
			preClose = 100 * l1.PreClose * r1 / (l2.PreClose * r2)
		}
		if l1.OpenPrice > 0 && l2.OpenPrice > 0 {
			open = 100 * l1.OpenPrice * r1 / (l2.OpenPrice * r2)
		}
	default:
		ask = l1.AskPrice[0]*r1 - l2.BidPrice[0]*r2
		bid = l1.BidPrice[0]*r1 - l2.AskPrice[0]*r2
		if l1.PreClose > 0 && l2.PreClose > 0 {
			preClose = l1.PreClose*r1 - l2.PreClose*r2
		}
		if l1.OpenPrice > 0 && l2.OpenPrice > 0 {
			open = l1.OpenPrice*r1 - l2.OpenPrice*r2
		}
	}

	ask = domain.RoundTo(ask, c.PriceTick)
	bid = domain.RoundTo(bid, c.PriceTick)
	last := domain.RoundTo((ask+bid)/2, c.PriceTick)

	// 合成时刻取两腿中较晚者，永不早于任一源 tick
	dt := l1.Datetime
	if l2.Datetime.After(dt) {
		dt = l2.Datetime
	}
	tradingDay := l1.TradingDay
	if l2.TradingDay > tradingDay {
		tradingDay = l2.TradingDay
	}

	// 换交易日重置当日高低
	if tradingDay != c.tradingDay {
		c.tradingDay = tradingDay
		c.dayHigh = 0
		c.dayLow = 0
	}
	if c.dayHigh == 0 || last > c.dayHigh {
		c.dayHigh = last
	}
	if c.dayLow == 0 || last < c.dayLow {
		c.dayLow = last
	}

	return &domain.Tick{
		Symbol:      c.Symbol,
		Exchange:    domain.ExchangeSPD,
		Datetime:    dt,
		TradingDay:  tradingDay,
		Name:        c.Name,
		GatewayName: c.GatewayName,

		LastPrice: last,
		Volume:    min(l1.Volume, l2.Volume),
		OpenPrice: open,
		HighPrice: c.dayHigh,
		LowPrice:  c.dayLow,
		PreClose:  preClose,

		BidPrice:  [5]float64{bid},
		AskPrice:  [5]float64{ask},
		BidVolume: [5]float64{min(l1.BidVolume[0], l2.AskVolume[0])},
		AskVolume: [5]float64{min(l1.AskVolume[0], l2.BidVolume[0])},
	}
}

// Combiner 管理全部合成合约，按腿的 vt_symbol 路由行情
type Combiner struct {
	combinations []*Combination
	byLeg        map[string][]*Combination
	emit         func(*domain.Tick)
}

// NewCombiner 创建合成器。emit 在产出合成 tick 时被调用（通常投递回事件总线）。
func NewCombiner(emit func(*domain.Tick)) *Combiner {
	return &Combiner{
		byLeg: make(map[string][]*Combination),
		emit:  emit,
	}
}

// Add 注册一个合成合约
func (c *Combiner) Add(comb *Combination) {
	c.combinations = append(c.combinations, comb)
	c.byLeg[comb.Leg1VtSymbol] = append(c.byLeg[comb.Leg1VtSymbol], comb)
	c.byLeg[comb.Leg2VtSymbol] = append(c.byLeg[comb.Leg2VtSymbol], comb)
	log.Infof("注册合成合约 %s.SPD: %s(×%g) vs %s(×%g) mode=%s",
		comb.Symbol, comb.Leg1VtSymbol, comb.Leg1Ratio, comb.Leg2VtSymbol, comb.Leg2Ratio, comb.Mode)
}

// Contracts 全部合成合约的合约信息
func (c *Combiner) Contracts() []*domain.Contract {
	out := make([]*domain.Contract, 0, len(c.combinations))
	for _, comb := range c.combinations {
		out = append(out, comb.Contract())
	}
	return out
}

// LegVtSymbols 所有腿的 vt_symbol（用于订阅行情）
func (c *Combiner) LegVtSymbols() []string {
	seen := make(map[string]bool)
	var out []string
	for _, comb := range c.combinations {
		for _, leg := range []string{comb.Leg1VtSymbol, comb.Leg2VtSymbol} {
			if !seen[leg] {
				seen[leg] = true
				out = append(out, leg)
			}
		}
	}
	return out
}

// Find 按合成合约 symbol 查找
func (c *Combiner) Find(symbol string) *Combination {
	for _, comb := range c.combinations {
		if comb.Symbol == symbol {
			return comb
		}
	}
	return nil
}

// ProcessTick 行情入口：路由到以该合约为腿的全部合成合约
func (c *Combiner) ProcessTick(tick *domain.Tick) {
	for _, comb := range c.byLeg[tick.VtSymbol()] {
		if synthetic := comb.onLegTick(tick); synthetic != nil {
			c.emit(synthetic)
		}
	}
}
