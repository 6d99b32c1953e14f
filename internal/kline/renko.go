package kline

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/betbot/gofut/internal/domain"
)

var log = logrus.WithField("component", "kline")

// fastReturnWindow 快速反转判定窗口（秒）
const fastReturnWindow = 5.0

// FastReturnFunc 快速反转回调：新收盘砖与上一根砖颜色相反、
// 区间重叠且间隔小于窗口时触发。
type FastReturnFunc func(oldColor, newColor domain.BarColor, seconds float64)

// RenkoConfig 砖型K线参数。Height 与 KiloHeight 二选一：
// KiloHeight>0 时每根砖收盘后按 max(price/1000, price_tick)×kilo 重算砖高。
type RenkoConfig struct {
	Height     float64
	KiloHeight float64
	PriceTick  float64
}

// Renko 单合约砖型K线生成器。价格驱动而非时间驱动：
// 价格自基准走满一个砖高即收一根砖，单笔大幅跳动递归补砖。
type Renko struct {
	symbol   string
	exchange domain.Exchange
	cfg      RenkoConfig

	height   float64
	upBand   float64
	downBand float64

	provisional *domain.Bar
	lastClosed  *domain.Bar
	lastVolume  float64 // 上一笔 tick 的累计成交量

	onBar      func(*domain.Bar)
	fastReturn FastReturnFunc
}

// NewRenko 创建生成器。onBar 在每根砖收盘时被调用。
func NewRenko(symbol string, exchange domain.Exchange, cfg RenkoConfig, onBar func(*domain.Bar)) *Renko {
	return &Renko{
		symbol:   symbol,
		exchange: exchange,
		cfg:      cfg,
		onBar:    onBar,
	}
}

// SetFastReturn 注册快速反转回调
func (r *Renko) SetFastReturn(fn FastReturnFunc) {
	r.fastReturn = fn
}

// Provisional 当前未收盘的临时砖（快照）
func (r *Renko) Provisional() *domain.Bar {
	if r.provisional == nil {
		return nil
	}
	return r.provisional.Clone()
}

// Bands 当前上下轨
func (r *Renko) Bands() (up, down float64) {
	return r.upBand, r.downBand
}

// Height 当前砖高
func (r *Renko) Height() float64 {
	return r.height
}

func (r *Renko) computeHeight(price float64) float64 {
	if r.cfg.KiloHeight > 0 {
		return max(price/1000, r.cfg.PriceTick) * r.cfg.KiloHeight
	}
	return r.cfg.Height
}

// OnTick tick 驱动入口
func (r *Renko) OnTick(tick *domain.Tick) {
	price := tick.LastPrice
	if price == 0 {
		return
	}

	if r.provisional == nil {
		r.height = r.computeHeight(price)
		r.upBand = domain.RoundTo(price+r.height/2, r.cfg.PriceTick)
		r.downBand = r.upBand - r.height
		r.provisional = r.newProvisional(price, tick)
		r.lastVolume = tick.Volume
		log.Debugf("%s renko 初始化 open=%.4f up=%.4f down=%.4f height=%.4f",
			r.symbol, price, r.upBand, r.downBand, r.height)
		return
	}

	p := r.provisional
	p.ClosePrice = price
	p.Datetime = tick.Datetime
	p.TradingDay = tick.TradingDay
	p.OpenInterest = tick.OpenInterest
	if tick.Volume >= r.lastVolume {
		p.Volume += tick.Volume - r.lastVolume
	}
	r.lastVolume = tick.Volume
	if price > p.HighPrice {
		p.HighPrice = price
		p.HighTime = tick.Datetime
	}
	if price < p.LowPrice {
		p.LowPrice = price
		p.LowTime = tick.Datetime
	}

	// 单笔 tick 可能跨越多个砖高，循环补齐
	for {
		switch {
		case price >= r.upBand:
			r.closeBar(domain.ColorRed, r.upBand, tick)
		case price <= r.downBand:
			r.closeBar(domain.ColorBlue, r.downBand, tick)
		default:
			return
		}
	}
}

func (r *Renko) newProvisional(open float64, tick *domain.Tick) *domain.Bar {
	return &domain.Bar{
		Symbol:      r.symbol,
		Exchange:    r.exchange,
		Datetime:    tick.Datetime,
		TradingDay:  tick.TradingDay,
		Interval:    domain.IntervalRenko,
		GatewayName: tick.GatewayName,
		OpenPrice:   open,
		HighPrice:   open,
		LowPrice:    open,
		ClosePrice:  tick.LastPrice,
		HighTime:    tick.Datetime,
		LowTime:     tick.Datetime,
	}
}

// closeBar 在触及轨道时收砖：开盘为另一侧轨道，收盘为触及轨道
func (r *Renko) closeBar(color domain.BarColor, closePrice float64, tick *domain.Tick) {
	var open float64
	if color == domain.ColorRed {
		open = closePrice - r.height
	} else {
		open = closePrice + r.height
	}

	bar := &domain.Bar{
		Symbol:      r.symbol,
		Exchange:    r.exchange,
		Datetime:    tick.Datetime,
		TradingDay:  tick.TradingDay,
		Interval:    domain.IntervalRenko,
		GatewayName: tick.GatewayName,
		OpenPrice:   open,
		HighPrice:   max(open, closePrice),
		LowPrice:    min(open, closePrice),
		ClosePrice:  closePrice,
		Volume:      r.provisional.Volume,
		OpenInterest: tick.OpenInterest,
		Color:       color,
		HighTime:    r.provisional.HighTime,
		LowTime:     r.provisional.LowTime,
	}

	r.detectFastReturn(bar)
	r.lastClosed = bar

	// 收盘后重算砖高并推进轨道
	r.height = r.computeHeight(closePrice)
	r.upBand = closePrice + r.height
	r.downBand = closePrice - r.height

	r.provisional = r.newProvisional(closePrice, tick)

	if r.onBar != nil {
		r.onBar(bar)
	}
}

func (r *Renko) detectFastReturn(bar *domain.Bar) {
	prev := r.lastClosed
	if prev == nil || r.fastReturn == nil {
		return
	}
	if prev.Color == bar.Color || prev.Color == domain.ColorNone {
		return
	}
	overlap := bar.LowPrice <= prev.HighPrice && bar.HighPrice >= prev.LowPrice
	if !overlap {
		return
	}
	seconds := bar.Datetime.Sub(prev.Datetime).Seconds()
	if seconds >= 0 && seconds < fastReturnWindow {
		r.fastReturn(prev.Color, bar.Color, seconds)
	}
}

// barAge 距上一根砖收盘的时长（无收盘砖时返回 0）
func (r *Renko) barAge(now time.Time) time.Duration {
	if r.lastClosed == nil {
		return 0
	}
	return now.Sub(r.lastClosed.Datetime)
}
