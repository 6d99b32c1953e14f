// Package renkotrend 砖图趋势策略：Renko 收砖驱动，均线多头排列时
// 追砖开多，反色砖离场，止损用本地停止单挂在最近砖底。
package renkotrend

import (
	"github.com/sirupsen/logrus"

	"github.com/betbot/gofut/internal/domain"
	"github.com/betbot/gofut/internal/engine"
	"github.com/betbot/gofut/internal/kline"
)

func init() {
	engine.Register("RenkoTrend", func() engine.Strategy { return New() })
}

// Strategy 砖图趋势策略
type Strategy struct {
	engine.BaseStrategy

	ctx engine.Context

	// 参数
	vtSymbol  string
	height    float64 // 砖高，0 表示用千分比砖
	kilo      float64 // 千分比砖系数
	volume    float64
	stopRange float64 // 止损距离，按砖高倍数

	agg *kline.Aggregator

	// 运行时
	pos        float64
	entryPrice float64
	stopID     string
	lastColor  domain.BarColor
	barCount   int

	log *logrus.Entry
}

// New 创建策略实例
func New() *Strategy {
	return &Strategy{
		volume:    1,
		stopRange: 2,
		log:       logrus.WithField("component", "strategy.renkotrend"),
	}
}

// UpdateSetting 应用参数
func (s *Strategy) UpdateSetting(setting map[string]interface{}) {
	s.vtSymbol = settingString(setting, "vt_symbol", s.vtSymbol)
	s.height = settingFloat(setting, "height", s.height)
	s.kilo = settingFloat(setting, "kilo", s.kilo)
	s.volume = settingFloat(setting, "volume", s.volume)
	s.stopRange = settingFloat(setting, "stop_range", s.stopRange)
}

// OnInit 建砖图聚合器
func (s *Strategy) OnInit(ctx engine.Context) error {
	s.ctx = ctx
	symbol, exchange := domain.SplitVtSymbol(s.vtSymbol)

	priceTick := 1.0
	if c := ctx.GetContract(s.vtSymbol); c != nil {
		priceTick = c.PriceTick
	}
	s.agg = kline.NewAggregator(symbol, exchange, kline.RenkoConfig{
		Height:     s.height,
		KiloHeight: s.kilo,
		PriceTick:  priceTick,
	}, kline.IndicatorConfig{}, s.onRenkoBar)

	ctx.WriteLog("砖图趋势策略初始化完成")
	return nil
}

// OnStart 启动即汇报参数，便于盘中核对
func (s *Strategy) OnStart() {
	s.log.Infof("启动 %s: height=%v kilo=%v volume=%v", s.vtSymbol, s.height, s.kilo, s.volume)
}

// OnStop 离场时撤掉挂着的止损
func (s *Strategy) OnStop() {
	if s.stopID != "" {
		s.ctx.CancelOrder(s.stopID)
		s.stopID = ""
	}
}

// OnTick 喂给砖图聚合器
func (s *Strategy) OnTick(tick *domain.Tick) {
	if tick.VtSymbol() != s.vtSymbol {
		return
	}
	s.agg.OnTick(tick)
}

// onRenkoBar 收砖回调，全部交易决策在这里
func (s *Strategy) onRenkoBar(bar *domain.Bar) {
	s.barCount++
	defer func() { s.lastColor = bar.Color }()

	suite := s.agg.Suite()
	ma1 := suite.MA[0].Value.Last()
	ma2 := suite.MA[1].Value.Last()
	if ma1 == 0 || ma2 == 0 {
		return
	}

	bullish := bar.Color == domain.ColorRed && ma1 > ma2
	bearish := bar.Color == domain.ColorBlue

	switch {
	case s.pos == 0 && bullish:
		s.openLong(bar)
	case s.pos > 0 && bearish:
		s.closeLong(bar)
	}
}

func (s *Strategy) openLong(bar *domain.Bar) {
	ids := s.ctx.SendOrder(s.vtSymbol, domain.DirectionLong, domain.OffsetOpen,
		bar.ClosePrice, s.volume, false, false)
	if len(ids) == 0 {
		return
	}
	s.pos = s.volume
	s.entryPrice = bar.ClosePrice

	// 止损挂最近砖底下方
	height := s.agg.Renko().Height()
	stopPrice := bar.ClosePrice - height*s.stopRange
	stopIDs := s.ctx.SendOrder(s.vtSymbol, domain.DirectionShort, domain.OffsetClose,
		stopPrice, s.volume, true, false)
	if len(stopIDs) > 0 {
		s.stopID = stopIDs[0]
	}
	s.log.Infof("开多 %s @%v 止损 %v", s.vtSymbol, bar.ClosePrice, stopPrice)
}

func (s *Strategy) closeLong(bar *domain.Bar) {
	if s.stopID != "" {
		s.ctx.CancelOrder(s.stopID)
		s.stopID = ""
	}
	ids := s.ctx.SendOrder(s.vtSymbol, domain.DirectionShort, domain.OffsetClose,
		bar.ClosePrice, s.pos, false, false)
	if len(ids) == 0 {
		return
	}
	s.log.Infof("反色砖离场 %s @%v", s.vtSymbol, bar.ClosePrice)
	s.pos = 0
	s.entryPrice = 0
}

// OnStopOrder 止损触发后清掉本地引用
func (s *Strategy) OnStopOrder(stop *domain.StopOrder) {
	if stop.StopOrderID != s.stopID {
		return
	}
	switch stop.Status {
	case domain.StopOrderTriggered:
		s.stopID = ""
		s.pos = 0
		s.entryPrice = 0
		s.log.Warnf("止损触发 %s -> %v", stop.StopOrderID, stop.VtOrderIDs)
	case domain.StopOrderCancelled:
		s.stopID = ""
	}
}

// OnTrade 以成交回报校正持仓
func (s *Strategy) OnTrade(trade *domain.Trade) {
	if trade.Offset == domain.OffsetOpen {
		return
	}
	// 平仓成交把申报持仓压回实际值
	if trade.Direction == domain.DirectionShort && s.pos > 0 {
		s.pos -= trade.Volume
		if s.pos < 0 {
			s.pos = 0
		}
	}
}

// Pos 申报持仓（正多负空）
func (s *Strategy) Pos() map[string]float64 {
	return map[string]float64{s.vtSymbol: s.pos}
}

// Variables 快照变量
func (s *Strategy) Variables() map[string]interface{} {
	return map[string]interface{}{
		"pos":         s.pos,
		"entry_price": s.entryPrice,
		"stop_id":     s.stopID,
		"bar_count":   s.barCount,
		"last_color":  string(s.lastColor),
	}
}

func settingFloat(setting map[string]interface{}, key string, def float64) float64 {
	if v, ok := setting[key]; ok {
		if f, ok := v.(float64); ok {
			return f
		}
	}
	return def
}

func settingString(setting map[string]interface{}, key, def string) string {
	if v, ok := setting[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}
