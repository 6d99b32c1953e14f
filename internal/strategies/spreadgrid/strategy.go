// Package spreadgrid 价差网格策略：在合成 SPD 合约上按固定步长铺网格，
// 价差每下一格加一层多头，每上一格减一层，委托经算法引擎拆腿执行。
package spreadgrid

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/betbot/gofut/internal/domain"
	"github.com/betbot/gofut/internal/engine"
)

func init() {
	engine.Register("SpreadGrid", func() engine.Strategy { return New() })
}

// Strategy 价差网格策略
type Strategy struct {
	engine.BaseStrategy

	ctx engine.Context

	// 参数
	vtSymbol  string  // 必须是 SPD 合约
	center    float64 // 网格中枢
	step      float64 // 格宽
	gridVol   float64 // 每格手数
	maxLayers int     // 单边最大层数

	// 运行时
	pos      float64
	activeID string // 在途的算法母单，串行执行
	lastDiff float64

	log *logrus.Entry
}

// New 创建策略实例
func New() *Strategy {
	return &Strategy{
		gridVol:   1,
		maxLayers: 5,
		log:       logrus.WithField("component", "strategy.spreadgrid"),
	}
}

// UpdateSetting 应用参数
func (s *Strategy) UpdateSetting(setting map[string]interface{}) {
	if v, ok := setting["vt_symbol"].(string); ok {
		s.vtSymbol = v
	}
	if v, ok := setting["center"].(float64); ok {
		s.center = v
	}
	if v, ok := setting["step"].(float64); ok {
		s.step = v
	}
	if v, ok := setting["grid_volume"].(float64); ok {
		s.gridVol = v
	}
	if v, ok := setting["max_layers"].(float64); ok {
		s.maxLayers = int(v)
	}
}

// OnInit 校验参数
func (s *Strategy) OnInit(ctx engine.Context) error {
	s.ctx = ctx
	if s.step <= 0 {
		ctx.WriteLog("step 未配置，网格不会触发")
	}
	ctx.WriteLog("价差网格初始化完成")
	return nil
}

// OnStop 撤掉在途母单
func (s *Strategy) OnStop() {
	if s.activeID != "" {
		s.ctx.CancelOrder(s.activeID)
		s.activeID = ""
	}
}

// OnTick 价差每偏离中枢一格调整一层
func (s *Strategy) OnTick(tick *domain.Tick) {
	if tick.VtSymbol() != s.vtSymbol || s.step <= 0 {
		return
	}
	// 在途母单未完结前不加新单，避免网格自我追价
	if s.activeID != "" {
		return
	}

	layers := math.Floor((s.center - tick.LastPrice) / s.step)
	if layers > float64(s.maxLayers) {
		layers = float64(s.maxLayers)
	}
	if layers < -float64(s.maxLayers) {
		layers = -float64(s.maxLayers)
	}
	target := layers * s.gridVol

	diff := target - s.pos
	if diff == 0 {
		return
	}
	s.lastDiff = diff

	direction := domain.DirectionLong
	offset := domain.OffsetOpen
	if diff < 0 {
		direction = domain.DirectionShort
		if s.pos > 0 {
			offset = domain.OffsetClose
		}
	} else if s.pos < 0 {
		offset = domain.OffsetClose
	}

	ids := s.ctx.SendOrder(s.vtSymbol, direction, offset,
		tick.LastPrice, math.Abs(diff), false, false)
	if len(ids) == 0 {
		return
	}
	s.activeID = ids[0]
	s.log.Infof("网格调仓 %s: 价差 %v 目标 %v 现仓 %v -> %s",
		s.vtSymbol, tick.LastPrice, target, s.pos, s.activeID)
}

// OnOrder 母单终结后解锁下一次调仓
func (s *Strategy) OnOrder(order *domain.Order) {
	if order.VtOrderID() != s.activeID {
		return
	}
	if !order.IsActive() {
		s.activeID = ""
	}
}

// OnTrade 母单成交推进持仓
func (s *Strategy) OnTrade(trade *domain.Trade) {
	if trade.VtSymbol() != s.vtSymbol {
		return
	}
	if trade.Direction == domain.DirectionLong {
		s.pos += trade.Volume
	} else {
		s.pos -= trade.Volume
	}
}

// Pos 申报持仓
func (s *Strategy) Pos() map[string]float64 {
	return map[string]float64{s.vtSymbol: s.pos}
}

// Variables 快照变量
func (s *Strategy) Variables() map[string]interface{} {
	return map[string]interface{}{
		"pos":       s.pos,
		"active_id": s.activeID,
		"last_diff": s.lastDiff,
	}
}
