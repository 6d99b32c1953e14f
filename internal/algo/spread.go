package algo

import (
	"github.com/sirupsen/logrus"

	"github.com/betbot/gofut/internal/combiner"
	"github.com/betbot/gofut/internal/domain"
)

// spreadAlgo 价差腿单算法：主动腿（腿一）价格满足母单价位时吃单，
// 成交后立即用被动腿（腿二）对冲，对冲完成才合成母单成交。
type spreadAlgo struct {
	baseState
	engine *Engine
	comb   *combiner.Combination

	// 已发未结的腿单
	activeLeg1 map[string]bool
	activeLeg2 map[string]bool

	// 腿一已成未对冲量
	unhedged     float64
	lastLeg1Fill float64
	lastLeg2Fill float64

	log *logrus.Entry
}

func newSpreadAlgo(e *Engine, parentID, strategyName string,
	req *domain.OrderRequest, comb *combiner.Combination) *spreadAlgo {
	return &spreadAlgo{
		baseState: baseState{
			parentID:     parentID,
			strategyName: strategyName,
			req:          req,
		},
		engine:     e,
		comb:       comb,
		activeLeg1: make(map[string]bool),
		activeLeg2: make(map[string]bool),
		log:        logrus.WithField("component", "algo.spread").WithField("parent", parentID),
	}
}

func (a *spreadAlgo) base() *baseState { return &a.baseState }

// spreadQuote 由两腿最新行情推算当前可成交的价差报价
func (a *spreadAlgo) spreadQuote() (ask, bid float64, ok bool) {
	leg1 := a.engine.book.GetTick(a.comb.Leg1VtSymbol)
	leg2 := a.engine.book.GetTick(a.comb.Leg2VtSymbol)
	if leg1 == nil || leg2 == nil {
		return 0, 0, false
	}
	if leg1.AskPrice[0] <= 0 || leg1.BidPrice[0] <= 0 || leg2.AskPrice[0] <= 0 || leg2.BidPrice[0] <= 0 {
		return 0, 0, false
	}
	r1, r2 := a.comb.Leg1Ratio, a.comb.Leg2Ratio
	if a.comb.Mode == combiner.ModeRatio {
		ask = 100 * leg1.AskPrice[0] * r1 / (leg2.BidPrice[0] * r2)
		bid = 100 * leg1.BidPrice[0] * r1 / (leg2.AskPrice[0] * r2)
		return ask, bid, true
	}
	ask = leg1.AskPrice[0]*r1 - leg2.BidPrice[0]*r2
	bid = leg1.BidPrice[0]*r1 - leg2.AskPrice[0]*r2
	return ask, bid, true
}

func (a *spreadAlgo) OnTick(tick *domain.Tick) {
	if a.Finished() {
		return
	}
	vtSymbol := tick.VtSymbol()
	if vtSymbol != a.comb.Leg1VtSymbol && vtSymbol != a.comb.Leg2VtSymbol {
		return
	}
	if len(a.activeLeg1) > 0 || len(a.activeLeg2) > 0 || a.unhedged > 0 {
		return
	}

	ask, bid, ok := a.spreadQuote()
	if !ok {
		return
	}
	remaining := a.req.Volume - a.traded
	if remaining <= 0 {
		return
	}

	leg1 := a.engine.book.GetTick(a.comb.Leg1VtSymbol)
	if a.req.Direction == domain.DirectionLong && ask <= a.req.Price {
		// 买价差 = 买腿一卖腿二
		ids := a.sendLeg1(domain.DirectionLong, leg1.AskPrice[0], remaining*a.comb.Leg1Ratio)
		a.log.Debugf("价差 ask=%v <= %v，吃腿一 %v 手 -> %v", ask, a.req.Price, remaining*a.comb.Leg1Ratio, ids)
	} else if a.req.Direction == domain.DirectionShort && bid >= a.req.Price {
		ids := a.sendLeg1(domain.DirectionShort, leg1.BidPrice[0], remaining*a.comb.Leg1Ratio)
		a.log.Debugf("价差 bid=%v >= %v，吃腿一 %v 手 -> %v", bid, a.req.Price, remaining*a.comb.Leg1Ratio, ids)
	}
}

func (a *spreadAlgo) sendLeg1(direction domain.Direction, price, volume float64) []string {
	symbol, exchange := domain.SplitVtSymbol(a.comb.Leg1VtSymbol)
	ids := a.engine.sendLeg(a.parentID, &domain.OrderRequest{
		Symbol:    symbol,
		Exchange:  exchange,
		Direction: direction,
		Offset:    a.req.Offset,
		Type:      domain.OrderTypeFAK,
		Price:     price,
		Volume:    volume,
		Reference: a.parentID,
	}, false)
	for _, id := range ids {
		a.activeLeg1[id] = true
	}
	return ids
}

func (a *spreadAlgo) sendLeg2Hedge(volume float64) {
	leg2 := a.engine.book.GetTick(a.comb.Leg2VtSymbol)
	if leg2 == nil {
		a.log.Warn("腿二无行情，对冲挂起")
		return
	}
	// 腿二方向与母单相反
	direction := a.req.Direction.Opposite()
	price := leg2.BidPrice[0]
	if direction == domain.DirectionLong {
		price = leg2.AskPrice[0]
	}
	symbol, exchange := domain.SplitVtSymbol(a.comb.Leg2VtSymbol)
	ids := a.engine.sendLeg(a.parentID, &domain.OrderRequest{
		Symbol:    symbol,
		Exchange:  exchange,
		Direction: direction,
		Offset:    a.req.Offset,
		Type:      domain.OrderTypeFAK,
		Price:     price,
		Volume:    volume,
		Reference: a.parentID,
	}, false)
	for _, id := range ids {
		a.activeLeg2[id] = true
	}
}

func (a *spreadAlgo) OnOrder(order *domain.Order) {
	if order.IsActive() {
		return
	}
	vtOrderID := order.VtOrderID()
	delete(a.activeLeg1, vtOrderID)
	delete(a.activeLeg2, vtOrderID)
}

func (a *spreadAlgo) OnTrade(trade *domain.Trade) {
	switch {
	case a.isLeg(trade.VtSymbol(), a.comb.Leg1VtSymbol):
		a.lastLeg1Fill = trade.Price
		a.unhedged += trade.Volume
		// 按比例换算腿二对冲量
		hedge := trade.Volume / a.comb.Leg1Ratio * a.comb.Leg2Ratio
		a.sendLeg2Hedge(hedge)
	case a.isLeg(trade.VtSymbol(), a.comb.Leg2VtSymbol):
		a.lastLeg2Fill = trade.Price
		units := trade.Volume / a.comb.Leg2Ratio
		a.unhedged -= units * a.comb.Leg1Ratio
		if a.unhedged < 0 {
			a.unhedged = 0
		}
		a.engine.emitParentTrade(&a.baseState, a.fillPrice(), units)
	}
}

func (a *spreadAlgo) isLeg(vtSymbol, leg string) bool { return vtSymbol == leg }

// fillPrice 用两腿实际成交价折算母单成交价
func (a *spreadAlgo) fillPrice() float64 {
	r1, r2 := a.comb.Leg1Ratio, a.comb.Leg2Ratio
	if a.comb.Mode == combiner.ModeRatio {
		if a.lastLeg2Fill <= 0 {
			return a.req.Price
		}
		return 100 * a.lastLeg1Fill * r1 / (a.lastLeg2Fill * r2)
	}
	return a.lastLeg1Fill*r1 - a.lastLeg2Fill*r2
}

func (a *spreadAlgo) OnTimer() {}

func (a *spreadAlgo) Stop() {
	for id := range a.activeLeg1 {
		a.engine.trader.CancelOrder(id)
	}
	for id := range a.activeLeg2 {
		a.engine.trader.CancelOrder(id)
	}
	a.stopped = true
	a.engine.emitParentOrder(&a.baseState, domain.StatusCancelled)
}
