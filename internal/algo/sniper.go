package algo

import (
	"github.com/sirupsen/logrus"

	"github.com/betbot/gofut/internal/domain"
)

// sniperAlgo 狙击单：潜伏等待，盘口价格触及母单价位时全量 FAK 扫单。
// 未成部分继续潜伏等下一次机会。
type sniperAlgo struct {
	baseState
	engine *Engine
	active map[string]bool
}

func newSniperAlgo(e *Engine, parentID, strategyName string, req *domain.OrderRequest) *sniperAlgo {
	return &sniperAlgo{
		baseState: baseState{
			parentID:     parentID,
			strategyName: strategyName,
			req:          req,
		},
		engine: e,
		active: make(map[string]bool),
	}
}

func (a *sniperAlgo) base() *baseState { return &a.baseState }

func (a *sniperAlgo) OnTick(tick *domain.Tick) {
	if a.Finished() || len(a.active) > 0 {
		return
	}
	if tick.VtSymbol() != a.req.VtSymbol() {
		return
	}

	var price float64
	if a.req.Direction == domain.DirectionLong {
		if tick.AskPrice[0] <= 0 || tick.AskPrice[0] > a.req.Price {
			return
		}
		price = tick.AskPrice[0]
	} else {
		if tick.BidPrice[0] <= 0 || tick.BidPrice[0] < a.req.Price {
			return
		}
		price = tick.BidPrice[0]
	}

	remaining := a.req.Volume - a.traded
	ids := a.engine.sendLeg(a.parentID, &domain.OrderRequest{
		Symbol:    a.req.Symbol,
		Exchange:  a.req.Exchange,
		Direction: a.req.Direction,
		Offset:    a.req.Offset,
		Type:      domain.OrderTypeFAK,
		Price:     price,
		Volume:    remaining,
		Reference: a.parentID,
	}, false)
	for _, id := range ids {
		a.active[id] = true
	}
	logrus.WithField("component", "algo.sniper").
		Debugf("%s 触发扫单 %v@%v -> %v", a.parentID, remaining, price, ids)
}

func (a *sniperAlgo) OnTimer() {}

func (a *sniperAlgo) OnOrder(order *domain.Order) {
	if !order.IsActive() {
		delete(a.active, order.VtOrderID())
	}
}

func (a *sniperAlgo) OnTrade(trade *domain.Trade) {
	a.engine.emitParentTrade(&a.baseState, trade.Price, trade.Volume)
}

func (a *sniperAlgo) Stop() {
	for id := range a.active {
		a.engine.trader.CancelOrder(id)
	}
	a.stopped = true
	a.engine.emitParentOrder(&a.baseState, domain.StatusCancelled)
}
