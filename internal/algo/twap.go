package algo

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/betbot/gofut/internal/domain"
)

// twapAlgo 时间加权拆单：按固定间隔把母单量均分为 N 片限价发出。
// 最后一片吸收均分余量。
type twapAlgo struct {
	baseState
	engine *Engine

	slices    int
	interval  time.Duration
	sliceSize float64
	sent      int
	nextFire  time.Time
	active    map[string]bool
}

func newTWAPAlgo(e *Engine, parentID, strategyName string,
	req *domain.OrderRequest, slices int, interval time.Duration) *twapAlgo {
	return &twapAlgo{
		baseState: baseState{
			parentID:     parentID,
			strategyName: strategyName,
			req:          req,
		},
		engine:    e,
		slices:    slices,
		interval:  interval,
		sliceSize: req.Volume / float64(slices),
		nextFire:  time.Now(),
		active:    make(map[string]bool),
	}
}

func (a *twapAlgo) base() *baseState { return &a.baseState }

func (a *twapAlgo) OnTimer() {
	if a.Finished() || a.sent >= a.slices {
		return
	}
	if time.Now().Before(a.nextFire) {
		return
	}

	volume := a.sliceSize
	if a.sent == a.slices-1 {
		volume = a.req.Volume - a.sliceSize*float64(a.slices-1)
	}
	a.sent++
	a.nextFire = time.Now().Add(a.interval)

	price := a.req.Price
	if tick := a.engine.book.GetTick(a.req.VtSymbol()); tick != nil {
		// 跟盘口报价，母单价位做保护价
		if a.req.Direction == domain.DirectionLong {
			if tick.AskPrice[0] > 0 && tick.AskPrice[0] < price {
				price = tick.AskPrice[0]
			}
		} else {
			if tick.BidPrice[0] > price {
				price = tick.BidPrice[0]
			}
		}
	}

	ids := a.engine.sendLeg(a.parentID, &domain.OrderRequest{
		Symbol:    a.req.Symbol,
		Exchange:  a.req.Exchange,
		Direction: a.req.Direction,
		Offset:    a.req.Offset,
		Type:      domain.OrderTypeLimit,
		Price:     price,
		Volume:    volume,
		Reference: a.parentID,
	}, false)
	for _, id := range ids {
		a.active[id] = true
	}
	logrus.WithField("component", "algo.twap").
		Debugf("%s 第 %d/%d 片已发出 %v@%v", a.parentID, a.sent, a.slices, volume, price)
}

func (a *twapAlgo) OnTick(*domain.Tick) {}

func (a *twapAlgo) OnOrder(order *domain.Order) {
	if !order.IsActive() {
		delete(a.active, order.VtOrderID())
	}
}

func (a *twapAlgo) OnTrade(trade *domain.Trade) {
	a.engine.emitParentTrade(&a.baseState, trade.Price, trade.Volume)
}

func (a *twapAlgo) Stop() {
	for id := range a.active {
		a.engine.trader.CancelOrder(id)
	}
	a.stopped = true
	a.engine.emitParentOrder(&a.baseState, domain.StatusCancelled)
}
