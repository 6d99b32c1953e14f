package engine

import (
	"fmt"
	"time"

	"github.com/betbot/gofut/internal/domain"
)

// 本地停止单引擎。通道不支持服务器停止单时由引擎在行情上模拟：
// 多头停止单 last >= price 触发，空头停止单 last <= price 触发。

// sendStopOrder 挂入本地停止单，返回 STOP.N 合成号
func (e *Engine) sendStopOrder(inst *instance, vtSymbol string, direction domain.Direction,
	offsetFlag domain.Offset, price, volume float64, lock bool) string {
	e.mu.Lock()
	e.stopSeq++
	stopOrderID := fmt.Sprintf("%s%d", stopOrderPrefix, e.stopSeq)
	stop := &domain.StopOrder{
		StopOrderID:  stopOrderID,
		VtSymbol:     vtSymbol,
		Direction:    direction,
		Offset:       offsetFlag,
		Price:        price,
		Volume:       volume,
		Status:       domain.StopOrderWaiting,
		StrategyName: inst.name,
		Lock:         lock,
		CreatedAt:    time.Now(),
	}
	e.stopOrders[stopOrderID] = stop
	inst.activeOrders[stopOrderID] = true
	e.mu.Unlock()

	e.log.Infof("策略 %s 挂入停止单 %s: %s %s %s 触发价 %v x%v",
		inst.name, stopOrderID, vtSymbol, direction, offsetFlag, price, volume)
	e.callStrategy(inst, "on_stop_order", func() { inst.strategy.OnStopOrder(stop.Clone()) })
	return stopOrderID
}

// checkStopOrders 行情驱动的触发巡检。
// 发单为空时停止单保持 waiting，下一笔行情重试。
func (e *Engine) checkStopOrders(tick *domain.Tick) {
	vtSymbol := tick.VtSymbol()

	e.mu.Lock()
	pending := make([]*domain.StopOrder, 0, 2)
	for _, stop := range e.stopOrders {
		if stop.Status != domain.StopOrderWaiting || stop.VtSymbol != vtSymbol {
			continue
		}
		triggered := (stop.Direction == domain.DirectionLong && tick.LastPrice >= stop.Price) ||
			(stop.Direction == domain.DirectionShort && tick.LastPrice <= stop.Price)
		if triggered {
			pending = append(pending, stop)
		}
	}
	e.mu.Unlock()

	for _, stop := range pending {
		e.triggerStopOrder(stop, tick)
	}
}

// triggerStopOrder 选执行价并转为普通限价单。
// 买向取五档卖价保证成交，缺五档时退到涨跌停板价。
func (e *Engine) triggerStopOrder(stop *domain.StopOrder, tick *domain.Tick) {
	inst := e.getStrategy(stop.StrategyName)
	if inst == nil {
		e.mu.Lock()
		delete(e.stopOrders, stop.StopOrderID)
		e.mu.Unlock()
		return
	}

	var execPrice float64
	if stop.Direction == domain.DirectionLong {
		execPrice = tick.AskPrice[4]
		if execPrice <= 0 {
			execPrice = tick.LimitUp
		}
	} else {
		execPrice = tick.BidPrice[4]
		if execPrice <= 0 {
			execPrice = tick.LimitDown
		}
	}
	if execPrice <= 0 {
		execPrice = tick.LastPrice
	}

	ids := e.sendOrder(inst, stop.VtSymbol, stop.Direction, stop.Offset,
		execPrice, stop.Volume, false, stop.Lock, domain.OrderTypeLimit)
	if len(ids) == 0 {
		e.log.Warnf("停止单 %s 触发后发单为空，保持等待", stop.StopOrderID)
		return
	}

	e.mu.Lock()
	stop.Status = domain.StopOrderTriggered
	stop.VtOrderIDs = ids
	delete(inst.activeOrders, stop.StopOrderID)
	delete(e.stopOrders, stop.StopOrderID)
	e.mu.Unlock()

	e.log.Infof("停止单 %s 已触发 -> %v", stop.StopOrderID, ids)
	snapshot := stop.Clone()
	e.callStrategy(inst, "on_stop_order", func() { inst.strategy.OnStopOrder(snapshot) })
}

// cancelStopOrder 撤销等待中的本地停止单
func (e *Engine) cancelStopOrder(stopOrderID string) {
	e.mu.Lock()
	stop, ok := e.stopOrders[stopOrderID]
	if !ok || stop.Status != domain.StopOrderWaiting {
		e.mu.Unlock()
		return
	}
	stop.Status = domain.StopOrderCancelled
	delete(e.stopOrders, stopOrderID)
	inst := e.strategies[stop.StrategyName]
	if inst != nil {
		delete(inst.activeOrders, stopOrderID)
	}
	e.mu.Unlock()

	e.log.Infof("停止单 %s 已撤销", stopOrderID)
	if inst != nil {
		snapshot := stop.Clone()
		e.callStrategy(inst, "on_stop_order", func() { inst.strategy.OnStopOrder(snapshot) })
	}
}

// StopOrders 当前等待中的停止单快照（控制面用）
func (e *Engine) StopOrders() []*domain.StopOrder {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*domain.StopOrder, 0, len(e.stopOrders))
	for _, stop := range e.stopOrders {
		out = append(out, stop.Clone())
	}
	return out
}
