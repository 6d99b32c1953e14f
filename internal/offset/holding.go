// Package offset 将抽象的开平委托翻译为符合交易所平今/平昨规则的具体委托，
// 并维护逐合约的多空/今昨持仓账本。
package offset

import (
	"fmt"

	"github.com/betbot/gofut/internal/domain"
)

// PositionHolding 单合约持仓账本
// 不变式：LongPos = LongYd + LongTd；ShortPos = ShortYd + ShortTd；
// 各冻结量 ≤ 对应持仓量；全部非负。
type PositionHolding struct {
	VtSymbol string
	Exchange domain.Exchange
	HolderID string

	LongPos float64
	LongYd  float64
	LongTd  float64

	ShortPos float64
	ShortYd  float64
	ShortTd  float64

	LongPosFrozen  float64
	LongYdFrozen   float64
	LongTdFrozen   float64
	ShortPosFrozen float64
	ShortYdFrozen  float64
	ShortTdFrozen  float64

	// 活动的平仓委托：冻结量始终由这里重算得出
	activeOrders map[string]*domain.Order
}

// NewPositionHolding 创建持仓账本
func NewPositionHolding(vtSymbol string, exchange domain.Exchange, holderID string) *PositionHolding {
	return &PositionHolding{
		VtSymbol:     vtSymbol,
		Exchange:     exchange,
		HolderID:     holderID,
		activeOrders: make(map[string]*domain.Order),
	}
}

// UpdatePosition 以交易所持仓快照为准校正账本
func (h *PositionHolding) UpdatePosition(pos *domain.Position) {
	switch pos.Direction {
	case domain.DirectionLong:
		h.LongPos = pos.Volume
		h.LongYd = pos.YdVolume
		h.LongTd = h.LongPos - h.LongYd
	case domain.DirectionShort:
		h.ShortPos = pos.Volume
		h.ShortYd = pos.YdVolume
		h.ShortTd = h.ShortPos - h.ShortYd
	}
}

// UpdateOrder 委托状态变化时维护活动平仓委托集并重算冻结
func (h *PositionHolding) UpdateOrder(order *domain.Order) {
	if order.Offset == domain.OffsetOpen || order.Offset == domain.OffsetNone {
		return
	}
	if order.IsActive() {
		h.activeOrders[order.VtOrderID()] = order
	} else {
		delete(h.activeOrders, order.VtOrderID())
	}
	h.calculateFrozen()
}

// UpdateTrade 成交后更新持仓并重算冻结
func (h *PositionHolding) UpdateTrade(trade *domain.Trade) {
	switch trade.Offset {
	case domain.OffsetOpen:
		if trade.Direction == domain.DirectionLong {
			h.LongTd += trade.Volume
		} else {
			h.ShortTd += trade.Volume
		}
	case domain.OffsetCloseToday:
		// 买入平今平的是空头今仓
		if trade.Direction == domain.DirectionLong {
			h.ShortTd -= trade.Volume
		} else {
			h.LongTd -= trade.Volume
		}
	case domain.OffsetCloseYesterday:
		if trade.Direction == domain.DirectionLong {
			h.ShortYd -= trade.Volume
		} else {
			h.LongYd -= trade.Volume
		}
	case domain.OffsetClose:
		if h.Exchange.RequiresSplitClose() {
			// 平今/平昨交易所不应出现裸 close，按平昨处理
			if trade.Direction == domain.DirectionLong {
				h.ShortYd -= trade.Volume
			} else {
				h.LongYd -= trade.Volume
			}
		} else {
			// 先冲今仓，溢出部分冲昨仓
			if trade.Direction == domain.DirectionLong {
				h.ShortTd -= trade.Volume
				if h.ShortTd < 0 {
					h.ShortYd += h.ShortTd
					h.ShortTd = 0
				}
			} else {
				h.LongTd -= trade.Volume
				if h.LongTd < 0 {
					h.LongYd += h.LongTd
					h.LongTd = 0
				}
			}
		}
	}

	if h.LongYd < 0 {
		h.LongYd = 0
	}
	if h.ShortYd < 0 {
		h.ShortYd = 0
	}
	h.LongPos = h.LongTd + h.LongYd
	h.ShortPos = h.ShortTd + h.ShortYd
	h.calculateFrozen()
}

// calculateFrozen 由活动平仓委托重算全部冻结量
func (h *PositionHolding) calculateFrozen() {
	h.LongYdFrozen = 0
	h.LongTdFrozen = 0
	h.ShortYdFrozen = 0
	h.ShortTdFrozen = 0

	for _, order := range h.activeOrders {
		frozen := order.Volume - order.Traded
		if frozen <= 0 {
			continue
		}

		closingLong := order.Direction == domain.DirectionShort
		switch order.Offset {
		case domain.OffsetCloseToday:
			if closingLong {
				h.LongTdFrozen += frozen
			} else {
				h.ShortTdFrozen += frozen
			}
		case domain.OffsetCloseYesterday:
			if closingLong {
				h.LongYdFrozen += frozen
			} else {
				h.ShortYdFrozen += frozen
			}
		case domain.OffsetClose:
			// 不区分今昨：先冻结今仓，溢出落到昨仓
			if closingLong {
				h.LongTdFrozen += frozen
				if h.LongTdFrozen > h.LongTd {
					h.LongYdFrozen += h.LongTdFrozen - h.LongTd
					h.LongTdFrozen = h.LongTd
				}
			} else {
				h.ShortTdFrozen += frozen
				if h.ShortTdFrozen > h.ShortTd {
					h.ShortYdFrozen += h.ShortTdFrozen - h.ShortTd
					h.ShortTdFrozen = h.ShortTd
				}
			}
		}
	}

	if h.LongYdFrozen > h.LongYd {
		h.LongYdFrozen = h.LongYd
	}
	if h.LongTdFrozen > h.LongTd {
		h.LongTdFrozen = h.LongTd
	}
	if h.ShortYdFrozen > h.ShortYd {
		h.ShortYdFrozen = h.ShortYd
	}
	if h.ShortTdFrozen > h.ShortTd {
		h.ShortTdFrozen = h.ShortTd
	}
	h.LongPosFrozen = h.LongYdFrozen + h.LongTdFrozen
	h.ShortPosFrozen = h.ShortYdFrozen + h.ShortTdFrozen
}

// LongAvailable 多头可平数量
func (h *PositionHolding) LongAvailable() float64 {
	return h.LongPos - h.LongPosFrozen
}

// ShortAvailable 空头可平数量
func (h *PositionHolding) ShortAvailable() float64 {
	return h.ShortPos - h.ShortPosFrozen
}

func (h *PositionHolding) String() string {
	return fmt.Sprintf("%s long=%.0f(yd=%.0f td=%.0f frozen=%.0f) short=%.0f(yd=%.0f td=%.0f frozen=%.0f)",
		h.VtSymbol, h.LongPos, h.LongYd, h.LongTd, h.LongPosFrozen,
		h.ShortPos, h.ShortYd, h.ShortTd, h.ShortPosFrozen)
}
