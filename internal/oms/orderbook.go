// Package oms 维护引擎内全部市场状态的唯一权威副本。
// 所有写入发生在事件总线分发协程；其他协程通过 getter 获得快照。
package oms

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/betbot/gofut/internal/domain"
	"github.com/betbot/gofut/pkg/eventbus"
)

var omsLog = logrus.WithField("component", "oms")

// OrderBook 市场状态权威存储
type OrderBook struct {
	mu sync.RWMutex

	ticks     map[string]*domain.Tick     // vt_symbol -> 最新 tick
	orders    map[string]*domain.Order    // vt_orderid -> order
	trades    map[string]*domain.Trade    // vt_tradeid -> trade
	positions map[string]*domain.Position // vt_positionid -> position
	accounts  map[string]*domain.Account  // vt_accountid -> account
	contracts map[string]*domain.Contract // vt_symbol -> contract

	activeOrders map[string]*domain.Order // vt_orderid -> 活动委托
}

// NewOrderBook 创建市场状态存储
func NewOrderBook() *OrderBook {
	return &OrderBook{
		ticks:        make(map[string]*domain.Tick),
		orders:       make(map[string]*domain.Order),
		trades:       make(map[string]*domain.Trade),
		positions:    make(map[string]*domain.Position),
		accounts:     make(map[string]*domain.Account),
		contracts:    make(map[string]*domain.Contract),
		activeOrders: make(map[string]*domain.Order),
	}
}

// RegisterHandlers 挂接到事件总线
func (ob *OrderBook) RegisterHandlers(bus *eventbus.Bus) {
	bus.Register(eventbus.TypeTick, func(e eventbus.Event) {
		if tick, ok := e.Data.(*domain.Tick); ok {
			ob.ProcessTick(tick)
		}
	})
	bus.Register(eventbus.TypeOrder, func(e eventbus.Event) {
		if order, ok := e.Data.(*domain.Order); ok {
			ob.ProcessOrder(order)
		}
	})
	bus.Register(eventbus.TypeTrade, func(e eventbus.Event) {
		if trade, ok := e.Data.(*domain.Trade); ok {
			ob.ProcessTrade(trade)
		}
	})
	bus.Register(eventbus.TypePosition, func(e eventbus.Event) {
		if pos, ok := e.Data.(*domain.Position); ok {
			ob.ProcessPosition(pos)
		}
	})
	bus.Register(eventbus.TypeAccount, func(e eventbus.Event) {
		if acc, ok := e.Data.(*domain.Account); ok {
			ob.ProcessAccount(acc)
		}
	})
	bus.Register(eventbus.TypeContract, func(e eventbus.Event) {
		if c, ok := e.Data.(*domain.Contract); ok {
			ob.ProcessContract(c)
		}
	})
}

// ProcessTick 更新最新行情
func (ob *OrderBook) ProcessTick(tick *domain.Tick) {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	ob.ticks[tick.VtSymbol()] = tick
}

// ProcessOrder 更新委托状态
// 终态是吸收态：已终结的委托不会被中间状态覆盖。
func (ob *OrderBook) ProcessOrder(order *domain.Order) {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	vtOrderID := order.VtOrderID()
	if existing, ok := ob.orders[vtOrderID]; ok && !existing.IsActive() {
		omsLog.Debugf("忽略终态委托的过期更新: %s status=%s", vtOrderID, order.Status)
		return
	}

	ob.orders[vtOrderID] = order
	if order.IsActive() {
		ob.activeOrders[vtOrderID] = order
	} else {
		delete(ob.activeOrders, vtOrderID)
	}
}

// ProcessTrade 记录成交。重复推送返回 false。
func (ob *OrderBook) ProcessTrade(trade *domain.Trade) bool {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	vtTradeID := trade.VtTradeID()
	if _, ok := ob.trades[vtTradeID]; ok {
		omsLog.Debugf("重复成交推送被丢弃: %s", vtTradeID)
		return false
	}
	ob.trades[vtTradeID] = trade
	return true
}

// ProcessPosition 更新持仓快照
func (ob *OrderBook) ProcessPosition(pos *domain.Position) {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	if pos.Volume == 0 && pos.Frozen == 0 {
		delete(ob.positions, pos.VtPositionID())
		return
	}
	ob.positions[pos.VtPositionID()] = pos
}

// ProcessAccount 更新资金账户
func (ob *OrderBook) ProcessAccount(acc *domain.Account) {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	ob.accounts[acc.VtAccountID()] = acc
}

// ProcessContract 登记合约（发现后不可变，重复推送覆盖无害）
func (ob *OrderBook) ProcessContract(c *domain.Contract) {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	ob.contracts[c.VtSymbol()] = c
}

// GetTick 获取最新行情快照
func (ob *OrderBook) GetTick(vtSymbol string) *domain.Tick {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	if t, ok := ob.ticks[vtSymbol]; ok {
		return t.Clone()
	}
	return nil
}

// GetOrder 获取委托快照
func (ob *OrderBook) GetOrder(vtOrderID string) *domain.Order {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	if o, ok := ob.orders[vtOrderID]; ok {
		return o.Clone()
	}
	return nil
}

// GetTrade 获取成交快照
func (ob *OrderBook) GetTrade(vtTradeID string) *domain.Trade {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	if t, ok := ob.trades[vtTradeID]; ok {
		return t.Clone()
	}
	return nil
}

// GetPosition 获取持仓快照
func (ob *OrderBook) GetPosition(vtPositionID string) *domain.Position {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	if p, ok := ob.positions[vtPositionID]; ok {
		return p.Clone()
	}
	return nil
}

// GetAccount 获取账户快照
func (ob *OrderBook) GetAccount(vtAccountID string) *domain.Account {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	if a, ok := ob.accounts[vtAccountID]; ok {
		return a.Clone()
	}
	return nil
}

// GetContract 获取合约信息
func (ob *OrderBook) GetContract(vtSymbol string) *domain.Contract {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	if c, ok := ob.contracts[vtSymbol]; ok {
		return c.Clone()
	}
	return nil
}

// GetAllContracts 全部合约快照
func (ob *OrderBook) GetAllContracts() []*domain.Contract {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	out := make([]*domain.Contract, 0, len(ob.contracts))
	for _, c := range ob.contracts {
		out = append(out, c.Clone())
	}
	return out
}

// GetAllPositions 全部持仓快照
func (ob *OrderBook) GetAllPositions() []*domain.Position {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	out := make([]*domain.Position, 0, len(ob.positions))
	for _, p := range ob.positions {
		out = append(out, p.Clone())
	}
	return out
}

// GetAllActiveOrders 全部活动委托快照。vtSymbol 为空时不过滤。
func (ob *OrderBook) GetAllActiveOrders(vtSymbol string) []*domain.Order {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	out := make([]*domain.Order, 0, len(ob.activeOrders))
	for _, o := range ob.activeOrders {
		if vtSymbol != "" && o.VtSymbol() != vtSymbol {
			continue
		}
		out = append(out, o.Clone())
	}
	return out
}

// GetAllOrders 全部委托快照
func (ob *OrderBook) GetAllOrders() []*domain.Order {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	out := make([]*domain.Order, 0, len(ob.orders))
	for _, o := range ob.orders {
		out = append(out, o.Clone())
	}
	return out
}

// GetAllTrades 全部成交快照
func (ob *OrderBook) GetAllTrades() []*domain.Trade {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	out := make([]*domain.Trade, 0, len(ob.trades))
	for _, t := range ob.trades {
		out = append(out, t.Clone())
	}
	return out
}

// GetAllAccounts 全部账户快照
func (ob *OrderBook) GetAllAccounts() []*domain.Account {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	out := make([]*domain.Account, 0, len(ob.accounts))
	for _, a := range ob.accounts {
		out = append(out, a.Clone())
	}
	return out
}
