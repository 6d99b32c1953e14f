package engine

import (
	"github.com/betbot/gofut/internal/domain"
	"github.com/betbot/gofut/pkg/eventbus"
)

// strategyContext 把引擎能力裁剪成策略可见的面。
// 每个实例一份，下单与撤单自动携带策略归属。
type strategyContext struct {
	engine *Engine
	inst   *instance
}

var _ Context = (*strategyContext)(nil)

func (c *strategyContext) SendOrder(vtSymbol string, direction domain.Direction,
	offsetFlag domain.Offset, price, volume float64, stop, lock bool) []string {
	c.engine.mu.Lock()
	trading := c.inst.trading
	c.engine.mu.Unlock()
	if !trading {
		c.engine.log.Warnf("策略 %s 未在交易状态，下单被忽略", c.inst.name)
		return nil
	}
	return c.engine.sendOrder(c.inst, vtSymbol, direction, offsetFlag,
		price, volume, stop, lock, domain.OrderTypeLimit)
}

func (c *strategyContext) CancelOrder(vtOrderID string) {
	c.engine.cancelOrder(c.inst, vtOrderID)
}

func (c *strategyContext) CancelAll() {
	c.engine.cancelAll(c.inst)
}

func (c *strategyContext) Subscribe(vtSymbol string) error {
	if err := c.engine.Subscribe(vtSymbol); err != nil {
		return err
	}
	c.engine.mu.Lock()
	c.inst.subscribed[vtSymbol] = true
	c.engine.mu.Unlock()
	return nil
}

func (c *strategyContext) GetTick(vtSymbol string) *domain.Tick {
	return c.engine.book.GetTick(vtSymbol)
}

func (c *strategyContext) GetContract(vtSymbol string) *domain.Contract {
	return c.engine.book.GetContract(vtSymbol)
}

func (c *strategyContext) GetPosition(vtPositionID string) *domain.Position {
	return c.engine.book.GetPosition(vtPositionID)
}

func (c *strategyContext) GetOrder(vtOrderID string) *domain.Order {
	return c.engine.book.GetOrder(vtOrderID)
}

func (c *strategyContext) WriteLog(msg string) {
	c.engine.log.WithField("strategy", c.inst.name).Info(msg)
	c.engine.bus.Put(eventbus.Event{Type: eventbus.TypeLog, Data: &domain.LogEntry{
		Msg:   c.inst.name + ": " + msg,
		Level: "info",
	}})
}
