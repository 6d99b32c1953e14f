package offset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/gofut/internal/domain"
)

type fakeContracts struct {
	contracts map[string]*domain.Contract
}

func (f *fakeContracts) GetContract(vtSymbol string) *domain.Contract {
	return f.contracts[vtSymbol]
}

func newTestConverter() *Converter {
	return NewConverter(&fakeContracts{contracts: map[string]*domain.Contract{
		"rb2401.SHFE": {Symbol: "rb2401", Exchange: domain.ExchangeSHFE, Product: domain.ProductFuture, PriceTick: 1, Size: 10},
		"m2405.DCE":   {Symbol: "m2405", Exchange: domain.ExchangeDCE, Product: domain.ProductFuture, PriceTick: 1, Size: 10},
		"600036.SSE":  {Symbol: "600036", Exchange: domain.ExchangeSSE, Product: domain.ProductEquity, PriceTick: 0.01, Size: 1},
	}})
}

func preloadHolding(c *Converter, vtSymbol string, exchange domain.Exchange, dir domain.Direction, volume, yd float64) {
	symbol, _ := domain.SplitVtSymbol(vtSymbol)
	c.UpdatePosition(&domain.Position{
		Symbol: symbol, Exchange: exchange,
		Direction: dir, Volume: volume, YdVolume: yd,
	})
}

func TestConvertOpenPassthrough(t *testing.T) {
	c := newTestConverter()
	req := &domain.OrderRequest{
		Symbol: "rb2401", Exchange: domain.ExchangeSHFE,
		Direction: domain.DirectionLong, Offset: domain.OffsetOpen,
		Type: domain.OrderTypeLimit, Price: 4000, Volume: 2,
	}
	reqs := c.Convert(req, false)
	require.Len(t, reqs, 1)
	assert.Equal(t, domain.OffsetOpen, reqs[0].Offset)
	assert.Equal(t, 2.0, reqs[0].Volume)
}

func TestConvertSplitCloseYesterdayFirst(t *testing.T) {
	// 场景：SHFE 多头 yd=3 td=2，平4手 → 平昨3 + 平今1
	c := newTestConverter()
	preloadHolding(c, "rb2401.SHFE", domain.ExchangeSHFE, domain.DirectionLong, 5, 3)

	req := &domain.OrderRequest{
		Symbol: "rb2401", Exchange: domain.ExchangeSHFE,
		Direction: domain.DirectionShort, Offset: domain.OffsetClose,
		Type: domain.OrderTypeLimit, Price: 4100, Volume: 4,
	}
	reqs := c.Convert(req, false)
	require.Len(t, reqs, 2)
	assert.Equal(t, domain.OffsetCloseYesterday, reqs[0].Offset)
	assert.Equal(t, 3.0, reqs[0].Volume)
	assert.Equal(t, domain.OffsetCloseToday, reqs[1].Offset)
	assert.Equal(t, 1.0, reqs[1].Volume)
}

func TestConvertSplitCloseOnlyYesterday(t *testing.T) {
	c := newTestConverter()
	preloadHolding(c, "rb2401.SHFE", domain.ExchangeSHFE, domain.DirectionLong, 3, 3)

	req := &domain.OrderRequest{
		Symbol: "rb2401", Exchange: domain.ExchangeSHFE,
		Direction: domain.DirectionShort, Offset: domain.OffsetClose,
		Type: domain.OrderTypeLimit, Price: 4100, Volume: 2,
	}
	reqs := c.Convert(req, false)
	require.Len(t, reqs, 1)
	assert.Equal(t, domain.OffsetCloseYesterday, reqs[0].Offset)
	assert.Equal(t, 2.0, reqs[0].Volume)
}

func TestConvertSplitCloseInsufficient(t *testing.T) {
	c := newTestConverter()
	preloadHolding(c, "rb2401.SHFE", domain.ExchangeSHFE, domain.DirectionLong, 2, 1)

	req := &domain.OrderRequest{
		Symbol: "rb2401", Exchange: domain.ExchangeSHFE,
		Direction: domain.DirectionShort, Offset: domain.OffsetClose,
		Type: domain.OrderTypeLimit, Price: 4100, Volume: 5,
	}
	reqs := c.Convert(req, false)
	require.Len(t, reqs, 2)
	// 只能平出 yd=1 + td=1
	assert.Equal(t, 1.0, reqs[0].Volume)
	assert.Equal(t, 1.0, reqs[1].Volume)
}

func TestConvertPlainClose(t *testing.T) {
	c := newTestConverter()
	preloadHolding(c, "m2405.DCE", domain.ExchangeDCE, domain.DirectionLong, 5, 3)

	req := &domain.OrderRequest{
		Symbol: "m2405", Exchange: domain.ExchangeDCE,
		Direction: domain.DirectionShort, Offset: domain.OffsetClose,
		Type: domain.OrderTypeLimit, Price: 3000, Volume: 4,
	}
	reqs := c.Convert(req, false)
	require.Len(t, reqs, 1)
	assert.Equal(t, domain.OffsetClose, reqs[0].Offset)
	assert.Equal(t, 4.0, reqs[0].Volume)
}

func TestConvertLockOverflowOpensOpposite(t *testing.T) {
	// 锁仓：昨仓只有2，平5 → 平昨2 + 反向开3
	c := newTestConverter()
	preloadHolding(c, "rb2401.SHFE", domain.ExchangeSHFE, domain.DirectionLong, 4, 2)

	req := &domain.OrderRequest{
		Symbol: "rb2401", Exchange: domain.ExchangeSHFE,
		Direction: domain.DirectionShort, Offset: domain.OffsetClose,
		Type: domain.OrderTypeLimit, Price: 4100, Volume: 5,
	}
	reqs := c.Convert(req, true)
	require.Len(t, reqs, 2)
	assert.Equal(t, domain.OffsetCloseYesterday, reqs[0].Offset)
	assert.Equal(t, 2.0, reqs[0].Volume)
	assert.Equal(t, domain.OffsetOpen, reqs[1].Offset)
	assert.Equal(t, domain.DirectionShort, reqs[1].Direction)
	assert.Equal(t, 3.0, reqs[1].Volume)
}

func TestConvertEquityPassthrough(t *testing.T) {
	c := newTestConverter()
	req := &domain.OrderRequest{
		Symbol: "600036", Exchange: domain.ExchangeSSE,
		Direction: domain.DirectionShort, Offset: domain.OffsetClose,
		Type: domain.OrderTypeLimit, Price: 35, Volume: 100,
	}
	reqs := c.Convert(req, false)
	require.Len(t, reqs, 1)
	assert.Same(t, req, reqs[0], "净持仓品种不做转换")
}

func TestHoldingInvariantAfterOrderTradeFlow(t *testing.T) {
	c := newTestConverter()
	preloadHolding(c, "rb2401.SHFE", domain.ExchangeSHFE, domain.DirectionLong, 5, 3)
	h := c.GetHolding("rb2401.SHFE", "")
	require.NotNil(t, h)

	// 平昨委托挂出 → 冻结昨仓
	order := &domain.Order{
		Symbol: "rb2401", Exchange: domain.ExchangeSHFE,
		OrderID: "1", GatewayName: "CTP",
		Direction: domain.DirectionShort, Offset: domain.OffsetCloseYesterday,
		Volume: 3, Status: domain.StatusNotTraded,
	}
	c.UpdateOrder(order)
	assert.Equal(t, 3.0, h.LongYdFrozen)
	assert.Equal(t, 3.0, h.LongPosFrozen)

	// 部分成交1手：持仓与冻结同步回落
	c.UpdateTrade(&domain.Trade{
		Symbol: "rb2401", Exchange: domain.ExchangeSHFE,
		OrderID: "1", TradeID: "T1", GatewayName: "CTP",
		Direction: domain.DirectionShort, Offset: domain.OffsetCloseYesterday,
		Price: 4100, Volume: 1,
	})
	partial := order.Clone()
	partial.Traded = 1
	partial.Status = domain.StatusPartTraded
	c.UpdateOrder(partial)

	assert.Equal(t, 2.0, h.LongYd)
	assert.Equal(t, 2.0, h.LongYdFrozen)
	assert.Equal(t, 4.0, h.LongPos)
	assert.Equal(t, h.LongYd+h.LongTd, h.LongPos, "long_pos = long_yd + long_td")

	// 撤单：冻结全部恢复
	cancelled := order.Clone()
	cancelled.Traded = 1
	cancelled.Status = domain.StatusCancelled
	c.UpdateOrder(cancelled)
	assert.Equal(t, 0.0, h.LongYdFrozen)
	assert.Equal(t, 0.0, h.LongPosFrozen)
	assert.Equal(t, 4.0, h.LongAvailable())
}

func TestHoldingOpenTradeIncrementsToday(t *testing.T) {
	c := newTestConverter()
	c.UpdateTrade(&domain.Trade{
		Symbol: "rb2401", Exchange: domain.ExchangeSHFE,
		OrderID: "1", TradeID: "T1", GatewayName: "CTP",
		Direction: domain.DirectionLong, Offset: domain.OffsetOpen,
		Price: 4000, Volume: 2,
	})
	h := c.GetHolding("rb2401.SHFE", "")
	require.NotNil(t, h)
	assert.Equal(t, 2.0, h.LongTd)
	assert.Equal(t, 2.0, h.LongPos)
	assert.Equal(t, 0.0, h.LongYd)
}

func TestConvertCloseAfterFrozen(t *testing.T) {
	// 昨仓已全部被冻结时，平仓只能走今仓
	c := newTestConverter()
	preloadHolding(c, "rb2401.SHFE", domain.ExchangeSHFE, domain.DirectionLong, 5, 3)
	c.UpdateOrder(&domain.Order{
		Symbol: "rb2401", Exchange: domain.ExchangeSHFE,
		OrderID: "1", GatewayName: "CTP",
		Direction: domain.DirectionShort, Offset: domain.OffsetCloseYesterday,
		Volume: 3, Status: domain.StatusNotTraded,
	})

	req := &domain.OrderRequest{
		Symbol: "rb2401", Exchange: domain.ExchangeSHFE,
		Direction: domain.DirectionShort, Offset: domain.OffsetClose,
		Type: domain.OrderTypeLimit, Price: 4100, Volume: 2,
	}
	reqs := c.Convert(req, false)
	require.Len(t, reqs, 1)
	assert.Equal(t, domain.OffsetCloseToday, reqs[0].Offset)
	assert.Equal(t, 2.0, reqs[0].Volume)
}
