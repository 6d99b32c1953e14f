package gateway

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/gofut/internal/domain"
	"github.com/betbot/gofut/pkg/eventbus"
)

func rbContract() *domain.Contract {
	return &domain.Contract{
		Symbol: "rb2401", Exchange: domain.ExchangeSHFE,
		Product: domain.ProductFuture, Size: 10, PriceTick: 1, MinVolume: 1,
	}
}

type captured struct {
	orders []*domain.Order
	trades []*domain.Trade
	ticks  []*domain.Tick
}

// newPaperFixture 总线不启动，事件经 Register 的处理器同步断言前先 Start
func newPaperFixture(t *testing.T) (*PaperGateway, *captured) {
	t.Helper()
	bus := eventbus.New()
	rec := &captured{}
	bus.Register(eventbus.TypeOrder, func(e eventbus.Event) {
		rec.orders = append(rec.orders, e.Data.(*domain.Order))
	})
	bus.Register(eventbus.TypeTrade, func(e eventbus.Event) {
		rec.trades = append(rec.trades, e.Data.(*domain.Trade))
	})
	bus.Register(eventbus.TypeTick, func(e eventbus.Event) {
		rec.ticks = append(rec.ticks, e.Data.(*domain.Tick))
	})
	bus.Start(t.Context())
	t.Cleanup(bus.Stop)

	g := NewPaperGateway("PAPER", bus, []*domain.Contract{rbContract()})
	require.NoError(t, g.Connect(nil))
	return g, rec
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, time.Second, 5*time.Millisecond)
}

func TestPaperOrderIDFormat(t *testing.T) {
	g, _ := newPaperFixture(t)
	vtOrderID, err := g.SendOrder(&domain.OrderRequest{
		Symbol: "rb2401", Exchange: domain.ExchangeSHFE,
		Direction: domain.DirectionLong, Offset: domain.OffsetOpen,
		Type: domain.OrderTypeLimit, Price: 4000, Volume: 1,
	})
	require.NoError(t, err)
	// PAPER.front_session_ref
	parts := strings.SplitN(vtOrderID, ".", 2)
	require.Len(t, parts, 2)
	assert.Equal(t, "PAPER", parts[0])
	assert.Len(t, strings.Split(parts[1], "_"), 3)
}

func TestPaperLimitOrderMatchesOnTick(t *testing.T) {
	g, rec := newPaperFixture(t)
	_, err := g.SendOrder(&domain.OrderRequest{
		Symbol: "rb2401", Exchange: domain.ExchangeSHFE,
		Direction: domain.DirectionLong, Offset: domain.OffsetOpen,
		Type: domain.OrderTypeLimit, Price: 4000, Volume: 2,
	})
	require.NoError(t, err)

	// 高于委托价不成交
	g.ProcessTick(&domain.Tick{Symbol: "rb2401", Exchange: domain.ExchangeSHFE, LastPrice: 4005})
	// 穿价成交
	g.ProcessTick(&domain.Tick{Symbol: "rb2401", Exchange: domain.ExchangeSHFE, LastPrice: 3999})

	waitFor(t, func() bool { return len(rec.trades) == 1 })
	assert.Equal(t, 3999.0, rec.trades[0].Price)
	assert.Equal(t, 2.0, rec.trades[0].Volume)

	waitFor(t, func() bool { return len(rec.orders) == 2 })
	assert.Equal(t, domain.StatusNotTraded, rec.orders[0].Status)
	assert.Equal(t, domain.StatusAllTraded, rec.orders[1].Status)
}

func TestPaperMarketOrderFillsImmediately(t *testing.T) {
	g, rec := newPaperFixture(t)
	g.ProcessTick(&domain.Tick{Symbol: "rb2401", Exchange: domain.ExchangeSHFE, LastPrice: 4010})

	_, err := g.SendOrder(&domain.OrderRequest{
		Symbol: "rb2401", Exchange: domain.ExchangeSHFE,
		Direction: domain.DirectionShort, Offset: domain.OffsetOpen,
		Type: domain.OrderTypeMarket, Price: 0, Volume: 1,
	})
	require.NoError(t, err)

	waitFor(t, func() bool { return len(rec.trades) == 1 })
	assert.Equal(t, 4010.0, rec.trades[0].Price, "市价单按最新价成交")
}

func TestPaperCancelOrder(t *testing.T) {
	g, rec := newPaperFixture(t)
	vtOrderID, err := g.SendOrder(&domain.OrderRequest{
		Symbol: "rb2401", Exchange: domain.ExchangeSHFE,
		Direction: domain.DirectionLong, Offset: domain.OffsetOpen,
		Type: domain.OrderTypeLimit, Price: 3990, Volume: 1,
	})
	require.NoError(t, err)

	_, orderID := splitVtOrderID(vtOrderID)
	ok := g.CancelOrder(&domain.CancelRequest{OrderID: orderID, Symbol: "rb2401", Exchange: domain.ExchangeSHFE})
	assert.True(t, ok)

	waitFor(t, func() bool { return len(rec.orders) == 2 })
	assert.Equal(t, domain.StatusCancelled, rec.orders[1].Status)

	assert.False(t, g.CancelOrder(&domain.CancelRequest{OrderID: "missing"}), "重复撤单返回 false")
}

func TestPaperRejectsUnknownContract(t *testing.T) {
	g, _ := newPaperFixture(t)
	_, err := g.SendOrder(&domain.OrderRequest{
		Symbol: "xx9999", Exchange: domain.ExchangeSHFE,
		Direction: domain.DirectionLong, Offset: domain.OffsetOpen,
		Type: domain.OrderTypeLimit, Price: 100, Volume: 1,
	})
	assert.Error(t, err)

	assert.Error(t, g.Subscribe(&domain.SubscribeRequest{Symbol: "xx9999", Exchange: domain.ExchangeSHFE}))
}

func TestPaperSubscribedTickForwarded(t *testing.T) {
	g, rec := newPaperFixture(t)
	require.NoError(t, g.Subscribe(&domain.SubscribeRequest{Symbol: "rb2401", Exchange: domain.ExchangeSHFE}))

	g.ProcessTick(&domain.Tick{Symbol: "rb2401", Exchange: domain.ExchangeSHFE, LastPrice: 4000})
	waitFor(t, func() bool { return len(rec.ticks) == 1 })
	assert.Equal(t, "PAPER", rec.ticks[0].GatewayName)
}

func TestPaperOrderFlowControl(t *testing.T) {
	g, _ := newPaperFixture(t)
	req := &domain.OrderRequest{
		Symbol: "rb2401", Exchange: domain.ExchangeSHFE,
		Direction: domain.DirectionLong, Offset: domain.OffsetOpen,
		Type: domain.OrderTypeLimit, Price: 3990, Volume: 1,
	}
	sent := 0
	var lastErr error
	for i := 0; i < 30; i++ {
		if _, err := g.SendOrder(req); err != nil {
			lastErr = err
			break
		}
		sent++
	}
	require.Error(t, lastErr, "连续报单应触发流控")
	assert.GreaterOrEqual(t, sent, 10, "突发额度内的报单不受影响")
	assert.Contains(t, lastErr.Error(), "流控")
}

func splitVtOrderID(vtOrderID string) (gateway, orderID string) {
	parts := strings.SplitN(vtOrderID, ".", 2)
	return parts[0], parts[1]
}
