package algo

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/gofut/internal/combiner"
	"github.com/betbot/gofut/internal/domain"
	"github.com/betbot/gofut/internal/oms"
	"github.com/betbot/gofut/pkg/eventbus"
)

type fakeTrader struct {
	seq     int
	sent    []*domain.OrderRequest
	cancels []string
}

func (t *fakeTrader) SendOrder(req *domain.OrderRequest, lock bool) []string {
	t.seq++
	t.sent = append(t.sent, req.Clone())
	return []string{fmt.Sprintf("GW.%d", t.seq)}
}

func (t *fakeTrader) CancelOrder(vtOrderID string) {
	t.cancels = append(t.cancels, vtOrderID)
}

type algoRig struct {
	engine *Engine
	book   *oms.OrderBook
	trader *fakeTrader
}

func newAlgoRig(withSpread bool) *algoRig {
	bus := eventbus.New()
	book := oms.NewOrderBook()
	var comb *combiner.Combiner
	if withSpread {
		comb = combiner.NewCombiner(func(*domain.Tick) {})
		comb.Add(&combiner.Combination{
			Symbol:       "AB-SPD",
			Name:         "rb-hc 价差",
			Size:         10,
			PriceTick:    1,
			Mode:         combiner.ModeSpread,
			Leg1VtSymbol: "rb2401.SHFE",
			Leg1Ratio:    1,
			Leg2VtSymbol: "hc2401.SHFE",
			Leg2Ratio:    1,
		})
	}
	trader := &fakeTrader{}
	return &algoRig{
		engine: NewEngine(bus, book, comb, trader),
		book:   book,
		trader: trader,
	}
}

func legTick(symbol string, bid, ask float64) *domain.Tick {
	t := &domain.Tick{
		Symbol:    symbol,
		Exchange:  domain.ExchangeSHFE,
		LastPrice: (bid + ask) / 2,
		Datetime:  time.Now(),
	}
	t.BidPrice[0] = bid
	t.AskPrice[0] = ask
	t.BidVolume[0] = 10
	t.AskVolume[0] = 10
	return t
}

func makeTrade(symbol, orderID, tradeID string, direction domain.Direction, price, volume float64) *domain.Trade {
	return &domain.Trade{
		Symbol:      symbol,
		Exchange:    domain.ExchangeSHFE,
		OrderID:     orderID,
		TradeID:     tradeID,
		GatewayName: "GW",
		Direction:   direction,
		Price:       price,
		Volume:      volume,
		Datetime:    time.Now(),
	}
}

func TestSpreadAlgoLegsAndHedges(t *testing.T) {
	rig := newAlgoRig(true)

	parentID, err := rig.engine.Start(&domain.OrderRequest{
		Symbol:    "AB-SPD",
		Exchange:  domain.ExchangeSPD,
		Direction: domain.DirectionLong,
		Offset:    domain.OffsetOpen,
		Type:      domain.OrderTypeLimit,
		Price:     6,
		Volume:    1,
	}, "spread_strategy")
	require.NoError(t, err)
	assert.Equal(t, "ALGO.STRATEGY_1", parentID)

	leg1 := legTick("rb2401", 105, 106)
	leg2 := legTick("hc2401", 100, 101)
	rig.book.ProcessTick(leg1)
	rig.book.ProcessTick(leg2)

	// ask = 106 - 100 = 6 <= 6，吃腿一
	rig.engine.ProcessTick(leg1)
	require.Len(t, rig.trader.sent, 1)
	first := rig.trader.sent[0]
	assert.Equal(t, "rb2401", first.Symbol)
	assert.Equal(t, domain.DirectionLong, first.Direction)
	assert.Equal(t, domain.OrderTypeFAK, first.Type)
	assert.Equal(t, 106.0, first.Price)
	assert.Equal(t, 1.0, first.Volume)

	// 腿一成交后立即对冲腿二
	rig.engine.ProcessTrade(makeTrade("rb2401", "1", "T1", domain.DirectionLong, 106, 1))
	require.Len(t, rig.trader.sent, 2)
	hedge := rig.trader.sent[1]
	assert.Equal(t, "hc2401", hedge.Symbol)
	assert.Equal(t, domain.DirectionShort, hedge.Direction)
	assert.Equal(t, 100.0, hedge.Price)
	assert.Equal(t, 1.0, hedge.Volume)

	// 腿二成交，母单完成并被摘除
	rig.engine.ProcessTrade(makeTrade("hc2401", "2", "T2", domain.DirectionShort, 100, 1))
	assert.False(t, rig.engine.Cancel(parentID))
}

func TestSpreadAlgoWaitsForPrice(t *testing.T) {
	rig := newAlgoRig(true)

	_, err := rig.engine.Start(&domain.OrderRequest{
		Symbol:    "AB-SPD",
		Exchange:  domain.ExchangeSPD,
		Direction: domain.DirectionLong,
		Offset:    domain.OffsetOpen,
		Price:     5,
		Volume:    1,
	}, "spread_strategy")
	require.NoError(t, err)

	leg1 := legTick("rb2401", 105, 106)
	leg2 := legTick("hc2401", 100, 101)
	rig.book.ProcessTick(leg1)
	rig.book.ProcessTick(leg2)

	// ask = 6 > 5，不动手
	rig.engine.ProcessTick(leg1)
	assert.Empty(t, rig.trader.sent)
}

func TestSpreadAlgoRejectsNonSpread(t *testing.T) {
	rig := newAlgoRig(true)
	_, err := rig.engine.Start(&domain.OrderRequest{
		Symbol:   "rb2401",
		Exchange: domain.ExchangeSHFE,
	}, "s")
	assert.Error(t, err)
}

func TestCancelStopsActiveLegs(t *testing.T) {
	rig := newAlgoRig(true)

	parentID, err := rig.engine.Start(&domain.OrderRequest{
		Symbol:    "AB-SPD",
		Exchange:  domain.ExchangeSPD,
		Direction: domain.DirectionLong,
		Offset:    domain.OffsetOpen,
		Price:     6,
		Volume:    1,
	}, "spread_strategy")
	require.NoError(t, err)

	leg1 := legTick("rb2401", 105, 106)
	leg2 := legTick("hc2401", 100, 101)
	rig.book.ProcessTick(leg1)
	rig.book.ProcessTick(leg2)
	rig.engine.ProcessTick(leg1)
	require.Len(t, rig.trader.sent, 1)

	assert.True(t, rig.engine.Cancel(parentID))
	assert.Equal(t, []string{"GW.1"}, rig.trader.cancels)
	assert.False(t, rig.engine.Cancel(parentID))
}

func TestTWAPSlicesEvenly(t *testing.T) {
	rig := newAlgoRig(false)
	rig.book.ProcessTick(legTick("rb2401", 3999, 4000))

	parentID, err := rig.engine.StartTWAP(&domain.OrderRequest{
		Symbol:    "rb2401",
		Exchange:  domain.ExchangeSHFE,
		Direction: domain.DirectionLong,
		Offset:    domain.OffsetOpen,
		Price:     4005,
		Volume:    8,
	}, "twap_strategy", 4, time.Hour)
	require.NoError(t, err)

	rig.engine.onTimer()
	require.Len(t, rig.trader.sent, 1)
	assert.Equal(t, 2.0, rig.trader.sent[0].Volume)
	// 跟卖一，母单价做保护
	assert.Equal(t, 4000.0, rig.trader.sent[0].Price)

	// 间隔未到不再发片
	rig.engine.onTimer()
	assert.Len(t, rig.trader.sent, 1)

	// 全部成交后母单完成
	rig.engine.ProcessTrade(makeTrade("rb2401", "1", "T1", domain.DirectionLong, 4000, 8))
	assert.False(t, rig.engine.Cancel(parentID))
}

func TestSniperFiresAtTargetPrice(t *testing.T) {
	rig := newAlgoRig(false)

	_, err := rig.engine.StartSniper(&domain.OrderRequest{
		Symbol:    "rb2401",
		Exchange:  domain.ExchangeSHFE,
		Direction: domain.DirectionLong,
		Offset:    domain.OffsetOpen,
		Price:     4000,
		Volume:    3,
	}, "sniper_strategy")
	require.NoError(t, err)

	// 卖一高于目标价，继续潜伏
	rig.engine.ProcessTick(legTick("rb2401", 4001, 4002))
	assert.Empty(t, rig.trader.sent)

	rig.engine.ProcessTick(legTick("rb2401", 3998, 3999))
	require.Len(t, rig.trader.sent, 1)
	assert.Equal(t, domain.OrderTypeFAK, rig.trader.sent[0].Type)
	assert.Equal(t, 3999.0, rig.trader.sent[0].Price)
	assert.Equal(t, 3.0, rig.trader.sent[0].Volume)
}
