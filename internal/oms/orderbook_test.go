package oms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/gofut/internal/domain"
)

func newOrder(id string, status domain.Status) *domain.Order {
	return &domain.Order{
		Symbol: "rb2401", Exchange: domain.ExchangeSHFE,
		OrderID: id, GatewayName: "CTP",
		Direction: domain.DirectionLong, Offset: domain.OffsetOpen,
		Volume: 2, Status: status,
	}
}

func TestOrderBookTerminalStatusAbsorbing(t *testing.T) {
	ob := NewOrderBook()

	ob.ProcessOrder(newOrder("1", domain.StatusNotTraded))
	require.Len(t, ob.GetAllActiveOrders(""), 1)

	ob.ProcessOrder(newOrder("1", domain.StatusAllTraded))
	assert.Empty(t, ob.GetAllActiveOrders(""))

	// 终态后到达的过期中间状态被忽略
	ob.ProcessOrder(newOrder("1", domain.StatusPartTraded))
	got := ob.GetOrder("CTP.1")
	require.NotNil(t, got)
	assert.Equal(t, domain.StatusAllTraded, got.Status)
	assert.Empty(t, ob.GetAllActiveOrders(""))
}

func TestOrderBookTradeDedup(t *testing.T) {
	ob := NewOrderBook()
	tr := &domain.Trade{
		Symbol: "rb2401", Exchange: domain.ExchangeSHFE,
		OrderID: "1", TradeID: "T1", GatewayName: "CTP",
		Direction: domain.DirectionLong, Offset: domain.OffsetOpen,
		Price: 4000, Volume: 1,
	}
	assert.True(t, ob.ProcessTrade(tr))
	assert.False(t, ob.ProcessTrade(tr), "重复成交必须被丢弃")
	assert.Len(t, ob.GetAllTrades(), 1)
}

func TestOrderBookSnapshotsAreCopies(t *testing.T) {
	ob := NewOrderBook()
	tick := &domain.Tick{Symbol: "rb2401", Exchange: domain.ExchangeSHFE, LastPrice: 4000}
	ob.ProcessTick(tick)

	snap := ob.GetTick("rb2401.SHFE")
	require.NotNil(t, snap)
	snap.LastPrice = 9999

	again := ob.GetTick("rb2401.SHFE")
	assert.Equal(t, 4000.0, again.LastPrice, "快照修改不得影响权威副本")
}

func TestOrderBookPositionZeroRemoval(t *testing.T) {
	ob := NewOrderBook()
	pos := &domain.Position{
		Symbol: "cu2402", Exchange: domain.ExchangeSHFE,
		Direction: domain.DirectionLong, Volume: 5, YdVolume: 3,
	}
	ob.ProcessPosition(pos)
	require.NotNil(t, ob.GetPosition("cu2402.SHFE.long"))

	pos2 := pos.Clone()
	pos2.Volume = 0
	pos2.Frozen = 0
	ob.ProcessPosition(pos2)
	assert.Nil(t, ob.GetPosition("cu2402.SHFE.long"))
}

func TestOrderBookActiveOrderFilter(t *testing.T) {
	ob := NewOrderBook()
	ob.ProcessOrder(newOrder("1", domain.StatusNotTraded))

	other := newOrder("2", domain.StatusNotTraded)
	other.Symbol = "cu2402"
	ob.ProcessOrder(other)

	assert.Len(t, ob.GetAllActiveOrders(""), 2)
	assert.Len(t, ob.GetAllActiveOrders("rb2401.SHFE"), 1)
	assert.Len(t, ob.GetAllActiveOrders("au2406.SHFE"), 0)
}

func TestOrderBookContractAndAccount(t *testing.T) {
	ob := NewOrderBook()
	ob.ProcessContract(&domain.Contract{
		Symbol: "rb2401", Exchange: domain.ExchangeSHFE,
		Product: domain.ProductFuture, PriceTick: 1, Size: 10, MinVolume: 1,
	})
	ob.ProcessAccount(&domain.Account{AccountID: "100238", GatewayName: "CTP", Balance: 1_000_000})

	c := ob.GetContract("rb2401.SHFE")
	require.NotNil(t, c)
	assert.Equal(t, 10.0, c.Size)

	a := ob.GetAccount("CTP.100238")
	require.NotNil(t, a)
	assert.Equal(t, 1_000_000.0, a.Available())
}
