package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVtSymbolRoundTrip(t *testing.T) {
	vt := VtSymbolOf("rb2401", ExchangeSHFE)
	assert.Equal(t, "rb2401.SHFE", vt)

	symbol, exchange := SplitVtSymbol(vt)
	assert.Equal(t, "rb2401", symbol)
	assert.Equal(t, ExchangeSHFE, exchange)

	// 符号本身含点号时按最后一个点拆分
	symbol, exchange = SplitVtSymbol("IO2401-C-3800.CFFEX")
	assert.Equal(t, "IO2401-C-3800", symbol)
	assert.Equal(t, ExchangeCFFEX, exchange)
}

func TestStatusIsActive(t *testing.T) {
	active := []Status{StatusSubmitting, StatusNotTraded, StatusPartTraded, StatusCancelling}
	for _, s := range active {
		assert.True(t, s.IsActive(), "status %s", s)
	}
	terminal := []Status{StatusAllTraded, StatusCancelled, StatusRejected}
	for _, s := range terminal {
		assert.False(t, s.IsActive(), "status %s", s)
	}
}

func TestDirectionOpposite(t *testing.T) {
	assert.Equal(t, DirectionShort, DirectionLong.Opposite())
	assert.Equal(t, DirectionLong, DirectionShort.Opposite())
	assert.Equal(t, DirectionNet, DirectionNet.Opposite())
}

func TestExchangeRules(t *testing.T) {
	assert.True(t, ExchangeSHFE.RequiresSplitClose())
	assert.True(t, ExchangeINE.RequiresSplitClose())
	assert.False(t, ExchangeDCE.RequiresSplitClose())
	assert.True(t, ExchangeCFFEX.UsesNetPosition())
	assert.False(t, ExchangeSHFE.UsesNetPosition())
}

func TestRoundTo(t *testing.T) {
	// 浮点误差不应污染结果
	assert.Equal(t, 4000.0, RoundTo(4000.4, 1))
	assert.Equal(t, 4001.0, RoundTo(4000.6, 1))
	assert.Equal(t, 0.3, RoundTo(0.1+0.2, 0.1))
	assert.Equal(t, 3990.0, RoundTo(3992.0, 5))
	// target<=0 原样返回
	assert.Equal(t, 123.45, RoundTo(123.45, 0))
}

func TestFloorCeilTo(t *testing.T) {
	assert.Equal(t, 4000.0, FloorTo(4000.9, 1))
	assert.Equal(t, 4001.0, CeilTo(4000.1, 1))
}

func TestOrderLifecycleHelpers(t *testing.T) {
	o := &Order{
		Symbol: "rb2401", Exchange: ExchangeSHFE,
		OrderID: "1_2_3", GatewayName: "CTP",
		Direction: DirectionLong, Offset: OffsetOpen,
		Volume: 2, Status: StatusNotTraded,
	}
	assert.Equal(t, "CTP.1_2_3", o.VtOrderID())
	assert.True(t, o.IsActive())

	req := o.CreateCancelRequest()
	assert.Equal(t, "1_2_3", req.OrderID)
	assert.Equal(t, "rb2401.SHFE", req.VtSymbol())

	clone := o.Clone()
	clone.Status = StatusAllTraded
	assert.Equal(t, StatusNotTraded, o.Status)
}

func TestPositionDecomposition(t *testing.T) {
	p := &Position{
		Symbol: "cu2402", Exchange: ExchangeSHFE,
		Direction: DirectionLong,
		Volume:    5, YdVolume: 3,
	}
	assert.Equal(t, 2.0, p.TdVolume())
	assert.Equal(t, "cu2402.SHFE.long", p.VtPositionID())

	p.HolderID = "sub1"
	assert.Equal(t, "cu2402.SHFE.long.sub1", p.VtPositionID())
}

func TestTradeIDs(t *testing.T) {
	tr := &Trade{
		Symbol: "rb2401", Exchange: ExchangeSHFE,
		OrderID: "1_2_3", TradeID: "T100", GatewayName: "CTP",
	}
	assert.Equal(t, "CTP.T100", tr.VtTradeID())
	assert.Equal(t, "CTP.1_2_3", tr.VtOrderID())
}

func TestRequestCreateOrder(t *testing.T) {
	req := &OrderRequest{
		Symbol: "rb2401", Exchange: ExchangeSHFE,
		Direction: DirectionLong, Offset: OffsetOpen,
		Type: OrderTypeLimit, Price: 4000, Volume: 2,
	}
	o := req.CreateOrder("1_2_7", "CTP")
	assert.Equal(t, StatusSubmitting, o.Status)
	assert.Equal(t, "CTP.1_2_7", o.VtOrderID())
	assert.Equal(t, req.Volume, o.Volume)
}
