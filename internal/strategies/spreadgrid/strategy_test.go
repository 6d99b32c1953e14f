package spreadgrid

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/gofut/internal/domain"
	"github.com/betbot/gofut/internal/engine"
)

const spreadSymbol = "AB-SPD.SPD"

type fakeContext struct {
	orders  []sentOrder
	cancels []string
	seq     int
}

type sentOrder struct {
	direction domain.Direction
	offset    domain.Offset
	price     float64
	volume    float64
}

func (c *fakeContext) SendOrder(vtSymbol string, direction domain.Direction, offset domain.Offset,
	price, volume float64, stop, lock bool) []string {
	c.orders = append(c.orders, sentOrder{direction, offset, price, volume})
	c.seq++
	return []string{fmt.Sprintf("ALGO.STRATEGY_%d", c.seq)}
}

func (c *fakeContext) CancelOrder(vtOrderID string) { c.cancels = append(c.cancels, vtOrderID) }
func (c *fakeContext) CancelAll()                   {}
func (c *fakeContext) Subscribe(string) error       { return nil }
func (c *fakeContext) GetTick(string) *domain.Tick  { return nil }
func (c *fakeContext) GetContract(string) *domain.Contract {
	return nil
}
func (c *fakeContext) GetPosition(string) *domain.Position { return nil }
func (c *fakeContext) GetOrder(string) *domain.Order       { return nil }
func (c *fakeContext) WriteLog(string)                     {}

func newStrategy(t *testing.T, ctx *fakeContext) *Strategy {
	t.Helper()
	s := New()
	s.UpdateSetting(map[string]interface{}{
		"vt_symbol":   spreadSymbol,
		"center":      100.0,
		"step":        10.0,
		"grid_volume": 1.0,
		"max_layers":  3.0,
	})
	require.NoError(t, s.OnInit(ctx))
	return s
}

func spdTick(price float64) *domain.Tick {
	return &domain.Tick{Symbol: "AB-SPD", Exchange: domain.ExchangeSPD, LastPrice: price}
}

// fill 让在途母单终结并按方向推进持仓
func fill(s *Strategy, parentID string, direction domain.Direction, volume float64) {
	s.OnTrade(&domain.Trade{
		Symbol:    "AB-SPD",
		Exchange:  domain.ExchangeSPD,
		Direction: direction,
		Volume:    volume,
	})
	s.OnOrder(&domain.Order{
		Symbol:      "AB-SPD",
		Exchange:    domain.ExchangeSPD,
		GatewayName: "ALGO",
		OrderID:     parentID[len("ALGO."):],
		Status:      domain.StatusAllTraded,
	})
}

func TestBuysOneLayerPerStepBelowCenter(t *testing.T) {
	ctx := &fakeContext{}
	s := newStrategy(t, ctx)

	s.OnTick(spdTick(85))
	require.Len(t, ctx.orders, 1)
	assert.Equal(t, domain.DirectionLong, ctx.orders[0].direction)
	assert.Equal(t, domain.OffsetOpen, ctx.orders[0].offset)
	assert.Equal(t, 1.0, ctx.orders[0].volume)
	assert.Equal(t, 85.0, ctx.orders[0].price)

	// 母单在途时不追加
	s.OnTick(spdTick(75))
	assert.Len(t, ctx.orders, 1)

	fill(s, "ALGO.STRATEGY_1", domain.DirectionLong, 1)
	assert.Equal(t, 1.0, s.Pos()[spreadSymbol])

	// 再跌一格补一层
	s.OnTick(spdTick(75))
	require.Len(t, ctx.orders, 2)
	assert.Equal(t, 1.0, ctx.orders[1].volume)
}

func TestSellsDownToNegativeLayersAboveCenter(t *testing.T) {
	ctx := &fakeContext{}
	s := newStrategy(t, ctx)

	s.OnTick(spdTick(85))
	fill(s, "ALGO.STRATEGY_1", domain.DirectionLong, 1)

	// 价差大幅走高，先平多再反手
	s.OnTick(spdTick(135))
	require.Len(t, ctx.orders, 2)
	sell := ctx.orders[1]
	assert.Equal(t, domain.DirectionShort, sell.direction)
	assert.Equal(t, domain.OffsetClose, sell.offset)
	assert.Equal(t, 4.0, sell.volume, "从 +1 调到 -3 共 4 手")
}

func TestLayersClampedAtMax(t *testing.T) {
	ctx := &fakeContext{}
	s := newStrategy(t, ctx)

	s.OnTick(spdTick(-500))
	require.Len(t, ctx.orders, 1)
	assert.Equal(t, 3.0, ctx.orders[0].volume, "不超过 max_layers")
}

func TestAtCenterStaysFlat(t *testing.T) {
	ctx := &fakeContext{}
	s := newStrategy(t, ctx)

	s.OnTick(spdTick(100))
	assert.Empty(t, ctx.orders)
}

func TestStopCancelsActiveParent(t *testing.T) {
	ctx := &fakeContext{}
	s := newStrategy(t, ctx)

	s.OnTick(spdTick(85))
	require.Len(t, ctx.orders, 1)

	s.OnStop()
	assert.Equal(t, []string{"ALGO.STRATEGY_1"}, ctx.cancels)
}

func TestRegisteredInFactory(t *testing.T) {
	assert.Contains(t, engine.RegisteredClasses(), "SpreadGrid")
}
