package renkotrend

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/gofut/internal/domain"
	"github.com/betbot/gofut/internal/engine"
)

// fakeContext 记录策略发出的委托与撤单
type fakeContext struct {
	orders  []sentOrder
	cancels []string
	seq     int
}

type sentOrder struct {
	vtSymbol  string
	direction domain.Direction
	offset    domain.Offset
	price     float64
	volume    float64
	stop      bool
}

func (c *fakeContext) SendOrder(vtSymbol string, direction domain.Direction, offset domain.Offset,
	price, volume float64, stop, lock bool) []string {
	c.orders = append(c.orders, sentOrder{vtSymbol, direction, offset, price, volume, stop})
	c.seq++
	if stop {
		return []string{fmt.Sprintf("STOP.%d", c.seq)}
	}
	return []string{fmt.Sprintf("GW.%d", c.seq)}
}

func (c *fakeContext) CancelOrder(vtOrderID string) { c.cancels = append(c.cancels, vtOrderID) }
func (c *fakeContext) CancelAll()                   {}
func (c *fakeContext) Subscribe(string) error       { return nil }
func (c *fakeContext) GetTick(string) *domain.Tick  { return nil }
func (c *fakeContext) GetContract(string) *domain.Contract {
	return &domain.Contract{Symbol: "rb2401", Exchange: domain.ExchangeSHFE, PriceTick: 1}
}
func (c *fakeContext) GetPosition(string) *domain.Position { return nil }
func (c *fakeContext) GetOrder(string) *domain.Order       { return nil }
func (c *fakeContext) WriteLog(string)                     {}

func newStrategy(t *testing.T, ctx *fakeContext) *Strategy {
	t.Helper()
	s := New()
	s.UpdateSetting(map[string]interface{}{
		"vt_symbol":  "rb2401.SHFE",
		"height":     10.0,
		"volume":     1.0,
		"stop_range": 2.0,
	})
	require.NoError(t, s.OnInit(ctx))
	return s
}

func tickAt(price float64) *domain.Tick {
	return &domain.Tick{
		Symbol:    "rb2401",
		Exchange:  domain.ExchangeSHFE,
		Datetime:  time.Now(),
		LastPrice: price,
	}
}

// 连续上涨收砖直到均线呈多头排列后触发开仓
func driveUptrend(s *Strategy) float64 {
	s.OnTick(tickAt(4000))
	price := 4005.0
	for i := 0; i < 7; i++ {
		s.OnTick(tickAt(price))
		price += 10
	}
	return price - 10 // 最后一根砖的收盘价
}

func TestOpensLongWithStopOnBullishBrick(t *testing.T) {
	ctx := &fakeContext{}
	s := newStrategy(t, ctx)

	last := driveUptrend(s)

	require.NotEmpty(t, ctx.orders)
	entry := ctx.orders[0]
	assert.Equal(t, domain.DirectionLong, entry.direction)
	assert.Equal(t, domain.OffsetOpen, entry.offset)
	assert.False(t, entry.stop)
	assert.Equal(t, 1.0, entry.volume)

	require.Len(t, ctx.orders, 2, "开仓后应同时挂出止损")
	stop := ctx.orders[1]
	assert.Equal(t, domain.DirectionShort, stop.direction)
	assert.Equal(t, domain.OffsetClose, stop.offset)
	assert.True(t, stop.stop)
	assert.Equal(t, entry.price-20, stop.price, "止损价在开仓砖下方两个砖高")
	assert.LessOrEqual(t, entry.price, last)

	assert.Equal(t, 1.0, s.Pos()["rb2401.SHFE"])
}

func TestExitsOnBearishBrick(t *testing.T) {
	ctx := &fakeContext{}
	s := newStrategy(t, ctx)

	driveUptrend(s)
	require.Len(t, ctx.orders, 2)
	stopID := s.stopID
	require.NotEmpty(t, stopID)

	// 回落一个砖高收蓝砖
	s.OnTick(tickAt(4045))

	assert.Contains(t, ctx.cancels, stopID, "离场前先撤止损")
	require.Len(t, ctx.orders, 3)
	exit := ctx.orders[2]
	assert.Equal(t, domain.DirectionShort, exit.direction)
	assert.Equal(t, domain.OffsetClose, exit.offset)
	assert.False(t, exit.stop)
	assert.Equal(t, 0.0, s.Pos()["rb2401.SHFE"])
}

func TestStopTriggerClearsPosition(t *testing.T) {
	ctx := &fakeContext{}
	s := newStrategy(t, ctx)

	driveUptrend(s)
	stopID := s.stopID
	require.NotEmpty(t, stopID)

	s.OnStopOrder(&domain.StopOrder{
		StopOrderID: stopID,
		Status:      domain.StopOrderTriggered,
		VtOrderIDs:  []string{"GW.9"},
	})

	assert.Empty(t, s.stopID)
	assert.Equal(t, 0.0, s.Pos()["rb2401.SHFE"])
}

func TestIgnoresForeignTicks(t *testing.T) {
	ctx := &fakeContext{}
	s := newStrategy(t, ctx)

	other := tickAt(4000)
	other.Symbol = "hc2401"
	for i := 0; i < 20; i++ {
		s.OnTick(other)
	}
	assert.Empty(t, ctx.orders)
}

func TestRegisteredInFactory(t *testing.T) {
	assert.Contains(t, engine.RegisteredClasses(), "RenkoTrend")
}
