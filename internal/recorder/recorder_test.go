package recorder

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/gofut/internal/domain"
	"github.com/betbot/gofut/pkg/eventbus"
)

func newTestRecorder(t *testing.T) (*Recorder, *eventbus.Bus) {
	t.Helper()
	bus := eventbus.New()
	r, err := New(filepath.Join(t.TempDir(), "trader.db"), "888001", bus)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r, bus
}

func TestUpsertOverwritesByKey(t *testing.T) {
	r, _ := newTestRecorder(t)

	order := &domain.Order{
		Symbol: "rb2401", Exchange: domain.ExchangeSHFE,
		OrderID: "1", GatewayName: "CTP",
		Direction: domain.DirectionLong, Offset: domain.OffsetOpen,
		Price: 4000, Volume: 2, Status: domain.StatusNotTraded,
		Datetime: time.Now(),
	}
	r.upsert(collOrders, order.VtOrderID(), order)

	updated := order.Clone()
	updated.Traded = 2
	updated.Status = domain.StatusAllTraded
	r.upsert(collOrders, updated.VtOrderID(), updated)
	r.Flush()

	n, err := r.Count(collOrders)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var stored domain.Order
	require.NoError(t, r.Load(collOrders, "CTP.1", &stored))
	assert.Equal(t, domain.StatusAllTraded, stored.Status)
	assert.Equal(t, 2.0, stored.Traded)
}

func TestCleanupRemovesStaleTodayRows(t *testing.T) {
	r, _ := newTestRecorder(t)

	r.SetTradingDay("20240115")
	r.upsert(collTrades, "CTP.T1", &domain.Trade{TradeID: "T1", GatewayName: "CTP"})
	r.upsert(collAccounts, "CTP.888001", &domain.Account{AccountID: "888001", GatewayName: "CTP"})
	r.Flush()

	// 交易日切换后 today_ 集合的旧行被清掉，累计集合保留
	r.SetTradingDay("20240116")
	r.CleanupStale()
	r.Flush()

	trades, err := r.Count(collTrades)
	require.NoError(t, err)
	assert.Equal(t, 0, trades)

	accounts, err := r.Count(collAccounts)
	require.NoError(t, err)
	assert.Equal(t, 1, accounts)
}

func TestBusEventsAreRecorded(t *testing.T) {
	r, bus := newTestRecorder(t)
	bus.Start(t.Context())
	defer bus.Stop()

	bus.Put(eventbus.Event{Type: eventbus.TypeTrade, Data: &domain.Trade{
		Symbol: "rb2401", Exchange: domain.ExchangeSHFE,
		OrderID: "1", TradeID: "T9", GatewayName: "CTP",
		Direction: domain.DirectionLong, Offset: domain.OffsetOpen,
		Price: 4000, Volume: 1, Datetime: time.Now(),
	}})

	require.Eventually(t, func() bool {
		r.Flush()
		n, err := r.Count(collTrades)
		return err == nil && n == 1
	}, 2*time.Second, 20*time.Millisecond)
}
