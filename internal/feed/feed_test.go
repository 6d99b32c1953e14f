package feed

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/gofut/internal/domain"
	"github.com/betbot/gofut/pkg/eventbus"
)

// fakeTickServer 收到订阅请求后推送一条 tick 报文
func fakeTickServer(t *testing.T, payload string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		var msg subscribeMsg
		require.NoError(t, conn.ReadJSON(&msg))
		require.Equal(t, "subscribe", msg.Op)

		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(payload)))
		// 保持连接直到客户端断开
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func TestFeedDeliversTicks(t *testing.T) {
	payload := `{
		"type": "tick", "symbol": "rb2401", "exchange": "SHFE",
		"trading_day": "20240115", "timestamp": 1705286400000,
		"last_price": 4001.5, "volume": 1200,
		"bid_price": [4001, 4000], "ask_price": [4002, 4003],
		"bid_volume": [10, 20], "ask_volume": [5, 15],
		"limit_up": 4400, "limit_down": 3600
	}`
	srv := fakeTickServer(t, payload)
	defer srv.Close()

	bus := eventbus.New()
	var got []*domain.Tick
	bus.Register(eventbus.TypeTick, func(e eventbus.Event) {
		got = append(got, e.Data.(*domain.Tick))
	})
	bus.Start(t.Context())
	t.Cleanup(bus.Stop)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	f := NewMarketFeed("test", wsURL, "CTP", bus)
	require.NoError(t, f.Subscribe(&domain.SubscribeRequest{Symbol: "rb2401", Exchange: domain.ExchangeSHFE}))
	require.NoError(t, f.Connect(t.Context()))
	defer f.Close()

	require.Eventually(t, func() bool { return len(got) == 1 }, 2*time.Second, 10*time.Millisecond)
	tick := got[0]
	assert.Equal(t, "rb2401.SHFE", tick.VtSymbol())
	assert.Equal(t, "CTP", tick.GatewayName)
	assert.Equal(t, 4001.5, tick.LastPrice)
	assert.Equal(t, 4001.0, tick.BidPrice[0])
	assert.Equal(t, 4002.0, tick.AskPrice[0])
	assert.Equal(t, 4400.0, tick.LimitUp)
	assert.Equal(t, "20240115", tick.TradingDay)
}

func TestFeedIgnoresMalformedMessages(t *testing.T) {
	srv := fakeTickServer(t, `{"type":"heartbeat"}`)
	defer srv.Close()

	bus := eventbus.New()
	delivered := 0
	bus.Register(eventbus.TypeTick, func(eventbus.Event) { delivered++ })
	bus.Start(t.Context())
	t.Cleanup(bus.Stop)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	f := NewMarketFeed("test", wsURL, "CTP", bus)
	require.NoError(t, f.Subscribe(&domain.SubscribeRequest{Symbol: "rb2401", Exchange: domain.ExchangeSHFE}))
	require.NoError(t, f.Connect(t.Context()))
	defer f.Close()

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, delivered, "非 tick 报文不投递")
}

func TestFeedConnectFailure(t *testing.T) {
	bus := eventbus.New()
	f := NewMarketFeed("test", "ws://127.0.0.1:1/ws", "CTP", bus)
	assert.Error(t, f.Connect(t.Context()))
}
