// Package feed 行情源：WebSocket 订阅 tick 推送并投递到事件总线。
// 行情线程只做 bus.Put，绝不调用策略代码。
package feed

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/betbot/gofut/internal/domain"
	"github.com/betbot/gofut/pkg/eventbus"
	"github.com/betbot/gofut/pkg/sigchan"
	"github.com/betbot/gofut/pkg/syncgroup"
)

var log = logrus.WithField("component", "market_feed")

const (
	pingInterval   = 10 * time.Second
	readTimeout    = 60 * time.Second
	reconnectDelay = 5 * time.Second
	maxReconnects  = 10
)

// wireTick 行情源推送的 tick 报文
type wireTick struct {
	Type       string `json:"type"`
	Symbol     string `json:"symbol"`
	Exchange   string `json:"exchange"`
	TradingDay string `json:"trading_day"`
	Timestamp  int64  `json:"timestamp"` // unix 毫秒

	LastPrice    float64 `json:"last_price"`
	LastVolume   float64 `json:"last_volume"`
	Volume       float64 `json:"volume"`
	OpenInterest float64 `json:"open_interest"`

	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	PreClose  float64 `json:"pre_close"`
	LimitUp   float64 `json:"limit_up"`
	LimitDown float64 `json:"limit_down"`

	BidPrice  []float64 `json:"bid_price"`
	AskPrice  []float64 `json:"ask_price"`
	BidVolume []float64 `json:"bid_volume"`
	AskVolume []float64 `json:"ask_volume"`
}

type subscribeMsg struct {
	Op      string   `json:"op"`
	Symbols []string `json:"symbols"`
}

// MarketFeed WebSocket 行情源。信号驱动重连，断线期间订阅列表保留，
// 重连成功后自动重新订阅。
type MarketFeed struct {
	Name string

	url         string
	gatewayName string
	bus         *eventbus.Bus

	mu         sync.RWMutex
	conn       *websocket.Conn
	closed     bool
	subscribed map[string]bool

	reconnectC     *sigchan.Chan
	reconnectMu    sync.Mutex
	reconnectCount int
	reconStarted   bool

	ctx    context.Context
	cancel context.CancelFunc

	// 读与心跳协程按连接成组管理，重连前先收干净
	loops *syncgroup.SyncGroup
	rwg   sync.WaitGroup
}

// NewMarketFeed 创建行情源
func NewMarketFeed(name, url, gatewayName string, bus *eventbus.Bus) *MarketFeed {
	return &MarketFeed{
		Name:        name,
		url:         url,
		gatewayName: gatewayName,
		bus:         bus,
		subscribed:  make(map[string]bool),
		reconnectC:  sigchan.New(1),
		loops:       syncgroup.NewSyncGroup(),
	}
}

// Connect 建立连接并启动读取、心跳、重连协程
func (f *MarketFeed) Connect(ctx context.Context) error {
	f.mu.Lock()
	if f.conn != nil && !f.closed {
		f.conn.Close()
	}
	if f.cancel != nil {
		f.cancel()
	}
	f.ctx, f.cancel = context.WithCancel(ctx)
	f.mu.Unlock()

	// 上一条连接的读/心跳协程此时已被取消，收干净再拨号
	f.loops.WaitAndClear()

	dialer := websocket.Dialer{HandshakeTimeout: 30 * time.Second}
	conn, _, err := dialer.Dial(f.url, nil)
	if err != nil {
		return errors.Wrapf(err, "连接行情源 %s", f.url)
	}

	f.mu.Lock()
	f.conn = conn
	f.closed = false
	symbols := make([]string, 0, len(f.subscribed))
	for s := range f.subscribed {
		symbols = append(symbols, s)
	}
	f.mu.Unlock()

	if len(symbols) > 0 {
		if err := f.sendSubscribe(symbols); err != nil {
			conn.Close()
			return err
		}
	}

	loopCtx := f.ctx
	f.loops.Add(func() { f.readLoop(loopCtx, conn) })
	f.loops.Add(func() { f.pingLoop(loopCtx, conn) })
	f.loops.Run()

	// 重连协程跟随外层 ctx 存活，只起一次
	f.reconnectMu.Lock()
	f.reconnectCount = 0
	if !f.reconStarted {
		f.reconStarted = true
		f.rwg.Add(1)
		go f.reconnector(ctx)
	}
	f.reconnectMu.Unlock()

	log.Infof("行情源 %s 已连接: %s 📡", f.Name, f.url)
	return nil
}

// Subscribe 订阅合约行情
func (f *MarketFeed) Subscribe(req *domain.SubscribeRequest) error {
	vtSymbol := req.VtSymbol()
	f.mu.Lock()
	already := f.subscribed[vtSymbol]
	f.subscribed[vtSymbol] = true
	connected := f.conn != nil && !f.closed
	f.mu.Unlock()

	if already || !connected {
		return nil
	}
	return f.sendSubscribe([]string{vtSymbol})
}

func (f *MarketFeed) sendSubscribe(symbols []string) error {
	f.mu.RLock()
	conn := f.conn
	f.mu.RUnlock()
	if conn == nil {
		return errors.New("行情源未连接")
	}
	msg := subscribeMsg{Op: "subscribe", Symbols: symbols}
	if err := conn.WriteJSON(msg); err != nil {
		return errors.Wrap(err, "发送订阅请求")
	}
	return nil
}

// Close 关闭行情源
func (f *MarketFeed) Close() {
	f.mu.Lock()
	f.closed = true
	if f.cancel != nil {
		f.cancel()
	}
	if f.conn != nil {
		f.conn.Close()
	}
	f.mu.Unlock()
	f.reconnectC.Emit()
	f.loops.Wait()
	f.rwg.Wait()
	log.Infof("行情源 %s 已关闭", f.Name)
}

func (f *MarketFeed) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		if ctx.Err() != nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-ctx.Done():
			default:
				log.Warnf("行情源 %s 读取失败: %v，触发重连", f.Name, err)
				f.triggerReconnect()
			}
			return
		}
		f.handleMessage(data)
	}
}

func (f *MarketFeed) handleMessage(data []byte) {
	var wt wireTick
	if err := json.Unmarshal(data, &wt); err != nil {
		log.Debugf("行情源 %s 报文解析失败: %v", f.Name, err)
		return
	}
	if wt.Type != "tick" || wt.Symbol == "" {
		return
	}

	tick := &domain.Tick{
		Symbol:       wt.Symbol,
		Exchange:     domain.Exchange(wt.Exchange),
		Datetime:     time.UnixMilli(wt.Timestamp),
		TradingDay:   wt.TradingDay,
		GatewayName:  f.gatewayName,
		LastPrice:    wt.LastPrice,
		LastVolume:   wt.LastVolume,
		Volume:       wt.Volume,
		OpenInterest: wt.OpenInterest,
		OpenPrice:    wt.Open,
		HighPrice:    wt.High,
		LowPrice:     wt.Low,
		PreClose:     wt.PreClose,
		LimitUp:      wt.LimitUp,
		LimitDown:    wt.LimitDown,
	}
	copyLevels(tick.BidPrice[:], wt.BidPrice)
	copyLevels(tick.AskPrice[:], wt.AskPrice)
	copyLevels(tick.BidVolume[:], wt.BidVolume)
	copyLevels(tick.AskVolume[:], wt.AskVolume)

	f.bus.Put(eventbus.Event{Type: eventbus.TypeTick, Data: tick})
}

func copyLevels(dst []float64, src []float64) {
	for i := 0; i < len(dst) && i < len(src); i++ {
		dst[i] = src[i]
	}
}

func (f *MarketFeed) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				select {
				case <-ctx.Done():
				default:
					log.Warnf("行情源 %s 心跳失败: %v", f.Name, err)
					f.triggerReconnect()
				}
				return
			}
		}
	}
}

func (f *MarketFeed) triggerReconnect() {
	f.reconnectC.Emit()
}

func (f *MarketFeed) reconnector(ctx context.Context) {
	defer f.rwg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-f.reconnectC.C():
		}

		f.mu.RLock()
		closed := f.closed
		f.mu.RUnlock()
		if closed {
			return
		}

		f.reconnectMu.Lock()
		f.reconnectCount++
		count := f.reconnectCount
		f.reconnectMu.Unlock()
		if count > maxReconnects {
			log.Errorf("行情源 %s 重连超过 %d 次，放弃", f.Name, maxReconnects)
			return
		}

		log.Warnf("行情源 %s 第 %d 次重连，冷却 %v", f.Name, count, reconnectDelay)
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
		if err := f.Connect(ctx); err != nil {
			log.Warnf("行情源 %s 重连失败: %v", f.Name, err)
			f.triggerReconnect()
		}
	}
}
