package gateway

import (
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/betbot/gofut/internal/domain"
	"github.com/betbot/gofut/pkg/eventbus"
	"github.com/betbot/gofut/pkg/ratelimit"
)

// PaperGateway 进程内模拟通道：立即确认限价单，行情驱动撮合。
// 委托号采用 front_session_ref 三段格式。
type PaperGateway struct {
	*Base

	mu        sync.Mutex
	connected bool

	frontID   int
	sessionID int
	orderRef  int
	tradeRef  int

	contracts map[string]*domain.Contract // vt_symbol -> contract
	subscribed map[string]bool
	activeOrders map[string]*domain.Order // orderID -> order
	positions  map[string]*domain.Position // vt_symbol.direction -> position
	lastTicks  map[string]*domain.Tick

	// 模拟柜台流控，超限的报撤单直接拒绝
	limits *ratelimit.RateLimitManager

	balance float64
}

// NewPaperGateway 创建模拟通道。contracts 为通道启动即发现的合约表。
func NewPaperGateway(name string, bus *eventbus.Bus, contracts []*domain.Contract) *PaperGateway {
	g := &PaperGateway{
		Base:         NewBase(name, bus),
		frontID:      1,
		sessionID:    int(time.Now().Unix() % 100000),
		contracts:    make(map[string]*domain.Contract),
		subscribed:   make(map[string]bool),
		activeOrders: make(map[string]*domain.Order),
		positions:    make(map[string]*domain.Position),
		lastTicks:    make(map[string]*domain.Tick),
		limits:       ratelimit.NewRateLimitManager(),
		balance:      1_000_000,
	}
	for _, c := range contracts {
		g.contracts[c.VtSymbol()] = c
	}
	return g
}

// Connect 上报全量合约与初始资金
func (g *PaperGateway) Connect(setting map[string]string) error {
	g.mu.Lock()
	g.connected = true
	contracts := make([]*domain.Contract, 0, len(g.contracts))
	for _, c := range g.contracts {
		contracts = append(contracts, c.Clone())
	}
	g.mu.Unlock()

	for _, c := range contracts {
		g.OnContract(c)
	}
	g.OnAccount(&domain.Account{AccountID: "paper", Balance: g.balance})
	g.WriteLog("模拟通道已连接 🧻")
	return nil
}

// Close 断开
func (g *PaperGateway) Close() error {
	g.mu.Lock()
	g.connected = false
	g.mu.Unlock()
	g.WriteLog("模拟通道已断开")
	return nil
}

// Subscribe 订阅仅做登记，行情由测试或回放器注入
func (g *PaperGateway) Subscribe(req *domain.SubscribeRequest) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.contracts[req.VtSymbol()]; !ok {
		return errors.Errorf("未知合约 %s", req.VtSymbol())
	}
	g.subscribed[req.VtSymbol()] = true
	return nil
}

func (g *PaperGateway) nextOrderID() string {
	g.orderRef++
	return fmt.Sprintf("%d_%d_%d", g.frontID, g.sessionID, g.orderRef)
}

// SendOrder 立即确认；市价/FAK 立刻按最新价成交，限价单等行情撮合
func (g *PaperGateway) SendOrder(req *domain.OrderRequest) (string, error) {
	if !g.limits.Allow("trade:order:insert") {
		return "", errors.New("报单触发流控，请降低频率")
	}
	g.mu.Lock()
	if !g.connected {
		g.mu.Unlock()
		return "", errors.New("通道未连接")
	}
	contract, ok := g.contracts[req.VtSymbol()]
	if !ok {
		g.mu.Unlock()
		return "", errors.Errorf("未知合约 %s", req.VtSymbol())
	}
	if req.Volume < contract.MinVolume {
		g.mu.Unlock()
		return "", errors.Errorf("委托量 %.0f 低于最小下单量 %.0f", req.Volume, contract.MinVolume)
	}

	orderID := g.nextOrderID()
	order := req.CreateOrder(orderID, g.Name())
	order.Datetime = time.Now()
	order.Status = domain.StatusNotTraded
	g.activeOrders[orderID] = order
	last := g.lastTicks[req.VtSymbol()]
	g.mu.Unlock()

	g.OnOrder(order.Clone())

	switch req.Type {
	case domain.OrderTypeMarket, domain.OrderTypeFAK, domain.OrderTypeFOK:
		price := req.Price
		if last != nil && last.LastPrice > 0 {
			price = last.LastPrice
		}
		g.fill(orderID, price)
	default:
		if last != nil {
			g.matchTick(last)
		}
	}
	return order.VtOrderID(), nil
}

// CancelOrder 活动委托转撤销
func (g *PaperGateway) CancelOrder(req *domain.CancelRequest) bool {
	if !g.limits.Allow("trade:order:action") {
		g.WriteLog("撤单触发流控，已丢弃")
		return false
	}
	g.mu.Lock()
	order, ok := g.activeOrders[req.OrderID]
	if ok {
		delete(g.activeOrders, req.OrderID)
	}
	g.mu.Unlock()
	if !ok {
		return false
	}

	cancelled := order.Clone()
	cancelled.Status = domain.StatusCancelled
	g.OnOrder(cancelled)
	return true
}

// ProcessTick 行情注入：记录最新价并撮合限价单
func (g *PaperGateway) ProcessTick(tick *domain.Tick) {
	g.mu.Lock()
	g.lastTicks[tick.VtSymbol()] = tick.Clone()
	subscribed := g.subscribed[tick.VtSymbol()]
	g.mu.Unlock()

	if subscribed {
		g.OnTick(tick.Clone())
	}
	g.matchTick(tick)
}

// matchTick 简单穿价撮合：买单在最新价 ≤ 委托价时成交，卖单反之
func (g *PaperGateway) matchTick(tick *domain.Tick) {
	g.mu.Lock()
	var fills []string
	for id, order := range g.activeOrders {
		if order.VtSymbol() != tick.VtSymbol() || order.Type != domain.OrderTypeLimit {
			continue
		}
		if order.Direction == domain.DirectionLong && tick.LastPrice <= order.Price {
			fills = append(fills, id)
		}
		if order.Direction == domain.DirectionShort && tick.LastPrice >= order.Price {
			fills = append(fills, id)
		}
	}
	g.mu.Unlock()

	for _, id := range fills {
		g.fill(id, tick.LastPrice)
	}
}

// fill 全量成交一笔活动委托
func (g *PaperGateway) fill(orderID string, price float64) {
	g.mu.Lock()
	order, ok := g.activeOrders[orderID]
	if !ok {
		g.mu.Unlock()
		return
	}
	delete(g.activeOrders, orderID)
	g.tradeRef++
	tradeID := fmt.Sprintf("T%d", g.tradeRef)

	done := order.Clone()
	done.Traded = order.Volume
	done.Status = domain.StatusAllTraded

	trade := &domain.Trade{
		Symbol:    order.Symbol,
		Exchange:  order.Exchange,
		OrderID:   order.OrderID,
		TradeID:   tradeID,
		Direction: order.Direction,
		Offset:    order.Offset,
		Price:     price,
		Volume:    order.Volume,
		Datetime:  time.Now(),
	}
	g.applyTrade(trade)
	positions := g.snapshotPositionsLocked(order.VtSymbol())
	g.mu.Unlock()

	g.OnOrder(done)
	g.OnTrade(trade)
	for _, p := range positions {
		g.OnPosition(p)
	}
}

// applyTrade 维护模拟持仓（direction=long + close 平的是空头）
func (g *PaperGateway) applyTrade(trade *domain.Trade) {
	dir := trade.Direction
	if trade.Offset != domain.OffsetOpen {
		dir = trade.Direction.Opposite()
	}
	key := trade.VtSymbol() + "." + string(dir)
	pos, ok := g.positions[key]
	if !ok {
		pos = &domain.Position{Symbol: trade.Symbol, Exchange: trade.Exchange, Direction: dir}
		g.positions[key] = pos
	}
	if trade.Offset == domain.OffsetOpen {
		pos.Volume += trade.Volume
	} else {
		pos.Volume -= trade.Volume
		if pos.Volume < 0 {
			pos.Volume = 0
		}
		if pos.YdVolume > pos.Volume {
			pos.YdVolume = pos.Volume
		}
	}
	pos.Price = trade.Price
}

func (g *PaperGateway) snapshotPositionsLocked(vtSymbol string) []*domain.Position {
	var out []*domain.Position
	for _, p := range g.positions {
		if p.VtSymbol() == vtSymbol {
			out = append(out, p.Clone())
		}
	}
	return out
}

// QueryAccount 重推资金
func (g *PaperGateway) QueryAccount() error {
	g.OnAccount(&domain.Account{AccountID: "paper", Balance: g.balance})
	return nil
}

// QueryPosition 重推全部持仓
func (g *PaperGateway) QueryPosition() error {
	g.mu.Lock()
	var out []*domain.Position
	for _, p := range g.positions {
		out = append(out, p.Clone())
	}
	g.mu.Unlock()
	for _, p := range out {
		g.OnPosition(p)
	}
	return nil
}

// QueryHistory 模拟通道无历史数据
func (g *PaperGateway) QueryHistory(req *domain.HistoryRequest) ([]*domain.Bar, error) {
	return nil, nil
}
