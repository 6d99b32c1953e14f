package offset

import (
	"github.com/sirupsen/logrus"

	"github.com/betbot/gofut/internal/domain"
)

var convLog = logrus.WithField("component", "offset_converter")

// ContractProvider 合约查询能力（由 OrderBook 提供）
type ContractProvider interface {
	GetContract(vtSymbol string) *domain.Contract
}

// Converter 开平转换器
// 仅在事件总线分发协程上被调用，无需加锁。
type Converter struct {
	contracts ContractProvider
	holdings  map[string]*PositionHolding // vt_symbol[.holder] -> holding
}

// NewConverter 创建转换器
func NewConverter(contracts ContractProvider) *Converter {
	return &Converter{
		contracts: contracts,
		holdings:  make(map[string]*PositionHolding),
	}
}

func holdingKey(vtSymbol, holderID string) string {
	if holderID == "" {
		return vtSymbol
	}
	return vtSymbol + "." + holderID
}

// GetHolding 查询持仓账本（不存在返回 nil）
func (c *Converter) GetHolding(vtSymbol, holderID string) *PositionHolding {
	return c.holdings[holdingKey(vtSymbol, holderID)]
}

func (c *Converter) getOrCreateHolding(vtSymbol string, exchange domain.Exchange, holderID string) *PositionHolding {
	key := holdingKey(vtSymbol, holderID)
	h, ok := c.holdings[key]
	if !ok {
		h = NewPositionHolding(vtSymbol, exchange, holderID)
		c.holdings[key] = h
	}
	return h
}

// isConvertRequired 净持仓合约（股票/指数）不做开平转换
func (c *Converter) isConvertRequired(vtSymbol string) bool {
	contract := c.contracts.GetContract(vtSymbol)
	if contract == nil {
		return false
	}
	switch contract.Product {
	case domain.ProductEquity, domain.ProductIndex, domain.ProductETF, domain.ProductBond:
		return false
	}
	return true
}

// UpdatePosition 持仓推送入账
func (c *Converter) UpdatePosition(pos *domain.Position) {
	if !c.isConvertRequired(pos.VtSymbol()) {
		return
	}
	h := c.getOrCreateHolding(pos.VtSymbol(), pos.Exchange, pos.HolderID)
	h.UpdatePosition(pos)
}

// UpdateOrder 委托推送入账（撤单/拒单恢复冻结）
func (c *Converter) UpdateOrder(order *domain.Order) {
	if !c.isConvertRequired(order.VtSymbol()) {
		return
	}
	h := c.getOrCreateHolding(order.VtSymbol(), order.Exchange, order.HolderID)
	h.UpdateOrder(order)
}

// UpdateTrade 成交推送入账
func (c *Converter) UpdateTrade(trade *domain.Trade) {
	if !c.isConvertRequired(trade.VtSymbol()) {
		return
	}
	h := c.getOrCreateHolding(trade.VtSymbol(), trade.Exchange, trade.HolderID)
	h.UpdateTrade(trade)
}

// UpdateOrderRequest 发单成功后登记委托，冻结对应持仓
func (c *Converter) UpdateOrderRequest(req *domain.OrderRequest, orderID, gatewayName string) {
	if !c.isConvertRequired(req.VtSymbol()) {
		return
	}
	order := req.CreateOrder(orderID, gatewayName)
	h := c.getOrCreateHolding(req.VtSymbol(), req.Exchange, req.HolderID)
	h.UpdateOrder(order)
}

// Convert 将抽象委托请求转换为具体交易所委托（0..N 条）
func (c *Converter) Convert(req *domain.OrderRequest, lock bool) []*domain.OrderRequest {
	if !c.isConvertRequired(req.VtSymbol()) {
		return []*domain.OrderRequest{req}
	}

	switch {
	case req.Offset == domain.OffsetOpen:
		return []*domain.OrderRequest{req}
	case lock:
		return c.convertLock(req)
	case req.Exchange.RequiresSplitClose():
		return c.convertSplitClose(req)
	default:
		return c.convertPlainClose(req)
	}
}

// convertSplitClose 平今/平昨交易所：先平昨、余量平今
func (c *Converter) convertSplitClose(req *domain.OrderRequest) []*domain.OrderRequest {
	h := c.getOrCreateHolding(req.VtSymbol(), req.Exchange, req.HolderID)

	var ydAvailable, tdAvailable float64
	if req.Direction == domain.DirectionLong {
		// 买入平仓平的是空头
		ydAvailable = h.ShortYd - h.ShortYdFrozen
		tdAvailable = h.ShortTd - h.ShortTdFrozen
	} else {
		ydAvailable = h.LongYd - h.LongYdFrozen
		tdAvailable = h.LongTd - h.LongTdFrozen
	}

	var reqs []*domain.OrderRequest
	remaining := req.Volume

	closeYd := min(remaining, ydAvailable)
	if closeYd > 0 {
		r := req.Clone()
		r.Offset = domain.OffsetCloseYesterday
		r.Volume = closeYd
		reqs = append(reqs, r)
		remaining -= closeYd
	}

	closeTd := min(remaining, tdAvailable)
	if closeTd > 0 {
		r := req.Clone()
		r.Offset = domain.OffsetCloseToday
		r.Volume = closeTd
		reqs = append(reqs, r)
		remaining -= closeTd
	}

	if remaining > 0 {
		convLog.Warnf("可平仓位不足: %s 请求=%.0f 缺口=%.0f", req.VtSymbol(), req.Volume, remaining)
	}
	return reqs
}

// convertPlainClose 不区分今昨的交易所：单条 close
func (c *Converter) convertPlainClose(req *domain.OrderRequest) []*domain.OrderRequest {
	h := c.getOrCreateHolding(req.VtSymbol(), req.Exchange, req.HolderID)

	var available float64
	if req.Direction == domain.DirectionLong {
		available = h.ShortAvailable()
	} else {
		available = h.LongAvailable()
	}

	volume := min(req.Volume, available)
	if volume <= 0 {
		convLog.Warnf("无可平仓位: %s 请求=%.0f", req.VtSymbol(), req.Volume)
		return nil
	}

	r := req.Clone()
	r.Offset = domain.OffsetClose
	r.Volume = volume
	return []*domain.OrderRequest{r}
}

// convertLock 锁仓模式：昨仓够平则平昨，不足部分反向开仓规避平今手续费
func (c *Converter) convertLock(req *domain.OrderRequest) []*domain.OrderRequest {
	h := c.getOrCreateHolding(req.VtSymbol(), req.Exchange, req.HolderID)

	var ydAvailable float64
	if req.Direction == domain.DirectionLong {
		ydAvailable = h.ShortYd - h.ShortYdFrozen
	} else {
		ydAvailable = h.LongYd - h.LongYdFrozen
	}

	closeVolume := min(req.Volume, ydAvailable)
	openVolume := req.Volume - closeVolume

	var reqs []*domain.OrderRequest
	if closeVolume > 0 {
		r := req.Clone()
		r.Volume = closeVolume
		if req.Exchange.RequiresSplitClose() {
			r.Offset = domain.OffsetCloseYesterday
		} else {
			r.Offset = domain.OffsetClose
		}
		reqs = append(reqs, r)
	}
	if openVolume > 0 {
		r := req.Clone()
		r.Offset = domain.OffsetOpen
		r.Volume = openVolume
		reqs = append(reqs, r)
	}
	return reqs
}
