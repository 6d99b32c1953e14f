package domain

// OrderRequest 委托请求（抽象开平，经 OffsetConverter 翻译为具体交易所委托）
type OrderRequest struct {
	Symbol    string
	Exchange  Exchange
	Direction Direction
	Offset    Offset
	Type      OrderType
	Price     float64
	Volume    float64
	HolderID  string
	Reference string // 来源标注（策略名/算法号）
}

// VtSymbol 合约唯一标识
func (r *OrderRequest) VtSymbol() string {
	return VtSymbolOf(r.Symbol, r.Exchange)
}

// CreateOrder 由请求生成委托对象（网关回填 OrderID 后使用）
func (r *OrderRequest) CreateOrder(orderID, gatewayName string) *Order {
	return &Order{
		Symbol:      r.Symbol,
		Exchange:    r.Exchange,
		OrderID:     orderID,
		GatewayName: gatewayName,
		HolderID:    r.HolderID,
		Direction:   r.Direction,
		Offset:      r.Offset,
		Type:        r.Type,
		Price:       r.Price,
		Volume:      r.Volume,
		Status:      StatusSubmitting,
	}
}

// Clone 返回副本
func (r *OrderRequest) Clone() *OrderRequest {
	c := *r
	return &c
}

// CancelRequest 撤单请求
type CancelRequest struct {
	OrderID  string
	Symbol   string
	Exchange Exchange
}

// VtSymbol 合约唯一标识
func (r *CancelRequest) VtSymbol() string {
	return VtSymbolOf(r.Symbol, r.Exchange)
}

// SubscribeRequest 行情订阅请求
type SubscribeRequest struct {
	Symbol   string
	Exchange Exchange
	IsBar    bool // 订阅K线推送（文件/离线源）
}

// VtSymbol 合约唯一标识
func (r *SubscribeRequest) VtSymbol() string {
	return VtSymbolOf(r.Symbol, r.Exchange)
}

// HistoryRequest 历史K线查询请求
type HistoryRequest struct {
	Symbol   string
	Exchange Exchange
	Interval Interval
	Start    int64 // unix 秒
	End      int64
}
