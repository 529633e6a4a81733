package types

// Order Hyperliquid 订单线上格式
// 字段名为交易所要求的单字母键，顺序参与签名哈希，不可调整
type Order struct {
	A int        `json:"a"`           // 资产 ID
	B bool       `json:"b"`           // 买入标志（true=买，false=卖）
	P string     `json:"p"`           // 价格（字符串保精度）
	S string     `json:"s"`           // 数量（字符串保精度）
	R bool       `json:"r"`           // 只减仓标志
	T OrderType  `json:"t"`           // 订单类型（limit / trigger）
	C *string    `json:"c,omitempty"` // 客户端订单 ID（可选）
}

// OrderType 订单类型，limit 与 trigger 互斥
type OrderType struct {
	Limit   *LimitOrderType   `json:"limit,omitempty"`
	Trigger *TriggerOrderType `json:"trigger,omitempty"`
}

// LimitOrderType 限价单参数
type LimitOrderType struct {
	Tif string `json:"tif"` // Gtc / Ioc / Alo
}

// TriggerOrderType 触发单参数（止损/止盈）
type TriggerOrderType struct {
	IsMarket  bool   `json:"isMarket"`
	TriggerPx string `json:"triggerPx"`
	Tpsl      string `json:"tpsl"` // "sl" 或 "tp"
}

// LimitOrder 构建限价单类型
func LimitOrder(tif string) OrderType {
	return OrderType{Limit: &LimitOrderType{Tif: tif}}
}

// TriggerOrder 构建触发单类型
func TriggerOrder(triggerPx, tpsl string, isMarket bool) OrderType {
	return OrderType{Trigger: &TriggerOrderType{
		IsMarket:  isMarket,
		TriggerPx: triggerPx,
		Tpsl:      tpsl,
	}}
}

// LimitBuy 构建限价买单
func LimitBuy(assetID int, price, size, tif string) Order {
	return Order{A: assetID, B: true, P: price, S: size, T: LimitOrder(tif)}
}

// LimitSell 构建限价卖单
func LimitSell(assetID int, price, size, tif string) Order {
	return Order{A: assetID, B: false, P: price, S: size, T: LimitOrder(tif)}
}

// CancelRequest 撤单请求
type CancelRequest struct {
	A int    `json:"a"` // 资产 ID
	O uint64 `json:"o"` // 订单 ID（oid）
}

// OrderAction 交易动作，参与签名
type OrderAction struct {
	Type     string          `json:"type"`               // "order" / "cancel"
	Orders   []Order         `json:"orders,omitempty"`   // 下单时
	Grouping Grouping        `json:"grouping,omitempty"` // 下单分组
	Cancels  []CancelRequest `json:"cancels,omitempty"`  // 撤单时
}

// PlaceOrderAction 构建下单动作
func PlaceOrderAction(order Order, grouping Grouping) OrderAction {
	return OrderAction{
		Type:     "order",
		Orders:   []Order{order},
		Grouping: grouping,
	}
}

// CancelOrderAction 构建撤单动作
func CancelOrderAction(assetID int, oid uint64) OrderAction {
	return OrderAction{
		Type:    "cancel",
		Cancels: []CancelRequest{{A: assetID, O: oid}},
	}
}

// Signature 签名三元组
type Signature struct {
	R string `json:"r"`
	S string `json:"s"`
	V int    `json:"v"`
}

// ExchangeRequest 发往 /exchange 的完整请求体
type ExchangeRequest struct {
	Action       OrderAction `json:"action"`
	Nonce        int64       `json:"nonce"`
	Signature    Signature   `json:"signature"`
	VaultAddress *string     `json:"vaultAddress"`
}

// ExchangeResponse /exchange 返回体
type ExchangeResponse struct {
	Status   string           `json:"status"` // "ok" / "err"
	Response *ResponsePayload `json:"response,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// ResponsePayload /exchange 返回体内层数据
type ResponsePayload struct {
	Type string        `json:"type"`
	Data *ResponseData `json:"data,omitempty"`
}

// ResponseData 订单回执集合
type ResponseData struct {
	Statuses []OrderStatusEntry `json:"statuses"`
}

// OrderStatusEntry 单个订单的回执，resting 或 filled 二选一
type OrderStatusEntry struct {
	Resting *RestingOrder `json:"resting,omitempty"`
	Filled  *FilledOrder  `json:"filled,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// RestingOrder 挂单回执
type RestingOrder struct {
	Oid uint64 `json:"oid"`
}

// FilledOrder 成交回执
type FilledOrder struct {
	Oid     uint64 `json:"oid"`
	TotalSz string `json:"totalSz"`
	AvgPx   string `json:"avgPx"`
}
