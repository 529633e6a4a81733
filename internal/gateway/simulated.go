package gateway

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	hlclient "github.com/tradebot/gohyper/hl/client"
	"github.com/tradebot/gohyper/internal/domain"
)

var simLog = logrus.WithField("component", "simulated_gateway")

const mockOrderIDPrefix = "MOCK-"

// 模拟模式参考价表
var mockPrices = map[string]decimal.Decimal{
	"BTC":   decimal.RequireFromString("98000.00"),
	"ETH":   decimal.RequireFromString("3900.00"),
	"SOL":   decimal.RequireFromString("230.00"),
	"AVAX":  decimal.RequireFromString("50.00"),
	"MATIC": decimal.RequireFromString("0.55"),
}

var mockDefaultPrice = decimal.RequireFromString("100.00")

// MockPrice 返回资产的模拟参考价
func MockPrice(asset string) decimal.Decimal {
	if px, ok := mockPrices[strings.ToUpper(asset)]; ok {
		return px
	}
	return mockDefaultPrice
}

// SimulatedGateway 模拟订单网关
// 不做任何网络调用：伪造订单号、按资产给出参考价，只在日志里演练完整流程
// nonce 仍正常消耗，保证模拟与实盘在取号路径上行为一致
type SimulatedGateway struct {
	nonces *hlclient.NonceAllocator
}

// NewSimulatedGateway 创建模拟网关
func NewSimulatedGateway(nonces *hlclient.NonceAllocator) *SimulatedGateway {
	return &SimulatedGateway{nonces: nonces}
}

func mockOrderID() string {
	return mockOrderIDPrefix + uuid.NewString()[:8]
}

// PlaceOrder 模拟下主订单
func (g *SimulatedGateway) PlaceOrder(ctx context.Context, side domain.Side, cfg domain.Config, user domain.User) (*OrderResult, error) {
	if err := validateOrderRequest(side, cfg, user); err != nil {
		return nil, err
	}

	px := MockPrice(cfg.Asset)
	nonce := g.nonces.Next(user.WalletAddress)
	orderID := mockOrderID()

	fields := logrus.Fields{
		"order_id": orderID,
		"action":   side.Action(),
		"asset":    cfg.Asset,
		"asset_id": cfg.AssetID,
		"size":     cfg.LotSize.String(),
		"price":    px.String(),
		"leverage": cfg.Leverage,
		"tif":      cfg.TimeInForce,
		"testnet":  user.IsTestnet,
		"nonce":    nonce,
	}
	if cfg.TpPercent != nil {
		if tpPx, err := calculateTakeProfitPrice(px, side, *cfg.TpPercent); err == nil {
			fields["tp_price"] = tpPx.String()
		}
	}
	simLog.WithFields(fields).Info("模拟模式：主订单已执行")

	return &OrderResult{OrderID: orderID, FillPrice: px}, nil
}

// PlaceCloseOrder 模拟平仓单
func (g *SimulatedGateway) PlaceCloseOrder(ctx context.Context, side domain.Side, cfg domain.Config, user domain.User, size decimal.Decimal) (string, error) {
	if err := validateOrderRequest(side, cfg, user); err != nil {
		return "", err
	}
	if !size.IsPositive() {
		return "", domain.NewValidationError("valid order size is required")
	}

	nonce := g.nonces.Next(user.WalletAddress)
	orderID := mockOrderID()
	simLog.WithFields(logrus.Fields{
		"order_id":    orderID,
		"action":      side.Action(),
		"asset":       cfg.Asset,
		"size":        size.String(),
		"reduce_only": true,
		"nonce":       nonce,
	}).Info("模拟模式：平仓单已执行")
	return orderID, nil
}

// PlaceStopLossOrder 模拟止损单
func (g *SimulatedGateway) PlaceStopLossOrder(ctx context.Context, primarySide domain.Side, assetID int, triggerPx, size decimal.Decimal,
	grouping domain.StopLossGrouping, cfg domain.Config, user domain.User) (string, error) {
	if err := validateStopLossRequest(primarySide, triggerPx, size, user); err != nil {
		return "", err
	}

	nonce := g.nonces.Next(user.WalletAddress)
	orderID := mockOrderID()
	simLog.WithFields(logrus.Fields{
		"sl_order_id":  orderID,
		"primary_side": primarySide.Action(),
		"sl_side":      primarySide.Opposite().Action(),
		"asset_id":     assetID,
		"trigger_px":   triggerPx.String(),
		"size":         size.String(),
		"grouping":     string(grouping),
		"reduce_only":  true,
		"nonce":        nonce,
	}).Info("模拟模式：止损单已挂出")
	return orderID, nil
}

// CancelOrder 模拟撤单
func (g *SimulatedGateway) CancelOrder(ctx context.Context, orderID string, assetID int, user domain.User) error {
	if user.WalletAddress == "" {
		return domain.NewValidationError("user with wallet address is required")
	}

	nonce := g.nonces.Next(user.WalletAddress)
	simLog.WithFields(logrus.Fields{
		"order_id": orderID,
		"asset_id": assetID,
		"nonce":    nonce,
	}).Info("模拟模式：订单已撤销")
	return nil
}

// calculateTakeProfitPrice 止盈价（仅模拟展示，核心不下止盈单）
func calculateTakeProfitPrice(fillPrice decimal.Decimal, side domain.Side, tpPercent decimal.Decimal) (decimal.Decimal, error) {
	if !tpPercent.IsPositive() {
		return decimal.Zero, domain.NewValidationError("take-profit percentage must be positive")
	}
	delta := fillPrice.Mul(tpPercent).Div(hundred)
	if side.IsBuy() {
		return fillPrice.Add(delta).Round(slPriceScale), nil
	}
	return fillPrice.Sub(delta).Round(slPriceScale), nil
}
