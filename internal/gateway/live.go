package gateway

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	hlclient "github.com/tradebot/gohyper/hl/client"
	"github.com/tradebot/gohyper/hl/signing"
	"github.com/tradebot/gohyper/hl/types"
	"github.com/tradebot/gohyper/internal/domain"
)

var liveLog = logrus.WithField("component", "live_gateway")

// Transport 交易所传输层（*hlclient.Client 实现）
type Transport interface {
	SubmitAction(ctx context.Context, payload types.ExchangeRequest) (*types.ExchangeResponse, error)
	Price(ctx context.Context, coin string) (decimal.Decimal, error)
}

// PriceCache 可选的中间价缓存（来自 ws 价格流）
type PriceCache interface {
	Get(coin string) (decimal.Decimal, bool)
}

// LiveGateway 实盘订单网关
// 每次下单/撤单流程：取参考价 → 组装线上格式 → 取 nonce → EIP-712 签名 → 提交
type LiveGateway struct {
	mainnet Transport
	testnet Transport
	nonces  *hlclient.NonceAllocator
	prices  PriceCache // 可为 nil，取不到缓存时回退 REST 查询
}

// NewLiveGateway 创建实盘网关
func NewLiveGateway(mainnet, testnet Transport, nonces *hlclient.NonceAllocator, prices PriceCache) *LiveGateway {
	return &LiveGateway{mainnet: mainnet, testnet: testnet, nonces: nonces, prices: prices}
}

func (g *LiveGateway) transportFor(user domain.User) Transport {
	if user.IsTestnet {
		return g.testnet
	}
	return g.mainnet
}

// referencePrice 解析参考价：ws 缓存优先，回退 REST
func (g *LiveGateway) referencePrice(ctx context.Context, coin string, user domain.User) (decimal.Decimal, error) {
	if g.prices != nil {
		if px, ok := g.prices.Get(coin); ok {
			return px, nil
		}
	}
	px, err := g.transportFor(user).Price(ctx, coin)
	if err != nil {
		return decimal.Zero, domain.NewExchangeError("failed to resolve reference price", err)
	}
	return px, nil
}

// PlaceOrder 下主订单
func (g *LiveGateway) PlaceOrder(ctx context.Context, side domain.Side, cfg domain.Config, user domain.User) (*OrderResult, error) {
	if err := validateOrderRequest(side, cfg, user); err != nil {
		return nil, err
	}

	px, err := g.referencePrice(ctx, cfg.Asset, user)
	if err != nil {
		return nil, err
	}

	tif := cfg.TimeInForce
	if cfg.OrderType == "MARKET" {
		// 市价单以 IOC 限价单形式提交，参考价即为保护价
		tif = "Ioc"
	}

	var order types.Order
	if side.IsBuy() {
		order = types.LimitBuy(cfg.AssetID, px.String(), cfg.LotSize.String(), tif)
	} else {
		order = types.LimitSell(cfg.AssetID, px.String(), cfg.LotSize.String(), tif)
	}

	resp, err := g.signAndSubmit(ctx, user, types.PlaceOrderAction(order, types.GroupingNone))
	if err != nil {
		return nil, err
	}

	orderID, fillPx := parseOrderResult(resp, px)
	liveLog.WithFields(logrus.Fields{
		"order_id": orderID,
		"action":   side.Action(),
		"asset":    cfg.Asset,
		"size":     cfg.LotSize.String(),
		"price":    fillPx.String(),
	}).Info("主订单已提交")
	return &OrderResult{OrderID: orderID, FillPrice: fillPx}, nil
}

// PlaceCloseOrder 下只减仓平仓单
func (g *LiveGateway) PlaceCloseOrder(ctx context.Context, side domain.Side, cfg domain.Config, user domain.User, size decimal.Decimal) (string, error) {
	if err := validateOrderRequest(side, cfg, user); err != nil {
		return "", err
	}
	if !size.IsPositive() {
		return "", domain.NewValidationError("valid order size is required")
	}

	px, err := g.referencePrice(ctx, cfg.Asset, user)
	if err != nil {
		return "", err
	}

	var order types.Order
	if side.IsBuy() {
		order = types.LimitBuy(cfg.AssetID, px.String(), size.String(), "Ioc")
	} else {
		order = types.LimitSell(cfg.AssetID, px.String(), size.String(), "Ioc")
	}
	order.R = true

	resp, err := g.signAndSubmit(ctx, user, types.PlaceOrderAction(order, types.GroupingNone))
	if err != nil {
		return "", err
	}
	orderID, _ := parseOrderResult(resp, px)
	liveLog.WithFields(logrus.Fields{
		"order_id": orderID,
		"action":   side.Action(),
		"size":     size.String(),
	}).Info("平仓单已提交")
	return orderID, nil
}

// PlaceStopLossOrder 下止损触发单
// 止损单方向恒为主订单的反方向，且永远只减仓
func (g *LiveGateway) PlaceStopLossOrder(ctx context.Context, primarySide domain.Side, assetID int, triggerPx, size decimal.Decimal,
	grouping domain.StopLossGrouping, cfg domain.Config, user domain.User) (string, error) {
	if err := validateStopLossRequest(primarySide, triggerPx, size, user); err != nil {
		return "", err
	}

	slSide := primarySide.Opposite()
	var order types.Order
	if slSide.IsBuy() {
		order = types.LimitBuy(assetID, triggerPx.String(), size.String(), cfg.TimeInForce)
	} else {
		order = types.LimitSell(assetID, triggerPx.String(), size.String(), cfg.TimeInForce)
	}
	order.T = types.TriggerOrder(triggerPx.String(), types.TpslStopLoss, true)
	order.R = true

	resp, err := g.signAndSubmit(ctx, user, types.PlaceOrderAction(order, wireGrouping(grouping)))
	if err != nil {
		return "", err
	}
	orderID, _ := parseOrderResult(resp, triggerPx)
	liveLog.WithFields(logrus.Fields{
		"sl_order_id": orderID,
		"sl_side":     slSide.Action(),
		"trigger_px":  triggerPx.String(),
		"grouping":    string(grouping),
	}).Info("止损单已挂出")
	return orderID, nil
}

// CancelOrder 撤单
func (g *LiveGateway) CancelOrder(ctx context.Context, orderID string, assetID int, user domain.User) error {
	if user.WalletAddress == "" {
		return domain.NewValidationError("user with wallet address is required")
	}
	oid, err := strconv.ParseUint(orderID, 10, 64)
	if err != nil {
		return domain.NewValidationError("order id must be a numeric oid: " + orderID)
	}

	if _, err := g.signAndSubmit(ctx, user, types.CancelOrderAction(assetID, oid)); err != nil {
		return err
	}
	liveLog.WithFields(logrus.Fields{"order_id": orderID, "asset_id": assetID}).Info("订单已撤销")
	return nil
}

// signAndSubmit 完成取号、签名、提交
func (g *LiveGateway) signAndSubmit(ctx context.Context, user domain.User, action types.OrderAction) (*types.ExchangeResponse, error) {
	signer, err := signing.NewSigner(user.SigningKey())
	if err != nil {
		return nil, domain.NewSigningError("invalid signing key", err)
	}

	actionJSON, err := json.Marshal(action)
	if err != nil {
		return nil, domain.NewSigningError("failed to encode action", err)
	}

	nonce := g.nonces.Next(user.WalletAddress)
	chain := types.ChainFor(user.IsTestnet)
	sig, err := signer.SignAction(actionJSON, chain, types.VerifyingContractFor(user.IsTestnet))
	if err != nil {
		return nil, domain.NewSigningError("failed to sign action", err)
	}

	resp, err := g.transportFor(user).SubmitAction(ctx, types.ExchangeRequest{
		Action:    action,
		Nonce:     nonce,
		Signature: sig,
	})
	if err != nil {
		return nil, domain.NewExchangeError("exchange call failed", err)
	}
	return resp, nil
}

// parseOrderResult 从回执提取订单号与成交价，缺省回退参考价
func parseOrderResult(resp *types.ExchangeResponse, fallbackPx decimal.Decimal) (string, decimal.Decimal) {
	if resp == nil || resp.Response == nil || resp.Response.Data == nil || len(resp.Response.Data.Statuses) == 0 {
		return "", fallbackPx
	}
	st := resp.Response.Data.Statuses[0]
	if st.Filled != nil {
		px := fallbackPx
		if parsed, err := decimal.NewFromString(st.Filled.AvgPx); err == nil {
			px = parsed
		}
		return strconv.FormatUint(st.Filled.Oid, 10), px
	}
	if st.Resting != nil {
		return strconv.FormatUint(st.Resting.Oid, 10), fallbackPx
	}
	return "", fallbackPx
}

// wireGrouping 领域分组映射到交易所分组字符串
func wireGrouping(g domain.StopLossGrouping) types.Grouping {
	if g == domain.GroupingOrderBased {
		return types.GroupingNormalTpsl
	}
	return types.GroupingPositionTpsl
}
