package gateway

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/tradebot/gohyper/internal/domain"
)

// OrderResult 下单结果
type OrderResult struct {
	OrderID   string
	FillPrice decimal.Decimal
}

// OrderGateway 交易所订单网关
// 两个实现：SimulatedGateway（无网络调用，伪造订单号与参考价）和
// LiveGateway（取价 → 组单 → 取 nonce → 签名 → 提交），
// 进程启动时按配置选择其一，由构造注入
type OrderGateway interface {
	// PlaceOrder 按策略配置下主订单
	PlaceOrder(ctx context.Context, side domain.Side, cfg domain.Config, user domain.User) (*OrderResult, error)

	// PlaceCloseOrder 下只减仓平仓单，size 为全部待平仓数量
	PlaceCloseOrder(ctx context.Context, side domain.Side, cfg domain.Config, user domain.User, size decimal.Decimal) (string, error)

	// PlaceStopLossOrder 下止损触发单
	// primarySide 是建仓主订单的方向，止损单方向恒为其反方向且只减仓
	PlaceStopLossOrder(ctx context.Context, primarySide domain.Side, assetID int, triggerPx, size decimal.Decimal,
		grouping domain.StopLossGrouping, cfg domain.Config, user domain.User) (string, error)

	// CancelOrder 撤单，止损撤销与普通撤单共用
	CancelOrder(ctx context.Context, orderID string, assetID int, user domain.User) error
}

// validateOrderRequest 主订单入参校验
func validateOrderRequest(side domain.Side, cfg domain.Config, user domain.User) error {
	if side != domain.SideBuy && side != domain.SideSell {
		return domain.NewValidationError("action must be 'buy' or 'sell'")
	}
	if cfg.Asset == "" {
		return domain.NewValidationError("config is required")
	}
	if user.WalletAddress == "" {
		return domain.NewValidationError("user with wallet address is required")
	}
	if !cfg.LotSize.IsPositive() {
		return domain.NewValidationError("lot size must be positive")
	}
	return nil
}

// validateStopLossRequest 止损单入参校验
func validateStopLossRequest(primarySide domain.Side, triggerPx, size decimal.Decimal, user domain.User) error {
	if primarySide != domain.SideBuy && primarySide != domain.SideSell {
		return domain.NewValidationError("order side is required for stop-loss placement")
	}
	if !triggerPx.IsPositive() {
		return domain.NewValidationError("valid stop-loss price is required")
	}
	if !size.IsPositive() {
		return domain.NewValidationError("valid order size is required")
	}
	if user.WalletAddress == "" {
		return domain.NewValidationError("user with wallet address is required")
	}
	return nil
}
