package gateway

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/tradebot/gohyper/internal/domain"
)

// 止损百分比允许区间与价格精度
var (
	minSlPercent = decimal.RequireFromString("0.1")
	maxSlPercent = decimal.RequireFromString("50.0")
	hundred      = decimal.NewFromInt(100)
)

const slPriceScale = 8

// CalculateStopLossPrice 由成交价和止损百分比计算触发价
// primarySide 为建立仓位的主订单方向：
//   BUY（多头）：P × (1 - s/100)，触发价在入场价下方
//   SELL（空头）：P × (1 + s/100)，触发价在入场价上方
// 结果四舍五入到 8 位小数
func CalculateStopLossPrice(fillPrice decimal.Decimal, primarySide domain.Side, slPercent decimal.Decimal) (decimal.Decimal, error) {
	if slPercent.LessThan(minSlPercent) || slPercent.GreaterThan(maxSlPercent) {
		return decimal.Zero, domain.NewValidationError(fmt.Sprintf(
			"stop-loss percentage must be between %s%% and %s%%", minSlPercent, maxSlPercent))
	}

	delta := fillPrice.Mul(slPercent).Div(hundred)

	var px decimal.Decimal
	if primarySide.IsBuy() {
		px = fillPrice.Sub(delta)
	} else {
		px = fillPrice.Add(delta)
	}
	return px.Round(slPriceScale), nil
}
