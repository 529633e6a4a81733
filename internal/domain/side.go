package domain

import (
	"fmt"
	"strings"
)

// Side 订单方向
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// SideFromAction 解析 webhook 动作字符串（大小写不敏感）
func SideFromAction(action string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(action)) {
	case "buy":
		return SideBuy, nil
	case "sell":
		return SideSell, nil
	default:
		return "", NewValidationError(fmt.Sprintf("action must be 'buy' or 'sell', got %q", action))
	}
}

// IsBuy 是否为买入方向
func (s Side) IsBuy() bool {
	return s == SideBuy
}

// Opposite 返回相反方向，满足对合性 Opposite(Opposite(x)) == x
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Action 返回小写动作字符串
func (s Side) Action() string {
	return strings.ToLower(string(s))
}
