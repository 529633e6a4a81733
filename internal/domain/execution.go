package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus 主订单状态
type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "PENDING"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
	OrderStatusFailed          OrderStatus = "FAILED"
)

// StopLossStatus 止损单生命周期状态
type StopLossStatus string

const (
	StopLossNone      StopLossStatus = "NONE"
	StopLossPending   StopLossStatus = "PENDING"
	StopLossActive    StopLossStatus = "ACTIVE"
	StopLossTriggered StopLossStatus = "TRIGGERED"
	StopLossCancelled StopLossStatus = "CANCELLED"
	StopLossFailed    StopLossStatus = "FAILED"
)

// StopLossGrouping 止损挂接方式
// POSITION_BASED 挂在整个仓位上（加仓/部分成交后仍有效）
// ORDER_BASED 与单个订单一对一（经典 OCO）
type StopLossGrouping string

const (
	GroupingPositionBased StopLossGrouping = "POSITION_BASED"
	GroupingOrderBased    StopLossGrouping = "ORDER_BASED"
)

// OrderExecution 订单执行台账
// 每个被交易所接受的主订单写入一行，追踪其止损生命周期；
// closed_at 为空表示仓位仍然打开，行永不删除
type OrderExecution struct {
	ID             int64
	PrimaryOrderID string
	Side           Side
	FillPrice      decimal.Decimal
	Size           decimal.Decimal
	Status         OrderStatus

	StrategyID string
	UserID     int64

	StopLossOrderID *string
	StopLossPrice   *decimal.Decimal
	StopLossStatus  StopLossStatus
	Grouping        *StopLossGrouping

	ExecutedAt          time.Time
	StopLossPlacedAt    *time.Time
	StopLossCancelledAt *time.Time
	ClosedAt            *time.Time
}

// IsOpen 仓位是否仍然打开
func (e *OrderExecution) IsOpen() bool {
	return e.ClosedAt == nil
}

// HasActiveStopLoss 是否存在挂在交易所上的止损单
func (e *OrderExecution) HasActiveStopLoss() bool {
	return e.StopLossStatus == StopLossActive && e.StopLossOrderID != nil
}
