package signal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/tradebot/gohyper/internal/domain"
	"github.com/tradebot/gohyper/internal/gateway"
)

var procLog = logrus.WithField("component", "signal")

// Signal 外部信号入参（TradingView webhook 原样字段）
type Signal struct {
	Action     string `json:"action"`
	StrategyID string `json:"strategyId"`
	Secret     string `json:"secret"`
}

// Outcome 信号处理结果，HTTP 层原样映射为响应体
type Outcome struct {
	Success    bool       `json:"success"`
	Message    string     `json:"message"`
	OrderID    string     `json:"orderId,omitempty"`
	Side       string     `json:"side,omitempty"`
	Asset      string     `json:"asset,omitempty"`
	Size       string     `json:"size,omitempty"`
	Price      string     `json:"price,omitempty"`
	Status     string     `json:"status,omitempty"`
	ExecutedAt *time.Time `json:"executedAt,omitempty"`
}

// 结果状态口径
const (
	statusExecuted       = "EXECUTED"
	statusExecutedWithSL = "EXECUTED (Stop-Loss Active)"
	statusSLFailed       = "EXECUTED (Stop-Loss FAILED)"
	statusClosedOnly     = "Position closed (Inverse=FALSE). No opposite order placed."
)

// CredentialValidator 策略凭证校验
type CredentialValidator interface {
	ValidateCredentials(ctx context.Context, strategyID, secret string) (*domain.StrategyView, error)
}

// PositionLedger 仓位台账
type PositionLedger interface {
	LastOrder(ctx context.Context, strategyID string) (*domain.OrderExecution, error)
	OpenPositions(ctx context.Context, strategyID string) ([]*domain.OrderExecution, error)
	Create(ctx context.Context, primaryOrderID string, side domain.Side,
		fillPrice, size decimal.Decimal, strategyID string, userID int64) (*domain.OrderExecution, error)
	AttachStopLoss(ctx context.Context, executionID int64, stopLossOrderID *string,
		price *decimal.Decimal, grouping domain.StopLossGrouping, status domain.StopLossStatus) error
	MarkStopLossCancelled(ctx context.Context, executionID int64) error
	CloseAll(ctx context.Context, executions []*domain.OrderExecution) error
}

// Processor 信号决策核心
// 同一策略的并发信号经互斥锁串行化，不同策略互不阻塞
type Processor struct {
	auth    CredentialValidator
	gateway gateway.OrderGateway
	ledger  PositionLedger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewProcessor(auth CredentialValidator, gw gateway.OrderGateway, ledger PositionLedger) *Processor {
	return &Processor{
		auth:    auth,
		gateway: gw,
		ledger:  ledger,
		locks:   make(map[string]*sync.Mutex),
	}
}

// strategyLock 返回策略级互斥锁，按需创建
func (p *Processor) strategyLock(strategyID string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.locks[strategyID]
	if !ok {
		l = &sync.Mutex{}
		p.locks[strategyID] = l
	}
	return l
}

// HandleSignal 处理一条交易信号
//
// 状态机（现有仓位 × 信号方向）：
//   无仓位            → 开仓
//   同向 + pyramid    → 加仓
//   同向 + !pyramid   → 拒绝（业务规则错误）
//   反向              → 撤止损 → 交易所平仓 → 台账平仓 → inverse 时反向开仓
//
// 校验、认证与业务规则错误通过 error 返回；成功路径返回 Outcome
func (p *Processor) HandleSignal(ctx context.Context, sig Signal) (*Outcome, error) {
	side, err := domain.SideFromAction(sig.Action)
	if err != nil {
		return nil, err
	}

	strategy, err := p.auth.ValidateCredentials(ctx, sig.StrategyID, sig.Secret)
	if err != nil {
		return nil, err
	}

	lock := p.strategyLock(strategy.StrategyID)
	lock.Lock()
	defer lock.Unlock()

	last, err := p.ledger.LastOrder(ctx, strategy.StrategyID)
	if err != nil {
		return nil, err
	}

	log := procLog.WithFields(logrus.Fields{
		"strategy_id": strategy.StrategyID,
		"side":        string(side),
	})

	// 无仓位（从未下单或上一仓位已平）：直接开仓
	if last == nil || !last.IsOpen() {
		log.Info("开新仓")
		return p.placePrimary(ctx, side, strategy)
	}

	// 同向信号
	if last.Side == side {
		if !strategy.Pyramid {
			log.Warn("同向加仓被拒绝")
			return nil, domain.NewBusinessRuleError(fmt.Sprintf(
				"cannot add to open %s position: strategy has Pyramid=FALSE", last.Side))
		}
		log.Info("同向加仓")
		return p.placePrimary(ctx, side, strategy)
	}

	// 反向信号：撤止损 → 交易所平仓 → 台账平仓
	open, err := p.ledger.OpenPositions(ctx, strategy.StrategyID)
	if err != nil {
		return nil, err
	}
	p.cancelActiveStopLosses(ctx, open, strategy)
	p.closeOnExchange(ctx, side, open, strategy)
	if err := p.ledger.CloseAll(ctx, open); err != nil {
		return nil, err
	}

	if !strategy.Inverse {
		log.Info("仓位已平，Inverse=FALSE 不反向开仓")
		return &Outcome{
			Success: true,
			Message: "Signal processed",
			Side:    string(side),
			Asset:   strategy.Config.Asset,
			Status:  statusClosedOnly,
		}, nil
	}

	log.Info("仓位已平，反向开仓")
	return p.placePrimary(ctx, side, strategy)
}

// cancelActiveStopLosses 撤销所有 ACTIVE 止损单
// 台账状态为 CANCELLED 的不再触发交易所调用（幂等）；
// 撤单失败只告警不中断，CloseAll 仍会把残留 ACTIVE 状态强制置为 CANCELLED
func (p *Processor) cancelActiveStopLosses(ctx context.Context, open []*domain.OrderExecution, strategy *domain.StrategyView) {
	for _, e := range open {
		if !e.HasActiveStopLoss() {
			continue
		}
		err := p.gateway.CancelOrder(ctx, *e.StopLossOrderID, strategy.Config.AssetID, strategy.User)
		if err != nil {
			procLog.WithFields(logrus.Fields{
				"execution_id":       e.ID,
				"stop_loss_order_id": *e.StopLossOrderID,
			}).WithError(err).Warn("止损撤单失败")
			continue
		}
		if err := p.ledger.MarkStopLossCancelled(ctx, e.ID); err != nil {
			procLog.WithField("execution_id", e.ID).WithError(err).Warn("止损撤销状态落表失败")
		}
	}
}

// closeOnExchange 向交易所发只减仓平仓单，数量为全部未平数量之和
// 平仓单失败不阻断流程：仓位的账务关闭照常进行，由运维对账
func (p *Processor) closeOnExchange(ctx context.Context, side domain.Side, open []*domain.OrderExecution, strategy *domain.StrategyView) {
	total := decimal.Zero
	for _, e := range open {
		total = total.Add(e.Size)
	}
	if !total.IsPositive() {
		return
	}
	orderID, err := p.gateway.PlaceCloseOrder(ctx, side, strategy.Config, strategy.User, total)
	if err != nil {
		procLog.WithFields(logrus.Fields{
			"strategy_id": strategy.StrategyID,
			"size":        total.String(),
		}).WithError(err).Warn("交易所平仓单失败，仓位仍按已平处理")
		return
	}
	procLog.WithFields(logrus.Fields{
		"strategy_id": strategy.StrategyID,
		"order_id":    orderID,
		"size":        total.String(),
	}).Info("交易所平仓单已提交")
}

// placePrimary 下主订单并落表，随后按配置挂止损
// 止损失败不影响主订单结果，只改变状态标注
func (p *Processor) placePrimary(ctx context.Context, side domain.Side, strategy *domain.StrategyView) (*Outcome, error) {
	result, err := p.gateway.PlaceOrder(ctx, side, strategy.Config, strategy.User)
	if err != nil {
		return nil, err
	}

	exec, err := p.ledger.Create(ctx, result.OrderID, side,
		result.FillPrice, strategy.Config.LotSize, strategy.StrategyID, strategy.User.ID)
	if err != nil {
		// 交易所已成交但台账缺行，必须留痕待人工对账
		procLog.WithFields(logrus.Fields{
			"strategy_id": strategy.StrategyID,
			"order_id":    result.OrderID,
			"side":        string(side),
			"fill_price":  result.FillPrice.String(),
		}).WithError(err).Error("主订单已提交但台账写入失败，需要人工对账")
		return nil, err
	}

	status := statusExecuted
	if strategy.Config.SlPercent != nil {
		status = p.placeStopLoss(ctx, side, exec, strategy)
	}

	return &Outcome{
		Success:    true,
		Message:    "Signal processed",
		OrderID:    result.OrderID,
		Side:       string(side),
		Asset:      strategy.Config.Asset,
		Size:       strategy.Config.LotSize.String(),
		Price:      result.FillPrice.String(),
		Status:     status,
		ExecutedAt: &exec.ExecutedAt,
	}, nil
}

// placeStopLoss 计算触发价并挂止损单，返回结果状态标注
func (p *Processor) placeStopLoss(ctx context.Context, side domain.Side, exec *domain.OrderExecution, strategy *domain.StrategyView) string {
	slPx, err := gateway.CalculateStopLossPrice(exec.FillPrice, side, *strategy.Config.SlPercent)
	if err != nil {
		procLog.WithField("execution_id", exec.ID).WithError(err).Warn("止损触发价计算失败")
		if err := p.ledger.AttachStopLoss(ctx, exec.ID, nil, nil,
			domain.GroupingPositionBased, domain.StopLossFailed); err != nil {
			procLog.WithField("execution_id", exec.ID).WithError(err).Error("止损失败状态落表失败")
		}
		return statusSLFailed
	}

	slID, err := p.gateway.PlaceStopLossOrder(ctx, side, strategy.Config.AssetID,
		slPx, exec.Size, domain.GroupingPositionBased, strategy.Config, strategy.User)
	if err != nil {
		procLog.WithFields(logrus.Fields{
			"execution_id": exec.ID,
			"trigger_px":   slPx.String(),
		}).WithError(err).Warn("止损挂单失败，主订单不受影响")
		if err := p.ledger.AttachStopLoss(ctx, exec.ID, nil, &slPx,
			domain.GroupingPositionBased, domain.StopLossFailed); err != nil {
			procLog.WithField("execution_id", exec.ID).WithError(err).Error("止损失败状态落表失败")
		}
		return statusSLFailed
	}

	if err := p.ledger.AttachStopLoss(ctx, exec.ID, &slID, &slPx,
		domain.GroupingPositionBased, domain.StopLossActive); err != nil {
		procLog.WithFields(logrus.Fields{
			"execution_id":       exec.ID,
			"stop_loss_order_id": slID,
		}).WithError(err).Error("止损已挂但台账写入失败，需要人工对账")
		return statusSLFailed
	}

	procLog.WithFields(logrus.Fields{
		"execution_id":       exec.ID,
		"stop_loss_order_id": slID,
		"trigger_px":         slPx.String(),
	}).Info("止损单已挂")
	return statusExecutedWithSL
}
