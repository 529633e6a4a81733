package ledger

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/tradebot/gohyper/internal/domain"
)

var ledgerLog = logrus.WithField("component", "execution_store")

// ExecutionStore 订单执行台账
// closed_at 为空的行即策略当前持仓：pyramid 模式下可能是同向多行，
// 非 pyramid 模式下最多一行；行只追加和更新，永不删除
type ExecutionStore struct {
	db *sql.DB
}

// NewExecutionStore 创建台账仓储
func NewExecutionStore(db *sql.DB) *ExecutionStore {
	return &ExecutionStore{db: db}
}

const executionColumns = `id,primary_order_id,order_side,fill_price,order_size,status,strategy_id,user_id,
stop_loss_order_id,stop_loss_price,stop_loss_status,grouping_type,
executed_at,stop_loss_placed_at,stop_loss_cancelled_at,closed_at`

// LastOrder 策略最近一笔执行记录（按 executed_at 取最新），无记录返回 nil
func (s *ExecutionStore) LastOrder(ctx context.Context, strategyID string) (*domain.OrderExecution, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT `+executionColumns+`
FROM order_executions WHERE strategy_id=?
ORDER BY executed_at DESC, id DESC LIMIT 1
`, strategyID)
	e, err := scanExecution(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, domain.NewPersistenceError("query last order", err)
	}
	return e, nil
}

// OpenPositions 策略当前全部持仓行（closed_at 为空，最新在前）
func (s *ExecutionStore) OpenPositions(ctx context.Context, strategyID string) ([]*domain.OrderExecution, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+executionColumns+`
FROM order_executions WHERE strategy_id=? AND closed_at IS NULL
ORDER BY executed_at DESC, id DESC
`, strategyID)
	if err != nil {
		return nil, domain.NewPersistenceError("query open positions", err)
	}
	defer rows.Close()
	return collectExecutions(rows)
}

// IsFirstOrder 策略是否从未有过任何执行记录
func (s *ExecutionStore) IsFirstOrder(ctx context.Context, strategyID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM order_executions WHERE strategy_id=?`, strategyID).Scan(&n)
	if err != nil {
		return false, domain.NewPersistenceError("count executions", err)
	}
	return n == 0, nil
}

// Create 写入一笔新执行：状态 FILLED，止损状态 NONE
func (s *ExecutionStore) Create(ctx context.Context, primaryOrderID string, side domain.Side,
	fillPrice, size decimal.Decimal, strategyID string, userID int64) (*domain.OrderExecution, error) {

	now := time.Now()
	res, err := s.db.ExecContext(ctx, `
INSERT INTO order_executions
  (primary_order_id,order_side,fill_price,order_size,status,strategy_id,user_id,stop_loss_status,executed_at)
VALUES (?,?,?,?,?,?,?,?,?)
`, primaryOrderID, string(side), fillPrice.String(), size.String(), string(domain.OrderStatusFilled),
		strategyID, userID, string(domain.StopLossNone), now.Format(time.RFC3339Nano))
	if err != nil {
		return nil, domain.NewPersistenceError("insert execution", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, domain.NewPersistenceError("read insert id", err)
	}

	ledgerLog.WithFields(logrus.Fields{
		"execution_id": id,
		"order_id":     primaryOrderID,
		"strategy_id":  strategyID,
		"side":         string(side),
	}).Debug("已写入执行记录")

	return &domain.OrderExecution{
		ID:             id,
		PrimaryOrderID: primaryOrderID,
		Side:           side,
		FillPrice:      fillPrice,
		Size:           size,
		Status:         domain.OrderStatusFilled,
		StrategyID:     strategyID,
		UserID:         userID,
		StopLossStatus: domain.StopLossNone,
		ExecutedAt:     now,
	}, nil
}

// AttachStopLoss 记录止损单信息与状态
// 挂单失败时 stopLossOrderID 传 nil、status 传 FAILED，同样会落表
func (s *ExecutionStore) AttachStopLoss(ctx context.Context, executionID int64, stopLossOrderID *string,
	price *decimal.Decimal, grouping domain.StopLossGrouping, status domain.StopLossStatus) error {

	var priceStr *string
	if price != nil {
		v := price.String()
		priceStr = &v
	}
	_, err := s.db.ExecContext(ctx, `
UPDATE order_executions
SET stop_loss_order_id=?, stop_loss_price=?, grouping_type=?, stop_loss_status=?, stop_loss_placed_at=?
WHERE id=?
`, stopLossOrderID, priceStr, string(grouping), string(status),
		time.Now().Format(time.RFC3339Nano), executionID)
	if err != nil {
		return domain.NewPersistenceError("attach stop-loss", err)
	}
	return nil
}

// MarkStopLossCancelled 将止损状态置为 CANCELLED
func (s *ExecutionStore) MarkStopLossCancelled(ctx context.Context, executionID int64) error {
	_, err := s.db.ExecContext(ctx, `
UPDATE order_executions
SET stop_loss_status=?, stop_loss_cancelled_at=?
WHERE id=?
`, string(domain.StopLossCancelled), time.Now().Format(time.RFC3339Nano), executionID)
	if err != nil {
		return domain.NewPersistenceError("mark stop-loss cancelled", err)
	}
	return nil
}

// CloseAll 批量平仓：设置 closed_at，仍为 ACTIVE 的止损行强制置为 CANCELLED
// （已关闭的行绝不允许带着 ACTIVE 止损）
func (s *ExecutionStore) CloseAll(ctx context.Context, executions []*domain.OrderExecution) error {
	if len(executions) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.NewPersistenceError("begin close transaction", err)
	}
	defer tx.Rollback()

	now := time.Now().Format(time.RFC3339Nano)
	for _, e := range executions {
		if _, err := tx.ExecContext(ctx, `
UPDATE order_executions
SET closed_at=?,
    stop_loss_status=CASE WHEN stop_loss_status=? THEN ? ELSE stop_loss_status END,
    stop_loss_cancelled_at=CASE WHEN stop_loss_status=? THEN ? ELSE stop_loss_cancelled_at END
WHERE id=? AND closed_at IS NULL
`, now,
			string(domain.StopLossActive), string(domain.StopLossCancelled),
			string(domain.StopLossActive), now,
			e.ID); err != nil {
			return domain.NewPersistenceError("close execution", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.NewPersistenceError("commit close transaction", err)
	}
	ledgerLog.WithField("count", len(executions)).Info("持仓已全部标记关闭")
	return nil
}

// ByStrategy 策略全部执行历史（最新在前），供对外查询
func (s *ExecutionStore) ByStrategy(ctx context.Context, strategyID string) ([]*domain.OrderExecution, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+executionColumns+`
FROM order_executions WHERE strategy_id=?
ORDER BY executed_at DESC, id DESC
`, strategyID)
	if err != nil {
		return nil, domain.NewPersistenceError("query executions", err)
	}
	defer rows.Close()
	return collectExecutions(rows)
}

// FailedStopLosses 止损挂单失败的记录，供运维跟进
func (s *ExecutionStore) FailedStopLosses(ctx context.Context) ([]*domain.OrderExecution, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+executionColumns+`
FROM order_executions WHERE stop_loss_status=?
ORDER BY executed_at DESC, id DESC
`, string(domain.StopLossFailed))
	if err != nil {
		return nil, domain.NewPersistenceError("query failed stop-losses", err)
	}
	defer rows.Close()
	return collectExecutions(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExecution(row rowScanner) (*domain.OrderExecution, error) {
	var e domain.OrderExecution
	var side, status, slStatus string
	var fillPrice, size string
	var slOrderID, slPrice, grouping sql.NullString
	var executedAt string
	var slPlacedAt, slCancelledAt, closedAt sql.NullString

	if err := row.Scan(&e.ID, &e.PrimaryOrderID, &side, &fillPrice, &size, &status, &e.StrategyID, &e.UserID,
		&slOrderID, &slPrice, &slStatus, &grouping,
		&executedAt, &slPlacedAt, &slCancelledAt, &closedAt); err != nil {
		return nil, err
	}

	e.Side = domain.Side(side)
	e.Status = domain.OrderStatus(status)
	e.StopLossStatus = domain.StopLossStatus(slStatus)
	e.FillPrice, _ = decimal.NewFromString(fillPrice)
	e.Size, _ = decimal.NewFromString(size)

	if slOrderID.Valid {
		v := slOrderID.String
		e.StopLossOrderID = &v
	}
	if slPrice.Valid {
		if px, err := decimal.NewFromString(slPrice.String); err == nil {
			e.StopLossPrice = &px
		}
	}
	if grouping.Valid {
		g := domain.StopLossGrouping(grouping.String)
		e.Grouping = &g
	}

	e.ExecutedAt, _ = time.Parse(time.RFC3339Nano, executedAt)
	e.StopLossPlacedAt = parseNullTime(slPlacedAt)
	e.StopLossCancelledAt = parseNullTime(slCancelledAt)
	e.ClosedAt = parseNullTime(closedAt)
	return &e, nil
}

func parseNullTime(v sql.NullString) *time.Time {
	if !v.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, v.String)
	if err != nil {
		return nil
	}
	return &t
}

func collectExecutions(rows *sql.Rows) ([]*domain.OrderExecution, error) {
	var out []*domain.OrderExecution
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, domain.NewPersistenceError("scan execution", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewPersistenceError("iterate executions", err)
	}
	return out, nil
}
