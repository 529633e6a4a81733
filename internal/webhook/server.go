package webhook

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/tradebot/gohyper/internal/domain"
	"github.com/tradebot/gohyper/internal/signal"
)

var httpLog = logrus.WithField("component", "webhook")

// ExecutionReader 只读查询接口（报表用途）
type ExecutionReader interface {
	ByStrategy(ctx context.Context, strategyID string) ([]*domain.OrderExecution, error)
	OpenPositions(ctx context.Context, strategyID string) ([]*domain.OrderExecution, error)
}

// Server webhook HTTP 层
type Server struct {
	processor *signal.Processor
	reader    ExecutionReader

	timeout time.Duration
}

func NewServer(processor *signal.Processor, reader ExecutionReader, timeout time.Duration) *Server {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Server{processor: processor, reader: reader, timeout: timeout}
}

func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.POST("/webhook", s.handleWebhook)

	strategies := r.Group("/strategies/:strategyID")
	strategies.GET("/executions", s.handleExecutions)
	strategies.GET("/positions", s.handlePositions)

	return r
}

// handleWebhook TradingView 信号入口
func (s *Server) handleWebhook(c *gin.Context) {
	var sig signal.Signal
	if err := c.ShouldBindJSON(&sig); err != nil {
		c.JSON(http.StatusBadRequest, signal.Outcome{
			Success: false,
			Message: "invalid request body",
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.timeout)
	defer cancel()

	out, err := s.processor.HandleSignal(ctx, sig)
	if err != nil {
		status := statusForError(err)
		httpLog.WithFields(logrus.Fields{
			"strategy_id": sig.StrategyID,
			"action":      sig.Action,
			"http_status": status,
		}).WithError(err).Warn("信号处理失败")
		c.JSON(status, signal.Outcome{Success: false, Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, out)
}

// statusForError 错误分类到 HTTP 状态码
func statusForError(err error) int {
	var (
		valErr   *domain.ValidationError
		authErr  *domain.AuthenticationError
		ruleErr  *domain.BusinessRuleError
		exErr    *domain.ExchangeError
		signErr  *domain.SigningError
		persErr  *domain.PersistenceError
	)
	switch {
	case errors.As(err, &valErr):
		return http.StatusBadRequest
	case errors.As(err, &authErr):
		return http.StatusUnauthorized
	case errors.As(err, &ruleErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &exErr), errors.As(err, &signErr):
		return http.StatusBadGateway
	case errors.As(err, &persErr):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// executionJSON 执行记录的查询响应结构
type executionJSON struct {
	ID              int64      `json:"id"`
	OrderID         string     `json:"orderId"`
	Side            string     `json:"side"`
	FillPrice       string     `json:"fillPrice"`
	Size            string     `json:"size"`
	Status          string     `json:"status"`
	StopLossOrderID *string    `json:"stopLossOrderId,omitempty"`
	StopLossPrice   *string    `json:"stopLossPrice,omitempty"`
	StopLossStatus  string     `json:"stopLossStatus"`
	ExecutedAt      time.Time  `json:"executedAt"`
	ClosedAt        *time.Time `json:"closedAt,omitempty"`
}

func toExecutionJSON(e *domain.OrderExecution) executionJSON {
	out := executionJSON{
		ID:              e.ID,
		OrderID:         e.PrimaryOrderID,
		Side:            string(e.Side),
		FillPrice:       e.FillPrice.String(),
		Size:            e.Size.String(),
		Status:          string(e.Status),
		StopLossOrderID: e.StopLossOrderID,
		StopLossStatus:  string(e.StopLossStatus),
		ExecutedAt:      e.ExecutedAt,
		ClosedAt:        e.ClosedAt,
	}
	if e.StopLossPrice != nil {
		v := e.StopLossPrice.String()
		out.StopLossPrice = &v
	}
	return out
}

func (s *Server) handleExecutions(c *gin.Context) {
	s.listExecutions(c, s.reader.ByStrategy)
}

func (s *Server) handlePositions(c *gin.Context) {
	s.listExecutions(c, s.reader.OpenPositions)
}

func (s *Server) listExecutions(c *gin.Context, query func(context.Context, string) ([]*domain.OrderExecution, error)) {
	strategyID := c.Param("strategyID")
	rows, err := query(c.Request.Context(), strategyID)
	if err != nil {
		httpLog.WithField("strategy_id", strategyID).WithError(err).Error("执行记录查询失败")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	out := make([]executionJSON, 0, len(rows))
	for _, e := range rows {
		out = append(out, toExecutionJSON(e))
	}
	c.JSON(http.StatusOK, out)
}
