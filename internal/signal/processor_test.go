package signal

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/tradebot/gohyper/internal/domain"
	"github.com/tradebot/gohyper/internal/gateway"
	"github.com/tradebot/gohyper/internal/ledger"
)

// fakeValidator 返回预置策略视图，密钥必须匹配
type fakeValidator struct {
	view   *domain.StrategyView
	secret string
}

func (f *fakeValidator) ValidateCredentials(_ context.Context, strategyID, secret string) (*domain.StrategyView, error) {
	if f.view == nil || strategyID != f.view.StrategyID || secret != f.secret {
		return nil, domain.NewAuthenticationError("Invalid strategy ID or secret")
	}
	return f.view, nil
}

// fakeGateway 记录调用序列的网关替身
type fakeGateway struct {
	mu    sync.Mutex
	calls []string
	seq   int

	placeErr    error
	stopLossErr error
	cancelErr   error
	closeErr    error

	fillPrice decimal.Decimal
}

func (g *fakeGateway) record(call string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, call)
}

func (g *fakeGateway) nextID(prefix string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return fmt.Sprintf("%s-%d", prefix, g.seq)
}

func (g *fakeGateway) callLog() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

func (g *fakeGateway) PlaceOrder(_ context.Context, side domain.Side, _ domain.Config, _ domain.User) (*gateway.OrderResult, error) {
	if g.placeErr != nil {
		return nil, g.placeErr
	}
	id := g.nextID("ord")
	g.record("place:" + string(side) + ":" + id)
	return &gateway.OrderResult{OrderID: id, FillPrice: g.fillPrice}, nil
}

func (g *fakeGateway) PlaceCloseOrder(_ context.Context, side domain.Side, _ domain.Config, _ domain.User, size decimal.Decimal) (string, error) {
	if g.closeErr != nil {
		return "", g.closeErr
	}
	g.record("close:" + string(side) + ":" + size.String())
	return g.nextID("close"), nil
}

func (g *fakeGateway) PlaceStopLossOrder(_ context.Context, primarySide domain.Side, _ int, triggerPx, _ decimal.Decimal,
	_ domain.StopLossGrouping, _ domain.Config, _ domain.User) (string, error) {
	if g.stopLossErr != nil {
		return "", g.stopLossErr
	}
	id := g.nextID("sl")
	g.record("stoploss:" + string(primarySide) + ":" + triggerPx.String())
	return id, nil
}

func (g *fakeGateway) CancelOrder(_ context.Context, orderID string, _ int, _ domain.User) error {
	if g.cancelErr != nil {
		return g.cancelErr
	}
	g.record("cancel:" + orderID)
	return nil
}

func newTestLedger(t *testing.T) *ledger.ExecutionStore {
	t.Helper()
	db, err := ledger.Open(filepath.Join(t.TempDir(), "signal.db"))
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return ledger.NewExecutionStore(db)
}

func testStrategy(pyramid, inverse bool, slPercent string) *domain.StrategyView {
	cfg := domain.Config{
		Name:        "eth-momo",
		Asset:       "ETH",
		AssetID:     1,
		LotSize:     decimal.RequireFromString("0.5"),
		Leverage:    5,
		OrderType:   "MARKET",
		TimeInForce: "Ioc",
	}
	if slPercent != "" {
		sl := decimal.RequireFromString(slPercent)
		cfg.SlPercent = &sl
	}
	return &domain.StrategyView{
		StrategyID: "strat-1",
		Name:       "eth-momo",
		Pyramid:    pyramid,
		Inverse:    inverse,
		Config:     cfg,
		User: domain.User{
			ID:            1,
			Username:      "tester",
			WalletAddress: "0x1111111111111111111111111111111111111111",
			PrivateKey:    "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef",
		},
	}
}

func newTestProcessor(t *testing.T, view *domain.StrategyView) (*Processor, *fakeGateway, *ledger.ExecutionStore) {
	t.Helper()
	gw := &fakeGateway{fillPrice: decimal.RequireFromString("2500")}
	store := newTestLedger(t)
	p := NewProcessor(&fakeValidator{view: view, secret: "s3cret"}, gw, store)
	return p, gw, store
}

func buySignal() Signal  { return Signal{Action: "buy", StrategyID: "strat-1", Secret: "s3cret"} }
func sellSignal() Signal { return Signal{Action: "sell", StrategyID: "strat-1", Secret: "s3cret"} }

func TestHandleSignal_OpensNewPosition(t *testing.T) {
	p, _, store := newTestProcessor(t, testStrategy(false, false, ""))

	out, err := p.HandleSignal(context.Background(), buySignal())
	if err != nil {
		t.Fatalf("HandleSignal failed: %v", err)
	}
	if !out.Success || out.Status != "EXECUTED" {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if out.OrderID == "" || out.Side != "BUY" || out.Asset != "ETH" {
		t.Fatalf("outcome fields missing: %+v", out)
	}

	open, _ := store.OpenPositions(context.Background(), "strat-1")
	if len(open) != 1 || open[0].Side != domain.SideBuy {
		t.Fatalf("expected single open BUY execution, got %+v", open)
	}
	if open[0].StopLossStatus != domain.StopLossNone {
		t.Fatalf("no SL configured, status must stay NONE: %s", open[0].StopLossStatus)
	}
}

func TestHandleSignal_StopLossPlacedWithPosition(t *testing.T) {
	p, gw, store := newTestProcessor(t, testStrategy(false, false, "2"))

	out, err := p.HandleSignal(context.Background(), buySignal())
	if err != nil {
		t.Fatalf("HandleSignal failed: %v", err)
	}
	if out.Status != "EXECUTED (Stop-Loss Active)" {
		t.Fatalf("status = %q", out.Status)
	}

	// 2500 × (1 - 2/100) = 2450
	found := false
	for _, c := range gw.callLog() {
		if strings.HasPrefix(c, "stoploss:BUY:") {
			found = true
			if !strings.HasSuffix(c, ":2450") {
				t.Fatalf("trigger price wrong: %s", c)
			}
		}
	}
	if !found {
		t.Fatalf("no stop-loss call recorded: %v", gw.callLog())
	}

	open, _ := store.OpenPositions(context.Background(), "strat-1")
	if len(open) != 1 || !open[0].HasActiveStopLoss() {
		t.Fatalf("stop-loss not recorded: %+v", open)
	}
}

func TestHandleSignal_StopLossFailureIsolated(t *testing.T) {
	p, _, store := newTestProcessor(t, testStrategy(false, false, "2"))
	gw := p.gateway.(*fakeGateway)
	gw.stopLossErr = domain.NewExchangeError("order rejected", errors.New("boom"))

	out, err := p.HandleSignal(context.Background(), buySignal())
	if err != nil {
		t.Fatalf("primary order must still succeed: %v", err)
	}
	if !out.Success || out.OrderID == "" {
		t.Fatalf("primary outcome lost: %+v", out)
	}
	if out.Status != "EXECUTED (Stop-Loss FAILED)" {
		t.Fatalf("status = %q", out.Status)
	}

	open, _ := store.OpenPositions(context.Background(), "strat-1")
	if len(open) != 1 || open[0].StopLossStatus != domain.StopLossFailed {
		t.Fatalf("SL status must be FAILED: %+v", open)
	}
	failed, _ := store.FailedStopLosses(context.Background())
	if len(failed) != 1 {
		t.Fatalf("failed SL must be queryable, got %d rows", len(failed))
	}
}

func TestHandleSignal_PyramidRejection(t *testing.T) {
	p, gw, store := newTestProcessor(t, testStrategy(false, false, ""))
	ctx := context.Background()

	if _, err := p.HandleSignal(ctx, buySignal()); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	callsBefore := len(gw.callLog())

	_, err := p.HandleSignal(ctx, buySignal())
	var ruleErr *domain.BusinessRuleError
	if !errors.As(err, &ruleErr) {
		t.Fatalf("expected BusinessRuleError, got %v", err)
	}
	if !strings.Contains(err.Error(), "Pyramid=FALSE") {
		t.Fatalf("message must identify pyramid mode: %q", err.Error())
	}
	// 拒绝不产生任何交易所调用
	if len(gw.callLog()) != callsBefore {
		t.Fatalf("rejected signal made exchange calls: %v", gw.callLog())
	}
	open, _ := store.OpenPositions(ctx, "strat-1")
	if len(open) != 1 {
		t.Fatalf("open rows must be untouched, got %d", len(open))
	}
}

func TestHandleSignal_PyramidAddOn(t *testing.T) {
	p, _, store := newTestProcessor(t, testStrategy(true, false, ""))
	ctx := context.Background()

	if _, err := p.HandleSignal(ctx, buySignal()); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	out, err := p.HandleSignal(ctx, buySignal())
	if err != nil {
		t.Fatalf("add-on failed: %v", err)
	}
	if !out.Success {
		t.Fatalf("add-on outcome: %+v", out)
	}

	open, _ := store.OpenPositions(ctx, "strat-1")
	if len(open) != 2 {
		t.Fatalf("expected 2 open executions after add-on, got %d", len(open))
	}
	for _, e := range open {
		if e.ClosedAt != nil {
			t.Fatalf("add-on must not close prior rows: %+v", e)
		}
	}
}

func TestHandleSignal_CloseWithoutReversal(t *testing.T) {
	p, gw, store := newTestProcessor(t, testStrategy(false, false, "2"))
	ctx := context.Background()

	if _, err := p.HandleSignal(ctx, buySignal()); err != nil {
		t.Fatalf("open failed: %v", err)
	}

	out, err := p.HandleSignal(ctx, sellSignal())
	if err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if !out.Success || out.OrderID != "" {
		t.Fatalf("close-only outcome must carry no new order id: %+v", out)
	}
	if !strings.Contains(out.Status, "Inverse=FALSE") {
		t.Fatalf("status must mention inverse mode: %q", out.Status)
	}

	open, _ := store.OpenPositions(ctx, "strat-1")
	if len(open) != 0 {
		t.Fatalf("position still open: %+v", open)
	}

	// 顺序：撤止损 → 交易所平仓；且没有新开仓
	calls := gw.callLog()
	cancelIdx, closeIdx := -1, -1
	for i, c := range calls {
		if strings.HasPrefix(c, "cancel:") && cancelIdx == -1 {
			cancelIdx = i
		}
		if strings.HasPrefix(c, "close:") {
			closeIdx = i
		}
		if strings.HasPrefix(c, "place:SELL") {
			t.Fatalf("Inverse=FALSE must not place a reversal order: %v", calls)
		}
	}
	if cancelIdx == -1 || closeIdx == -1 || cancelIdx > closeIdx {
		t.Fatalf("cancel must precede exchange close: %v", calls)
	}

	all, _ := store.ByStrategy(ctx, "strat-1")
	if len(all) != 1 || all[0].StopLossStatus != domain.StopLossCancelled {
		t.Fatalf("active SL must end CANCELLED on close: %+v", all)
	}
}

func TestHandleSignal_Reversal(t *testing.T) {
	p, gw, store := newTestProcessor(t, testStrategy(false, true, ""))
	ctx := context.Background()

	if _, err := p.HandleSignal(ctx, buySignal()); err != nil {
		t.Fatalf("open failed: %v", err)
	}

	out, err := p.HandleSignal(ctx, sellSignal())
	if err != nil {
		t.Fatalf("reversal failed: %v", err)
	}
	if !out.Success || out.OrderID == "" || out.Side != "SELL" {
		t.Fatalf("reversal outcome: %+v", out)
	}

	open, _ := store.OpenPositions(ctx, "strat-1")
	if len(open) != 1 || open[0].Side != domain.SideSell {
		t.Fatalf("new open position must be SELL: %+v", open)
	}

	// 平仓单先于反向开仓单
	calls := gw.callLog()
	closeIdx, placeIdx := -1, -1
	for i, c := range calls {
		if strings.HasPrefix(c, "close:SELL") {
			closeIdx = i
		}
		if strings.HasPrefix(c, "place:SELL") {
			placeIdx = i
		}
	}
	if closeIdx == -1 || placeIdx == -1 || closeIdx > placeIdx {
		t.Fatalf("close must precede reversal placement: %v", calls)
	}
}

func TestHandleSignal_CancelledStopLossNotCancelledAgain(t *testing.T) {
	p, gw, store := newTestProcessor(t, testStrategy(true, false, "2"))
	ctx := context.Background()

	if _, err := p.HandleSignal(ctx, buySignal()); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	open, _ := store.OpenPositions(ctx, "strat-1")
	if err := store.MarkStopLossCancelled(ctx, open[0].ID); err != nil {
		t.Fatalf("mark cancelled: %v", err)
	}
	callsBefore := len(gw.callLog())

	if _, err := p.HandleSignal(ctx, sellSignal()); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	for _, c := range gw.callLog()[callsBefore:] {
		if strings.HasPrefix(c, "cancel:") {
			t.Fatalf("CANCELLED stop-loss must not hit the exchange again: %v", gw.callLog())
		}
	}
}

func TestHandleSignal_PrimaryOrderFailurePropagates(t *testing.T) {
	p, _, store := newTestProcessor(t, testStrategy(false, false, ""))
	gw := p.gateway.(*fakeGateway)
	gw.placeErr = domain.NewExchangeError("rejected", errors.New("insufficient margin"))

	_, err := p.HandleSignal(context.Background(), buySignal())
	var exErr *domain.ExchangeError
	if !errors.As(err, &exErr) {
		t.Fatalf("expected ExchangeError, got %v", err)
	}
	open, _ := store.OpenPositions(context.Background(), "strat-1")
	if len(open) != 0 {
		t.Fatalf("failed order must not create ledger rows: %+v", open)
	}
}

func TestHandleSignal_InvalidAction(t *testing.T) {
	p, _, _ := newTestProcessor(t, testStrategy(false, false, ""))
	_, err := p.HandleSignal(context.Background(), Signal{Action: "hold", StrategyID: "strat-1", Secret: "s3cret"})
	var valErr *domain.ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestHandleSignal_BadCredentials(t *testing.T) {
	p, gw, _ := newTestProcessor(t, testStrategy(false, false, ""))
	_, err := p.HandleSignal(context.Background(), Signal{Action: "buy", StrategyID: "strat-1", Secret: "wrong"})
	var authErr *domain.AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthenticationError, got %v", err)
	}
	if len(gw.callLog()) != 0 {
		t.Fatalf("auth failure must not reach the gateway: %v", gw.callLog())
	}
}

// pyramid=false, inverse=true：开多 → 同向被拒 → 反向信号平多开空
func TestScenario_InverseReversalFlow(t *testing.T) {
	p, _, _ := newTestProcessor(t, testStrategy(false, true, ""))
	ctx := context.Background()

	first, err := p.HandleSignal(ctx, buySignal())
	if err != nil || first.Status != "EXECUTED" {
		t.Fatalf("first buy: out=%+v err=%v", first, err)
	}

	_, err = p.HandleSignal(ctx, buySignal())
	if err == nil || !strings.Contains(err.Error(), "Pyramid=FALSE") {
		t.Fatalf("second buy must be rejected with pyramid message, got %v", err)
	}

	third, err := p.HandleSignal(ctx, sellSignal())
	if err != nil {
		t.Fatalf("reversal sell failed: %v", err)
	}
	if third.OrderID == "" || third.OrderID == first.OrderID || third.Side != "SELL" {
		t.Fatalf("reversal must produce a fresh SELL order id: %+v", third)
	}
}

func TestHandleSignal_SameStrategySerialized(t *testing.T) {
	p, _, store := newTestProcessor(t, testStrategy(true, false, ""))
	ctx := context.Background()

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = p.HandleSignal(ctx, buySignal())
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("signal %d failed: %v", i, err)
		}
	}
	open, _ := store.OpenPositions(ctx, "strat-1")
	if len(open) != n {
		t.Fatalf("expected %d open executions, got %d", n, len(open))
	}
}
