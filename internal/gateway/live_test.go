package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	hlclient "github.com/tradebot/gohyper/hl/client"
	"github.com/tradebot/gohyper/hl/types"
	"github.com/tradebot/gohyper/internal/domain"
)

// fakeTransport 捕获提交的请求并返回预置回执
type fakeTransport struct {
	requests []types.ExchangeRequest
	resp     *types.ExchangeResponse
	err      error
	price    decimal.Decimal
}

func (f *fakeTransport) SubmitAction(_ context.Context, payload types.ExchangeRequest) (*types.ExchangeResponse, error) {
	f.requests = append(f.requests, payload)
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func (f *fakeTransport) Price(_ context.Context, _ string) (decimal.Decimal, error) {
	return f.price, nil
}

func filledResponse(oid uint64, avgPx string) *types.ExchangeResponse {
	return &types.ExchangeResponse{
		Status: "ok",
		Response: &types.ResponsePayload{
			Type: "order",
			Data: &types.ResponseData{
				Statuses: []types.OrderStatusEntry{{Filled: &types.FilledOrder{Oid: oid, TotalSz: "0.5", AvgPx: avgPx}}},
			},
		},
	}
}

func newLiveUnderTest(resp *types.ExchangeResponse) (*LiveGateway, *fakeTransport) {
	tr := &fakeTransport{resp: resp, price: decimal.RequireFromString("2500")}
	return NewLiveGateway(tr, tr, hlclient.NewNonceAllocator(), nil), tr
}

func liveUser() domain.User {
	return domain.User{
		ID:            1,
		WalletAddress: "0x1111111111111111111111111111111111111111",
		PrivateKey:    "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef",
	}
}

func liveConfig() domain.Config {
	return domain.Config{
		Name:        "eth",
		Asset:       "ETH",
		AssetID:     1,
		LotSize:     decimal.RequireFromString("0.5"),
		OrderType:   "MARKET",
		TimeInForce: "Gtc",
	}
}

func TestLiveGateway_PlaceOrderWireFormat(t *testing.T) {
	gw, tr := newLiveUnderTest(filledResponse(42, "2501.5"))

	res, err := gw.PlaceOrder(context.Background(), domain.SideBuy, liveConfig(), liveUser())
	if err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}
	if res.OrderID != "42" {
		t.Fatalf("order id = %q", res.OrderID)
	}
	if !res.FillPrice.Equal(decimal.RequireFromString("2501.5")) {
		t.Fatalf("fill price must come from the exchange fill: %s", res.FillPrice)
	}

	if len(tr.requests) != 1 {
		t.Fatalf("expected 1 submission, got %d", len(tr.requests))
	}
	req := tr.requests[0]
	if req.Nonce == 0 {
		t.Fatal("nonce missing")
	}
	if req.Signature.R == "" || req.Signature.S == "" || (req.Signature.V != 27 && req.Signature.V != 28) {
		t.Fatalf("signature malformed: %+v", req.Signature)
	}
	if len(req.Action.Orders) != 1 {
		t.Fatalf("orders = %+v", req.Action.Orders)
	}
	o := req.Action.Orders[0]
	if o.A != 1 || !o.B || o.S != "0.5" || o.R {
		t.Fatalf("order wire fields wrong: %+v", o)
	}
	// MARKET 以 IOC 限价单形式提交
	if o.T.Limit == nil || o.T.Limit.Tif != "Ioc" {
		t.Fatalf("market order must use Ioc limit: %+v", o.T)
	}
}

func TestLiveGateway_NoncesIncreasePerSubmission(t *testing.T) {
	gw, tr := newLiveUnderTest(filledResponse(42, "2500"))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := gw.PlaceOrder(ctx, domain.SideBuy, liveConfig(), liveUser()); err != nil {
			t.Fatalf("place %d: %v", i, err)
		}
	}
	for i := 1; i < len(tr.requests); i++ {
		if tr.requests[i].Nonce <= tr.requests[i-1].Nonce {
			t.Fatalf("nonces not strictly increasing: %d then %d",
				tr.requests[i-1].Nonce, tr.requests[i].Nonce)
		}
	}
}

func TestLiveGateway_CloseOrderReduceOnly(t *testing.T) {
	gw, tr := newLiveUnderTest(filledResponse(7, "2500"))

	if _, err := gw.PlaceCloseOrder(context.Background(), domain.SideSell, liveConfig(), liveUser(),
		decimal.RequireFromString("1.5")); err != nil {
		t.Fatalf("PlaceCloseOrder failed: %v", err)
	}
	o := tr.requests[0].Action.Orders[0]
	if !o.R || o.B || o.S != "1.5" {
		t.Fatalf("close order must be reduce-only sell: %+v", o)
	}
	if o.T.Limit == nil || o.T.Limit.Tif != "Ioc" {
		t.Fatalf("close order must be Ioc: %+v", o.T)
	}
}

func TestLiveGateway_StopLossWireFormat(t *testing.T) {
	gw, tr := newLiveUnderTest(filledResponse(9, "2450"))

	_, err := gw.PlaceStopLossOrder(context.Background(), domain.SideBuy, 1,
		decimal.RequireFromString("2450"), decimal.RequireFromString("0.5"),
		domain.GroupingPositionBased, liveConfig(), liveUser())
	if err != nil {
		t.Fatalf("PlaceStopLossOrder failed: %v", err)
	}

	req := tr.requests[0]
	if req.Action.Grouping != types.GroupingPositionTpsl {
		t.Fatalf("grouping = %q", req.Action.Grouping)
	}
	o := req.Action.Orders[0]
	// 多头止损是反方向的只减仓卖单
	if o.B || !o.R {
		t.Fatalf("stop-loss must be a reduce-only sell for a long: %+v", o)
	}
	if o.T.Trigger == nil || o.T.Trigger.Tpsl != types.TpslStopLoss || !o.T.Trigger.IsMarket {
		t.Fatalf("trigger leg wrong: %+v", o.T)
	}
	if o.T.Trigger.TriggerPx != "2450" {
		t.Fatalf("trigger px = %q", o.T.Trigger.TriggerPx)
	}
}

func TestLiveGateway_CancelOrder(t *testing.T) {
	gw, tr := newLiveUnderTest(&types.ExchangeResponse{Status: "ok"})

	if err := gw.CancelOrder(context.Background(), "12345", 1, liveUser()); err != nil {
		t.Fatalf("CancelOrder failed: %v", err)
	}
	req := tr.requests[0]
	if len(req.Action.Cancels) != 1 || req.Action.Cancels[0].O != 12345 || req.Action.Cancels[0].A != 1 {
		t.Fatalf("cancel wire fields wrong: %+v", req.Action)
	}

	// 非数字订单号直接拒绝，不产生交易所调用
	if err := gw.CancelOrder(context.Background(), "MOCK-abc", 1, liveUser()); err == nil {
		t.Fatal("non-numeric oid must fail validation")
	}
	if len(tr.requests) != 1 {
		t.Fatalf("validation failure must not submit: %d requests", len(tr.requests))
	}
}

func TestLiveGateway_TransportFailure(t *testing.T) {
	tr := &fakeTransport{err: errors.New("connection refused"), price: decimal.RequireFromString("2500")}
	gw := NewLiveGateway(tr, tr, hlclient.NewNonceAllocator(), nil)

	_, err := gw.PlaceOrder(context.Background(), domain.SideBuy, liveConfig(), liveUser())
	var exErr *domain.ExchangeError
	if !errors.As(err, &exErr) {
		t.Fatalf("expected ExchangeError, got %v", err)
	}
}

func TestLiveGateway_BadKeyIsSigningError(t *testing.T) {
	gw, _ := newLiveUnderTest(filledResponse(1, "2500"))
	user := liveUser()
	user.PrivateKey = "not-a-key"

	_, err := gw.PlaceOrder(context.Background(), domain.SideBuy, liveConfig(), user)
	var sigErr *domain.SigningError
	if !errors.As(err, &sigErr) {
		t.Fatalf("expected SigningError, got %v", err)
	}
}

// ws 缓存命中时不再回退 REST
type staticCache struct{ px decimal.Decimal }

func (s staticCache) Get(string) (decimal.Decimal, bool) { return s.px, true }

func TestLiveGateway_PriceCachePreferred(t *testing.T) {
	tr := &fakeTransport{resp: filledResponse(1, ""), price: decimal.RequireFromString("9999")}
	gw := NewLiveGateway(tr, tr, hlclient.NewNonceAllocator(), staticCache{px: decimal.RequireFromString("2400")})

	_, err := gw.PlaceOrder(context.Background(), domain.SideBuy, liveConfig(), liveUser())
	if err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}
	if tr.requests[0].Action.Orders[0].P != "2400" {
		t.Fatalf("cached price must be used: %+v", tr.requests[0].Action.Orders[0])
	}
}
