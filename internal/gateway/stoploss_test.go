package gateway

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/tradebot/gohyper/internal/domain"
)

func TestCalculateStopLossPrice_Exact(t *testing.T) {
	fill := decimal.RequireFromString("2500.00000000")
	pct := decimal.RequireFromString("2.00")

	buyPx, err := CalculateStopLossPrice(fill, domain.SideBuy, pct)
	if err != nil {
		t.Fatalf("buy calc failed: %v", err)
	}
	if !buyPx.Equal(decimal.RequireFromString("2450.00000000")) {
		t.Fatalf("buy SL price = %s, want 2450.00000000", buyPx)
	}

	sellPx, err := CalculateStopLossPrice(fill, domain.SideSell, pct)
	if err != nil {
		t.Fatalf("sell calc failed: %v", err)
	}
	if !sellPx.Equal(decimal.RequireFromString("2550.00000000")) {
		t.Fatalf("sell SL price = %s, want 2550.00000000", sellPx)
	}
}

func TestCalculateStopLossPrice_Rounding(t *testing.T) {
	// 2000.00000005 × (1 - 50/100) = 1000.000000025，第 9 位恰为 5，必须半进位
	fill := decimal.RequireFromString("2000.00000005")
	pct := decimal.RequireFromString("50.0")

	px, err := CalculateStopLossPrice(fill, domain.SideBuy, pct)
	if err != nil {
		t.Fatalf("calc failed: %v", err)
	}
	if px.Exponent() < -8 {
		t.Fatalf("price not rounded to 8 decimals: %s", px)
	}
	if !px.Equal(decimal.RequireFromString("1000.00000003")) {
		t.Fatalf("half-up rounding broken: got %s, want 1000.00000003", px)
	}
}

func TestCalculateStopLossPrice_RangeValidation(t *testing.T) {
	fill := decimal.RequireFromString("2500")

	for _, pct := range []string{"0.05", "0.0", "50.01", "-1"} {
		_, err := CalculateStopLossPrice(fill, domain.SideBuy, decimal.RequireFromString(pct))
		if err == nil {
			t.Fatalf("expected range error for %s%%", pct)
		}
		var ve *domain.ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("expected ValidationError for %s%%, got %T", pct, err)
		}
	}

	// 边界值本身合法
	for _, pct := range []string{"0.1", "50.0"} {
		if _, err := CalculateStopLossPrice(fill, domain.SideBuy, decimal.RequireFromString(pct)); err != nil {
			t.Fatalf("boundary %s%% should be valid: %v", pct, err)
		}
	}
}

func TestCalculateStopLossPrice_SideSymmetry(t *testing.T) {
	fill := decimal.RequireFromString("1000")
	pct := decimal.RequireFromString("5")

	buyPx, _ := CalculateStopLossPrice(fill, domain.SideBuy, pct)
	sellPx, _ := CalculateStopLossPrice(fill, domain.SideSell, pct)

	if !buyPx.LessThan(fill) {
		t.Fatalf("long SL must trigger below entry: %s", buyPx)
	}
	if !sellPx.GreaterThan(fill) {
		t.Fatalf("short SL must trigger above entry: %s", sellPx)
	}
	// 两侧偏移量对称
	if !fill.Sub(buyPx).Equal(sellPx.Sub(fill)) {
		t.Fatalf("asymmetric offsets: %s vs %s", fill.Sub(buyPx), sellPx.Sub(fill))
	}
}
