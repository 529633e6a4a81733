package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

// action JSON 参与签名哈希，键名和省略规则就是协议本身
func TestOrderActionCanonicalJSON(t *testing.T) {
	action := PlaceOrderAction(LimitBuy(1, "2500", "0.5", "Gtc"), GroupingNone)

	data, err := json.Marshal(action)
	require.NoError(t, err)
	require.JSONEq(t,
		`{"type":"order","grouping":"na","orders":[{"a":1,"b":true,"p":"2500","s":"0.5","r":false,"t":{"limit":{"tif":"Gtc"}}}]}`,
		string(data))

	// 撤单动作不得携带 orders/grouping 键
	cancel, err := json.Marshal(CancelOrderAction(1, 42))
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"cancel","cancels":[{"a":1,"o":42}]}`, string(cancel))
}

func TestTriggerOrderJSON(t *testing.T) {
	order := LimitSell(1, "2450", "0.5", "Gtc")
	order.T = TriggerOrder("2450", TpslStopLoss, true)
	order.R = true

	data, err := json.Marshal(order)
	require.NoError(t, err)
	require.JSONEq(t,
		`{"a":1,"b":false,"p":"2450","s":"0.5","r":true,"t":{"trigger":{"isMarket":true,"triggerPx":"2450","tpsl":"sl"}}}`,
		string(data))
}

func TestExchangeRequestKeepsNullVault(t *testing.T) {
	req := ExchangeRequest{
		Action:    CancelOrderAction(1, 7),
		Nonce:     1700000000000,
		Signature: Signature{R: "0xaa", S: "0xbb", V: 27},
	}
	data, err := json.Marshal(req)
	require.NoError(t, err)
	// vaultAddress 必须显式为 null，交易所按键存在性处理
	require.Contains(t, string(data), `"vaultAddress":null`)
}
