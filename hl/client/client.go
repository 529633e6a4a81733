package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/tradebot/gohyper/hl/types"
)

// Client Hyperliquid REST 传输层
// 负责把已签名的交易动作提交到 /exchange，以及从 /info 查询参考价格
type Client struct {
	host     string
	exchange *resty.Client
	info     *resty.Client
}

// NewClient 创建传输客户端
// /exchange 不做自动重试：nonce 已绑定请求体，重发同一 nonce 必被交易所拒绝，
// 重试必须由上层重新取号重签；/info 是只读查询，允许有限重试
func NewClient(host string) *Client {
	host = strings.TrimSuffix(host, "/")

	exchange := resty.New().
		SetBaseURL(host).
		SetTimeout(30 * time.Second)

	info := resty.New().
		SetBaseURL(host).
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second)

	return &Client{host: host, exchange: exchange, info: info}
}

// Host 返回 API 地址
func (c *Client) Host() string {
	return c.host
}

// SubmitAction 提交已签名的交易动作
// 返回交易所订单回执；status != ok 或回执内含错误时返回 error
func (c *Client) SubmitAction(ctx context.Context, payload types.ExchangeRequest) (*types.ExchangeResponse, error) {
	var out types.ExchangeResponse
	resp, err := c.exchange.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		SetResult(&out).
		Post("/exchange")
	if err != nil {
		return nil, errors.Wrap(err, "submit exchange action")
	}
	if resp.IsError() {
		return nil, errors.Errorf("exchange returned HTTP %d: %s", resp.StatusCode(), resp.String())
	}
	if out.Status != "ok" {
		return nil, errors.Errorf("exchange rejected action: %s", out.Error)
	}
	if out.Response != nil && out.Response.Data != nil {
		for _, st := range out.Response.Data.Statuses {
			if st.Error != "" {
				return nil, errors.Errorf("order rejected: %s", st.Error)
			}
		}
	}
	return &out, nil
}

// Mids 查询全部资产的中间价（POST /info {"type":"allMids"}）
func (c *Client) Mids(ctx context.Context) (map[string]string, error) {
	var out map[string]string
	resp, err := c.info.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"type": "allMids"}).
		SetResult(&out).
		Post("/info")
	if err != nil {
		return nil, errors.Wrap(err, "query allMids")
	}
	if resp.IsError() {
		return nil, errors.Errorf("info returned HTTP %d: %s", resp.StatusCode(), resp.String())
	}
	return out, nil
}

// Price 查询单个币种的中间价
func (c *Client) Price(ctx context.Context, coin string) (decimal.Decimal, error) {
	mids, err := c.Mids(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	raw, ok := mids[strings.ToUpper(coin)]
	if !ok {
		return decimal.Zero, fmt.Errorf("no mid price for coin %s", coin)
	}
	px, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("bad mid price %q for coin %s: %w", raw, coin, err)
	}
	return px, nil
}
