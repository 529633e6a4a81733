package client

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var wsLog = logrus.WithField("component", "price_stream")

const (
	wsReconnectWait = 5 * time.Second
	wsReadTimeout   = 60 * time.Second
	wsWriteTimeout  = 10 * time.Second
)

// PriceStream 订阅 allMids 的中间价缓存
// 连接断开时自动重连；上层取不到缓存价时回退到 REST /info 查询
type PriceStream struct {
	url string

	mu    sync.RWMutex
	mids  map[string]decimal.Decimal
	stale bool

	cancel context.CancelFunc
	done   chan struct{}
}

// NewPriceStream 创建价格流
func NewPriceStream(wsURL string) *PriceStream {
	return &PriceStream{
		url:   wsURL,
		mids:  make(map[string]decimal.Decimal),
		stale: true,
	}
}

// Start 启动后台订阅循环
func (p *PriceStream) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	go p.run(ctx)
}

// Stop 停止订阅并等待后台退出
func (p *PriceStream) Stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
}

// Get 返回币种的缓存中间价；缓存尚未建立或已失效时 ok=false
func (p *PriceStream) Get(coin string) (decimal.Decimal, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stale {
		return decimal.Zero, false
	}
	px, ok := p.mids[strings.ToUpper(coin)]
	return px, ok
}

func (p *PriceStream) run(ctx context.Context) {
	defer close(p.done)
	for {
		if err := p.connectAndRead(ctx); err != nil {
			wsLog.WithError(err).Warn("价格流断开，等待重连")
		}
		p.markStale()

		select {
		case <-ctx.Done():
			return
		case <-time.After(wsReconnectWait):
		}
	}
}

func (p *PriceStream) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, p.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	sub := map[string]any{
		"method":       "subscribe",
		"subscription": map[string]string{"type": "allMids"},
	}
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteJSON(sub); err != nil {
		return err
	}
	wsLog.WithField("url", p.url).Info("价格流已连接")

	// ctx 取消时主动断开，读循环随之退出
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		p.handleMessage(raw)
	}
}

// wsEnvelope allMids 推送消息
type wsEnvelope struct {
	Channel string `json:"channel"`
	Data    struct {
		Mids map[string]string `json:"mids"`
	} `json:"data"`
}

func (p *PriceStream) handleMessage(raw []byte) {
	var msg wsEnvelope
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}
	if msg.Channel != "allMids" || len(msg.Data.Mids) == 0 {
		return
	}

	p.mu.Lock()
	for coin, rawPx := range msg.Data.Mids {
		if px, err := decimal.NewFromString(rawPx); err == nil {
			p.mids[strings.ToUpper(coin)] = px
		}
	}
	p.stale = false
	p.mu.Unlock()
}

func (p *PriceStream) markStale() {
	p.mu.Lock()
	p.stale = true
	p.mu.Unlock()
}
