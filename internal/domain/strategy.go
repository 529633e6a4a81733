package domain

import "github.com/shopspring/decimal"

// StrategyView 凭证校验后返回的策略读模型
// Config 与 User 已经解析完毕随同返回，核心流程不做任何二次查询
type StrategyView struct {
	StrategyID string // 外部信号源 ID（TradingView UUID）
	Name       string
	Pyramid    bool // 允许同向加仓
	Inverse    bool // 反向信号平仓后是否反向开仓
	Config     Config
	User       User
}

// Config 策略交易参数，核心只读
type Config struct {
	Name        string
	Asset       string // 如 "ETH"、"BTC"
	AssetID     int    // Hyperliquid 资产 ID（BTC=0，ETH=1，...）
	LotSize     decimal.Decimal
	Leverage    int
	OrderType   string // LIMIT / MARKET
	TimeInForce string // Gtc / Ioc / Alo
	SlPercent   *decimal.Decimal
	TpPercent   *decimal.Decimal
}

// User 交易账户，核心只读
type User struct {
	ID            int64
	Username      string
	WalletAddress string
	PrivateKey    string // 主钱包私钥
	APIWalletKey  *string
	IsTestnet     bool
}

// SigningKey 返回签名用私钥，API 钱包私钥存在时优先
func (u *User) SigningKey() string {
	if u.APIWalletKey != nil && *u.APIWalletKey != "" {
		return *u.APIWalletKey
	}
	return u.PrivateKey
}
