package types

// Chain Hyperliquid 签名用链 ID
// 主网使用 Arbitrum One，测试网使用 Arbitrum Sepolia
type Chain int64

const (
	ChainMainnet Chain = 42161
	ChainTestnet Chain = 421614
)

// ChainFor 根据网络类型返回链 ID
func ChainFor(isTestnet bool) Chain {
	if isTestnet {
		return ChainTestnet
	}
	return ChainMainnet
}

// API 地址
const (
	MainnetAPIURL = "https://api.hyperliquid.xyz"
	TestnetAPIURL = "https://api.hyperliquid-testnet.xyz"

	MainnetWSURL = "wss://api.hyperliquid.xyz/ws"
	TestnetWSURL = "wss://api.hyperliquid-testnet.xyz/ws"
)

// APIURLFor 根据网络类型返回 REST API 地址
func APIURLFor(isTestnet bool) string {
	if isTestnet {
		return TestnetAPIURL
	}
	return MainnetAPIURL
}

// WSURLFor 根据网络类型返回 WebSocket 地址
func WSURLFor(isTestnet bool) string {
	if isTestnet {
		return TestnetWSURL
	}
	return MainnetWSURL
}

// 签名域验证合约地址（Hyperliquid 使用零地址）
const (
	MainnetVerifyingContract = "0x0000000000000000000000000000000000000000"
	TestnetVerifyingContract = "0x0000000000000000000000000000000000000000"
)

// VerifyingContractFor 根据网络类型返回验证合约地址
func VerifyingContractFor(isTestnet bool) string {
	if isTestnet {
		return TestnetVerifyingContract
	}
	return MainnetVerifyingContract
}

// Grouping 订单分组方式
// na: 普通订单；positionTpsl: 止损挂在整个仓位上；normalTpsl: 止损与单个订单一对一（OCO）
type Grouping string

const (
	GroupingNone         Grouping = "na"
	GroupingPositionTpsl Grouping = "positionTpsl"
	GroupingNormalTpsl   Grouping = "normalTpsl"
)

// Tpsl 触发单类型标记
const (
	TpslStopLoss   = "sl"
	TpslTakeProfit = "tp"
)
