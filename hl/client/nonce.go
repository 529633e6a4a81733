package client

import (
	"sync"
	"time"
)

// NonceAllocator 按钱包地址分配单调递增 nonce
// Hyperliquid 以 nonce 对签名请求排序与去重，同一地址的 nonce 绝不允许重复，
// 即使上层重试也必须重新取号
type NonceAllocator struct {
	mu   sync.Mutex
	last map[string]int64
}

// NewNonceAllocator 创建 nonce 分配器
func NewNonceAllocator() *NonceAllocator {
	return &NonceAllocator{last: make(map[string]int64)}
}

// Next 返回地址的下一个 nonce：max(当前毫秒时间戳, 上次 nonce + 1)
func (n *NonceAllocator) Next(address string) int64 {
	n.mu.Lock()
	defer n.mu.Unlock()

	next := time.Now().UnixMilli()
	if last := n.last[address]; next <= last {
		next = last + 1
	}
	n.last[address] = next
	return next
}

// Last 返回地址最近一次分配的 nonce，从未分配过返回 0
func (n *NonceAllocator) Last(address string) int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.last[address]
}

// Reset 清除地址的 nonce 记录（仅测试/调试用）
func (n *NonceAllocator) Reset(address string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.last, address)
}
