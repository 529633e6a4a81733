package signing

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/tradebot/gohyper/hl/types"
)

// EIP-712 域常量，Hyperliquid 交易所固定使用 "Exchange" / "1"
const (
	DomainName    = "Exchange"
	DomainVersion = "1"
)

// domainTypeHash EIP712Domain 结构的类型哈希
var domainTypeHash = crypto.Keccak256(
	[]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"),
)

var privateKeyPattern = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)

// Signer Hyperliquid EIP-712 动作签名器
// 持有一个 secp256k1 私钥，对动作哈希做 typed-data 签名
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewSigner 从十六进制私钥创建签名器
// 私钥必须是 64 位十六进制字符（可带 0x 前缀），即 32 字节
func NewSigner(privateKeyHex string) (*Signer, error) {
	cleanKey := strings.TrimPrefix(privateKeyHex, "0x")
	if !privateKeyPattern.MatchString(cleanKey) {
		return nil, fmt.Errorf("invalid private key format: must be 64 hex characters")
	}

	key, err := crypto.HexToECDSA(cleanKey)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	return &Signer{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

// Address 返回私钥对应的钱包地址
func (s *Signer) Address() common.Address {
	return s.address
}

// SignAction 对动作的 JSON 序列化做 EIP-712 签名
// 流程：actionHash = keccak(actionJSON)
//       message = 0x19 0x01 ∥ domainSeparator ∥ actionHash
//       签名 keccak(message)，返回 (r, s, v)
func (s *Signer) SignAction(actionJSON []byte, chainID types.Chain, verifyingContract string) (types.Signature, error) {
	actionHash := crypto.Keccak256(actionJSON)
	return s.signHash(actionHash, chainID, verifyingContract)
}

// signHash 对给定的动作哈希组装最终消息并签名
func (s *Signer) signHash(actionHash []byte, chainID types.Chain, verifyingContract string) (types.Signature, error) {
	domainSeparator := buildDomainSeparator(chainID, verifyingContract)

	message := make([]byte, 0, 2+len(domainSeparator)+len(actionHash))
	message = append(message, 0x19, 0x01)
	message = append(message, domainSeparator...)
	message = append(message, actionHash...)
	messageHash := crypto.Keccak256(message)

	// crypto.Sign 返回 65 字节 r(32) ∥ s(32) ∥ v(1)，v 为 0/1 恢复 ID
	sig, err := crypto.Sign(messageHash, s.key)
	if err != nil {
		return types.Signature{}, fmt.Errorf("signing failed: %w", err)
	}

	return types.Signature{
		R: hexutil.Encode(sig[:32]),
		S: hexutil.Encode(sig[32:64]),
		V: int(sig[64]) + 27,
	}, nil
}

// buildDomainSeparator 计算 EIP-712 域分隔符
// keccak(enc(DOMAIN_TYPE_HASH, keccak(name), keccak(version), chainId, verifyingContract))
func buildDomainSeparator(chainID types.Chain, verifyingContract string) []byte {
	nameHash := crypto.Keccak256([]byte(DomainName))
	versionHash := crypto.Keccak256([]byte(DomainVersion))

	encoded := make([]byte, 0, 32*5)
	encoded = append(encoded, domainTypeHash...)
	encoded = append(encoded, nameHash...)
	encoded = append(encoded, versionHash...)
	encoded = append(encoded, common.BigToHash(big.NewInt(int64(chainID))).Bytes()...)
	encoded = append(encoded, common.BytesToHash(common.HexToAddress(verifyingContract).Bytes()).Bytes()...)

	return crypto.Keccak256(encoded)
}
