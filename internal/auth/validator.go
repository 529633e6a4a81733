package auth

import (
	"context"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/tradebot/gohyper/internal/domain"
)

var authLog = logrus.WithField("component", "auth")

// 对外只暴露一种失败口径，不区分策略不存在/密钥错误/已停用
const invalidCredentialsMsg = "Invalid strategy ID or secret"

// Validator 策略凭证校验器
type Validator struct {
	store *StrategyStore
}

func NewValidator(store *StrategyStore) *Validator {
	return &Validator{store: store}
}

// HashSecret 生成共享密钥的 bcrypt 摘要（seed 工具使用）
func HashSecret(secret string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// ValidateCredentials 校验策略 ID 与共享密钥，成功返回完整策略视图
// 任何失败路径都返回同一条 AuthenticationError，避免泄露存在性信息
func (v *Validator) ValidateCredentials(ctx context.Context, strategyID, secret string) (*domain.StrategyView, error) {
	if strategyID == "" || secret == "" {
		return nil, domain.NewAuthenticationError(invalidCredentialsMsg)
	}

	row, err := v.store.findByExternalID(ctx, strategyID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		authLog.WithField("strategy_id", strategyID).Warn("未知策略 ID")
		return nil, domain.NewAuthenticationError(invalidCredentialsMsg)
	}
	if !row.active {
		authLog.WithField("strategy_id", strategyID).Warn("策略已停用")
		return nil, domain.NewAuthenticationError(invalidCredentialsMsg)
	}
	if bcrypt.CompareHashAndPassword([]byte(row.secretHash), []byte(secret)) != nil {
		authLog.WithField("strategy_id", strategyID).Warn("共享密钥不匹配")
		return nil, domain.NewAuthenticationError(invalidCredentialsMsg)
	}
	return &row.view, nil
}
