package domain

import "fmt"

// 错误分级：校验错误与业务规则错误直接作为失败结果返回、不重试；
// 主订单的交易所错误使整个信号失败；止损单的交易所错误被吞入状态
// （stop_loss_status=FAILED）而不向上传播；台账写入错误必须显式上报

// ValidationError 入参不合法（调用方问题，无副作用）
type ValidationError struct {
	Message string
}

func NewValidationError(msg string) *ValidationError {
	return &ValidationError{Message: msg}
}

func (e *ValidationError) Error() string {
	return e.Message
}

// AuthenticationError 策略凭证无效或策略停用
// 不区分具体失败因素，避免泄露凭证信息
type AuthenticationError struct {
	Message string
}

func NewAuthenticationError(msg string) *AuthenticationError {
	return &AuthenticationError{Message: msg}
}

func (e *AuthenticationError) Error() string {
	return e.Message
}

// BusinessRuleError 业务规则拒绝（如 Pyramid=FALSE 时的同向加仓）
// 返回前未发出任何交易所调用
type BusinessRuleError struct {
	Message string
}

func NewBusinessRuleError(msg string) *BusinessRuleError {
	return &BusinessRuleError{Message: msg}
}

func (e *BusinessRuleError) Error() string {
	return e.Message
}

// ExchangeError 交易所拒单或传输失败
type ExchangeError struct {
	Message string
	Cause   error
}

func NewExchangeError(msg string, cause error) *ExchangeError {
	return &ExchangeError{Message: msg, Cause: cause}
}

func (e *ExchangeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ExchangeError) Unwrap() error {
	return e.Cause
}

// SigningError 私钥无效或签名失败，信号层面视同 ExchangeError
type SigningError struct {
	Message string
	Cause   error
}

func NewSigningError(msg string, cause error) *SigningError {
	return &SigningError{Message: msg, Cause: cause}
}

func (e *SigningError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *SigningError) Unwrap() error {
	return e.Cause
}

// PersistenceError 台账写入失败
// 交易所调用成功后出现此错误属于致命不一致，必须记录日志等待人工对账
type PersistenceError struct {
	Message string
	Cause   error
}

func NewPersistenceError(msg string, cause error) *PersistenceError {
	return &PersistenceError{Message: msg, Cause: cause}
}

func (e *PersistenceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *PersistenceError) Unwrap() error {
	return e.Cause
}
