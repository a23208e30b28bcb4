package core

import (
	"errors"
	"fmt"
)

// DomainError 是领域层的统一错误类型。
//
// 设计原则：
//   - 所有领域层错误都使用此类型
//   - 提供错误代码（Code）和消息（Message）
//   - 支持错误检查函数（IsXXX），兼容 errors.Is / errors.As
//
// 使用场景：
//   - 配置错误：未知算法、未知合并策略、规则注册非法（CONFIGURATION，立即暴露）
//   - 实体不存在：显式传入的 user/item 不存在（NOT_FOUND）
//   - 协作方不可用：实体存储、缓存后端不可达（UNAVAILABLE，向上透传，不重试）
type DomainError struct {
	Code    string // 错误代码（如 "NOT_FOUND", "CONFIGURATION"）
	Message string // 错误消息
	Module  string // 模块名称（如 "store", "feature", "rules"）
	Err     error  // 底层错误（可选）
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is 按 Module + Code 比较，使 errors.Is(err, ErrStoreNotFound) 对包装后的同类错误成立。
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Module == t.Module && e.Code == t.Code
}

// IsDomainError 检查错误链中是否存在 DomainError
func IsDomainError(err error) bool {
	return GetDomainError(err) != nil
}

// GetDomainError 获取错误链中的第一个 DomainError，如果不存在则返回 nil
func GetDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}

// NewDomainError 创建新的领域错误
func NewDomainError(module, code, message string) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
	}
}

// WrapDomainError 创建包装底层错误的领域错误
func WrapDomainError(module, code string, err error, format string, args ...any) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// 错误代码常量
const (
	ErrorCodeNotFound      = "NOT_FOUND"      // 资源不存在
	ErrorCodeNotSupported  = "NOT_SUPPORTED"  // 操作不支持
	ErrorCodeUnavailable   = "UNAVAILABLE"    // 协作方不可用
	ErrorCodeInvalidInput  = "INVALID_INPUT"  // 输入无效
	ErrorCodeConfiguration = "CONFIGURATION"  // 配置错误（致命，不做静默降级）
	ErrorCodeInternalError = "INTERNAL_ERROR" // 内部错误
)

// 模块名称常量
const (
	ModuleStore   = "store"   // 存储模块（缓存后端、实体存储）
	ModuleFeature = "feature" // 特征模块
	ModuleRecall  = "recall"  // 打分模块（协同过滤、内容、热门）
	ModuleHybrid  = "hybrid"  // 混合模块
	ModuleRules   = "rules"   // 业务规则模块
	ModuleCache   = "cache"   // 推荐结果缓存
	ModuleEngine  = "engine"  // 对外门面
	ModuleConfig  = "config"  // 配置
)

// NewConfigurationError 创建配置错误。
func NewConfigurationError(module, format string, args ...any) *DomainError {
	return NewDomainError(module, ErrorCodeConfiguration, fmt.Sprintf(format, args...))
}

// NewNotFoundError 创建实体不存在错误。
func NewNotFoundError(module, kind, id string) *DomainError {
	return NewDomainError(module, ErrorCodeNotFound, fmt.Sprintf("%s: %s %q not found", module, kind, id))
}

// NewUnavailableError 包装协作方错误。
func NewUnavailableError(module string, err error, format string, args ...any) *DomainError {
	return WrapDomainError(module, ErrorCodeUnavailable, err, format, args...)
}

func hasCode(err error, code string) bool {
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == code
	}
	return false
}

// IsNotFound 检查错误是否为 NOT_FOUND
func IsNotFound(err error) bool {
	return hasCode(err, ErrorCodeNotFound)
}

// IsNotSupported 检查错误是否为 NOT_SUPPORTED
func IsNotSupported(err error) bool {
	return hasCode(err, ErrorCodeNotSupported)
}

// IsUnavailable 检查错误是否为 UNAVAILABLE
func IsUnavailable(err error) bool {
	return hasCode(err, ErrorCodeUnavailable)
}

// IsConfiguration 检查错误是否为 CONFIGURATION
func IsConfiguration(err error) bool {
	return hasCode(err, ErrorCodeConfiguration)
}

// IsInvalidInput 检查错误是否为 INVALID_INPUT
func IsInvalidInput(err error) bool {
	return hasCode(err, ErrorCodeInvalidInput)
}
