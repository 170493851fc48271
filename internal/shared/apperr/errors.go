// Package apperr 定义业务层错误分类
//
// 各服务在边界处把底层错误（存储驱动、上游 HTTP、JWT 库）翻译为这里的
// 分类错误，HTTP 层只依赖分类映射状态码，不感知具体驱动。
// 错误消息面向用户稳定可读，堆栈信息只在 debug 模式下暴露。
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind 错误分类
type Kind string

const (
	// KindValidation 请求字段缺失/非法 → 400
	KindValidation Kind = "validation"

	// KindAuth 令牌缺失/非法/过期 → 401
	KindAuth Kind = "auth"

	// KindLocked 账号处于登录锁定期 → 423
	KindLocked Kind = "locked"

	// KindConflict 用户名/邮箱等唯一约束冲突 → 409
	KindConflict Kind = "conflict"

	// KindNotFound 任务/用户不存在 → 404
	KindNotFound Kind = "not_found"

	// KindUpstream 备用后端不可达或超时 → 503（可重试）
	KindUpstream Kind = "upstream"

	// KindInternal 未预期错误 → 500
	KindInternal Kind = "internal"
)

// Error 携带分类的业务错误
type Error struct {
	Kind    Kind
	Message string // 面向用户的稳定消息
	Err     error  // 底层原因（仅日志/调试用）
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New 创建分类错误
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf 创建带格式化消息的分类错误
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap 包装底层错误并附加分类
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf 提取错误分类，非分类错误一律视为 internal
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// MessageOf 提取面向用户的消息；非分类错误返回通用文案，
// 避免把驱动层细节泄露给客户端
func MessageOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Message
	}
	return "internal server error"
}

// HTTPStatus 分类 → HTTP 状态码
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindLocked:
		return http.StatusLocked
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindUpstream:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
