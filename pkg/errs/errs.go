// Package errs 定义四类调用方可恢复的业务错误：
// 参数校验失败、非法状态迁移、并发冲突、资源耗尽。
// 所有错误都在事件发出之前被检测到，不会破坏聚合状态。
package errs

import (
	"errors"
	"fmt"
)

// Kind 错误类别
type Kind string

const (
	// KindValidation 输入不合法，未发出任何事件
	KindValidation Kind = "VALIDATION_FAILURE"
	// KindStateTransition 当前状态下不允许该操作
	KindStateTransition Kind = "INVALID_STATE_TRANSITION"
	// KindConflict 事件日志版本冲突，调用方需重新加载后重试
	KindConflict Kind = "CONCURRENCY_CONFLICT"
	// KindExhausted 资源耗尽（库存不足、重试/退款超限）
	KindExhausted Kind = "RESOURCE_EXHAUSTED"
)

// Error 业务错误
type Error struct {
	Kind    Kind
	Code    string
	Message string
	// 状态迁移错误携带当前状态与目标状态
	Current string
	Target  string
	// 资源耗尽错误携带当前值与请求值
	Have int64
	Want int64
}

// Error 实现 error 接口
func (e *Error) Error() string {
	return fmt.Sprintf("%s[%s]: %s", e.Kind, e.Code, e.Message)
}

// Is 支持 errors.Is 按类别与错误码比较
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind && (t.Code == "" || e.Code == t.Code)
}

// Validationf 创建参数校验错误
func Validationf(code, format string, args ...any) *Error {
	return &Error{
		Kind:    KindValidation,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Transition 创建状态迁移错误，记录当前状态与目标状态
func Transition(entity, current, target string) *Error {
	return &Error{
		Kind:    KindStateTransition,
		Code:    "invalid_state_transition",
		Message: fmt.Sprintf("%s cannot transition from %s to %s", entity, current, target),
		Current: current,
		Target:  target,
	}
}

// Conflictf 创建并发冲突错误
func Conflictf(code, format string, args ...any) *Error {
	return &Error{
		Kind:    KindConflict,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Exhausted 创建资源耗尽错误，记录当前值与请求值
func Exhausted(code string, have, want int64, format string, args ...any) *Error {
	return &Error{
		Kind:    KindExhausted,
		Code:    code,
		Message: fmt.Sprintf(format, args...) + fmt.Sprintf(" (have %d, want %d)", have, want),
		Have:    have,
		Want:    want,
	}
}

// IsKind 判断错误是否属于指定类别
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// CodeOf 提取业务错误码，非业务错误返回空串
func CodeOf(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Code
}
