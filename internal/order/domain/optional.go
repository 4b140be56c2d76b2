package domain

// Optional 部分更新命令的显式可选字段包装，
// 区分"未提供"与"显式置空"两种语义
type Optional[T any] struct {
	Set   bool
	Value T
}

// Some 构造已设定的可选值
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: v}
}

// None 构造未设定的可选值
func None[T any]() Optional[T] {
	return Optional[T]{}
}
