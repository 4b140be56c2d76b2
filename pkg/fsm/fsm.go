// Package fsm 提供泛型状态机，聚合根用它声明合法的状态迁移表
package fsm

import (
	"context"
	"fmt"
)

// TransitionError 非法迁移错误，记录当前状态与触发事件
type TransitionError struct {
	From  string
	Event string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("no transition from %s on %s", e.From, e.Event)
}

// Machine 状态机。S 为状态类型，E 为触发事件类型。
type Machine[S comparable, E comparable] struct {
	current     S
	transitions map[S]map[E]S
}

// NewMachine 以初始状态创建状态机
func NewMachine[S comparable, E comparable](initial S) *Machine[S, E] {
	return &Machine[S, E]{
		current:     initial,
		transitions: make(map[S]map[E]S),
	}
}

// AddTransition 注册一条合法迁移
func (m *Machine[S, E]) AddTransition(from S, event E, to S) {
	if m.transitions[from] == nil {
		m.transitions[from] = make(map[E]S)
	}
	m.transitions[from][event] = to
}

// Current 返回当前状态
func (m *Machine[S, E]) Current() S {
	return m.current
}

// Can 判断当前状态下事件是否合法
func (m *Machine[S, E]) Can(event E) bool {
	_, ok := m.transitions[m.current][event]
	return ok
}

// Peek 返回事件触发后的目标状态，不改变当前状态
func (m *Machine[S, E]) Peek(event E) (S, bool) {
	to, ok := m.transitions[m.current][event]
	return to, ok
}

// Trigger 触发事件并推进状态，非法迁移返回 TransitionError
func (m *Machine[S, E]) Trigger(ctx context.Context, event E) error {
	to, ok := m.transitions[m.current][event]
	if !ok {
		return &TransitionError{
			From:  fmt.Sprint(m.current),
			Event: fmt.Sprint(event),
		}
	}
	m.current = to
	return nil
}
