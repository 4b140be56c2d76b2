package eventsourcing

import (
	"encoding/json"
	"fmt"
)

// Factory 构造一个空事件实例，供反序列化填充
type Factory func() DomainEvent

// Registry 事件类型注册表，事件类型名到构造函数的映射。
// 每个聚合的 domain 包注册自己的事件种类，存储层用它恢复事件。
type Registry struct {
	factories map[string]Factory
}

// NewRegistry 创建空注册表
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register 注册事件类型；重复注册同名类型会 panic，属编程错误
func (r *Registry) Register(eventType string, factory Factory) {
	if _, ok := r.factories[eventType]; ok {
		panic(fmt.Sprintf("eventsourcing: duplicate event type %q", eventType))
	}
	r.factories[eventType] = factory
}

// Decode 按类型名反序列化事件
func (r *Registry) Decode(eventType string, payload []byte) (DomainEvent, error) {
	factory, ok := r.factories[eventType]
	if !ok {
		return nil, fmt.Errorf("eventsourcing: unknown event type %q", eventType)
	}
	event := factory()
	if err := json.Unmarshal(payload, event); err != nil {
		return nil, fmt.Errorf("eventsourcing: decode %s: %w", eventType, err)
	}
	return event, nil
}
