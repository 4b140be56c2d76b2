// Package eventsourcing 提供事件溯源的聚合内核：
// 领域事件契约、聚合根（版本号 + 待提交事件 + 确定性重放）、
// 事件存储契约与内存实现。
package eventsourcing

import "time"

// DomainEvent 领域事件接口。事件一经提交不可变更。
type DomainEvent interface {
	// EventType 事件类型名，用于序列化与订阅路由
	EventType() string
	// AggregateID 所属聚合的流 ID
	AggregateID() string
	// Version 事件在流中的版本号，从 1 开始单调递增
	Version() int64
	SetVersion(v int64)
	// OccurredAt 事件发生时间
	OccurredAt() time.Time
}

// BaseEvent 事件公共字段，具体事件内嵌它并实现 EventType/AggregateID
type BaseEvent struct {
	Ver       int64     `json:"version"`
	Timestamp time.Time `json:"occurred_at"`
}

// NewBaseEvent 以当前时间创建事件基础字段
func NewBaseEvent() BaseEvent {
	return BaseEvent{Timestamp: time.Now().UTC()}
}

func (e *BaseEvent) Version() int64        { return e.Ver }
func (e *BaseEvent) SetVersion(v int64)    { e.Ver = v }
func (e *BaseEvent) OccurredAt() time.Time { return e.Timestamp }
