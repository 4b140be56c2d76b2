package eventsourcing

import (
	"context"
	"sort"
	"sync"
)

// Subscriber 按提交顺序接收已提交事件
type Subscriber func(aggregateID string, event DomainEvent)

// MemoryStore 内存事件存储。条件追加在互斥锁内完成，
// 对同一流的并发提交只有期望版本命中的那一个成功，
// 其余收到 ErrVersionConflict —— 与真实事件日志语义一致，
// 用于测试与本地单进程装配。
type MemoryStore struct {
	mu      sync.Mutex
	streams map[string][]DomainEvent
	subs    []Subscriber
}

// NewMemoryStore 创建内存事件存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{streams: make(map[string][]DomainEvent)}
}

// Subscribe 注册已提交事件的订阅者
func (s *MemoryStore) Subscribe(fn Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

// Save 条件追加事件批次
func (s *MemoryStore) Save(ctx context.Context, aggregateID string, events []DomainEvent, expectedVersion int64) error {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stream := s.streams[aggregateID]
	if int64(len(stream)) != expectedVersion {
		return ErrVersionConflict
	}

	s.streams[aggregateID] = append(stream, events...)

	// 在锁内通知，保证订阅者看到的是每流提交序
	for _, event := range events {
		for _, fn := range s.subs {
			fn(aggregateID, event)
		}
	}
	return nil
}

// Load 返回聚合的全部事件
func (s *MemoryStore) Load(ctx context.Context, aggregateID string) ([]DomainEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stream := s.streams[aggregateID]
	out := make([]DomainEvent, len(stream))
	copy(out, stream)
	return out, nil
}

// ListAggregateIDs 列出全部流 ID，输出有序以便测试断言
func (s *MemoryStore) ListAggregateIDs(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.streams))
	for id := range s.streams {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
