package eventsourcing

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/wyfcoding/ecommerce/pkg/contextx"
)

// eventRecord 事件存储行。(aggregate_id, version) 唯一索引是
// 乐观并发控制的提交点：并发写入同一版本时只有一个能插入成功
type eventRecord struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	AggregateID string    `gorm:"type:varchar(64);not null;uniqueIndex:uk_stream_version,priority:1"`
	Version     int64     `gorm:"not null;uniqueIndex:uk_stream_version,priority:2"`
	EventType   string    `gorm:"type:varchar(100);not null;index"`
	Payload     string    `gorm:"type:text;not null"`
	OccurredAt  time.Time `gorm:"not null"`
	CreatedAt   time.Time
}

// GormStore 基于 MySQL 的事件存储，每个限界上下文使用独立的事件表
type GormStore struct {
	db       *gorm.DB
	table    string
	registry *Registry
}

// NewGormStore 创建事件存储。table 为该上下文的事件表名
func NewGormStore(db *gorm.DB, table string, registry *Registry) *GormStore {
	return &GormStore{db: db, table: table, registry: registry}
}

// Migrate 创建事件表
func (s *GormStore) Migrate() error {
	return s.db.Table(s.table).AutoMigrate(&eventRecord{})
}

// Save 以 expectedVersion 为条件追加一批事件。
// 事件版本必须从 expectedVersion+1 连续递增；唯一索引冲突即判定为并发冲突
func (s *GormStore) Save(ctx context.Context, aggregateID string, events []DomainEvent, expectedVersion int64) error {
	if len(events) == 0 {
		return nil
	}

	db := s.getDB(ctx)
	next := expectedVersion
	for _, event := range events {
		next++
		payload, err := json.Marshal(event)
		if err != nil {
			return err
		}

		record := &eventRecord{
			AggregateID: aggregateID,
			Version:     next,
			EventType:   event.EventType(),
			Payload:     string(payload),
			OccurredAt:  event.OccurredAt(),
		}
		if err := db.Table(s.table).Create(record).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrVersionConflict
			}
			return err
		}
	}
	return nil
}

// Load 按版本顺序读取聚合的全部事件
func (s *GormStore) Load(ctx context.Context, aggregateID string) ([]DomainEvent, error) {
	var records []eventRecord
	err := s.getDB(ctx).Table(s.table).
		Where("aggregate_id = ?", aggregateID).
		Order("version ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	events := make([]DomainEvent, 0, len(records))
	for _, record := range records {
		event, err := s.registry.Decode(record.EventType, []byte(record.Payload))
		if err != nil {
			return nil, err
		}
		event.SetVersion(record.Version)
		events = append(events, event)
	}
	return events, nil
}

// ListAggregateIDs 返回事件表中出现过的全部聚合 ID
func (s *GormStore) ListAggregateIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.getDB(ctx).Table(s.table).
		Distinct("aggregate_id").
		Order("aggregate_id ASC").
		Pluck("aggregate_id", &ids).Error
	return ids, err
}

// getDB 优先使用 ctx 中携带的事务
func (s *GormStore) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := contextx.GetTx(ctx).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return s.db.WithContext(ctx)
}
