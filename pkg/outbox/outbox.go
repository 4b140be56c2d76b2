// Package outbox 实现事务发件箱：领域事件与业务数据同事务落库，由中继轮询投递到 Kafka
package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wyfcoding/ecommerce/pkg/contextx"
)

// 消息状态
const (
	StatusPending = "pending"
	StatusSent    = "sent"
)

// Message 发件箱记录。
// 自增主键即同库提交序，中继按它投递，同一事务写入的多条事件不会乱序
type Message struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement"`
	EventID     string    `gorm:"type:varchar(36);uniqueIndex"`
	AggregateID string    `gorm:"type:varchar(64);index"`
	EventType   string    `gorm:"type:varchar(100);index"`
	Payload     string    `gorm:"type:text"`
	Status      string    `gorm:"type:varchar(20);index;default:'pending'"`
	CreatedAt   time.Time `gorm:"index"`
	UpdatedAt   time.Time
}

// TableName 指定表名
func (Message) TableName() string {
	return "outbox_messages"
}

// Envelope 跨边界传输的事件信封
type Envelope struct {
	EventID     string          `json:"event_id"`
	AggregateID string          `json:"aggregate_id"`
	EventType   string          `json:"event_type"`
	Version     int64           `json:"version"`
	OccurredAt  time.Time       `json:"occurred_at"`
	Payload     json.RawMessage `json:"payload"`
}

// Store 发件箱写入端
type Store struct {
	db *gorm.DB
}

// NewStore 创建发件箱写入端
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Append 在当前事务内写入发件箱记录。
// 如果 ctx 中携带事务则复用，保证与事件流写入同一事务提交
func (s *Store) Append(ctx context.Context, aggregateID, eventType string, version int64, occurredAt time.Time, payload []byte) error {
	env := Envelope{
		EventID:     uuid.New().String(),
		AggregateID: aggregateID,
		EventType:   eventType,
		Version:     version,
		OccurredAt:  occurredAt,
		Payload:     payload,
	}
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}

	msg := Message{
		EventID:     env.EventID,
		AggregateID: aggregateID,
		EventType:   eventType,
		Payload:     string(body),
		Status:      StatusPending,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	db := s.db
	if tx, ok := contextx.GetTx(ctx).(*gorm.DB); ok && tx != nil {
		db = tx
	}
	return db.WithContext(ctx).Create(&msg).Error
}

// PendingCount 统计待投递的消息数量
func (s *Store) PendingCount(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Message{}).
		Where("status = ?", StatusPending).
		Count(&count).Error
	return count, err
}

// Cleanup 删除指定时间之前已投递的消息
func (s *Store) Cleanup(ctx context.Context, before time.Time) error {
	return s.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", StatusSent, before).
		Delete(&Message{}).Error
}
