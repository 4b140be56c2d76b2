package outbox

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/wyfcoding/ecommerce/pkg/logger"
	"github.com/wyfcoding/ecommerce/pkg/metrics"
)

// Producer 消息投递端，由 mq.KafkaProducer 满足
type Producer interface {
	SendRaw(ctx context.Context, topic string, key string, value []byte) error
}

// Relay 发件箱中继，轮询 pending 消息并投递到 Kafka。
// 投递成功才标记 sent，失败的消息留待下一轮重试，至少送达一次
type Relay struct {
	db       *gorm.DB
	producer Producer
	topic    string

	batchSize    int
	pollInterval time.Duration
	metrics      *metrics.Metrics
}

// NewRelay 创建发件箱中继
func NewRelay(db *gorm.DB, producer Producer, topic string, batchSize int, pollInterval time.Duration, m *metrics.Metrics) *Relay {
	if batchSize <= 0 {
		batchSize = 100
	}
	if pollInterval <= 0 {
		pollInterval = 200 * time.Millisecond
	}
	return &Relay{
		db:           db,
		producer:     producer,
		topic:        topic,
		batchSize:    batchSize,
		pollInterval: pollInterval,
		metrics:      m,
	}
}

// Run 循环投递直到 ctx 取消
func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	logger.Info(ctx, "Outbox relay started", "topic", r.topic, "batch_size", r.batchSize)
	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Outbox relay stopped")
			return
		case <-ticker.C:
			if err := r.drainOnce(ctx); err != nil {
				logger.Error(ctx, "Outbox relay pass failed", "error", err)
			}
		}
	}
}

// drainOnce 处理一批 pending 消息
func (r *Relay) drainOnce(ctx context.Context) error {
	var messages []Message
	err := r.db.WithContext(ctx).
		Where("status = ?", StatusPending).
		Order("id ASC").
		Limit(r.batchSize).
		Find(&messages).Error
	if err != nil {
		return err
	}

	for i := range messages {
		msg := &messages[i]
		// 以聚合 ID 作为分区键，同一聚合的事件保持提交顺序
		if err := r.producer.SendRaw(ctx, r.topic, msg.AggregateID, []byte(msg.Payload)); err != nil {
			logger.Error(ctx, "Failed to publish outbox message",
				"event_id", msg.EventID,
				"event_type", msg.EventType,
				"error", err,
			)
			return err
		}

		err := r.db.WithContext(ctx).Model(msg).
			Updates(map[string]any{"status": StatusSent, "updated_at": time.Now()}).Error
		if err != nil {
			return err
		}

		if r.metrics != nil {
			r.metrics.OutboxPublishedTotal.Inc()
		}
	}

	if r.metrics != nil {
		var pending int64
		if err := r.db.WithContext(ctx).Model(&Message{}).
			Where("status = ?", StatusPending).
			Count(&pending).Error; err == nil {
			r.metrics.OutboxPending.Set(float64(pending))
		}
	}
	return nil
}
