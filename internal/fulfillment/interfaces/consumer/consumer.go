// Package consumer 订阅领域事件主题并驱动履约 Saga。
// 发件箱保证至少一次投递，重复消息通过 Redis 去重键丢弃
package consumer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/wyfcoding/ecommerce/internal/fulfillment/application"
	orderdomain "github.com/wyfcoding/ecommerce/internal/order/domain"
	paymentdomain "github.com/wyfcoding/ecommerce/internal/payment/domain"
	"github.com/wyfcoding/ecommerce/pkg/cache"
	"github.com/wyfcoding/ecommerce/pkg/logger"
	"github.com/wyfcoding/ecommerce/pkg/mq"
	"github.com/wyfcoding/ecommerce/pkg/outbox"
)

// dedupeTTL 去重键保留时长，覆盖 Kafka 消费组可能的重平衡回退窗口
const dedupeTTL = 24 * time.Hour

// EventConsumer 领域事件消费者
type EventConsumer struct {
	coordinator *application.Coordinator
	cache       *cache.RedisCache
}

// NewEventConsumer 创建事件消费者
func NewEventConsumer(coordinator *application.Coordinator, c *cache.RedisCache) *EventConsumer {
	return &EventConsumer{coordinator: coordinator, cache: c}
}

// Handle 处理一条发件箱信封消息。
// 返回错误时偏移量不提交，消息会被重新投递
func (ec *EventConsumer) Handle(ctx context.Context, msg *mq.Message) error {
	var env outbox.Envelope
	if err := msg.UnmarshalPayload(&env); err != nil {
		logger.Error(ctx, "Failed to decode event envelope, dropping",
			"topic", msg.Topic, "offset", msg.Offset, "error", err)
		return nil
	}

	if ec.cache != nil {
		first, err := ec.cache.MarkProcessed(ctx, "fulfillment:events:"+env.EventID, dedupeTTL)
		if err != nil {
			return err
		}
		if !first {
			logger.Debug(ctx, "Duplicate event delivery, skipping",
				"event_id", env.EventID, "event_type", env.EventType)
			return nil
		}
	}

	switch env.EventType {
	case orderdomain.EventOrderCreated:
		var ev orderdomain.OrderCreatedEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return err
		}
		return ec.coordinator.OnOrderCreated(ctx, ev.OrderID)

	case paymentdomain.EventPaymentSucceeded:
		var ev paymentdomain.PaymentSucceededEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return err
		}
		return ec.coordinator.OnPaymentSucceeded(ctx, ev.OrderID, ev.PaymentID)

	case paymentdomain.EventPaymentFailed:
		var ev paymentdomain.PaymentFailedEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return err
		}
		return ec.coordinator.OnPaymentFailed(ctx, ev.OrderID, ev.Reason, ev.Retryable)

	case orderdomain.EventOrderCancelled:
		var ev orderdomain.OrderCancelledEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return err
		}
		return ec.coordinator.OnOrderCancelled(ctx, ev.OrderID, ev.Reason)
	}

	// 其余事件类型与履约流程无关
	return nil
}
