package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/ecommerce/pkg/eventsourcing"
)

// 支付事件类型名
const (
	EventPaymentInitiated         = "PaymentInitiated"
	EventPaymentProcessingStarted = "PaymentProcessingStarted"
	EventPaymentSucceeded         = "PaymentSucceeded"
	EventPaymentFailed            = "PaymentFailed"
	EventPaymentRetried           = "PaymentRetried"
	EventRefundRequested          = "RefundRequested"
	EventRefundCompleted          = "RefundCompleted"
)

// PaymentInitiatedEvent 支付发起事件，开启第一次扣款尝试
type PaymentInitiatedEvent struct {
	eventsourcing.BaseEvent
	PaymentID      string          `json:"payment_id"`
	OrderID        string          `json:"order_id"`
	CustomerID     string          `json:"customer_id"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	IdempotencyKey string          `json:"idempotency_key"`
}

func (e *PaymentInitiatedEvent) EventType() string   { return EventPaymentInitiated }
func (e *PaymentInitiatedEvent) AggregateID() string { return e.PaymentID }

// PaymentProcessingStartedEvent 通道开始处理事件
type PaymentProcessingStartedEvent struct {
	eventsourcing.BaseEvent
	PaymentID string `json:"payment_id"`
	AttemptNo int    `json:"attempt_no"`
}

func (e *PaymentProcessingStartedEvent) EventType() string   { return EventPaymentProcessingStarted }
func (e *PaymentProcessingStartedEvent) AggregateID() string { return e.PaymentID }

// PaymentSucceededEvent 扣款成功事件
type PaymentSucceededEvent struct {
	eventsourcing.BaseEvent
	PaymentID     string    `json:"payment_id"`
	OrderID       string    `json:"order_id"`
	AttemptNo     int       `json:"attempt_no"`
	TransactionID string    `json:"transaction_id"`
	SucceededAt   time.Time `json:"succeeded_at"`
}

func (e *PaymentSucceededEvent) EventType() string   { return EventPaymentSucceeded }
func (e *PaymentSucceededEvent) AggregateID() string { return e.PaymentID }

// PaymentFailedEvent 扣款失败事件。
// Retryable 为 false 表示尝试次数已达上限，失败为终态
type PaymentFailedEvent struct {
	eventsourcing.BaseEvent
	PaymentID string `json:"payment_id"`
	OrderID   string `json:"order_id"`
	AttemptNo int    `json:"attempt_no"`
	Reason    string `json:"reason"`
	Retryable bool   `json:"retryable"`
}

func (e *PaymentFailedEvent) EventType() string   { return EventPaymentFailed }
func (e *PaymentFailedEvent) AggregateID() string { return e.PaymentID }

// PaymentRetriedEvent 重试事件，开启新一次扣款尝试
type PaymentRetriedEvent struct {
	eventsourcing.BaseEvent
	PaymentID string `json:"payment_id"`
	AttemptNo int    `json:"attempt_no"`
}

func (e *PaymentRetriedEvent) EventType() string   { return EventPaymentRetried }
func (e *PaymentRetriedEvent) AggregateID() string { return e.PaymentID }

// RefundRequestedEvent 退款申请事件
type RefundRequestedEvent struct {
	eventsourcing.BaseEvent
	PaymentID string          `json:"payment_id"`
	RefundID  string          `json:"refund_id"`
	Amount    decimal.Decimal `json:"amount"`
	Reason    string          `json:"reason"`
}

func (e *RefundRequestedEvent) EventType() string   { return EventRefundRequested }
func (e *RefundRequestedEvent) AggregateID() string { return e.PaymentID }

// RefundCompletedEvent 退款完成事件
type RefundCompletedEvent struct {
	eventsourcing.BaseEvent
	PaymentID string `json:"payment_id"`
	RefundID  string `json:"refund_id"`
}

func (e *RefundCompletedEvent) EventType() string   { return EventRefundCompleted }
func (e *RefundCompletedEvent) AggregateID() string { return e.PaymentID }

// RegisterEvents 向注册表注册全部支付事件类型
func RegisterEvents(r *eventsourcing.Registry) {
	r.Register(EventPaymentInitiated, func() eventsourcing.DomainEvent { return &PaymentInitiatedEvent{} })
	r.Register(EventPaymentProcessingStarted, func() eventsourcing.DomainEvent { return &PaymentProcessingStartedEvent{} })
	r.Register(EventPaymentSucceeded, func() eventsourcing.DomainEvent { return &PaymentSucceededEvent{} })
	r.Register(EventPaymentFailed, func() eventsourcing.DomainEvent { return &PaymentFailedEvent{} })
	r.Register(EventPaymentRetried, func() eventsourcing.DomainEvent { return &PaymentRetriedEvent{} })
	r.Register(EventRefundRequested, func() eventsourcing.DomainEvent { return &RefundRequestedEvent{} })
	r.Register(EventRefundCompleted, func() eventsourcing.DomainEvent { return &RefundCompletedEvent{} })
}
