// Package domain 包含支付服务的领域模型
package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/ecommerce/pkg/errs"
	"github.com/wyfcoding/ecommerce/pkg/eventsourcing"
	"github.com/wyfcoding/ecommerce/pkg/fsm"
)

// Status 支付状态
type Status string

const (
	StatusPending           Status = "PENDING"
	StatusProcessing        Status = "PROCESSING"
	StatusSucceeded         Status = "SUCCEEDED"
	StatusFailed            Status = "FAILED"
	StatusPartiallyRefunded Status = "PARTIALLY_REFUNDED"
	StatusRefunded          Status = "REFUNDED"
)

// MaxAttempts 单笔支付允许的扣款尝试总数上限
const MaxAttempts = 3

// 状态机触发事件
const (
	triggerProcess       = "PROCESS"
	triggerSucceed       = "SUCCEED"
	triggerFail          = "FAIL"
	triggerRetry         = "RETRY"
	triggerRequestRefund = "REQUEST_REFUND"
	triggerRefundPartial = "REFUND_PARTIAL"
	triggerRefundFull    = "REFUND_FULL"
)

// triggerTargets 触发事件的规范目标状态，用于非法迁移错误信息
var triggerTargets = map[string]Status{
	triggerProcess:       StatusProcessing,
	triggerSucceed:       StatusSucceeded,
	triggerFail:          StatusFailed,
	triggerRetry:         StatusPending,
	triggerRequestRefund: StatusPartiallyRefunded,
	triggerRefundPartial: StatusPartiallyRefunded,
	triggerRefundFull:    StatusRefunded,
}

// AttemptStatus 扣款尝试状态
type AttemptStatus string

const (
	AttemptStarted   AttemptStatus = "STARTED"
	AttemptSucceeded AttemptStatus = "SUCCEEDED"
	AttemptFailed    AttemptStatus = "FAILED"
)

// PaymentAttempt 一次扣款尝试
type PaymentAttempt struct {
	AttemptNo     int           `json:"attempt_no"`
	Status        AttemptStatus `json:"status"`
	StartedAt     time.Time     `json:"started_at"`
	CompletedAt   time.Time     `json:"completed_at"`
	FailureReason string        `json:"failure_reason"`
}

// RefundStatus 退款状态
type RefundStatus string

const (
	RefundRequested RefundStatus = "REQUESTED"
	RefundCompleted RefundStatus = "COMPLETED"
)

// Refund 一笔退款，从申请到完成两阶段
type Refund struct {
	RefundID    string          `json:"refund_id"`
	Amount      decimal.Decimal `json:"amount"`
	Status      RefundStatus    `json:"status"`
	Reason      string          `json:"reason"`
	RequestedAt time.Time       `json:"requested_at"`
	CompletedAt time.Time       `json:"completed_at"`
}

// Payment 支付聚合根。
// 恒等式 TotalRefunded <= Amount 且尝试次数不超过 MaxAttempts
type Payment struct {
	eventsourcing.AggregateRoot

	ID             string
	OrderID        string
	CustomerID     string
	Amount         decimal.Decimal
	Currency       string
	Status         Status
	Attempts       []PaymentAttempt
	AttemptCount   int
	Refunds        map[string]*Refund
	TotalRefunded  decimal.Decimal
	TransactionID  string
	IdempotencyKey string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewPayment 发起支付，第一次扣款尝试随之开启
func NewPayment(id, orderID, customerID string, amount decimal.Decimal, currency, idempotencyKey string) (*Payment, error) {
	if id == "" || orderID == "" || customerID == "" {
		return nil, errs.Validationf("missing_field", "payment id, order id and customer id are required")
	}
	if currency == "" {
		return nil, errs.Validationf("missing_field", "currency is required")
	}
	if idempotencyKey == "" {
		return nil, errs.Validationf("missing_field", "idempotency key is required")
	}
	if !amount.IsPositive() {
		return nil, errs.Validationf("invalid_amount", "payment amount must be positive, got %s", amount)
	}

	p := emptyPayment()
	p.ApplyChange(p, &PaymentInitiatedEvent{
		BaseEvent:      eventsourcing.NewBaseEvent(),
		PaymentID:      id,
		OrderID:        orderID,
		CustomerID:     customerID,
		Amount:         amount,
		Currency:       currency,
		IdempotencyKey: idempotencyKey,
	})
	return p, nil
}

// LoadPayment 从事件流重放恢复支付
func LoadPayment(events []eventsourcing.DomainEvent) *Payment {
	p := emptyPayment()
	p.Replay(p, events)
	return p
}

func emptyPayment() *Payment {
	return &Payment{
		Refunds:       make(map[string]*Refund),
		TotalRefunded: decimal.Zero,
	}
}

// AggregateID 返回支付 ID
func (p *Payment) AggregateID() string { return p.ID }

// machine 以当前状态重建状态机。迁移表即支付的扣款/退款生命周期
func (p *Payment) machine() *fsm.Machine[string, string] {
	m := fsm.NewMachine[string, string](string(p.Status))
	m.AddTransition(string(StatusPending), triggerProcess, string(StatusProcessing))
	m.AddTransition(string(StatusPending), triggerSucceed, string(StatusSucceeded))
	m.AddTransition(string(StatusPending), triggerFail, string(StatusFailed))
	m.AddTransition(string(StatusProcessing), triggerSucceed, string(StatusSucceeded))
	m.AddTransition(string(StatusProcessing), triggerFail, string(StatusFailed))
	m.AddTransition(string(StatusFailed), triggerRetry, string(StatusPending))
	m.AddTransition(string(StatusSucceeded), triggerRequestRefund, string(StatusSucceeded))
	m.AddTransition(string(StatusSucceeded), triggerRefundPartial, string(StatusPartiallyRefunded))
	m.AddTransition(string(StatusSucceeded), triggerRefundFull, string(StatusRefunded))
	m.AddTransition(string(StatusPartiallyRefunded), triggerRequestRefund, string(StatusPartiallyRefunded))
	m.AddTransition(string(StatusPartiallyRefunded), triggerRefundPartial, string(StatusPartiallyRefunded))
	m.AddTransition(string(StatusPartiallyRefunded), triggerRefundFull, string(StatusRefunded))
	return m
}

// guard 校验触发事件在当前状态下是否合法
func (p *Payment) guard(trigger string) error {
	if !p.machine().Can(trigger) {
		return errs.Transition("payment", string(p.Status), string(triggerTargets[trigger]))
	}
	return nil
}

// StartProcessing 标记通道开始处理当前尝试
func (p *Payment) StartProcessing() error {
	if err := p.guard(triggerProcess); err != nil {
		return err
	}
	p.ApplyChange(p, &PaymentProcessingStartedEvent{
		BaseEvent: eventsourcing.NewBaseEvent(),
		PaymentID: p.ID,
		AttemptNo: p.AttemptCount,
	})
	return nil
}

// RecordSuccess 记录扣款成功，支付进入终态前的成功态
func (p *Payment) RecordSuccess(transactionID string) error {
	if err := p.guard(triggerSucceed); err != nil {
		return err
	}
	p.ApplyChange(p, &PaymentSucceededEvent{
		BaseEvent:     eventsourcing.NewBaseEvent(),
		PaymentID:     p.ID,
		OrderID:       p.OrderID,
		AttemptNo:     p.AttemptCount,
		TransactionID: transactionID,
		SucceededAt:   time.Now().UTC(),
	})
	return nil
}

// RecordFailure 记录扣款失败。
// 尝试次数达到上限时失败为终态，Retryable 置 false
func (p *Payment) RecordFailure(reason string) error {
	if err := p.guard(triggerFail); err != nil {
		return err
	}
	if reason == "" {
		return errs.Validationf("missing_field", "failure reason is required")
	}
	p.ApplyChange(p, &PaymentFailedEvent{
		BaseEvent: eventsourcing.NewBaseEvent(),
		PaymentID: p.ID,
		OrderID:   p.OrderID,
		AttemptNo: p.AttemptCount,
		Reason:    reason,
		Retryable: p.AttemptCount < MaxAttempts,
	})
	return nil
}

// Retry 在失败后开启新一次扣款尝试，总尝试次数不超过 MaxAttempts
func (p *Payment) Retry() error {
	if err := p.guard(triggerRetry); err != nil {
		return err
	}
	if p.AttemptCount >= MaxAttempts {
		return errs.Exhausted("max_attempts_exceeded", int64(p.AttemptCount), MaxAttempts,
			"payment %s has exhausted its attempts", p.ID)
	}
	p.ApplyChange(p, &PaymentRetriedEvent{
		BaseEvent: eventsourcing.NewBaseEvent(),
		PaymentID: p.ID,
		AttemptNo: p.AttemptCount + 1,
	})
	return nil
}

// Retryable 判断失败后是否还允许重试
func (p *Payment) Retryable() bool {
	return p.Status == StatusFailed && p.AttemptCount < MaxAttempts
}

// RequestRefund 申请退款。
// 已退与在途退款之和加上本次金额不得超过实扣金额
func (p *Payment) RequestRefund(refundID string, amount decimal.Decimal, reason string) error {
	if err := p.guard(triggerRequestRefund); err != nil {
		return err
	}
	if refundID == "" {
		return errs.Validationf("missing_field", "refund id is required")
	}
	if !amount.IsPositive() {
		return errs.Validationf("invalid_amount", "refund amount must be positive, got %s", amount)
	}
	if _, exists := p.Refunds[refundID]; exists {
		return errs.Validationf("duplicate_refund", "refund %s already exists on payment %s", refundID, p.ID)
	}
	refundable := p.Amount.Sub(p.TotalRefunded).Sub(p.outstandingRefunds())
	if amount.GreaterThan(refundable) {
		return errs.Exhausted("refund_exceeded",
			refundable.Shift(2).IntPart(), amount.Shift(2).IntPart(),
			"refund of %s exceeds refundable balance %s on payment %s", amount, refundable, p.ID)
	}
	p.ApplyChange(p, &RefundRequestedEvent{
		BaseEvent: eventsourcing.NewBaseEvent(),
		PaymentID: p.ID,
		RefundID:  refundID,
		Amount:    amount,
		Reason:    reason,
	})
	return nil
}

// CompleteRefund 完成一笔已申请的退款。
// 累计退款达到实扣金额时支付进入 Refunded 终态，否则为 Partially_Refunded
func (p *Payment) CompleteRefund(refundID string) error {
	refund, ok := p.Refunds[refundID]
	if !ok {
		return errs.Validationf("refund_not_found", "refund %s does not exist on payment %s", refundID, p.ID)
	}
	if refund.Status != RefundRequested {
		return errs.Transition("refund", string(refund.Status), string(RefundCompleted))
	}
	trigger := triggerRefundPartial
	if p.TotalRefunded.Add(refund.Amount).GreaterThanOrEqual(p.Amount) {
		trigger = triggerRefundFull
	}
	if err := p.guard(trigger); err != nil {
		return err
	}
	p.ApplyChange(p, &RefundCompletedEvent{
		BaseEvent: eventsourcing.NewBaseEvent(),
		PaymentID: p.ID,
		RefundID:  refundID,
	})
	return nil
}

// outstandingRefunds 统计已申请未完成的退款总额
func (p *Payment) outstandingRefunds() decimal.Decimal {
	sum := decimal.Zero
	for _, r := range p.Refunds {
		if r.Status == RefundRequested {
			sum = sum.Add(r.Amount)
		}
	}
	return sum
}

// RefundList 按申请时间返回全部退款
func (p *Payment) RefundList() []Refund {
	out := make([]Refund, 0, len(p.Refunds))
	for _, r := range p.Refunds {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RequestedAt.Equal(out[j].RequestedAt) {
			return out[i].RefundID < out[j].RefundID
		}
		return out[i].RequestedAt.Before(out[j].RequestedAt)
	})
	return out
}

// Apply 按事件类型折叠状态
func (p *Payment) Apply(event eventsourcing.DomainEvent) {
	switch e := event.(type) {
	case *PaymentInitiatedEvent:
		p.ID = e.PaymentID
		p.OrderID = e.OrderID
		p.CustomerID = e.CustomerID
		p.Amount = e.Amount
		p.Currency = e.Currency
		p.IdempotencyKey = e.IdempotencyKey
		p.Status = StatusPending
		p.AttemptCount = 1
		p.Attempts = append(p.Attempts, PaymentAttempt{
			AttemptNo: 1,
			Status:    AttemptStarted,
			StartedAt: e.OccurredAt(),
		})
		p.CreatedAt = e.OccurredAt()

	case *PaymentProcessingStartedEvent:
		p.Status = StatusProcessing

	case *PaymentSucceededEvent:
		p.Status = StatusSucceeded
		p.TransactionID = e.TransactionID
		if a := p.currentAttempt(); a != nil {
			a.Status = AttemptSucceeded
			a.CompletedAt = e.OccurredAt()
		}

	case *PaymentFailedEvent:
		p.Status = StatusFailed
		if a := p.currentAttempt(); a != nil {
			a.Status = AttemptFailed
			a.CompletedAt = e.OccurredAt()
			a.FailureReason = e.Reason
		}

	case *PaymentRetriedEvent:
		p.Status = StatusPending
		p.AttemptCount = e.AttemptNo
		p.Attempts = append(p.Attempts, PaymentAttempt{
			AttemptNo: e.AttemptNo,
			Status:    AttemptStarted,
			StartedAt: e.OccurredAt(),
		})

	case *RefundRequestedEvent:
		p.Refunds[e.RefundID] = &Refund{
			RefundID:    e.RefundID,
			Amount:      e.Amount,
			Status:      RefundRequested,
			Reason:      e.Reason,
			RequestedAt: e.OccurredAt(),
		}

	case *RefundCompletedEvent:
		if r, ok := p.Refunds[e.RefundID]; ok && r.Status == RefundRequested {
			r.Status = RefundCompleted
			r.CompletedAt = e.OccurredAt()
			p.TotalRefunded = p.TotalRefunded.Add(r.Amount)
		}
		if p.TotalRefunded.GreaterThanOrEqual(p.Amount) {
			p.Status = StatusRefunded
		} else {
			p.Status = StatusPartiallyRefunded
		}
	}
	p.UpdatedAt = event.OccurredAt()
}

// currentAttempt 返回最近一次扣款尝试
func (p *Payment) currentAttempt() *PaymentAttempt {
	if len(p.Attempts) == 0 {
		return nil
	}
	return &p.Attempts[len(p.Attempts)-1]
}
