package application

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/ecommerce/internal/payment/domain"
)

// PaymentView 支付查询视图
type PaymentView struct {
	PaymentID      string          `json:"payment_id"`
	OrderID        string          `json:"order_id"`
	CustomerID     string          `json:"customer_id"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	Status         string          `json:"status"`
	AttemptCount   int             `json:"attempt_count"`
	Retryable      bool            `json:"retryable"`
	TotalRefunded  decimal.Decimal `json:"total_refunded"`
	TransactionID  string          `json:"transaction_id,omitempty"`
	IdempotencyKey string          `json:"idempotency_key"`
	Attempts       []AttemptView   `json:"attempts"`
	Refunds        []RefundView    `json:"refunds"`
	Version        int64           `json:"version"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// AttemptView 扣款尝试视图
type AttemptView struct {
	AttemptNo     int       `json:"attempt_no"`
	Status        string    `json:"status"`
	StartedAt     time.Time `json:"started_at"`
	CompletedAt   time.Time `json:"completed_at,omitzero"`
	FailureReason string    `json:"failure_reason,omitempty"`
}

// RefundView 退款视图
type RefundView struct {
	RefundID    string          `json:"refund_id"`
	Amount      decimal.Decimal `json:"amount"`
	Status      string          `json:"status"`
	Reason      string          `json:"reason,omitempty"`
	RequestedAt time.Time       `json:"requested_at"`
	CompletedAt time.Time       `json:"completed_at,omitzero"`
}

// PaymentQueryService 支付查询服务，从事件流重放构造视图
type PaymentQueryService struct {
	repo domain.Repository
}

// NewPaymentQueryService 创建支付查询服务
func NewPaymentQueryService(repo domain.Repository) *PaymentQueryService {
	return &PaymentQueryService{repo: repo}
}

// GetPayment 查询单笔支付
func (s *PaymentQueryService) GetPayment(ctx context.Context, paymentID string) (*PaymentView, error) {
	p, err := s.repo.Load(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	attempts := make([]AttemptView, 0, len(p.Attempts))
	for _, a := range p.Attempts {
		attempts = append(attempts, AttemptView{
			AttemptNo:     a.AttemptNo,
			Status:        string(a.Status),
			StartedAt:     a.StartedAt,
			CompletedAt:   a.CompletedAt,
			FailureReason: a.FailureReason,
		})
	}

	refunds := make([]RefundView, 0, len(p.Refunds))
	for _, r := range p.RefundList() {
		refunds = append(refunds, RefundView{
			RefundID:    r.RefundID,
			Amount:      r.Amount,
			Status:      string(r.Status),
			Reason:      r.Reason,
			RequestedAt: r.RequestedAt,
			CompletedAt: r.CompletedAt,
		})
	}

	return &PaymentView{
		PaymentID:      p.ID,
		OrderID:        p.OrderID,
		CustomerID:     p.CustomerID,
		Amount:         p.Amount,
		Currency:       p.Currency,
		Status:         string(p.Status),
		AttemptCount:   p.AttemptCount,
		Retryable:      p.Retryable(),
		TotalRefunded:  p.TotalRefunded,
		TransactionID:  p.TransactionID,
		IdempotencyKey: p.IdempotencyKey,
		Attempts:       attempts,
		Refunds:        refunds,
		Version:        p.Version(),
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}, nil
}
