package application

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/ecommerce/internal/payment/domain"
	"github.com/wyfcoding/ecommerce/pkg/errs"
	"github.com/wyfcoding/ecommerce/pkg/eventsourcing"
	"github.com/wyfcoding/ecommerce/pkg/idgen"
	"github.com/wyfcoding/ecommerce/pkg/logger"
	"github.com/wyfcoding/ecommerce/pkg/metrics"
)

// InitiatePaymentCommand 发起支付命令。
// 幂等键相同的重复发起返回首次创建的支付 ID
type InitiatePaymentCommand struct {
	OrderID        string          `json:"order_id"`
	CustomerID     string          `json:"customer_id"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	IdempotencyKey string          `json:"idempotency_key"`
}

// StartProcessingCommand 开始处理命令
type StartProcessingCommand struct {
	PaymentID string `json:"payment_id"`
}

// RecordSuccessCommand 扣款成功命令
type RecordSuccessCommand struct {
	PaymentID     string `json:"payment_id"`
	TransactionID string `json:"transaction_id"`
}

// RecordFailureCommand 扣款失败命令
type RecordFailureCommand struct {
	PaymentID string `json:"payment_id"`
	Reason    string `json:"reason"`
}

// RetryPaymentCommand 重试命令
type RetryPaymentCommand struct {
	PaymentID string `json:"payment_id"`
}

// RequestRefundCommand 退款申请命令
type RequestRefundCommand struct {
	PaymentID string          `json:"payment_id"`
	Amount    decimal.Decimal `json:"amount"`
	Reason    string          `json:"reason"`
}

// CompleteRefundCommand 退款完成命令
type CompleteRefundCommand struct {
	PaymentID string `json:"payment_id"`
	RefundID  string `json:"refund_id"`
}

// PaymentCommandService 处理支付相关的命令操作。
// 版本冲突时重新加载聚合并重新校验整个命令，不盲目重放旧命令
type PaymentCommandService struct {
	repo       domain.Repository
	idgen      idgen.Generator
	metrics    *metrics.Metrics
	retryLimit int
}

// NewPaymentCommandService 创建支付命令服务
func NewPaymentCommandService(repo domain.Repository, gen idgen.Generator, m *metrics.Metrics, retryLimit int) *PaymentCommandService {
	if retryLimit <= 0 {
		retryLimit = 3
	}
	return &PaymentCommandService{
		repo:       repo,
		idgen:      gen,
		metrics:    m,
		retryLimit: retryLimit,
	}
}

// InitiatePayment 发起支付，返回支付 ID。
// 幂等键已存在时直接返回原支付 ID，不新建聚合
func (s *PaymentCommandService) InitiatePayment(ctx context.Context, cmd InitiatePaymentCommand) (string, error) {
	if cmd.IdempotencyKey != "" {
		existing, err := s.repo.FindByIdempotencyKey(ctx, cmd.IdempotencyKey)
		if err != nil {
			s.record("initiate_payment", err)
			return "", err
		}
		if existing != "" {
			logger.Info(ctx, "Payment initiation deduplicated",
				"payment_id", existing, "idempotency_key", cmd.IdempotencyKey)
			s.record("initiate_payment", nil)
			return existing, nil
		}
	}

	paymentID := idgen.WithPrefix(s.idgen, "PAY")
	payment, err := domain.NewPayment(paymentID, cmd.OrderID, cmd.CustomerID, cmd.Amount, cmd.Currency, cmd.IdempotencyKey)
	if err != nil {
		s.record("initiate_payment", err)
		return "", err
	}

	err = s.repo.Save(ctx, payment)
	if err != nil {
		// 并发的相同幂等键发起输掉唯一索引竞争时改查原支付
		if errs.CodeOf(err) == "duplicate_initiation" {
			existing, lookupErr := s.repo.FindByIdempotencyKey(ctx, cmd.IdempotencyKey)
			if lookupErr == nil && existing != "" {
				s.record("initiate_payment", nil)
				return existing, nil
			}
		}
		s.record("initiate_payment", err)
		return "", err
	}
	s.record("initiate_payment", nil)
	logger.Info(ctx, "Payment initiated",
		"payment_id", paymentID, "order_id", cmd.OrderID, "amount", cmd.Amount, "currency", cmd.Currency)
	return paymentID, nil
}

// StartProcessing 标记通道开始处理
func (s *PaymentCommandService) StartProcessing(ctx context.Context, cmd StartProcessingCommand) error {
	return s.execute(ctx, "start_processing", cmd.PaymentID, func(p *domain.Payment) error {
		return p.StartProcessing()
	})
}

// RecordSuccess 记录扣款成功
func (s *PaymentCommandService) RecordSuccess(ctx context.Context, cmd RecordSuccessCommand) error {
	return s.execute(ctx, "record_success", cmd.PaymentID, func(p *domain.Payment) error {
		return p.RecordSuccess(cmd.TransactionID)
	})
}

// RecordFailure 记录扣款失败
func (s *PaymentCommandService) RecordFailure(ctx context.Context, cmd RecordFailureCommand) error {
	return s.execute(ctx, "record_failure", cmd.PaymentID, func(p *domain.Payment) error {
		return p.RecordFailure(cmd.Reason)
	})
}

// RetryPayment 失败后开启新一次扣款尝试
func (s *PaymentCommandService) RetryPayment(ctx context.Context, cmd RetryPaymentCommand) error {
	return s.execute(ctx, "retry_payment", cmd.PaymentID, func(p *domain.Payment) error {
		return p.Retry()
	})
}

// RequestRefund 申请退款，返回退款 ID
func (s *PaymentCommandService) RequestRefund(ctx context.Context, cmd RequestRefundCommand) (string, error) {
	refundID := idgen.WithPrefix(s.idgen, "RFD")
	err := s.execute(ctx, "request_refund", cmd.PaymentID, func(p *domain.Payment) error {
		return p.RequestRefund(refundID, cmd.Amount, cmd.Reason)
	})
	if err != nil {
		return "", err
	}
	return refundID, nil
}

// CompleteRefund 完成退款
func (s *PaymentCommandService) CompleteRefund(ctx context.Context, cmd CompleteRefundCommand) error {
	return s.execute(ctx, "complete_refund", cmd.PaymentID, func(p *domain.Payment) error {
		return p.CompleteRefund(cmd.RefundID)
	})
}

// execute 加载聚合、执行命令、条件追加；版本冲突时整体重做
func (s *PaymentCommandService) execute(ctx context.Context, command, paymentID string, fn func(*domain.Payment) error) error {
	var lastErr error
	for attempt := 0; attempt < s.retryLimit; attempt++ {
		payment, err := s.repo.Load(ctx, paymentID)
		if err != nil {
			s.record(command, err)
			return err
		}

		if err := fn(payment); err != nil {
			s.record(command, err)
			return err
		}

		if len(payment.GetUncommittedEvents()) == 0 {
			s.record(command, nil)
			return nil
		}

		err = s.repo.Save(ctx, payment)
		if err == nil {
			s.record(command, nil)
			return nil
		}
		if !errors.Is(err, eventsourcing.ErrVersionConflict) {
			s.record(command, err)
			return err
		}

		if s.metrics != nil {
			s.metrics.VersionConflictsTotal.Inc()
		}
		logger.Warn(ctx, "Version conflict, reloading aggregate",
			"command", command,
			"payment_id", paymentID,
			"attempt", attempt+1,
		)
		lastErr = err
	}
	s.record(command, lastErr)
	return lastErr
}

func (s *PaymentCommandService) record(command string, err error) {
	if s.metrics == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	s.metrics.RecordCommand(command, result)
}
