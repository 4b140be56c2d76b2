// Package application 实现订单履约 Saga 协调器。
// 协调器订阅三个聚合发布的事件，据此下发下一步命令；
// 失败时按相反顺序补偿，预占失败的订单绝不触达支付
package application

import (
	"context"
	"fmt"
	"time"

	"github.com/wyfcoding/ecommerce/internal/fulfillment/domain"
	"github.com/wyfcoding/ecommerce/pkg/logger"
	"github.com/wyfcoding/ecommerce/pkg/metrics"
	"github.com/wyfcoding/ecommerce/pkg/saga"
)

// Coordinator 订单履约协调器。
// 不持有内存状态，每次事件到达时从存储加载 Saga 记录再决策，
// 崩溃重启后凭记录中的下一步恢复
type Coordinator struct {
	store     domain.Store
	inventory domain.InventoryGateway
	orders    domain.OrderGateway
	payments  domain.PaymentGateway
	metrics   *metrics.Metrics
}

// NewCoordinator 创建协调器
func NewCoordinator(store domain.Store, inv domain.InventoryGateway, ord domain.OrderGateway, pay domain.PaymentGateway, m *metrics.Metrics) *Coordinator {
	return &Coordinator{
		store:     store,
		inventory: inv,
		orders:    ord,
		payments:  pay,
		metrics:   m,
	}
}

// OnOrderCreated 处理订单创建事件：预占库存、确认订单、发起支付。
// 任何一步失败时释放已预占的库存并取消订单
func (c *Coordinator) OnOrderCreated(ctx context.Context, orderID string) error {
	existing, err := c.store.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if existing != nil {
		logger.Info(ctx, "Saga already started for order, skipping", "order_id", orderID)
		return nil
	}

	snapshot, err := c.orders.Snapshot(ctx, orderID)
	if err != nil {
		return fmt.Errorf("load order snapshot: %w", err)
	}

	record := &domain.SagaRecord{
		OrderID:   orderID,
		Status:    domain.StatusRunning,
		NextStep:  domain.StepReserveStock,
		Lines:     snapshot.Lines,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := c.store.Save(ctx, record); err != nil {
		return err
	}
	if c.metrics != nil {
		c.metrics.SagasActive.Inc()
	}

	var paymentID string
	steps := []saga.Step{
		&reserveStockStep{coordinator: c, orderID: orderID, lines: snapshot.Lines},
		&confirmOrderStep{coordinator: c, orderID: orderID},
		&initiatePaymentStep{coordinator: c, snapshot: snapshot, paymentID: &paymentID},
	}

	if err := saga.Run(ctx, steps...); err != nil {
		// 预占失败或后续步骤失败：取消订单。预占步骤未成功时从未触达支付
		if cancelErr := c.orders.Cancel(ctx, orderID, "fulfillment failed: "+err.Error()); cancelErr != nil {
			logger.Warn(ctx, "Order cancel rejected during compensation",
				"order_id", orderID, "error", cancelErr)
		}
		c.finish(ctx, record, domain.StatusCompensated, err.Error())
		return nil
	}

	record.Status = domain.StatusAwaitingPayment
	record.NextStep = domain.StepRecordPaymentSuccess
	record.PaymentID = paymentID
	record.UpdatedAt = time.Now().UTC()
	return c.store.Save(ctx, record)
}

// OnPaymentSucceeded 处理支付成功事件：在订单上记录支付成功，
// 确认并落实全部库存预占
func (c *Coordinator) OnPaymentSucceeded(ctx context.Context, orderID, paymentID string) error {
	record, err := c.store.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if record == nil {
		logger.Warn(ctx, "Payment succeeded for unknown saga", "order_id", orderID, "payment_id", paymentID)
		return nil
	}
	if record.Status != domain.StatusAwaitingPayment {
		logger.Info(ctx, "Payment succeeded but saga not awaiting payment, skipping",
			"order_id", orderID, "status", record.Status)
		return nil
	}

	// 取消可能与支付成功竞速；被拒绝的命令只记录，不视为失败
	if err := c.orders.RecordPaymentSuccess(ctx, orderID, paymentID); err != nil {
		logger.Warn(ctx, "Record payment success rejected",
			"order_id", orderID, "payment_id", paymentID, "error", err)
	}
	for _, line := range record.Lines {
		commitErr := c.inventory.ConfirmAndCommit(ctx, orderID, line)
		if commitErr != nil {
			logger.Warn(ctx, "Stock commit rejected",
				"order_id", orderID, "sku", line.SKU, "error", commitErr)
		}
		c.recordStep(domain.StepRecordPaymentSuccess, commitErr)
	}

	c.finish(ctx, record, domain.StatusCompleted, "")
	return nil
}

// OnPaymentFailed 处理支付失败事件。可重试的失败留给支付侧继续尝试；
// 终态失败释放库存预占并取消订单，这是 Saga 的标准补偿路径
func (c *Coordinator) OnPaymentFailed(ctx context.Context, orderID, reason string, retryable bool) error {
	if retryable {
		logger.Info(ctx, "Payment failed but retryable, keeping saga open",
			"order_id", orderID, "reason", reason)
		return nil
	}

	record, err := c.store.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if record == nil || record.Status != domain.StatusAwaitingPayment {
		return nil
	}

	if err := c.orders.RecordPaymentFailure(ctx, orderID, reason); err != nil {
		logger.Warn(ctx, "Record payment failure rejected", "order_id", orderID, "error", err)
	}
	c.releaseLines(ctx, orderID, record.Lines, "payment failed")
	if err := c.orders.Cancel(ctx, orderID, "payment failed: "+reason); err != nil {
		logger.Warn(ctx, "Order cancel rejected during compensation", "order_id", orderID, "error", err)
	}

	c.finish(ctx, record, domain.StatusCompensated, reason)
	return nil
}

// OnOrderCancelled 处理订单取消事件：若 Saga 仍在途则释放库存预占
func (c *Coordinator) OnOrderCancelled(ctx context.Context, orderID, reason string) error {
	record, err := c.store.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if record == nil {
		return nil
	}
	if record.Status != domain.StatusRunning && record.Status != domain.StatusAwaitingPayment {
		return nil
	}

	c.releaseLines(ctx, orderID, record.Lines, "order cancelled")
	c.finish(ctx, record, domain.StatusCompensated, reason)
	return nil
}

// releaseLines 释放订单的全部库存预占，拒绝只记录不中断
func (c *Coordinator) releaseLines(ctx context.Context, orderID string, lines []domain.ReservationLine, reason string) {
	for _, line := range lines {
		if err := c.inventory.Release(ctx, orderID, line, reason); err != nil {
			logger.Warn(ctx, "Reservation release rejected",
				"order_id", orderID, "sku", line.SKU, "error", err)
		}
	}
}

// finish 将 Saga 记录收束到终态
func (c *Coordinator) finish(ctx context.Context, record *domain.SagaRecord, status domain.Status, reason string) {
	record.Status = status
	record.NextStep = domain.StepDone
	record.Reason = reason
	record.UpdatedAt = time.Now().UTC()
	if err := c.store.Save(ctx, record); err != nil {
		logger.Error(ctx, "Failed to persist saga record",
			"order_id", record.OrderID, "status", status, "error", err)
	}
	if c.metrics != nil {
		c.metrics.SagasActive.Dec()
	}
}

func (c *Coordinator) recordStep(step string, err error) {
	if c.metrics == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.metrics.RecordSagaStep(step, result)
}

// reserveStockStep 正向预占全部订单行，补偿时释放已预占的行
type reserveStockStep struct {
	saga.BaseStep
	coordinator *Coordinator
	orderID     string
	lines       []domain.ReservationLine
	reserved    []domain.ReservationLine
}

func (s *reserveStockStep) Name() string { return domain.StepReserveStock }

func (s *reserveStockStep) Execute(ctx context.Context) error {
	for _, line := range s.lines {
		if err := s.coordinator.inventory.Reserve(ctx, s.orderID, line); err != nil {
			s.coordinator.recordStep(s.Name(), err)
			return err
		}
		s.reserved = append(s.reserved, line)
	}
	s.coordinator.recordStep(s.Name(), nil)
	return nil
}

func (s *reserveStockStep) Compensate(ctx context.Context) error {
	s.coordinator.releaseLines(ctx, s.orderID, s.reserved, "fulfillment compensation")
	return nil
}

// confirmOrderStep 确认订单；补偿由外层的取消命令完成
type confirmOrderStep struct {
	saga.BaseStep
	coordinator *Coordinator
	orderID     string
}

func (s *confirmOrderStep) Name() string { return domain.StepConfirmOrder }

func (s *confirmOrderStep) Execute(ctx context.Context) error {
	err := s.coordinator.orders.Confirm(ctx, s.orderID)
	s.coordinator.recordStep(s.Name(), err)
	return err
}

// initiatePaymentStep 发起支付并在订单上记录待支付。
// 幂等键取自订单 ID，重复投递的创建事件不会重复扣款
type initiatePaymentStep struct {
	saga.BaseStep
	coordinator *Coordinator
	snapshot    *domain.OrderSnapshot
	paymentID   *string
}

func (s *initiatePaymentStep) Name() string { return domain.StepInitiatePayment }

func (s *initiatePaymentStep) Execute(ctx context.Context) error {
	id, err := s.coordinator.payments.Initiate(ctx,
		s.snapshot.OrderID, s.snapshot.CustomerID, s.snapshot.GrandTotal, s.snapshot.Currency,
		"order-"+s.snapshot.OrderID)
	if err != nil {
		s.coordinator.recordStep(s.Name(), err)
		return err
	}
	*s.paymentID = id

	err = s.coordinator.orders.RecordPaymentPending(ctx, s.snapshot.OrderID, id)
	s.coordinator.recordStep(s.Name(), err)
	return err
}
