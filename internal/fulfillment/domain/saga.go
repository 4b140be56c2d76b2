// Package domain 包含订单履约 Saga 的领域模型
package domain

import (
	"context"
	"time"
)

// Status Saga 状态
type Status string

const (
	// StatusRunning 预占与确认阶段进行中
	StatusRunning Status = "RUNNING"
	// StatusAwaitingPayment 支付已发起，等待支付结果事件
	StatusAwaitingPayment Status = "AWAITING_PAYMENT"
	// StatusCompleted 支付成功，库存已落实出库
	StatusCompleted Status = "COMPLETED"
	// StatusCompensated 某一步失败，已执行补偿
	StatusCompensated Status = "COMPENSATED"
)

// Saga 步骤名，记录在持久化状态中供崩溃恢复定位
const (
	StepReserveStock         = "reserve_stock"
	StepConfirmOrder         = "confirm_order"
	StepInitiatePayment      = "initiate_payment"
	StepRecordPaymentSuccess = "record_payment_success"
	StepDone                 = "done"
)

// SagaRecord 以订单 ID 为键的持久化 Saga 状态。
// 记录下一个期望步骤，协调器崩溃后据此恢复
type SagaRecord struct {
	OrderID   string
	Status    Status
	NextStep  string
	PaymentID string
	Lines     []ReservationLine
	Reason    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store Saga 状态存储
type Store interface {
	// Get 按订单 ID 查找 Saga 记录，不存在时返回 nil
	Get(ctx context.Context, orderID string) (*SagaRecord, error)
	// Save 写入或更新 Saga 记录
	Save(ctx context.Context, record *SagaRecord) error
}
