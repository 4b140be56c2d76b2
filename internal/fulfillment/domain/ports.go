package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// ReservationLine 一条需要预占的订单行
type ReservationLine struct {
	SKU      string `json:"sku"`
	Quantity int64  `json:"quantity"`
}

// OrderSnapshot 履约所需的订单快照
type OrderSnapshot struct {
	OrderID    string
	CustomerID string
	Currency   string
	GrandTotal decimal.Decimal
	Lines      []ReservationLine
}

// InventoryGateway 库存上下文命令入口
type InventoryGateway interface {
	// Reserve 按订单行预占库存
	Reserve(ctx context.Context, orderID string, line ReservationLine) error
	// Release 释放预占
	Release(ctx context.Context, orderID string, line ReservationLine, reason string) error
	// ConfirmAndCommit 确认预占并落实出库
	ConfirmAndCommit(ctx context.Context, orderID string, line ReservationLine) error
}

// OrderGateway 订单上下文命令入口
type OrderGateway interface {
	// Snapshot 读取履约所需的订单快照
	Snapshot(ctx context.Context, orderID string) (*OrderSnapshot, error)
	// Confirm 确认订单
	Confirm(ctx context.Context, orderID string) error
	// RecordPaymentPending 记录进入待支付
	RecordPaymentPending(ctx context.Context, orderID, paymentID string) error
	// RecordPaymentSuccess 记录支付成功
	RecordPaymentSuccess(ctx context.Context, orderID, paymentID string) error
	// RecordPaymentFailure 记录支付失败，订单回到已确认
	RecordPaymentFailure(ctx context.Context, orderID, reason string) error
	// Cancel 取消订单
	Cancel(ctx context.Context, orderID, reason string) error
}

// PaymentGateway 支付上下文命令入口
type PaymentGateway interface {
	// Initiate 发起支付，幂等键保证重复投递不会重复扣款
	Initiate(ctx context.Context, orderID, customerID string, amount decimal.Decimal, currency, idempotencyKey string) (string, error)
}
