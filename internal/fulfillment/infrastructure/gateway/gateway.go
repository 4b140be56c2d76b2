// Package gateway 提供 Saga 协调器到三个上下文的进程内适配。
// 每个适配器把领域端口翻译成目标上下文应用服务的命令
package gateway

import (
	"context"

	"github.com/shopspring/decimal"

	domain "github.com/wyfcoding/ecommerce/internal/fulfillment/domain"
	inventoryapp "github.com/wyfcoding/ecommerce/internal/inventory/application"
	inventorydomain "github.com/wyfcoding/ecommerce/internal/inventory/domain"
	orderapp "github.com/wyfcoding/ecommerce/internal/order/application"
	paymentapp "github.com/wyfcoding/ecommerce/internal/payment/application"
	"github.com/wyfcoding/ecommerce/pkg/errs"
)

// InventoryGateway 库存上下文适配器，按 SKU 定位库存项后下发命令
type InventoryGateway struct {
	svc  *inventoryapp.InventoryCommandService
	repo inventorydomain.Repository
}

// NewInventoryGateway 创建库存适配器
func NewInventoryGateway(svc *inventoryapp.InventoryCommandService, repo inventorydomain.Repository) *InventoryGateway {
	return &InventoryGateway{svc: svc, repo: repo}
}

func (g *InventoryGateway) resolveItem(ctx context.Context, sku string) (string, error) {
	itemID, err := g.repo.FindItemIDBySKU(ctx, sku)
	if err != nil {
		return "", err
	}
	if itemID == "" {
		return "", errs.Validationf("sku_not_found", "no inventory item registered for sku %s", sku)
	}
	return itemID, nil
}

// Reserve 按订单行预占库存
func (g *InventoryGateway) Reserve(ctx context.Context, orderID string, line domain.ReservationLine) error {
	itemID, err := g.resolveItem(ctx, line.SKU)
	if err != nil {
		return err
	}
	return g.svc.ReserveStock(ctx, inventoryapp.ReserveStockCommand{
		ItemID:   itemID,
		OrderID:  orderID,
		Quantity: line.Quantity,
	})
}

// Release 释放预占
func (g *InventoryGateway) Release(ctx context.Context, orderID string, line domain.ReservationLine, reason string) error {
	itemID, err := g.resolveItem(ctx, line.SKU)
	if err != nil {
		return err
	}
	return g.svc.ReleaseReservation(ctx, inventoryapp.ReleaseReservationCommand{
		ItemID:  itemID,
		OrderID: orderID,
		Reason:  reason,
	})
}

// ConfirmAndCommit 确认预占并落实出库
func (g *InventoryGateway) ConfirmAndCommit(ctx context.Context, orderID string, line domain.ReservationLine) error {
	itemID, err := g.resolveItem(ctx, line.SKU)
	if err != nil {
		return err
	}
	if err := g.svc.ConfirmReservation(ctx, inventoryapp.ConfirmReservationCommand{
		ItemID:  itemID,
		OrderID: orderID,
	}); err != nil {
		return err
	}
	return g.svc.CommitStock(ctx, inventoryapp.CommitStockCommand{
		ItemID:  itemID,
		OrderID: orderID,
	})
}

// OrderGateway 订单上下文适配器
type OrderGateway struct {
	cmd   *orderapp.OrderCommandService
	query *orderapp.OrderQueryService
}

// NewOrderGateway 创建订单适配器
func NewOrderGateway(cmd *orderapp.OrderCommandService, query *orderapp.OrderQueryService) *OrderGateway {
	return &OrderGateway{cmd: cmd, query: query}
}

// Snapshot 读取履约所需的订单快照
func (g *OrderGateway) Snapshot(ctx context.Context, orderID string) (*domain.OrderSnapshot, error) {
	view, err := g.query.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	lines := make([]domain.ReservationLine, 0, len(view.Items))
	for _, item := range view.Items {
		lines = append(lines, domain.ReservationLine{
			SKU:      item.SKU,
			Quantity: item.Quantity,
		})
	}
	return &domain.OrderSnapshot{
		OrderID:    view.OrderID,
		CustomerID: view.CustomerID,
		Currency:   view.Currency,
		GrandTotal: view.GrandTotal,
		Lines:      lines,
	}, nil
}

// Confirm 确认订单
func (g *OrderGateway) Confirm(ctx context.Context, orderID string) error {
	return g.cmd.ConfirmOrder(ctx, orderapp.ConfirmOrderCommand{OrderID: orderID})
}

// RecordPaymentPending 记录进入待支付
func (g *OrderGateway) RecordPaymentPending(ctx context.Context, orderID, paymentID string) error {
	return g.cmd.RecordPaymentPending(ctx, orderapp.RecordPaymentPendingCommand{
		OrderID:   orderID,
		PaymentID: paymentID,
	})
}

// RecordPaymentSuccess 记录支付成功
func (g *OrderGateway) RecordPaymentSuccess(ctx context.Context, orderID, paymentID string) error {
	return g.cmd.RecordPaymentSuccess(ctx, orderapp.RecordPaymentSuccessCommand{
		OrderID:   orderID,
		PaymentID: paymentID,
	})
}

// RecordPaymentFailure 记录支付失败
func (g *OrderGateway) RecordPaymentFailure(ctx context.Context, orderID, reason string) error {
	return g.cmd.RecordPaymentFailure(ctx, orderapp.RecordPaymentFailureCommand{
		OrderID: orderID,
		Reason:  reason,
	})
}

// Cancel 取消订单
func (g *OrderGateway) Cancel(ctx context.Context, orderID, reason string) error {
	return g.cmd.CancelOrder(ctx, orderapp.CancelOrderCommand{
		OrderID: orderID,
		Reason:  reason,
	})
}

// PaymentGateway 支付上下文适配器
type PaymentGateway struct {
	cmd *paymentapp.PaymentCommandService
}

// NewPaymentGateway 创建支付适配器
func NewPaymentGateway(cmd *paymentapp.PaymentCommandService) *PaymentGateway {
	return &PaymentGateway{cmd: cmd}
}

// Initiate 发起支付
func (g *PaymentGateway) Initiate(ctx context.Context, orderID, customerID string, amount decimal.Decimal, currency, idempotencyKey string) (string, error) {
	return g.cmd.InitiatePayment(ctx, paymentapp.InitiatePaymentCommand{
		OrderID:        orderID,
		CustomerID:     customerID,
		Amount:         amount,
		Currency:       currency,
		IdempotencyKey: idempotencyKey,
	})
}
