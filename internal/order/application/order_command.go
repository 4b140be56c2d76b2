package application

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/ecommerce/internal/order/domain"
	"github.com/wyfcoding/ecommerce/pkg/eventsourcing"
	"github.com/wyfcoding/ecommerce/pkg/idgen"
	"github.com/wyfcoding/ecommerce/pkg/logger"
	"github.com/wyfcoding/ecommerce/pkg/metrics"
)

// OrderItemInput 下单商品行
type OrderItemInput struct {
	ProductID string          `json:"product_id"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int64           `json:"quantity"`
	Discount  decimal.Decimal `json:"discount"`
}

// CreateOrderCommand 创建订单命令
type CreateOrderCommand struct {
	CustomerID  string           `json:"customer_id"`
	Currency    string           `json:"currency"`
	Items       []OrderItemInput `json:"items"`
	ShippingFee decimal.Decimal  `json:"shipping_fee"`
	Tax         decimal.Decimal  `json:"tax"`
}

// AddItemCommand 加购命令
type AddItemCommand struct {
	OrderID string         `json:"order_id"`
	Item    OrderItemInput `json:"item"`
}

// RemoveItemCommand 移除商品命令
type RemoveItemCommand struct {
	OrderID string `json:"order_id"`
	SKU     string `json:"sku"`
}

// ChangeItemQuantityCommand 修改数量命令
type ChangeItemQuantityCommand struct {
	OrderID  string `json:"order_id"`
	SKU      string `json:"sku"`
	Quantity int64  `json:"quantity"`
}

// ApplyCouponCommand 使用优惠券命令
type ApplyCouponCommand struct {
	OrderID    string          `json:"order_id"`
	CouponCode string          `json:"coupon_code"`
	Discount   decimal.Decimal `json:"discount"`
}

// SetAddressCommand 设定地址命令
type SetAddressCommand struct {
	OrderID string         `json:"order_id"`
	Address domain.Address `json:"address"`
}

// UpdateContactCommand 联系方式部分更新命令。
// nil 表示不更新该字段，空串表示显式清空
type UpdateContactCommand struct {
	OrderID string  `json:"order_id"`
	Email   *string `json:"email"`
	Phone   *string `json:"phone"`
}

// ConfirmOrderCommand 确认订单命令
type ConfirmOrderCommand struct {
	OrderID string `json:"order_id"`
}

// RecordPaymentPendingCommand 记录支付发起命令
type RecordPaymentPendingCommand struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
}

// RecordPaymentSuccessCommand 记录支付成功命令
type RecordPaymentSuccessCommand struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
}

// RecordPaymentFailureCommand 记录支付失败命令
type RecordPaymentFailureCommand struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}

// MarkProcessingCommand 进入拣货处理命令
type MarkProcessingCommand struct {
	OrderID string `json:"order_id"`
}

// ShipOrderCommand 发货命令，SKUs 为空表示发出全部未发货商品
type ShipOrderCommand struct {
	OrderID        string   `json:"order_id"`
	Carrier        string   `json:"carrier"`
	TrackingNumber string   `json:"tracking_number"`
	SKUs           []string `json:"skus"`
}

// DeliverOrderCommand 签收命令
type DeliverOrderCommand struct {
	OrderID string `json:"order_id"`
}

// CompleteOrderCommand 完成订单命令
type CompleteOrderCommand struct {
	OrderID string `json:"order_id"`
}

// RequestReturnCommand 申请退货命令
type RequestReturnCommand struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}

// ApproveReturnCommand 退货审批命令
type ApproveReturnCommand struct {
	OrderID string `json:"order_id"`
}

// MarkReturnedCommand 退货入库命令
type MarkReturnedCommand struct {
	OrderID string `json:"order_id"`
}

// CancelOrderCommand 取消订单命令
type CancelOrderCommand struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}

// MarkRefundedCommand 退款完成命令
type MarkRefundedCommand struct {
	OrderID string `json:"order_id"`
}

// OrderCommandService 处理订单相关的命令操作。
// 版本冲突时重新加载聚合并重新校验整个命令
type OrderCommandService struct {
	repo       domain.Repository
	idgen      idgen.Generator
	metrics    *metrics.Metrics
	retryLimit int
}

// NewOrderCommandService 创建订单命令服务
func NewOrderCommandService(repo domain.Repository, gen idgen.Generator, m *metrics.Metrics, retryLimit int) *OrderCommandService {
	if retryLimit <= 0 {
		retryLimit = 3
	}
	return &OrderCommandService{
		repo:       repo,
		idgen:      gen,
		metrics:    m,
		retryLimit: retryLimit,
	}
}

// CreateOrder 创建订单，返回新订单 ID
func (s *OrderCommandService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (string, error) {
	orderID := idgen.WithPrefix(s.idgen, "ORD")
	items := make([]domain.OrderItem, 0, len(cmd.Items))
	for _, in := range cmd.Items {
		items = append(items, domain.OrderItem{
			ProductID: in.ProductID,
			SKU:       in.SKU,
			Name:      in.Name,
			UnitPrice: in.UnitPrice,
			Quantity:  in.Quantity,
			Discount:  in.Discount,
		})
	}

	order, err := domain.NewOrder(orderID, cmd.CustomerID, cmd.Currency, items, cmd.ShippingFee, cmd.Tax)
	if err != nil {
		s.record("create_order", err)
		return "", err
	}
	if err := s.repo.Save(ctx, order); err != nil {
		s.record("create_order", err)
		return "", err
	}
	s.record("create_order", nil)
	logger.Info(ctx, "Order created",
		"order_id", orderID,
		"customer_id", cmd.CustomerID,
		"grand_total", order.Pricing.GrandTotal,
	)
	return orderID, nil
}

// AddItem 加购
func (s *OrderCommandService) AddItem(ctx context.Context, cmd AddItemCommand) error {
	return s.execute(ctx, "add_item", cmd.OrderID, func(o *domain.Order) error {
		return o.AddItem(domain.OrderItem{
			ProductID: cmd.Item.ProductID,
			SKU:       cmd.Item.SKU,
			Name:      cmd.Item.Name,
			UnitPrice: cmd.Item.UnitPrice,
			Quantity:  cmd.Item.Quantity,
			Discount:  cmd.Item.Discount,
		})
	})
}

// RemoveItem 移除商品
func (s *OrderCommandService) RemoveItem(ctx context.Context, cmd RemoveItemCommand) error {
	return s.execute(ctx, "remove_item", cmd.OrderID, func(o *domain.Order) error {
		return o.RemoveItem(cmd.SKU)
	})
}

// ChangeItemQuantity 修改数量
func (s *OrderCommandService) ChangeItemQuantity(ctx context.Context, cmd ChangeItemQuantityCommand) error {
	return s.execute(ctx, "change_item_quantity", cmd.OrderID, func(o *domain.Order) error {
		return o.ChangeItemQuantity(cmd.SKU, cmd.Quantity)
	})
}

// ApplyCoupon 使用优惠券
func (s *OrderCommandService) ApplyCoupon(ctx context.Context, cmd ApplyCouponCommand) error {
	return s.execute(ctx, "apply_coupon", cmd.OrderID, func(o *domain.Order) error {
		return o.ApplyCoupon(cmd.CouponCode, cmd.Discount)
	})
}

// SetShippingAddress 设定收货地址
func (s *OrderCommandService) SetShippingAddress(ctx context.Context, cmd SetAddressCommand) error {
	return s.execute(ctx, "set_shipping_address", cmd.OrderID, func(o *domain.Order) error {
		return o.SetShippingAddress(cmd.Address)
	})
}

// SetBillingAddress 设定账单地址
func (s *OrderCommandService) SetBillingAddress(ctx context.Context, cmd SetAddressCommand) error {
	return s.execute(ctx, "set_billing_address", cmd.OrderID, func(o *domain.Order) error {
		return o.SetBillingAddress(cmd.Address)
	})
}

// UpdateContact 部分更新联系方式
func (s *OrderCommandService) UpdateContact(ctx context.Context, cmd UpdateContactCommand) error {
	email := domain.None[string]()
	if cmd.Email != nil {
		email = domain.Some(*cmd.Email)
	}
	phone := domain.None[string]()
	if cmd.Phone != nil {
		phone = domain.Some(*cmd.Phone)
	}
	return s.execute(ctx, "update_contact", cmd.OrderID, func(o *domain.Order) error {
		return o.UpdateContact(email, phone)
	})
}

// ConfirmOrder 确认订单
func (s *OrderCommandService) ConfirmOrder(ctx context.Context, cmd ConfirmOrderCommand) error {
	return s.execute(ctx, "confirm_order", cmd.OrderID, func(o *domain.Order) error {
		return o.Confirm()
	})
}

// RecordPaymentPending 记录支付发起
func (s *OrderCommandService) RecordPaymentPending(ctx context.Context, cmd RecordPaymentPendingCommand) error {
	return s.execute(ctx, "record_payment_pending", cmd.OrderID, func(o *domain.Order) error {
		return o.RecordPaymentPending(cmd.PaymentID)
	})
}

// RecordPaymentSuccess 记录支付成功
func (s *OrderCommandService) RecordPaymentSuccess(ctx context.Context, cmd RecordPaymentSuccessCommand) error {
	return s.execute(ctx, "record_payment_success", cmd.OrderID, func(o *domain.Order) error {
		return o.RecordPaymentSuccess(cmd.PaymentID)
	})
}

// RecordPaymentFailure 记录支付失败
func (s *OrderCommandService) RecordPaymentFailure(ctx context.Context, cmd RecordPaymentFailureCommand) error {
	return s.execute(ctx, "record_payment_failure", cmd.OrderID, func(o *domain.Order) error {
		return o.RecordPaymentFailure(cmd.Reason)
	})
}

// MarkProcessing 进入拣货处理
func (s *OrderCommandService) MarkProcessing(ctx context.Context, cmd MarkProcessingCommand) error {
	return s.execute(ctx, "mark_processing", cmd.OrderID, func(o *domain.Order) error {
		return o.MarkProcessing()
	})
}

// ShipOrder 发货
func (s *OrderCommandService) ShipOrder(ctx context.Context, cmd ShipOrderCommand) (string, error) {
	shipmentID := idgen.WithPrefix(s.idgen, "SHP")
	err := s.execute(ctx, "ship_order", cmd.OrderID, func(o *domain.Order) error {
		return o.Ship(shipmentID, cmd.Carrier, cmd.TrackingNumber, cmd.SKUs)
	})
	if err != nil {
		return "", err
	}
	return shipmentID, nil
}

// DeliverOrder 签收
func (s *OrderCommandService) DeliverOrder(ctx context.Context, cmd DeliverOrderCommand) error {
	return s.execute(ctx, "deliver_order", cmd.OrderID, func(o *domain.Order) error {
		return o.Deliver()
	})
}

// CompleteOrder 完成订单
func (s *OrderCommandService) CompleteOrder(ctx context.Context, cmd CompleteOrderCommand) error {
	return s.execute(ctx, "complete_order", cmd.OrderID, func(o *domain.Order) error {
		return o.Complete()
	})
}

// RequestReturn 申请退货
func (s *OrderCommandService) RequestReturn(ctx context.Context, cmd RequestReturnCommand) error {
	return s.execute(ctx, "request_return", cmd.OrderID, func(o *domain.Order) error {
		return o.RequestReturn(cmd.Reason)
	})
}

// ApproveReturn 退货审批
func (s *OrderCommandService) ApproveReturn(ctx context.Context, cmd ApproveReturnCommand) error {
	return s.execute(ctx, "approve_return", cmd.OrderID, func(o *domain.Order) error {
		return o.ApproveReturn()
	})
}

// MarkReturned 退货入库
func (s *OrderCommandService) MarkReturned(ctx context.Context, cmd MarkReturnedCommand) error {
	return s.execute(ctx, "mark_returned", cmd.OrderID, func(o *domain.Order) error {
		return o.MarkReturned()
	})
}

// CancelOrder 取消订单
func (s *OrderCommandService) CancelOrder(ctx context.Context, cmd CancelOrderCommand) error {
	return s.execute(ctx, "cancel_order", cmd.OrderID, func(o *domain.Order) error {
		return o.Cancel(cmd.Reason)
	})
}

// MarkRefunded 退款完成
func (s *OrderCommandService) MarkRefunded(ctx context.Context, cmd MarkRefundedCommand) error {
	return s.execute(ctx, "mark_refunded", cmd.OrderID, func(o *domain.Order) error {
		return o.MarkRefunded()
	})
}

// ListOrderIDs 返回全部订单 ID
func (s *OrderCommandService) ListOrderIDs(ctx context.Context) ([]string, error) {
	return s.repo.ListOrderIDs(ctx)
}

// execute 加载聚合、执行命令、条件追加；版本冲突时整体重做
func (s *OrderCommandService) execute(ctx context.Context, command, orderID string, fn func(*domain.Order) error) error {
	var lastErr error
	for attempt := 0; attempt < s.retryLimit; attempt++ {
		order, err := s.repo.Load(ctx, orderID)
		if err != nil {
			s.record(command, err)
			return err
		}

		if err := fn(order); err != nil {
			s.record(command, err)
			return err
		}

		if len(order.GetUncommittedEvents()) == 0 {
			s.record(command, nil)
			return nil
		}

		err = s.repo.Save(ctx, order)
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
			"order_id", orderID,
			"attempt", attempt+1,
		)
		lastErr = err
	}
	s.record(command, lastErr)
	return lastErr
}

func (s *OrderCommandService) record(command string, err error) {
	if s.metrics == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	s.metrics.RecordCommand(command, result)
}
