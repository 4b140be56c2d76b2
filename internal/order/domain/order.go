// Package domain 包含订单服务的领域模型
package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/ecommerce/pkg/errs"
	"github.com/wyfcoding/ecommerce/pkg/eventsourcing"
	"github.com/wyfcoding/ecommerce/pkg/fsm"
)

// Status 订单状态
type Status string

const (
	StatusCreated          Status = "CREATED"
	StatusConfirmed        Status = "CONFIRMED"
	StatusPaymentPending   Status = "PAYMENT_PENDING"
	StatusPaid             Status = "PAID"
	StatusProcessing       Status = "PROCESSING"
	StatusPartiallyShipped Status = "PARTIALLY_SHIPPED"
	StatusShipped          Status = "SHIPPED"
	StatusDelivered        Status = "DELIVERED"
	StatusCompleted        Status = "COMPLETED"
	StatusReturnRequested  Status = "RETURN_REQUESTED"
	StatusReturnApproved   Status = "RETURN_APPROVED"
	StatusReturned         Status = "RETURNED"
	StatusCancelled        Status = "CANCELLED"
	StatusRefunded         Status = "REFUNDED"
)

// 状态机触发事件
const (
	triggerConfirm        = "CONFIRM"
	triggerRequestPayment = "REQUEST_PAYMENT"
	triggerPaymentSuccess = "PAYMENT_SUCCESS"
	triggerPaymentFailure = "PAYMENT_FAILURE"
	triggerProcess        = "PROCESS"
	triggerShipPartial    = "SHIP_PARTIAL"
	triggerShip           = "SHIP"
	triggerDeliver        = "DELIVER"
	triggerComplete       = "COMPLETE"
	triggerRequestReturn  = "REQUEST_RETURN"
	triggerApproveReturn  = "APPROVE_RETURN"
	triggerReturn         = "RETURN"
	triggerCancel         = "CANCEL"
	triggerRefund         = "REFUND"
)

// triggerTargets 触发事件的规范目标状态，用于非法迁移错误信息
var triggerTargets = map[string]Status{
	triggerConfirm:        StatusConfirmed,
	triggerRequestPayment: StatusPaymentPending,
	triggerPaymentSuccess: StatusPaid,
	triggerPaymentFailure: StatusConfirmed,
	triggerProcess:        StatusProcessing,
	triggerShipPartial:    StatusPartiallyShipped,
	triggerShip:           StatusShipped,
	triggerDeliver:        StatusDelivered,
	triggerComplete:       StatusCompleted,
	triggerRequestReturn:  StatusReturnRequested,
	triggerApproveReturn:  StatusReturnApproved,
	triggerReturn:         StatusReturned,
	triggerCancel:         StatusCancelled,
	triggerRefund:         StatusRefunded,
}

// OrderItem 订单行
type OrderItem struct {
	ProductID string          `json:"product_id"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int64           `json:"quantity"`
	Discount  decimal.Decimal `json:"discount"`
	Shipped   bool            `json:"shipped"`
}

// Address 收货/账单地址，一经设定不可变更
type Address struct {
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	Province   string `json:"province"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// IsZero 判断地址是否未设定
func (a Address) IsZero() bool {
	return a == Address{}
}

// Pricing 订单计价，是当前商品行与运费/税费/折扣的纯函数
type Pricing struct {
	Subtotal   decimal.Decimal `json:"subtotal"`
	Shipping   decimal.Decimal `json:"shipping"`
	Tax        decimal.Decimal `json:"tax"`
	Discount   decimal.Decimal `json:"discount"`
	GrandTotal decimal.Decimal `json:"grand_total"`
	Currency   string          `json:"currency"`
}

// Order 订单聚合根，十四状态生命周期
type Order struct {
	eventsourcing.AggregateRoot

	ID                 string
	CustomerID         string
	Status             Status
	Items              []OrderItem
	ShippingAddress    Address
	BillingAddress     Address
	Email              string
	Phone              string
	Pricing            Pricing
	CouponCode         string
	PaymentID          string
	PaymentStatus      string
	ShipmentID         string
	Carrier            string
	TrackingNumber     string
	CancellationReason string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NewOrder 从结算数据创建订单
func NewOrder(id, customerID, currency string, items []OrderItem, shippingFee, tax decimal.Decimal) (*Order, error) {
	if id == "" || customerID == "" {
		return nil, errs.Validationf("missing_field", "order id and customer id are required")
	}
	if currency == "" {
		return nil, errs.Validationf("missing_field", "currency is required")
	}
	if len(items) == 0 {
		return nil, errs.Validationf("empty_order", "order must contain at least one item")
	}
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		if err := validateItem(item); err != nil {
			return nil, err
		}
		if seen[item.SKU] {
			return nil, errs.Validationf("duplicate_item", "sku %s appears more than once", item.SKU)
		}
		seen[item.SKU] = true
	}
	if shippingFee.IsNegative() || tax.IsNegative() {
		return nil, errs.Validationf("negative_amount", "shipping fee and tax must not be negative")
	}

	o := emptyOrder()
	o.ApplyChange(o, &OrderCreatedEvent{
		BaseEvent:   eventsourcing.NewBaseEvent(),
		OrderID:     id,
		CustomerID:  customerID,
		Currency:    currency,
		Items:       items,
		ShippingFee: shippingFee,
		Tax:         tax,
	})
	return o, nil
}

// LoadOrder 从事件流重放恢复订单
func LoadOrder(events []eventsourcing.DomainEvent) *Order {
	o := emptyOrder()
	o.Replay(o, events)
	return o
}

func emptyOrder() *Order {
	return &Order{}
}

// AggregateID 返回流 ID
func (o *Order) AggregateID() string { return o.ID }

func validateItem(item OrderItem) error {
	if item.SKU == "" || item.ProductID == "" {
		return errs.Validationf("missing_field", "item sku and product id are required")
	}
	if item.Quantity <= 0 {
		return errs.Validationf("invalid_quantity", "item %s quantity must be positive, got %d", item.SKU, item.Quantity)
	}
	if item.UnitPrice.IsNegative() || item.Discount.IsNegative() {
		return errs.Validationf("negative_amount", "item %s price and discount must not be negative", item.SKU)
	}
	return nil
}

// machine 以当前状态重建状态机。迁移表即 4.3 节的订单生命周期
func (o *Order) machine() *fsm.Machine[string, string] {
	m := fsm.NewMachine[string, string](string(o.Status))
	m.AddTransition(string(StatusCreated), triggerConfirm, string(StatusConfirmed))
	m.AddTransition(string(StatusCreated), triggerCancel, string(StatusCancelled))
	m.AddTransition(string(StatusConfirmed), triggerRequestPayment, string(StatusPaymentPending))
	m.AddTransition(string(StatusConfirmed), triggerCancel, string(StatusCancelled))
	m.AddTransition(string(StatusPaymentPending), triggerPaymentSuccess, string(StatusPaid))
	m.AddTransition(string(StatusPaymentPending), triggerPaymentFailure, string(StatusConfirmed))
	m.AddTransition(string(StatusPaymentPending), triggerCancel, string(StatusCancelled))
	m.AddTransition(string(StatusPaid), triggerProcess, string(StatusProcessing))
	m.AddTransition(string(StatusPaid), triggerCancel, string(StatusCancelled))
	m.AddTransition(string(StatusProcessing), triggerShip, string(StatusShipped))
	m.AddTransition(string(StatusProcessing), triggerShipPartial, string(StatusPartiallyShipped))
	m.AddTransition(string(StatusPartiallyShipped), triggerShip, string(StatusShipped))
	m.AddTransition(string(StatusShipped), triggerDeliver, string(StatusDelivered))
	m.AddTransition(string(StatusDelivered), triggerComplete, string(StatusCompleted))
	m.AddTransition(string(StatusDelivered), triggerRequestReturn, string(StatusReturnRequested))
	m.AddTransition(string(StatusReturnRequested), triggerApproveReturn, string(StatusReturnApproved))
	m.AddTransition(string(StatusReturnApproved), triggerReturn, string(StatusReturned))
	m.AddTransition(string(StatusReturned), triggerRefund, string(StatusRefunded))
	m.AddTransition(string(StatusCancelled), triggerRefund, string(StatusRefunded))
	return m
}

// guard 校验触发事件在当前状态下是否合法
func (o *Order) guard(trigger string) error {
	if !o.machine().Can(trigger) {
		return errs.Transition("order", string(o.Status), string(triggerTargets[trigger]))
	}
	return nil
}

// requireMutable 商品与优惠券变更仅在 Created 状态合法
func (o *Order) requireMutable(target string) error {
	if o.Status != StatusCreated {
		return errs.Transition("order", string(o.Status), target)
	}
	return nil
}

// AddItem 加购
func (o *Order) AddItem(item OrderItem) error {
	if err := o.requireMutable(string(StatusCreated)); err != nil {
		return err
	}
	if err := validateItem(item); err != nil {
		return err
	}
	if o.findItem(item.SKU) != nil {
		return errs.Validationf("duplicate_item", "sku %s already in order %s", item.SKU, o.ID)
	}
	item.Shipped = false
	o.ApplyChange(o, &OrderItemAddedEvent{
		BaseEvent: eventsourcing.NewBaseEvent(),
		OrderID:   o.ID,
		Item:      item,
	})
	return nil
}

// RemoveItem 移除商品，订单不允许被移空
func (o *Order) RemoveItem(sku string) error {
	if err := o.requireMutable(string(StatusCreated)); err != nil {
		return err
	}
	if o.findItem(sku) == nil {
		return errs.Validationf("item_not_found", "sku %s not in order %s", sku, o.ID)
	}
	if len(o.Items) == 1 {
		return errs.Validationf("empty_order", "order must contain at least one item")
	}
	o.ApplyChange(o, &OrderItemRemovedEvent{
		BaseEvent: eventsourcing.NewBaseEvent(),
		OrderID:   o.ID,
		SKU:       sku,
	})
	return nil
}

// ChangeItemQuantity 修改商品数量
func (o *Order) ChangeItemQuantity(sku string, quantity int64) error {
	if err := o.requireMutable(string(StatusCreated)); err != nil {
		return err
	}
	if quantity <= 0 {
		return errs.Validationf("invalid_quantity", "quantity must be positive, got %d", quantity)
	}
	if o.findItem(sku) == nil {
		return errs.Validationf("item_not_found", "sku %s not in order %s", sku, o.ID)
	}
	o.ApplyChange(o, &OrderItemQuantityChangedEvent{
		BaseEvent: eventsourcing.NewBaseEvent(),
		OrderID:   o.ID,
		SKU:       sku,
		Quantity:  quantity,
	})
	return nil
}

// ApplyCoupon 使用优惠券抵扣
func (o *Order) ApplyCoupon(code string, discount decimal.Decimal) error {
	if err := o.requireMutable(string(StatusCreated)); err != nil {
		return err
	}
	if code == "" {
		return errs.Validationf("missing_field", "coupon code is required")
	}
	if discount.IsNegative() {
		return errs.Validationf("negative_amount", "discount must not be negative")
	}
	o.ApplyChange(o, &CouponAppliedEvent{
		BaseEvent:  eventsourcing.NewBaseEvent(),
		OrderID:    o.ID,
		CouponCode: code,
		Discount:   discount,
	})
	return nil
}

// SetShippingAddress 设定收货地址，仅允许设定一次
func (o *Order) SetShippingAddress(addr Address) error {
	if err := o.requireMutable(string(StatusCreated)); err != nil {
		return err
	}
	if !o.ShippingAddress.IsZero() {
		return errs.Validationf("address_immutable", "shipping address of order %s is already set", o.ID)
	}
	if addr.IsZero() {
		return errs.Validationf("missing_field", "shipping address is empty")
	}
	o.ApplyChange(o, &ShippingAddressSetEvent{
		BaseEvent: eventsourcing.NewBaseEvent(),
		OrderID:   o.ID,
		Address:   addr,
	})
	return nil
}

// SetBillingAddress 设定账单地址，仅允许设定一次
func (o *Order) SetBillingAddress(addr Address) error {
	if err := o.requireMutable(string(StatusCreated)); err != nil {
		return err
	}
	if !o.BillingAddress.IsZero() {
		return errs.Validationf("address_immutable", "billing address of order %s is already set", o.ID)
	}
	if addr.IsZero() {
		return errs.Validationf("missing_field", "billing address is empty")
	}
	o.ApplyChange(o, &BillingAddressSetEvent{
		BaseEvent: eventsourcing.NewBaseEvent(),
		OrderID:   o.ID,
		Address:   addr,
	})
	return nil
}

// UpdateContact 部分更新联系方式。
// 未设定的字段保持原值，显式设定的空串会清空该字段
func (o *Order) UpdateContact(email, phone Optional[string]) error {
	if !email.Set && !phone.Set {
		return errs.Validationf("empty_update", "at least one contact field must be provided")
	}
	event := &ContactUpdatedEvent{
		BaseEvent: eventsourcing.NewBaseEvent(),
		OrderID:   o.ID,
	}
	if email.Set {
		v := email.Value
		event.Email = &v
	}
	if phone.Set {
		v := phone.Value
		event.Phone = &v
	}
	o.ApplyChange(o, event)
	return nil
}

// Confirm 确认订单
func (o *Order) Confirm() error {
	if err := o.guard(triggerConfirm); err != nil {
		return err
	}
	o.ApplyChange(o, &OrderConfirmedEvent{
		BaseEvent: eventsourcing.NewBaseEvent(),
		OrderID:   o.ID,
	})
	return nil
}

// RecordPaymentPending 记录支付发起
func (o *Order) RecordPaymentPending(paymentID string) error {
	if paymentID == "" {
		return errs.Validationf("missing_field", "payment id is required")
	}
	if err := o.guard(triggerRequestPayment); err != nil {
		return err
	}
	o.ApplyChange(o, &PaymentPendingRecordedEvent{
		BaseEvent: eventsourcing.NewBaseEvent(),
		OrderID:   o.ID,
		PaymentID: paymentID,
	})
	return nil
}

// RecordPaymentSuccess 记录支付成功
func (o *Order) RecordPaymentSuccess(paymentID string) error {
	if err := o.guard(triggerPaymentSuccess); err != nil {
		return err
	}
	o.ApplyChange(o, &PaymentSuccessRecordedEvent{
		BaseEvent: eventsourcing.NewBaseEvent(),
		OrderID:   o.ID,
		PaymentID: paymentID,
	})
	return nil
}

// RecordPaymentFailure 记录支付失败，订单退回已确认等待重新支付
func (o *Order) RecordPaymentFailure(reason string) error {
	if err := o.guard(triggerPaymentFailure); err != nil {
		return err
	}
	o.ApplyChange(o, &PaymentFailureRecordedEvent{
		BaseEvent: eventsourcing.NewBaseEvent(),
		OrderID:   o.ID,
		Reason:    reason,
	})
	return nil
}

// MarkProcessing 进入拣货处理
func (o *Order) MarkProcessing() error {
	if err := o.guard(triggerProcess); err != nil {
		return err
	}
	o.ApplyChange(o, &OrderProcessingEvent{
		BaseEvent: eventsourcing.NewBaseEvent(),
		OrderID:   o.ID,
	})
	return nil
}

// Ship 发货。skus 为空表示发出全部未发货商品；
// 覆盖全部剩余商品则整单转入 Shipped，否则转入 Partially_Shipped
func (o *Order) Ship(shipmentID, carrier, trackingNumber string, skus []string) error {
	if shipmentID == "" || carrier == "" {
		return errs.Validationf("missing_field", "shipment id and carrier are required")
	}

	remaining := o.unshippedSKUs()
	if len(remaining) == 0 {
		return errs.Transition("order", string(o.Status), string(StatusShipped))
	}
	if len(skus) == 0 {
		skus = remaining
	}

	seen := make(map[string]bool, len(skus))
	for _, sku := range skus {
		item := o.findItem(sku)
		if item == nil {
			return errs.Validationf("item_not_found", "sku %s not in order %s", sku, o.ID)
		}
		if item.Shipped {
			return errs.Validationf("already_shipped", "sku %s of order %s is already shipped", sku, o.ID)
		}
		if seen[sku] {
			return errs.Validationf("duplicate_item", "sku %s named more than once", sku)
		}
		seen[sku] = true
	}

	full := len(skus) == len(remaining)
	if full {
		if err := o.guard(triggerShip); err != nil {
			return err
		}
		o.ApplyChange(o, &OrderShippedEvent{
			BaseEvent:      eventsourcing.NewBaseEvent(),
			OrderID:        o.ID,
			ShipmentID:     shipmentID,
			Carrier:        carrier,
			TrackingNumber: trackingNumber,
			SKUs:           skus,
		})
		return nil
	}

	if err := o.guard(triggerShipPartial); err != nil {
		return err
	}
	o.ApplyChange(o, &OrderPartiallyShippedEvent{
		BaseEvent:      eventsourcing.NewBaseEvent(),
		OrderID:        o.ID,
		ShipmentID:     shipmentID,
		Carrier:        carrier,
		TrackingNumber: trackingNumber,
		SKUs:           skus,
	})
	return nil
}

// Deliver 签收
func (o *Order) Deliver() error {
	if err := o.guard(triggerDeliver); err != nil {
		return err
	}
	o.ApplyChange(o, &OrderDeliveredEvent{
		BaseEvent: eventsourcing.NewBaseEvent(),
		OrderID:   o.ID,
	})
	return nil
}

// Complete 完成订单，终态
func (o *Order) Complete() error {
	if err := o.guard(triggerComplete); err != nil {
		return err
	}
	o.ApplyChange(o, &OrderCompletedEvent{
		BaseEvent: eventsourcing.NewBaseEvent(),
		OrderID:   o.ID,
	})
	return nil
}

// RequestReturn 申请退货
func (o *Order) RequestReturn(reason string) error {
	if reason == "" {
		return errs.Validationf("missing_field", "return reason is required")
	}
	if err := o.guard(triggerRequestReturn); err != nil {
		return err
	}
	o.ApplyChange(o, &ReturnRequestedEvent{
		BaseEvent: eventsourcing.NewBaseEvent(),
		OrderID:   o.ID,
		Reason:    reason,
	})
	return nil
}

// ApproveReturn 退货审批通过
func (o *Order) ApproveReturn() error {
	if err := o.guard(triggerApproveReturn); err != nil {
		return err
	}
	o.ApplyChange(o, &ReturnApprovedEvent{
		BaseEvent: eventsourcing.NewBaseEvent(),
		OrderID:   o.ID,
	})
	return nil
}

// MarkReturned 退货入库
func (o *Order) MarkReturned() error {
	if err := o.guard(triggerReturn); err != nil {
		return err
	}
	o.ApplyChange(o, &OrderReturnedEvent{
		BaseEvent: eventsourcing.NewBaseEvent(),
		OrderID:   o.ID,
	})
	return nil
}

// Cancel 取消订单。仅 Created/Confirmed/Payment_Pending/Paid 可取消，
// 取消本身也是普通命令，可能被并发提交的其它命令挤掉
func (o *Order) Cancel(reason string) error {
	if err := o.guard(triggerCancel); err != nil {
		return err
	}
	o.ApplyChange(o, &OrderCancelledEvent{
		BaseEvent: eventsourcing.NewBaseEvent(),
		OrderID:   o.ID,
		Reason:    reason,
	})
	return nil
}

// MarkRefunded 退款完成，终态
func (o *Order) MarkRefunded() error {
	if err := o.guard(triggerRefund); err != nil {
		return err
	}
	o.ApplyChange(o, &OrderRefundedEvent{
		BaseEvent: eventsourcing.NewBaseEvent(),
		OrderID:   o.ID,
	})
	return nil
}

func (o *Order) findItem(sku string) *OrderItem {
	for i := range o.Items {
		if o.Items[i].SKU == sku {
			return &o.Items[i]
		}
	}
	return nil
}

func (o *Order) unshippedSKUs() []string {
	skus := make([]string, 0, len(o.Items))
	for _, item := range o.Items {
		if !item.Shipped {
			skus = append(skus, item.SKU)
		}
	}
	return skus
}

// recalculate 重算计价。小计 = Σ(单价×数量 − 行折扣)，
// 总额 = 小计 + 运费 + 税费 − 订单折扣
func (o *Order) recalculate() {
	subtotal := decimal.Zero
	for _, item := range o.Items {
		line := item.UnitPrice.Mul(decimal.NewFromInt(item.Quantity)).Sub(item.Discount)
		subtotal = subtotal.Add(line)
	}
	o.Pricing.Subtotal = subtotal
	o.Pricing.GrandTotal = subtotal.
		Add(o.Pricing.Shipping).
		Add(o.Pricing.Tax).
		Sub(o.Pricing.Discount)
}

// Apply 事件折叠。每种事件一个分支，必须保持确定性
func (o *Order) Apply(event eventsourcing.DomainEvent) {
	switch e := event.(type) {
	case *OrderCreatedEvent:
		o.ID = e.OrderID
		o.CustomerID = e.CustomerID
		o.Status = StatusCreated
		o.Items = make([]OrderItem, len(e.Items))
		copy(o.Items, e.Items)
		o.Pricing = Pricing{
			Shipping: e.ShippingFee,
			Tax:      e.Tax,
			Discount: decimal.Zero,
			Currency: e.Currency,
		}
		o.CreatedAt = e.OccurredAt()
		o.recalculate()
	case *OrderItemAddedEvent:
		o.Items = append(o.Items, e.Item)
		o.recalculate()
	case *OrderItemRemovedEvent:
		for i := range o.Items {
			if o.Items[i].SKU == e.SKU {
				o.Items = append(o.Items[:i], o.Items[i+1:]...)
				break
			}
		}
		o.recalculate()
	case *OrderItemQuantityChangedEvent:
		if item := o.findItem(e.SKU); item != nil {
			item.Quantity = e.Quantity
		}
		o.recalculate()
	case *CouponAppliedEvent:
		o.CouponCode = e.CouponCode
		o.Pricing.Discount = e.Discount
		o.recalculate()
	case *ShippingAddressSetEvent:
		o.ShippingAddress = e.Address
	case *BillingAddressSetEvent:
		o.BillingAddress = e.Address
	case *ContactUpdatedEvent:
		if e.Email != nil {
			o.Email = *e.Email
		}
		if e.Phone != nil {
			o.Phone = *e.Phone
		}
	case *OrderConfirmedEvent:
		o.Status = StatusConfirmed
	case *PaymentPendingRecordedEvent:
		o.Status = StatusPaymentPending
		o.PaymentID = e.PaymentID
		o.PaymentStatus = "PENDING"
	case *PaymentSuccessRecordedEvent:
		o.Status = StatusPaid
		if e.PaymentID != "" {
			o.PaymentID = e.PaymentID
		}
		o.PaymentStatus = "SUCCEEDED"
	case *PaymentFailureRecordedEvent:
		o.Status = StatusConfirmed
		o.PaymentStatus = "FAILED"
	case *OrderProcessingEvent:
		o.Status = StatusProcessing
	case *OrderPartiallyShippedEvent:
		o.Status = StatusPartiallyShipped
		o.ShipmentID = e.ShipmentID
		o.Carrier = e.Carrier
		o.TrackingNumber = e.TrackingNumber
		o.markShipped(e.SKUs)
	case *OrderShippedEvent:
		o.Status = StatusShipped
		o.ShipmentID = e.ShipmentID
		o.Carrier = e.Carrier
		o.TrackingNumber = e.TrackingNumber
		o.markShipped(e.SKUs)
	case *OrderDeliveredEvent:
		o.Status = StatusDelivered
	case *OrderCompletedEvent:
		o.Status = StatusCompleted
	case *ReturnRequestedEvent:
		o.Status = StatusReturnRequested
	case *ReturnApprovedEvent:
		o.Status = StatusReturnApproved
	case *OrderReturnedEvent:
		o.Status = StatusReturned
	case *OrderCancelledEvent:
		o.Status = StatusCancelled
		o.CancellationReason = e.Reason
	case *OrderRefundedEvent:
		o.Status = StatusRefunded
	}
	o.UpdatedAt = event.OccurredAt()
}

func (o *Order) markShipped(skus []string) {
	for _, sku := range skus {
		if item := o.findItem(sku); item != nil {
			item.Shipped = true
		}
	}
}
