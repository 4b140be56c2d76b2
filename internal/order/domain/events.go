package domain

import (
	"github.com/shopspring/decimal"

	"github.com/wyfcoding/ecommerce/pkg/eventsourcing"
)

// 订单事件类型名
const (
	EventOrderCreated           = "OrderCreated"
	EventOrderItemAdded         = "OrderItemAdded"
	EventOrderItemRemoved       = "OrderItemRemoved"
	EventOrderItemQtyChanged    = "OrderItemQuantityChanged"
	EventCouponApplied          = "CouponApplied"
	EventShippingAddressSet     = "ShippingAddressSet"
	EventBillingAddressSet      = "BillingAddressSet"
	EventContactUpdated         = "ContactUpdated"
	EventOrderConfirmed         = "OrderConfirmed"
	EventPaymentPendingRecorded = "PaymentPendingRecorded"
	EventPaymentSuccessRecorded = "PaymentSuccessRecorded"
	EventPaymentFailureRecorded = "PaymentFailureRecorded"
	EventOrderProcessing        = "OrderProcessing"
	EventOrderPartiallyShipped  = "OrderPartiallyShipped"
	EventOrderShipped           = "OrderShipped"
	EventOrderDelivered         = "OrderDelivered"
	EventOrderCompleted         = "OrderCompleted"
	EventReturnRequested        = "ReturnRequested"
	EventReturnApproved         = "ReturnApproved"
	EventOrderReturned          = "OrderReturned"
	EventOrderCancelled         = "OrderCancelled"
	EventOrderRefunded          = "OrderRefunded"
)

// OrderCreatedEvent 订单创建事件，携带结算所需的完整快照
type OrderCreatedEvent struct {
	eventsourcing.BaseEvent
	OrderID     string          `json:"order_id"`
	CustomerID  string          `json:"customer_id"`
	Currency    string          `json:"currency"`
	Items       []OrderItem     `json:"items"`
	ShippingFee decimal.Decimal `json:"shipping_fee"`
	Tax         decimal.Decimal `json:"tax"`
}

func (e *OrderCreatedEvent) EventType() string   { return EventOrderCreated }
func (e *OrderCreatedEvent) AggregateID() string { return e.OrderID }

// OrderItemAddedEvent 加购事件
type OrderItemAddedEvent struct {
	eventsourcing.BaseEvent
	OrderID string    `json:"order_id"`
	Item    OrderItem `json:"item"`
}

func (e *OrderItemAddedEvent) EventType() string   { return EventOrderItemAdded }
func (e *OrderItemAddedEvent) AggregateID() string { return e.OrderID }

// OrderItemRemovedEvent 移除商品事件
type OrderItemRemovedEvent struct {
	eventsourcing.BaseEvent
	OrderID string `json:"order_id"`
	SKU     string `json:"sku"`
}

func (e *OrderItemRemovedEvent) EventType() string   { return EventOrderItemRemoved }
func (e *OrderItemRemovedEvent) AggregateID() string { return e.OrderID }

// OrderItemQuantityChangedEvent 修改数量事件
type OrderItemQuantityChangedEvent struct {
	eventsourcing.BaseEvent
	OrderID  string `json:"order_id"`
	SKU      string `json:"sku"`
	Quantity int64  `json:"quantity"`
}

func (e *OrderItemQuantityChangedEvent) EventType() string   { return EventOrderItemQtyChanged }
func (e *OrderItemQuantityChangedEvent) AggregateID() string { return e.OrderID }

// CouponAppliedEvent 优惠券抵扣事件
type CouponAppliedEvent struct {
	eventsourcing.BaseEvent
	OrderID    string          `json:"order_id"`
	CouponCode string          `json:"coupon_code"`
	Discount   decimal.Decimal `json:"discount"`
}

func (e *CouponAppliedEvent) EventType() string   { return EventCouponApplied }
func (e *CouponAppliedEvent) AggregateID() string { return e.OrderID }

// ShippingAddressSetEvent 收货地址设定事件，地址一经设定不可变更
type ShippingAddressSetEvent struct {
	eventsourcing.BaseEvent
	OrderID string  `json:"order_id"`
	Address Address `json:"address"`
}

func (e *ShippingAddressSetEvent) EventType() string   { return EventShippingAddressSet }
func (e *ShippingAddressSetEvent) AggregateID() string { return e.OrderID }

// BillingAddressSetEvent 账单地址设定事件
type BillingAddressSetEvent struct {
	eventsourcing.BaseEvent
	OrderID string  `json:"order_id"`
	Address Address `json:"address"`
}

func (e *BillingAddressSetEvent) EventType() string   { return EventBillingAddressSet }
func (e *BillingAddressSetEvent) AggregateID() string { return e.OrderID }

// ContactUpdatedEvent 联系方式变更事件。未设定的字段不出现在事件中
type ContactUpdatedEvent struct {
	eventsourcing.BaseEvent
	OrderID string  `json:"order_id"`
	Email   *string `json:"email,omitempty"`
	Phone   *string `json:"phone,omitempty"`
}

func (e *ContactUpdatedEvent) EventType() string   { return EventContactUpdated }
func (e *ContactUpdatedEvent) AggregateID() string { return e.OrderID }

// OrderConfirmedEvent 订单确认事件
type OrderConfirmedEvent struct {
	eventsourcing.BaseEvent
	OrderID string `json:"order_id"`
}

func (e *OrderConfirmedEvent) EventType() string   { return EventOrderConfirmed }
func (e *OrderConfirmedEvent) AggregateID() string { return e.OrderID }

// PaymentPendingRecordedEvent 进入待支付事件
type PaymentPendingRecordedEvent struct {
	eventsourcing.BaseEvent
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
}

func (e *PaymentPendingRecordedEvent) EventType() string   { return EventPaymentPendingRecorded }
func (e *PaymentPendingRecordedEvent) AggregateID() string { return e.OrderID }

// PaymentSuccessRecordedEvent 支付成功事件
type PaymentSuccessRecordedEvent struct {
	eventsourcing.BaseEvent
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
}

func (e *PaymentSuccessRecordedEvent) EventType() string   { return EventPaymentSuccessRecorded }
func (e *PaymentSuccessRecordedEvent) AggregateID() string { return e.OrderID }

// PaymentFailureRecordedEvent 支付失败事件，订单退回已确认待重新支付
type PaymentFailureRecordedEvent struct {
	eventsourcing.BaseEvent
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}

func (e *PaymentFailureRecordedEvent) EventType() string   { return EventPaymentFailureRecorded }
func (e *PaymentFailureRecordedEvent) AggregateID() string { return e.OrderID }

// OrderProcessingEvent 进入拣货处理事件
type OrderProcessingEvent struct {
	eventsourcing.BaseEvent
	OrderID string `json:"order_id"`
}

func (e *OrderProcessingEvent) EventType() string   { return EventOrderProcessing }
func (e *OrderProcessingEvent) AggregateID() string { return e.OrderID }

// OrderPartiallyShippedEvent 部分发货事件，仅标记命名的商品子集
type OrderPartiallyShippedEvent struct {
	eventsourcing.BaseEvent
	OrderID        string   `json:"order_id"`
	ShipmentID     string   `json:"shipment_id"`
	Carrier        string   `json:"carrier"`
	TrackingNumber string   `json:"tracking_number"`
	SKUs           []string `json:"skus"`
}

func (e *OrderPartiallyShippedEvent) EventType() string   { return EventOrderPartiallyShipped }
func (e *OrderPartiallyShippedEvent) AggregateID() string { return e.OrderID }

// OrderShippedEvent 全量发货事件
type OrderShippedEvent struct {
	eventsourcing.BaseEvent
	OrderID        string   `json:"order_id"`
	ShipmentID     string   `json:"shipment_id"`
	Carrier        string   `json:"carrier"`
	TrackingNumber string   `json:"tracking_number"`
	SKUs           []string `json:"skus"`
}

func (e *OrderShippedEvent) EventType() string   { return EventOrderShipped }
func (e *OrderShippedEvent) AggregateID() string { return e.OrderID }

// OrderDeliveredEvent 签收事件
type OrderDeliveredEvent struct {
	eventsourcing.BaseEvent
	OrderID string `json:"order_id"`
}

func (e *OrderDeliveredEvent) EventType() string   { return EventOrderDelivered }
func (e *OrderDeliveredEvent) AggregateID() string { return e.OrderID }

// OrderCompletedEvent 订单完成事件，终态
type OrderCompletedEvent struct {
	eventsourcing.BaseEvent
	OrderID string `json:"order_id"`
}

func (e *OrderCompletedEvent) EventType() string   { return EventOrderCompleted }
func (e *OrderCompletedEvent) AggregateID() string { return e.OrderID }

// ReturnRequestedEvent 退货申请事件
type ReturnRequestedEvent struct {
	eventsourcing.BaseEvent
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}

func (e *ReturnRequestedEvent) EventType() string   { return EventReturnRequested }
func (e *ReturnRequestedEvent) AggregateID() string { return e.OrderID }

// ReturnApprovedEvent 退货审批通过事件
type ReturnApprovedEvent struct {
	eventsourcing.BaseEvent
	OrderID string `json:"order_id"`
}

func (e *ReturnApprovedEvent) EventType() string   { return EventReturnApproved }
func (e *ReturnApprovedEvent) AggregateID() string { return e.OrderID }

// OrderReturnedEvent 退货入库事件
type OrderReturnedEvent struct {
	eventsourcing.BaseEvent
	OrderID string `json:"order_id"`
}

func (e *OrderReturnedEvent) EventType() string   { return EventOrderReturned }
func (e *OrderReturnedEvent) AggregateID() string { return e.OrderID }

// OrderCancelledEvent 取消事件
type OrderCancelledEvent struct {
	eventsourcing.BaseEvent
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}

func (e *OrderCancelledEvent) EventType() string   { return EventOrderCancelled }
func (e *OrderCancelledEvent) AggregateID() string { return e.OrderID }

// OrderRefundedEvent 退款完成事件，终态
type OrderRefundedEvent struct {
	eventsourcing.BaseEvent
	OrderID string `json:"order_id"`
}

func (e *OrderRefundedEvent) EventType() string   { return EventOrderRefunded }
func (e *OrderRefundedEvent) AggregateID() string { return e.OrderID }

// RegisterEvents 向注册表注册全部订单事件类型
func RegisterEvents(r *eventsourcing.Registry) {
	r.Register(EventOrderCreated, func() eventsourcing.DomainEvent { return &OrderCreatedEvent{} })
	r.Register(EventOrderItemAdded, func() eventsourcing.DomainEvent { return &OrderItemAddedEvent{} })
	r.Register(EventOrderItemRemoved, func() eventsourcing.DomainEvent { return &OrderItemRemovedEvent{} })
	r.Register(EventOrderItemQtyChanged, func() eventsourcing.DomainEvent { return &OrderItemQuantityChangedEvent{} })
	r.Register(EventCouponApplied, func() eventsourcing.DomainEvent { return &CouponAppliedEvent{} })
	r.Register(EventShippingAddressSet, func() eventsourcing.DomainEvent { return &ShippingAddressSetEvent{} })
	r.Register(EventBillingAddressSet, func() eventsourcing.DomainEvent { return &BillingAddressSetEvent{} })
	r.Register(EventContactUpdated, func() eventsourcing.DomainEvent { return &ContactUpdatedEvent{} })
	r.Register(EventOrderConfirmed, func() eventsourcing.DomainEvent { return &OrderConfirmedEvent{} })
	r.Register(EventPaymentPendingRecorded, func() eventsourcing.DomainEvent { return &PaymentPendingRecordedEvent{} })
	r.Register(EventPaymentSuccessRecorded, func() eventsourcing.DomainEvent { return &PaymentSuccessRecordedEvent{} })
	r.Register(EventPaymentFailureRecorded, func() eventsourcing.DomainEvent { return &PaymentFailureRecordedEvent{} })
	r.Register(EventOrderProcessing, func() eventsourcing.DomainEvent { return &OrderProcessingEvent{} })
	r.Register(EventOrderPartiallyShipped, func() eventsourcing.DomainEvent { return &OrderPartiallyShippedEvent{} })
	r.Register(EventOrderShipped, func() eventsourcing.DomainEvent { return &OrderShippedEvent{} })
	r.Register(EventOrderDelivered, func() eventsourcing.DomainEvent { return &OrderDeliveredEvent{} })
	r.Register(EventOrderCompleted, func() eventsourcing.DomainEvent { return &OrderCompletedEvent{} })
	r.Register(EventReturnRequested, func() eventsourcing.DomainEvent { return &ReturnRequestedEvent{} })
	r.Register(EventReturnApproved, func() eventsourcing.DomainEvent { return &ReturnApprovedEvent{} })
	r.Register(EventOrderReturned, func() eventsourcing.DomainEvent { return &OrderReturnedEvent{} })
	r.Register(EventOrderCancelled, func() eventsourcing.DomainEvent { return &OrderCancelledEvent{} })
	r.Register(EventOrderRefunded, func() eventsourcing.DomainEvent { return &OrderRefundedEvent{} })
}
