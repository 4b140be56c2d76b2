package application

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/wyfcoding/ecommerce/internal/order/domain"
)

// OrderView 订单视图
type OrderView struct {
	OrderID            string          `json:"order_id"`
	CustomerID         string          `json:"customer_id"`
	Status             string          `json:"status"`
	Items              []ItemView      `json:"items"`
	ShippingAddress    *domain.Address `json:"shipping_address,omitempty"`
	BillingAddress     *domain.Address `json:"billing_address,omitempty"`
	Email              string          `json:"email,omitempty"`
	Phone              string          `json:"phone,omitempty"`
	Subtotal           decimal.Decimal `json:"subtotal"`
	Shipping           decimal.Decimal `json:"shipping"`
	Tax                decimal.Decimal `json:"tax"`
	Discount           decimal.Decimal `json:"discount"`
	GrandTotal         decimal.Decimal `json:"grand_total"`
	Currency           string          `json:"currency"`
	CouponCode         string          `json:"coupon_code,omitempty"`
	PaymentID          string          `json:"payment_id,omitempty"`
	PaymentStatus      string          `json:"payment_status,omitempty"`
	ShipmentID         string          `json:"shipment_id,omitempty"`
	Carrier            string          `json:"carrier,omitempty"`
	TrackingNumber     string          `json:"tracking_number,omitempty"`
	CancellationReason string          `json:"cancellation_reason,omitempty"`
	Version            int64           `json:"version"`
}

// ItemView 订单行视图
type ItemView struct {
	ProductID string          `json:"product_id"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int64           `json:"quantity"`
	Discount  decimal.Decimal `json:"discount"`
	Shipped   bool            `json:"shipped"`
}

// OrderQueryService 订单查询服务，直接重放事件流构建视图
type OrderQueryService struct {
	repo domain.Repository
}

// NewOrderQueryService 创建订单查询服务
func NewOrderQueryService(repo domain.Repository) *OrderQueryService {
	return &OrderQueryService{repo: repo}
}

// GetOrder 查询单个订单
func (s *OrderQueryService) GetOrder(ctx context.Context, orderID string) (*OrderView, error) {
	order, err := s.repo.Load(ctx, orderID)
	if err != nil {
		return nil, err
	}

	items := make([]ItemView, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, ItemView{
			ProductID: item.ProductID,
			SKU:       item.SKU,
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			Discount:  item.Discount,
			Shipped:   item.Shipped,
		})
	}

	view := &OrderView{
		OrderID:            order.ID,
		CustomerID:         order.CustomerID,
		Status:             string(order.Status),
		Items:              items,
		Email:              order.Email,
		Phone:              order.Phone,
		Subtotal:           order.Pricing.Subtotal,
		Shipping:           order.Pricing.Shipping,
		Tax:                order.Pricing.Tax,
		Discount:           order.Pricing.Discount,
		GrandTotal:         order.Pricing.GrandTotal,
		Currency:           order.Pricing.Currency,
		CouponCode:         order.CouponCode,
		PaymentID:          order.PaymentID,
		PaymentStatus:      order.PaymentStatus,
		ShipmentID:         order.ShipmentID,
		Carrier:            order.Carrier,
		TrackingNumber:     order.TrackingNumber,
		CancellationReason: order.CancellationReason,
		Version:            order.Version(),
	}
	if !order.ShippingAddress.IsZero() {
		addr := order.ShippingAddress
		view.ShippingAddress = &addr
	}
	if !order.BillingAddress.IsZero() {
		addr := order.BillingAddress
		view.BillingAddress = &addr
	}
	return view, nil
}
