package application

import (
	"context"
	"sort"
	"time"

	"github.com/wyfcoding/ecommerce/internal/inventory/domain"
)

// ItemView 库存项视图
type ItemView struct {
	ItemID          string            `json:"item_id"`
	ProductID       string            `json:"product_id"`
	VariantID       string            `json:"variant_id"`
	WarehouseID     string            `json:"warehouse_id"`
	SKU             string            `json:"sku"`
	OnHand          int64             `json:"on_hand"`
	Reserved        int64             `json:"reserved"`
	Available       int64             `json:"available"`
	Damaged         int64             `json:"damaged"`
	ReorderPoint    int64             `json:"reorder_point"`
	ReorderQuantity int64             `json:"reorder_quantity"`
	Version         int64             `json:"version"`
	Reservations    []ReservationView `json:"reservations"`
}

// ReservationView 预占视图
type ReservationView struct {
	OrderID    string    `json:"order_id"`
	Quantity   int64     `json:"quantity"`
	Status     string    `json:"status"`
	ReservedAt time.Time `json:"reserved_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// InventoryQueryService 库存查询服务，直接重放事件流构建视图
type InventoryQueryService struct {
	repo domain.Repository
}

// NewInventoryQueryService 创建库存查询服务
func NewInventoryQueryService(repo domain.Repository) *InventoryQueryService {
	return &InventoryQueryService{repo: repo}
}

// GetItem 查询单个库存项
func (s *InventoryQueryService) GetItem(ctx context.Context, itemID string) (*ItemView, error) {
	item, err := s.repo.Load(ctx, itemID)
	if err != nil {
		return nil, err
	}

	reservations := make([]ReservationView, 0, len(item.Reservations))
	for _, res := range item.Reservations {
		reservations = append(reservations, ReservationView{
			OrderID:    res.OrderID,
			Quantity:   res.Quantity,
			Status:     string(res.Status),
			ReservedAt: res.ReservedAt,
			ExpiresAt:  res.ExpiresAt,
		})
	}
	sort.Slice(reservations, func(a, b int) bool {
		return reservations[a].OrderID < reservations[b].OrderID
	})

	return &ItemView{
		ItemID:          item.ID,
		ProductID:       item.ProductID,
		VariantID:       item.VariantID,
		WarehouseID:     item.WarehouseID,
		SKU:             item.SKU,
		OnHand:          item.OnHand,
		Reserved:        item.Reserved,
		Available:       item.Available,
		Damaged:         item.Damaged,
		ReorderPoint:    item.ReorderPoint,
		ReorderQuantity: item.ReorderQuantity,
		Version:         item.Version(),
		Reservations:    reservations,
	}, nil
}
