package domain

import (
	"sort"
	"time"

	"github.com/wyfcoding/ecommerce/pkg/errs"
	"github.com/wyfcoding/ecommerce/pkg/eventsourcing"
)

// ReservationStatus 预占状态
type ReservationStatus string

const (
	ReservationActive    ReservationStatus = "ACTIVE"
	ReservationConfirmed ReservationStatus = "CONFIRMED"
)

// DefaultReservationTTL 预占默认有效期
const DefaultReservationTTL = 15 * time.Minute

// Reservation 库存预占，归属于唯一的库存项，以订单 ID 为键。
// 释放、超时与落实出库都会将其从聚合中移除
type Reservation struct {
	OrderID    string            `json:"order_id"`
	Quantity   int64             `json:"quantity"`
	Status     ReservationStatus `json:"status"`
	ReservedAt time.Time         `json:"reserved_at"`
	ExpiresAt  time.Time         `json:"expires_at"`
}

// InventoryItem 库存项聚合。
// 恒等式 Available == OnHand - Reserved 在每个事件折叠后都成立
type InventoryItem struct {
	eventsourcing.AggregateRoot

	ID              string
	ProductID       string
	VariantID       string
	WarehouseID     string
	SKU             string
	OnHand          int64
	Reserved        int64
	Available       int64
	Damaged         int64
	ReorderPoint    int64
	ReorderQuantity int64
	Reservations    map[string]*Reservation
	CreatedAt       time.Time
}

// NewInventoryItem 建档并初始化库存项
func NewInventoryItem(id, productID, variantID, warehouseID, sku string, initialOnHand, reorderPoint, reorderQuantity int64) (*InventoryItem, error) {
	if id == "" || productID == "" || warehouseID == "" || sku == "" {
		return nil, errs.Validationf("missing_field", "item id, product id, warehouse id and sku are required")
	}
	if initialOnHand < 0 {
		return nil, errs.Validationf("negative_quantity", "initial on-hand quantity must not be negative, got %d", initialOnHand)
	}
	if reorderPoint < 0 || reorderQuantity < 0 {
		return nil, errs.Validationf("negative_quantity", "reorder point and quantity must not be negative")
	}

	item := emptyItem()
	item.ApplyChange(item, &ItemCreatedEvent{
		BaseEvent:       eventsourcing.NewBaseEvent(),
		ItemID:          id,
		ProductID:       productID,
		VariantID:       variantID,
		WarehouseID:     warehouseID,
		SKU:             sku,
		InitialOnHand:   initialOnHand,
		ReorderPoint:    reorderPoint,
		ReorderQuantity: reorderQuantity,
	})
	item.checkLowStock()
	return item, nil
}

// LoadInventoryItem 从事件流重放恢复库存项
func LoadInventoryItem(events []eventsourcing.DomainEvent) *InventoryItem {
	item := emptyItem()
	item.Replay(item, events)
	return item
}

func emptyItem() *InventoryItem {
	return &InventoryItem{Reservations: make(map[string]*Reservation)}
}

// AggregateID 返回流 ID
func (i *InventoryItem) AggregateID() string { return i.ID }

// ReceiveStock 入库
func (i *InventoryItem) ReceiveStock(quantity int64, reference string) error {
	if quantity <= 0 {
		return errs.Validationf("invalid_quantity", "receive quantity must be positive, got %d", quantity)
	}
	i.ApplyChange(i, &StockReceivedEvent{
		BaseEvent: eventsourcing.NewBaseEvent(),
		ItemID:    i.ID,
		Quantity:  quantity,
		Reference: reference,
	})
	return nil
}

// Reserve 为订单预占库存。库存不足返回资源耗尽错误；同一订单不允许重复预占。
// 并发正确性完全依赖事件日志的版本冲突拒绝，聚合内部不加锁
func (i *InventoryItem) Reserve(orderID string, quantity int64, expiresAt time.Time) error {
	if orderID == "" {
		return errs.Validationf("missing_field", "order id is required")
	}
	if quantity <= 0 {
		return errs.Validationf("invalid_quantity", "reserve quantity must be positive, got %d", quantity)
	}
	if _, ok := i.Reservations[orderID]; ok {
		return errs.Validationf("duplicate_reservation", "order %s already holds a reservation on item %s", orderID, i.ID)
	}
	if quantity > i.Available {
		return errs.Exhausted("insufficient_stock", i.Available, quantity,
			"insufficient stock on item %s", i.ID)
	}

	now := time.Now().UTC()
	if expiresAt.IsZero() {
		expiresAt = now.Add(DefaultReservationTTL)
	}
	i.ApplyChange(i, &StockReservedEvent{
		BaseEvent:  eventsourcing.NewBaseEvent(),
		ItemID:     i.ID,
		OrderID:    orderID,
		Quantity:   quantity,
		ReservedAt: now,
		ExpiresAt:  expiresAt,
	})
	i.checkLowStock()
	return nil
}

// ReleaseReservation 释放预占，恢复可用量
func (i *InventoryItem) ReleaseReservation(orderID, reason string) error {
	res, ok := i.Reservations[orderID]
	if !ok {
		return errs.Validationf("reservation_not_found", "no reservation for order %s on item %s", orderID, i.ID)
	}
	if res.Status != ReservationActive {
		return errs.Transition("reservation", string(res.Status), "RELEASED")
	}
	i.ApplyChange(i, &ReservationReleasedEvent{
		BaseEvent: eventsourcing.NewBaseEvent(),
		ItemID:    i.ID,
		OrderID:   orderID,
		Quantity:  res.Quantity,
		Reason:    reason,
	})
	return nil
}

// ConfirmReservation 确认预占，仅变更状态，不移动数量
func (i *InventoryItem) ConfirmReservation(orderID string) error {
	res, ok := i.Reservations[orderID]
	if !ok {
		return errs.Validationf("reservation_not_found", "no reservation for order %s on item %s", orderID, i.ID)
	}
	if res.Status != ReservationActive {
		return errs.Transition("reservation", string(res.Status), string(ReservationConfirmed))
	}
	i.ApplyChange(i, &ReservationConfirmedEvent{
		BaseEvent: eventsourcing.NewBaseEvent(),
		ItemID:    i.ID,
		OrderID:   orderID,
	})
	return nil
}

// CommitStock 落实出库。要求预占已确认，同时扣减在库量与预占量并移除预占
func (i *InventoryItem) CommitStock(orderID string) error {
	res, ok := i.Reservations[orderID]
	if !ok {
		return errs.Validationf("reservation_not_found", "no reservation for order %s on item %s", orderID, i.ID)
	}
	if res.Status != ReservationConfirmed {
		return errs.Transition("reservation", string(res.Status), "COMMITTED")
	}
	i.ApplyChange(i, &StockCommittedEvent{
		BaseEvent: eventsourcing.NewBaseEvent(),
		ItemID:    i.ID,
		OrderID:   orderID,
		Quantity:  res.Quantity,
	})
	i.checkLowStock()
	return nil
}

// ReleaseExpired 释放 asOf 时刻之前到期的全部 Active 预占。
// 由外部调度器周期触发，聚合自身从不自动过期。
// 按订单 ID 排序保证事件顺序确定
func (i *InventoryItem) ReleaseExpired(asOf time.Time) int {
	orderIDs := make([]string, 0, len(i.Reservations))
	for orderID, res := range i.Reservations {
		if res.Status == ReservationActive && !res.ExpiresAt.After(asOf) {
			orderIDs = append(orderIDs, orderID)
		}
	}
	sort.Strings(orderIDs)

	for _, orderID := range orderIDs {
		res := i.Reservations[orderID]
		i.ApplyChange(i, &ReservationExpiredEvent{
			BaseEvent: eventsourcing.NewBaseEvent(),
			ItemID:    i.ID,
			OrderID:   orderID,
			Quantity:  res.Quantity,
			ExpiredAt: res.ExpiresAt,
		})
	}
	return len(orderIDs)
}

// AdjustStock 手工调整在库量，delta 可正可负
func (i *InventoryItem) AdjustStock(delta int64, reason string) error {
	if delta == 0 {
		return errs.Validationf("invalid_quantity", "adjustment delta must not be zero")
	}
	if i.OnHand+delta < 0 {
		return errs.Validationf("negative_result", "adjustment would drive on-hand below zero (on-hand %d, delta %d)", i.OnHand, delta)
	}
	if i.OnHand+delta < i.Reserved {
		return errs.Validationf("negative_result", "adjustment would drive available below zero (reserved %d)", i.Reserved)
	}
	i.ApplyChange(i, &StockAdjustedEvent{
		BaseEvent: eventsourcing.NewBaseEvent(),
		ItemID:    i.ID,
		Delta:     delta,
		Reason:    reason,
	})
	i.checkLowStock()
	return nil
}

// MarkDamaged 将可用库存转入破损
func (i *InventoryItem) MarkDamaged(quantity int64, reason string) error {
	if quantity <= 0 {
		return errs.Validationf("invalid_quantity", "damaged quantity must be positive, got %d", quantity)
	}
	if quantity > i.Available {
		return errs.Validationf("negative_result", "cannot damage %d units, only %d available", quantity, i.Available)
	}
	i.ApplyChange(i, &StockDamagedEvent{
		BaseEvent: eventsourcing.NewBaseEvent(),
		ItemID:    i.ID,
		Quantity:  quantity,
		Reason:    reason,
	})
	i.checkLowStock()
	return nil
}

// WriteOffDamaged 核销破损库存
func (i *InventoryItem) WriteOffDamaged(quantity int64) error {
	if quantity <= 0 {
		return errs.Validationf("invalid_quantity", "write-off quantity must be positive, got %d", quantity)
	}
	if quantity > i.Damaged {
		return errs.Validationf("negative_result", "cannot write off %d units, only %d damaged", quantity, i.Damaged)
	}
	i.ApplyChange(i, &DamagedWrittenOffEvent{
		BaseEvent: eventsourcing.NewBaseEvent(),
		ItemID:    i.ID,
		Quantity:  quantity,
	})
	return nil
}

// ReturnToStock 破损修复回库
func (i *InventoryItem) ReturnToStock(quantity int64) error {
	if quantity <= 0 {
		return errs.Validationf("invalid_quantity", "return quantity must be positive, got %d", quantity)
	}
	if quantity > i.Damaged {
		return errs.Validationf("negative_result", "cannot return %d units, only %d damaged", quantity, i.Damaged)
	}
	i.ApplyChange(i, &StockReturnedEvent{
		BaseEvent: eventsourcing.NewBaseEvent(),
		ItemID:    i.ID,
		Quantity:  quantity,
	})
	i.checkLowStock()
	return nil
}

// RecordStockCheck 盘点，以实盘数修正在库量
func (i *InventoryItem) RecordStockCheck(counted int64) error {
	if counted < 0 {
		return errs.Validationf("invalid_quantity", "counted quantity must not be negative, got %d", counted)
	}
	if counted < i.Reserved {
		return errs.Validationf("negative_result", "counted quantity %d is below reserved quantity %d", counted, i.Reserved)
	}
	i.ApplyChange(i, &StockCheckRecordedEvent{
		BaseEvent: eventsourcing.NewBaseEvent(),
		ItemID:    i.ID,
		Counted:   counted,
		Delta:     counted - i.OnHand,
	})
	i.checkLowStock()
	return nil
}

// checkLowStock 可用量降到补货点以下时追发预警事件
func (i *InventoryItem) checkLowStock() {
	if i.Available <= i.ReorderPoint {
		i.ApplyChange(i, &LowStockDetectedEvent{
			BaseEvent:       eventsourcing.NewBaseEvent(),
			ItemID:          i.ID,
			Available:       i.Available,
			ReorderPoint:    i.ReorderPoint,
			ReorderQuantity: i.ReorderQuantity,
		})
	}
}

// Apply 事件折叠。每种事件一个分支，必须保持确定性
func (i *InventoryItem) Apply(event eventsourcing.DomainEvent) {
	switch e := event.(type) {
	case *ItemCreatedEvent:
		i.ID = e.ItemID
		i.ProductID = e.ProductID
		i.VariantID = e.VariantID
		i.WarehouseID = e.WarehouseID
		i.SKU = e.SKU
		i.OnHand = e.InitialOnHand
		i.ReorderPoint = e.ReorderPoint
		i.ReorderQuantity = e.ReorderQuantity
		i.CreatedAt = e.OccurredAt()
	case *StockReceivedEvent:
		i.OnHand += e.Quantity
	case *StockReservedEvent:
		i.Reserved += e.Quantity
		i.Reservations[e.OrderID] = &Reservation{
			OrderID:    e.OrderID,
			Quantity:   e.Quantity,
			Status:     ReservationActive,
			ReservedAt: e.ReservedAt,
			ExpiresAt:  e.ExpiresAt,
		}
	case *ReservationReleasedEvent:
		i.Reserved -= e.Quantity
		delete(i.Reservations, e.OrderID)
	case *ReservationConfirmedEvent:
		if res, ok := i.Reservations[e.OrderID]; ok {
			res.Status = ReservationConfirmed
		}
	case *ReservationExpiredEvent:
		i.Reserved -= e.Quantity
		delete(i.Reservations, e.OrderID)
	case *StockCommittedEvent:
		i.OnHand -= e.Quantity
		i.Reserved -= e.Quantity
		delete(i.Reservations, e.OrderID)
	case *StockAdjustedEvent:
		i.OnHand += e.Delta
	case *StockDamagedEvent:
		i.OnHand -= e.Quantity
		i.Damaged += e.Quantity
	case *DamagedWrittenOffEvent:
		i.Damaged -= e.Quantity
	case *StockReturnedEvent:
		i.Damaged -= e.Quantity
		i.OnHand += e.Quantity
	case *StockCheckRecordedEvent:
		i.OnHand = e.Counted
	case *LowStockDetectedEvent:
		// 预警事件不改变库存状态
	}
	i.Available = i.OnHand - i.Reserved
}
