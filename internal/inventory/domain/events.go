package domain

import (
	"time"

	"github.com/wyfcoding/ecommerce/pkg/eventsourcing"
)

// 库存事件类型名
const (
	EventItemCreated          = "InventoryItemCreated"
	EventStockReceived        = "StockReceived"
	EventStockReserved        = "StockReserved"
	EventReservationReleased  = "ReservationReleased"
	EventReservationConfirmed = "ReservationConfirmed"
	EventReservationExpired   = "ReservationExpired"
	EventStockCommitted       = "StockCommitted"
	EventStockAdjusted        = "StockAdjusted"
	EventStockDamaged         = "StockDamaged"
	EventDamagedWrittenOff    = "DamagedWrittenOff"
	EventStockReturned        = "StockReturned"
	EventStockCheckRecorded   = "StockCheckRecorded"
	EventLowStockDetected     = "LowStockDetected"
)

// ItemCreatedEvent 库存项建档事件
type ItemCreatedEvent struct {
	eventsourcing.BaseEvent
	ItemID          string `json:"item_id"`
	ProductID       string `json:"product_id"`
	VariantID       string `json:"variant_id"`
	WarehouseID     string `json:"warehouse_id"`
	SKU             string `json:"sku"`
	InitialOnHand   int64  `json:"initial_on_hand"`
	ReorderPoint    int64  `json:"reorder_point"`
	ReorderQuantity int64  `json:"reorder_quantity"`
}

func (e *ItemCreatedEvent) EventType() string   { return EventItemCreated }
func (e *ItemCreatedEvent) AggregateID() string { return e.ItemID }

// StockReceivedEvent 入库事件
type StockReceivedEvent struct {
	eventsourcing.BaseEvent
	ItemID    string `json:"item_id"`
	Quantity  int64  `json:"quantity"`
	Reference string `json:"reference"`
}

func (e *StockReceivedEvent) EventType() string   { return EventStockReceived }
func (e *StockReceivedEvent) AggregateID() string { return e.ItemID }

// StockReservedEvent 库存预占事件
type StockReservedEvent struct {
	eventsourcing.BaseEvent
	ItemID     string    `json:"item_id"`
	OrderID    string    `json:"order_id"`
	Quantity   int64     `json:"quantity"`
	ReservedAt time.Time `json:"reserved_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

func (e *StockReservedEvent) EventType() string   { return EventStockReserved }
func (e *StockReservedEvent) AggregateID() string { return e.ItemID }

// ReservationReleasedEvent 预占释放事件
type ReservationReleasedEvent struct {
	eventsourcing.BaseEvent
	ItemID   string `json:"item_id"`
	OrderID  string `json:"order_id"`
	Quantity int64  `json:"quantity"`
	Reason   string `json:"reason"`
}

func (e *ReservationReleasedEvent) EventType() string   { return EventReservationReleased }
func (e *ReservationReleasedEvent) AggregateID() string { return e.ItemID }

// ReservationConfirmedEvent 预占确认事件
type ReservationConfirmedEvent struct {
	eventsourcing.BaseEvent
	ItemID  string `json:"item_id"`
	OrderID string `json:"order_id"`
}

func (e *ReservationConfirmedEvent) EventType() string   { return EventReservationConfirmed }
func (e *ReservationConfirmedEvent) AggregateID() string { return e.ItemID }

// ReservationExpiredEvent 预占超时回收事件
type ReservationExpiredEvent struct {
	eventsourcing.BaseEvent
	ItemID    string    `json:"item_id"`
	OrderID   string    `json:"order_id"`
	Quantity  int64     `json:"quantity"`
	ExpiredAt time.Time `json:"expired_at"`
}

func (e *ReservationExpiredEvent) EventType() string   { return EventReservationExpired }
func (e *ReservationExpiredEvent) AggregateID() string { return e.ItemID }

// StockCommittedEvent 预占落实出库事件，唯一会真正消耗实物库存的事件
type StockCommittedEvent struct {
	eventsourcing.BaseEvent
	ItemID   string `json:"item_id"`
	OrderID  string `json:"order_id"`
	Quantity int64  `json:"quantity"`
}

func (e *StockCommittedEvent) EventType() string   { return EventStockCommitted }
func (e *StockCommittedEvent) AggregateID() string { return e.ItemID }

// StockAdjustedEvent 库存手工调整事件，Delta 可正可负
type StockAdjustedEvent struct {
	eventsourcing.BaseEvent
	ItemID string `json:"item_id"`
	Delta  int64  `json:"delta"`
	Reason string `json:"reason"`
}

func (e *StockAdjustedEvent) EventType() string   { return EventStockAdjusted }
func (e *StockAdjustedEvent) AggregateID() string { return e.ItemID }

// StockDamagedEvent 库存破损事件，数量从可用转入破损
type StockDamagedEvent struct {
	eventsourcing.BaseEvent
	ItemID   string `json:"item_id"`
	Quantity int64  `json:"quantity"`
	Reason   string `json:"reason"`
}

func (e *StockDamagedEvent) EventType() string   { return EventStockDamaged }
func (e *StockDamagedEvent) AggregateID() string { return e.ItemID }

// DamagedWrittenOffEvent 破损核销事件
type DamagedWrittenOffEvent struct {
	eventsourcing.BaseEvent
	ItemID   string `json:"item_id"`
	Quantity int64  `json:"quantity"`
}

func (e *DamagedWrittenOffEvent) EventType() string   { return EventDamagedWrittenOff }
func (e *DamagedWrittenOffEvent) AggregateID() string { return e.ItemID }

// StockReturnedEvent 破损修复回库事件
type StockReturnedEvent struct {
	eventsourcing.BaseEvent
	ItemID   string `json:"item_id"`
	Quantity int64  `json:"quantity"`
}

func (e *StockReturnedEvent) EventType() string   { return EventStockReturned }
func (e *StockReturnedEvent) AggregateID() string { return e.ItemID }

// StockCheckRecordedEvent 盘点事件，以实盘数为准修正在库量
type StockCheckRecordedEvent struct {
	eventsourcing.BaseEvent
	ItemID  string `json:"item_id"`
	Counted int64  `json:"counted"`
	Delta   int64  `json:"delta"`
}

func (e *StockCheckRecordedEvent) EventType() string   { return EventStockCheckRecorded }
func (e *StockCheckRecordedEvent) AggregateID() string { return e.ItemID }

// LowStockDetectedEvent 低库存预警事件，可用量降到补货点以下时发出
type LowStockDetectedEvent struct {
	eventsourcing.BaseEvent
	ItemID          string `json:"item_id"`
	Available       int64  `json:"available"`
	ReorderPoint    int64  `json:"reorder_point"`
	ReorderQuantity int64  `json:"reorder_quantity"`
}

func (e *LowStockDetectedEvent) EventType() string   { return EventLowStockDetected }
func (e *LowStockDetectedEvent) AggregateID() string { return e.ItemID }

// RegisterEvents 向注册表注册全部库存事件类型
func RegisterEvents(r *eventsourcing.Registry) {
	r.Register(EventItemCreated, func() eventsourcing.DomainEvent { return &ItemCreatedEvent{} })
	r.Register(EventStockReceived, func() eventsourcing.DomainEvent { return &StockReceivedEvent{} })
	r.Register(EventStockReserved, func() eventsourcing.DomainEvent { return &StockReservedEvent{} })
	r.Register(EventReservationReleased, func() eventsourcing.DomainEvent { return &ReservationReleasedEvent{} })
	r.Register(EventReservationConfirmed, func() eventsourcing.DomainEvent { return &ReservationConfirmedEvent{} })
	r.Register(EventReservationExpired, func() eventsourcing.DomainEvent { return &ReservationExpiredEvent{} })
	r.Register(EventStockCommitted, func() eventsourcing.DomainEvent { return &StockCommittedEvent{} })
	r.Register(EventStockAdjusted, func() eventsourcing.DomainEvent { return &StockAdjustedEvent{} })
	r.Register(EventStockDamaged, func() eventsourcing.DomainEvent { return &StockDamagedEvent{} })
	r.Register(EventDamagedWrittenOff, func() eventsourcing.DomainEvent { return &DamagedWrittenOffEvent{} })
	r.Register(EventStockReturned, func() eventsourcing.DomainEvent { return &StockReturnedEvent{} })
	r.Register(EventStockCheckRecorded, func() eventsourcing.DomainEvent { return &StockCheckRecordedEvent{} })
	r.Register(EventLowStockDetected, func() eventsourcing.DomainEvent { return &LowStockDetectedEvent{} })
}
