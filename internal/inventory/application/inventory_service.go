package application

import (
	"context"
	"errors"
	"time"

	"github.com/wyfcoding/ecommerce/internal/inventory/domain"
	"github.com/wyfcoding/ecommerce/pkg/eventsourcing"
	"github.com/wyfcoding/ecommerce/pkg/idgen"
	"github.com/wyfcoding/ecommerce/pkg/logger"
	"github.com/wyfcoding/ecommerce/pkg/metrics"
)

// CreateItemCommand 库存建档命令
type CreateItemCommand struct {
	ProductID       string `json:"product_id"`
	VariantID       string `json:"variant_id"`
	WarehouseID     string `json:"warehouse_id"`
	SKU             string `json:"sku"`
	InitialOnHand   int64  `json:"initial_on_hand"`
	ReorderPoint    int64  `json:"reorder_point"`
	ReorderQuantity int64  `json:"reorder_quantity"`
}

// ReceiveStockCommand 入库命令
type ReceiveStockCommand struct {
	ItemID    string `json:"item_id"`
	Quantity  int64  `json:"quantity"`
	Reference string `json:"reference"`
}

// ReserveStockCommand 预占命令
type ReserveStockCommand struct {
	ItemID   string `json:"item_id"`
	OrderID  string `json:"order_id"`
	Quantity int64  `json:"quantity"`
	// TTLMinutes 为 0 时使用默认有效期
	TTLMinutes int `json:"ttl_minutes"`
}

// ReleaseReservationCommand 释放预占命令
type ReleaseReservationCommand struct {
	ItemID  string `json:"item_id"`
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}

// ConfirmReservationCommand 确认预占命令
type ConfirmReservationCommand struct {
	ItemID  string `json:"item_id"`
	OrderID string `json:"order_id"`
}

// CommitStockCommand 落实出库命令
type CommitStockCommand struct {
	ItemID  string `json:"item_id"`
	OrderID string `json:"order_id"`
}

// AdjustStockCommand 手工调整命令
type AdjustStockCommand struct {
	ItemID string `json:"item_id"`
	Delta  int64  `json:"delta"`
	Reason string `json:"reason"`
}

// MarkDamagedCommand 破损登记命令
type MarkDamagedCommand struct {
	ItemID   string `json:"item_id"`
	Quantity int64  `json:"quantity"`
	Reason   string `json:"reason"`
}

// WriteOffDamagedCommand 破损核销命令
type WriteOffDamagedCommand struct {
	ItemID   string `json:"item_id"`
	Quantity int64  `json:"quantity"`
}

// ReturnToStockCommand 破损回库命令
type ReturnToStockCommand struct {
	ItemID   string `json:"item_id"`
	Quantity int64  `json:"quantity"`
}

// RecordStockCheckCommand 盘点命令
type RecordStockCheckCommand struct {
	ItemID  string `json:"item_id"`
	Counted int64  `json:"counted"`
}

// InventoryCommandService 处理库存相关的命令操作。
// 版本冲突时重新加载聚合并重新校验整个命令，不盲目重放旧命令
type InventoryCommandService struct {
	repo       domain.Repository
	idgen      idgen.Generator
	metrics    *metrics.Metrics
	retryLimit int
	defaultTTL time.Duration
}

// NewInventoryCommandService 创建库存命令服务
func NewInventoryCommandService(repo domain.Repository, gen idgen.Generator, m *metrics.Metrics, retryLimit int, defaultTTL time.Duration) *InventoryCommandService {
	if retryLimit <= 0 {
		retryLimit = 3
	}
	if defaultTTL <= 0 {
		defaultTTL = domain.DefaultReservationTTL
	}
	return &InventoryCommandService{
		repo:       repo,
		idgen:      gen,
		metrics:    m,
		retryLimit: retryLimit,
		defaultTTL: defaultTTL,
	}
}

// CreateItem 库存建档，返回新库存项 ID
func (s *InventoryCommandService) CreateItem(ctx context.Context, cmd CreateItemCommand) (string, error) {
	itemID := idgen.WithPrefix(s.idgen, "INV")
	item, err := domain.NewInventoryItem(itemID, cmd.ProductID, cmd.VariantID, cmd.WarehouseID, cmd.SKU,
		cmd.InitialOnHand, cmd.ReorderPoint, cmd.ReorderQuantity)
	if err != nil {
		s.record("create_item", err)
		return "", err
	}
	if err := s.repo.Save(ctx, item); err != nil {
		s.record("create_item", err)
		return "", err
	}
	s.record("create_item", nil)
	logger.Info(ctx, "Inventory item created", "item_id", itemID, "sku", cmd.SKU, "on_hand", cmd.InitialOnHand)
	return itemID, nil
}

// ReceiveStock 入库
func (s *InventoryCommandService) ReceiveStock(ctx context.Context, cmd ReceiveStockCommand) error {
	return s.execute(ctx, "receive_stock", cmd.ItemID, func(item *domain.InventoryItem) error {
		return item.ReceiveStock(cmd.Quantity, cmd.Reference)
	})
}

// ReserveStock 预占库存
func (s *InventoryCommandService) ReserveStock(ctx context.Context, cmd ReserveStockCommand) error {
	ttl := s.defaultTTL
	if cmd.TTLMinutes > 0 {
		ttl = time.Duration(cmd.TTLMinutes) * time.Minute
	}
	return s.execute(ctx, "reserve_stock", cmd.ItemID, func(item *domain.InventoryItem) error {
		return item.Reserve(cmd.OrderID, cmd.Quantity, time.Now().UTC().Add(ttl))
	})
}

// ReleaseReservation 释放预占
func (s *InventoryCommandService) ReleaseReservation(ctx context.Context, cmd ReleaseReservationCommand) error {
	return s.execute(ctx, "release_reservation", cmd.ItemID, func(item *domain.InventoryItem) error {
		return item.ReleaseReservation(cmd.OrderID, cmd.Reason)
	})
}

// ConfirmReservation 确认预占
func (s *InventoryCommandService) ConfirmReservation(ctx context.Context, cmd ConfirmReservationCommand) error {
	return s.execute(ctx, "confirm_reservation", cmd.ItemID, func(item *domain.InventoryItem) error {
		return item.ConfirmReservation(cmd.OrderID)
	})
}

// CommitStock 落实出库
func (s *InventoryCommandService) CommitStock(ctx context.Context, cmd CommitStockCommand) error {
	return s.execute(ctx, "commit_stock", cmd.ItemID, func(item *domain.InventoryItem) error {
		return item.CommitStock(cmd.OrderID)
	})
}

// AdjustStock 手工调整
func (s *InventoryCommandService) AdjustStock(ctx context.Context, cmd AdjustStockCommand) error {
	return s.execute(ctx, "adjust_stock", cmd.ItemID, func(item *domain.InventoryItem) error {
		return item.AdjustStock(cmd.Delta, cmd.Reason)
	})
}

// MarkDamaged 破损登记
func (s *InventoryCommandService) MarkDamaged(ctx context.Context, cmd MarkDamagedCommand) error {
	return s.execute(ctx, "mark_damaged", cmd.ItemID, func(item *domain.InventoryItem) error {
		return item.MarkDamaged(cmd.Quantity, cmd.Reason)
	})
}

// WriteOffDamaged 破损核销
func (s *InventoryCommandService) WriteOffDamaged(ctx context.Context, cmd WriteOffDamagedCommand) error {
	return s.execute(ctx, "write_off_damaged", cmd.ItemID, func(item *domain.InventoryItem) error {
		return item.WriteOffDamaged(cmd.Quantity)
	})
}

// ReturnToStock 破损回库
func (s *InventoryCommandService) ReturnToStock(ctx context.Context, cmd ReturnToStockCommand) error {
	return s.execute(ctx, "return_to_stock", cmd.ItemID, func(item *domain.InventoryItem) error {
		return item.ReturnToStock(cmd.Quantity)
	})
}

// RecordStockCheck 盘点
func (s *InventoryCommandService) RecordStockCheck(ctx context.Context, cmd RecordStockCheckCommand) error {
	return s.execute(ctx, "record_stock_check", cmd.ItemID, func(item *domain.InventoryItem) error {
		return item.RecordStockCheck(cmd.Counted)
	})
}

// ReleaseExpiredReservations 释放 asOf 之前到期的预占，返回释放总数。
// 由清扫任务周期调用
func (s *InventoryCommandService) ReleaseExpiredReservations(ctx context.Context, itemID string, asOf time.Time) (int, error) {
	released := 0
	err := s.execute(ctx, "release_expired", itemID, func(item *domain.InventoryItem) error {
		released = item.ReleaseExpired(asOf)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if released > 0 && s.metrics != nil {
		s.metrics.ReservationsExpiredTotal.Add(float64(released))
	}
	return released, nil
}

// ListItemIDs 返回全部库存项 ID
func (s *InventoryCommandService) ListItemIDs(ctx context.Context) ([]string, error) {
	return s.repo.ListItemIDs(ctx)
}

// execute 加载聚合、执行命令、条件追加；版本冲突时整体重做
func (s *InventoryCommandService) execute(ctx context.Context, command, itemID string, fn func(*domain.InventoryItem) error) error {
	var lastErr error
	for attempt := 0; attempt < s.retryLimit; attempt++ {
		item, err := s.repo.Load(ctx, itemID)
		if err != nil {
			s.record(command, err)
			return err
		}

		if err := fn(item); err != nil {
			s.record(command, err)
			return err
		}

		if len(item.GetUncommittedEvents()) == 0 {
			s.record(command, nil)
			return nil
		}

		err = s.repo.Save(ctx, item)
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
			"item_id", itemID,
			"attempt", attempt+1,
		)
		lastErr = err
	}
	s.record(command, lastErr)
	return lastErr
}

func (s *InventoryCommandService) record(command string, err error) {
	if s.metrics == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	s.metrics.RecordCommand(command, result)
}
