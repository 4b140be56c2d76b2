package mysql

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/wyfcoding/ecommerce/internal/inventory/domain"
	"github.com/wyfcoding/ecommerce/pkg/contextx"
	"github.com/wyfcoding/ecommerce/pkg/errs"
	"github.com/wyfcoding/ecommerce/pkg/eventsourcing"
	"github.com/wyfcoding/ecommerce/pkg/outbox"
)

// skuRecord SKU 到库存项 ID 的映射，建档时随事件同事务写入。
// 其它上下文按订单行 SKU 定位库存项时查此表
type skuRecord struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	SKU       string    `gorm:"column:sku;type:varchar(100);not null;uniqueIndex"`
	ItemID    string    `gorm:"type:varchar(64);not null"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName 指定 SKU 索引表名
func (skuRecord) TableName() string {
	return "inventory_sku_index"
}

// Repository 基于 MySQL 事件存储的库存仓储。
// 事件追加与发件箱写入在同一事务中提交
type Repository struct {
	db     *gorm.DB
	store  *eventsourcing.GormStore
	outbox *outbox.Store
}

// NewRepository 创建库存仓储
func NewRepository(db *gorm.DB) *Repository {
	registry := eventsourcing.NewRegistry()
	domain.RegisterEvents(registry)
	return &Repository{
		db:     db,
		store:  eventsourcing.NewGormStore(db, "inventory_events", registry),
		outbox: outbox.NewStore(db),
	}
}

// Migrate 创建事件表与发件箱表
func (r *Repository) Migrate() error {
	if err := r.store.Migrate(); err != nil {
		return err
	}
	if err := r.db.AutoMigrate(&skuRecord{}); err != nil {
		return err
	}
	return r.db.AutoMigrate(&outbox.Message{})
}

// Load 重放事件流恢复库存项
func (r *Repository) Load(ctx context.Context, itemID string) (*domain.InventoryItem, error) {
	events, err := r.store.Load(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, errs.Validationf("item_not_found", "inventory item %s does not exist", itemID)
	}
	return domain.LoadInventoryItem(events), nil
}

// Save 以加载时版本为条件追加未提交事件，并同事务写入发件箱
func (r *Repository) Save(ctx context.Context, item *domain.InventoryItem) error {
	events := item.GetUncommittedEvents()
	if len(events) == 0 {
		return nil
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txCtx := contextx.WithTx(ctx, tx)
		if err := r.store.Save(txCtx, item.AggregateID(), events, item.BaseVersion()); err != nil {
			return err
		}
		for _, event := range events {
			if created, ok := event.(*domain.ItemCreatedEvent); ok {
				record := skuRecord{
					SKU:       created.SKU,
					ItemID:    created.ItemID,
					CreatedAt: time.Now().UTC(),
				}
				if err := tx.Create(&record).Error; err != nil {
					if errors.Is(err, gorm.ErrDuplicatedKey) {
						return errs.Validationf("duplicate_sku", "sku %s already registered", created.SKU)
					}
					return err
				}
			}
			payload, err := json.Marshal(event)
			if err != nil {
				return err
			}
			if err := r.outbox.Append(txCtx, item.AggregateID(), event.EventType(), event.Version(), event.OccurredAt(), payload); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	item.MarkCommitted()
	return nil
}

// ListItemIDs 返回全部库存项 ID
func (r *Repository) ListItemIDs(ctx context.Context) ([]string, error) {
	return r.store.ListAggregateIDs(ctx)
}

// FindItemIDBySKU 按 SKU 查找库存项 ID，不存在时返回空串
func (r *Repository) FindItemIDBySKU(ctx context.Context, sku string) (string, error) {
	var record skuRecord
	err := r.db.WithContext(ctx).Where("sku = ?", sku).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return record.ItemID, nil
}
