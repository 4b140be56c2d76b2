package mysql

import (
	"context"
	"encoding/json"

	"gorm.io/gorm"

	"github.com/wyfcoding/ecommerce/internal/order/domain"
	"github.com/wyfcoding/ecommerce/pkg/contextx"
	"github.com/wyfcoding/ecommerce/pkg/errs"
	"github.com/wyfcoding/ecommerce/pkg/eventsourcing"
	"github.com/wyfcoding/ecommerce/pkg/outbox"
)

// Repository 基于 MySQL 事件存储的订单仓储。
// 事件追加与发件箱写入在同一事务中提交
type Repository struct {
	db     *gorm.DB
	store  *eventsourcing.GormStore
	outbox *outbox.Store
}

// NewRepository 创建订单仓储
func NewRepository(db *gorm.DB) *Repository {
	registry := eventsourcing.NewRegistry()
	domain.RegisterEvents(registry)
	return &Repository{
		db:     db,
		store:  eventsourcing.NewGormStore(db, "order_events", registry),
		outbox: outbox.NewStore(db),
	}
}

// Migrate 创建事件表与发件箱表
func (r *Repository) Migrate() error {
	if err := r.store.Migrate(); err != nil {
		return err
	}
	return r.db.AutoMigrate(&outbox.Message{})
}

// Load 重放事件流恢复订单
func (r *Repository) Load(ctx context.Context, orderID string) (*domain.Order, error) {
	events, err := r.store.Load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, errs.Validationf("order_not_found", "order %s does not exist", orderID)
	}
	return domain.LoadOrder(events), nil
}

// Save 以加载时版本为条件追加未提交事件，并同事务写入发件箱
func (r *Repository) Save(ctx context.Context, order *domain.Order) error {
	events := order.GetUncommittedEvents()
	if len(events) == 0 {
		return nil
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txCtx := contextx.WithTx(ctx, tx)
		if err := r.store.Save(txCtx, order.AggregateID(), events, order.BaseVersion()); err != nil {
			return err
		}
		for _, event := range events {
			payload, err := json.Marshal(event)
			if err != nil {
				return err
			}
			if err := r.outbox.Append(txCtx, order.AggregateID(), event.EventType(), event.Version(), event.OccurredAt(), payload); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	order.MarkCommitted()
	return nil
}

// ListOrderIDs 返回全部订单 ID
func (r *Repository) ListOrderIDs(ctx context.Context) ([]string, error) {
	return r.store.ListAggregateIDs(ctx)
}
