package mysql

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/wyfcoding/ecommerce/internal/payment/domain"
	"github.com/wyfcoding/ecommerce/pkg/contextx"
	"github.com/wyfcoding/ecommerce/pkg/errs"
	"github.com/wyfcoding/ecommerce/pkg/eventsourcing"
	"github.com/wyfcoding/ecommerce/pkg/outbox"
)

// idempotencyRecord 幂等键到支付 ID 的映射。
// 唯一索引保证同一幂等键只能发起一笔支付
type idempotencyRecord struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	Key       string    `gorm:"column:idempotency_key;type:varchar(100);not null;uniqueIndex"`
	PaymentID string    `gorm:"type:varchar(64);not null"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName 指定幂等键表名
func (idempotencyRecord) TableName() string {
	return "payment_idempotency_keys"
}

// Repository 基于 MySQL 事件存储的支付仓储。
// 事件追加、幂等键登记与发件箱写入在同一事务中提交
type Repository struct {
	db     *gorm.DB
	store  *eventsourcing.GormStore
	outbox *outbox.Store
}

// NewRepository 创建支付仓储
func NewRepository(db *gorm.DB) *Repository {
	registry := eventsourcing.NewRegistry()
	domain.RegisterEvents(registry)
	return &Repository{
		db:     db,
		store:  eventsourcing.NewGormStore(db, "payment_events", registry),
		outbox: outbox.NewStore(db),
	}
}

// Migrate 创建事件表、幂等键表与发件箱表
func (r *Repository) Migrate() error {
	if err := r.store.Migrate(); err != nil {
		return err
	}
	if err := r.db.AutoMigrate(&idempotencyRecord{}); err != nil {
		return err
	}
	return r.db.AutoMigrate(&outbox.Message{})
}

// Load 重放事件流恢复支付
func (r *Repository) Load(ctx context.Context, paymentID string) (*domain.Payment, error) {
	events, err := r.store.Load(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, errs.Validationf("payment_not_found", "payment %s does not exist", paymentID)
	}
	return domain.LoadPayment(events), nil
}

// Save 以加载时版本为条件追加未提交事件，并同事务写入发件箱；
// 新建聚合时在同一事务中登记幂等键
func (r *Repository) Save(ctx context.Context, payment *domain.Payment) error {
	events := payment.GetUncommittedEvents()
	if len(events) == 0 {
		return nil
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txCtx := contextx.WithTx(ctx, tx)
		if payment.BaseVersion() == 0 && payment.IdempotencyKey != "" {
			record := idempotencyRecord{
				Key:       payment.IdempotencyKey,
				PaymentID: payment.AggregateID(),
				CreatedAt: time.Now().UTC(),
			}
			if err := tx.Create(&record).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return errs.Conflictf("duplicate_initiation",
						"payment with idempotency key %s already initiated", payment.IdempotencyKey)
				}
				return err
			}
		}
		if err := r.store.Save(txCtx, payment.AggregateID(), events, payment.BaseVersion()); err != nil {
			return err
		}
		for _, event := range events {
			payload, err := json.Marshal(event)
			if err != nil {
				return err
			}
			if err := r.outbox.Append(txCtx, payment.AggregateID(), event.EventType(), event.Version(), event.OccurredAt(), payload); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	payment.MarkCommitted()
	return nil
}

// FindByIdempotencyKey 按幂等键查找支付 ID，不存在时返回空串
func (r *Repository) FindByIdempotencyKey(ctx context.Context, key string) (string, error) {
	var record idempotencyRecord
	err := r.db.WithContext(ctx).Where("idempotency_key = ?", key).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return record.PaymentID, nil
}

// ListPaymentIDs 返回全部支付 ID
func (r *Repository) ListPaymentIDs(ctx context.Context) ([]string, error) {
	return r.store.ListAggregateIDs(ctx)
}
