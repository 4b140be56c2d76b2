package mysql

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wyfcoding/ecommerce/internal/fulfillment/domain"
)

// sagaRecord Saga 状态持久化对象
type sagaRecord struct {
	OrderID   string    `gorm:"type:varchar(64);primaryKey"`
	Status    string    `gorm:"type:varchar(20);not null;index"`
	NextStep  string    `gorm:"type:varchar(40);not null"`
	PaymentID string    `gorm:"type:varchar(64)"`
	Lines     string    `gorm:"type:text"`
	Reason    string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName 指定表名
func (sagaRecord) TableName() string {
	return "fulfillment_sagas"
}

// SagaStore 基于 MySQL 的 Saga 状态存储
type SagaStore struct {
	db *gorm.DB
}

// NewSagaStore 创建 Saga 状态存储
func NewSagaStore(db *gorm.DB) *SagaStore {
	return &SagaStore{db: db}
}

// Migrate 创建 Saga 状态表
func (s *SagaStore) Migrate() error {
	return s.db.AutoMigrate(&sagaRecord{})
}

// Get 按订单 ID 查找 Saga 记录，不存在时返回 nil
func (s *SagaStore) Get(ctx context.Context, orderID string) (*domain.SagaRecord, error) {
	var po sagaRecord
	err := s.db.WithContext(ctx).Where("order_id = ?", orderID).First(&po).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var lines []domain.ReservationLine
	if po.Lines != "" {
		if err := json.Unmarshal([]byte(po.Lines), &lines); err != nil {
			return nil, err
		}
	}
	return &domain.SagaRecord{
		OrderID:   po.OrderID,
		Status:    domain.Status(po.Status),
		NextStep:  po.NextStep,
		PaymentID: po.PaymentID,
		Lines:     lines,
		Reason:    po.Reason,
		CreatedAt: po.CreatedAt,
		UpdatedAt: po.UpdatedAt,
	}, nil
}

// Save 以订单 ID 为键写入或更新 Saga 记录
func (s *SagaStore) Save(ctx context.Context, record *domain.SagaRecord) error {
	lines, err := json.Marshal(record.Lines)
	if err != nil {
		return err
	}
	po := sagaRecord{
		OrderID:   record.OrderID,
		Status:    string(record.Status),
		NextStep:  record.NextStep,
		PaymentID: record.PaymentID,
		Lines:     string(lines),
		Reason:    record.Reason,
		CreatedAt: record.CreatedAt,
		UpdatedAt: record.UpdatedAt,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "order_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "next_step", "payment_id", "lines", "reason", "updated_at"}),
	}).Create(&po).Error
}
