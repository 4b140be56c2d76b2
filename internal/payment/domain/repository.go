package domain

import "context"

// Repository 支付聚合仓储
type Repository interface {
	// Load 重放事件流恢复支付
	Load(ctx context.Context, paymentID string) (*Payment, error)
	// Save 以加载时版本为条件追加未提交事件
	Save(ctx context.Context, payment *Payment) error
	// FindByIdempotencyKey 按幂等键查找已发起的支付 ID，不存在时返回空串
	FindByIdempotencyKey(ctx context.Context, key string) (string, error)
	// ListPaymentIDs 返回全部支付 ID
	ListPaymentIDs(ctx context.Context) ([]string, error)
}
