package domain

import "context"

// Repository 订单聚合仓储。Load 通过重放事件流恢复状态，
// Save 以加载时版本为条件追加未提交事件，冲突时返回 eventsourcing.ErrVersionConflict
type Repository interface {
	Load(ctx context.Context, orderID string) (*Order, error)
	Save(ctx context.Context, order *Order) error
	// ListOrderIDs 返回全部订单 ID，供闲置订单清扫使用
	ListOrderIDs(ctx context.Context) ([]string, error)
}
