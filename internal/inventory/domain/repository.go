package domain

import "context"

// Repository 库存聚合仓储。Load 通过重放事件流恢复状态，
// Save 以加载时版本为条件追加未提交事件，冲突时返回 eventsourcing.ErrVersionConflict
type Repository interface {
	Load(ctx context.Context, itemID string) (*InventoryItem, error)
	Save(ctx context.Context, item *InventoryItem) error
	// ListItemIDs 返回全部库存项 ID，供过期预占清扫使用
	ListItemIDs(ctx context.Context) ([]string, error)
	// FindItemIDBySKU 按 SKU 查找库存项 ID，不存在时返回空串
	FindItemIDBySKU(ctx context.Context, sku string) (string, error)
}
