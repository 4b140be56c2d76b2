package eventsourcing

import (
	"context"

	"github.com/wyfcoding/ecommerce/pkg/errs"
)

// ErrVersionConflict 期望版本与流末尾版本不一致，追加被拒绝。
// 调用方必须重新加载聚合并重新校验整个命令，而不是原样重试。
var ErrVersionConflict = errs.Conflictf("version_conflict",
	"expected version does not match stream head, reload and re-evaluate")

// EventStore 事件日志契约。Save 以期望版本做条件追加，
// 一个命令的事件批次作为整体提交，不存在部分写入。
type EventStore interface {
	// Save 追加事件批次；期望版本不匹配时返回 ErrVersionConflict
	Save(ctx context.Context, aggregateID string, events []DomainEvent, expectedVersion int64) error
	// Load 按版本序返回聚合的全部事件
	Load(ctx context.Context, aggregateID string) ([]DomainEvent, error)
	// ListAggregateIDs 列出全部流 ID，供后台清扫任务遍历
	ListAggregateIDs(ctx context.Context) ([]string, error)
}
