package application

import (
	"context"
	"time"

	"github.com/wyfcoding/ecommerce/internal/order/domain"
	"github.com/wyfcoding/ecommerce/pkg/logger"
)

// IdleOrderSweeper 闲置订单清扫任务。
// 超过阈值仍停留在 Created 状态的订单被视为废弃购物车，按普通取消命令处理
type IdleOrderSweeper struct {
	svc       *OrderCommandService
	repo      domain.Repository
	interval  time.Duration
	threshold time.Duration
}

// NewIdleOrderSweeper 创建闲置订单清扫任务
func NewIdleOrderSweeper(svc *OrderCommandService, repo domain.Repository, interval, threshold time.Duration) *IdleOrderSweeper {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if threshold <= 0 {
		threshold = 2 * time.Hour
	}
	return &IdleOrderSweeper{svc: svc, repo: repo, interval: interval, threshold: threshold}
}

// Run 周期清扫直到 ctx 取消
func (s *IdleOrderSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	logger.Info(ctx, "Idle order sweeper started", "interval", s.interval, "threshold", s.threshold)
	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Idle order sweeper stopped")
			return
		case <-ticker.C:
			s.SweepOnce(ctx, time.Now().UTC())
		}
	}
}

// SweepOnce 取消一轮超时未推进的订单
func (s *IdleOrderSweeper) SweepOnce(ctx context.Context, asOf time.Time) {
	orderIDs, err := s.repo.ListOrderIDs(ctx)
	if err != nil {
		logger.Error(ctx, "Failed to list orders for idle sweep", "error", err)
		return
	}

	cancelled := 0
	cutoff := asOf.Add(-s.threshold)
	for _, orderID := range orderIDs {
		order, err := s.repo.Load(ctx, orderID)
		if err != nil {
			logger.Error(ctx, "Failed to load order for idle sweep", "order_id", orderID, "error", err)
			continue
		}
		if order.Status != domain.StatusCreated || order.UpdatedAt.After(cutoff) {
			continue
		}

		cmd := CancelOrderCommand{OrderID: orderID, Reason: "idle timeout"}
		if err := s.svc.CancelOrder(ctx, cmd); err != nil {
			// 并发命令可能已推进该订单，取消被拒绝属预期
			logger.Warn(ctx, "Idle cancel rejected", "order_id", orderID, "error", err)
			continue
		}
		cancelled++
	}
	if cancelled > 0 {
		logger.Info(ctx, "Idle orders cancelled", "count", cancelled, "as_of", asOf)
	}
}
