package application

import (
	"context"
	"time"

	"github.com/wyfcoding/ecommerce/pkg/logger"
)

// ReservationSweeper 过期预占清扫任务。
// 聚合自身从不自动过期，到期回收完全由该任务以普通命令触发
type ReservationSweeper struct {
	svc      *InventoryCommandService
	interval time.Duration
}

// NewReservationSweeper 创建清扫任务
func NewReservationSweeper(svc *InventoryCommandService, interval time.Duration) *ReservationSweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ReservationSweeper{svc: svc, interval: interval}
}

// Run 周期清扫直到 ctx 取消
func (s *ReservationSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	logger.Info(ctx, "Reservation sweeper started", "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Reservation sweeper stopped")
			return
		case <-ticker.C:
			s.SweepOnce(ctx, time.Now().UTC())
		}
	}
}

// SweepOnce 对全部库存项执行一轮到期回收
func (s *ReservationSweeper) SweepOnce(ctx context.Context, asOf time.Time) {
	itemIDs, err := s.svc.ListItemIDs(ctx)
	if err != nil {
		logger.Error(ctx, "Failed to list inventory items for sweep", "error", err)
		return
	}

	total := 0
	for _, itemID := range itemIDs {
		released, err := s.svc.ReleaseExpiredReservations(ctx, itemID, asOf)
		if err != nil {
			logger.Error(ctx, "Failed to sweep expired reservations", "item_id", itemID, "error", err)
			continue
		}
		total += released
	}
	if total > 0 {
		logger.Info(ctx, "Expired reservations released", "count", total, "as_of", asOf)
	}
}
