// Package saga 提供 Saga 步骤编排：顺序执行，失败时按相反顺序补偿
package saga

import (
	"context"
	"fmt"

	"github.com/wyfcoding/ecommerce/pkg/logger"
)

// Step Saga 步骤
type Step interface {
	// Name 步骤名，用于日志与指标
	Name() string
	// Execute 执行正向操作
	Execute(ctx context.Context) error
	// Compensate 回滚已执行的正向操作
	Compensate(ctx context.Context) error
}

// BaseStep 可嵌入的空实现
type BaseStep struct {
	StepName string
}

// Name 返回步骤名
func (s BaseStep) Name() string { return s.StepName }

// Execute 默认不做任何事
func (s BaseStep) Execute(ctx context.Context) error { return nil }

// Compensate 默认不做任何事
func (s BaseStep) Compensate(ctx context.Context) error { return nil }

// Run 顺序执行 steps。某一步失败时，从该步骤起按相反顺序补偿：
// 失败的步骤也会收到 Compensate，以回滚其内部已完成的部分工作。
// 补偿失败只记录日志，继续补偿剩余步骤，最终返回触发补偿的原始错误
func Run(ctx context.Context, steps ...Step) error {
	for i, step := range steps {
		if err := step.Execute(ctx); err != nil {
			logger.Warn(ctx, "Saga step failed, compensating",
				"step", step.Name(),
				"error", err,
			)
			compensate(ctx, steps[:i+1])
			return fmt.Errorf("saga step %s: %w", step.Name(), err)
		}
		logger.Debug(ctx, "Saga step completed", "step", step.Name())
	}
	return nil
}

// compensate 按相反顺序补偿已执行的步骤
func compensate(ctx context.Context, executed []Step) {
	for i := len(executed) - 1; i >= 0; i-- {
		step := executed[i]
		if err := step.Compensate(ctx); err != nil {
			logger.Error(ctx, "Saga compensation failed",
				"step", step.Name(),
				"error", err,
			)
		}
	}
}
