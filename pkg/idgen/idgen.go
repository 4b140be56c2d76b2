// Package idgen 提供趋势递增的分布式 ID 生成器
package idgen

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sony/sonyflake"
)

// Generator ID 生成器接口
type Generator interface {
	// Generate 生成一个全局唯一的递增 ID
	Generate() int64
}

// Sonyflake 基于 sonyflake 的实现
type Sonyflake struct {
	sf *sonyflake.Sonyflake
	// sonyflake 不可用时的退化序列
	fallback atomic.Int64
}

// New 创建 ID 生成器。machineID 为空时使用默认的私网 IP 推导。
func New() *Sonyflake {
	g := &Sonyflake{
		sf: sonyflake.NewSonyflake(sonyflake.Settings{}),
	}
	g.fallback.Store(time.Now().UnixNano())
	return g
}

// Generate 生成 ID
func (g *Sonyflake) Generate() int64 {
	if g.sf != nil {
		if id, err := g.sf.NextID(); err == nil {
			return int64(id)
		}
	}
	return g.fallback.Add(1)
}

// WithPrefix 生成带业务前缀的字符串 ID，如 ORD、PAY、RSV
func WithPrefix(g Generator, prefix string) string {
	return fmt.Sprintf("%s%d", prefix, g.Generate())
}
