// Package idgen 提供雪花 ID 与 UUID 生成
package idgen

import (
	"fmt"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
)

// Generator ID 生成器接口
type Generator interface {
	// NextID 返回带前缀的全局唯一 ID
	NextID(prefix string) string
}

// SnowflakeGenerator 基于雪花算法的生成器
type SnowflakeGenerator struct {
	node *snowflake.Node
}

// NewSnowflake 创建雪花 ID 生成器，nodeID 取值 0-1023
func NewSnowflake(nodeID int64) (*SnowflakeGenerator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to create snowflake node: %w", err)
	}
	return &SnowflakeGenerator{node: node}, nil
}

// NextID 生成 ID
func (g *SnowflakeGenerator) NextID(prefix string) string {
	return prefix + g.node.Generate().String()
}

var (
	defaultOnce sync.Once
	defaultGen  *SnowflakeGenerator
)

// Default 返回节点 0 的进程级生成器
func Default() *SnowflakeGenerator {
	defaultOnce.Do(func() {
		gen, err := NewSnowflake(0)
		if err != nil {
			panic(err)
		}
		defaultGen = gen
	})
	return defaultGen
}

// NewUUID 生成 UUID 字符串
func NewUUID() string {
	return uuid.NewString()
}
