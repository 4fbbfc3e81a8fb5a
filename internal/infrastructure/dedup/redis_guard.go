package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ============================================================================
// 基于 Redis 的交易ID去重
// ============================================================================
//
// SET key 1 NX EX ttl：
//   - NX 保证同一个 key 只有第一次写入成功，即第一次出现的交易ID获胜
//   - key 带上 runID，不同批次互不影响
//   - EX 让一次运行留下的 key 自动过期
//
// ============================================================================

type RedisGuard struct {
	client *redis.Client
	prefix string
	runID  string
	ttl    time.Duration
}

func NewRedisGuard(client *redis.Client, prefix, runID string, ttl time.Duration) *RedisGuard {
	return &RedisGuard{
		client: client,
		prefix: prefix,
		runID:  runID,
		ttl:    ttl,
	}
}

// Claim 第一次出现返回 true，重复返回 false
func (g *RedisGuard) Claim(ctx context.Context, txID uint32) (bool, error) {
	ok, err := g.client.SetNX(ctx, g.Key(txID), 1, g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

func (g *RedisGuard) Key(txID uint32) string {
	return fmt.Sprintf("%s:%s:%d", g.prefix, g.runID, txID)
}
