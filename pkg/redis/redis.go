package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"slatrack/backend/config"
)

// Client Redis 客户端封装
// 当前用于评估器单实例锁、动作分发去重与动作流发布；后续可扩展缓存等场景
type Client struct {
	rdb    *goredis.Client
	logger *zap.Logger
}

// NewClient 创建 Redis 连接并执行 Ping 健康检查
func NewClient(cfg *config.RedisConfig, logger *zap.Logger) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("Redis 连接失败: %w", err)
	}

	logger.Info("Redis 连接成功", zap.String("addr", cfg.Addr))

	return &Client{rdb: rdb, logger: logger}, nil
}

// ── 评估器单实例锁 ──
//
// 同一时刻只允许一个评估器实例执行 tick，防止多实例并发评估同一 Tracker

const evaluatorLockKey = "sla:evaluator:lock"

// AcquireEvaluatorLock 尝试获取评估锁；返回 false 表示已被其他实例持有
func (c *Client) AcquireEvaluatorLock(ctx context.Context, owner string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, evaluatorLockKey, owner, ttl).Result()
}

// ReleaseEvaluatorLock 释放评估锁（仅持有者可释放）
func (c *Client) ReleaseEvaluatorLock(ctx context.Context, owner string) error {
	// 比较并删除，避免误删其他实例在锁过期后新获取的锁
	const script = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`
	return c.rdb.Eval(ctx, script, []string{evaluatorLockKey}, owner).Err()
}

// ── 动作分发去重 ──

const actionDedupePrefix = "sla:action:sent:"

// MarkActionDispatched 以 (tracker_id, action_id) 为键做 SETNX 去重
// 返回 true 表示首次分发；false 表示该动作已分发过，应跳过
func (c *Client) MarkActionDispatched(ctx context.Context, trackerID, actionID string, ttl time.Duration) (bool, error) {
	key := actionDedupePrefix + trackerID + ":" + actionID
	return c.rdb.SetNX(ctx, key, "1", ttl).Result()
}

// ClearActionDispatched 删除去重标记
// 发布失败时回滚，避免该动作被永久抑制
func (c *Client) ClearActionDispatched(ctx context.Context, trackerID, actionID string) error {
	key := actionDedupePrefix + trackerID + ":" + actionID
	return c.rdb.Del(ctx, key).Err()
}

// ── 动作流发布 ──

// PublishAction 向 Redis Stream 追加一条动作请求，由通知协作方消费
func (c *Client) PublishAction(ctx context.Context, stream string, values map[string]interface{}) error {
	return c.rdb.XAdd(ctx, &goredis.XAddArgs{
		Stream: stream,
		Values: values,
	}).Err()
}

// ── 速率限制 ──

// CheckRateLimit 固定窗口计数速率限制
// 返回 true 表示放行
func (c *Client) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	count, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		c.rdb.Expire(ctx, key, window)
	}
	return count <= int64(limit), nil
}

// Close 关闭 Redis 连接
func (c *Client) Close() error {
	return c.rdb.Close()
}
