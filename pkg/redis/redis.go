package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"moh-portal/config"
)

// Client Redis 客户端封装
// 当前用于滑动窗口限流（登录、申请账号、传记校验）
type Client struct {
	rdb    *goredis.Client
	logger *zap.Logger
}

// Open 按 ratelimit.fail_open 处理启动时 Redis 不可达的情况
//
// 放行模式下返回 nil 客户端与连接错误，调用方不限流；
// 拒绝模式下仍返回客户端（go-redis 每次命令自动重连），
// Redis 恢复前限流调用返回错误，由调用方按 503 处理。
func Open(cfg *config.RedisConfig, failOpen bool, logger *zap.Logger) (*Client, error) {
	c := newClient(cfg, logger)
	err := c.ping()
	if err == nil {
		logger.Info("Redis 连接成功", zap.String("addr", cfg.Addr))
		return c, nil
	}
	if failOpen {
		c.rdb.Close()
		return nil, err
	}
	return c, err
}

func newClient(cfg *config.RedisConfig, logger *zap.Logger) *Client {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &Client{rdb: rdb, logger: logger}
}

func (c *Client) ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("Redis 连接失败: %w", err)
	}
	return nil
}

// ── 滑动窗口限流 ──

const rateLimitPrefix = "rate_limit:"

// slidingWindow 清理过期成员、计数、写入在同一脚本内完成
// KEYS[1] 键；ARGV: 窗口起点、当前时间、上限、成员、过期毫秒
var slidingWindow = goredis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
if redis.call('ZCARD', KEYS[1]) >= tonumber(ARGV[3]) then
	return 0
end
redis.call('ZADD', KEYS[1], ARGV[2], ARGV[4])
redis.call('PEXPIRE', KEYS[1], ARGV[5])
return 1
`)

// CheckRateLimit 基于有序集合的滑动窗口计数
// 窗口内请求数未超过 limit 时记录本次请求并返回 true
func (c *Client) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	windowStart := now.Add(-window).UnixMicro()

	res, err := slidingWindow.Run(ctx, c.rdb, []string{rateLimitPrefix + key},
		strconv.FormatInt(windowStart, 10),
		strconv.FormatInt(now.UnixMicro(), 10),
		limit,
		uuid.NewString(),
		window.Milliseconds(),
	).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

// Close 关闭 Redis 连接
func (c *Client) Close() error {
	return c.rdb.Close()
}
