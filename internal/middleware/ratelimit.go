package middleware

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"SafeWalk/config"
	"SafeWalk/pkg/errors"
	"SafeWalk/pkg/logger"
	"SafeWalk/pkg/response"
	"SafeWalk/storage/redis"
)

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	// 时间窗口（秒）
	Window int
	// 时间窗口内最大请求数
	MaxRequests int
	// 限流键前缀
	KeyPrefix string
	// 是否按用户ID限流（需要认证）
	ByUserID bool
	// 是否按IP限流
	ByIP bool
	// 按路由参数限流，例如行程 ID
	ByParam string
	// 阻塞时长（秒），0 表示不阻塞
	BlockDuration int
}

// GeneralRateLimitConfig 所有 API 共用，按用户或 IP
func GeneralRateLimitConfig() RateLimitConfig {
	rps := config.Cfg.RateLimitRPS
	if rps <= 0 {
		rps = 100
	}
	return RateLimitConfig{
		Window:        1,
		MaxRequests:   rps,
		KeyPrefix:     "rate:limit",
		ByUserID:      true,
		ByIP:          true,
		BlockDuration: 60,
	}
}

// LocationRateLimitConfig 设备定位上报，按行程
// 采样器正常节奏远低于该值，超出说明客户端异常，不阻塞只丢弃
func LocationRateLimitConfig() RateLimitConfig {
	n := config.Cfg.LocationRateLimit
	if n <= 0 {
		n = 30
	}
	return RateLimitConfig{
		Window:      60,
		MaxRequests: n,
		KeyPrefix:   "rate:location",
		ByParam:     "journey_id",
	}
}

// RateLimiter 限流器
// Redis 可用时使用 zset 滑动窗口，多实例共享计数；否则退化为进程内令牌桶
type RateLimiter struct {
	config RateLimitConfig
	client *redislib.Client

	mu    sync.Mutex
	local map[string]*rate.Limiter
}

func NewRateLimiter(config RateLimitConfig, client *redislib.Client) *RateLimiter {
	return &RateLimiter{
		config: config,
		client: client,
		local:  make(map[string]*rate.Limiter),
	}
}

// getKey 生成限流键
func (rl *RateLimiter) getKey(ctx context.Context, c *app.RequestContext) string {
	var identifier string

	if rl.config.ByParam != "" {
		if v := c.Param(rl.config.ByParam); v != "" {
			identifier = fmt.Sprintf("%s:%s", rl.config.ByParam, v)
		}
	}

	if identifier == "" && rl.config.ByUserID {
		if userID, exists := GetUserID(ctx, c); exists {
			identifier = fmt.Sprintf("user:%d", userID)
		}
	}

	if identifier == "" && rl.config.ByIP {
		identifier = fmt.Sprintf("ip:%s", c.ClientIP())
	}

	return redis.Key(rl.config.KeyPrefix, identifier)
}

func (rl *RateLimiter) window() time.Duration {
	return time.Duration(rl.config.Window) * time.Second
}

// Allow 检查是否允许请求，返回窗口内已用次数
func (rl *RateLimiter) Allow(ctx context.Context, key string) (bool, int, error) {
	if rl.client == nil {
		return rl.allowLocal(key), 0, nil
	}

	now := time.Now()
	windowStart := now.Add(-rl.window())

	pipe := rl.client.Pipeline()

	// 移除窗口开始时间之前的所有请求记录
	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", windowStart.UnixNano()))

	pipe.ZAdd(ctx, key, redislib.Z{
		Score:  float64(now.UnixNano()),
		Member: now.UnixNano(),
	})

	zcardCmd := pipe.ZCard(ctx, key)

	pipe.Expire(ctx, key, rl.window()+10*time.Second)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, fmt.Errorf("failed to execute pipeline: %w", err)
	}

	count := int(zcardCmd.Val())
	return count <= rl.config.MaxRequests, count, nil
}

func (rl *RateLimiter) allowLocal(key string) bool {
	rl.mu.Lock()
	lim, ok := rl.local[key]
	if !ok {
		every := rl.window() / time.Duration(rl.config.MaxRequests)
		lim = rate.NewLimiter(rate.Every(every), rl.config.MaxRequests)
		rl.local[key] = lim
	}
	rl.mu.Unlock()
	return lim.Allow()
}

func (rl *RateLimiter) blockKey(key string) string {
	return key + ":block"
}

func (rl *RateLimiter) Block(ctx context.Context, key string) error {
	if rl.client == nil || rl.config.BlockDuration <= 0 {
		return nil
	}
	return rl.client.Set(ctx, rl.blockKey(key), "1", time.Duration(rl.config.BlockDuration)*time.Second).Err()
}

func (rl *RateLimiter) IsBlocked(ctx context.Context, key string) (bool, error) {
	if rl.client == nil || rl.config.BlockDuration <= 0 {
		return false, nil
	}
	result, err := rl.client.Exists(ctx, rl.blockKey(key)).Result()
	return result > 0, err
}

// RateLimitMiddleware 创建限流中间件
// Redis 故障时放行，限流不能影响出行者上报位置
func RateLimitMiddleware(config RateLimitConfig, client *redislib.Client) app.HandlerFunc {
	limiter := NewRateLimiter(config, client)

	return func(ctx context.Context, c *app.RequestContext) {
		key := limiter.getKey(ctx, c)

		blocked, err := limiter.IsBlocked(ctx, key)
		if err != nil {
			logger.Logger.Warn("Failed to check block status", zap.Error(err))
		}
		if blocked {
			c.Abort()
			response.Error(ctx, c, errors.RateLimitExceeded)
			return
		}

		allowed, count, err := limiter.Allow(ctx, key)
		if err != nil {
			logger.Logger.Warn("Failed to check rate limit", zap.Error(err))
			c.Next(ctx)
			return
		}

		if client != nil {
			remaining := config.MaxRequests - count
			if remaining < 0 {
				remaining = 0
			}
			c.Response.Header.Set("X-RateLimit-Limit", strconv.Itoa(config.MaxRequests))
			c.Response.Header.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			c.Response.Header.Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(limiter.window()).Unix(), 10))
		}

		if !allowed {
			if err := limiter.Block(ctx, key); err != nil {
				logger.Logger.Error("Failed to block client", zap.Error(err))
			}
			logger.Logger.Debug("Rate limit exceeded", zap.String("key", key))

			c.Abort()
			response.Error(ctx, c, errors.RateLimitExceeded)
			return
		}

		c.Next(ctx)
	}
}

func redisClient() *redislib.Client {
	if !redis.Ready() {
		return nil
	}
	return redis.Client()
}

// GeneralRateLimitMiddleware 通用限流中间件
func GeneralRateLimitMiddleware() app.HandlerFunc {
	return RateLimitMiddleware(GeneralRateLimitConfig(), redisClient())
}

// LocationRateLimitMiddleware 定位上报限流中间件
func LocationRateLimitMiddleware() app.HandlerFunc {
	return RateLimitMiddleware(LocationRateLimitConfig(), redisClient())
}
