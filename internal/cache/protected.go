package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	ri "github.com/redis/go-redis/v9"

	"SafeWalk/storage/redis"
)

const (
	// 空值缓存标识
	emptyValueFlag = "__EMPTY__"
	// 空值缓存TTL，较短时间避免长期占用
	emptyValueTTL = 5 * time.Minute
	// TTL 随机抖动上限，避免同一批 key 同时过期
	ttlJitterMax = 10 * time.Minute
)

// Lookup 缓存查询结果
type Lookup int

const (
	Miss     Lookup = iota // 未命中
	Hit                    // 命中，dest 已填充
	HitEmpty               // 命中空值标识
)

// ProtectedCache 带空值保护的缓存包装器
type ProtectedCache struct {
	keyPrefix string
	ttl       time.Duration
	emptyTTL  time.Duration
}

// NewProtectedCache 创建受保护的缓存实例
func NewProtectedCache(keyPrefix string, ttl time.Duration) *ProtectedCache {
	return &ProtectedCache{
		keyPrefix: keyPrefix,
		ttl:       ttl,
		emptyTTL:  emptyValueTTL,
	}
}

// Set 设置缓存，value 为 nil 时写入空值标识
func (pc *ProtectedCache) Set(ctx context.Context, key string, value interface{}) error {
	cacheKey := redis.Key(pc.keyPrefix, key)

	if value == nil {
		return redis.Client().Set(ctx, cacheKey, emptyValueFlag, pc.emptyTTL).Err()
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	return redis.Client().Set(ctx, cacheKey, data, pc.ttl+jitter()).Err()
}

// Get 获取缓存
func (pc *ProtectedCache) Get(ctx context.Context, key string, dest interface{}) (Lookup, error) {
	cacheKey := redis.Key(pc.keyPrefix, key)

	data, err := redis.Client().Get(ctx, cacheKey).Result()
	if err != nil {
		if errors.Is(err, ri.Nil) {
			return Miss, nil
		}
		return Miss, fmt.Errorf("failed to get cache: %w", err)
	}

	if data == emptyValueFlag {
		return HitEmpty, nil
	}

	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return Miss, fmt.Errorf("failed to unmarshal cache value: %w", err)
	}
	return Hit, nil
}

// Delete 删除缓存
func (pc *ProtectedCache) Delete(ctx context.Context, key string) error {
	cacheKey := redis.Key(pc.keyPrefix, key)
	return redis.Client().Del(ctx, cacheKey).Err()
}

func jitter() time.Duration {
	return time.Duration(rand.Int63n(int64(ttlJitterMax)))
}

// GeocodeCache 正向地理编码结果缓存，查不到的地址也缓存空值
var GeocodeCache = NewProtectedCache("geocode", 24*time.Hour)
