package cache

import (
	"context"
	"time"

	"SafeWalk/storage/redis"
)

// 基于 SETNX 的分布式锁，多实例下保证同一时刻只有一个实例处理
const lockPrefix = "lock"

func TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	fullkey := redis.Key(lockPrefix, key)
	return redis.Client().SetNX(ctx, fullkey, 1, ttl).Result()
}

func Unlock(ctx context.Context, key string) error {
	fullkey := redis.Key(lockPrefix, key)
	return redis.Client().Del(ctx, fullkey).Err()
}

// RedisGuard 把 TryLock 包装成调度器使用的守卫
type RedisGuard struct{}

func (RedisGuard) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return TryLock(ctx, key, ttl)
}
