package cache

import (
	"context"
	"fmt"
	"time"

	"SafeWalk/storage/redis"
)

const (
	messageProcessedPrefix = "message:processed"
	processedTTL           = 24 * time.Hour
)

// TryMarkMessageProcessing 尝试原子性地标记消息正在处理（使用 SETNX）
// 返回 true 表示成功标记（首次处理），false 表示已被标记（重复消息或正在处理）
func TryMarkMessageProcessing(ctx context.Context, messageID string, ttl time.Duration) (bool, error) {
	key := redis.Key(messageProcessedPrefix, messageID)
	if ttl <= 0 {
		ttl = processedTTL
	}

	result, err := redis.Client().SetNX(ctx, key, "processing", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark message as processing: %w", err)
	}
	return result, nil
}

// UnmarkMessageProcessing 取消消息处理标记（处理失败时调用，允许重试）
func UnmarkMessageProcessing(ctx context.Context, messageID string) error {
	key := redis.Key(messageProcessedPrefix, messageID)
	return redis.Client().Del(ctx, key).Err()
}

// MarkMessageProcessed 标记消息已处理（处理成功时调用，延长 TTL）
func MarkMessageProcessed(ctx context.Context, messageID string, ttl time.Duration) error {
	key := redis.Key(messageProcessedPrefix, messageID)
	if ttl <= 0 {
		ttl = processedTTL
	}
	return redis.Client().Set(ctx, key, "completed", ttl).Err()
}

// MessageMarks 把上面三个函数包装成消费端使用的幂等标记
type MessageMarks struct{}

func (MessageMarks) TryMark(ctx context.Context, messageID string) (bool, error) {
	return TryMarkMessageProcessing(ctx, messageID, processedTTL)
}

func (MessageMarks) Unmark(ctx context.Context, messageID string) error {
	return UnmarkMessageProcessing(ctx, messageID)
}

func (MessageMarks) Done(ctx context.Context, messageID string) error {
	return MarkMessageProcessed(ctx, messageID, 2*processedTTL)
}
