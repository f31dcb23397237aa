package cache

import (
	"context"
	"fmt"
	"time"

	"SafeWalk/storage/redis"
)

const (
	// 超时未到达提醒只发一次
	journeyOverdueNotifiedPrefix = "journey:overdue:notified"

	journeyFlagTTL = 48 * time.Hour
)

// TryMarkJourneyOverdueNotified 原子标记行程已发过超时提醒，返回 false 说明之前已标记
func TryMarkJourneyOverdueNotified(ctx context.Context, journeyID string) (bool, error) {
	key := redis.Key(journeyOverdueNotifiedPrefix, journeyID)
	ok, err := redis.Client().SetNX(ctx, key, "1", journeyFlagTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark journey overdue notified: %w", err)
	}
	return ok, nil
}

// UnmarkJourneyOverdueNotified 发送失败时清除标记，下一轮扫描重试
func UnmarkJourneyOverdueNotified(ctx context.Context, journeyID string) error {
	key := redis.Key(journeyOverdueNotifiedPrefix, journeyID)
	return redis.Client().Del(ctx, key).Err()
}

// OverdueFlags 超时提醒标记，供超时扫描使用
type OverdueFlags struct{}

func (OverdueFlags) TryMark(ctx context.Context, journeyID string) (bool, error) {
	return TryMarkJourneyOverdueNotified(ctx, journeyID)
}

func (OverdueFlags) Unmark(ctx context.Context, journeyID string) error {
	return UnmarkJourneyOverdueNotified(ctx, journeyID)
}
