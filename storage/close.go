package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"SafeWalk/config"
	"SafeWalk/pkg/logger"
	"SafeWalk/storage/database"
	"SafeWalk/storage/mq"
	"SafeWalk/storage/redis"
)

const closeTimeout = 15 * time.Second

type closer struct {
	name  string
	close func(context.Context) error
}

// closers 按关闭顺序排列：先停 MQ 发布，再断 Redis 订阅，最后关数据库
func closers() []closer {
	cs := []closer{
		{name: "rabbitmq", close: mq.Close},
		{name: "redis", close: redis.Close},
	}
	if config.Cfg.StoreBackend == "postgres" {
		cs = append(cs, closer{name: "postgres", close: database.Close})
	}
	return cs
}

// Close 关闭 Init 打开的连接，共用一个超时
func Close() {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	if err := closeAll(ctx, closers()); err != nil {
		logger.Logger.Error("Storage shutdown incomplete", zap.Error(err))
		return
	}
	logger.Logger.Info("Storage connections closed")
}

func closeAll(ctx context.Context, cs []closer) error {
	var errs []error
	for _, c := range cs {
		start := time.Now()
		if err := c.close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
			continue
		}
		logger.Logger.Debug("Storage connection closed", zap.String("backend", c.name), zap.Duration("took", time.Since(start)))
	}
	return errors.Join(errs...)
}
