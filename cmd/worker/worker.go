package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"SafeWalk/config"
	"SafeWalk/internal/queue"
	"SafeWalk/internal/realtime"
	"SafeWalk/internal/repository"
	"SafeWalk/internal/service"
	"SafeWalk/pkg/logger"
	"SafeWalk/pkg/snowflake"
	"SafeWalk/storage"
	"SafeWalk/storage/database"
	"SafeWalk/storage/redis"
)

func main() {
	config.Validate()

	logger.Init()
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Logger.Info("Received shutdown signal",
			zap.String("signal", sig.String()),
		)
		cancel()
	}()

	if config.Cfg.StoreBackend != "postgres" {
		logger.Logger.Fatal("Worker requires STORE_BACKEND=postgres, in-memory journeys live in the server process")
	}

	if err := storage.Init(); err != nil {
		logger.Logger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer storage.Close()

	if err := snowflake.Init(config.Cfg.SnowflakeMachineID, config.Cfg.SnowflakeDataCenter); err != nil {
		logger.Logger.Fatal("Failed to initialize snowflake", zap.Error(err))
	}

	// worker 只写变更，由 server 实例订阅后推给查看者
	var emitter realtime.Emitter
	if config.Cfg.FeedBackend == "redis" {
		emitter = realtime.NewRedisFeed(redis.Client(), nil, config.Cfg.RedisPrefix)
	}

	svcs := service.Setup(service.Deps{
		Store:     repository.NewGormStore(database.DB()),
		Publisher: queue.Publisher{},
		Emitter:   emitter,
		Config: service.Config{
			AlertHaltsMonitoring:   config.Cfg.AlertHaltsMonitoring,
			DefaultCheckInInterval: config.Cfg.CheckInIntervalMinutes,
			TrackingURL:            config.Cfg.TrackingURL,
		},
	})

	logger.Logger.Info("Worker service starting",
		zap.String("service", config.Cfg.ServiceName+"-worker"),
		zap.String("environment", config.Cfg.Environment),
	)

	g, gctx := errgroup.WithContext(ctx)

	// 应答窗口到期的平安确认
	g.Go(func() error {
		return queue.StartCheckInDeadlineConsumer(gctx, svcs.CheckIn)
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		logger.Logger.Error("Worker consumer stopped unexpectedly", zap.Error(err))
	}

	logger.Logger.Info("Worker service shutting down gracefully")
}
