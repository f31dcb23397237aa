package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"SafeWalk/config"
	"SafeWalk/internal/cache"
	"SafeWalk/internal/queue"
	"SafeWalk/internal/repository"
	"SafeWalk/internal/schedule"
	"SafeWalk/internal/service"
	"SafeWalk/pkg/logger"
	"SafeWalk/pkg/snowflake"
	"SafeWalk/storage"
	"SafeWalk/storage/database"
)

func main() {
	config.Validate()

	logger.Init()
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Logger.Info("Scheduler received shutdown signal",
			zap.String("signal", sig.String()),
		)
		cancel()
	}()

	if config.Cfg.StoreBackend != "postgres" {
		logger.Logger.Fatal("Scheduler requires STORE_BACKEND=postgres")
	}

	if err := storage.Init(); err != nil {
		logger.Logger.Fatal("Failed to initialize storage for scheduler", zap.Error(err))
	}
	defer storage.Close()

	if err := snowflake.Init(config.Cfg.SnowflakeMachineID, config.Cfg.SnowflakeDataCenter); err != nil {
		logger.Logger.Fatal("Failed to initialize snowflake for scheduler", zap.Error(err))
	}

	store := repository.NewGormStore(database.DB())
	svcs := service.Setup(service.Deps{
		Store:     store,
		Publisher: queue.Publisher{},
		Config: service.Config{
			DefaultCheckInInterval: config.Cfg.CheckInIntervalMinutes,
			TrackingURL:            config.Cfg.TrackingURL,
		},
	})

	logger.Logger.Info("Scheduler service starting",
		zap.String("service", config.Cfg.ServiceName+"-scheduler"),
		zap.String("environment", config.Cfg.Environment),
		zap.Duration("overdue_grace", config.Cfg.OverdueGrace),
	)

	overdue := schedule.NewOverdueScheduler(store, svcs.Notification, cache.OverdueFlags{}, config.Cfg.OverdueGrace)
	go runOverdueJourneyLoop(ctx, overdue)

	<-ctx.Done()

	logger.Logger.Info("Scheduler service shutting down gracefully")
}

// runOverdueJourneyLoop 周期性扫描超过预计到达时间仍未结束的行程
// 每分钟一次，宽限期由 OVERDUE_GRACE 控制
func runOverdueJourneyLoop(ctx context.Context, s *schedule.OverdueScheduler) {
	interval := time.Minute

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
			if err := s.CheckOverdueJourneys(runCtx); err != nil {
				logger.Logger.Error("Overdue journey check run failed", zap.Error(err))
			}
			cancel()
		}
	}
}
