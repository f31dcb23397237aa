package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	hertzconfig "github.com/cloudwego/hertz/pkg/common/config"
	otelapi "go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"SafeWalk/config"
	"SafeWalk/internal/cache"
	"SafeWalk/internal/handler"
	"SafeWalk/internal/middleware"
	"SafeWalk/internal/queue"
	"SafeWalk/internal/realtime"
	"SafeWalk/internal/repository"
	"SafeWalk/internal/repository/memory"
	"SafeWalk/internal/route"
	"SafeWalk/internal/router"
	"SafeWalk/internal/sampler"
	"SafeWalk/internal/schedule"
	"SafeWalk/internal/service"
	"SafeWalk/internal/tracking"
	dbotel "SafeWalk/pkg/database"
	"SafeWalk/pkg/logger"
	"SafeWalk/pkg/metrics"
	mqotel "SafeWalk/pkg/mq"
	"SafeWalk/pkg/otel"
	redisotel "SafeWalk/pkg/redis"
	"SafeWalk/pkg/snowflake"
	"SafeWalk/storage"
	"SafeWalk/storage/database"
	"SafeWalk/storage/redis"
)

const serviceVersion = "1.0.0"

func main() {
	config.Validate()

	// 日志部分
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

	var serverOpts []hertzconfig.Option
	tracerMW := initTelemetry(ctx, &serverOpts)

	// 初始化存储层，记得关闭外部连接
	if err := storage.Init(); err != nil {
		logger.Logger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer storage.Close()

	if err := snowflake.Init(config.Cfg.SnowflakeMachineID, config.Cfg.SnowflakeDataCenter); err != nil {
		logger.Logger.Fatal("Failed to initialize snowflake", zap.Error(err))
	}

	estimator, err := route.NewFromConfig(&config.Cfg, true)
	if err != nil {
		logger.Logger.Fatal("Failed to initialize route estimator", zap.Error(err))
	}

	g, gctx := errgroup.WithContext(ctx)

	broker := realtime.NewBroker(0)
	var emitter realtime.Emitter
	var feedStatus handler.FeedStatus
	if config.Cfg.FeedBackend == "redis" {
		feed := realtime.NewRedisFeed(redis.Client(), broker, config.Cfg.RedisPrefix)
		emitter = feed
		feedStatus = feed
		// 订阅中断时自动重连，期间 /health 返回 503
		g.Go(func() error { return feed.Serve(gctx) })
	} else {
		emitter = realtime.NewLocalFeed(broker)
	}

	store := newStore()
	svcs := service.Setup(service.Deps{
		Store:     store,
		Estimator: estimator,
		Publisher: queue.Publisher{},
		Emitter:   emitter,
		Config: service.Config{
			AlertHaltsMonitoring:   config.Cfg.AlertHaltsMonitoring,
			DefaultCheckInInterval: config.Cfg.CheckInIntervalMinutes,
			TrackingURL:            config.Cfg.TrackingURL,
		},
	})

	tracker := tracking.NewManager(svcs.Location, sampler.Options{
		HighAccuracy: config.Cfg.SamplerHighAccuracy,
		MaxAge:       config.Cfg.SamplerMaxAge,
		Timeout:      config.Cfg.SamplerTimeout,
	}, tracking.WithRefresher(estimator), tracking.WithEmitter(emitter))

	schedOpts := []schedule.Option{schedule.WithGuard(cache.RedisGuard{})}
	if config.Cfg.CheckInDeadlineBackend == "mq" {
		schedOpts = append(schedOpts, schedule.WithMQDeadline(queue.Publisher{}))
	} else {
		schedOpts = append(schedOpts, schedule.WithLocalDeadline(svcs.CheckIn))
	}
	checkIns := schedule.NewCheckInScheduler(store, svcs.Journey.IsMonitorable, emitter,
		config.Cfg.CheckInResponseWindow, schedOpts...)

	svcs.Journey.AttachMonitors(checkIns, tracker)
	svcs.CheckIn.AttachResolver(checkIns)

	// 重启前仍在进行的行程恢复监控
	g.Go(func() error {
		n, err := svcs.Journey.Reconcile(gctx)
		if err != nil {
			logger.Logger.Error("Failed to reconcile journeys", zap.Error(err))
			return nil
		}
		logger.Logger.Info("Resumed monitoring for journeys", zap.Int("count", n))
		return nil
	})

	handler.Setup(handler.Deps{
		Tracker:  tracker,
		Broker:   broker,
		Geocoder: estimator,
		Feed:     feedStatus,
	})

	// 初始化中间件
	if err := middleware.Init(); err != nil {
		logger.Logger.Fatal("Failed to initialize middlewares", zap.Error(err))
	}

	logger.Logger.Info("Server starting",
		zap.String("service", config.Cfg.ServiceName),
		zap.String("port", config.Cfg.ServerPort),
		zap.String("environment", config.Cfg.Environment),
		zap.String("store", config.Cfg.StoreBackend),
		zap.String("feed", config.Cfg.FeedBackend),
		zap.String("route_provider", config.Cfg.RouteProvider),
	)

	addr := net.JoinHostPort(config.Cfg.ServerHost, config.Cfg.ServerPort)
	serverOpts = append(serverOpts, server.WithHostPorts(addr))
	h := server.Default(serverOpts...)
	if tracerMW != nil {
		h.Use(tracerMW)
	}

	router.Register(h)

	// 优雅关闭：在单独的 goroutine 中监听关闭信号并调用 Shutdown
	go func() {
		<-ctx.Done()
		logger.Logger.Info("Initiating graceful shutdown...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := h.Shutdown(shutdownCtx); err != nil {
			logger.Logger.Error("Failed to shutdown HTTP server", zap.Error(err))
		}
	}()

	logger.Logger.Info("HTTP server listening", zap.String("addr", addr))

	h.Spin()

	cancel()
	tracker.StopAll()
	checkIns.StopAll()
	broker.Close()
	if err := g.Wait(); err != nil {
		logger.Logger.Error("Background task failed", zap.Error(err))
	}

	logger.Logger.Info("Server shutting down gracefully")
}

func newStore() repository.Store {
	if config.Cfg.StoreBackend == "memory" {
		logger.Logger.Warn("Using in-memory store, data will not survive a restart")
		return memory.New()
	}
	return repository.NewGormStore(database.DB())
}

// initStorageMetrics 存储层的指标，失败只记录日志
func initStorageMetrics() {
	if err := dbotel.InitDatabaseMetrics(otelapi.Meter("gorm")); err != nil {
		logger.Logger.Warn("Failed to initialize database metrics", zap.Error(err))
	}
	if err := redisotel.InitRedisMetrics(otelapi.Meter("go-redis")); err != nil {
		logger.Logger.Warn("Failed to initialize redis metrics", zap.Error(err))
	}
	if err := mqotel.InitMQMetrics(otelapi.Meter("rabbitmq")); err != nil {
		logger.Logger.Warn("Failed to initialize rabbitmq metrics", zap.Error(err))
	}
}

// initTelemetry 未启用时返回 nil，服务照常运行
func initTelemetry(ctx context.Context, opts *[]hertzconfig.Option) app.HandlerFunc {
	if !config.Cfg.OTelEnabled {
		return nil
	}

	shutdown, err := otel.InitOpenTelemetry(ctx, otel.Config{
		ServiceName:    config.Cfg.ServiceName,
		ServiceVersion: serviceVersion,
		Environment:    config.Cfg.Environment,
		OTLPEndpoint:   config.Cfg.OTelEndpoint,
		SampleRatio:    config.Cfg.OTelSampleRatio,
	})
	if err != nil {
		logger.Logger.Warn("Failed to initialize OpenTelemetry, continuing without it", zap.Error(err))
		return nil
	}
	go func() {
		<-ctx.Done()
		if err := shutdown(context.Background()); err != nil {
			logger.Logger.Warn("Failed to shutdown OpenTelemetry", zap.Error(err))
		}
	}()

	if err := metrics.InitMetrics(); err != nil {
		logger.Logger.Warn("Failed to initialize domain metrics", zap.Error(err))
	}
	if err := middleware.InitMetrics(otelapi.Meter("hertz-server")); err != nil {
		logger.Logger.Warn("Failed to initialize HTTP metrics", zap.Error(err))
	}
	initStorageMetrics()

	tracer, mw := middleware.NewServerTracerConfig()
	*opts = append(*opts, tracer)
	return mw
}
