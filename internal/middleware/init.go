package middleware

import (
	"fmt"

	"go.uber.org/zap"

	"SafeWalk/config"
	"SafeWalk/pkg/logger"
)

// Init 初始化鉴权并解析跨域白名单，必须在 router.Register 之前调用
func Init() error {
	if err := initAuthMiddleware(); err != nil {
		return fmt.Errorf("auth middleware: %w", err)
	}

	origins, err := parseOrigins(config.Cfg.CORSAllowedOrigins)
	if err != nil {
		return fmt.Errorf("cors middleware: %w", err)
	}
	allowedOrigins = origins

	logger.Logger.Info("Middlewares initialized",
		zap.Int("cors_origins", len(origins)),
		zap.Bool("rate_limit", config.Cfg.RateLimitEnabled),
	)
	return nil
}
