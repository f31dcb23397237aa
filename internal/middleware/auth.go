package middleware

import (
	"context"
	"fmt"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/hertz-contrib/jwt"

	"SafeWalk/config"
	"SafeWalk/pkg/errors"
	"SafeWalk/pkg/response"
	"SafeWalk/pkg/token"
)

const (
	IdentityKey = token.IdentityKey
)

var (
	authMiddleware *jwt.HertzJWTMiddleware
)

// initAuthMiddleware 令牌由账号服务签发，这里只做校验
func initAuthMiddleware() error {
	if config.Cfg.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is not configured")
	}

	mw, err := jwt.New(&jwt.HertzJWTMiddleware{
		Realm:            "SafeWalk API",
		Key:              []byte(config.Cfg.JWTSecret),
		SigningAlgorithm: "HS256",
		IdentityKey:      IdentityKey,

		IdentityHandler: func(ctx context.Context, c *app.RequestContext) interface{} {
			claims := jwt.ExtractClaims(ctx, c)
			uid, err := token.UserIDFromClaim(claims[IdentityKey])
			if err != nil {
				return nil
			}
			return uid
		},

		// 没有合法用户 ID 的令牌一律拒绝
		Authorizator: func(data interface{}, ctx context.Context, c *app.RequestContext) bool {
			_, ok := data.(int64)
			return ok
		},

		Unauthorized: func(ctx context.Context, c *app.RequestContext, code int, message string) {
			c.JSON(code, response.ErrorResponse{
				Error: response.ErrorDetail{
					Code:    errors.Unauthorized.Code,
					Message: message,
				},
			})
		},

		TokenLookup:   "header: Authorization, query: token",
		TokenHeadName: "Bearer",
	})
	if err != nil {
		return fmt.Errorf("failed to create jwt middleware: %w", err)
	}

	authMiddleware = mw
	return nil
}

func AuthMiddleware() app.HandlerFunc {
	if authMiddleware == nil {
		panic("AuthMiddleware not initialized, call Init() first")
	}
	return authMiddleware.MiddlewareFunc()
}

// GetUserID 从请求上下文中获取用户 ID
func GetUserID(ctx context.Context, c *app.RequestContext) (int64, bool) {
	userID, exists := c.Get(IdentityKey)
	if !exists {
		return 0, false
	}

	id, ok := userID.(int64)
	if !ok || id <= 0 {
		return 0, false
	}

	return id, true
}
