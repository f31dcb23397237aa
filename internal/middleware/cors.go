package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
)

var allowedOrigins map[string]struct{}

// parseOrigins 规范化为 scheme://host[:port]
func parseOrigins(raw []string) (map[string]struct{}, error) {
	out := make(map[string]struct{}, len(raw))
	for _, o := range raw {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		u, err := url.Parse(o)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid origin %q", o)
		}
		out[strings.ToLower(u.Scheme+"://"+u.Host)] = struct{}{}
	}
	return out, nil
}

// CORSMiddleware 联系人打开的跟踪页面与 API 不同源
func CORSMiddleware() app.HandlerFunc {
	return NewCORS(allowedOrigins)
}

// NewCORS 白名单为空时回显请求的 Origin；不在白名单内的 Origin 不返回任何 CORS 头，预检直接 403
func NewCORS(origins map[string]struct{}) app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		origin := string(c.Request.Header.Get("Origin"))
		preflight := string(c.Method()) == http.MethodOptions

		if origin == "" {
			if preflight {
				c.AbortWithStatus(http.StatusNoContent)
				return
			}
			c.Next(ctx)
			return
		}

		if _, ok := origins[strings.ToLower(origin)]; len(origins) > 0 && !ok {
			if preflight {
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
			c.Next(ctx)
			return
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Vary", "Origin")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Expose-Headers", "X-RateLimit-Limit, X-RateLimit-Remaining, X-RateLimit-Reset")

		if preflight {
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-Id")
			c.Header("Access-Control-Max-Age", "600")
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next(ctx)
	}
}
