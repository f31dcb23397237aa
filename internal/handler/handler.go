// Package handler HTTP 接口，业务逻辑都在 service 层
package handler

import (
	"context"
	"sync"

	"github.com/cloudwego/hertz/pkg/app"

	"SafeWalk/internal/geo"
	"SafeWalk/internal/middleware"
	"SafeWalk/internal/model"
	"SafeWalk/internal/realtime"
	"SafeWalk/internal/sampler"
	"SafeWalk/pkg/errors"
	"SafeWalk/pkg/response"
)

// Tracker 设备定位进入采样会话，*tracking.Manager 满足该接口
type Tracker interface {
	Options() sampler.Options
	Ingest(j *model.Journey, p sampler.Position)
	ReportError(j *model.Journey, code string)
}

// ReverseGeocoder *route.Estimator 满足该接口
type ReverseGeocoder interface {
	ReverseGeocode(ctx context.Context, p geo.Point) (string, error)
}

// FeedStatus 跨实例变更订阅的状态，*realtime.RedisFeed 满足该接口
type FeedStatus interface {
	Connected() bool
}

// Deps 服务层之外的运行时组件
type Deps struct {
	Tracker  Tracker
	Broker   *realtime.Broker
	Geocoder ReverseGeocoder
	// Feed 为空表示单实例本地分发
	Feed FeedStatus
}

var (
	depsMu sync.RWMutex
	deps   Deps
)

// Setup 在注册路由前调用
func Setup(d Deps) {
	depsMu.Lock()
	defer depsMu.Unlock()
	deps = d
}

func current() Deps {
	depsMu.RLock()
	defer depsMu.RUnlock()
	return deps
}

// currentUser 取出认证中间件写入的用户 ID，缺失时直接写 401
func currentUser(ctx context.Context, c *app.RequestContext) (int64, bool) {
	userID, ok := middleware.GetUserID(ctx, c)
	if !ok {
		response.Error(ctx, c, errors.Unauthorized)
		return 0, false
	}
	return userID, true
}
