package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"

	"SafeWalk/internal/service"
	"SafeWalk/pkg/errors"
	"SafeWalk/pkg/response"
)

// GetPublicJourney 联系人通过分享链接查看行程，无需登录
// GET /track/:journey_id
func GetPublicJourney(ctx context.Context, c *app.RequestContext) {
	view, err := service.Journey().PublicView(ctx, c.Param("journey_id"))
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, view)
}

// StreamPublicJourney 公开追踪页的实时推送
// GET /track/:journey_id/ws
func StreamPublicJourney(ctx context.Context, c *app.RequestContext) {
	journeyID := c.Param("journey_id")
	serveStream(ctx, c, journeyID, publicTopics, func(ctx context.Context) (interface{}, error) {
		return service.Journey().PublicView(ctx, journeyID)
	}, redactPublic)
}

// StreamJourney 出行者自己的实时推送，包含确认请求和定位告警
// GET /v1/journeys/:journey_id/ws
func StreamJourney(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(ctx, c)
	if !ok {
		return
	}

	journeyID := c.Param("journey_id")
	serveStream(ctx, c, journeyID, travelerTopics, func(ctx context.Context) (interface{}, error) {
		return service.Journey().Get(ctx, userID, journeyID)
	}, nil)
}

// Health 存活检查，变更订阅断开时返回 503
// GET /health
func Health(ctx context.Context, c *app.RequestContext) {
	feed := current().Feed
	if feed == nil {
		response.Success(ctx, c, map[string]string{"status": "ok", "realtime": "local"})
		return
	}
	if !feed.Connected() {
		response.Error(ctx, c, errors.RealtimeUnavailable)
		return
	}
	response.Success(ctx, c, map[string]string{"status": "ok", "realtime": "connected"})
}
