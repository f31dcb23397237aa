package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"

	"SafeWalk/internal/model/dto"
	"SafeWalk/internal/service"
	"SafeWalk/pkg/response"
)

// CreateJourney 创建行程并立即开始监控
// POST /v1/journeys
func CreateJourney(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(ctx, c)
	if !ok {
		return
	}

	var req dto.CreateJourneyRequest
	if err := c.BindJSON(&req); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	detail, err := service.Journey().Create(ctx, userID, req)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Created(ctx, c, detail)
}

// ListJourneys 查询行程列表
// GET /v1/journeys?status=&cursor=&limit=
func ListJourneys(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(ctx, c)
	if !ok {
		return
	}

	var query dto.JourneyListQuery
	if err := c.BindQuery(&query); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	items, next, err := service.Journey().List(ctx, userID, query)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	meta := map[string]interface{}{}
	if next != "" {
		meta["next_cursor"] = next
	}
	response.SuccessWithMeta(ctx, c, items, meta)
}

// GetJourney 查询行程详情
// GET /v1/journeys/:journey_id
func GetJourney(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(ctx, c)
	if !ok {
		return
	}

	detail, err := service.Journey().Get(ctx, userID, c.Param("journey_id"))
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, detail)
}

// ArriveJourney 出行者确认已到达
// POST /v1/journeys/:journey_id/arrive
func ArriveJourney(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(ctx, c)
	if !ok {
		return
	}

	var req dto.ConfirmRequest
	if err := c.BindJSON(&req); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	j, err := service.Journey().MarkArrived(ctx, userID, c.Param("journey_id"), req.Confirm)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, j)
}

// TriggerAlert 出行者主动求助
// POST /v1/journeys/:journey_id/alert
func TriggerAlert(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(ctx, c)
	if !ok {
		return
	}

	var req dto.ConfirmRequest
	if err := c.BindJSON(&req); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	j, err := service.Journey().TriggerAlert(ctx, userID, c.Param("journey_id"), req.Confirm)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, j)
}

// ListJourneyNotifications 行程发出的通知记录
// GET /v1/journeys/:journey_id/notifications
func ListJourneyNotifications(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(ctx, c)
	if !ok {
		return
	}

	items, err := service.Notification().List(ctx, userID, c.Param("journey_id"))
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, items)
}
