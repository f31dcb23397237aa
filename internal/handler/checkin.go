package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"

	"SafeWalk/internal/model/dto"
	"SafeWalk/internal/service"
	"SafeWalk/pkg/response"
)

// RespondCheckIn 回应平安确认，no 会立即通知联系人
// POST /v1/journeys/:journey_id/check-ins
func RespondCheckIn(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(ctx, c)
	if !ok {
		return
	}

	var req dto.CheckInRequest
	if err := c.BindJSON(&req); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	checkIn, err := service.CheckIn().Respond(ctx, userID, c.Param("journey_id"), req.Response)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Created(ctx, c, checkIn)
}

// ListCheckIns 行程的平安确认记录
// GET /v1/journeys/:journey_id/check-ins
func ListCheckIns(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(ctx, c)
	if !ok {
		return
	}

	checkIns, err := service.CheckIn().List(ctx, userID, c.Param("journey_id"))
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, checkIns)
}
