package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cloudwego/hertz/pkg/app"
	"go.uber.org/zap"

	"SafeWalk/internal/geo"
	"SafeWalk/internal/model/dto"
	"SafeWalk/internal/sampler"
	"SafeWalk/internal/service"
	"SafeWalk/pkg/errors"
	"SafeWalk/pkg/logger"
	"SafeWalk/pkg/response"
)

// ReportLocation 设备上报一次定位，进入该行程的采样会话后异步发布
// POST /v1/journeys/:journey_id/locations
func ReportLocation(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(ctx, c)
	if !ok {
		return
	}

	var req dto.LocationSampleRequest
	if err := c.BindJSON(&req); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	p := sampler.Position{
		Point:    geo.Point{Lat: req.Latitude, Lng: req.Longitude},
		Accuracy: req.Accuracy,
	}
	if req.Timestamp != nil {
		p.Timestamp = *req.Timestamp
	}
	if !p.Point.Valid() {
		response.Error(ctx, c, errors.InvalidCoordinates)
		return
	}

	j, err := service.Location().Authorize(ctx, userID, c.Param("journey_id"))
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	tracker := current().Tracker
	if tracker == nil {
		// 未启用采样会话时直接写入
		if err := service.Location().Publish(ctx, j.ID, p); err != nil {
			response.Error(ctx, c, err)
			return
		}
		c.Status(http.StatusNoContent)
		return
	}

	tracker.Ingest(j, p)
	c.Status(http.StatusAccepted)
}

// ReportLocationError 设备上报定位错误，例如授权被拒
// POST /v1/journeys/:journey_id/locations/errors
func ReportLocationError(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(ctx, c)
	if !ok {
		return
	}

	var req dto.LocationErrorRequest
	if err := c.BindJSON(&req); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	j, err := service.Location().Authorize(ctx, userID, c.Param("journey_id"))
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	logger.Logger.Debug("Device reported location error",
		zap.String("journey_id", j.ID),
		zap.String("code", req.Code),
		zap.String("message", req.Message),
	)

	if tracker := current().Tracker; tracker != nil {
		tracker.ReportError(j, req.Code)
	}
	c.Status(http.StatusAccepted)
}

// GetSamplerOptions 设备开始监听定位前拉取参数
// GET /v1/journeys/:journey_id/sampler
func GetSamplerOptions(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(ctx, c)
	if !ok {
		return
	}

	if _, err := service.Location().Authorize(ctx, userID, c.Param("journey_id")); err != nil {
		response.Error(ctx, c, err)
		return
	}

	opts := sampler.DefaultOptions()
	if tracker := current().Tracker; tracker != nil {
		opts = tracker.Options()
	}

	response.Success(ctx, c, dto.SamplerOptions{
		EnableHighAccuracy: opts.HighAccuracy,
		MaximumAgeMs:       opts.MaxAge.Milliseconds(),
		TimeoutMs:          opts.Timeout.Milliseconds(),
	})
}

// ListBreadcrumbs 行程轨迹
// GET /v1/journeys/:journey_id/locations
func ListBreadcrumbs(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(ctx, c)
	if !ok {
		return
	}

	locs, err := service.Location().Breadcrumbs(ctx, userID, c.Param("journey_id"))
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, locs)
}

// EstimateRoute 创建行程前的路线预览
// POST /v1/routes/estimate
func EstimateRoute(ctx context.Context, c *app.RequestContext) {
	userID, ok := currentUser(ctx, c)
	if !ok {
		return
	}

	var req dto.EstimateRequest
	if err := c.BindJSON(&req); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	est, err := service.Journey().Preview(ctx, userID, req)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, est)
}

// ReverseGeocode 坐标转地址，服务不可用时返回坐标文本
// GET /v1/geocode/reverse?lat=&lng=
func ReverseGeocode(ctx context.Context, c *app.RequestContext) {
	if _, ok := currentUser(ctx, c); !ok {
		return
	}

	var query dto.ReverseGeocodeQuery
	if err := c.BindQuery(&query); err != nil {
		response.BindError(ctx, c, err)
		return
	}
	if query.Latitude == nil || query.Longitude == nil {
		response.Error(ctx, c, errors.InvalidCoordinates)
		return
	}
	p := geo.Point{Lat: *query.Latitude, Lng: *query.Longitude}
	if !p.Valid() {
		response.Error(ctx, c, errors.InvalidCoordinates)
		return
	}

	fallback := dto.ReverseGeocodeResult{
		DisplayName: fmt.Sprintf("%.5f, %.5f", p.Lat, p.Lng),
		Degraded:    true,
	}

	geocoder := current().Geocoder
	if geocoder == nil {
		response.Success(ctx, c, fallback)
		return
	}

	name, err := geocoder.ReverseGeocode(ctx, p)
	if err != nil || name == "" {
		logger.Logger.Debug("Reverse geocode degraded", zap.Error(err))
		response.Success(ctx, c, fallback)
		return
	}

	response.Success(ctx, c, dto.ReverseGeocodeResult{DisplayName: name})
}
