package router

import (
	"github.com/cloudwego/hertz/pkg/app/server"

	"SafeWalk/config"
	"SafeWalk/internal/handler"
	"SafeWalk/internal/middleware"
)

func Register(h *server.Hertz) {

	h.Use(middleware.RecoverMiddleware())
	h.Use(middleware.CORSMiddleware())
	h.Use(middleware.OpenTelemetryMiddleware())
	if config.Cfg.RateLimitEnabled {
		h.Use(middleware.GeneralRateLimitMiddleware())
	}

	h.GET("/health", handler.Health)

	// 公开追踪链接，行程 ID 即凭证
	track := h.Group("/track")
	{
		track.GET("/:journey_id", handler.GetPublicJourney)
		track.GET("/:journey_id/ws", handler.StreamPublicJourney)
	}

	v1 := h.Group("/v1")
	v1.Use(middleware.AuthMiddleware())

	// 紧急联系人路由
	v1.GET("/contacts", handler.ListContacts)

	// 路线预览与逆地理编码
	v1.POST("/routes/estimate", handler.EstimateRoute)
	v1.GET("/geocode/reverse", handler.ReverseGeocode)

	// 行程路由
	journeys := v1.Group("/journeys")
	{
		journeys.GET("", handler.ListJourneys)
		journeys.POST("", handler.CreateJourney)
		journeys.GET("/:journey_id", handler.GetJourney)
		journeys.POST("/:journey_id/arrive", handler.ArriveJourney)
		journeys.POST("/:journey_id/alert", handler.TriggerAlert)
		journeys.GET("/:journey_id/notifications", handler.ListJourneyNotifications)
		journeys.GET("/:journey_id/ws", handler.StreamJourney)

		// 平安确认
		journeys.POST("/:journey_id/check-ins", handler.RespondCheckIn)
		journeys.GET("/:journey_id/check-ins", handler.ListCheckIns)

		// 设备定位
		journeys.GET("/:journey_id/sampler", handler.GetSamplerOptions)
		journeys.GET("/:journey_id/locations", handler.ListBreadcrumbs)
		if config.Cfg.RateLimitEnabled {
			journeys.POST("/:journey_id/locations", middleware.LocationRateLimitMiddleware(), handler.ReportLocation)
		} else {
			journeys.POST("/:journey_id/locations", handler.ReportLocation)
		}
		journeys.POST("/:journey_id/locations/errors", handler.ReportLocationError)
	}
}
