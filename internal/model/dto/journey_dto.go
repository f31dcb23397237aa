package dto

import (
	"time"

	"SafeWalk/internal/geo"
	"SafeWalk/internal/model"
	"SafeWalk/internal/route"
)

// ========== Journey 相关 DTO ==========

// EndpointInput 起点或终点，地址与坐标至少提供一个
type EndpointInput struct {
	Name      string   `json:"name"`
	Address   string   `json:"address"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// HasPoint 是否同时给出了经纬度
func (e EndpointInput) HasPoint() bool {
	return e.Latitude != nil && e.Longitude != nil
}

// Endpoint 转换为估算器的端点
func (e EndpointInput) Endpoint() route.Endpoint {
	ep := route.Endpoint{Name: e.Name, Address: e.Address}
	if e.HasPoint() {
		ep.Point = &geo.Point{Lat: *e.Latitude, Lng: *e.Longitude}
	}
	return ep
}

// CreateJourneyRequest 创建行程请求
type CreateJourneyRequest struct {
	Start                  EndpointInput `json:"start"`
	Destination            EndpointInput `json:"destination"`
	ContactIDs             []int64       `json:"contact_ids"`
	CheckInIntervalMinutes int           `json:"checkin_interval_minutes"`
}

// EstimateRequest 路线预览请求
type EstimateRequest struct {
	Start       EndpointInput `json:"start"`
	Destination EndpointInput `json:"destination"`
}

// ConfirmRequest 到达和求助都需要显式确认
type ConfirmRequest struct {
	Confirm bool `json:"confirm"`
}

// JourneyListQuery 行程列表查询参数
type JourneyListQuery struct {
	Status string `query:"status"`
	Cursor string `query:"cursor"`
	Limit  int    `query:"limit"`
}

// JourneyItem 列表项
type JourneyItem struct {
	ID               string              `json:"id"`
	StartName        string              `json:"start_name"`
	DestinationName  string              `json:"destination_name"`
	Status           model.JourneyStatus `json:"status"`
	StartTime        time.Time           `json:"start_time"`
	EstimatedArrival time.Time           `json:"estimated_arrival"`
	EndTime          *time.Time          `json:"end_time,omitempty"`
}

// JourneyDetail 出行者视角的行程详情
type JourneyDetail struct {
	Journey       *model.Journey        `json:"journey"`
	Steps         []model.JourneyStep   `json:"steps"`
	Contacts      []ContactItem         `json:"contacts"`
	LatestCheckIn *model.JourneyCheckIn `json:"latest_check_in,omitempty"`
	RemainingETA  *route.Estimate       `json:"remaining_eta,omitempty"`
	TrackingURL   string                `json:"tracking_url"`
}

// Breadcrumb 轨迹点
type Breadcrumb struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Accuracy   *float64  `json:"accuracy,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// TrackStats 展示用的轨迹统计
type TrackStats struct {
	geo.Stats
	DistanceText    string  `json:"distance_text"`
	AverageSpeedKmh float64 `json:"average_speed_kmh"`
}

// PublicJourney 公开链接可见的行程字段，不含用户标识
type PublicJourney struct {
	ID                 string              `json:"id"`
	StartName          string              `json:"start_name"`
	DestinationName    string              `json:"destination_name"`
	DestinationLat     float64             `json:"destination_lat"`
	DestinationLng     float64             `json:"destination_lng"`
	Status             model.JourneyStatus `json:"status"`
	StartTime          time.Time           `json:"start_time"`
	EstimatedArrival   time.Time           `json:"estimated_arrival"`
	EndTime            *time.Time          `json:"end_time,omitempty"`
	CurrentLatitude    *float64            `json:"current_latitude,omitempty"`
	CurrentLongitude   *float64            `json:"current_longitude,omitempty"`
	LocationUpdatedAt  *time.Time          `json:"location_updated_at,omitempty"`
	RouteDistanceMeter float64             `json:"route_distance_meters"`
}

// PublicJourneyView 公开追踪页数据
type PublicJourneyView struct {
	Journey       PublicJourney         `json:"journey"`
	Breadcrumbs   []Breadcrumb          `json:"breadcrumbs"`
	Contacts      []MaskedContact       `json:"contacts"`
	LatestCheckIn *model.JourneyCheckIn `json:"latest_check_in,omitempty"`
	Stats         TrackStats            `json:"stats"`
}

// LocationSampleRequest 设备上报的一次定位
type LocationSampleRequest struct {
	Latitude  float64    `json:"latitude"`
	Longitude float64    `json:"longitude"`
	Accuracy  *float64   `json:"accuracy"`
	Timestamp *time.Time `json:"timestamp"`
}

// LocationErrorRequest 设备上报的定位错误，code 兼容浏览器定位 API
type LocationErrorRequest struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SamplerOptions 下发给设备的定位参数
type SamplerOptions struct {
	EnableHighAccuracy bool  `json:"enable_high_accuracy"`
	MaximumAgeMs       int64 `json:"maximum_age_ms"`
	TimeoutMs          int64 `json:"timeout_ms"`
}

// ReverseGeocodeQuery 逆地理编码查询参数
type ReverseGeocodeQuery struct {
	Latitude  *float64 `query:"lat"`
	Longitude *float64 `query:"lng"`
}

// ReverseGeocodeResult 服务不可用时返回坐标文本并标记 degraded
type ReverseGeocodeResult struct {
	DisplayName string `json:"display_name"`
	Degraded    bool   `json:"degraded"`
}
