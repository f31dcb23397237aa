package model

import "time"

// JourneyStatus 行程状态枚举
type JourneyStatus string

const (
	JourneyStatusActive         JourneyStatus = "active"          // 进行中
	JourneyStatusCompletedSafe  JourneyStatus = "completed_safe"  // 已平安到达
	JourneyStatusAlertTriggered JourneyStatus = "alert_triggered" // 已触发告警
)

// Valid 判断状态值是否合法
func (s JourneyStatus) Valid() bool {
	switch s {
	case JourneyStatusActive, JourneyStatusCompletedSafe, JourneyStatusAlertTriggered:
		return true
	}
	return false
}

// Journey 一次步行行程
// current_* 字段由定位上报覆盖写，end_time 在行程结束时写入
type Journey struct {
	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`

	ID     string `gorm:"type:uuid;primaryKey" json:"id"`
	UserID int64  `gorm:"not null;index:idx_journeys_user_status" json:"user_id"`

	StartName          string  `gorm:"type:varchar(255);not null" json:"start_name"`
	StartAddress       string  `gorm:"type:text" json:"start_address"`
	StartLat           float64 `gorm:"not null" json:"start_lat"`
	StartLng           float64 `gorm:"not null" json:"start_lng"`
	DestinationName    string  `gorm:"type:varchar(255);not null" json:"destination_name"`
	DestinationAddress string  `gorm:"type:text" json:"destination_address"`
	DestinationLat     float64 `gorm:"not null" json:"destination_lat"`
	DestinationLng     float64 `gorm:"not null" json:"destination_lng"`

	StartTime        time.Time     `gorm:"type:timestamptz;not null" json:"start_time"`
	EstimatedArrival time.Time     `gorm:"type:timestamptz;not null;index:idx_journeys_status_eta" json:"estimated_arrival"`
	EndTime          *time.Time    `gorm:"type:timestamptz" json:"end_time,omitempty"`
	Status           JourneyStatus `gorm:"type:varchar(20);not null;default:'active';index:idx_journeys_user_status;index:idx_journeys_status_eta" json:"status"`

	CurrentLatitude   *float64   `json:"current_latitude,omitempty"`
	CurrentLongitude  *float64   `json:"current_longitude,omitempty"`
	LocationUpdatedAt *time.Time `gorm:"type:timestamptz" json:"location_updated_at,omitempty"`

	CheckInIntervalMinutes int     `gorm:"type:smallint;not null;default:5" json:"checkin_interval_minutes"`
	RouteDistanceMeters    float64 `gorm:"not null;default:0" json:"route_distance_meters"`
	RouteDurationMinutes   int     `gorm:"not null;default:0" json:"route_duration_minutes"`
	RouteDegraded          bool    `gorm:"not null;default:false" json:"route_degraded"`
}

// TableName 指定表名
func (Journey) TableName() string {
	return "journeys"
}

// HasPosition 是否已有实时位置
func (j *Journey) HasPosition() bool {
	return j.CurrentLatitude != nil && j.CurrentLongitude != nil
}

// JourneyStep 路线逐段导航指令，行程创建时批量写入，之后只读
type JourneyStep struct {
	ID               int64   `gorm:"primaryKey;autoIncrement" json:"id"`
	JourneyID        string  `gorm:"type:uuid;not null;uniqueIndex:idx_journey_steps_number" json:"journey_id"`
	StepNumber       int     `gorm:"not null;uniqueIndex:idx_journey_steps_number" json:"step_number"`
	Instruction      string  `gorm:"type:text;not null" json:"instruction"`
	DistanceMeters   float64 `gorm:"not null" json:"distance_meters"`
	DurationSeconds  float64 `gorm:"not null" json:"duration_seconds"`
	ManeuverType     string  `gorm:"type:varchar(32)" json:"maneuver_type,omitempty"`
	ManeuverModifier string  `gorm:"type:varchar(32)" json:"maneuver_modifier,omitempty"`
}

// TableName 指定表名
func (JourneyStep) TableName() string {
	return "journey_steps"
}
