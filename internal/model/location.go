package model

import "time"

// JourneyLocation 面包屑轨迹点，只追加不修改
type JourneyLocation struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	JourneyID  string    `gorm:"type:uuid;not null;index:idx_journey_locations_journey_time" json:"journey_id"`
	Latitude   float64   `gorm:"not null" json:"latitude"`
	Longitude  float64   `gorm:"not null" json:"longitude"`
	Accuracy   *float64  `json:"accuracy,omitempty"`
	RecordedAt time.Time `gorm:"type:timestamptz;not null;index:idx_journey_locations_journey_time" json:"recorded_at"`
}

// TableName 指定表名
func (JourneyLocation) TableName() string {
	return "journey_locations"
}
