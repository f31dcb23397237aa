package model

import "time"

// CheckInResponse 平安确认的回应
type CheckInResponse string

const (
	CheckInResponseYes        CheckInResponse = "yes"
	CheckInResponseNo         CheckInResponse = "no"
	CheckInResponseNoResponse CheckInResponse = "no_response" // 超过应答窗口未回应
)

// JourneyCheckIn 一次平安确认记录，按时间最新的一条为最后已知状态
type JourneyCheckIn struct {
	ID        int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	JourneyID string          `gorm:"type:uuid;not null;index:idx_journey_checkins_journey_time" json:"journey_id"`
	Response  CheckInResponse `gorm:"type:varchar(16);not null" json:"response"`
	CreatedAt time.Time       `gorm:"type:timestamptz;not null;index:idx_journey_checkins_journey_time" json:"created_at"`
}

// TableName 指定表名
func (JourneyCheckIn) TableName() string {
	return "journey_checkins"
}
