package model

import "time"

// NotificationType 通知日志类型
type NotificationType string

const (
	NotificationTypeStart        NotificationType = "start"         // 行程开始
	NotificationTypeCheckInAlert NotificationType = "checkin_alert" // 错过平安确认或超时未到
	NotificationTypeArrivalSafe  NotificationType = "arrival_safe"  // 平安到达
	NotificationTypeDangerAlert  NotificationType = "danger_alert"  // 主动求助或否定回应
)

// NotificationLog 通知审计日志，只追加
// 这里只负责落库与投递事件，短信/推送由下游服务消费
type NotificationLog struct {
	ID        int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	JourneyID string           `gorm:"type:uuid;not null;index:idx_notifications_log_journey" json:"journey_id"`
	ContactID *int64           `gorm:"index" json:"contact_id,omitempty"`
	Type      NotificationType `gorm:"type:varchar(20);not null;index:idx_notifications_log_journey" json:"type"`
	Message   string           `gorm:"type:text;not null" json:"message"`
	CreatedAt time.Time        `gorm:"type:timestamptz;not null;default:now()" json:"created_at"`
}

// TableName 指定表名
func (NotificationLog) TableName() string {
	return "notifications_log"
}
