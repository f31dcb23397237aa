package dto

import (
	"time"

	"SafeWalk/internal/model"
)

// NotificationItem 通知日志
type NotificationItem struct {
	ID        int64                  `json:"id"`
	ContactID *int64                 `json:"contact_id,omitempty"`
	Type      model.NotificationType `json:"type"`
	Message   string                 `json:"message"`
	CreatedAt time.Time              `json:"created_at"`
}
