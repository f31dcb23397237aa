package model

// CheckInDeadlineMessage 平安确认应答截止消息，通过延迟队列在截止时刻投递
type CheckInDeadlineMessage struct {
	MessageID    string `json:"message_id"` // 消息唯一ID，用于幂等性检查
	JourneyID    string `json:"journey_id"`
	PromptedAt   string `json:"prompted_at"` // RFC3339Nano
	DelaySeconds int    `json:"delay_seconds"`
}

// NotificationEventMessage 通知日志落库后投递给下游发送服务的事件
type NotificationEventMessage struct {
	MessageID    string `json:"message_id"`
	JourneyID    string `json:"journey_id"`
	Type         string `json:"type"`
	Message      string `json:"message"`
	ContactID    int64  `json:"contact_id,omitempty"`
	ContactName  string `json:"contact_name,omitempty"`
	ContactPhone string `json:"contact_phone,omitempty"`
	TrackingURL  string `json:"tracking_url"`
	OccurredAt   string `json:"occurred_at"`
}
