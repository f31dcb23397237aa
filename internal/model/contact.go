package model

import "time"

// Contact 用户的紧急联系人，由联系人模块维护，这里只读
type Contact struct {
	ID              int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID          int64     `gorm:"not null;index" json:"user_id"`
	Name            string    `gorm:"type:varchar(64);not null" json:"name"`
	Phone           string    `gorm:"type:varchar(32);not null" json:"phone"`
	Email           *string   `gorm:"type:varchar(128)" json:"email,omitempty"`
	Relationship    *string   `gorm:"type:varchar(32)" json:"relationship,omitempty"`
	NotifyByDefault bool      `gorm:"not null;default:false" json:"notify_by_default"`
	CreatedAt       time.Time `gorm:"not null;default:now()" json:"created_at"`
}

// TableName 指定表名
func (Contact) TableName() string {
	return "contacts"
}

// JourneyContact 行程开始时选中的联系人快照
type JourneyContact struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	JourneyID string    `gorm:"type:uuid;not null;uniqueIndex:idx_journey_contacts_pair" json:"journey_id"`
	ContactID int64     `gorm:"not null;uniqueIndex:idx_journey_contacts_pair" json:"contact_id"`
	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

// TableName 指定表名
func (JourneyContact) TableName() string {
	return "journey_contacts"
}
