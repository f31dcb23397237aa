package dto

// ContactItem 出行者可见的联系人
type ContactItem struct {
	ID              int64   `json:"id"`
	Name            string  `json:"name"`
	Phone           string  `json:"phone"`
	Relationship    *string `json:"relationship,omitempty"`
	NotifyByDefault bool    `json:"notify_by_default"`
}

// MaskedContact 公开链接里的联系人，电话打码
type MaskedContact struct {
	Name         string  `json:"name"`
	Phone        string  `json:"phone"`
	Relationship *string `json:"relationship,omitempty"`
}
