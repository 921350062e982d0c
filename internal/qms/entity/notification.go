package entity

import (
	"time"
)

// Notification is an in-app message produced when a workflow event fires.
// Delivery is best-effort; the workflow never waits on it.
type Notification struct {
	ID          string     `json:"id" gorm:"primaryKey;size:36"`
	SiteID      string     `json:"site_id" gorm:"size:32;not null;index"`
	RecipientID string     `json:"recipient_id" gorm:"size:36;not null;index"`
	Event       string     `json:"event" gorm:"size:32;not null"`
	NCID        string     `json:"nc_id" gorm:"size:36;index"`
	Title       string     `json:"title" gorm:"size:256;not null"`
	Body        string     `json:"body" gorm:"type:text"`
	ReadAt      *time.Time `json:"read_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (Notification) TableName() string {
	return "notifications"
}
