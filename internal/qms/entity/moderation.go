package entity

import (
	"time"
)

// ModerationFlag queues a piece of free-text content (NC description, survey
// answer, assistant message) for moderator review.
type ModerationFlag struct {
	ID          string     `json:"id" gorm:"primaryKey;size:36"`
	SiteID      string     `json:"site_id" gorm:"size:32;not null;index"`
	ContentType string     `json:"content_type" gorm:"size:32;not null"`
	ContentID   string     `json:"content_id" gorm:"size:36;not null"`
	Excerpt     string     `json:"excerpt" gorm:"type:text"`
	Reason      string     `json:"reason" gorm:"size:128"`
	FlaggedBy   string     `json:"flagged_by" gorm:"size:36;not null"`
	Status      string     `json:"status" gorm:"size:16;not null;default:pending"`
	ResolvedBy  string     `json:"resolved_by" gorm:"size:36"`
	ResolvedAt  *time.Time `json:"resolved_at"`
	Resolution  string     `json:"resolution" gorm:"type:text"`
	CreatedAt   time.Time  `json:"created_at"`

	Flagger  *User `json:"flagger,omitempty" gorm:"foreignKey:FlaggedBy"`
	Resolver *User `json:"resolver,omitempty" gorm:"foreignKey:ResolvedBy"`
}

func (ModerationFlag) TableName() string {
	return "moderation_flags"
}

// Moderation flag statuses
const (
	FlagStatusPending   = "pending"
	FlagStatusDismissed = "dismissed"
	FlagStatusActioned  = "actioned"
)

// Flaggable content types
const (
	FlagContentNC        = "nc"
	FlagContentSurvey    = "survey_response"
	FlagContentAssistant = "assistant_message"
)
