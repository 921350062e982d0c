package entity

import (
	"time"
)

// Survey is a satisfaction or safety-culture questionnaire published to a site.
type Survey struct {
	ID        string     `json:"id" gorm:"primaryKey;size:36"`
	SiteID    string     `json:"site_id" gorm:"size:32;not null;index"`
	Title     string     `json:"title" gorm:"size:256;not null"`
	Questions JSONBArray `json:"questions" gorm:"type:jsonb"`
	Status    string     `json:"status" gorm:"size:16;not null;default:draft"`
	CreatedBy string     `json:"created_by" gorm:"size:36;not null"`
	OpensAt   *time.Time `json:"opens_at"`
	ClosesAt  *time.Time `json:"closes_at"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`

	Creator   *User            `json:"creator,omitempty" gorm:"foreignKey:CreatedBy"`
	Responses []SurveyResponse `json:"responses,omitempty" gorm:"foreignKey:SurveyID"`
}

func (Survey) TableName() string {
	return "surveys"
}

// SurveyResponse is one submitted answer set. Anonymous submissions carry an
// empty RespondentID.
type SurveyResponse struct {
	ID           string    `json:"id" gorm:"primaryKey;size:36"`
	SurveyID     string    `json:"survey_id" gorm:"size:36;not null;index"`
	RespondentID string    `json:"respondent_id" gorm:"size:36"`
	Answers      JSONB     `json:"answers" gorm:"type:jsonb"`
	SubmittedAt  time.Time `json:"submitted_at"`

	Survey *Survey `json:"survey,omitempty" gorm:"foreignKey:SurveyID"`
}

func (SurveyResponse) TableName() string {
	return "survey_responses"
}

// Survey statuses
const (
	SurveyStatusDraft  = "draft"
	SurveyStatusOpen   = "open"
	SurveyStatusClosed = "closed"
)
