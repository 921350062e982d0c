package entity

import (
	"time"
)

// Audit is a scheduled internal audit against an ISO 9001:2015 clause scope.
type Audit struct {
	ID          string     `json:"id" gorm:"primaryKey;size:36"`
	SiteID      string     `json:"site_id" gorm:"size:32;not null;index"`
	Code        string     `json:"code" gorm:"size:32;not null;uniqueIndex"`
	Title       string     `json:"title" gorm:"size:256;not null"`
	ClauseScope string     `json:"clause_scope" gorm:"size:128"`
	AuditorID   string     `json:"auditor_id" gorm:"size:36;not null"`
	Status      string     `json:"status" gorm:"size:16;not null;default:planned"`
	ScheduledAt *time.Time `json:"scheduled_at"`
	CompletedAt *time.Time `json:"completed_at"`
	Summary     string     `json:"summary" gorm:"type:text"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	Auditor  *User          `json:"auditor,omitempty" gorm:"foreignKey:AuditorID"`
	Findings []AuditFinding `json:"findings,omitempty" gorm:"foreignKey:AuditID"`
}

func (Audit) TableName() string {
	return "audits"
}

// AuditFinding records a single observation made during an audit. A finding of
// severity major or minor can spawn a non-conformance; NCID links the two.
type AuditFinding struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	AuditID     string    `json:"audit_id" gorm:"size:36;not null;index"`
	Clause      string    `json:"clause" gorm:"size:32"`
	Severity    string    `json:"severity" gorm:"size:16;not null"`
	Description string    `json:"description" gorm:"type:text;not null"`
	NCID        string    `json:"nc_id" gorm:"size:36;index"`
	CreatedAt   time.Time `json:"created_at"`

	Audit *Audit          `json:"audit,omitempty" gorm:"foreignKey:AuditID"`
	NC    *NonConformance `json:"nc,omitempty" gorm:"foreignKey:NCID"`
}

func (AuditFinding) TableName() string {
	return "audit_findings"
}

// Audit statuses
const (
	AuditStatusPlanned    = "planned"
	AuditStatusInProgress = "in_progress"
	AuditStatusCompleted  = "completed"
	AuditStatusCancelled  = "cancelled"
)

// Finding severities
const (
	FindingSeverityObservation = "observation"
	FindingSeverityMinor       = "minor"
	FindingSeverityMajor       = "major"
)
