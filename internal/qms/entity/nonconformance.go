package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// NonConformance is the central QMS record. It is created open at step 1 and is
// mutated exclusively through workflow transitions until it reaches a terminal
// status (closed or rejected).
type NonConformance struct {
	ID                 string          `json:"id" gorm:"primaryKey;size:36"`
	NCNumber           string          `json:"nc_number" gorm:"size:32;not null;uniqueIndex:idx_ncs_site_number"`
	SiteID             string          `json:"site_id" gorm:"size:32;not null;uniqueIndex:idx_ncs_site_number;index"`
	Title              string          `json:"title" gorm:"size:256;not null"`
	Description        string          `json:"description" gorm:"type:text"`
	Source             string          `json:"source" gorm:"size:32"`
	Status             string          `json:"status" gorm:"size:24;not null;default:open;index"`
	CurrentStep        int             `json:"current_step" gorm:"not null;default:1"`
	RiskClassification string          `json:"risk_classification" gorm:"size:16"`
	ReportedBy         string          `json:"reported_by" gorm:"size:36;not null"`
	ResponsiblePerson  string          `json:"responsible_person" gorm:"size:36;index"`
	DepartmentID       string          `json:"department_id" gorm:"size:32;index"`
	DueDate            *time.Time      `json:"due_date"`
	ClosedAt           *time.Time      `json:"closed_at"`
	WorkflowHistory    WorkflowHistory `json:"workflow_history" gorm:"type:jsonb"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`

	Reporter    *User              `json:"reporter,omitempty" gorm:"foreignKey:ReportedBy"`
	Responsible *User              `json:"responsible,omitempty" gorm:"foreignKey:ResponsiblePerson"`
	Department  *Department        `json:"department,omitempty" gorm:"foreignKey:DepartmentID"`
	Actions     []CorrectiveAction `json:"actions,omitempty" gorm:"foreignKey:NCID"`
	Approvals   []WorkflowApproval `json:"approvals,omitempty" gorm:"foreignKey:NCID"`
	Attachments []Attachment       `json:"attachments,omitempty" gorm:"foreignKey:NCID"`
}

func (NonConformance) TableName() string {
	return "non_conformances"
}

// WorkflowEntry is one record in an NC's append-only workflow history. Entries
// are never mutated or reordered; the sequence is the authoritative audit trail.
type WorkflowEntry struct {
	Step        int                    `json:"step"`
	Action      string                 `json:"action"`
	PerformedBy string                 `json:"performed_by"`
	PerformedAt time.Time              `json:"performed_at"`
	Comments    string                 `json:"comments,omitempty"`
	Round       int                    `json:"round,omitempty"`
	Detail      map[string]interface{} `json:"detail,omitempty"`
}

// WorkflowHistory is the jsonb-backed ordered sequence of workflow entries.
type WorkflowHistory []WorkflowEntry

func (h WorkflowHistory) Value() (driver.Value, error) {
	if h == nil {
		return json.Marshal(WorkflowHistory{})
	}
	return json.Marshal(h)
}

func (h *WorkflowHistory) Scan(value interface{}) error {
	if value == nil {
		*h = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("failed to scan WorkflowHistory: %v", value)
	}
	return json.Unmarshal(bytes, h)
}

// CorrectiveAction is the root-cause analysis and remediation plan submitted by
// the responsible person. One NC can accumulate several (reworks); the workflow
// reads only the latest.
type CorrectiveAction struct {
	ID               string     `json:"id" gorm:"primaryKey;size:36"`
	NCID             string     `json:"nc_id" gorm:"size:36;not null;index"`
	RootCause        string     `json:"root_cause" gorm:"type:text;not null"`
	CorrectiveAction string     `json:"corrective_action" gorm:"type:text;not null"`
	PreventiveAction string     `json:"preventive_action" gorm:"type:text"`
	CompletionDate   *time.Time `json:"completion_date"`
	IsRework         bool       `json:"is_rework" gorm:"not null;default:false"`
	SubmittedBy      string     `json:"submitted_by" gorm:"size:36;not null"`
	SubmittedAt      time.Time  `json:"submitted_at"`
	CreatedAt        time.Time  `json:"created_at"`

	NC        *NonConformance `json:"nc,omitempty" gorm:"foreignKey:NCID"`
	Submitter *User           `json:"submitter,omitempty" gorm:"foreignKey:SubmittedBy"`
}

func (CorrectiveAction) TableName() string {
	return "corrective_actions"
}

// WorkflowApproval is an append-only record of each manager or QA decision on
// an NC. Round reconstruction ("was this a first or second decline") and the
// previous-decline comments shown on rework both read from this table.
type WorkflowApproval struct {
	ID         string    `json:"id" gorm:"primaryKey;size:36"`
	NCID       string    `json:"nc_id" gorm:"size:36;not null;index"`
	Step       int       `json:"step" gorm:"not null"`
	Action     string    `json:"action" gorm:"size:16;not null"`
	Round      int       `json:"round" gorm:"not null;default:1"`
	Comments   string    `json:"comments" gorm:"type:text"`
	ApprovedBy string    `json:"approved_by" gorm:"size:36;not null"`
	ApprovedAt time.Time `json:"approved_at"`

	NC       *NonConformance `json:"nc,omitempty" gorm:"foreignKey:NCID"`
	Approver *User           `json:"approver,omitempty" gorm:"foreignKey:ApprovedBy"`
}

func (WorkflowApproval) TableName() string {
	return "workflow_approvals"
}

// NCActivityLog is the human-readable activity feed. It is a separate sink from
// the structured workflow history: one business event feeds both.
type NCActivityLog struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	NCID        string    `json:"nc_id" gorm:"size:36;not null;index"`
	SiteID      string    `json:"site_id" gorm:"size:32;not null;index"`
	Action      string    `json:"action" gorm:"size:32;not null"`
	FromStatus  string    `json:"from_status" gorm:"size:24"`
	ToStatus    string    `json:"to_status" gorm:"size:24"`
	PerformedBy string    `json:"performed_by" gorm:"size:36;not null"`
	Comment     string    `json:"comment" gorm:"type:text"`
	Detail      JSONB     `json:"detail" gorm:"type:jsonb"`
	CreatedAt   time.Time `json:"created_at"`

	Performer *User `json:"performer,omitempty" gorm:"foreignKey:PerformedBy"`
}

func (NCActivityLog) TableName() string {
	return "nc_activity_logs"
}

// Attachment is evidence file metadata; the object itself lives in MinIO.
type Attachment struct {
	ID         string    `json:"id" gorm:"primaryKey;size:36"`
	NCID       string    `json:"nc_id" gorm:"size:36;not null;index"`
	FileName   string    `json:"file_name" gorm:"size:256;not null"`
	ObjectKey  string    `json:"object_key" gorm:"size:512;not null"`
	FileSize   int64     `json:"file_size"`
	MimeType   string    `json:"mime_type" gorm:"size:128"`
	UploadedBy string    `json:"uploaded_by" gorm:"size:36;not null"`
	CreatedAt  time.Time `json:"created_at"`
}

func (Attachment) TableName() string {
	return "nc_attachments"
}

// NCSequence allocates NC number ordinals per site and year. A counter row
// survives NC deletion, so numbers are never reissued.
type NCSequence struct {
	SiteID string `json:"site_id" gorm:"primaryKey;size:32"`
	Year   int    `json:"year" gorm:"primaryKey"`
	Value  int64  `json:"value" gorm:"not null"`
}

func (NCSequence) TableName() string {
	return "nc_sequences"
}

// NC statuses
const (
	NCStatusOpen                = "open"
	NCStatusInProgress          = "in_progress"
	NCStatusPendingReview       = "pending_review"
	NCStatusPendingVerification = "pending_verification"
	NCStatusClosed              = "closed"
	NCStatusRejected            = "rejected"
)

// Risk classifications
const (
	RiskObservation = "observation"
	RiskOFI         = "ofi"
	RiskMinor       = "minor"
	RiskMajor       = "major"
)

// Workflow history actions
const (
	NCActionQAClassified          = "qa_classified"
	NCActionResponseSubmitted     = "response_submitted"
	NCActionReworkSubmitted       = "rework_submitted"
	NCActionManagerApproved       = "manager_approved"
	NCActionManagerDeclined       = "manager_declined"
	NCActionVerificationCompleted = "verification_completed"
	NCActionReworkRequested       = "rework_requested"
	NCActionEscalated             = "escalated"
)

// Approval decisions
const (
	ApprovalActionApproved = "approved"
	ApprovalActionRejected = "rejected"
)

// Verification outcomes
const (
	VerificationVerified       = "verified"
	VerificationRequiresRework = "requires_rework"
	VerificationEscalated      = "escalated"
)
