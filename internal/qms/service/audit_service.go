package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stratamine/qms/internal/qms/entity"
	"github.com/stratamine/qms/internal/qms/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AuditService manages internal audits. A major or minor finding can spawn an
// NC, which then runs the standard workflow.
type AuditService struct {
	db     *gorm.DB
	repo   *repository.AuditRepository
	ncSvc  *NCService
	logger *zap.Logger
}

// NewAuditService creates the audit service.
func NewAuditService(db *gorm.DB, repo *repository.AuditRepository, ncSvc *NCService, logger *zap.Logger) *AuditService {
	return &AuditService{db: db, repo: repo, ncSvc: ncSvc, logger: logger}
}

// CreateAuditRequest carries a new audit plan.
type CreateAuditRequest struct {
	Title       string     `json:"title" binding:"required"`
	ClauseScope string     `json:"clause_scope"`
	AuditorID   string     `json:"auditor_id" binding:"required"`
	ScheduledAt *time.Time `json:"scheduled_at"`
}

// Create plans a new audit.
func (s *AuditService) Create(ctx context.Context, siteID string, req CreateAuditRequest) (*entity.Audit, error) {
	count, err := s.repo.CountAudits(ctx, siteID)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate audit code: %w", err)
	}

	audit := &entity.Audit{
		ID:          uuid.New().String(),
		SiteID:      siteID,
		Code:        fmt.Sprintf("AUD-%s-%d-%03d", siteID, time.Now().Year(), count+1),
		Title:       req.Title,
		ClauseScope: req.ClauseScope,
		AuditorID:   req.AuditorID,
		Status:      entity.AuditStatusPlanned,
		ScheduledAt: req.ScheduledAt,
	}
	if err := s.repo.Create(ctx, audit); err != nil {
		return nil, fmt.Errorf("failed to create audit: %w", err)
	}
	return audit, nil
}

// Get loads one audit with findings.
func (s *AuditService) Get(ctx context.Context, siteID, id string) (*entity.Audit, error) {
	return s.repo.FindByID(ctx, siteID, id)
}

// List returns a site's audits, optionally by status.
func (s *AuditService) List(ctx context.Context, siteID, status string) ([]entity.Audit, error) {
	return s.repo.List(ctx, siteID, status)
}

// UpdateStatus moves an audit through its lifecycle. Completing an audit
// stamps the completion time.
func (s *AuditService) UpdateStatus(ctx context.Context, siteID, id, status, summary string) (*entity.Audit, error) {
	audit, err := s.repo.FindByID(ctx, siteID, id)
	if err != nil {
		return nil, err
	}

	switch status {
	case entity.AuditStatusInProgress, entity.AuditStatusCompleted, entity.AuditStatusCancelled:
	default:
		return nil, fmt.Errorf("unknown audit status %q", status)
	}
	if audit.Status == entity.AuditStatusCompleted || audit.Status == entity.AuditStatusCancelled {
		return nil, fmt.Errorf("audit %s is already %s", audit.Code, audit.Status)
	}

	audit.Status = status
	if summary != "" {
		audit.Summary = summary
	}
	if status == entity.AuditStatusCompleted {
		now := time.Now()
		audit.CompletedAt = &now
	}
	if err := s.repo.Update(ctx, audit); err != nil {
		return nil, fmt.Errorf("failed to update audit: %w", err)
	}
	return audit, nil
}

// AddFindingRequest carries one audit observation.
type AddFindingRequest struct {
	Clause      string `json:"clause"`
	Severity    string `json:"severity" binding:"required"`
	Description string `json:"description" binding:"required"`
	// RaiseNC spawns a non-conformance from this finding. Only meaningful for
	// major and minor severities.
	RaiseNC           bool   `json:"raise_nc"`
	DepartmentID      string `json:"department_id"`
	ResponsiblePerson string `json:"responsible_person"`
}

// AddFinding records a finding and optionally spawns an NC from it.
func (s *AuditService) AddFinding(ctx context.Context, siteID, auditID, recordedBy string, req AddFindingRequest) (*entity.AuditFinding, error) {
	audit, err := s.repo.FindByID(ctx, siteID, auditID)
	if err != nil {
		return nil, err
	}
	if audit.Status != entity.AuditStatusInProgress {
		return nil, fmt.Errorf("findings can only be added to an in-progress audit")
	}

	switch req.Severity {
	case entity.FindingSeverityObservation, entity.FindingSeverityMinor, entity.FindingSeverityMajor:
	default:
		return nil, fmt.Errorf("unknown finding severity %q", req.Severity)
	}

	finding := &entity.AuditFinding{
		ID:          uuid.New().String(),
		AuditID:     auditID,
		Clause:      req.Clause,
		Severity:    req.Severity,
		Description: req.Description,
	}
	if err := s.repo.CreateFinding(ctx, finding); err != nil {
		return nil, fmt.Errorf("failed to record finding: %w", err)
	}

	if req.RaiseNC && req.Severity != entity.FindingSeverityObservation {
		nc, err := s.ncSvc.Create(ctx, siteID, recordedBy, CreateNCRequest{
			Title:             fmt.Sprintf("Audit finding %s: %s", audit.Code, req.Clause),
			Description:       req.Description,
			Source:            "internal_audit",
			DepartmentID:      req.DepartmentID,
			ResponsiblePerson: req.ResponsiblePerson,
		})
		if err != nil {
			// The finding stands even if the NC could not be raised.
			s.logger.Error("failed to raise NC from finding",
				zap.String("finding_id", finding.ID), zap.Error(err))
			return finding, nil
		}
		if err := s.repo.LinkFindingToNC(s.db.WithContext(ctx), finding.ID, nc.ID); err != nil {
			s.logger.Error("failed to link finding to NC",
				zap.String("finding_id", finding.ID), zap.String("nc_id", nc.ID), zap.Error(err))
		} else {
			finding.NCID = nc.ID
		}
	}

	return finding, nil
}
