package repository

import (
	"context"
	"errors"

	"github.com/stratamine/qms/internal/qms/entity"
	"gorm.io/gorm"
)

// AuditRepository handles internal audits and their findings.
type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) FindByID(ctx context.Context, siteID, id string) (*entity.Audit, error) {
	var audit entity.Audit
	err := r.db.WithContext(ctx).
		Preload("Auditor").
		Preload("Findings", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Where("site_id = ? AND id = ?", siteID, id).
		First(&audit).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &audit, nil
}

func (r *AuditRepository) List(ctx context.Context, siteID, status string) ([]entity.Audit, error) {
	query := r.db.WithContext(ctx).
		Preload("Auditor").
		Where("site_id = ?", siteID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var audits []entity.Audit
	err := query.Order("created_at DESC").Find(&audits).Error
	return audits, err
}

func (r *AuditRepository) Create(ctx context.Context, audit *entity.Audit) error {
	return r.db.WithContext(ctx).Create(audit).Error
}

func (r *AuditRepository) Update(ctx context.Context, audit *entity.Audit) error {
	return r.db.WithContext(ctx).Save(audit).Error
}

func (r *AuditRepository) CreateFinding(ctx context.Context, finding *entity.AuditFinding) error {
	return r.db.WithContext(ctx).Create(finding).Error
}

// LinkFindingToNC records the NC spawned from a finding.
func (r *AuditRepository) LinkFindingToNC(tx *gorm.DB, findingID, ncID string) error {
	return tx.Model(&entity.AuditFinding{}).
		Where("id = ?", findingID).
		Update("nc_id", ncID).Error
}

// CountAudits returns the audit total for a site, for code generation.
func (r *AuditRepository) CountAudits(ctx context.Context, siteID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.Audit{}).
		Where("site_id = ?", siteID).
		Count(&count).Error
	return count, err
}
