package repository

import (
	"context"
	"errors"
	"time"

	"github.com/stratamine/qms/internal/qms/entity"
	"gorm.io/gorm"
)

// NCRepository reads non-conformances and performs the guarded transition
// write. All other NC mutations happen inside service transactions.
type NCRepository struct {
	db *gorm.DB
}

// NewNCRepository creates the NC repository.
func NewNCRepository(db *gorm.DB) *NCRepository {
	return &NCRepository{db: db}
}

// FindByID loads an NC with its relations.
func (r *NCRepository) FindByID(ctx context.Context, siteID, id string) (*entity.NonConformance, error) {
	var nc entity.NonConformance
	err := r.db.WithContext(ctx).
		Preload("Reporter").
		Preload("Responsible").
		Preload("Department").
		Preload("Actions", func(db *gorm.DB) *gorm.DB {
			return db.Order("submitted_at ASC")
		}).
		Preload("Approvals", func(db *gorm.DB) *gorm.DB {
			return db.Order("approved_at ASC")
		}).
		Preload("Attachments").
		Where("site_id = ? AND id = ?", siteID, id).
		First(&nc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &nc, nil
}

// NCFilter narrows List results.
type NCFilter struct {
	Status             string
	RiskClassification string
	DepartmentID       string
	ResponsiblePerson  string
	ReportedBy         string
	OverdueOnly        bool
	Search             string
	Page               int
	PageSize           int
}

// List returns a filtered page of NCs plus the total count.
func (r *NCRepository) List(ctx context.Context, siteID string, f NCFilter) ([]entity.NonConformance, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&entity.NonConformance{}).
		Where("site_id = ?", siteID)

	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.RiskClassification != "" {
		query = query.Where("risk_classification = ?", f.RiskClassification)
	}
	if f.DepartmentID != "" {
		query = query.Where("department_id = ?", f.DepartmentID)
	}
	if f.ResponsiblePerson != "" {
		query = query.Where("responsible_person = ?", f.ResponsiblePerson)
	}
	if f.ReportedBy != "" {
		query = query.Where("reported_by = ?", f.ReportedBy)
	}
	if f.OverdueOnly {
		query = query.Where("due_date < ? AND status NOT IN ?", time.Now(),
			[]string{entity.NCStatusClosed, entity.NCStatusRejected})
	}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		query = query.Where("nc_number ILIKE ? OR title ILIKE ? OR description ILIKE ?", like, like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 || f.PageSize > 100 {
		f.PageSize = 20
	}

	var ncs []entity.NonConformance
	err := query.
		Preload("Reporter").
		Preload("Responsible").
		Preload("Department").
		Order("created_at DESC").
		Offset((f.Page - 1) * f.PageSize).
		Limit(f.PageSize).
		Find(&ncs).Error
	return ncs, total, err
}

// Create inserts a new NC.
func (r *NCRepository) Create(ctx context.Context, nc *entity.NonConformance) error {
	return r.db.WithContext(ctx).Create(nc).Error
}

// NextSequence atomically allocates the next NC number ordinal for a site and
// year. The counter row is the allocation authority: concurrent creates get
// distinct values, and deleted NCs never free their numbers.
func (r *NCRepository) NextSequence(ctx context.Context, siteID string, year int) (int64, error) {
	var seq int64
	err := r.db.WithContext(ctx).Raw(
		`INSERT INTO nc_sequences (site_id, year, value) VALUES (?, ?, 1)
		 ON CONFLICT (site_id, year) DO UPDATE SET value = nc_sequences.value + 1
		 RETURNING value`,
		siteID, year).Scan(&seq).Error
	return seq, err
}

// ApplyTransition performs the compare-and-swap transition write: the update
// only lands if the row still holds the status/step the transition was decided
// against. Zero rows matched means a concurrent writer won; the caller gets
// ErrStaleSnapshot and no mutation.
func (r *NCRepository) ApplyTransition(tx *gorm.DB, ncID, expectStatus string, expectStep int, updates map[string]interface{}) error {
	result := tx.Model(&entity.NonConformance{}).
		Where("id = ? AND status = ? AND current_step = ?", ncID, expectStatus, expectStep).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleSnapshot
	}
	return nil
}

// ListActivity returns the activity feed for an NC, newest first.
func (r *NCRepository) ListActivity(ctx context.Context, siteID, ncID string) ([]entity.NCActivityLog, error) {
	var logs []entity.NCActivityLog
	err := r.db.WithContext(ctx).
		Where("site_id = ? AND nc_id = ?", siteID, ncID).
		Preload("Performer").
		Order("created_at DESC").
		Find(&logs).Error
	return logs, err
}

// ListApprovals returns the append-only decision trail for an NC.
func (r *NCRepository) ListApprovals(ctx context.Context, ncID string) ([]entity.WorkflowApproval, error) {
	var approvals []entity.WorkflowApproval
	err := r.db.WithContext(ctx).
		Where("nc_id = ?", ncID).
		Preload("Approver").
		Order("approved_at ASC").
		Find(&approvals).Error
	return approvals, err
}

// LatestAction returns the most recent corrective action for an NC, or nil.
func (r *NCRepository) LatestAction(ctx context.Context, ncID string) (*entity.CorrectiveAction, error) {
	var action entity.CorrectiveAction
	err := r.db.WithContext(ctx).
		Where("nc_id = ?", ncID).
		Order("submitted_at DESC").
		First(&action).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &action, nil
}

// CountByStatus aggregates NC counts per status for the dashboard.
func (r *NCRepository) CountByStatus(ctx context.Context, siteID string) (map[string]int64, error) {
	type row struct {
		Status string
		N      int64
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Model(&entity.NonConformance{}).
		Select("status, count(*) as n").
		Where("site_id = ?", siteID).
		Group("status").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.N
	}
	return out, nil
}

// CountByRisk aggregates NC counts per risk tier for the dashboard.
func (r *NCRepository) CountByRisk(ctx context.Context, siteID string) (map[string]int64, error) {
	type row struct {
		Risk string
		N    int64
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Model(&entity.NonConformance{}).
		Select("risk_classification as risk, count(*) as n").
		Where("site_id = ? AND risk_classification <> ''", siteID).
		Group("risk_classification").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Risk] = r.N
	}
	return out, nil
}
