package repository

import (
	"context"
	"errors"

	"github.com/stratamine/qms/internal/qms/entity"
	"gorm.io/gorm"
)

// ModerationRepository handles content moderation flags.
type ModerationRepository struct {
	db *gorm.DB
}

func NewModerationRepository(db *gorm.DB) *ModerationRepository {
	return &ModerationRepository{db: db}
}

func (r *ModerationRepository) FindByID(ctx context.Context, siteID, id string) (*entity.ModerationFlag, error) {
	var flag entity.ModerationFlag
	err := r.db.WithContext(ctx).
		Preload("Flagger").
		Preload("Resolver").
		Where("site_id = ? AND id = ?", siteID, id).
		First(&flag).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &flag, nil
}

func (r *ModerationRepository) List(ctx context.Context, siteID, status string) ([]entity.ModerationFlag, error) {
	query := r.db.WithContext(ctx).
		Preload("Flagger").
		Where("site_id = ?", siteID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var flags []entity.ModerationFlag
	err := query.Order("created_at DESC").Find(&flags).Error
	return flags, err
}

func (r *ModerationRepository) Create(ctx context.Context, flag *entity.ModerationFlag) error {
	return r.db.WithContext(ctx).Create(flag).Error
}

func (r *ModerationRepository) Update(ctx context.Context, flag *entity.ModerationFlag) error {
	return r.db.WithContext(ctx).Save(flag).Error
}

// HasPendingFlag prevents duplicate flags on the same content.
func (r *ModerationRepository) HasPendingFlag(ctx context.Context, contentType, contentID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.ModerationFlag{}).
		Where("content_type = ? AND content_id = ? AND status = ?",
			contentType, contentID, entity.FlagStatusPending).
		Count(&count).Error
	return count > 0, err
}
