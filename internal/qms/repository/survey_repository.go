package repository

import (
	"context"
	"errors"

	"github.com/stratamine/qms/internal/qms/entity"
	"gorm.io/gorm"
)

// SurveyRepository handles surveys and their responses.
type SurveyRepository struct {
	db *gorm.DB
}

func NewSurveyRepository(db *gorm.DB) *SurveyRepository {
	return &SurveyRepository{db: db}
}

func (r *SurveyRepository) FindByID(ctx context.Context, siteID, id string) (*entity.Survey, error) {
	var survey entity.Survey
	err := r.db.WithContext(ctx).
		Preload("Creator").
		Where("site_id = ? AND id = ?", siteID, id).
		First(&survey).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &survey, nil
}

func (r *SurveyRepository) List(ctx context.Context, siteID, status string) ([]entity.Survey, error) {
	query := r.db.WithContext(ctx).
		Preload("Creator").
		Where("site_id = ?", siteID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var surveys []entity.Survey
	err := query.Order("created_at DESC").Find(&surveys).Error
	return surveys, err
}

func (r *SurveyRepository) Create(ctx context.Context, survey *entity.Survey) error {
	return r.db.WithContext(ctx).Create(survey).Error
}

func (r *SurveyRepository) Update(ctx context.Context, survey *entity.Survey) error {
	return r.db.WithContext(ctx).Save(survey).Error
}

func (r *SurveyRepository) CreateResponse(ctx context.Context, response *entity.SurveyResponse) error {
	return r.db.WithContext(ctx).Create(response).Error
}

func (r *SurveyRepository) ListResponses(ctx context.Context, surveyID string) ([]entity.SurveyResponse, error) {
	var responses []entity.SurveyResponse
	err := r.db.WithContext(ctx).
		Where("survey_id = ?", surveyID).
		Order("submitted_at ASC").
		Find(&responses).Error
	return responses, err
}

// HasResponded reports whether a user already submitted to a survey. Anonymous
// responses are not deduplicated.
func (r *SurveyRepository) HasResponded(ctx context.Context, surveyID, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.SurveyResponse{}).
		Where("survey_id = ? AND respondent_id = ?", surveyID, userID).
		Count(&count).Error
	return count > 0, err
}
