package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stratamine/qms/internal/qms/entity"
	"github.com/stratamine/qms/internal/qms/repository"
	"go.uber.org/zap"
)

// SurveyService manages questionnaires and their responses.
type SurveyService struct {
	repo   *repository.SurveyRepository
	logger *zap.Logger
}

// NewSurveyService creates the survey service.
func NewSurveyService(repo *repository.SurveyRepository, logger *zap.Logger) *SurveyService {
	return &SurveyService{repo: repo, logger: logger}
}

// CreateSurveyRequest carries a new survey draft.
type CreateSurveyRequest struct {
	Title     string            `json:"title" binding:"required"`
	Questions entity.JSONBArray `json:"questions" binding:"required"`
	OpensAt   *time.Time        `json:"opens_at"`
	ClosesAt  *time.Time        `json:"closes_at"`
}

// Create drafts a new survey.
func (s *SurveyService) Create(ctx context.Context, siteID, createdBy string, req CreateSurveyRequest) (*entity.Survey, error) {
	if len(req.Questions) == 0 {
		return nil, fmt.Errorf("a survey needs at least one question")
	}
	survey := &entity.Survey{
		ID:        uuid.New().String(),
		SiteID:    siteID,
		Title:     req.Title,
		Questions: req.Questions,
		Status:    entity.SurveyStatusDraft,
		CreatedBy: createdBy,
		OpensAt:   req.OpensAt,
		ClosesAt:  req.ClosesAt,
	}
	if err := s.repo.Create(ctx, survey); err != nil {
		return nil, fmt.Errorf("failed to create survey: %w", err)
	}
	return survey, nil
}

// Get loads one survey.
func (s *SurveyService) Get(ctx context.Context, siteID, id string) (*entity.Survey, error) {
	return s.repo.FindByID(ctx, siteID, id)
}

// List returns a site's surveys, optionally by status.
func (s *SurveyService) List(ctx context.Context, siteID, status string) ([]entity.Survey, error) {
	return s.repo.List(ctx, siteID, status)
}

// SetStatus moves a survey between draft, open and closed. A closed survey
// stays closed.
func (s *SurveyService) SetStatus(ctx context.Context, siteID, id, status string) (*entity.Survey, error) {
	survey, err := s.repo.FindByID(ctx, siteID, id)
	if err != nil {
		return nil, err
	}
	switch status {
	case entity.SurveyStatusOpen, entity.SurveyStatusClosed:
	default:
		return nil, fmt.Errorf("unknown survey status %q", status)
	}
	if survey.Status == entity.SurveyStatusClosed {
		return nil, fmt.Errorf("survey is already closed")
	}
	survey.Status = status
	if err := s.repo.Update(ctx, survey); err != nil {
		return nil, fmt.Errorf("failed to update survey: %w", err)
	}
	return survey, nil
}

// SubmitResponse records one answer set. respondentID is empty for anonymous
// submissions; named respondents may only submit once.
func (s *SurveyService) SubmitResponse(ctx context.Context, siteID, surveyID, respondentID string, answers entity.JSONB) (*entity.SurveyResponse, error) {
	survey, err := s.repo.FindByID(ctx, siteID, surveyID)
	if err != nil {
		return nil, err
	}
	if survey.Status != entity.SurveyStatusOpen {
		return nil, fmt.Errorf("survey is not open for responses")
	}
	now := time.Now()
	if survey.ClosesAt != nil && now.After(*survey.ClosesAt) {
		return nil, fmt.Errorf("survey closed at %s", survey.ClosesAt.Format(time.RFC3339))
	}

	responded, err := s.repo.HasResponded(ctx, surveyID, respondentID)
	if err != nil {
		return nil, fmt.Errorf("failed to check prior response: %w", err)
	}
	if responded {
		return nil, fmt.Errorf("you have already responded to this survey")
	}

	response := &entity.SurveyResponse{
		ID:           uuid.New().String(),
		SurveyID:     surveyID,
		RespondentID: respondentID,
		Answers:      answers,
		SubmittedAt:  now,
	}
	if err := s.repo.CreateResponse(ctx, response); err != nil {
		return nil, fmt.Errorf("failed to store response: %w", err)
	}
	return response, nil
}

// Responses returns a survey's submissions.
func (s *SurveyService) Responses(ctx context.Context, siteID, surveyID string) ([]entity.SurveyResponse, error) {
	if _, err := s.repo.FindByID(ctx, siteID, surveyID); err != nil {
		return nil, err
	}
	return s.repo.ListResponses(ctx, surveyID)
}
