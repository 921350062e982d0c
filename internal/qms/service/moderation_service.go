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

// ModerationService manages content flags raised against free-text content.
type ModerationService struct {
	repo   *repository.ModerationRepository
	logger *zap.Logger
}

// NewModerationService creates the moderation service.
func NewModerationService(repo *repository.ModerationRepository, logger *zap.Logger) *ModerationService {
	return &ModerationService{repo: repo, logger: logger}
}

// FlagRequest reports a piece of content for review.
type FlagRequest struct {
	ContentType string `json:"content_type" binding:"required"`
	ContentID   string `json:"content_id" binding:"required"`
	Excerpt     string `json:"excerpt"`
	Reason      string `json:"reason" binding:"required"`
}

// Flag queues content for moderator review. Duplicate pending flags on the
// same content collapse into the first.
func (s *ModerationService) Flag(ctx context.Context, siteID, flaggedBy string, req FlagRequest) (*entity.ModerationFlag, error) {
	switch req.ContentType {
	case entity.FlagContentNC, entity.FlagContentSurvey, entity.FlagContentAssistant:
	default:
		return nil, fmt.Errorf("unknown content type %q", req.ContentType)
	}

	pending, err := s.repo.HasPendingFlag(ctx, req.ContentType, req.ContentID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing flags: %w", err)
	}
	if pending {
		return nil, fmt.Errorf("this content is already flagged for review")
	}

	flag := &entity.ModerationFlag{
		ID:          uuid.New().String(),
		SiteID:      siteID,
		ContentType: req.ContentType,
		ContentID:   req.ContentID,
		Excerpt:     req.Excerpt,
		Reason:      req.Reason,
		FlaggedBy:   flaggedBy,
		Status:      entity.FlagStatusPending,
	}
	if err := s.repo.Create(ctx, flag); err != nil {
		return nil, fmt.Errorf("failed to create flag: %w", err)
	}
	return flag, nil
}

// List returns a site's flags, optionally by status.
func (s *ModerationService) List(ctx context.Context, siteID, status string) ([]entity.ModerationFlag, error) {
	return s.repo.List(ctx, siteID, status)
}

// Resolve closes a flag as dismissed or actioned.
func (s *ModerationService) Resolve(ctx context.Context, siteID, flagID, resolvedBy, status, resolution string) (*entity.ModerationFlag, error) {
	flag, err := s.repo.FindByID(ctx, siteID, flagID)
	if err != nil {
		return nil, err
	}
	if flag.Status != entity.FlagStatusPending {
		return nil, fmt.Errorf("flag is already resolved")
	}
	switch status {
	case entity.FlagStatusDismissed, entity.FlagStatusActioned:
	default:
		return nil, fmt.Errorf("unknown resolution %q", status)
	}

	now := time.Now()
	flag.Status = status
	flag.ResolvedBy = resolvedBy
	flag.ResolvedAt = &now
	flag.Resolution = resolution
	if err := s.repo.Update(ctx, flag); err != nil {
		return nil, fmt.Errorf("failed to resolve flag: %w", err)
	}
	return flag, nil
}
