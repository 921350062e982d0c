package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stratamine/qms/internal/qms/entity"
	"github.com/stratamine/qms/internal/qms/repository"
	"github.com/stratamine/qms/internal/qms/sse"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// NotificationService maps workflow events to recipients and delivers in-app
// notifications. Delivery is best-effort: the workflow has already committed
// when dispatch runs, and a failed notification is logged, not retried.
type NotificationService struct {
	db       *gorm.DB
	userRepo *repository.UserRepository
	hub      *sse.Hub
	logger   *zap.Logger
}

// NewNotificationService creates the notification service.
func NewNotificationService(db *gorm.DB, userRepo *repository.UserRepository, hub *sse.Hub, logger *zap.Logger) *NotificationService {
	return &NotificationService{db: db, userRepo: userRepo, hub: hub, logger: logger}
}

// DispatchNCEvent resolves the recipients for a workflow event and delivers.
// The actor never receives a notification about their own action.
func (s *NotificationService) DispatchNCEvent(ctx context.Context, nc *entity.NonConformance, event, actorID, comment string) {
	recipients, title := s.resolveRecipients(ctx, nc, event)

	for userID := range recipients {
		if userID == "" || userID == actorID {
			continue
		}
		s.deliver(ctx, nc, event, userID, title, comment)
	}
}

// DispatchEscalationAdvisory warns site admins that an NC has accumulated
// enough declines to need manual intervention.
func (s *NotificationService) DispatchEscalationAdvisory(ctx context.Context, nc *entity.NonConformance, declines int) {
	admins, err := s.userRepo.ListByRole(ctx, nc.SiteID, entity.RoleSiteAdmin)
	if err != nil {
		s.logger.Warn("failed to resolve escalation recipients", zap.Error(err))
		return
	}
	title := fmt.Sprintf("NC %s escalated after %d declines", nc.NCNumber, declines)
	for _, admin := range admins {
		s.deliver(ctx, nc, "escalation_advisory", admin.ID, title,
			"This NC requires manual administrative intervention.")
	}
}

// resolveRecipients returns the recipient set and notification title for an
// event. Unknown events produce no recipients.
func (s *NotificationService) resolveRecipients(ctx context.Context, nc *entity.NonConformance, event string) (map[string]bool, string) {
	recipients := make(map[string]bool)

	addRole := func(role string) {
		users, err := s.userRepo.ListByRole(ctx, nc.SiteID, role)
		if err != nil {
			s.logger.Warn("failed to resolve notification recipients",
				zap.String("role", role), zap.Error(err))
			return
		}
		for _, u := range users {
			recipients[u.ID] = true
		}
	}

	var title string
	switch event {
	case "nc_reported":
		addRole(entity.RoleVerifier)
		title = fmt.Sprintf("New NC %s awaits classification", nc.NCNumber)
	case entity.NCActionQAClassified:
		recipients[nc.ResponsiblePerson] = true
		title = fmt.Sprintf("NC %s assigned to you for corrective action", nc.NCNumber)
	case entity.NCActionResponseSubmitted, entity.NCActionReworkSubmitted:
		addRole(entity.RoleManager)
		title = fmt.Sprintf("NC %s awaits manager review", nc.NCNumber)
	case entity.NCActionManagerApproved:
		recipients[nc.ReportedBy] = true
		recipients[nc.ResponsiblePerson] = true
		title = fmt.Sprintf("NC %s approved and closed", nc.NCNumber)
	case entity.NCActionManagerDeclined:
		recipients[nc.ResponsiblePerson] = true
		title = fmt.Sprintf("NC %s corrective action declined", nc.NCNumber)
	case entity.NCActionVerificationCompleted:
		recipients[nc.ReportedBy] = true
		recipients[nc.ResponsiblePerson] = true
		title = fmt.Sprintf("NC %s verified effective and closed", nc.NCNumber)
	case entity.NCActionReworkRequested:
		recipients[nc.ResponsiblePerson] = true
		title = fmt.Sprintf("NC %s requires rework", nc.NCNumber)
	case entity.NCActionEscalated:
		addRole(entity.RoleManager)
		title = fmt.Sprintf("NC %s escalated to manager review", nc.NCNumber)
	default:
		s.logger.Warn("no notification route for event", zap.String("event", event))
	}

	return recipients, title
}

func (s *NotificationService) deliver(ctx context.Context, nc *entity.NonConformance, event, userID, title, body string) {
	notification := &entity.Notification{
		ID:          uuid.New().String(),
		SiteID:      nc.SiteID,
		RecipientID: userID,
		Event:       event,
		NCID:        nc.ID,
		Title:       title,
		Body:        body,
		CreatedAt:   time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(notification).Error; err != nil {
		s.logger.Warn("failed to store notification",
			zap.String("user_id", userID), zap.Error(err))
		return
	}
	s.hub.PublishUserNotification(userID, notification.ID, title)
}

// ListForUser returns a user's notifications, newest first.
func (s *NotificationService) ListForUser(ctx context.Context, userID string, unreadOnly bool) ([]entity.Notification, error) {
	query := s.db.WithContext(ctx).Where("recipient_id = ?", userID)
	if unreadOnly {
		query = query.Where("read_at IS NULL")
	}
	var notifications []entity.Notification
	err := query.Order("created_at DESC").Limit(100).Find(&notifications).Error
	return notifications, err
}

// MarkRead stamps one notification as read.
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID string) error {
	return s.db.WithContext(ctx).
		Model(&entity.Notification{}).
		Where("id = ? AND recipient_id = ? AND read_at IS NULL", notificationID, userID).
		Update("read_at", time.Now()).Error
}

// MarkAllRead stamps all of a user's notifications as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) error {
	return s.db.WithContext(ctx).
		Model(&entity.Notification{}).
		Where("recipient_id = ? AND read_at IS NULL", userID).
		Update("read_at", time.Now()).Error
}
