package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stratamine/qms/internal/qms/entity"
	"github.com/stratamine/qms/internal/qms/repository"
	"github.com/stratamine/qms/internal/qms/sse"
	"github.com/stratamine/qms/internal/qms/workflow"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const idempotencyTTL = 24 * time.Hour

// NCService drives the NC lifecycle. Transition decisions come from the
// workflow package; this layer owns fetching the snapshot, idempotency,
// the atomic apply, and the fan-out (notifications, SSE).
type NCService struct {
	db       *gorm.DB
	repos    *repository.Repositories
	rdb      *redis.Client
	hub      *sse.Hub
	notifier *NotificationService
	logger   *zap.Logger
}

// NewNCService creates the NC service.
func NewNCService(db *gorm.DB, repos *repository.Repositories, rdb *redis.Client, hub *sse.Hub, notifier *NotificationService, logger *zap.Logger) *NCService {
	return &NCService{db: db, repos: repos, rdb: rdb, hub: hub, notifier: notifier, logger: logger}
}

// CreateNCRequest carries a new NC report.
type CreateNCRequest struct {
	Title             string `json:"title" binding:"required"`
	Description       string `json:"description" binding:"required"`
	Source            string `json:"source"`
	DepartmentID      string `json:"department_id"`
	ResponsiblePerson string `json:"responsible_person"`
}

// Create reports a new NC. It opens at step 1 awaiting QA classification.
func (s *NCService) Create(ctx context.Context, siteID, reportedBy string, req CreateNCRequest) (*entity.NonConformance, error) {
	now := time.Now()
	seq, err := s.repos.NC.NextSequence(ctx, siteID, now.Year())
	if err != nil {
		return nil, fmt.Errorf("failed to allocate NC number: %w", err)
	}

	nc := &entity.NonConformance{
		ID:                uuid.New().String(),
		NCNumber:          fmt.Sprintf("NC-%s-%d-%04d", siteID, now.Year(), seq),
		SiteID:            siteID,
		Title:             req.Title,
		Description:       req.Description,
		Source:            req.Source,
		Status:            entity.NCStatusOpen,
		CurrentStep:       1,
		ReportedBy:        reportedBy,
		ResponsiblePerson: req.ResponsiblePerson,
		DepartmentID:      req.DepartmentID,
		WorkflowHistory:   entity.WorkflowHistory{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(nc).Error; err != nil {
			return fmt.Errorf("failed to create NC: %w", err)
		}
		logEntry := &entity.NCActivityLog{
			ID:          uuid.New().String(),
			NCID:        nc.ID,
			SiteID:      siteID,
			Action:      "reported",
			ToStatus:    entity.NCStatusOpen,
			PerformedBy: reportedBy,
			CreatedAt:   now,
		}
		return tx.Create(logEntry).Error
	})
	if err != nil {
		return nil, err
	}

	// QA staff triage new reports; tell them without blocking the request.
	go s.notifier.DispatchNCEvent(context.Background(), nc, "nc_reported", reportedBy, "")
	s.hub.PublishNCUpdate(siteID, nc.ID, "nc_reported", nc.Status)

	return nc, nil
}

// Get loads one NC with relations.
func (s *NCService) Get(ctx context.Context, siteID, id string) (*entity.NonConformance, error) {
	return s.repos.NC.FindByID(ctx, siteID, id)
}

// List returns a filtered page of NCs.
func (s *NCService) List(ctx context.Context, siteID string, f repository.NCFilter) ([]entity.NonConformance, int64, error) {
	return s.repos.NC.List(ctx, siteID, f)
}

// History returns the append-only workflow history plus the decision trail.
func (s *NCService) History(ctx context.Context, siteID, id string) (entity.WorkflowHistory, []entity.WorkflowApproval, error) {
	nc, err := s.repos.NC.FindByID(ctx, siteID, id)
	if err != nil {
		return nil, nil, err
	}
	approvals, err := s.repos.NC.ListApprovals(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return nc.WorkflowHistory, approvals, nil
}

// Activity returns the human-readable activity feed.
func (s *NCService) Activity(ctx context.Context, siteID, id string) ([]entity.NCActivityLog, error) {
	return s.repos.NC.ListActivity(ctx, siteID, id)
}

// FieldLocks computes the per-field edit policy for one user on one NC.
func (s *NCService) FieldLocks(ctx context.Context, siteID, id string, actor workflow.Actor) (*workflow.LockSet, *entity.NonConformance, error) {
	nc, err := s.repos.NC.FindByID(ctx, siteID, id)
	if err != nil {
		return nil, nil, err
	}

	role := primaryRole(nc, actor)
	locks := workflow.ComputeFieldLocks(workflow.LockInput{
		Role:              role,
		CurrentStep:       nc.CurrentStep,
		Status:            nc.Status,
		ReportedBy:        nc.ReportedBy,
		ResponsiblePerson: nc.ResponsiblePerson,
		DepartmentID:      nc.DepartmentID,
		CurrentUserID:     actor.UserID,
	})
	return &locks, nc, nil
}

// primaryRole picks the strongest role the actor holds relative to this NC.
// The relational "responsible_person" pseudo-role outranks generic roles but
// never the admin tiers.
func primaryRole(nc *entity.NonConformance, actor workflow.Actor) string {
	switch {
	case actor.HasAnyRole(entity.RoleSuperAdmin):
		return entity.RoleSuperAdmin
	case actor.HasAnyRole(entity.RoleSiteAdmin):
		return entity.RoleSiteAdmin
	case actor.UserID == nc.ResponsiblePerson:
		return "responsible_person"
	case actor.HasAnyRole(entity.RoleManager):
		return entity.RoleManager
	case actor.HasAnyRole(entity.RoleVerifier):
		return entity.RoleVerifier
	case actor.HasAnyRole(entity.RoleModerator):
		return entity.RoleModerator
	default:
		return entity.RoleViewer
	}
}

// ClassifyRequest carries the QA classification input.
type ClassifyRequest struct {
	Risk              string     `json:"risk_classification" binding:"required"`
	DueDate           *time.Time `json:"due_date"`
	ResponsiblePerson string     `json:"responsible_person"`
	Comments          string     `json:"comments"`
}

// Classify runs the step-1 QA classification transition.
func (s *NCService) Classify(ctx context.Context, siteID, ncID string, actor workflow.Actor, idemKey string, req ClassifyRequest) (*entity.NonConformance, error) {
	return s.transition(ctx, siteID, ncID, actor, workflow.ActionClassify, idemKey,
		func(snap workflow.Snapshot, now time.Time) (*workflow.Result, error) {
			return workflow.Classify(snap, actor, workflow.ClassifyInput{
				Risk:              req.Risk,
				DueDate:           req.DueDate,
				ResponsiblePerson: req.ResponsiblePerson,
				Comments:          req.Comments,
			}, now)
		}, nil)
}

// SubmitResponseRequest carries the corrective-action plan.
type SubmitResponseRequest struct {
	RootCause        string     `json:"root_cause" binding:"required"`
	CorrectiveAction string     `json:"corrective_action" binding:"required"`
	PreventiveAction string     `json:"preventive_action"`
	CompletionDate   *time.Time `json:"completion_date"`
}

// SubmitResponse runs the remediation-submission transition. Whether this is a
// first submission or a rework is derived from the NC's current step, never
// from the request.
func (s *NCService) SubmitResponse(ctx context.Context, siteID, ncID string, actor workflow.Actor, idemKey string, req SubmitResponseRequest) (*entity.NonConformance, error) {
	return s.transition(ctx, siteID, ncID, actor, workflow.ActionSubmitResponse, idemKey,
		func(snap workflow.Snapshot, now time.Time) (*workflow.Result, error) {
			return workflow.SubmitResponse(snap, actor, workflow.ResponseInput{
				RootCause:        req.RootCause,
				CorrectiveAction: req.CorrectiveAction,
				PreventiveAction: req.PreventiveAction,
				CompletionDate:   req.CompletionDate,
			}, now)
		},
		func(tx *gorm.DB, snap workflow.Snapshot, result *workflow.Result, now time.Time) error {
			action := &entity.CorrectiveAction{
				ID:               uuid.New().String(),
				NCID:             snap.ID,
				RootCause:        req.RootCause,
				CorrectiveAction: req.CorrectiveAction,
				PreventiveAction: req.PreventiveAction,
				CompletionDate:   req.CompletionDate,
				IsRework:         snap.CurrentStep == 3,
				SubmittedBy:      actor.UserID,
				SubmittedAt:      now,
				CreatedAt:        now,
			}
			if err := tx.Create(action).Error; err != nil {
				return fmt.Errorf("failed to record corrective action: %w", err)
			}
			return nil
		})
}

// DecideRequest carries a manager review decision.
type DecideRequest struct {
	Decision string `json:"decision" binding:"required"`
	Comments string `json:"comments"`
}

// Decide runs the manager review transition. The round is derived from the
// authoritative history: any prior decline makes this the second round.
func (s *NCService) Decide(ctx context.Context, siteID, ncID string, actor workflow.Actor, idemKey string, req DecideRequest) (*entity.NonConformance, error) {
	return s.transition(ctx, siteID, ncID, actor, workflow.ActionDecide, idemKey,
		func(snap workflow.Snapshot, now time.Time) (*workflow.Result, error) {
			return workflow.ManagerDecide(snap, actor, workflow.DecisionInput{
				Decision:    req.Decision,
				Comments:    req.Comments,
				SecondRound: workflow.CountDeclines(snap.History) >= 1,
			}, now)
		},
		func(tx *gorm.DB, snap workflow.Snapshot, result *workflow.Result, now time.Time) error {
			action := entity.ApprovalActionApproved
			if req.Decision == workflow.DecisionDecline {
				action = entity.ApprovalActionRejected
			}
			approval := &entity.WorkflowApproval{
				ID:         uuid.New().String(),
				NCID:       snap.ID,
				Step:       snap.CurrentStep,
				Action:     action,
				Round:      workflow.CountDeclines(snap.History) + 1,
				Comments:   req.Comments,
				ApprovedBy: actor.UserID,
				ApprovedAt: now,
			}
			if err := tx.Create(approval).Error; err != nil {
				return fmt.Errorf("failed to record approval: %w", err)
			}
			return nil
		})
}

// VerifyRequest carries the QA effectiveness verification.
type VerifyRequest struct {
	Outcome             string `json:"verification_status" binding:"required"`
	Comments            string `json:"comments"`
	EffectivenessRating int    `json:"effectiveness_rating"`
}

// Verify runs the QA verification transition.
func (s *NCService) Verify(ctx context.Context, siteID, ncID string, actor workflow.Actor, idemKey string, req VerifyRequest) (*entity.NonConformance, error) {
	return s.transition(ctx, siteID, ncID, actor, workflow.ActionVerify, idemKey,
		func(snap workflow.Snapshot, now time.Time) (*workflow.Result, error) {
			return workflow.Verify(snap, actor, workflow.VerifyInput{
				Outcome:             req.Outcome,
				Comments:            req.Comments,
				EffectivenessRating: req.EffectivenessRating,
			}, now)
		},
		func(tx *gorm.DB, snap workflow.Snapshot, result *workflow.Result, now time.Time) error {
			approval := &entity.WorkflowApproval{
				ID:         uuid.New().String(),
				NCID:       snap.ID,
				Step:       snap.CurrentStep,
				Action:     req.Outcome,
				Round:      workflow.CountDeclines(snap.History) + 1,
				Comments:   req.Comments,
				ApprovedBy: actor.UserID,
				ApprovedAt: now,
			}
			if err := tx.Create(approval).Error; err != nil {
				return fmt.Errorf("failed to record verification: %w", err)
			}
			return nil
		})
}

// transitionFn computes the pure transition result over a fresh snapshot.
type transitionFn func(snap workflow.Snapshot, now time.Time) (*workflow.Result, error)

// sideEffectFn persists transition-specific rows inside the same transaction
// as the CAS update. nil for transitions with no extra rows.
type sideEffectFn func(tx *gorm.DB, snap workflow.Snapshot, result *workflow.Result, now time.Time) error

// transition is the shared transition pipeline: fetch snapshot, consume the
// idempotency key, authorize, compute, apply atomically under the CAS guard,
// then fan out.
func (s *NCService) transition(ctx context.Context, siteID, ncID string, actor workflow.Actor, action, idemKey string, fn transitionFn, effect sideEffectFn) (*entity.NonConformance, error) {
	nc, err := s.repos.NC.FindByID(ctx, siteID, ncID)
	if err != nil {
		return nil, err
	}

	redisKey, err := s.consumeIdempotencyKey(ctx, siteID, ncID, actor.UserID, idemKey)
	if err != nil {
		return nil, err
	}

	snap := snapshotOf(nc)
	if err := workflow.Authorize(snap, actor, action); err != nil {
		s.releaseIdempotencyKey(ctx, redisKey)
		return nil, err
	}

	now := time.Now()
	result, err := fn(snap, now)
	if err != nil {
		s.releaseIdempotencyKey(ctx, redisKey)
		return nil, err
	}

	newHistory := append(append(entity.WorkflowHistory{}, nc.WorkflowHistory...), result.HistoryEntry)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"status":           result.Status,
			"current_step":     result.Step,
			"workflow_history": newHistory,
			"updated_at":       now,
		}
		for field, value := range result.FieldUpdates {
			updates[field] = value
		}

		if err := s.repos.NC.ApplyTransition(tx, nc.ID, snap.Status, snap.CurrentStep, updates); err != nil {
			return err
		}

		logEntry := &entity.NCActivityLog{
			ID:          uuid.New().String(),
			NCID:        nc.ID,
			SiteID:      siteID,
			Action:      result.Activity.Action,
			FromStatus:  result.Activity.FromStatus,
			ToStatus:    result.Activity.ToStatus,
			PerformedBy: actor.UserID,
			Comment:     result.Activity.Comment,
			Detail:      entity.JSONB(result.Activity.Detail),
			CreatedAt:   now,
		}
		if err := tx.Create(logEntry).Error; err != nil {
			return fmt.Errorf("failed to record activity: %w", err)
		}

		if effect != nil {
			return effect(tx, snap, result, now)
		}
		return nil
	})
	if err != nil {
		// A lost CAS race must not burn the key: the client retries against
		// the fresh state.
		s.releaseIdempotencyKey(ctx, redisKey)
		if errors.Is(err, repository.ErrStaleSnapshot) {
			s.logger.Warn("NC transition lost a write race",
				zap.String("nc_id", ncID),
				zap.String("action", action),
				zap.String("user_id", actor.UserID))
		}
		return nil, err
	}

	// Fan out with the committed record, not the pre-transition snapshot:
	// classification can reassign the responsible person, and recipient
	// resolution must see the new assignee.
	fresh, err := s.repos.NC.FindByID(ctx, siteID, ncID)
	if err != nil {
		return nil, err
	}

	go s.notifier.DispatchNCEvent(context.Background(), fresh, result.Event, actor.UserID, result.Activity.Comment)
	if workflow.Escalated(newHistory) {
		go s.notifier.DispatchEscalationAdvisory(context.Background(), fresh, workflow.CountDeclines(newHistory))
	}
	s.hub.PublishNCUpdate(siteID, fresh.ID, result.Event, result.Status)

	return fresh, nil
}

// consumeIdempotencyKey claims the key with SETNX. An empty idemKey disables
// deduplication for the request.
func (s *NCService) consumeIdempotencyKey(ctx context.Context, siteID, ncID, userID, idemKey string) (string, error) {
	if idemKey == "" || s.rdb == nil {
		return "", nil
	}
	key := fmt.Sprintf("qms:idem:%s:%s:%s", siteID, ncID, idemKey)
	ok, err := s.rdb.SetNX(ctx, key, userID, idempotencyTTL).Result()
	if err != nil {
		// Redis being down degrades to no dedup rather than blocking the
		// workflow.
		s.logger.Warn("idempotency check unavailable", zap.Error(err))
		return "", nil
	}
	if !ok {
		return "", ErrDuplicateRequest
	}
	return key, nil
}

func (s *NCService) releaseIdempotencyKey(ctx context.Context, key string) {
	if key == "" || s.rdb == nil {
		return
	}
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		s.logger.Warn("failed to release idempotency key", zap.String("key", key), zap.Error(err))
	}
}

func snapshotOf(nc *entity.NonConformance) workflow.Snapshot {
	return workflow.Snapshot{
		ID:                 nc.ID,
		NCNumber:           nc.NCNumber,
		Status:             nc.Status,
		CurrentStep:        nc.CurrentStep,
		RiskClassification: nc.RiskClassification,
		ReportedBy:         nc.ReportedBy,
		ResponsiblePerson:  nc.ResponsiblePerson,
		DepartmentID:       nc.DepartmentID,
		DueDate:            nc.DueDate,
		ClosedAt:           nc.ClosedAt,
		History:            nc.WorkflowHistory,
	}
}
