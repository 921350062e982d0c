package service

import (
	"errors"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"github.com/stratamine/qms/internal/config"
	"github.com/stratamine/qms/internal/qms/repository"
	"github.com/stratamine/qms/internal/qms/sse"
	"github.com/stratamine/qms/internal/shared/llm"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrDuplicateRequest: an idempotency key was already consumed for this NC.
// The first request's outcome stands; the handler surfaces a conflict.
var ErrDuplicateRequest = errors.New("duplicate transition request")

// Services bundles all services over shared infrastructure.
type Services struct {
	Auth         *AuthService
	User         *UserService
	NC           *NCService
	Notification *NotificationService
	Audit        *AuditService
	Survey       *SurveyService
	Moderation   *ModerationService
	Dashboard    *DashboardService
	Assistant    *AssistantService
	Upload       *UploadService
}

// NewServices creates the service set.
func NewServices(db *gorm.DB, repos *repository.Repositories, rdb *redis.Client, hub *sse.Hub, cfg *config.Config, logger *zap.Logger) *Services {
	var minioClient *minio.Client
	if cfg.MinIO.Endpoint != "" {
		var err error
		minioClient, err = minio.New(cfg.MinIO.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, ""),
			Secure: cfg.MinIO.UseSSL,
		})
		if err != nil {
			logger.Warn("MinIO unavailable, evidence uploads disabled", zap.Error(err))
			minioClient = nil
		}
	}

	var llmClient *llm.Client
	if cfg.LLM.BaseURL != "" && cfg.LLM.APIKey != "" {
		llmClient = llm.NewClient(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.Timeout)
	}

	notification := NewNotificationService(db, repos.User, hub, logger)
	ncSvc := NewNCService(db, repos, rdb, hub, notification, logger)

	return &Services{
		Auth:         NewAuthService(repos.User, rdb, cfg),
		User:         NewUserService(repos.User),
		NC:           ncSvc,
		Notification: notification,
		Audit:        NewAuditService(db, repos.Audit, ncSvc, logger),
		Survey:       NewSurveyService(repos.Survey, logger),
		Moderation:   NewModerationService(repos.Moderation, logger),
		Dashboard:    NewDashboardService(repos.NC, rdb, logger),
		Assistant:    NewAssistantService(llmClient, repos.NC, ncSvc, logger),
		Upload:       NewUploadService(db, minioClient, cfg.MinIO.Bucket, logger),
	}
}
