package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/stratamine/qms/internal/config"
	"github.com/stratamine/qms/internal/middleware"
	"github.com/stratamine/qms/internal/qms/entity"
	"github.com/stratamine/qms/internal/qms/handler"
	"github.com/stratamine/qms/internal/qms/repository"
	"github.com/stratamine/qms/internal/qms/service"
	"github.com/stratamine/qms/internal/qms/sse"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting stratamine-qms service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	db, err := initDatabase(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}

	if err := db.AutoMigrate(
		&entity.User{},
		&entity.Department{},
		&entity.Role{},
		&entity.UserRole{},
		&entity.NonConformance{},
		&entity.NCSequence{},
		&entity.CorrectiveAction{},
		&entity.WorkflowApproval{},
		&entity.NCActivityLog{},
		&entity.Attachment{},
		&entity.Audit{},
		&entity.AuditFinding{},
		&entity.Survey{},
		&entity.SurveyResponse{},
		&entity.ModerationFlag{},
		&entity.Notification{},
	); err != nil {
		zapLogger.Warn("AutoMigrate warning", zap.Error(err))
	}

	rdb := initRedis(cfg.Redis)

	hub := sse.NewHub()
	repos := repository.NewRepositories(db)
	services := service.NewServices(db, repos, rdb, hub, cfg, zapLogger)
	handlers := handler.NewHandlers(services, hub)

	if err := services.Upload.EnsureBucket(context.Background()); err != nil {
		zapLogger.Warn("Failed to ensure evidence bucket", zap.Error(err))
	}

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(zapLogger))
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	registerRoutes(router, handlers, cfg)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: 0, // Disable for SSE long-lived connections
	}

	go func() {
		zapLogger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exited")
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	return zapCfg.Build()
}

func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	db, err := gorm.Open(postgres.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return db, nil
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func registerRoutes(r *gin.Engine, h *handler.Handlers, cfg *config.Config) {
	// Health checks
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
		})
	})

	v1 := r.Group("/api/v1")
	{
		// Authentication (no login required)
		auth := v1.Group("/auth")
		{
			auth.POST("/login", h.Auth.Login)
			auth.POST("/refresh", h.Auth.Refresh)
		}

		// SSE live updates (authenticated, supports query param token)
		sseGroup := v1.Group("/sse")
		sseGroup.Use(middleware.JWTAuth(cfg.JWT.Secret))
		{
			sseGroup.GET("/events", h.SSE.Stream)
		}

		// Authenticated API
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(cfg.JWT.Secret))
		{
			authorized.GET("/auth/profile", h.Auth.Profile)
			authorized.POST("/auth/logout", h.Auth.Logout)

			// User and department directories
			authorized.GET("/users", h.User.List)
			authorized.GET("/users/:id", h.User.Get)
			authorized.GET("/departments", h.User.Departments)
			authorized.GET("/roles", h.User.Roles)

			// Non-conformances and the workflow
			ncs := authorized.Group("/ncs")
			{
				ncs.POST("", h.NC.Create)
				ncs.GET("", h.NC.List)
				ncs.GET("/export", h.NC.Export)
				ncs.GET("/:id", h.NC.Get)
				ncs.POST("/:id/classify", h.NC.Classify)
				ncs.POST("/:id/response", h.NC.SubmitResponse)
				ncs.POST("/:id/decision", h.NC.Decide)
				ncs.POST("/:id/verify", h.NC.Verify)
				ncs.GET("/:id/history", h.NC.History)
				ncs.GET("/:id/activity", h.NC.Activity)
				ncs.GET("/:id/field-locks", h.NC.FieldLocks)
				ncs.POST("/:id/evidence", h.Upload.UploadEvidence)
			}

			authorized.GET("/attachments/:id/url", h.Upload.Download)

			// Notifications
			notifications := authorized.Group("/notifications")
			{
				notifications.GET("", h.Notification.List)
				notifications.POST("/read-all", h.Notification.MarkAllRead)
				notifications.POST("/:id/read", h.Notification.MarkRead)
			}

			// Internal audits
			audits := authorized.Group("/audits")
			{
				audits.POST("", h.Audit.Create)
				audits.GET("", h.Audit.List)
				audits.GET("/:id", h.Audit.Get)
				audits.PATCH("/:id/status", h.Audit.UpdateStatus)
				audits.POST("/:id/findings", h.Audit.AddFinding)
			}

			// Surveys
			surveys := authorized.Group("/surveys")
			{
				surveys.POST("", middleware.RequireRole(entity.RoleSiteAdmin), h.Survey.Create)
				surveys.GET("", h.Survey.List)
				surveys.GET("/:id", h.Survey.Get)
				surveys.PATCH("/:id/status", middleware.RequireRole(entity.RoleSiteAdmin), h.Survey.SetStatus)
				surveys.POST("/:id/responses", h.Survey.SubmitResponse)
				surveys.GET("/:id/responses", middleware.RequireRole(entity.RoleSiteAdmin), h.Survey.Responses)
			}

			// Content moderation
			moderation := authorized.Group("/moderation")
			{
				moderation.POST("/flags", h.Moderation.Flag)
				moderation.GET("/flags", middleware.RequireRole(entity.RoleModerator), h.Moderation.List)
				moderation.POST("/flags/:id/resolve", middleware.RequireRole(entity.RoleModerator), h.Moderation.Resolve)
			}

			// Dashboard
			authorized.GET("/dashboard/stats", h.Dashboard.Stats)

			// Edith assistant
			authorized.POST("/assistant/chat", h.Assistant.Chat)
		}
	}
}
