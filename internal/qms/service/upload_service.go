package service

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/stratamine/qms/internal/qms/entity"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// UploadService stores NC evidence files in MinIO and their metadata in the
// database.
type UploadService struct {
	db     *gorm.DB
	client *minio.Client
	bucket string
	logger *zap.Logger
}

// NewUploadService creates the upload service.
func NewUploadService(db *gorm.DB, client *minio.Client, bucket string, logger *zap.Logger) *UploadService {
	return &UploadService{db: db, client: client, bucket: bucket, logger: logger}
}

// Enabled reports whether object storage is configured.
func (s *UploadService) Enabled() bool {
	return s.client != nil
}

// UploadEvidence stores one evidence file for an NC.
func (s *UploadService) UploadEvidence(ctx context.Context, siteID, ncID, uploadedBy, fileName, mimeType string, size int64, reader io.Reader) (*entity.Attachment, error) {
	if s.client == nil {
		return nil, fmt.Errorf("object storage is not configured")
	}

	var nc entity.NonConformance
	if err := s.db.WithContext(ctx).Where("site_id = ? AND id = ?", siteID, ncID).First(&nc).Error; err != nil {
		return nil, fmt.Errorf("NC not found: %w", err)
	}

	objectKey := fmt.Sprintf("%s/%s/%s%s", siteID, ncID, uuid.New().String(), filepath.Ext(fileName))
	_, err := s.client.PutObject(ctx, s.bucket, objectKey, reader, size, minio.PutObjectOptions{
		ContentType: mimeType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store object: %w", err)
	}

	attachment := &entity.Attachment{
		ID:         uuid.New().String(),
		NCID:       ncID,
		FileName:   fileName,
		ObjectKey:  objectKey,
		FileSize:   size,
		MimeType:   mimeType,
		UploadedBy: uploadedBy,
		CreatedAt:  time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(attachment).Error; err != nil {
		// Orphaned object; clean up best-effort.
		if rmErr := s.client.RemoveObject(ctx, s.bucket, objectKey, minio.RemoveObjectOptions{}); rmErr != nil {
			s.logger.Warn("failed to remove orphaned object",
				zap.String("object_key", objectKey), zap.Error(rmErr))
		}
		return nil, fmt.Errorf("failed to store attachment metadata: %w", err)
	}

	return attachment, nil
}

// PresignedURL returns a short-lived download link for an attachment.
func (s *UploadService) PresignedURL(ctx context.Context, siteID, attachmentID string) (string, error) {
	if s.client == nil {
		return "", fmt.Errorf("object storage is not configured")
	}

	var attachment entity.Attachment
	err := s.db.WithContext(ctx).
		Joins("JOIN non_conformances ON non_conformances.id = nc_attachments.nc_id").
		Where("nc_attachments.id = ? AND non_conformances.site_id = ?", attachmentID, siteID).
		First(&attachment).Error
	if err != nil {
		return "", fmt.Errorf("attachment not found: %w", err)
	}

	url, err := s.client.PresignedGetObject(ctx, s.bucket, attachment.ObjectKey, 15*time.Minute, nil)
	if err != nil {
		return "", fmt.Errorf("failed to presign object: %w", err)
	}
	return url.String(), nil
}

// EnsureBucket creates the evidence bucket if missing. Called at startup.
func (s *UploadService) EnsureBucket(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}
	return nil
}
