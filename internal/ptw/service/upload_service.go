package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fieldsafe/ptw/internal/config"
	"github.com/fieldsafe/ptw/internal/ptw/apperr"
	"github.com/minio/minio-go/v7"
)

// UploadService stores permit documents and signature images in MinIO,
// falling back to local disk when no object store is configured. Callers
// only ever see the opaque URL reference.
type UploadService struct {
	client *minio.Client
	bucket string
	cfg    *config.Config
}

// NewUploadService creates the upload service
func NewUploadService(client *minio.Client, cfg *config.Config) *UploadService {
	return &UploadService{
		client: client,
		bucket: cfg.MinIO.Bucket,
		cfg:    cfg,
	}
}

// UploadedFile stored object reference
type UploadedFile struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// Upload stores one file and returns its reference.
func (s *UploadService) Upload(ctx context.Context, filename, contentType string, size int64, reader io.Reader) (*UploadedFile, error) {
	maxSize := int64(s.cfg.Upload.MaxSizeMB) * 1024 * 1024
	if maxSize > 0 && size > maxSize {
		return nil, apperr.Validation(
			fmt.Sprintf("file exceeds the %dMB limit", s.cfg.Upload.MaxSizeMB), "file")
	}

	objectName := fmt.Sprintf("%d/%s-%s", time.Now().Year(), generateID()[:8], filepath.Base(filename))

	if s.client != nil {
		_, err := s.client.PutObject(ctx, s.bucket, objectName, reader, size, minio.PutObjectOptions{
			ContentType: contentType,
		})
		if err != nil {
			return nil, fmt.Errorf("upload to object store: %w", err)
		}
		return &UploadedFile{
			Name:        filepath.Base(filename),
			URL:         fmt.Sprintf("/files/%s/%s", s.bucket, objectName),
			ContentType: contentType,
			Size:        size,
		}, nil
	}

	// local-disk fallback
	localPath := filepath.Join(s.cfg.Upload.LocalDir, objectName)
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	out, err := os.Create(localPath)
	if err != nil {
		return nil, fmt.Errorf("create upload file: %w", err)
	}
	defer out.Close()
	written, err := io.Copy(out, reader)
	if err != nil {
		return nil, fmt.Errorf("write upload file: %w", err)
	}

	return &UploadedFile{
		Name:        filepath.Base(filename),
		URL:         "/uploads/" + objectName,
		ContentType: contentType,
		Size:        written,
	}, nil
}

// PresignedURL returns a short-lived download URL for an object-store file.
func (s *UploadService) PresignedURL(ctx context.Context, objectName string) (string, error) {
	if s.client == nil {
		return "", apperr.NotFound("object store")
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, objectName, 15*time.Minute, nil)
	if err != nil {
		return "", fmt.Errorf("presign object: %w", err)
	}
	return u.String(), nil
}
