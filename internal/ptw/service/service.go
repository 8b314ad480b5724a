package service

import (
	"github.com/fieldsafe/ptw/internal/config"
	"github.com/fieldsafe/ptw/internal/ptw/repository"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Publisher is the outbound event port. Implementations deliver best
// effort; publishing must never block or fail a mutation.
type Publisher interface {
	PublishPermitEvent(permitID, action, status string)
	PublishChildEvent(permitID, kind, recordID string)
}

// NopPublisher discards all events
type NopPublisher struct{}

func (NopPublisher) PublishPermitEvent(permitID, action, status string) {}
func (NopPublisher) PublishChildEvent(permitID, kind, recordID string)  {}

// Services aggregates every service
type Services struct {
	Auth      *AuthService
	User      *UserService
	Permit    *PermitService
	Export    *ExportService
	Dashboard *DashboardService
	Directory *DirectoryService
	Upload    *UploadService
}

// NewServices wires the service aggregate
func NewServices(repos *repository.Repositories, rdb *redis.Client, cfg *config.Config, pub Publisher, logger *zap.Logger) *Services {
	if pub == nil {
		pub = NopPublisher{}
	}

	var minioClient *minio.Client
	if cfg.MinIO.Endpoint != "" {
		var err error
		minioClient, err = minio.New(cfg.MinIO.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, ""),
			Secure: cfg.MinIO.UseSSL,
		})
		if err != nil {
			logger.Warn("minio unavailable, falling back to local uploads", zap.Error(err))
			minioClient = nil
		}
	}

	permitSvc := NewPermitService(repos.Permit, repos.Location, repos.Contractor, pub, logger)

	return &Services{
		Auth:      NewAuthService(repos.User, rdb, cfg),
		User:      NewUserService(repos.User),
		Permit:    permitSvc,
		Export:    NewExportService(repos.Permit),
		Dashboard: NewDashboardService(repos.Permit, rdb),
		Directory: NewDirectoryService(repos.Location, repos.Contractor),
		Upload:    NewUploadService(minioClient, cfg),
	}
}

func generateID() string {
	return uuid.New().String()[:32]
}
