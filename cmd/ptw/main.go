package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/fieldsafe/ptw/internal/config"
	"github.com/fieldsafe/ptw/internal/middleware"
	"github.com/fieldsafe/ptw/internal/ptw/entity"
	"github.com/fieldsafe/ptw/internal/ptw/handler"
	"github.com/fieldsafe/ptw/internal/ptw/repository"
	"github.com/fieldsafe/ptw/internal/ptw/service"
	"github.com/fieldsafe/ptw/internal/ptw/sse"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
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

	zapLogger.Info("Starting ptw service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	db, err := initDatabase(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}

	if err := migrate(db, zapLogger); err != nil {
		zapLogger.Fatal("Failed to run migrations", zap.Error(err))
	}

	rdb := initRedis(cfg.Redis)

	hub := sse.NewHub(zapLogger)
	repos := repository.NewRepositories(db)
	services := service.NewServices(repos, rdb, cfg, hub, zapLogger)

	seedAdminUser(db, zapLogger)

	handlers := handler.NewHandlers(services, hub, cfg)

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

// migrate applies the schema: AutoMigrate for entities plus the raw SQL
// pieces gorm does not cover (the permit number sequence).
func migrate(db *gorm.DB, zapLogger *zap.Logger) error {
	if err := db.AutoMigrate(
		&entity.User{},
		&entity.Location{},
		&entity.Contractor{},
		&entity.Permit{},
		&entity.PermitDocument{},
		&entity.PermitSignature{},
		&entity.GasTest{},
		&entity.ChecklistRecord{},
		&entity.Handover{},
		&entity.Certificate{},
		&entity.PermitAudit{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	migrationSQL := []string{
		"CREATE SEQUENCE IF NOT EXISTS permit_no_seq START 1",
		"CREATE INDEX IF NOT EXISTS idx_permits_valid_until ON permits(valid_until)",
		"CREATE INDEX IF NOT EXISTS idx_permit_audit_log_created ON permit_audit_log(permit_id, created_at)",
	}
	for _, sql := range migrationSQL {
		if err := db.Exec(sql).Error; err != nil {
			zapLogger.Warn("Migration SQL warning (may already exist)", zap.String("sql", sql), zap.Error(err))
		}
	}
	zapLogger.Info("Database migration completed")
	return nil
}

// seedAdminUser creates the bootstrap admin account when none exists.
func seedAdminUser(db *gorm.DB, zapLogger *zap.Logger) {
	var count int64
	db.Model(&entity.User{}).Where("roles @> ?", `["admin"]`).Count(&count)
	if count > 0 {
		return
	}
	password := config.GetEnvOrDefault("ADMIN_PASSWORD", "")
	if password == "" {
		zapLogger.Warn("No admin user and ADMIN_PASSWORD unset, skipping admin seed")
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		zapLogger.Warn("Failed to hash admin password", zap.Error(err))
		return
	}
	db.Exec(`INSERT INTO users (id, username, name, email, password_hash, roles, status, created_at, updated_at)
		VALUES (replace(gen_random_uuid()::text, '-', ''), 'admin', 'Administrator', ?, ?, '["admin"]', 'active', NOW(), NOW())
		ON CONFLICT (username) DO NOTHING`,
		config.GetEnvOrDefault("ADMIN_EMAIL", "admin@example.com"), string(hash))
	zapLogger.Info("Seeded bootstrap admin user")
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
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/version", func(c *gin.Context) {
		c.JSON(200, gin.H{"version": Version, "build_time": BuildTime})
	})

	api := r.Group("/api/v1")

	// public
	auth := api.Group("/auth")
	{
		auth.POST("/login", h.Auth.Login)
		auth.POST("/refresh", h.Auth.Refresh)
		auth.POST("/logout", h.Auth.Logout)
	}

	// authenticated
	authed := api.Group("")
	authed.Use(middleware.JWTAuth(cfg.JWT.Secret))
	{
		authed.GET("/auth/me", h.Auth.Me)

		users := authed.Group("/users")
		{
			users.GET("", h.User.List)
			users.POST("", middleware.RequireRole("admin"), h.User.Create)
		}

		permits := authed.Group("/permits")
		{
			permits.POST("", h.Permit.Create)
			permits.GET("", h.Permit.List)
			permits.GET("/:id", h.Permit.Get)
			permits.PUT("/:id", h.Permit.Update)
			permits.PUT("/:id/gates", h.Permit.UpdateGates)
			permits.POST("/:id/department-approval", middleware.RequireRole("admin"), h.Permit.ApproveDepartment)

			permits.POST("/:id/submit", h.Permit.Submit)
			permits.POST("/:id/approve", middleware.RequireRole("approver"), h.Permit.Approve)
			permits.POST("/:id/reject", middleware.RequireRole("approver"), h.Permit.Reject)
			permits.POST("/:id/engineering-approve", middleware.RequireRole("admin"), h.Permit.EngineeringApprove)
			permits.POST("/:id/request-closure", middleware.RequireRole("approver"), h.Permit.RequestClosure)
			permits.POST("/:id/approve-closure", middleware.RequireRole("admin"), h.Permit.ApproveClosure)
			permits.POST("/:id/cancel", h.Permit.Cancel)

			permits.POST("/:id/documents", h.Permit.AddDocument)
			permits.POST("/:id/signatures", h.Permit.AddSignature)
			permits.POST("/:id/gas-tests", h.Permit.AddGasTest)
			permits.POST("/:id/checklist", h.Permit.AddChecklistRecord)
			permits.POST("/:id/handovers", h.Permit.AddHandover)
			permits.POST("/:id/certificates", h.Permit.AddCertificate)

			permits.GET("/:id/audit", h.Permit.ListAudit)
			permits.GET("/:id/export", h.Permit.Export)
		}

		locations := authed.Group("/locations")
		{
			locations.GET("", h.Directory.ListLocations)
			locations.GET("/:id", h.Directory.GetLocation)
			locations.POST("", middleware.RequireRole("admin"), h.Directory.CreateLocation)
			locations.PUT("/:id", middleware.RequireRole("admin"), h.Directory.UpdateLocation)
		}

		contractors := authed.Group("/contractors")
		{
			contractors.GET("", h.Directory.ListContractors)
			contractors.GET("/:id", h.Directory.GetContractor)
			contractors.POST("", middleware.RequireRole("admin"), h.Directory.CreateContractor)
			contractors.PUT("/:id", middleware.RequireRole("admin"), h.Directory.UpdateContractor)
		}

		dashboard := authed.Group("/dashboard")
		{
			dashboard.GET("/stats", h.Dashboard.Stats)
			dashboard.GET("/expiring", h.Dashboard.ExpiringSoon)
			dashboard.GET("/pending", h.Dashboard.MyPending)
		}

		authed.POST("/uploads", h.Upload.Upload)
		authed.GET("/sse/events", h.SSE.Stream)
	}
}
