package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/fieldsafe/ptw/internal/middleware"
	"github.com/fieldsafe/ptw/internal/ptw/entity"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	TestSchema = "test_ptw"
	JWTSecret  = "ptw-jwt-secret-key-2026"
)

// projectRoot returns the project root directory by looking for go.mod
func projectRoot() string {
	_, filename, _, _ := runtime.Caller(0)
	dir := filepath.Dir(filename)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// loadEnv loads .env from the project root
func loadEnv() {
	root := projectRoot()
	if root != "" {
		godotenv.Load(filepath.Join(root, ".env"))
	}
}

// SetupTestDB creates a test database connection using a dedicated test schema.
// Each test gets an isolated schema that is cleaned up after the test. Tests
// that need the database are skipped when no postgres instance is reachable.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	loadEnv()

	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "ptw")
	password := getEnv("DB_PASSWORD", "ptw123")
	dbname := getEnv("DB_NAME", "ptw_test")

	baseDSN := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	// Create a unique test schema for isolation
	schemaName := fmt.Sprintf("%s_%d", TestSchema, time.Now().UnixNano()%1000000)

	// First: create schema using a temporary connection
	setupDB, err := gorm.Open(postgres.Open(baseDSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Skipf("Skipping: test database unavailable: %v", err)
	}
	if err := setupDB.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schemaName)).Error; err != nil {
		t.Skipf("Skipping: test database unavailable: %v", err)
	}
	sqlSetup, _ := setupDB.DB()
	sqlSetup.Close()

	// Second: open connection with search_path in DSN so ALL pooled connections use test schema
	testDSN := fmt.Sprintf("%s search_path=%s", baseDSN, schemaName)
	db, err := gorm.Open(postgres.Open(testDSN), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	// Migrate test tables
	err = db.AutoMigrate(
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
	)
	if err != nil {
		t.Fatalf("Failed to migrate test tables: %v", err)
	}
	db.Exec(fmt.Sprintf("CREATE SEQUENCE IF NOT EXISTS %s.permit_no_seq START 1", schemaName))

	// Cleanup on test completion
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
		// Reconnect to drop the schema
		cleanDB, cleanErr := gorm.Open(postgres.Open(baseDSN), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if cleanErr == nil {
			cleanDB.Exec(fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", schemaName))
			sqlClean, _ := cleanDB.DB()
			if sqlClean != nil {
				sqlClean.Close()
			}
		}
	})

	return db
}

// SetupRouter creates a gin test router
func SetupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery())
	return r
}

// AuthGroup creates an API group with JWT auth middleware for testing
func AuthGroup(r *gin.Engine, path string) *gin.RouterGroup {
	return r.Group(path, middleware.JWTAuth(JWTSecret))
}

// GenerateTestToken creates a valid JWT token for testing
func GenerateTestToken(userID, name, email string, roles []string) string {
	if roles == nil {
		roles = []string{}
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   userID,
		"uid":   userID,
		"name":  name,
		"email": email,
		"roles": roles,
		"iss":   "ptw",
		"iat":   now.Unix(),
		"exp":   now.Add(24 * time.Hour).Unix(),
		"jti":   fmt.Sprintf("test-jti-%d", now.UnixNano()),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, _ := token.SignedString([]byte(JWTSecret))
	return tokenString
}

// AdminToken returns a token for a default admin test user
func AdminToken() string {
	return GenerateTestToken("test-admin-001", "Test Admin", "admin@test.com", []string{"admin"})
}

// ApproverToken returns a token for an approver test user
func ApproverToken(userID string) string {
	return GenerateTestToken(userID, "Test Approver", "approver@test.com", []string{"approver"})
}

// RequesterToken returns a token for a plain requester test user
func RequesterToken(userID string) string {
	return GenerateTestToken(userID, "Test Requester", "requester@test.com", []string{"requester"})
}

// DoRequest executes an HTTP request against the test router
func DoRequest(r *gin.Engine, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ParseResponse parses the JSON response body into a handler.Response-like map
func ParseResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var result map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &result)
	return result
}

// SeedTestUser creates a test user in the database
func SeedTestUser(t *testing.T, db *gorm.DB, id, name string, roles []string) *entity.User {
	t.Helper()
	if roles == nil {
		roles = []string{entity.RoleRequester}
	}
	user := &entity.User{
		ID:           id,
		Username:     "user_" + id,
		Name:         name,
		Email:        id + "@test.com",
		PasswordHash: "x",
		Roles:        roles,
		Status:       "active",
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to seed test user: %v", err)
	}
	return user
}

// SeedTestLocation creates a test location in the database
func SeedTestLocation(t *testing.T, db *gorm.DB, id, code, name string) *entity.Location {
	t.Helper()
	loc := &entity.Location{
		ID:        id,
		Code:      code,
		Name:      name,
		Status:    "active",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := db.Create(loc).Error; err != nil {
		t.Fatalf("Failed to seed test location: %v", err)
	}
	return loc
}

// SeedTestContractor creates a test contractor in the database
func SeedTestContractor(t *testing.T, db *gorm.DB, id, code, name string) *entity.Contractor {
	t.Helper()
	con := &entity.Contractor{
		ID:        id,
		Code:      code,
		Name:      name,
		Status:    "active",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := db.Create(con).Error; err != nil {
		t.Fatalf("Failed to seed test contractor: %v", err)
	}
	return con
}

// SeedTestPermit creates a permit row directly, bypassing the service layer.
// The caller sets status and gate flags as the scenario needs.
func SeedTestPermit(t *testing.T, db *gorm.DB, p *entity.Permit) *entity.Permit {
	t.Helper()
	now := time.Now()
	if p.Number == "" {
		p.Number = fmt.Sprintf("PTW-%d-%04d", now.Year(), now.UnixNano()%10000)
	}
	if p.Status == "" {
		p.Status = entity.PermitStatusDraft
	}
	if p.ValidFrom.IsZero() {
		p.ValidFrom = now.Add(-time.Hour)
	}
	if p.ValidUntil.IsZero() {
		p.ValidUntil = now.Add(8 * time.Hour)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
		p.UpdatedAt = now
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("Failed to seed test permit: %v", err)
	}
	return p
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
