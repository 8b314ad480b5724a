package service

import (
	"context"
	"fmt"
	"time"

	"github.com/fieldsafe/ptw/internal/config"
	"github.com/fieldsafe/ptw/internal/ptw/apperr"
	"github.com/fieldsafe/ptw/internal/ptw/entity"
	"github.com/fieldsafe/ptw/internal/ptw/repository"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

// AuthService password login, JWT issuance and refresh
type AuthService struct {
	userRepo *repository.UserRepository
	rdb      *redis.Client
	cfg      *config.Config
}

// NewAuthService creates the auth service
func NewAuthService(userRepo *repository.UserRepository, rdb *redis.Client, cfg *config.Config) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		rdb:      rdb,
		cfg:      cfg,
	}
}

// TokenPair access and refresh tokens
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// LoginRequest credentials payload
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login verifies credentials and issues a token pair.
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*entity.User, *TokenPair, error) {
	user, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, nil, apperr.Forbidden("invalid email or password")
		}
		return nil, nil, err
	}
	if user.Status != entity.UserStatusActive {
		return nil, nil, apperr.Forbidden("account is disabled")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, nil, apperr.Forbidden("invalid email or password")
	}

	pair, err := s.generateTokenPair(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// generateTokenPair signs an access/refresh token pair and stores the
// refresh jti in Redis so it can be revoked.
func (s *AuthService) generateTokenPair(ctx context.Context, user *entity.User) (*TokenPair, error) {
	now := time.Now()

	accessClaims := jwt.MapClaims{
		"sub":   user.ID,
		"uid":   user.ID,
		"name":  user.Name,
		"email": user.Email,
		"roles": []string(user.Roles),
		"iss":   s.cfg.JWT.Issuer,
		"iat":   now.Unix(),
		"exp":   now.Add(s.cfg.JWT.AccessTokenExpire).Unix(),
		"jti":   uuid.New().String(),
	}
	accessToken := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims)
	accessTokenString, err := accessToken.SignedString([]byte(s.cfg.JWT.Secret))
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refreshJti := uuid.New().String()
	refreshClaims := jwt.MapClaims{
		"sub":  user.ID,
		"type": "refresh",
		"iss":  s.cfg.JWT.Issuer,
		"iat":  now.Unix(),
		"exp":  now.Add(s.cfg.JWT.RefreshTokenExpire).Unix(),
		"jti":  refreshJti,
	}
	refreshToken := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims)
	refreshTokenString, err := refreshToken.SignedString([]byte(s.cfg.JWT.Secret))
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	s.rdb.Set(ctx, "token:refresh:"+refreshJti, user.ID, s.cfg.JWT.RefreshTokenExpire)

	return &TokenPair{
		AccessToken:  accessTokenString,
		RefreshToken: refreshTokenString,
		ExpiresIn:    int64(s.cfg.JWT.AccessTokenExpire.Seconds()),
	}, nil
}

// RefreshToken rotates a refresh token into a new pair.
func (s *AuthService) RefreshToken(ctx context.Context, refreshTokenString string) (*TokenPair, error) {
	token, err := jwt.Parse(refreshTokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.JWT.Secret), nil
	})
	if err != nil {
		return nil, apperr.Forbidden("invalid refresh token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, apperr.Forbidden("invalid token claims")
	}
	if claims["type"] != "refresh" {
		return nil, apperr.Forbidden("invalid token type")
	}

	jti, _ := claims["jti"].(string)
	userID, err := s.rdb.Get(ctx, "token:refresh:"+jti).Result()
	if err != nil {
		return nil, apperr.Forbidden("refresh token expired or revoked")
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, apperr.Forbidden("user not found")
	}

	// single-use rotation
	s.rdb.Del(ctx, "token:refresh:"+jti)

	return s.generateTokenPair(ctx, user)
}

// Logout revokes the presented refresh token.
func (s *AuthService) Logout(ctx context.Context, refreshTokenString string) error {
	token, err := jwt.Parse(refreshTokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.JWT.Secret), nil
	})
	if err != nil {
		return nil // already unusable
	}
	if claims, ok := token.Claims.(jwt.MapClaims); ok {
		if jti, ok := claims["jti"].(string); ok {
			s.rdb.Del(ctx, "token:refresh:"+jti)
		}
	}
	return nil
}

// GetCurrentUser loads the authenticated user.
func (s *AuthService) GetCurrentUser(ctx context.Context, userID string) (*entity.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, apperr.NotFound("user")
		}
		return nil, err
	}
	return user, nil
}

// UserService user directory operations
type UserService struct {
	repo *repository.UserRepository
}

// NewUserService creates the user service
func NewUserService(repo *repository.UserRepository) *UserService {
	return &UserService{repo: repo}
}

// CreateUserRequest admin user creation payload
type CreateUserRequest struct {
	Username string   `json:"username" binding:"required"`
	Name     string   `json:"name" binding:"required"`
	Email    string   `json:"email" binding:"required,email"`
	Password string   `json:"password" binding:"required,min=8"`
	Phone    string   `json:"phone"`
	Roles    []string `json:"roles"`
}

// Create registers a user with a bcrypt password hash.
func (s *UserService) Create(ctx context.Context, req *CreateUserRequest) (*entity.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	roles := req.Roles
	if len(roles) == 0 {
		roles = []string{entity.RoleRequester}
	}

	user := &entity.User{
		ID:           generateID(),
		Username:     req.Username,
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hash),
		Phone:        req.Phone,
		Roles:        roles,
		Status:       entity.UserStatusActive,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// List returns a paginated user page.
func (s *UserService) List(ctx context.Context, page, pageSize int, keyword string) (map[string]interface{}, error) {
	users, total, err := s.repo.List(ctx, page, pageSize, keyword)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"users": users,
		"total": total,
	}, nil
}
