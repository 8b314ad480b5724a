package handler

import (
	"github.com/fieldsafe/ptw/internal/ptw/service"
	"github.com/gin-gonic/gin"
)

// AuthHandler authentication endpoints
type AuthHandler struct {
	svc *service.AuthService
}

// NewAuthHandler creates the auth handler
func NewAuthHandler(svc *service.AuthService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

// Login verifies credentials and returns a token pair
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	user, pair, err := h.svc.Login(c.Request.Context(), &req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, gin.H{
		"user":  user,
		"token": pair,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Refresh rotates a refresh token
// POST /api/v1/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	pair, err := h.svc.RefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, pair)
}

// Logout revokes the presented refresh token
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// nothing to revoke
		Success(c, nil)
		return
	}
	if err := h.svc.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		RespondError(c, err)
		return
	}
	Success(c, nil)
}

// Me returns the authenticated user
// GET /api/v1/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.svc.GetCurrentUser(c.Request.Context(), GetUserID(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, user)
}
