package handler

import (
	"errors"
	"strconv"

	"github.com/fieldsafe/ptw/internal/config"
	"github.com/fieldsafe/ptw/internal/ptw/apperr"
	"github.com/fieldsafe/ptw/internal/ptw/service"
	"github.com/fieldsafe/ptw/internal/ptw/sse"
	"github.com/fieldsafe/ptw/internal/ptw/workflow"
	"github.com/gin-gonic/gin"
)

// Handlers aggregates every HTTP handler
type Handlers struct {
	Auth      *AuthHandler
	User      *UserHandler
	Permit    *PermitHandler
	Directory *DirectoryHandler
	Dashboard *DashboardHandler
	SSE       *SSEHandler
	Upload    *UploadHandler
}

// NewHandlers creates the handler aggregate
func NewHandlers(svc *service.Services, hub *sse.Hub, cfg *config.Config) *Handlers {
	return &Handlers{
		Auth:      NewAuthHandler(svc.Auth),
		User:      NewUserHandler(svc.User),
		Permit:    NewPermitHandler(svc.Permit, svc.Export),
		Directory: NewDirectoryHandler(svc.Directory),
		Dashboard: NewDashboardHandler(svc.Dashboard),
		SSE:       NewSSEHandler(hub),
		Upload:    NewUploadHandler(svc.Upload),
	}
}

// Response generic response envelope
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Success 200 response
func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Created 201 response
func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Error writes an error envelope. The HTTP status is the leading three
// digits of the application code.
func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
	})
}

// BadRequest 400 response
func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

// Unauthorized 401 response
func Unauthorized(c *gin.Context, message string) {
	Error(c, 40100, message)
}

// Forbidden 403 response
func Forbidden(c *gin.Context, message string) {
	Error(c, 40300, message)
}

// NotFound 404 response
func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

// Conflict 409 response
func Conflict(c *gin.Context, message string) {
	Error(c, 40900, message)
}

// InternalError 500 response
func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// RespondError maps an application error to the response envelope.
func RespondError(c *gin.Context, err error) {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		switch ae.Kind {
		case apperr.KindValidation:
			Error(c, 40000, ae.Error())
		case apperr.KindForbidden:
			Error(c, 40300, ae.Message)
		case apperr.KindNotFound:
			Error(c, 40400, ae.Message)
		case apperr.KindConflict:
			Error(c, 40900, ae.Message)
		case apperr.KindInvalidTransition:
			Error(c, 40901, ae.Message)
		case apperr.KindPolicyViolation:
			Error(c, 42200, ae.Error())
		case apperr.KindExport:
			Error(c, 50001, ae.Error())
		default:
			Error(c, 50000, ae.Error())
		}
		return
	}
	InternalError(c, err.Error())
}

// GetUserID reads the authenticated user id from the request context.
func GetUserID(c *gin.Context) string {
	userID, _ := c.Get("user_id")
	if id, ok := userID.(string); ok {
		return id
	}
	return ""
}

// GetRoles reads the authenticated user's roles from the request context.
func GetRoles(c *gin.Context) []string {
	roles, _ := c.Get("roles")
	if r, ok := roles.([]string); ok {
		return r
	}
	return nil
}

// GetActor builds the workflow actor for the current request.
func GetActor(c *gin.Context) workflow.Actor {
	return workflow.Actor{
		ID:    GetUserID(c),
		Roles: GetRoles(c),
	}
}

// GetPagination reads page/page_size query params with sane bounds.
func GetPagination(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 20

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}

	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}

	return page, pageSize
}

// ============================================================
// User Handler
// ============================================================

type UserHandler struct {
	svc *service.UserService
}

func NewUserHandler(svc *service.UserService) *UserHandler {
	return &UserHandler{svc: svc}
}

// List returns a paginated user directory
// GET /api/v1/users
func (h *UserHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	result, err := h.svc.List(c.Request.Context(), page, pageSize, c.Query("q"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, result)
}

// Create registers a new user (admin only)
// POST /api/v1/users
func (h *UserHandler) Create(c *gin.Context) {
	var req service.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	user, err := h.svc.Create(c.Request.Context(), &req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, user)
}
