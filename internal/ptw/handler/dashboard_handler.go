package handler

import (
	"strconv"

	"github.com/fieldsafe/ptw/internal/ptw/entity"
	"github.com/fieldsafe/ptw/internal/ptw/service"
	"github.com/gin-gonic/gin"
)

// DashboardHandler dashboard endpoints
type DashboardHandler struct {
	svc *service.DashboardService
}

// NewDashboardHandler creates the dashboard handler
func NewDashboardHandler(svc *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{svc: svc}
}

// Stats returns permit counts by status, type and risk
// GET /api/v1/dashboard/stats
func (h *DashboardHandler) Stats(c *gin.Context) {
	stats, err := h.svc.GetStats(c.Request.Context())
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, stats)
}

// ExpiringSoon returns permits whose validity ends within 24 hours
// GET /api/v1/dashboard/expiring
func (h *DashboardHandler) ExpiringSoon(c *gin.Context) {
	limit := 20
	if l := c.Query("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 100 {
			limit = v
		}
	}
	permits, err := h.svc.ListExpiringSoon(c.Request.Context(), limit)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, gin.H{"items": permits})
}

// MyPending returns permits awaiting the caller's attention
// GET /api/v1/dashboard/pending
func (h *DashboardHandler) MyPending(c *gin.Context) {
	isApprover := false
	for _, role := range GetRoles(c) {
		if role == entity.RoleApprover || role == entity.RoleAdmin {
			isApprover = true
			break
		}
	}
	permits, err := h.svc.ListMyPending(c.Request.Context(), GetUserID(c), isApprover)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, gin.H{"items": permits})
}
